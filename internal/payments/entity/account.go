package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateAccountRequest struct {
	InitialBalance float64 `json:"initialBalance" validate:"omitempty,money"`
}

type DepositRequest struct {
	Amount      float64 `json:"amount" validate:"required,money"`
	Description string  `json:"description" validate:"omitempty,max=1000"`
}

type BalanceResponse struct {
	UserID  string  `json:"userId"`
	Balance float64 `json:"balance"`
}
