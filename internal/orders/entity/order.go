package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusFinished  OrderStatus = "FINISHED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Terminal: из FINISHED и CANCELLED заказ уже не выходит.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFinished || s == OrderStatusCancelled
}

type Order struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"userId"`
	Price       float64     `json:"price"`
	Description string      `json:"description"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type CreateOrderRequest struct {
	Price       float64 `json:"price" validate:"required,money"`
	Description string  `json:"description" validate:"omitempty,max=1000"`
}
