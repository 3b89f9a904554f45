package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

type TransactionType string

const (
	TransactionDeposit TransactionType = "Deposit"
	TransactionPayment TransactionType = "Payment"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "Pending"
	TransactionCompleted TransactionStatus = "Completed"
	TransactionFailed    TransactionStatus = "Failed"
)

// Transaction - строка финансового журнала. ExternalID уникален: по нему
// отсекается повторная обработка одного и того же PaymentId.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	AccountID   uuid.UUID         `json:"accountId"`
	UserID      string            `json:"userId"`
	Amount      float64           `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description"`
	OrderID     *uuid.UUID        `json:"orderId,omitempty"`
	ExternalID  *string           `json:"externalId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}
