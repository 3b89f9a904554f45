package contracts

import (
	"time"

	"github.com/gofrs/uuid"
)

// MessageType - дискриминатор сообщения в outbox/inbox. Закрытое множество:
// каждый тип владеет своей схемой payload и своей очередью.
type MessageType string

const (
	TypePaymentRequest MessageType = "PaymentRequest"
	TypePaymentStatus  MessageType = "PaymentStatus"
)

// Очереди брокера. Имена - часть контракта между сервисами.
const (
	QueuePaymentRequests = "payment-requests"
	QueuePaymentStatuses = "payment-statuses"
)

const (
	PaymentCompleted = "Completed"
	PaymentFailed    = "Failed"
)

// PaymentRequestMessage летит из orders в payments. PaymentId - ключ
// идемпотентности: по нему inbox и transactions.external_id отсекают дубли.
// Имена полей в JSON унаследованы от исходной системы.
type PaymentRequestMessage struct {
	PaymentID string    `json:"PaymentId"`
	OrderID   uuid.UUID `json:"OrderId"`
	UserID    string    `json:"UserId"`
	Amount    float64   `json:"Amount"`
}

// PaymentStatusMessage летит обратно из payments в orders.
type PaymentStatusMessage struct {
	PaymentID    string    `json:"PaymentId"`
	OrderID      uuid.UUID `json:"OrderId"`
	UserID       string    `json:"UserId"`
	Amount       float64   `json:"Amount"`
	Status       string    `json:"Status"`
	ErrorMessage string    `json:"ErrorMessage,omitempty"`
	Timestamp    time.Time `json:"Timestamp"`
}

func (m PaymentStatusMessage) Success() bool {
	return m.Status == PaymentCompleted
}
