package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"payments/internal/messaging/contracts"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusProcessed Status = "Processed"
	StatusFailed    Status = "Failed" // терминальный, автоматического re-queue нет
)

type Message struct {
	ID          uuid.UUID             `db:"id"`
	Type        contracts.MessageType `db:"type"`
	Content     json.RawMessage       `db:"content"`
	CreatedAt   time.Time             `db:"created_at"`
	ProcessedAt *time.Time            `db:"processed_at"`
	Status      Status                `db:"status"`
	Error       *string               `db:"error"`
}

// NewMessage собирает Pending-сообщение с сериализованным payload.
func NewMessage(t contracts.MessageType, payload any) (*Message, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new outbox id: %w", err)
	}

	return &Message{
		ID:        id,
		Type:      t,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Status:    StatusPending,
	}, nil
}
