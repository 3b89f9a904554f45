package inbox

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
	StatusFailed    Status = "Failed"
)

// Message - запись inbox-леджера. MessageID - внешний ключ дедупликации
// (PaymentId), на нём уникальный индекс: конкурирующая запись дубля падает
// громко, а не создаёт вторую строку.
type Message struct {
	ID          uuid.UUID             `db:"id"`
	MessageID   string                `db:"message_id"`
	Type        contracts.MessageType `db:"type"`
	Content     json.RawMessage       `db:"content"`
	ReceivedAt  time.Time             `db:"received_at"`
	ProcessedAt *time.Time            `db:"processed_at"`
	Status      Status                `db:"status"`
	Error       *string               `db:"error"`
}

// NewProcessed собирает запись "сообщение обработано" для messageID.
func NewProcessed(messageID string, t contracts.MessageType, payload any) (*Message, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal inbox payload: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new inbox id: %w", err)
	}

	now := time.Now().UTC()
	return &Message{
		ID:          id,
		MessageID:   messageID,
		Type:        t,
		Content:     content,
		ReceivedAt:  now,
		ProcessedAt: &now,
		Status:      StatusProcessed,
	}, nil
}
