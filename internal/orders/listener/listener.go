package listener

import (
	"context"
	"encoding/json"
	"fmt"

	"payments/internal/messaging/contracts"
	"payments/internal/orders/service"
	"payments/pkg/metrics"

	"go.uber.org/zap"
)

// PaymentStatusListener принимает PaymentStatus из очереди payment-statuses.
type PaymentStatusListener struct {
	service service.Service
	logger  *zap.SugaredLogger
	m       *metrics.Metrics
}

func NewPaymentStatusListener(service service.Service, logger *zap.SugaredLogger, m *metrics.Metrics) *PaymentStatusListener {
	return &PaymentStatusListener{service: service, logger: logger, m: m}
}

// Handle: nil - сообщение подтверждается (ack), ошибка - вернётся в очередь
// (nack + requeue). Битый JSON подтверждаем: повторная доставка его не починит.
// Дроп считается в payments_broker_dropped_total, чтобы не пропасть молча.
func (l *PaymentStatusListener) Handle(ctx context.Context, body []byte) error {
	var msg contracts.PaymentStatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		l.logger.Errorf("malformed payment status message, dropping: %v", err)
		if l.m != nil {
			l.m.Broker.DroppedTotal.WithLabelValues(contracts.QueuePaymentStatuses, "malformed").Inc()
		}
		return nil
	}

	if err := l.service.HandlePaymentStatus(ctx, &msg); err != nil {
		return fmt.Errorf("handle payment status %s: %w", msg.PaymentID, err)
	}
	return nil
}
