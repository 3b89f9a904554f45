package listener

import (
	"context"
	"encoding/json"
	"fmt"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/internal/payments/service"
	"payments/pkg/metrics"

	"go.uber.org/zap"
)

// PaymentRequestListener принимает PaymentRequest из очереди payment-requests.
type PaymentRequestListener struct {
	service service.Service
	logger  *zap.SugaredLogger
	m       *metrics.Metrics
}

func NewPaymentRequestListener(service service.Service, logger *zap.SugaredLogger, m *metrics.Metrics) *PaymentRequestListener {
	return &PaymentRequestListener{service: service, logger: logger, m: m}
}

// Handle: business-отказ (нет счёта, не хватает средств) подтверждается -
// вердикт Failed уже записан в outbox, повторная доставка ничего не изменит.
// Битый JSON подтверждаем и считаем в payments_broker_dropped_total.
// Транзиентные ошибки возвращаются наверх: nack + requeue.
func (l *PaymentRequestListener) Handle(ctx context.Context, body []byte) error {
	var msg contracts.PaymentRequestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		l.logger.Errorf("malformed payment request message, dropping: %v", err)
		if l.m != nil {
			l.m.Broker.DroppedTotal.WithLabelValues(contracts.QueuePaymentRequests, "malformed").Inc()
		}
		return nil
	}

	err := l.service.ProcessPaymentRequest(ctx, &msg)
	if err == nil {
		return nil
	}

	if appers.IsBusiness(err) {
		l.logger.Warnf("[payment: %s] rejected: %v", msg.PaymentID, err)
		return nil
	}

	return fmt.Errorf("process payment request %s: %w", msg.PaymentID, err)
}
