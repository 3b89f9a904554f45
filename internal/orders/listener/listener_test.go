package listener

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"payments/internal/messaging/contracts"
	"payments/internal/orders/entity"
	"payments/pkg/metrics"

	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubService struct {
	handleErr error
	received  []contracts.PaymentStatusMessage
}

func (s *stubService) HandlePaymentStatus(ctx context.Context, msg *contracts.PaymentStatusMessage) error {
	s.received = append(s.received, *msg)
	return s.handleErr
}

func (s *stubService) CreateOrder(ctx context.Context, userID string, req *entity.CreateOrderRequest) (*entity.Order, error) {
	return nil, nil
}
func (s *stubService) GetOrder(ctx context.Context, id uuid.UUID, userID string) (*entity.Order, error) {
	return nil, nil
}
func (s *stubService) GetOrdersByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	return nil, nil
}
func (s *stubService) HealthCheck(ctx context.Context) (bool, bool) { return true, true }

func TestHandlePassesStatusToService(t *testing.T) {
	svc := &stubService{}
	l := NewPaymentStatusListener(svc, zap.NewNop().Sugar(), nil)

	orderID, _ := uuid.NewV4()
	body, err := json.Marshal(contracts.PaymentStatusMessage{
		PaymentID: "p-1",
		OrderID:   orderID,
		Status:    contracts.PaymentCompleted,
	})
	require.NoError(t, err)

	require.NoError(t, l.Handle(context.Background(), body))
	require.Len(t, svc.received, 1)
	assert.Equal(t, orderID, svc.received[0].OrderID)
}

func TestHandleReturnsServiceError(t *testing.T) {
	svc := &stubService{handleErr: errors.New("db down")}
	l := NewPaymentStatusListener(svc, zap.NewNop().Sugar(), nil)

	orderID, _ := uuid.NewV4()
	body, _ := json.Marshal(contracts.PaymentStatusMessage{OrderID: orderID, Status: contracts.PaymentFailed})

	require.Error(t, l.Handle(context.Background(), body))
}

func TestHandleDropsMalformedJSON(t *testing.T) {
	svc := &stubService{}
	m := metrics.New(prometheus.NewRegistry())
	l := NewPaymentStatusListener(svc, zap.NewNop().Sugar(), m)

	require.NoError(t, l.Handle(context.Background(), []byte(`garbage`)))
	assert.Empty(t, svc.received)

	// Дроп виден оператору через счётчик, а не только в логах.
	dropped := testutil.ToFloat64(m.Broker.DroppedTotal.WithLabelValues(contracts.QueuePaymentStatuses, "malformed"))
	assert.Equal(t, 1.0, dropped)
}
