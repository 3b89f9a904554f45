package listener

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/internal/payments/entity"
	"payments/pkg/metrics"

	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubService struct {
	processErr error
	calls      int
}

func (s *stubService) ProcessPaymentRequest(ctx context.Context, msg *contracts.PaymentRequestMessage) error {
	s.calls++
	return s.processErr
}

func (s *stubService) CreateAccount(ctx context.Context, userID string, initialBalance float64) (*entity.Account, error) {
	return nil, nil
}
func (s *stubService) Deposit(ctx context.Context, userID string, req *entity.DepositRequest) (*entity.Transaction, error) {
	return nil, nil
}
func (s *stubService) GetBalance(ctx context.Context, userID string) (*entity.BalanceResponse, error) {
	return nil, nil
}
func (s *stubService) GetTransactionsByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	return nil, nil
}
func (s *stubService) GetPaymentsByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	return nil, nil
}
func (s *stubService) HealthCheck(ctx context.Context) (bool, bool) { return true, true }

func requestBody(t *testing.T) []byte {
	t.Helper()
	orderID, _ := uuid.NewV4()
	body, err := json.Marshal(contracts.PaymentRequestMessage{
		PaymentID: "p-1",
		OrderID:   orderID,
		UserID:    "u-1",
		Amount:    10,
	})
	require.NoError(t, err)
	return body
}

func TestHandleAcksOnSuccess(t *testing.T) {
	svc := &stubService{}
	l := NewPaymentRequestListener(svc, zap.NewNop().Sugar(), nil)

	require.NoError(t, l.Handle(context.Background(), requestBody(t)))
	assert.Equal(t, 1, svc.calls)
}

func TestHandleAcksBusinessRejection(t *testing.T) {
	// Отказ по средствам - терминальный вердикт, requeue бессмысленен.
	svc := &stubService{processErr: appers.ErrInsufficientFunds}
	l := NewPaymentRequestListener(svc, zap.NewNop().Sugar(), nil)

	require.NoError(t, l.Handle(context.Background(), requestBody(t)))
}

func TestHandleNacksTransientFailure(t *testing.T) {
	svc := &stubService{processErr: errors.New("db down")}
	l := NewPaymentRequestListener(svc, zap.NewNop().Sugar(), nil)

	require.Error(t, l.Handle(context.Background(), requestBody(t)))
}

func TestHandleDropsMalformedJSON(t *testing.T) {
	svc := &stubService{}
	m := metrics.New(prometheus.NewRegistry())
	l := NewPaymentRequestListener(svc, zap.NewNop().Sugar(), m)

	require.NoError(t, l.Handle(context.Background(), []byte(`{not json`)))
	assert.Zero(t, svc.calls)

	// Дроп виден оператору через счётчик, а не только в логах.
	dropped := testutil.ToFloat64(m.Broker.DroppedTotal.WithLabelValues(contracts.QueuePaymentRequests, "malformed"))
	assert.Equal(t, 1.0, dropped)
}
