package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/internal/messaging/outbox"
	"payments/internal/orders/entity"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrderRepo struct {
	orders    map[uuid.UUID]*entity.Order
	createErr error
	updates   []entity.OrderStatus
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*entity.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *entity.Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, appers.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	var res []entity.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.OrderStatus) error {
	o, ok := r.orders[id]
	if !ok {
		return appers.ErrOrderNotFound
	}
	o.Status = status
	r.updates = append(r.updates, status)
	return nil
}

func (r *fakeOrderRepo) HealthCheck(ctx context.Context) error { return nil }

type fakeOutboxRepo struct {
	created   []outbox.Message
	createErr error
}

func (r *fakeOutboxRepo) Create(ctx context.Context, m *outbox.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, *m)
	return nil
}

func (r *fakeOutboxRepo) GetPending(ctx context.Context, batchSize int) ([]outbox.Message, error) {
	return nil, nil
}
func (r *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }
func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return nil
}
func (r *fakeOutboxRepo) PurgeProcessed(ctx context.Context, keepDays int) (int64, error) {
	return 0, nil
}

type fakeTx struct{ calls int }

func (t *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type readyBroker struct{ ready bool }

func (b readyBroker) Ready() bool { return b.ready }

func newTestService(repo *fakeOrderRepo, ob *fakeOutboxRepo) (*ServiceImpl, *fakeTx) {
	tx := &fakeTx{}
	return NewService(repo, ob, tx, readyBroker{ready: true}, zap.NewNop().Sugar()), tx
}

func TestCreateOrderWritesOrderAndOutboxInOneTransaction(t *testing.T) {
	repo := newFakeOrderRepo()
	ob := &fakeOutboxRepo{}
	srv, tx := newTestService(repo, ob)

	order, err := srv.CreateOrder(context.Background(), "user-1", &entity.CreateOrderRequest{
		Price:       99.50,
		Description: "coffee machine",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusNew, order.Status)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, 1, tx.calls)
	require.Len(t, repo.orders, 1)
	require.Len(t, ob.created, 1)

	assert.Equal(t, contracts.TypePaymentRequest, ob.created[0].Type)

	var payload contracts.PaymentRequestMessage
	require.NoError(t, json.Unmarshal(ob.created[0].Content, &payload))
	assert.Equal(t, order.ID, payload.OrderID)
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, 99.50, payload.Amount)
	assert.NotEmpty(t, payload.PaymentID)
}

func TestCreateOrderFailsWhenOutboxWriteFails(t *testing.T) {
	repo := newFakeOrderRepo()
	ob := &fakeOutboxRepo{createErr: errors.New("disk full")}
	srv, _ := newTestService(repo, ob)

	_, err := srv.CreateOrder(context.Background(), "user-1", &entity.CreateOrderRequest{Price: 10})
	require.Error(t, err)
	assert.Empty(t, ob.created)
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	repo := newFakeOrderRepo()
	srv, _ := newTestService(repo, &fakeOutboxRepo{})

	orderID, _ := uuid.NewV4()
	repo.orders[orderID] = &entity.Order{ID: orderID, UserID: "owner", Status: entity.OrderStatusNew}

	order, err := srv.GetOrder(context.Background(), orderID, "owner")
	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID)

	// Чужой заказ неотличим от несуществующего, даже при известном id.
	_, err = srv.GetOrder(context.Background(), orderID, "intruder")
	require.ErrorIs(t, err, appers.ErrOrderNotFound)
}

func TestHandlePaymentStatusCompletedFinishesOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	srv, _ := newTestService(repo, &fakeOutboxRepo{})

	orderID, _ := uuid.NewV4()
	repo.orders[orderID] = &entity.Order{ID: orderID, UserID: "u", Status: entity.OrderStatusNew}

	err := srv.HandlePaymentStatus(context.Background(), &contracts.PaymentStatusMessage{
		PaymentID: "p-1",
		OrderID:   orderID,
		Status:    contracts.PaymentCompleted,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusFinished, repo.orders[orderID].Status)
}

func TestHandlePaymentStatusFailedCancelsOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	srv, _ := newTestService(repo, &fakeOutboxRepo{})

	orderID, _ := uuid.NewV4()
	repo.orders[orderID] = &entity.Order{ID: orderID, UserID: "u", Status: entity.OrderStatusNew}

	err := srv.HandlePaymentStatus(context.Background(), &contracts.PaymentStatusMessage{
		PaymentID:    "p-1",
		OrderID:      orderID,
		Status:       contracts.PaymentFailed,
		ErrorMessage: "Insufficient funds",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, repo.orders[orderID].Status)
}

func TestHandlePaymentStatusIgnoresTerminalOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	srv, _ := newTestService(repo, &fakeOutboxRepo{})

	orderID, _ := uuid.NewV4()
	repo.orders[orderID] = &entity.Order{ID: orderID, UserID: "u", Status: entity.OrderStatusFinished}

	// Повторная доставка противоположного вердикта не меняет терминальный статус.
	err := srv.HandlePaymentStatus(context.Background(), &contracts.PaymentStatusMessage{
		PaymentID: "p-1",
		OrderID:   orderID,
		Status:    contracts.PaymentFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusFinished, repo.orders[orderID].Status)
	assert.Empty(t, repo.updates)
}

func TestHandlePaymentStatusUnknownOrderIsAcked(t *testing.T) {
	repo := newFakeOrderRepo()
	srv, _ := newTestService(repo, &fakeOutboxRepo{})

	orderID, _ := uuid.NewV4()
	err := srv.HandlePaymentStatus(context.Background(), &contracts.PaymentStatusMessage{
		PaymentID: "p-1",
		OrderID:   orderID,
		Status:    contracts.PaymentCompleted,
	})
	// nil, иначе сообщение зациклится в очереди.
	require.NoError(t, err)
}
