package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/internal/messaging/inbox"
	"payments/internal/messaging/outbox"
	"payments/internal/payments/entity"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAccountRepo struct {
	accounts map[string]*entity.Account // по user_id
	addErr   error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*entity.Account)}
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *entity.Account) error {
	if _, ok := r.accounts[account.UserID]; ok {
		return appers.ErrAccountAlreadyExists
	}
	cp := *account
	r.accounts[account.UserID] = &cp
	return nil
}

func (r *fakeAccountRepo) GetByUserID(ctx context.Context, userID string) (*entity.Account, error) {
	a, ok := r.accounts[userID]
	if !ok {
		return nil, appers.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountRepo) GetForUpdate(ctx context.Context, userID string) (*entity.Account, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *fakeAccountRepo) AddToBalance(ctx context.Context, accountID uuid.UUID, delta float64) error {
	if r.addErr != nil {
		return r.addErr
	}
	for _, a := range r.accounts {
		if a.ID == accountID {
			a.Balance += delta
			return nil
		}
	}
	return appers.ErrAccountNotFound
}

func (r *fakeAccountRepo) HealthCheck(ctx context.Context) error { return nil }

func (r *fakeAccountRepo) balanceOf(userID string) float64 {
	return r.accounts[userID].Balance
}

type fakeTransactionRepo struct {
	transactions map[uuid.UUID]*entity.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{transactions: make(map[uuid.UUID]*entity.Transaction)}
}

func (r *fakeTransactionRepo) Create(ctx context.Context, t *entity.Transaction) error {
	cp := *t
	r.transactions[t.ID] = &cp
	return nil
}

func (r *fakeTransactionRepo) ExistsWithExternalID(ctx context.Context, externalID string) (bool, error) {
	for _, t := range r.transactions {
		if t.ExternalID != nil && *t.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.TransactionStatus) error {
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	t.Status = status
	return nil
}

func (r *fakeTransactionRepo) GetByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	var res []entity.Transaction
	for _, t := range r.transactions {
		if t.UserID == userID {
			res = append(res, *t)
		}
	}
	return res, nil
}

func (r *fakeTransactionRepo) GetPaymentsByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	var res []entity.Transaction
	for _, t := range r.transactions {
		if t.UserID == userID && t.Type == entity.TransactionPayment {
			res = append(res, *t)
		}
	}
	return res, nil
}

func (r *fakeTransactionRepo) single() *entity.Transaction {
	for _, t := range r.transactions {
		return t
	}
	return nil
}

type fakeOutboxRepo struct {
	created []outbox.Message
}

func (r *fakeOutboxRepo) Create(ctx context.Context, m *outbox.Message) error {
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

func (r *fakeOutboxRepo) lastStatus(t *testing.T) contracts.PaymentStatusMessage {
	t.Helper()
	require.NotEmpty(t, r.created)
	last := r.created[len(r.created)-1]
	require.Equal(t, contracts.TypePaymentStatus, last.Type)
	var msg contracts.PaymentStatusMessage
	require.NoError(t, json.Unmarshal(last.Content, &msg))
	return msg
}

type fakeInboxRepo struct {
	records map[string]*inbox.Message // по message_id
}

func newFakeInboxRepo() *fakeInboxRepo {
	return &fakeInboxRepo{records: make(map[string]*inbox.Message)}
}

func (r *fakeInboxRepo) HasProcessed(ctx context.Context, messageID string) (bool, error) {
	m, ok := r.records[messageID]
	return ok && m.Status == inbox.StatusProcessed, nil
}

func (r *fakeInboxRepo) Create(ctx context.Context, m *inbox.Message) error {
	if _, ok := r.records[m.MessageID]; ok {
		return appers.ErrDuplicateMessage
	}
	cp := *m
	r.records[m.MessageID] = &cp
	return nil
}

func (r *fakeInboxRepo) GetPending(ctx context.Context, batchSize int) ([]inbox.Message, error) {
	return nil, nil
}

func (r *fakeInboxRepo) PurgeProcessed(ctx context.Context, keepDays int) (int64, error) {
	return 0, nil
}

type fakeTx struct{}

func (fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type readyBroker struct{}

func (readyBroker) Ready() bool { return true }

type paymentFixture struct {
	accounts     *fakeAccountRepo
	transactions *fakeTransactionRepo
	outbox       *fakeOutboxRepo
	inbox        *fakeInboxRepo
	srv          *ServiceImpl
}

func newFixture() *paymentFixture {
	f := &paymentFixture{
		accounts:     newFakeAccountRepo(),
		transactions: newFakeTransactionRepo(),
		outbox:       &fakeOutboxRepo{},
		inbox:        newFakeInboxRepo(),
	}
	f.srv = NewService(f.accounts, f.transactions, f.outbox, f.inbox, fakeTx{}, readyBroker{}, zap.NewNop().Sugar())
	return f
}

func (f *paymentFixture) withAccount(userID string, balance float64) *paymentFixture {
	id, _ := uuid.NewV4()
	f.accounts.accounts[userID] = &entity.Account{ID: id, UserID: userID, Balance: balance}
	return f
}

func paymentRequest(paymentID, userID string, amount float64) *contracts.PaymentRequestMessage {
	orderID, _ := uuid.NewV4()
	return &contracts.PaymentRequestMessage{
		PaymentID: paymentID,
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
	}
}

func TestProcessPaymentRequestDebitsAndEmitsCompleted(t *testing.T) {
	f := newFixture().withAccount("u-1", 100)

	err := f.srv.ProcessPaymentRequest(context.Background(), paymentRequest("p-1", "u-1", 60))
	require.NoError(t, err)

	assert.Equal(t, 40.0, f.accounts.balanceOf("u-1"))

	trx := f.transactions.single()
	require.NotNil(t, trx)
	assert.Equal(t, entity.TransactionCompleted, trx.Status)
	assert.Equal(t, entity.TransactionPayment, trx.Type)

	status := f.outbox.lastStatus(t)
	assert.Equal(t, contracts.PaymentCompleted, status.Status)
	assert.Equal(t, "p-1", status.PaymentID)

	processed, _ := f.inbox.HasProcessed(context.Background(), "p-1")
	assert.True(t, processed)
}

func TestProcessPaymentRequestInsufficientFunds(t *testing.T) {
	f := newFixture().withAccount("u-1", 30)

	err := f.srv.ProcessPaymentRequest(context.Background(), paymentRequest("p-1", "u-1", 60))
	require.ErrorIs(t, err, appers.ErrInsufficientFunds)
	assert.True(t, appers.IsBusiness(err))

	// Баланс не тронут, журнал хранит отказ, вердикт Failed уже в outbox.
	assert.Equal(t, 30.0, f.accounts.balanceOf("u-1"))

	trx := f.transactions.single()
	require.NotNil(t, trx)
	assert.Equal(t, entity.TransactionFailed, trx.Status)

	status := f.outbox.lastStatus(t)
	assert.Equal(t, contracts.PaymentFailed, status.Status)
	assert.Equal(t, "Insufficient funds", status.ErrorMessage)

	processed, _ := f.inbox.HasProcessed(context.Background(), "p-1")
	assert.True(t, processed)
}

func TestProcessPaymentRequestIsIdempotent(t *testing.T) {
	f := newFixture().withAccount("u-1", 100)
	req := paymentRequest("p-1", "u-1", 60)

	require.NoError(t, f.srv.ProcessPaymentRequest(context.Background(), req))
	require.NoError(t, f.srv.ProcessPaymentRequest(context.Background(), req))
	require.NoError(t, f.srv.ProcessPaymentRequest(context.Background(), req))

	// Списание ровно одно, сколько бы раз сообщение ни доставили.
	assert.Equal(t, 40.0, f.accounts.balanceOf("u-1"))
	assert.Len(t, f.transactions.transactions, 1)
	assert.Len(t, f.outbox.created, 1)
}

func TestProcessPaymentRequestDedupsByExternalID(t *testing.T) {
	f := newFixture().withAccount("u-1", 100)
	req := paymentRequest("p-1", "u-1", 60)

	// Транзакция уже записана, а inbox-отметки нет (частичный сбой в прошлом).
	id, _ := uuid.NewV4()
	externalID := "p-1"
	f.transactions.transactions[id] = &entity.Transaction{
		ID: id, UserID: "u-1", ExternalID: &externalID,
		Type: entity.TransactionPayment, Status: entity.TransactionCompleted,
	}

	require.NoError(t, f.srv.ProcessPaymentRequest(context.Background(), req))
	assert.Equal(t, 100.0, f.accounts.balanceOf("u-1"))
	assert.Len(t, f.transactions.transactions, 1)
}

func TestProcessPaymentRequestUnknownAccountEmitsFailed(t *testing.T) {
	f := newFixture()

	err := f.srv.ProcessPaymentRequest(context.Background(), paymentRequest("p-1", "ghost", 60))
	require.ErrorIs(t, err, appers.ErrAccountNotFound)
	assert.True(t, appers.IsBusiness(err))

	status := f.outbox.lastStatus(t)
	assert.Equal(t, contracts.PaymentFailed, status.Status)
	assert.Equal(t, "Account not found", status.ErrorMessage)

	// Отметка в inbox есть: повторная доставка того же запроса - no-op.
	processed, _ := f.inbox.HasProcessed(context.Background(), "p-1")
	assert.True(t, processed)

	require.NoError(t, f.srv.ProcessPaymentRequest(context.Background(), paymentRequest("p-1", "ghost", 60)))
	assert.Len(t, f.outbox.created, 1)
}

func TestProcessPaymentRequestNeverOverdraws(t *testing.T) {
	cases := []struct {
		name    string
		balance float64
		amount  float64
		debited bool
	}{
		{"exact balance", 50, 50, true},
		{"one cent short", 49.99, 50, false},
		{"one cent left", 50.01, 50, true},
		{"zero balance", 0, 0.01, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture().withAccount("u-1", tc.balance)

			err := f.srv.ProcessPaymentRequest(context.Background(), paymentRequest("p-1", "u-1", tc.amount))

			if tc.debited {
				require.NoError(t, err)
				assert.InDelta(t, tc.balance-tc.amount, f.accounts.balanceOf("u-1"), 1e-9)
			} else {
				require.ErrorIs(t, err, appers.ErrInsufficientFunds)
				assert.Equal(t, tc.balance, f.accounts.balanceOf("u-1"))
			}
			assert.GreaterOrEqual(t, f.accounts.balanceOf("u-1"), 0.0)
		})
	}
}
