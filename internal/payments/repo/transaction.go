package repo

import (
	"context"
	"fmt"

	"payments/internal/payments/entity"
	"payments/pkg/db"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type TransactionRepo interface {
	Create(ctx context.Context, t *entity.Transaction) error
	// ExistsWithExternalID - вторая линия дедупликации после inbox:
	// транзакция с этим PaymentId уже записана.
	ExistsWithExternalID(ctx context.Context, externalID string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.TransactionStatus) error
	GetByUser(ctx context.Context, userID string) ([]entity.Transaction, error)
	GetPaymentsByUser(ctx context.Context, userID string) ([]entity.Transaction, error)
}

type TransactionRepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewTransactionRepo(db db.DB, logger *zap.SugaredLogger) *TransactionRepoImpl {
	return &TransactionRepoImpl{db: db, logger: logger}
}

func (r *TransactionRepoImpl) Create(ctx context.Context, t *entity.Transaction) error {
	r.logger.Debugf("[transaction: %s] insert %s %s", t.ID, t.Type, t.Status)

	_, err := r.db.Exec(ctx, insertTransaction,
		t.ID, t.AccountID, t.UserID, t.Amount, string(t.Type), string(t.Status),
		t.Description, t.OrderID, t.ExternalID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepoImpl) ExistsWithExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, existsTransactionWithExternalID, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists transaction: %w", err)
	}
	return exists, nil
}

func (r *TransactionRepoImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.TransactionStatus) error {
	r.logger.Debugf("[transaction: %s] update status -> %s", id, status)

	_, err := r.db.Exec(ctx, updateTransactionStatus, id, string(status))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return nil
}

func (r *TransactionRepoImpl) GetByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	return r.scanTransactions(ctx, getTransactionsByUser, userID)
}

func (r *TransactionRepoImpl) GetPaymentsByUser(ctx context.Context, userID string) ([]entity.Transaction, error) {
	return r.scanTransactions(ctx, getPaymentsByUser, userID)
}

func (r *TransactionRepoImpl) scanTransactions(ctx context.Context, query, userID string) ([]entity.Transaction, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	defer rows.Close()

	var res []entity.Transaction
	for rows.Next() {
		var t entity.Transaction
		var tType, status string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.UserID, &t.Amount, &tType, &status,
			&t.Description, &t.OrderID, &t.ExternalID, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = entity.TransactionType(tType)
		t.Status = entity.TransactionStatus(status)
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transactions rows err: %w", err)
	}

	return res, nil
}
