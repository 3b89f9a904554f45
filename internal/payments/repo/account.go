package repo

import (
	"context"
	"errors"
	"fmt"

	"payments/internal/appers"
	"payments/internal/payments/entity"
	"payments/pkg/db"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type AccountRepo interface {
	Create(ctx context.Context, account *entity.Account) error
	GetByUserID(ctx context.Context, userID string) (*entity.Account, error)
	// GetForUpdate берёт строку под row-lock (SELECT ... FOR UPDATE);
	// обязан вызываться внутри WithinTransaction.
	GetForUpdate(ctx context.Context, userID string) (*entity.Account, error)
	AddToBalance(ctx context.Context, accountID uuid.UUID, delta float64) error
	HealthCheck(ctx context.Context) error
}

type AccountRepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewAccountRepo(db db.DB, logger *zap.SugaredLogger) *AccountRepoImpl {
	return &AccountRepoImpl{db: db, logger: logger}
}

func (r *AccountRepoImpl) Create(ctx context.Context, account *entity.Account) error {
	r.logger.Debugf("[account: %s] insert for user %s", account.ID, account.UserID)

	_, err := r.db.Exec(ctx, insertAccount,
		account.ID, account.UserID, account.Balance, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return appers.ErrAccountAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepoImpl) GetByUserID(ctx context.Context, userID string) (*entity.Account, error) {
	return r.scanAccount(ctx, getAccountByUserID, userID)
}

func (r *AccountRepoImpl) GetForUpdate(ctx context.Context, userID string) (*entity.Account, error) {
	return r.scanAccount(ctx, getAccountForUpdate, userID)
}

func (r *AccountRepoImpl) scanAccount(ctx context.Context, query, userID string) (*entity.Account, error) {
	var a entity.Account

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&a.ID, &a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appers.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &a, nil
}

func (r *AccountRepoImpl) AddToBalance(ctx context.Context, accountID uuid.UUID, delta float64) error {
	tag, err := r.db.Exec(ctx, addToBalance, accountID, delta)
	if err != nil {
		return fmt.Errorf("add to balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return appers.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepoImpl) HealthCheck(ctx context.Context) error {
	return r.db.QueryRow(ctx, "SELECT 1").Scan(new(int))
}
