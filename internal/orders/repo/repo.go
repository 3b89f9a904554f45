package repo

import (
	"context"
	"errors"
	"fmt"

	"payments/internal/appers"
	"payments/internal/orders/entity"
	"payments/pkg/db"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type Repo interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	GetByUser(ctx context.Context, userID string) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.OrderStatus) error
	HealthCheck(ctx context.Context) error
}

type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewRepo(db db.DB, logger *zap.SugaredLogger) *RepoImpl {
	return &RepoImpl{db: db, logger: logger}
}

func (r *RepoImpl) Create(ctx context.Context, order *entity.Order) error {
	r.logger.Debugf("[order: %s] insert", order.ID)

	_, err := r.db.Exec(ctx, insertOrder,
		order.ID, order.UserID, order.Price, order.Description,
		string(order.Status), order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *RepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var o entity.Order
	var status string

	err := r.db.QueryRow(ctx, getOrderByID, id).Scan(
		&o.ID, &o.UserID, &o.Price, &o.Description, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appers.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	o.Status = entity.OrderStatus(status)
	return &o, nil
}

func (r *RepoImpl) GetByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	rows, err := r.db.Query(ctx, getOrdersByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("get orders by user: %w", err)
	}
	defer rows.Close()

	var res []entity.Order
	for rows.Next() {
		var o entity.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.Price, &o.Description,
			&status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = entity.OrderStatus(status)
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders rows err: %w", err)
	}

	return res, nil
}

func (r *RepoImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.OrderStatus) error {
	r.logger.Debugf("[order: %s] update status -> %s", id, status)

	tag, err := r.db.Exec(ctx, updateOrderStatus, id, string(status))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return appers.ErrOrderNotFound
	}
	return nil
}

func (r *RepoImpl) HealthCheck(ctx context.Context) error {
	return r.db.QueryRow(ctx, "SELECT 1").Scan(new(int))
}
