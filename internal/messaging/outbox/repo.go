package outbox

import (
	"context"
	"fmt"

	"payments/internal/messaging/contracts"
	"payments/pkg/db"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const defaultBatchSize = 10

type Repo interface {
	// Create записывает сообщение в outbox. Контракт атомарности: вызов обязан
	// выполняться внутри той же WithinTransaction, что и доменная запись,
	// которую сообщение анонсирует. Система типов это не контролирует -
	// только дисциплина вызывающего кода.
	Create(ctx context.Context, m *Message) error
	GetPending(ctx context.Context, batchSize int) ([]Message, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	PurgeProcessed(ctx context.Context, keepDays int) (int64, error)
}

type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewRepo(db db.DB, logger *zap.SugaredLogger) *RepoImpl {
	return &RepoImpl{db: db, logger: logger}
}

func (r *RepoImpl) Create(ctx context.Context, m *Message) error {
	r.logger.Debugf("[outbox: %s] insert %s", m.ID, m.Type)

	_, err := r.db.Exec(ctx, insertMessage,
		m.ID, string(m.Type), []byte(m.Content), m.CreatedAt, string(m.Status))
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// GetPending возвращает Pending-сообщения, старые первыми.
func (r *RepoImpl) GetPending(ctx context.Context, batchSize int) ([]Message, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	rows, err := r.db.Query(ctx, getPending, batchSize)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox: %w", err)
	}
	defer rows.Close()

	var res []Message
	for rows.Next() {
		var m Message
		var status, mType string
		if err := rows.Scan(&m.ID, &mType, &m.Content, &m.CreatedAt, &m.ProcessedAt, &status, &m.Error); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		m.Type = contracts.MessageType(mType)
		m.Status = Status(status)
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending rows err: %w", err)
	}

	return res, nil
}

// MarkProcessed - идемпотентный терминальный переход, под retry от
// транзиентных сбоев БД.
func (r *RepoImpl) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return db.WithRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, markProcessed, id)
		if err != nil {
			return fmt.Errorf("outbox mark processed: %w", err)
		}
		return nil
	})
}

func (r *RepoImpl) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return db.WithRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, markFailed, id, errMsg)
		if err != nil {
			return fmt.Errorf("outbox mark failed: %w", err)
		}
		return nil
	})
}

// PurgeProcessed удаляет обработанные записи старше keepDays. Failed записи
// не трогаем - они остаются видимыми для оператора.
func (r *RepoImpl) PurgeProcessed(ctx context.Context, keepDays int) (int64, error) {
	tag, err := r.db.Exec(ctx, purgeProcessed, keepDays)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
