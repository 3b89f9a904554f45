package inbox

import (
	"context"
	"errors"
	"fmt"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/pkg/db"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const defaultBatchSize = 10

type Repo interface {
	// HasProcessed - дедуп-проверка; обязана выполняться до бизнес-обработки
	// входящего сообщения.
	HasProcessed(ctx context.Context, messageID string) (bool, error)
	// Create сохраняет запись с тем статусом, который выставил вызывающий код.
	// Конфликт по message_id возвращается как ErrDuplicateMessage.
	Create(ctx context.Context, m *Message) error
	GetPending(ctx context.Context, batchSize int) ([]Message, error)
	PurgeProcessed(ctx context.Context, keepDays int) (int64, error)
}

type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewRepo(db db.DB, logger *zap.SugaredLogger) *RepoImpl {
	return &RepoImpl{db: db, logger: logger}
}

func (r *RepoImpl) HasProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, hasProcessed, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("inbox has processed: %w", err)
	}
	return exists, nil
}

func (r *RepoImpl) Create(ctx context.Context, m *Message) error {
	r.logger.Debugf("[inbox: %s] insert %s", m.MessageID, m.Type)

	_, err := r.db.Exec(ctx, insertMessage,
		m.ID, m.MessageID, string(m.Type), []byte(m.Content),
		m.ReceivedAt, m.ProcessedAt, string(m.Status))
	if err != nil {
		if isDuplicateKeyError(err) {
			r.logger.Warnf("[inbox: %s] duplicate inbox record", m.MessageID)
			return appers.ErrDuplicateMessage
		}
		return fmt.Errorf("insert inbox message: %w", err)
	}
	return nil
}

func (r *RepoImpl) GetPending(ctx context.Context, batchSize int) ([]Message, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	rows, err := r.db.Query(ctx, getPending, batchSize)
	if err != nil {
		return nil, fmt.Errorf("get pending inbox: %w", err)
	}
	defer rows.Close()

	var res []Message
	for rows.Next() {
		var m Message
		var status, mType string
		if err := rows.Scan(&m.ID, &m.MessageID, &mType, &m.Content,
			&m.ReceivedAt, &m.ProcessedAt, &status, &m.Error); err != nil {
			return nil, fmt.Errorf("scan inbox message: %w", err)
		}
		m.Type = contracts.MessageType(mType)
		m.Status = Status(status)
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending inbox rows err: %w", err)
	}

	return res, nil
}

func (r *RepoImpl) PurgeProcessed(ctx context.Context, keepDays int) (int64, error) {
	tag, err := r.db.Exec(ctx, purgeProcessed, keepDays)
	if err != nil {
		return 0, fmt.Errorf("purge inbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

// isDuplicateKeyError проверяет SQLSTATE 23505 (unique_violation)
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
