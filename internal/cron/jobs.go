package cron

import (
	"context"

	"go.uber.org/zap"
)

// Purger чистит обработанные записи леджера старше keepDays.
// Failed записи не удаляются никогда.
type Purger interface {
	PurgeProcessed(ctx context.Context, keepDays int) (int64, error)
}

// PurgeJob - задача очистки outbox/inbox леджеров.
type PurgeJob struct {
	name     string
	purger   Purger
	keepDays int
	logger   *zap.SugaredLogger
}

func NewPurgeJob(name string, purger Purger, keepDays int, logger *zap.SugaredLogger) *PurgeJob {
	return &PurgeJob{
		name:     name,
		purger:   purger,
		keepDays: keepDays,
		logger:   logger,
	}
}

func (j *PurgeJob) Run(ctx context.Context) {
	j.logger.Infof("Запуск очистки %s (старше %d дней)", j.name, j.keepDays)

	defer func() {
		if r := recover(); r != nil {
			j.logger.Errorf("Паника при очистке %s: %v", j.name, r)
		}
	}()

	deleted, err := j.purger.PurgeProcessed(ctx, j.keepDays)
	if err != nil {
		j.logger.Errorf("Очистка %s завершилась ошибкой: %v", j.name, err)
		return
	}
	j.logger.Infof("Очистка %s завершена, удалено записей: %d", j.name, deleted)
}
