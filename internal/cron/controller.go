package cron

import (
	"context"
	"fmt"

	"payments/pkg/config"

	"go.uber.org/zap"
)

type Controller struct {
	scheduler *Scheduler
	logger    *zap.SugaredLogger
}

func NewController(ctx context.Context, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		scheduler: NewScheduler(ctx),
		logger:    logger,
	}
}

// RegisterPurgeJob регистрирует очистку леджера по расписанию из конфига.
// Поддерживает cron-формат ("0 0 3 * * *") и интервалы ("@every 1h").
func (c *Controller) RegisterPurgeJob(name string, purger Purger, conf config.Cron) error {
	spec := conf.PurgeSchedule
	if spec == "" {
		spec = "@every 1h"
		c.logger.Warnf("Расписание очистки не указано, используется интервал по умолчанию: %s", spec)
	}

	job := NewPurgeJob(name, purger, conf.KeepDays, c.logger)

	entryID, err := c.scheduler.Add(spec, job)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать очистку %s: %w", name, err)
	}

	c.logger.Infof("Очистка %s зарегистрирована с ID: %d, расписание: %s", name, entryID, spec)
	return nil
}

// Start запускает планировщик задач
func (c *Controller) Start() {
	c.logger.Info("Запуск планировщика cron задач")
	c.scheduler.Start()
}

// Stop останавливает планировщик задач
func (c *Controller) Stop() {
	c.logger.Info("Остановка планировщика cron задач")
	c.scheduler.Stop()
	c.logger.Info("Планировщик cron задач остановлен")
}
