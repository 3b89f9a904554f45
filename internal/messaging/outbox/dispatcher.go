package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payments/internal/appers"
	"payments/internal/messaging/contracts"
	"payments/pkg/broker"
	"payments/pkg/config"
	"payments/pkg/metrics"

	"go.uber.org/zap"
)

// Handler публикует одно outbox-сообщение. Каждый тип сообщения владеет
// своим обработчиком в таблице диспетчера.
type Handler func(ctx context.Context, m Message) error

// Dispatcher - поллер outbox-таблицы. Предположение по конкурентности:
// на одну таблицу активен ровно один экземпляр; claim/lease на строках нет,
// два параллельных диспетчера приведут к двойной публикации.
type Dispatcher struct {
	repo     Repo
	handlers map[contracts.MessageType]Handler
	conf     config.Outbox
	logger   *zap.SugaredLogger
	m        *metrics.Metrics
}

func NewDispatcher(repo Repo, conf config.Outbox, logger *zap.SugaredLogger, m *metrics.Metrics) *Dispatcher {
	if conf.PollInterval <= 0 {
		conf.PollInterval = 5 * time.Second
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = defaultBatchSize
	}

	return &Dispatcher{
		repo:     repo,
		handlers: make(map[contracts.MessageType]Handler),
		conf:     conf,
		logger:   logger,
		m:        m,
	}
}

func (d *Dispatcher) Register(t contracts.MessageType, h Handler) {
	d.handlers[t] = h
}

// Run крутит цикл опроса до отмены контекста. Сигнал отмены проверяется
// раз на итерацию; обработка сообщения до конца не прерывается.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Infow("outbox dispatcher started",
		"interval", d.conf.PollInterval.String(), "batch", d.conf.BatchSize)

	ticker := time.NewTicker(d.conf.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopping")
			return
		case <-ticker.C:
			d.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch обрабатывает одну пачку Pending-сообщений (экспортирован для тестов).
func (d *Dispatcher) ProcessBatch(ctx context.Context) {
	t0 := time.Now()

	msgs, err := d.repo.GetPending(ctx, d.conf.BatchSize)
	if err != nil {
		d.logger.Errorw("get pending outbox failed", "err", err)
		return
	}

	if d.m != nil {
		d.m.Outbox.PendingBatchSize.Observe(float64(len(msgs)))
	}
	if len(msgs) == 0 {
		return
	}

	d.logger.Debugf("found %d pending outbox messages", len(msgs))

	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		d.processOne(ctx, msg)
	}

	if d.m != nil {
		d.m.Outbox.PollDurationSeconds.Observe(time.Since(t0).Seconds())
	}
}

// processOne: успех -> Processed; транзиентный сбой (брокер недоступен,
// БД моргнула) -> строка остаётся Pending до следующего тика; всё остальное ->
// Failed, терминально. Ошибка одного сообщения не блокирует остальные в пачке.
func (d *Dispatcher) processOne(ctx context.Context, m Message) {
	h, ok := d.handlers[m.Type]
	if !ok {
		d.logger.Warnf("[outbox: %s] unknown message type: %s", m.ID, m.Type)
		d.fail(ctx, m, fmt.Sprintf("unknown message type: %s", m.Type))
		return
	}

	err := h(ctx, m)
	switch {
	case err == nil:
		if merr := d.repo.MarkProcessed(ctx, m.ID); merr != nil {
			// Сообщение уже ушло; статус догоним на следующем тике.
			d.logger.Errorf("[outbox: %s] mark processed failed: %v", m.ID, merr)
			return
		}
		d.logger.Infof("[outbox: %s] dispatched %s", m.ID, m.Type)
		d.count(m.Type, "processed")

	case isTransient(err):
		d.logger.Warnf("[outbox: %s] transient dispatch failure, will retry: %v", m.ID, err)
		d.count(m.Type, "deferred")

	default:
		d.logger.Errorf("[outbox: %s] dispatch failed: %v", m.ID, err)
		d.fail(ctx, m, err.Error())
	}
}

func (d *Dispatcher) fail(ctx context.Context, m Message, reason string) {
	if err := d.repo.MarkFailed(ctx, m.ID, reason); err != nil {
		d.logger.Errorf("[outbox: %s] mark failed failed: %v", m.ID, err)
		return
	}
	d.count(m.Type, "failed")
}

func (d *Dispatcher) count(t contracts.MessageType, result string) {
	if d.m != nil {
		d.m.Outbox.DispatchedTotal.WithLabelValues(string(t), result).Inc()
	}
}

func isTransient(err error) bool {
	return errors.Is(err, broker.ErrBrokerUnavailable) || appers.IsTransient(err)
}

// JSONHandler строит обработчик для типа T: декодирует payload (проверка
// схемы до публикации) и отправляет его в свою очередь.
func JSONHandler[T any](b broker.Client, queue string) Handler {
	return func(ctx context.Context, m Message) error {
		var payload T
		if err := json.Unmarshal(m.Content, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", m.Type, err)
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", m.Type, err)
		}

		return b.Publish(ctx, queue, body)
	}
}
