package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"payments/pkg/config"
	"payments/pkg/db"
	"payments/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrBrokerUnavailable возвращается из Publish/Subscribe пока нет живого
// соединения. Успешный возврат Publish означает, что сообщение реально ушло
// брокеру - "тихого" no-op режима здесь нет.
var ErrBrokerUnavailable = errors.New("broker is not connected")

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Handler обрабатывает одно сообщение. nil -> ack, ошибка -> nack с requeue,
// брокер доставит сообщение повторно (at-least-once).
type Handler func(ctx context.Context, body []byte) error

type Client interface {
	Publish(ctx context.Context, queue string, body []byte) error
	Subscribe(ctx context.Context, queue string, handler Handler) error
	Ready() bool
}

type Rabbit struct {
	conf   config.Rabbit
	logger *zap.SugaredLogger
	m      *metrics.Metrics

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel // канал публикации
	subs   map[string]Handler
	closed bool
	state  atomic.Int32
}

func NewRabbit(conf config.Rabbit, logger *zap.SugaredLogger, m *metrics.Metrics) *Rabbit {
	if conf.MaxAttempts < 1 {
		conf.MaxAttempts = 1
	}
	if conf.BackoffBase <= 0 {
		conf.BackoffBase = 2 * time.Second
	}
	if conf.BackoffCap <= 0 {
		conf.BackoffCap = 30 * time.Second
	}

	return &Rabbit{
		conf:   conf,
		logger: logger,
		m:      m,
		subs:   make(map[string]Handler),
	}
}

// Connect пытается установить соединение с ограниченным экспоненциальным
// backoff. После исчерпания попыток клиент переходит в degraded режим и
// ошибки не возвращает: сервис продолжает работать без брокера, а
// Publish/Subscribe будут отвечать ErrBrokerUnavailable.
func (r *Rabbit) Connect(ctx context.Context) error {
	r.setState(StateConnecting)

	backoff := r.conf.BackoffBase
	for attempt := 1; attempt <= r.conf.MaxAttempts; attempt++ {
		r.logger.Infof("подключение к RabbitMQ %s, попытка %d/%d", r.conf.URL, attempt, r.conf.MaxAttempts)

		err := r.connectOnce(ctx)
		if err == nil {
			r.setState(StateConnected)
			if r.m != nil {
				r.m.Broker.ReconnectsTotal.WithLabelValues("connected").Inc()
			}
			r.logger.Info("соединение с RabbitMQ установлено")

			go r.watch(ctx)
			return nil
		}

		r.logger.Warnf("не удалось подключиться к RabbitMQ: %v, повтор через %s", err, backoff)

		if attempt == r.conf.MaxAttempts {
			break
		}
		if serr := db.SleepCtx(ctx, backoff); serr != nil {
			r.setState(StateDisconnected)
			return serr
		}
		backoff = nextBackoff(backoff, r.conf.BackoffCap)
	}

	r.setState(StateDegraded)
	if r.m != nil {
		r.m.Broker.ReconnectsTotal.WithLabelValues("degraded").Inc()
	}
	r.logger.Errorf("RabbitMQ недоступен после %d попыток, работаем в degraded режиме", r.conf.MaxAttempts)

	return nil
}

func (r *Rabbit) connectOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := amqp.Dial(r.conf.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	subs := make(map[string]Handler, len(r.subs))
	for q, h := range r.subs {
		subs[q] = h
	}
	r.mu.Unlock()

	// Восстанавливаем подписки после reconnect.
	for queue, handler := range subs {
		if err := r.startConsumer(ctx, queue, handler); err != nil {
			r.logger.Errorf("не удалось восстановить подписку на %s: %v", queue, err)
		}
	}

	return nil
}

// watch следит за закрытием соединения и запускает повторное подключение.
func (r *Rabbit) watch(ctx context.Context) {
	r.mu.Lock()
	if r.conn == nil {
		r.mu.Unlock()
		return
	}
	closeCh := r.conn.NotifyClose(make(chan *amqp.Error, 1))
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case amqpErr, ok := <-closeCh:
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed || !ok {
			return
		}

		r.setState(StateDisconnected)
		if r.m != nil {
			r.m.Broker.ReconnectsTotal.WithLabelValues("lost").Inc()
		}
		r.logger.Warnf("соединение с RabbitMQ потеряно: %v", amqpErr)

		// Connect сам переведёт в Connected или Degraded и перезапустит watch.
		_ = r.Connect(ctx)
	}
}

func (r *Rabbit) Ready() bool {
	return r.State() == StateConnected
}

func (r *Rabbit) State() State {
	return State(r.state.Load())
}

func (r *Rabbit) setState(s State) {
	r.state.Store(int32(s))
	if r.m != nil {
		r.m.Broker.ConnectionState.Set(float64(s))
	}
}

func (r *Rabbit) HealthCheck(ctx context.Context) error {
	if !r.Ready() {
		return ErrBrokerUnavailable
	}
	return nil
}

// Publish отправляет persistent сообщение в durable очередь.
func (r *Rabbit) Publish(ctx context.Context, queue string, body []byte) error {
	if !r.Ready() {
		if r.m != nil {
			r.m.Broker.PublishTotal.WithLabelValues(queue, "unavailable").Inc()
		}
		return ErrBrokerUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		return ErrBrokerUnavailable
	}

	if err := declareQueue(r.ch, queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	t0 := time.Now()
	err := r.ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)

	if r.m != nil {
		res := "ok"
		if err != nil {
			res = "error"
		}
		r.m.Broker.PublishTotal.WithLabelValues(queue, res).Inc()
		r.m.Broker.PublishLatencySeconds.WithLabelValues(queue, res).Observe(time.Since(t0).Seconds())
	}

	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	r.logger.Debugf("сообщение опубликовано в очередь %s", queue)
	return nil
}

// Subscribe регистрирует обработчик очереди. Подписка переживает reconnect:
// после восстановления соединения consumer создаётся заново.
func (r *Rabbit) Subscribe(ctx context.Context, queue string, handler Handler) error {
	r.mu.Lock()
	r.subs[queue] = handler
	r.mu.Unlock()

	if !r.Ready() {
		return ErrBrokerUnavailable
	}

	return r.startConsumer(ctx, queue, handler)
}

func (r *Rabbit) startConsumer(ctx context.Context, queue string, handler Handler) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	if conn == nil {
		return ErrBrokerUnavailable
	}

	// Отдельный канал на очередь: prefetch 1 действует на очередь, а разные
	// очереди обрабатываются независимо.
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer channel: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("qos: %w", err)
	}

	if err := declareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack выключен: подтверждаем только после обработки
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	r.logger.Infof("подписка на очередь %s активна", queue)

	go r.consumeLoop(ctx, queue, deliveries, handler)

	return nil
}

func (r *Rabbit) consumeLoop(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				// Канал закрыт - после reconnect watch поднимет consumer заново.
				return
			}

			start := time.Now()
			err := handler(ctx, d.Body)
			if r.m != nil {
				r.m.Broker.ConsumeDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
			}

			if err != nil {
				r.logger.Errorf("ошибка обработки сообщения из %s: %v, nack с requeue", queue, err)
				if r.m != nil {
					r.m.Broker.ConsumeTotal.WithLabelValues(queue, "nack").Inc()
				}
				_ = d.Nack(false, true)
				continue
			}

			if r.m != nil {
				r.m.Broker.ConsumeTotal.WithLabelValues(queue, "ack").Inc()
			}
			_ = d.Ack(false)
		}
	}
}

func (r *Rabbit) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.state.Store(int32(StateDisconnected))

	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}
