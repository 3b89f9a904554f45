package db

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	retryAttempts    = 3
	retryBackoffBase = 100 * time.Millisecond
	retryBackoffCap  = 2 * time.Second
)

// IsTransient определяет, является ли ошибка восстановимым инфраструктурным сбоем:
// обрыв соединения, serialization failure, deadlock. Бизнес-ошибки и ошибки
// программирования сюда не попадают.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "40001": // serialization_failure
			return true
		case pgErr.Code == "40P01": // deadlock_detected
			return true
		case pgErr.Code == "57P03": // cannot_connect_now
			return true
		}
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// WithRetry повторяет fn при транзиентных сбоях БД. Любая другая ошибка
// возвращается сразу - retry не должен маскировать бизнес-результат.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			if err := SleepCtx(ctx, NextBackoffWithJitter(attempt-1, retryBackoffBase, retryBackoffCap)); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil || !IsTransient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func NextBackoffWithJitter(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	d := base << attempt
	if d > limit || d <= 0 {
		d = limit
	}

	jitter := time.Duration(rand.Int63n(int64(d/2) + 1))

	return d/2 + jitter
}

func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer func() {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
	}()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
