package broker

import (
	"context"
	"testing"
	"time"

	"payments/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNextBackoffDoublesUpToCap(t *testing.T) {
	limit := 30 * time.Second

	var got []time.Duration
	backoff := 2 * time.Second
	for i := 0; i < 6; i++ {
		got = append(got, backoff)
		backoff = nextBackoff(backoff, limit)
	}

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	assert.Equal(t, want, got)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestPublishWithoutConnectionReturnsErrBrokerUnavailable(t *testing.T) {
	r := NewRabbit(config.Rabbit{}, zap.NewNop().Sugar(), nil)

	err := r.Publish(context.Background(), "q", []byte(`{}`))
	require.ErrorIs(t, err, ErrBrokerUnavailable)
	assert.False(t, r.Ready())
}

func TestSubscribeWithoutConnectionKeepsRegistration(t *testing.T) {
	r := NewRabbit(config.Rabbit{}, zap.NewNop().Sugar(), nil)

	err := r.Subscribe(context.Background(), "q", func(ctx context.Context, body []byte) error {
		return nil
	})
	require.ErrorIs(t, err, ErrBrokerUnavailable)

	// Обработчик остаётся в карте подписок и поднимется после reconnect.
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Contains(t, r.subs, "q")
}

func TestNewRabbitDefaults(t *testing.T) {
	r := NewRabbit(config.Rabbit{}, zap.NewNop().Sugar(), nil)

	assert.Equal(t, 1, r.conf.MaxAttempts)
	assert.Equal(t, 2*time.Second, r.conf.BackoffBase)
	assert.Equal(t, 30*time.Second, r.conf.BackoffCap)
}
