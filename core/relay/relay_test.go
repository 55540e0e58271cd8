package relay_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wirehttp/core/relay"
)

// deadClient points at a port nothing listens on, so every command fails fast.
func deadClient(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRelayDeliversLocallyFirst(t *testing.T) {
	t.Parallel()

	local := newFakePusher("a", "b")
	r := relay.New(deadClient(t), local)

	ok, err := r.Send(context.Background(), "a", []byte("hi"), true)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := r.SendMany(context.Background(), []string{"a", "b"}, []byte("both"), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := local.all()
	require.Len(t, got, 3)
	assert.Equal(t, delivery{ids: []string{"a"}, msg: "hi", text: true}, got[0])
	assert.Equal(t, []string{"b"}, got[2].ids)
}

func TestRelayPublishesRemainder(t *testing.T) {
	t.Parallel()

	local := newFakePusher("a")
	r := relay.New(deadClient(t), local, relay.WithChannel("test:push"))

	ok, err := r.Send(context.Background(), "remote", []byte("x"), true)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "publish to test:push")

	n, err := r.SendMany(context.Background(), []string{"a", "remote"}, []byte("x"), true)
	assert.Equal(t, 1, n)
	assert.Error(t, err)

	n, err = r.Broadcast(context.Background(), []byte("all"), true)
	assert.Equal(t, 1, n)
	assert.Error(t, err)
}

func TestRelayOrigin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "node-1", relay.New(nil, newFakePusher(), relay.WithOrigin("node-1")).Origin())
	assert.NotEmpty(t, relay.New(nil, newFakePusher()).Origin())
}

func TestConnectValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  relay.Config
		want error
	}{
		{"empty url", relay.Config{}, relay.ErrEmptyConnectionURL},
		{"bad scheme", relay.Config{ConnectionURL: "http://localhost:6379"}, relay.ErrFailedToParseRedisConnString},
		{"unreachable", relay.Config{
			ConnectionURL:  "redis://127.0.0.1:1/0?dial_timeout=100ms",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: 2 * time.Second,
		}, relay.ErrRedisNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, err := relay.Connect(context.Background(), tt.cfg)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, client)
		})
	}
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	err := relay.Healthcheck(deadClient(t))(context.Background())
	assert.ErrorIs(t, err, relay.ErrHealthcheckFailed)
}

func TestRelayAcrossProcesses(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := relay.Config{ConnectionURL: url, RetryAttempts: 1, ConnectTimeout: 5 * time.Second}
	client, err := relay.Connect(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	channel := "wirehttp:test:" + t.Name()
	first := newFakePusher("a")
	second := newFakePusher("b")
	r1 := relay.New(client, first, relay.WithChannel(channel))
	r2 := relay.New(client, second, relay.WithChannel(channel))

	done := make(chan error, 2)
	go func() { done <- r1.Run(ctx)() }()
	go func() { done <- r2.Run(ctx)() }()

	// Subscriptions are asynchronous; keep publishing until the peer sees one.
	require.Eventually(t, func() bool {
		_, _ = r1.Send(ctx, "b", []byte("hello"), true)
		return len(second.all()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	got := second.all()[0]
	assert.Equal(t, []string{"b"}, got.ids)
	assert.Equal(t, "hello", got.msg)

	n, err := r1.Broadcast(ctx, []byte("all"), true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, func() bool {
		for _, d := range second.all() {
			if d.broadcast {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, first.all(), 1, "a relay must ignore its own publications")

	cancel()
	assert.NoError(t, <-done)
	assert.NoError(t, <-done)
}
