package broker

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/internal/model"
)

// newTestRedis подключается к REDIS_URL; без него тест пропускается.
func newTestRedis(t *testing.T) (*Redis, *redis.Client) {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	cli := redis.NewClient(opt)
	t.Cleanup(func() { cli.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	b := NewRedis(cli)
	b.channel = fmt.Sprintf("%s:test:%d", Channel, time.Now().UnixNano())
	return b, cli
}

func startConsume(t *testing.T, b *Redis, cli *redis.Client, fn func(model.Message)) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Consume(ctx, fn) }()
	require.Eventually(t, func() bool {
		return cli.PubSubNumSub(context.Background(), b.channel).Val()[b.channel] == 1
	}, 2*time.Second, 10*time.Millisecond)
	return cancel, done
}

func TestRedisPublishConsumeRoundTrip(t *testing.T) {
	b, cli := newTestRedis(t)
	got := make(chan model.Message, 1)
	cancel, done := startConsume(t, b, cli, func(m model.Message) { got <- m })
	defer cancel()

	sent := &model.Message{
		ID:        41,
		Content:   "radiator is cold",
		Images:    []string{"/api/files/a.png", "/api/files/b.jpg"},
		CreatedAt: time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC),
		Sender:    model.Party{ID: 42, DisplayName: "Anna", Role: model.RoleTenant},
		Receiver:  model.Party{ID: 1, DisplayName: "Admin", Role: model.RoleAdmin},
	}
	require.NoError(t, b.Publish(context.Background(), sent))

	select {
	case m := <-got:
		assert.Equal(t, sent.ID, m.ID)
		assert.True(t, sent.CreatedAt.Equal(m.CreatedAt))
		assert.Equal(t, sent.Images, m.Images)
		assert.Equal(t, sent.Sender, m.Sender)
		assert.Equal(t, sent.Receiver, m.Receiver)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

func TestRedisConsumeSkipsBadPayload(t *testing.T) {
	b, cli := newTestRedis(t)
	got := make(chan int64, 2)
	cancel, _ := startConsume(t, b, cli, func(m model.Message) { got <- m.ID })
	defer cancel()

	ctx := context.Background()
	require.NoError(t, cli.Publish(ctx, b.channel, "not json").Err())
	require.NoError(t, b.Publish(ctx, &model.Message{ID: 7}))

	select {
	case id := <-got:
		assert.Equal(t, int64(7), id)
	case <-time.After(2 * time.Second):
		t.Fatal("valid message after garbage not delivered")
	}
}
