package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

// Redis — брокер на Redis pub/sub. Клиент принадлежит вызывающему и здесь не закрывается.
type Redis struct {
	cli     *redis.Client
	channel string
}

func NewRedis(cli *redis.Client) *Redis {
	return &Redis{cli: cli, channel: Channel}
}

func (b *Redis) Publish(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker.Publish marshal: %w", err)
	}
	if err := b.cli.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("broker.Publish: %w", err)
	}
	return nil
}

func (b *Redis) Consume(ctx context.Context, fn func(model.Message)) error {
	sub := b.cli.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("broker.Consume subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("broker.Consume: subscription closed")
			}
			var msg model.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logger.Errorf("broker: bad payload: %v", err)
				continue
			}
			fn(msg)
		}
	}
}

func (b *Redis) Close() error { return nil }
