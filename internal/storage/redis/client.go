package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/internal/model"
)

const sessionKeyPrefix = "session:"

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Redis отдаёт низкоуровневый клиент (pub/sub брокера, подписки push-сервиса).
func (c *Client) Redis() *redis.Client { return c.cli }

func (c *Client) Close() error {
	return c.cli.Close()
}

// sessionRecord — формат значения session:{id}, который пишет сервис авторизации.
type sessionRecord struct {
	UserID int64      `json:"user_id"`
	Role   model.Role `json:"role"`
}

// GetSession читает session:{id}. Отсутствующий ключ — nil без ошибки.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	raw, err := c.cli.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redis decode session: %w", err)
	}
	if rec.UserID == 0 || !rec.Role.Valid() {
		return nil, nil
	}
	return &model.Session{ID: sessionID, UserID: rec.UserID, Role: rec.Role}, nil
}

// PutSession используется в -dev и тестовых окружениях; в production сессии пишет сервис авторизации.
func (c *Client) PutSession(ctx context.Context, s *model.Session, ttl time.Duration) error {
	data, err := json.Marshal(sessionRecord{UserID: s.UserID, Role: s.Role})
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, sessionKeyPrefix+s.ID, data, ttl).Err()
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
