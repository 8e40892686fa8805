package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tenantdesk/internal/model"
)

type item struct {
	val model.Session
	exp time.Time
}

type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
	now      func() time.Time
}

func New() *Client {
	return &Client{
		sessions: make(map[string]item),
		now:      time.Now,
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) PutSession(ctx context.Context, s *model.Session, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = item{val: *s, exp: c.now().Add(ttl)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[sessionID]
	if !ok || c.now().After(v.exp) {
		return nil, nil
	}
	s := v.val
	return &s, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}
