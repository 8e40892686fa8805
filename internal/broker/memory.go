package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

var ErrClosed = errors.New("broker: closed")

// Memory — брокер внутри процесса для -dev и тестов.
type Memory struct {
	mu     sync.RWMutex
	subs   map[chan model.Message]struct{}
	buf    int
	closed bool
}

func NewMemory(buf int) *Memory {
	if buf <= 0 {
		buf = 256
	}
	return &Memory{subs: make(map[chan model.Message]struct{}), buf: buf}
}

func (b *Memory) Publish(ctx context.Context, msg *model.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for ch := range b.subs {
		select {
		case ch <- *msg:
		default:
			logger.Errorf("broker: memory subscriber full, message %d dropped", msg.ID)
		}
	}
	return nil
}

func (b *Memory) Consume(ctx context.Context, fn func(model.Message)) error {
	ch := make(chan model.Message, b.buf)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-ch:
			fn(m)
		}
	}
}

func (b *Memory) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
