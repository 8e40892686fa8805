package livechat

import (
	"context"
	"fmt"
	"sync"

	"github.com/tenantdesk/internal/model"
)

// InboxFetcher — часть Store, нужная счётчикам непрочитанного.
type InboxFetcher interface {
	FetchInbox(ctx context.Context) (*model.InboxResult, error)
}

// UnreadCounters — бейджи непрочитанного по собеседникам. Источник правды — сервер:
// Refresh перезаписывает карту целиком, Set фиксирует значение из истории.
type UnreadCounters struct {
	store InboxFetcher

	mu     sync.RWMutex
	counts map[int64]int
}

func NewUnreadCounters(store InboxFetcher) *UnreadCounters {
	return &UnreadCounters{store: store, counts: make(map[int64]int)}
}

// Refresh запрашивает inbox и заменяет карту. При ошибке карта не меняется.
func (u *UnreadCounters) Refresh(ctx context.Context) (*model.InboxResult, error) {
	res, err := u.store.FetchInbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("unread refresh: %w", err)
	}
	u.Replace(res.UnreadCounts)
	return res, nil
}

// Replace перезаписывает карту копией counts.
func (u *UnreadCounters) Replace(counts map[int64]int) {
	next := make(map[int64]int, len(counts))
	for k, v := range counts {
		if v > 0 {
			next[k] = v
		}
	}
	u.mu.Lock()
	u.counts = next
	u.mu.Unlock()
}

func (u *UnreadCounters) Set(peerID int64, n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if n <= 0 {
		delete(u.counts, peerID)
		return
	}
	u.counts[peerID] = n
}

// MarkRead обнуляет счётчик открытой переписки.
func (u *UnreadCounters) MarkRead(peerID int64) {
	u.Set(peerID, 0)
}

func (u *UnreadCounters) Get(peerID int64) int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.counts[peerID]
}

// Snapshot возвращает копию карты.
func (u *UnreadCounters) Snapshot() map[int64]int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(map[int64]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}

// Total — сумма по всем собеседникам.
func (u *UnreadCounters) Total() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	n := 0
	for _, v := range u.counts {
		n += v
	}
	return n
}
