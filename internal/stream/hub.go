// Package stream держит открытые SSE-стримы переписки и раздаёт им новые сообщения.
package stream

import (
	"context"
	"sync"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/metrics"
	"github.com/tenantdesk/internal/model"
)

type Hub struct {
	mu         sync.RWMutex
	subs       map[int64]map[*Subscriber]struct{}
	total      int
	maxConns   int
	register   chan *Subscriber
	unregister chan *Subscriber
	done       chan struct{}
}

func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		subs:       make(map[int64]map[*Subscriber]struct{}),
		maxConns:   maxConns,
		register:   make(chan *Subscriber, 64),
		unregister: make(chan *Subscriber, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case s := <-h.register:
			h.add(s)
		case s := <-h.unregister:
			h.remove(s)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	all := make([]*Subscriber, 0, h.total)
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[int64]map[*Subscriber]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, s := range all {
		s.Close()
		metrics.DecStreamActive()
	}
}

func (h *Hub) add(s *Subscriber) {
	// Unregister мог быть обработан раньше Register: закрытого подписчика не добавляем
	select {
	case <-s.done:
		return
	default:
	}
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("stream limit reached (%d), rejecting user=%d", h.maxConns, s.UserID)
		s.rejected.Store(true)
		s.Close()
		return
	}
	if _, ok := h.subs[s.UserID]; !ok {
		h.subs[s.UserID] = make(map[*Subscriber]struct{})
	}
	h.subs[s.UserID][s] = struct{}{}
	h.total++
	h.mu.Unlock()
	metrics.IncStreamActive()
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	set, ok := h.subs[s.UserID]
	if !ok {
		h.mu.Unlock()
		s.Close()
		return
	}
	if _, exists := set[s]; !exists {
		h.mu.Unlock()
		s.Close()
		return
	}
	delete(set, s)
	h.total--
	if len(set) == 0 {
		delete(h.subs, s.UserID)
	}
	h.mu.Unlock()

	s.Close()
	metrics.DecStreamActive()
}

// Deliver отдаёт сообщение стримам обеих сторон пары: получателю и другим вкладкам отправителя.
func (h *Hub) Deliver(msg model.Message) {
	for _, s := range h.targets(msg) {
		h.sendTo(s, msg)
	}
}

func (h *Hub) targets(msg model.Message) []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Subscriber
	for s := range h.subs[msg.Receiver.ID] {
		if s.PeerID == msg.Sender.ID {
			out = append(out, s)
		}
	}
	for s := range h.subs[msg.Sender.ID] {
		if s.PeerID == msg.Receiver.ID {
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) sendTo(s *Subscriber, msg model.Message) {
	select {
	case s.send <- msg:
	case <-s.done:
	default:
		// буфер полон: медленного клиента закрываем, он переподключится и дочитает историю
		logger.Errorf("stream buffer full, closing slow subscriber user=%d peer=%d", s.UserID, s.PeerID)
		s.dropped.Store(true)
		metrics.IncStreamDropped()
		s.Close()
		h.Unregister(s)
	}
}

// Online сообщает, открыт ли у userID стрим переписки с peerID на этом инстансе.
func (h *Hub) Online(userID, peerID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[userID] {
		if s.PeerID == peerID {
			return true
		}
	}
	return false
}

// Count — число зарегистрированных стримов.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

func (h *Hub) Register(s *Subscriber) {
	select {
	case <-h.done:
		s.Close()
		return
	default:
	}
	select {
	case h.register <- s:
	case <-h.done:
		s.Close()
	}
}

// Unregister закрывает подписчика сразу, поэтому ещё не обработанный Register его не добавит.
func (h *Hub) Unregister(s *Subscriber) {
	s.Close()
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}
