package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/internal/model"
)

const (
	adminID  int64 = 1
	tenantID int64 = 42
)

func startHub(t *testing.T, maxConns int) *Hub {
	t.Helper()
	h := NewHub(maxConns)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func register(t *testing.T, h *Hub, s *Subscriber, want int) {
	t.Helper()
	h.Register(s)
	require.Eventually(t, func() bool { return h.Count() == want || s.Rejected() }, time.Second, 5*time.Millisecond)
}

func message(id, from, to int64) model.Message {
	return model.Message{ID: id, Sender: model.Party{ID: from}, Receiver: model.Party{ID: to}}
}

func TestDeliverToBothSidesOfPair(t *testing.T) {
	h := startHub(t, 10)
	tenantStream := NewSubscriber(tenantID, adminID, 4)
	adminStream := NewSubscriber(adminID, tenantID, 4)
	otherPair := NewSubscriber(adminID, 77, 4)
	register(t, h, tenantStream, 1)
	register(t, h, adminStream, 2)
	register(t, h, otherPair, 3)

	h.Deliver(message(5, tenantID, adminID))

	assert.Equal(t, int64(5), (<-adminStream.C()).ID)
	assert.Equal(t, int64(5), (<-tenantStream.C()).ID)
	select {
	case <-otherPair.C():
		t.Fatal("message leaked to another conversation")
	default:
	}
}

func TestOnline(t *testing.T) {
	h := startHub(t, 10)
	s := NewSubscriber(adminID, tenantID, 1)
	register(t, h, s, 1)

	assert.True(t, h.Online(adminID, tenantID))
	assert.False(t, h.Online(adminID, 77))
	assert.False(t, h.Online(tenantID, adminID))

	h.Unregister(s)
	require.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, h.Online(adminID, tenantID))
	<-s.Done()
}

func TestConnectionLimit(t *testing.T) {
	h := startHub(t, 1)
	first := NewSubscriber(adminID, tenantID, 1)
	second := NewSubscriber(tenantID, adminID, 1)
	register(t, h, first, 1)
	register(t, h, second, 1)

	assert.True(t, second.Rejected())
	<-second.Done()
	assert.False(t, first.Rejected())
	assert.Equal(t, 1, h.Count())
}

func TestSlowSubscriberDropped(t *testing.T) {
	h := startHub(t, 10)
	s := NewSubscriber(adminID, tenantID, 1)
	register(t, h, s, 1)

	h.Deliver(message(1, tenantID, adminID))
	h.Deliver(message(2, tenantID, adminID))

	<-s.Done()
	assert.True(t, s.Dropped())
	require.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDrainBatches(t *testing.T) {
	s := NewSubscriber(adminID, tenantID, 8)
	s.send <- message(2, tenantID, adminID)
	s.send <- message(3, tenantID, adminID)
	s.send <- message(4, tenantID, adminID)

	batch := s.Drain(message(1, tenantID, adminID), 3)
	require.Len(t, batch, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{batch[0].ID, batch[1].ID, batch[2].ID})
	assert.Len(t, s.send, 1)
}

func TestShutdownClosesSubscribers(t *testing.T) {
	h := NewHub(10)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	s := NewSubscriber(adminID, tenantID, 1)
	register(t, h, s, 1)

	cancel()
	<-h.done
	<-s.Done()
	assert.Equal(t, 0, h.Count())

	late := NewSubscriber(adminID, tenantID, 1)
	h.Register(late)
	<-late.Done()
}

func TestUnregisterBeforeRegisterProcessed(t *testing.T) {
	for i := 0; i < 200; i++ {
		h := NewHub(10)
		s := NewSubscriber(tenantID, adminID, 4)
		h.Register(s)
		h.Unregister(s)

		ctx, cancel := context.WithCancel(context.Background())
		go h.Run(ctx)
		// register обрабатывается по порядку: после marker предыдущая регистрация уже разобрана
		marker := NewSubscriber(adminID, 77, 4)
		h.Register(marker)
		require.Eventually(t, func() bool { return h.Online(adminID, 77) }, time.Second, time.Millisecond)

		assert.Equal(t, 1, h.Count())
		assert.False(t, h.Online(tenantID, adminID))
		cancel()
		<-h.done
	}
}
