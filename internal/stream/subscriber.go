package stream

import (
	"sync"
	"sync/atomic"

	"github.com/tenantdesk/internal/model"
)

// Subscriber — один открытый SSE-стрим пользователя в переписке с собеседником.
// Lifecycle: NewSubscriber -> Hub.Register -> [чтение C() в обработчике] -> Hub.Unregister -> Close.
type Subscriber struct {
	UserID int64
	PeerID int64

	send chan model.Message
	// done закрывается в Close; обработчик стрима по нему завершает цикл записи.
	done     chan struct{}
	once     sync.Once
	rejected atomic.Bool
	dropped  atomic.Bool
}

func NewSubscriber(userID, peerID int64, buf int) *Subscriber {
	if buf <= 0 {
		buf = 64
	}
	return &Subscriber{
		UserID: userID,
		PeerID: peerID,
		send:   make(chan model.Message, buf),
		done:   make(chan struct{}),
	}
}

// C — входящие сообщения пары.
func (s *Subscriber) C() <-chan model.Message { return s.send }

func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Close безопасно вызывать несколько раз из любой горутины.
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.done) })
}

// Rejected — хаб отказал в регистрации из-за лимита стримов.
func (s *Subscriber) Rejected() bool { return s.rejected.Load() }

// Dropped — хаб закрыл стрим, потому что клиент не успевал читать.
func (s *Subscriber) Dropped() bool { return s.dropped.Load() }

// Drain забирает уже накопившиеся сообщения без блокировки, не больше max.
func (s *Subscriber) Drain(first model.Message, max int) []model.Message {
	batch := []model.Message{first}
	for len(batch) < max {
		select {
		case m := <-s.send:
			batch = append(batch, m)
		default:
			return batch
		}
	}
	return batch
}
