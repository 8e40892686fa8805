package livechat

import (
	"sort"
	"sync"

	"github.com/tenantdesk/internal/model"
)

// OwningPeer — собеседник, в переписку с которым попадает сообщение:
// получатель, если отправил сам пользователь, иначе отправитель.
func OwningPeer(msg *model.Message, selfID int64) int64 {
	if msg.Sender.ID == selfID {
		return msg.Receiver.ID
	}
	return msg.Sender.ID
}

// Cache хранит историю по каждому собеседнику. Внутри одного собеседника сообщения
// уникальны по id и отсортированы по created_at (при равенстве — по id).
type Cache struct {
	selfID int64

	mu    sync.RWMutex
	peers map[int64][]model.Message
}

func NewCache(selfID int64) *Cache {
	return &Cache{selfID: selfID, peers: make(map[int64][]model.Message)}
}

// Merge раскладывает сообщения по собеседникам и дописывает те, чьих id ещё нет.
// Повторный вызов с тем же набором ничего не меняет. Возвращает число новых сообщений по собеседникам.
func (c *Cache) Merge(incoming []model.Message) map[int64]int {
	added := make(map[int64]int)
	if len(incoming) == 0 {
		return added
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := make(map[int64]struct{})
	for i := range incoming {
		msg := incoming[i]
		peer := OwningPeer(&msg, c.selfID)
		seq := c.peers[peer]
		if containsID(seq, msg.ID) {
			continue
		}
		c.peers[peer] = append(seq, msg)
		touched[peer] = struct{}{}
		added[peer]++
	}
	for peer := range touched {
		sortMessages(c.peers[peer])
	}
	return added
}

// Replace заменяет историю собеседника целиком. Дубликаты по id схлопываются, побеждает последний.
func (c *Cache) Replace(peerID int64, messages []model.Message) {
	seq := make([]model.Message, 0, len(messages))
	pos := make(map[int64]int, len(messages))
	for _, m := range messages {
		if i, ok := pos[m.ID]; ok {
			seq[i] = m
			continue
		}
		pos[m.ID] = len(seq)
		seq = append(seq, m)
	}
	sortMessages(seq)

	c.mu.Lock()
	c.peers[peerID] = seq
	c.mu.Unlock()
}

func (c *Cache) Clear(peerID int64) {
	c.mu.Lock()
	delete(c.peers, peerID)
	c.mu.Unlock()
}

// Get возвращает копию истории собеседника; для неизвестного — пустой срез.
func (c *Cache) Get(peerID int64) []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seq := c.peers[peerID]
	out := make([]model.Message, len(seq))
	copy(out, seq)
	return out
}

func containsID(seq []model.Message, id int64) bool {
	for i := range seq {
		if seq[i].ID == id {
			return true
		}
	}
	return false
}

func sortMessages(seq []model.Message) {
	sort.SliceStable(seq, func(i, j int) bool {
		if !seq[i].CreatedAt.Equal(seq[j].CreatedAt) {
			return seq[i].CreatedAt.Before(seq[j].CreatedAt)
		}
		return seq[i].ID < seq[j].ID
	})
}
