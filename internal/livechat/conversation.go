package livechat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

// callbackTimeout ограничивает запросы, которые делаются из обработчика кадра.
const callbackTimeout = 10 * time.Second

type ConversationOptions struct {
	SelfID     int64
	Role       model.Role
	Store      Store
	Dialer     Dialer
	Session    SessionProbe
	Clock      Clock
	Notifier   Notifier
	Visibility Visibility

	// OnChange вызывается после изменения кеша собеседника или счётчиков непрочитанного.
	OnChange func(peerID int64)
	// OnStateChange см. ChannelOptions.OnStateChange.
	OnStateChange func(State)
}

// Conversation связывает кеш, счётчики, уведомления и push-канал для одного пользователя.
type Conversation struct {
	selfID    int64
	store     Store
	cache     *Cache
	unread    *UnreadCounters
	presenter *Presenter
	channel   *Channel
	onChange  func(peerID int64)

	mu     sync.RWMutex
	active int64
	peers  map[int64]model.Peer
	order  []int64
}

func NewConversation(opts ConversationOptions) *Conversation {
	c := &Conversation{
		selfID:    opts.SelfID,
		store:     opts.Store,
		cache:     NewCache(opts.SelfID),
		unread:    NewUnreadCounters(opts.Store),
		presenter: NewPresenter(opts.Role, opts.Notifier, opts.Visibility),
		onChange:  opts.OnChange,
		peers:     make(map[int64]model.Peer),
	}
	c.channel = NewChannel(ChannelOptions{
		SelfID:        opts.SelfID,
		Role:          opts.Role,
		Dialer:        opts.Dialer,
		Session:       opts.Session,
		Clock:         opts.Clock,
		OnMessages:    c.onMessages,
		OnStateChange: opts.OnStateChange,
	})
	return c
}

func (c *Conversation) Cache() *Cache                        { return c.cache }
func (c *Conversation) Unread() *UnreadCounters              { return c.unread }
func (c *Conversation) Channel() *Channel                    { return c.channel }
func (c *Conversation) State() State                         { return c.channel.State() }
func (c *Conversation) Messages() []model.Message            { return c.cache.Get(c.Active()) }
func (c *Conversation) MessagesFor(id int64) []model.Message { return c.cache.Get(id) }

func (c *Conversation) Active() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Peers — собеседники в порядке последнего inbox.
func (c *Conversation) Peers() []model.Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Peer, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.peers[id])
	}
	return out
}

func (c *Conversation) Peer(id int64) (model.Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peers[id]
	return p, ok
}

// LoadInbox загружает собеседников и перезаписывает счётчики непрочитанного.
func (c *Conversation) LoadInbox(ctx context.Context) ([]model.Peer, error) {
	res, err := c.unread.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.order = c.order[:0]
	for _, p := range res.Peers {
		c.peers[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	c.mu.Unlock()
	c.notify(0)
	return res.Peers, nil
}

// Select делает собеседника активным: переоткрывает канал и загружает историю.
// peerID == 0 снимает выбор и закрывает канал.
func (c *Conversation) Select(ctx context.Context, peerID int64) (*model.HistoryResult, error) {
	c.mu.Lock()
	c.active = peerID
	c.mu.Unlock()

	c.channel.Open(peerID)
	if peerID == 0 {
		return nil, nil
	}
	return c.loadHistory(ctx, peerID)
}

func (c *Conversation) loadHistory(ctx context.Context, peerID int64) (*model.HistoryResult, error) {
	res, err := c.store.FetchHistory(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	c.cache.Replace(peerID, res.Messages)
	c.unread.Set(peerID, res.UnreadCount)
	c.mu.Lock()
	if res.Peer.ID != 0 {
		c.peers[res.Peer.ID] = res.Peer
	}
	c.mu.Unlock()
	c.notify(peerID)
	return res, nil
}

// Send отправляет сообщение активному собеседнику и сразу кладёт его в кеш.
func (c *Conversation) Send(ctx context.Context, content string, images []string) (*model.Message, error) {
	peerID := c.Active()
	if peerID == 0 {
		return nil, ErrNoPeer
	}
	msg, err := c.store.SendMessage(ctx, peerID, content, images)
	if err != nil {
		return nil, err
	}
	c.cache.Merge([]model.Message{*msg})
	c.notify(peerID)
	return msg, nil
}

// SendImage загружает картинку и отправляет её с необязательной подписью.
func (c *Conversation) SendImage(ctx context.Context, name string, data []byte, caption string) (*model.Message, error) {
	if c.Active() == 0 {
		return nil, ErrNoPeer
	}
	up, err := c.store.UploadImage(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, caption, []string{up.URL})
}

// DeleteHistory удаляет переписку с активным собеседником на сервере и в кеше.
func (c *Conversation) DeleteHistory(ctx context.Context) error {
	peerID := c.Active()
	if peerID == 0 {
		return ErrNoPeer
	}
	if err := c.store.DeleteHistory(ctx, peerID); err != nil {
		return err
	}
	c.cache.Clear(peerID)
	c.unread.MarkRead(peerID)
	c.notify(peerID)
	return nil
}

// Wake обрабатывает возврат видимости: перечитывает историю активного собеседника
// и будит канал. Ошибка загрузки истории возвращается, канал будится в любом случае.
func (c *Conversation) Wake(ctx context.Context) error {
	peerID := c.Active()
	if peerID == 0 {
		return nil
	}
	_, err := c.loadHistory(ctx, peerID)
	c.channel.Wake()
	return err
}

func (c *Conversation) Close() {
	c.channel.Close()
}

func (c *Conversation) onMessages(_ int64, batch []model.Message) {
	added := c.cache.Merge(batch)
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	active := c.Active()
	if active != 0 && added[active] > 0 {
		if err := c.store.MarkRead(ctx, active); err != nil {
			logger.Errorf("livechat: mark read peer=%d: %v", active, err)
		}
		c.unread.MarkRead(active)
	}
	if _, err := c.unread.Refresh(ctx); err != nil {
		logger.Errorf("livechat: %v", err)
	}
	c.presenter.Present(batch)

	for peer := range added {
		c.notify(peer)
	}
	if len(added) == 0 {
		c.notify(0)
	}
}

func (c *Conversation) notify(peerID int64) {
	if c.onChange != nil {
		c.onChange(peerID)
	}
}
