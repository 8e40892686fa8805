package livechat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tenantdesk/internal/frame"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/metrics"
	"github.com/tenantdesk/internal/model"
)

// State — состояние push-канала.
type State string

const (
	StateConnecting State = "CONNECTING"
	StateOpen       State = "OPEN"
	StateClosed     State = "CLOSED"
)

var allStates = []string{string(StateConnecting), string(StateOpen), string(StateClosed)}

const (
	MaxReconnectAttempts = 10
	ReconnectDelay       = 3 * time.Second
)

// SessionProbe сообщает, есть ли у клиента локальная сессия.
type SessionProbe interface {
	HasSession() bool
}

// SessionProbeFunc адаптирует функцию к SessionProbe.
type SessionProbeFunc func() bool

func (f SessionProbeFunc) HasSession() bool { return f() }

type ChannelOptions struct {
	SelfID  int64
	Role    model.Role
	Dialer  Dialer
	Session SessionProbe
	Clock   Clock

	// MaxAttempts и RetryDelay по умолчанию MaxReconnectAttempts и ReconnectDelay.
	MaxAttempts int
	RetryDelay  time.Duration

	// OnMessages получает каждую пачку из кадра messages, вне блокировки канала.
	OnMessages func(peerID int64, batch []model.Message)
	// OnStateChange вызывается под блокировкой канала: из него нельзя звать методы Channel.
	OnStateChange func(State)
}

// Channel держит не больше одного живого транспорта для выбранного собеседника.
// Все колбэки транспорта и таймера помечены поколением сессии; колбэк чужого поколения отбрасывается.
type Channel struct {
	opts ChannelOptions

	mu       sync.Mutex
	peerID   int64
	gen      uint64
	sess     *session
	state    State
	attempts int
	timer    Timer
}

type session struct {
	gen    uint64
	peerID int64
	cancel context.CancelFunc
	conn   Conn
	once   sync.Once
}

func (s *session) closeConn() {
	s.once.Do(func() {
		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				logger.Debugf("livechat: close transport: %v", err)
			}
		}
	})
}

func NewChannel(opts ChannelOptions) *Channel {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = MaxReconnectAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = ReconnectDelay
	}
	if opts.Session == nil {
		opts.Session = SessionProbeFunc(func() bool { return true })
	}
	return &Channel{opts: opts, state: StateClosed}
}

// Open закрывает текущую сессию и открывает канал к peerID. peerID == 0 только закрывает.
func (c *Channel) Open(peerID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.peerID = peerID
	c.attempts = 0
	if peerID == 0 {
		return
	}
	c.openLocked()
}

// Close отменяет запланированное переподключение и закрывает транспорт. Повторный вызов безопасен.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.peerID = 0
}

// Wake — внешний сигнал (интерфейс снова виден). Сбрасывает счётчик попыток
// и переоткрывает канал, если он закрыт, собеседник выбран и сессия есть.
func (c *Channel) Wake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peerID == 0 || c.state != StateClosed {
		return
	}
	if !c.opts.Session.HasSession() {
		return
	}
	c.closeLocked()
	c.attempts = 0
	c.openLocked()
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) PeerID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// Attempts — сколько переподключений сделано с последнего успешного открытия.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	metrics.SetChannelState(string(s), allStates...)
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

func (c *Channel) openLocked() {
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{gen: c.gen, peerID: c.peerID, cancel: cancel}
	c.sess = s
	c.setStateLocked(StateConnecting)
	go c.run(ctx, s)
}

// closeLocked делает все ранее запланированные колбэки устаревшими.
func (c *Channel) closeLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.teardownLocked()
	c.gen++
}

func (c *Channel) teardownLocked() {
	if s := c.sess; s != nil {
		s.cancel()
		s.closeConn()
		c.sess = nil
	}
	c.setStateLocked(StateClosed)
}

func (c *Channel) run(ctx context.Context, s *session) {
	if ctx.Err() != nil {
		return
	}
	conn, err := c.opts.Dialer.Dial(ctx, Target{SelfID: c.opts.SelfID, PeerID: s.peerID, Role: c.opts.Role})
	if err != nil {
		c.fail(s, err)
		return
	}
	if !c.attach(s, conn) {
		conn.Close()
		return
	}
	for {
		f, err := conn.Recv()
		if err != nil {
			c.fail(s, err)
			return
		}
		if !c.handle(s, f) {
			return
		}
	}
}

func (c *Channel) attach(s *session, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != s {
		return false
	}
	s.conn = conn
	c.attempts = 0
	c.setStateLocked(StateOpen)
	logger.Debugf("livechat: channel open peer=%d", s.peerID)
	return true
}

// handle возвращает false, когда чтение из транспорта нужно прекратить.
func (c *Channel) handle(s *session, f frame.Frame) bool {
	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return false
	}
	switch v := f.(type) {
	case frame.Connected, frame.Heartbeat:
		c.setStateLocked(StateOpen)
		c.mu.Unlock()
		return true
	case frame.Messages:
		c.setStateLocked(StateOpen)
		cb := c.opts.OnMessages
		c.mu.Unlock()
		if cb != nil && len(v.Messages) > 0 {
			cb(s.peerID, v.Messages)
		}
		return true
	case frame.Error:
		// не-auth коды (OVERLOADED и т.п.) считаются сбоем транспорта и тратят попытку переподключения
		defer c.mu.Unlock()
		if frame.IsAuthCode(v.Code) && !c.opts.Session.HasSession() {
			logger.Infof("livechat: session ended (%s), channel closed", v.Code)
			c.closeLocked()
			return false
		}
		logger.Debugf("livechat: error frame %s: %s", v.Code, v.Message)
		c.failLocked(s)
		return false
	}
	c.mu.Unlock()
	return true
}

func (c *Channel) fail(s *session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != s {
		return
	}
	logger.Debugf("livechat: transport peer=%d: %v", s.peerID, err)
	if IsStatus(err, http.StatusUnauthorized) && !c.opts.Session.HasSession() {
		logger.Infof("livechat: stream rejected with 401, session ended, channel closed")
		c.closeLocked()
		return
	}
	c.failLocked(s)
}

// failLocked закрывает транспорт и планирует переподключение, пока не исчерпаны попытки.
func (c *Channel) failLocked(s *session) {
	c.teardownLocked()
	if c.attempts >= c.opts.MaxAttempts {
		logger.Infof("livechat: reconnect attempts exhausted peer=%d", s.peerID)
		return
	}
	c.attempts++
	metrics.IncChannelReconnect()
	peer, gen := c.peerID, c.gen
	c.timer = c.opts.Clock.AfterFunc(c.opts.RetryDelay, func() { c.reconnect(peer, gen) })
}

func (c *Channel) reconnect(peer int64, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.peerID != peer || c.sess != nil {
		return
	}
	c.timer = nil
	c.openLocked()
}
