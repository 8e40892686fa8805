package livechat

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tenantdesk/internal/frame"
	"github.com/tenantdesk/internal/model"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped atomic.Bool
	fired   atomic.Bool
}

func (t *fakeTimer) Stop() bool { return !t.stopped.Swap(true) && !t.fired.Load() }

// manualClock копит таймеры; они срабатывают только по Fire.
type manualClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *manualClock) Timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

// Fire запускает i-й таймер, даже если его остановили: так проверяется защита от устаревших колбэков.
func (c *manualClock) Fire(i int) {
	t := c.Timer(i)
	t.fired.Store(true)
	t.f()
}

var errDropped = errors.New("connection dropped")

type fakeConn struct {
	target Target
	frames chan frame.Frame
	errs   chan error
	done   chan struct{}
	closes atomic.Int32
	once   sync.Once
}

func newFakeConn(t Target) *fakeConn {
	return &fakeConn{
		target: t,
		frames: make(chan frame.Frame, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) Recv() (frame.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return nil, err
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) Open() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *fakeConn) Send(f frame.Frame) { c.frames <- f }
func (c *fakeConn) Drop()              { c.errs <- errDropped }

type fakeDialer struct {
	mu      sync.Mutex
	refuse  bool
	dials   []Target
	conns   []*fakeConn
	dialErr error
}

func (d *fakeDialer) Dial(ctx context.Context, t Target) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, t)
	if d.refuse {
		return nil, errors.New("connection refused")
	}
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := newFakeConn(t)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) DialsTo(peer int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.dials {
		if t.PeerID == peer {
			n++
		}
	}
	return n
}

func (d *fakeDialer) Conns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*fakeConn, len(d.conns))
	copy(out, d.conns)
	return out
}

func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) OpenConns() int {
	n := 0
	for _, c := range d.Conns() {
		if c.Open() {
			n++
		}
	}
	return n
}

func (d *fakeDialer) SetRefuse(v bool) {
	d.mu.Lock()
	d.refuse = v
	d.mu.Unlock()
}

// storeMock — Store на testify mock.
type storeMock struct {
	mock.Mock
}

func (m *storeMock) FetchInbox(ctx context.Context) (*model.InboxResult, error) {
	args := m.Called(ctx)
	if res, ok := args.Get(0).(*model.InboxResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) FetchHistory(ctx context.Context, peerID int64) (*model.HistoryResult, error) {
	args := m.Called(ctx, peerID)
	if res, ok := args.Get(0).(*model.HistoryResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) SendMessage(ctx context.Context, peerID int64, content string, images []string) (*model.Message, error) {
	args := m.Called(ctx, peerID, content, images)
	if res, ok := args.Get(0).(*model.Message); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *storeMock) DeleteHistory(ctx context.Context, peerID int64) error {
	return m.Called(ctx, peerID).Error(0)
}

func (m *storeMock) MarkRead(ctx context.Context, peerID int64) error {
	return m.Called(ctx, peerID).Error(0)
}

func (m *storeMock) UploadImage(ctx context.Context, name string, data []byte) (*model.UploadResult, error) {
	args := m.Called(ctx, name, data)
	if res, ok := args.Get(0).(*model.UploadResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingNotifier struct {
	mu         sync.Mutex
	permission Permission
	titles     []string
	bodies     []string
}

func (n *recordingNotifier) Permission() Permission { return n.permission }

func (n *recordingNotifier) Notify(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	n.bodies = append(n.bodies, body)
	return nil
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

var (
	admin  = model.Party{ID: 1, DisplayName: "Property Office", Role: model.RoleAdmin}
	tenant = model.Party{ID: 42, DisplayName: "Anna Petrova", Role: model.RoleTenant}
	base   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func msg(id int64, at time.Duration, from, to model.Party, content string) model.Message {
	return model.Message{ID: id, Content: content, Images: []string{}, CreatedAt: base.Add(at), Sender: from, Receiver: to}
}
