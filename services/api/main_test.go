package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantdesk/internal/audit"
	"github.com/tenantdesk/internal/broker"
	"github.com/tenantdesk/internal/config"
	"github.com/tenantdesk/internal/handler"
	"github.com/tenantdesk/internal/mocks"
	"github.com/tenantdesk/internal/model"
	"github.com/tenantdesk/internal/push"
	"github.com/tenantdesk/internal/storage/memory"
	"github.com/tenantdesk/internal/stream"
)

type fakeSeeder struct {
	mu    sync.Mutex
	users []model.User
}

func (f *fakeSeeder) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeSeeder) Create(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = int64(len(f.users) + 1)
	f.users = append(f.users, *u)
	return nil
}

func (f *fakeSeeder) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestSeedDev(t *testing.T) {
	ctx := context.Background()
	users := &fakeSeeder{}
	sessions := memory.New()

	require.NoError(t, seedDev(ctx, users, sessions))
	require.NoError(t, seedDev(ctx, users, sessions))
	assert.Len(t, users.users, len(devUsers()))

	s, err := sessions.GetSession(ctx, devSessionID(1))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, model.RoleAdmin, s.Role)

	s, err = sessions.GetSession(ctx, "dev-2")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, model.RoleTenant, s.Role)
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{MaxUploadSize: 5 << 20, UploadDir: t.TempDir()}
	cfg.RateLimit.RPS = 100
	cfg.RateLimit.Burst = 100
	cfg.Stream.Heartbeat = time.Minute

	sessions := memory.New()
	users := new(mocks.UserRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	hub := stream.NewHub(10)
	bus := broker.NewMemory(8)
	t.Cleanup(func() { bus.Close() })
	pushClient := push.NewClient("", "")

	return newRouter(cfg, routerDeps{
		sessions: sessions,
		chat:     handler.NewChatHandler(users, msgs, bus, hub, pushClient, audit.NewPublisher("", "")),
		stream:   handler.NewStreamHandler(hub, users, sessions, cfg.Stream.Heartbeat, 8),
		files:    handler.NewFileHandler(cfg.UploadDir, cfg.MaxUploadSize, ""),
		push:     handler.NewPushHandler(pushClient),
		config:   handler.NewConfigHandler(cfg),
	})
}

func TestRouter_PublicAndProtected(t *testing.T) {
	r := testRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config/chat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/api/chat/inbox", "/api/chat/unread", "/api/chat/stream?peer_id=2"} {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tenantdesk_http_requests_total"))
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitOrigins(""))
	assert.Equal(t, []string{"http://a", "http://b"}, splitOrigins(" http://a , http://b,"))
}
