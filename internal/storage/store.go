package storage

import (
	"context"
	"time"

	"github.com/tenantdesk/internal/model"
)

// SessionTTL — срок жизни записи сессии, если выдающий сервис не задал свой.
const SessionTTL = 30 * 24 * time.Hour

// SessionStore — чтение сессий, выданных сервисом авторизации.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
// GetSession возвращает nil, nil для неизвестной или истёкшей сессии.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	PutSession(ctx context.Context, s *model.Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}
