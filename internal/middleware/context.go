package middleware

import (
	"context"

	"github.com/tenantdesk/internal/model"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	RoleKey      contextKey = "role"
	SessionIDKey contextKey = "session_id"
)

// GetUserID возвращает user_id из контекста (устанавливается SessionAuth). 0 — нет сессии.
func GetUserID(ctx context.Context) int64 {
	v, _ := ctx.Value(UserIDKey).(int64)
	return v
}

func GetRole(ctx context.Context) model.Role {
	v, _ := ctx.Value(RoleKey).(model.Role)
	return v
}

func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

// WithSession кладёт проверенную сессию в контекст.
func WithSession(ctx context.Context, s *model.Session) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, s.UserID)
	ctx = context.WithValue(ctx, RoleKey, s.Role)
	return context.WithValue(ctx, SessionIDKey, s.ID)
}
