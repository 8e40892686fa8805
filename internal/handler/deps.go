package handler

import (
	"context"

	"github.com/tenantdesk/internal/model"
)

// UserReader — то, что обработчикам нужно от repository.UserRepository.
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

// MessageStore — то, что обработчикам нужно от repository.MessageRepository.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	History(ctx context.Context, a, b int64) ([]model.Message, error)
	MarkRead(ctx context.Context, readerID, peerID int64) (int64, error)
	UnreadCount(ctx context.Context, readerID, peerID int64) (int, error)
	UnreadCounts(ctx context.Context, readerID int64) (map[int64]int, error)
	DeleteHistory(ctx context.Context, a, b int64) (int64, error)
}

// Presence — открыт ли у пользователя стрим переписки с собеседником (stream.Hub).
type Presence interface {
	Online(userID, peerID int64) bool
}

// PushNotifier — push.Client.
type PushNotifier interface {
	Notify(ctx context.Context, userID int64, title, body string, data map[string]string)
}
