package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tenantdesk/internal/model"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	var u *model.User
	if val := args.Get(0); val != nil {
		u = val.(*model.User)
	}
	return u, args.Error(1)
}

func (m *UserRepositoryMock) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	args := m.Called(ctx, role)
	var list []model.User
	if val := args.Get(0); val != nil {
		list = val.([]model.User)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) History(ctx context.Context, a, b int64) ([]model.Message, error) {
	args := m.Called(ctx, a, b)
	var list []model.Message
	if val := args.Get(0); val != nil {
		list = val.([]model.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, readerID, peerID int64) (int64, error) {
	args := m.Called(ctx, readerID, peerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, readerID, peerID int64) (int, error) {
	args := m.Called(ctx, readerID, peerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCounts(ctx context.Context, readerID int64) (map[int64]int, error) {
	args := m.Called(ctx, readerID)
	var counts map[int64]int
	if val := args.Get(0); val != nil {
		counts = val.(map[int64]int)
	}
	return counts, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteHistory(ctx context.Context, a, b int64) (int64, error) {
	args := m.Called(ctx, a, b)
	return args.Get(0).(int64), args.Error(1)
}

type BrokerMock struct {
	mock.Mock
}

func (m *BrokerMock) Publish(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *BrokerMock) Consume(ctx context.Context, fn func(model.Message)) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *BrokerMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type PresenceMock struct {
	mock.Mock
}

func (m *PresenceMock) Online(userID, peerID int64) bool {
	args := m.Called(userID, peerID)
	return args.Bool(0)
}

type PushNotifierMock struct {
	mock.Mock
}

func (m *PushNotifierMock) Notify(ctx context.Context, userID int64, title, body string, data map[string]string) {
	m.Called(ctx, userID, title, body, data)
}
