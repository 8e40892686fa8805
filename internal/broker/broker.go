// Package broker разносит событие «создано сообщение» между инстансами API,
// чтобы SSE-стрим получателя получил сообщение независимо от того, какой инстанс его принял.
package broker

import (
	"context"

	"github.com/tenantdesk/internal/model"
)

// Channel — имя канала Redis pub/sub.
const Channel = "chat:messages"

type Broker interface {
	Publish(ctx context.Context, msg *model.Message) error
	// Consume блокируется до отмены ctx и вызывает fn для каждого события по порядку.
	Consume(ctx context.Context, fn func(model.Message)) error
	Close() error
}
