// Package audit публикует события переписки (отправка, удаление истории) в RabbitMQ.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/metrics"
)

const (
	RoutingMessageSent    = "chat.message.sent"
	RoutingHistoryDeleted = "chat.history.deleted"
)

// Event — конверт аудита.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ActorID    int64     `json:"actor_id"`
	PeerID     int64     `json:"peer_id"`
	MessageID  int64     `json:"message_id,omitempty"`
	ImageCount int       `json:"image_count,omitempty"`
	Deleted    int64     `json:"deleted,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	At         time.Time `json:"at"`
}

// NewEvent заполняет id и время.
func NewEvent(routingKey string, actorID, peerID int64) Event {
	return Event{ID: uuid.NewString(), Type: routingKey, ActorID: actorID, PeerID: peerID, At: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event Event) error
	Close() error
}

// NewPublisher подключается к RabbitMQ; при пустом URL или ошибке возвращает noop.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		logger.Info("audit: rabbitmq disabled, using noop: empty amqp url")
		return noopPublisher{reason: "empty amqp url"}
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Errorf("audit: rabbitmq disabled, using noop: %v", err)
		return noopPublisher{reason: err.Error()}
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Errorf("audit: rabbitmq disabled, using noop: %v", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		logger.Errorf("audit: rabbitmq disabled, using noop: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}
	logger.Infof("audit: rabbitmq connected exchange=%s", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.At,
		Body:         body,
	})
	if err != nil {
		metrics.IncAMQPPublishError()
		logger.Errorf("audit: publish %s: %v", routingKey, err)
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(ctx context.Context, routingKey string, event Event) error {
	logger.Debugf("audit: noop publish routing_key=%s actor=%d peer=%d", routingKey, event.ActorID, event.PeerID)
	return nil
}

func (noopPublisher) Close() error { return nil }

// Mode — "amqp" или "noop", для лога старта.
func Mode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// NoopReason — почему аудит работает в noop; пусто для amqp.
func NoopReason(p Publisher) string {
	if n, ok := p.(noopPublisher); ok {
		return n.reason
	}
	return ""
}
