// Package frame описывает кадры push-канала переписки: сервер пишет их в SSE-стрим
// как JSON в строках data:, клиент разбирает обратно в закрытый набор типов.
package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tenantdesk/internal/model"
)

// Type — дискриминатор кадра на проводе.
type Type string

const (
	TypeConnected Type = "connected"
	TypeMessages  Type = "messages"
	TypeHeartbeat Type = "heartbeat"
	TypeError     Type = "error"
)

// Коды ошибок в кадре error. Первые три означают, что сессия больше не действует.
const (
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeTokenInvalid   = "TOKEN_INVALID"
	CodeForbidden      = "FORBIDDEN"
	CodeOverloaded     = "OVERLOADED"
	CodeInternal       = "INTERNAL"
)

// IsAuthCode сообщает, что код означает недействительную сессию.
func IsAuthCode(code string) bool {
	switch code {
	case CodeUnauthorized, CodeSessionExpired, CodeTokenInvalid:
		return true
	}
	return false
}

// Frame — закрытый набор кадров: Connected, Messages, Heartbeat, Error.
type Frame interface {
	Type() Type
	sealed()
}

type Connected struct {
	UserID int64
	PeerID int64
}

type Messages struct {
	Messages []model.Message
}

type Heartbeat struct {
	At time.Time
}

type Error struct {
	Code    string
	Message string
}

func (Connected) Type() Type { return TypeConnected }
func (Messages) Type() Type  { return TypeMessages }
func (Heartbeat) Type() Type { return TypeHeartbeat }
func (Error) Type() Type     { return TypeError }

func (Connected) sealed() {}
func (Messages) sealed()  {}
func (Heartbeat) sealed() {}
func (Error) sealed()     {}

// Payload — формат кадра на проводе.
type Payload struct {
	Type     Type            `json:"type"`
	UserID   int64           `json:"user_id,omitempty"`
	PeerID   int64           `json:"peer_id,omitempty"`
	Messages []model.Message `json:"messages,omitempty"`
	At       *time.Time      `json:"at,omitempty"`
	Code     string          `json:"code,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Wire переводит кадр в формат для отправки.
func Wire(f Frame) Payload {
	switch v := f.(type) {
	case Connected:
		return Payload{Type: TypeConnected, UserID: v.UserID, PeerID: v.PeerID}
	case Messages:
		return Payload{Type: TypeMessages, Messages: v.Messages}
	case Heartbeat:
		at := v.At
		return Payload{Type: TypeHeartbeat, At: &at}
	case Error:
		return Payload{Type: TypeError, Code: v.Code, Message: v.Message}
	}
	panic(fmt.Sprintf("frame: unknown frame %T", f))
}

var ErrUnknownType = errors.New("frame: unknown type")

// Decode разбирает JSON кадра. Неизвестный тип — ErrUnknownType.
func Decode(data []byte) (Frame, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("frame: decode: %w", err)
	}
	switch p.Type {
	case TypeConnected:
		return Connected{UserID: p.UserID, PeerID: p.PeerID}, nil
	case TypeMessages:
		return Messages{Messages: p.Messages}, nil
	case TypeHeartbeat:
		var at time.Time
		if p.At != nil {
			at = *p.At
		}
		return Heartbeat{At: at}, nil
	case TypeError:
		return Error{Code: p.Code, Message: p.Message}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownType, p.Type)
}
