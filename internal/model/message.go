package model

import (
	"strings"
	"time"
)

// Role — роль участника переписки. Переписка всегда идёт между ADMIN и TENANT.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleTenant Role = "TENANT"
)

// Valid сообщает, известна ли роль.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTenant
}

// Counterpart возвращает роль второй стороны переписки.
func (r Role) Counterpart() Role {
	if r == RoleAdmin {
		return RoleTenant
	}
	return RoleAdmin
}

// ParseRole нормализует строку роли (регистр не важен). Пустая строка для неизвестной роли.
func ParseRole(s string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return ""
	}
	return r
}

// Party — отправитель или получатель сообщения.
type Party struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Role        Role   `json:"role"`
}

// Message неизменяемо после создания; id — единственный ключ дедупликации, created_at — ключ сортировки.
type Message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
	Sender    Party     `json:"sender"`
	Receiver  Party     `json:"receiver"`
}

// ImageOnly — сообщение без текста, только с картинками.
func (m *Message) ImageOnly() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Images) > 0
}

// Involves сообщает, принадлежит ли сообщение переписке пары (a, b).
func (m *Message) Involves(a, b int64) bool {
	return (m.Sender.ID == a && m.Receiver.ID == b) || (m.Sender.ID == b && m.Receiver.ID == a)
}
