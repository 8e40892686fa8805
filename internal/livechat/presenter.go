package livechat

import (
	"strings"
	"unicode/utf8"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

// Permission — разрешение на системные уведомления.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

const (
	// PreviewLimit — максимальная длина превью в символах, вместе с многоточием.
	PreviewLimit     = 50
	ImagePlaceholder = "[Image]"
)

// Notifier показывает системное уведомление.
type Notifier interface {
	Permission() Permission
	Notify(title, body string) error
}

// Visibility сообщает, скрыт ли интерфейс (свёрнут, не в фокусе).
type Visibility interface {
	Hidden() bool
}

// VisibilityFunc адаптирует функцию к Visibility.
type VisibilityFunc func() bool

func (f VisibilityFunc) Hidden() bool { return f() }

// Presenter решает, показывать ли уведомление о пачке входящих сообщений.
type Presenter struct {
	role       model.Role
	notifier   Notifier
	visibility Visibility
}

func NewPresenter(role model.Role, n Notifier, v Visibility) *Presenter {
	return &Presenter{role: role, notifier: n, visibility: v}
}

// Present показывает не более одного уведомления на пачку: о последнем сообщении
// от второй стороны, если уведомления разрешены и интерфейс скрыт. Возвращает true, если уведомление показано.
func (p *Presenter) Present(batch []model.Message) bool {
	if p.notifier == nil || p.notifier.Permission() != PermissionGranted {
		return false
	}
	if p.visibility == nil || !p.visibility.Hidden() {
		return false
	}
	counterpart := p.role.Counterpart()
	var latest *model.Message
	for i := range batch {
		m := &batch[i]
		if m.Sender.Role != counterpart {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) ||
			(m.CreatedAt.Equal(latest.CreatedAt) && m.ID > latest.ID) {
			latest = m
		}
	}
	if latest == nil {
		return false
	}
	if err := p.notifier.Notify(latest.Sender.DisplayName, Preview(latest)); err != nil {
		logger.Errorf("livechat: notify: %v", err)
		return false
	}
	return true
}

// Preview — текст уведомления: обрезанный до PreviewLimit символов текст или плейсхолдер для картинок.
func Preview(m *model.Message) string {
	text := strings.TrimSpace(m.Content)
	if text == "" {
		if len(m.Images) > 0 {
			return ImagePlaceholder
		}
		return ""
	}
	return truncate(text, PreviewLimit)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
