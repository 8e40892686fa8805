package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tenantdesk/internal/logger"
)

// InternalSecretHeader — заголовок для вызовов push-сервиса не из приватной сети.
const InternalSecretHeader = "X-Internal-Secret"

// Client вызывает микросервис пуш-уведомлений. Если URL пустой — методы no-op.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient создаёт клиент. baseURL пустой — пуши отключены.
func NewClient(baseURL, secret string) *Client {
	if baseURL == "" {
		return &Client{}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Enabled() bool { return c.baseURL != "" }

// Subscription — подписка из браузера.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Subscription) Valid() bool {
	return s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}

// SubscribeRequest — тело запроса подписки.
type SubscribeRequest struct {
	UserID       int64        `json:"user_id"`
	Subscription Subscription `json:"subscription"`
}

// UnsubscribeRequest — тело запроса отписки.
type UnsubscribeRequest struct {
	UserID   int64  `json:"user_id"`
	Endpoint string `json:"endpoint"`
}

// NotifyRequest — запрос на отправку уведомления.
type NotifyRequest struct {
	UserID int64             `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Subscribe сохраняет подписку пользователя на push-сервисе.
func (c *Client) Subscribe(ctx context.Context, userID int64, sub Subscription) error {
	if c.baseURL == "" {
		return nil
	}
	return c.call(ctx, http.MethodPost, "/api/subscribe", SubscribeRequest{UserID: userID, Subscription: sub})
}

// Unsubscribe удаляет подписку по endpoint.
func (c *Client) Unsubscribe(ctx context.Context, userID int64, endpoint string) error {
	if c.baseURL == "" {
		return nil
	}
	return c.call(ctx, http.MethodDelete, "/api/subscribe", UnsubscribeRequest{UserID: userID, Endpoint: endpoint})
}

// Notify отправляет пуш пользователю (вызывается из API, когда у получателя нет открытого стрима).
// Ошибки только логируются.
func (c *Client) Notify(ctx context.Context, userID int64, title, body string, data map[string]string) {
	if c.baseURL == "" {
		return
	}
	if err := c.call(ctx, http.MethodPost, "/api/notify", NotifyRequest{UserID: userID, Title: title, Body: body, Data: data}); err != nil {
		logger.Errorf("push notify user=%d: %v", userID, err)
	}
}

func (c *Client) call(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(InternalSecretHeader, c.secret)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("push %s %s: %d", method, path, resp.StatusCode)
	}
	return nil
}

// PreviewLimit — максимум символов текста в пуше.
const PreviewLimit = 120

// Preview — текст уведомления: содержимое, обрезанное до PreviewLimit, или «[Image]» для сообщения из одних картинок.
func Preview(content string, images int) string {
	content = strings.TrimSpace(content)
	if content == "" {
		if images > 0 {
			return "[Image]"
		}
		return ""
	}
	r := []rune(content)
	if len(r) <= PreviewLimit {
		return content
	}
	return string(r[:PreviewLimit-1]) + "…"
}
