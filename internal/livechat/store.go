package livechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

// MaxImageSize — предел размера картинки на загрузку.
const MaxImageSize = 5 << 20

// SessionHeader — заголовок с идентификатором сессии.
const SessionHeader = "X-Session-Id"

// Store — серверные операции переписки от имени текущего пользователя.
type Store interface {
	FetchInbox(ctx context.Context) (*model.InboxResult, error)
	// FetchHistory отдаёт всю историю с собеседником и помечает её прочитанной.
	FetchHistory(ctx context.Context, peerID int64) (*model.HistoryResult, error)
	SendMessage(ctx context.Context, peerID int64, content string, images []string) (*model.Message, error)
	DeleteHistory(ctx context.Context, peerID int64) error
	MarkRead(ctx context.Context, peerID int64) error
	UploadImage(ctx context.Context, name string, data []byte) (*model.UploadResult, error)
}

// HTTPStore ходит в REST API сервиса переписки.
type HTTPStore struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewHTTPStore(baseURL, sessionID string) *HTTPStore {
	return &HTTPStore{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		sessionID: sessionID,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStore) FetchInbox(ctx context.Context) (*model.InboxResult, error) {
	defer logger.DeferLogDuration("FetchInbox", time.Now())()
	var res model.InboxResult
	if err := s.do(ctx, "fetchInbox", http.MethodGet, "/api/chat/inbox", nil, "", &res); err != nil {
		return nil, err
	}
	if res.UnreadCounts == nil {
		res.UnreadCounts = map[int64]int{}
	}
	return &res, nil
}

func (s *HTTPStore) FetchHistory(ctx context.Context, peerID int64) (*model.HistoryResult, error) {
	defer logger.DeferLogDuration("FetchHistory", time.Now())()
	if peerID == 0 {
		return nil, ErrNoPeer
	}
	var res model.HistoryResult
	if err := s.do(ctx, "fetchHistory", http.MethodGet, peerPath(peerID, "/messages"), nil, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *HTTPStore) SendMessage(ctx context.Context, peerID int64, content string, images []string) (*model.Message, error) {
	if peerID == 0 {
		return nil, ErrNoPeer
	}
	if images == nil {
		images = []string{}
	}
	body, err := json.Marshal(model.SendMessageRequest{Content: content, Images: images})
	if err != nil {
		return nil, err
	}
	var msg model.Message
	if err := s.do(ctx, "sendMessage", http.MethodPost, peerPath(peerID, "/messages"), bytes.NewReader(body), "application/json", &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *HTTPStore) DeleteHistory(ctx context.Context, peerID int64) error {
	if peerID == 0 {
		return ErrNoPeer
	}
	return s.do(ctx, "deleteHistory", http.MethodDelete, peerPath(peerID, "/messages"), nil, "", nil)
}

func (s *HTTPStore) MarkRead(ctx context.Context, peerID int64) error {
	if peerID == 0 {
		return ErrNoPeer
	}
	return s.do(ctx, "markRead", http.MethodPost, peerPath(peerID, "/read"), nil, "", nil)
}

// UploadImage проверяет размер и тип локально, чтобы не гонять заведомо негодный файл.
func (s *HTTPStore) UploadImage(ctx context.Context, name string, data []byte) (*model.UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("uploadImage: empty file")
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("uploadImage: file exceeds %d bytes", MaxImageSize)
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("uploadImage: %s is not an image", ct)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var res model.UploadResult
	if err := s.do(ctx, "uploadImage", http.MethodPost, "/api/files/upload", &buf, mw.FormDataContentType(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func peerPath(peerID int64, suffix string) string {
	return "/api/chat/peers/" + strconv.FormatInt(peerID, 10) + suffix
}

func (s *HTTPStore) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set(SessionHeader, s.sessionID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &payload) != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{Op: op, Status: resp.StatusCode, Message: payload.Error}
}
