package livechat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/tenantdesk/internal/frame"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/model"
)

// Target — для какой пары открывается push-канал.
type Target struct {
	SelfID int64
	PeerID int64
	Role   model.Role
}

// Conn — открытый транспорт push-канала.
// Recv блокируется до следующего кадра; после Close возвращает ошибку.
type Conn interface {
	Recv() (frame.Frame, error)
	Close() error
}

// Dialer открывает транспорт. Успешный Dial означает, что транспорт открыт.
type Dialer interface {
	Dial(ctx context.Context, t Target) (Conn, error)
}

// maxEventSize ограничивает одно SSE-событие (пачка сообщений со ссылками на картинки).
const maxEventSize = 1 << 20

// SSEDialer открывает GET /api/chat/stream и читает text/event-stream.
type SSEDialer struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewSSEDialer(baseURL, sessionID string) *SSEDialer {
	return &SSEDialer{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		sessionID: sessionID,
		// без Timeout: стрим живёт, пока его не закроют
		client: &http.Client{},
	}
}

func (d *SSEDialer) Dial(ctx context.Context, t Target) (Conn, error) {
	q := url.Values{}
	q.Set("peer_id", strconv.FormatInt(t.PeerID, 10))
	q.Set("role", string(t.Role))

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/chat/stream?"+q.Encode(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set(SessionHeader, d.sessionID)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openChannel: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := statusError("openChannel", resp)
		resp.Body.Close()
		cancel()
		return nil, err
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("openChannel: unexpected content type %q", ct)
	}
	return &sseConn{body: resp.Body, cancel: cancel, r: newEventReader(resp.Body)}, nil
}

type sseConn struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	r      *eventReader
	once   sync.Once
}

// Recv пропускает события с неизвестным типом кадра.
func (c *sseConn) Recv() (frame.Frame, error) {
	for {
		data, err := c.r.Next()
		if err != nil {
			return nil, err
		}
		f, err := frame.Decode(data)
		if errors.Is(err, frame.ErrUnknownType) {
			logger.Debugf("livechat: skip frame: %v", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

func (c *sseConn) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		err = c.body.Close()
	})
	return err
}

// eventReader разбирает text/event-stream: строки data: одного события склеиваются через \n,
// событие заканчивается пустой строкой. Комментарии и поля event/id/retry игнорируются.
type eventReader struct {
	sc *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxEventSize)
	return &eventReader{sc: sc}
}

// Next возвращает данные следующего непустого события. io.EOF — поток закончился.
func (er *eventReader) Next() ([]byte, error) {
	var data bytes.Buffer
	has := false
	for er.sc.Scan() {
		line := strings.TrimSuffix(er.sc.Text(), "\r")
		if line == "" {
			if has {
				return data.Bytes(), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field != "data" {
			continue
		}
		if has {
			data.WriteByte('\n')
		}
		data.WriteString(value)
		has = true
	}
	if err := er.sc.Err(); err != nil {
		return nil, err
	}
	if has {
		return data.Bytes(), nil
	}
	return nil, io.EOF
}
