package livechat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/internal/frame"
	"github.com/tenantdesk/internal/model"
)

func TestSSEDialerReadsFrames(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/stream", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("peer_id"))
		assert.Equal(t, "ADMIN", r.URL.Query().Get("role"))
		assert.Equal(t, "sess-1", r.Header.Get(SessionHeader))

		w.Header().Set("Content-Type", sse.ContentType)
		w.WriteHeader(http.StatusOK)
		assert.NoError(t, sse.Encode(w, sse.Event{Data: frame.Wire(frame.Connected{UserID: 1, PeerID: 42})}))
		io.WriteString(w, ": keep-alive\n\n")
		assert.NoError(t, sse.Encode(w, sse.Event{Data: frame.Payload{Type: "typing"}}))
		assert.NoError(t, sse.Encode(w, sse.Event{Event: "chat", Data: frame.Wire(frame.Messages{
			Messages: []model.Message{msg(5, 0, tenant, admin, "hello")},
		})}))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := NewSSEDialer(srv.URL, "sess-1")
	conn, err := d.Dial(context.Background(), Target{SelfID: 1, PeerID: 42, Role: model.RoleAdmin})
	require.NoError(t, err)
	defer conn.Close()

	f, err := conn.Recv()
	require.NoError(t, err)
	assert.Equal(t, frame.Connected{UserID: 1, PeerID: 42}, f)

	f, err = conn.Recv()
	require.NoError(t, err)
	m, ok := f.(frame.Messages)
	require.True(t, ok)
	require.Len(t, m.Messages, 1)
	assert.Equal(t, "hello", m.Messages[0].Content)

	require.NoError(t, conn.Close())
	_, err = conn.Recv()
	assert.Error(t, err)
}

func TestSSEDialerRejectsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"unauthorized"}`)
	}))
	defer srv.Close()

	_, err := NewSSEDialer(srv.URL, "bad").Dial(context.Background(), Target{PeerID: 42, Role: model.RoleAdmin})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestEventReaderMultiLineAndCRLF(t *testing.T) {
	stream := "retry: 3000\r\nid: 7\r\ndata: {\"type\":\r\ndata: \"heartbeat\"}\r\n\r\n\n\ndata:{\"type\":\"connected\"}"
	r := newEventReader(strings.NewReader(stream))

	data, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":\n\"heartbeat\"}", string(data))

	data, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"connected"}`, string(data))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
