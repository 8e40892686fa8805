package livechat

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/internal/model"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHTTPStoreFetchInbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chat/inbox", r.URL.Path)
		assert.Equal(t, "sess", r.Header.Get(SessionHeader))
		io.WriteString(w, `{"peers":[{"id":42,"display_name":"Anna","phone":"+7900","room":{"number":"12B"}}],"unread_counts":{"42":2}}`)
	}))
	defer srv.Close()

	res, err := NewHTTPStore(srv.URL+"/", "sess").FetchInbox(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Peers, 1)
	assert.Equal(t, "12B", res.Peers[0].Room.Number)
	assert.Equal(t, 2, res.UnreadCounts[42])
}

func TestHTTPStoreSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/peers/42/messages", r.URL.Path)
		var req model.SendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Content)
		assert.Equal(t, []string{}, req.Images)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(msg(9, 0, admin, tenant, req.Content))
	}))
	defer srv.Close()

	m, err := NewHTTPStore(srv.URL, "sess").SendMessage(context.Background(), 42, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), m.ID)
}

func TestHTTPStoreStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"content or images required"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPStore(srv.URL, "sess").SendMessage(context.Background(), 42, "", nil)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "content or images required", se.Message)
}

func TestHTTPStoreNoPeer(t *testing.T) {
	s := NewHTTPStore("http://unused", "sess")
	_, err := s.FetchHistory(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoPeer)
	assert.ErrorIs(t, s.DeleteHistory(context.Background(), 0), ErrNoPeer)
	assert.ErrorIs(t, s.MarkRead(context.Background(), 0), ErrNoPeer)
}

func TestHTTPStoreDeleteAndMarkRead(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "sess")
	require.NoError(t, s.DeleteHistory(context.Background(), 42))
	require.NoError(t, s.MarkRead(context.Background(), 42))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"DELETE /api/chat/peers/42/messages", "POST /api/chat/peers/42/read"}, calls)
}

func TestHTTPStoreUploadImage(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files/upload", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, data, body)
		assert.Equal(t, "leak.png", hdr.Filename)
		io.WriteString(w, `{"url":"/api/files/abc.png","file_name":"abc.png"}`)
	}))
	defer srv.Close()

	res, err := NewHTTPStore(srv.URL, "sess").UploadImage(context.Background(), "leak.png", data)
	require.NoError(t, err)
	assert.Equal(t, "/api/files/abc.png", res.URL)
}

func TestHTTPStoreUploadRejectsLocally(t *testing.T) {
	s := NewHTTPStore("http://unused", "sess")

	_, err := s.UploadImage(context.Background(), "notes.txt", []byte("just text"))
	assert.ErrorContains(t, err, "not an image")

	big := append(pngBytes(t), make([]byte, MaxImageSize)...)
	_, err = s.UploadImage(context.Background(), "big.png", big)
	assert.ErrorContains(t, err, "exceeds")

	_, err = s.UploadImage(context.Background(), "empty.png", nil)
	assert.Error(t, err)
}
