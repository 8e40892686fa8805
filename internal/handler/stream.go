package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"

	"github.com/tenantdesk/internal/frame"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/metrics"
	"github.com/tenantdesk/internal/middleware"
	"github.com/tenantdesk/internal/model"
	"github.com/tenantdesk/internal/repository"
	"github.com/tenantdesk/internal/stream"
)

const (
	DefaultHeartbeat = 25 * time.Second
	maxFrameBatch    = 50
)

// SessionReader — storage.SessionStore в части чтения.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// StreamHandler отдаёт SSE-стрим новых сообщений одной пары.
type StreamHandler struct {
	hub       *stream.Hub
	users     UserReader
	sessions  SessionReader
	heartbeat time.Duration
	buffer    int
}

func NewStreamHandler(hub *stream.Hub, users UserReader, sessions SessionReader, heartbeat time.Duration, buffer int) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandler{hub: hub, users: users, sessions: sessions, heartbeat: heartbeat, buffer: buffer}
}

// Stream: GET /api/chat/stream?peer_id=&role=
// До начала стрима ошибки отдаются обычным JSON со статусом; после — кадром error.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	role := middleware.GetRole(ctx)
	if q := r.URL.Query().Get("role"); q != "" && model.ParseRole(q) != role {
		writeError(w, http.StatusForbidden, "role does not match session")
		return
	}
	peerID := queryInt64(r, "peer_id")
	if peerID == 0 {
		writeError(w, http.StatusBadRequest, "peer_id required")
		return
	}
	peer, err := h.users.GetByID(ctx, peerID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "peer not found")
		return
	}
	if err != nil {
		logger.Errorf("stream load peer=%d: %v", peerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load peer")
		return
	}
	if peer.Role != role.Counterpart() {
		writeError(w, http.StatusForbidden, "conversation not allowed")
		return
	}

	rc := http.NewResponseController(w)
	// стрим живёт дольше WriteTimeout сервера
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Errorf("stream clear write deadline: %v", err)
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := stream.NewSubscriber(userID, peerID, h.buffer)
	h.hub.Register(sub)
	defer h.hub.Unregister(sub)
	logger.Debugf("stream open user=%d peer=%d", userID, peerID)

	if h.write(w, rc, frame.Connected{UserID: userID, PeerID: peerID}) != nil {
		return
	}

	sessionID := middleware.GetSessionID(ctx)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			if sub.Rejected() {
				h.write(w, rc, frame.Error{Code: frame.CodeOverloaded, Message: "too many open streams"})
			}
			return
		case m := <-sub.C():
			if h.write(w, rc, frame.Messages{Messages: sub.Drain(m, maxFrameBatch)}) != nil {
				return
			}
		case now := <-ticker.C:
			if !h.sessionAlive(ctx, sessionID) {
				h.write(w, rc, frame.Error{Code: frame.CodeSessionExpired, Message: "session expired"})
				return
			}
			if h.write(w, rc, frame.Heartbeat{At: now.UTC()}) != nil {
				return
			}
		}
	}
}

// sessionAlive: сбой хранилища сессий не рвёт стрим, только явное отсутствие сессии.
func (h *StreamHandler) sessionAlive(ctx context.Context, sessionID string) bool {
	s, err := h.sessions.GetSession(ctx, sessionID)
	if err != nil {
		logger.Errorf("stream session check %s: %v", middleware.MaskSessionID(sessionID), err)
		return true
	}
	return s != nil
}

func (h *StreamHandler) write(w http.ResponseWriter, rc *http.ResponseController, f frame.Frame) error {
	if err := sse.Encode(w, sse.Event{Data: frame.Wire(f)}); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	metrics.IncStreamFrame(string(f.Type()))
	return nil
}
