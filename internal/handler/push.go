package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/middleware"
	"github.com/tenantdesk/internal/push"
)

// PushSubscriber — push.Client в части подписок.
type PushSubscriber interface {
	Subscribe(ctx context.Context, userID int64, sub push.Subscription) error
	Unsubscribe(ctx context.Context, userID int64, endpoint string) error
}

// PushHandler — подписка браузера текущего пользователя на пуши.
type PushHandler struct {
	client PushSubscriber
}

func NewPushHandler(client PushSubscriber) *PushHandler {
	return &PushHandler{client: client}
}

// SubscribeRequest — subscription из PushManager.getSubscription().
type SubscribeRequest struct {
	Subscription push.Subscription `json:"subscription"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !req.Subscription.Valid() {
		writeError(w, http.StatusBadRequest, "subscription.endpoint and subscription.keys required")
		return
	}
	if err := h.client.Subscribe(r.Context(), userID, req.Subscription); err != nil {
		logger.Errorf("push subscribe user=%d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	if err := h.client.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		logger.Errorf("push unsubscribe user=%d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
