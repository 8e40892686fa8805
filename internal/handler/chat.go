package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tenantdesk/internal/audit"
	"github.com/tenantdesk/internal/broker"
	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/metrics"
	"github.com/tenantdesk/internal/middleware"
	"github.com/tenantdesk/internal/model"
	"github.com/tenantdesk/internal/push"
	"github.com/tenantdesk/internal/repository"
)

const (
	MaxContentRunes   = 2000
	MaxImagesPerMsg   = 9
	sideEffectTimeout = 5 * time.Second
)

// ChatHandler — REST переписки ADMIN <-> TENANT.
type ChatHandler struct {
	users    UserReader
	messages MessageStore
	broker   broker.Broker
	presence Presence
	push     PushNotifier
	audit    audit.Publisher
}

func NewChatHandler(users UserReader, messages MessageStore, b broker.Broker, presence Presence, pushClient PushNotifier, auditPub audit.Publisher) *ChatHandler {
	return &ChatHandler{users: users, messages: messages, broker: b, presence: presence, push: pushClient, audit: auditPub}
}

// counterpart загружает собеседника из пути и проверяет, что он второй стороны.
// При false ответ уже записан.
func (h *ChatHandler) counterpart(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	peerID := int64Param(r, "peerId")
	if peerID == 0 {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return nil, false
	}
	peer, err := h.users.GetByID(r.Context(), peerID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "peer not found")
		return nil, false
	}
	if err != nil {
		logger.Errorf("chat counterpart peer=%d: %v", peerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load peer")
		return nil, false
	}
	if peer.Role != middleware.GetRole(r.Context()).Counterpart() {
		writeError(w, http.StatusForbidden, "conversation not allowed")
		return nil, false
	}
	return peer, true
}

// Inbox — собеседники противоположной роли и непрочитанное по каждому.
func (h *ChatHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())
	users, err := h.users.ListByRole(r.Context(), role.Counterpart())
	if err != nil {
		logger.Errorf("chat inbox user=%d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load inbox")
		return
	}
	counts, err := h.messages.UnreadCounts(r.Context(), userID)
	if err != nil {
		logger.Errorf("chat inbox unread user=%d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load unread counts")
		return
	}
	peers := make([]model.Peer, 0, len(users))
	for i := range users {
		peers = append(peers, users[i].ToPeer())
	}
	writeJSON(w, http.StatusOK, model.InboxResult{Peers: peers, UnreadCounts: counts})
}

// Unread — только карта непрочитанного (легче, чем полный inbox).
func (h *ChatHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	counts, err := h.messages.UnreadCounts(r.Context(), userID)
	if err != nil {
		logger.Errorf("chat unread user=%d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load unread counts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unread_counts": counts})
}

// History отдаёт всю переписку и помечает входящие прочитанными.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peer, ok := h.counterpart(w, r)
	if !ok {
		return
	}
	if _, err := h.messages.MarkRead(r.Context(), userID, peer.ID); err != nil {
		logger.Errorf("chat history mark read user=%d peer=%d: %v", userID, peer.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	msgs, err := h.messages.History(r.Context(), userID, peer.ID)
	if err != nil {
		logger.Errorf("chat history user=%d peer=%d: %v", userID, peer.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	unread, err := h.messages.UnreadCount(r.Context(), userID, peer.ID)
	if err != nil {
		logger.Errorf("chat history unread user=%d peer=%d: %v", userID, peer.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to load unread count")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, model.HistoryResult{Peer: peer.ToPeer(), Messages: msgs, UnreadCount: unread})
}

// MarkRead — явная пометка прочитанным (сообщение пришло по стриму в открытую переписку).
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peer, ok := h.counterpart(w, r)
	if !ok {
		return
	}
	n, err := h.messages.MarkRead(r.Context(), userID, peer.ID)
	if err != nil {
		logger.Errorf("chat mark read user=%d peer=%d: %v", userID, peer.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

// validateMessage нормализует тело. Пустая строка ошибки — всё в порядке.
func validateMessage(req *model.SendMessageRequest) string {
	req.Content = strings.TrimSpace(req.Content)
	images := req.Images[:0]
	for _, img := range req.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	req.Images = images
	switch {
	case req.Content == "" && len(req.Images) == 0:
		return "content or images required"
	case len(req.Images) > MaxImagesPerMsg:
		return "too many images (max " + strconv.Itoa(MaxImagesPerMsg) + ")"
	case utf8.RuneCountInString(req.Content) > MaxContentRunes:
		return "content too long (max " + strconv.Itoa(MaxContentRunes) + " characters)"
	}
	return ""
}

func messageKind(m *model.Message) string {
	switch {
	case m.ImageOnly():
		return "image"
	case len(m.Images) > 0:
		return "mixed"
	}
	return "text"
}

// Send сохраняет сообщение, раздаёт его стримам через брокер и, если получатель не в переписке, шлёт пуш.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	peer, ok := h.counterpart(w, r)
	if !ok {
		return
	}
	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if msg := validateMessage(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	self, err := h.users.GetByID(ctx, userID)
	if err != nil {
		logger.Errorf("chat send load self user=%d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load sender")
		return
	}

	msg := &model.Message{
		Content:  req.Content,
		Images:   req.Images,
		Sender:   self.ToParty(),
		Receiver: peer.ToParty(),
	}
	if err := h.messages.Create(ctx, msg); err != nil {
		logger.Errorf("chat send create user=%d peer=%d: %v", userID, peer.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	metrics.IncMessageSent(messageKind(msg))

	// сообщение уже сохранено: сбои доставки только логируем, клиент догонит историей
	if err := h.broker.Publish(ctx, msg); err != nil {
		logger.Errorf("chat send publish message=%d: %v", msg.ID, err)
	}
	h.afterSend(chimw.GetReqID(ctx), *msg)

	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) afterSend(reqID string, msg model.Message) {
	ev := audit.NewEvent(audit.RoutingMessageSent, msg.Sender.ID, msg.Receiver.ID)
	ev.MessageID = msg.ID
	ev.ImageCount = len(msg.Images)
	ev.RequestID = reqID
	h.publishAudit(ev)

	if h.presence.Online(msg.Receiver.ID, msg.Sender.ID) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		h.push.Notify(ctx, msg.Receiver.ID, msg.Sender.DisplayName, push.Preview(msg.Content, len(msg.Images)), map[string]string{
			"peer_id":    strconv.FormatInt(msg.Sender.ID, 10),
			"message_id": strconv.FormatInt(msg.ID, 10),
		})
	}()
}

func (h *ChatHandler) publishAudit(ev audit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := h.audit.Publish(ctx, ev.Type, ev); err != nil {
		logger.Errorf("chat audit %s actor=%d: %v", ev.Type, ev.ActorID, err)
	}
}

// DeleteHistory удаляет всю переписку пары (для обеих сторон).
func (h *ChatHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peer, ok := h.counterpart(w, r)
	if !ok {
		return
	}
	n, err := h.messages.DeleteHistory(r.Context(), userID, peer.ID)
	if err != nil {
		logger.Errorf("chat delete history user=%d peer=%d: %v", userID, peer.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete history")
		return
	}
	ev := audit.NewEvent(audit.RoutingHistoryDeleted, userID, peer.ID)
	ev.Deleted = n
	ev.RequestID = chimw.GetReqID(r.Context())
	h.publishAudit(ev)
	w.WriteHeader(http.StatusNoContent)
}
