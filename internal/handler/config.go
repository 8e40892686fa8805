package handler

import (
	"net/http"

	"github.com/tenantdesk/internal/config"
)

// ConfigHandler отдаёт публичные параметры для клиента (без авторизации).
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetPushConfig — публичный VAPID-ключ, если пуши включены.
func (h *ConfigHandler) GetPushConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PushServiceURL == "" || h.cfg.PushVAPIDPublicKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":          true,
		"vapid_public_key": h.cfg.PushVAPIDPublicKey,
	})
}

// GetChatConfig — лимиты, которые клиент проверяет до отправки.
func (h *ConfigHandler) GetChatConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"max_content_chars": MaxContentRunes,
		"max_images":        MaxImagesPerMsg,
		"max_image_bytes":   h.cfg.MaxUploadSize,
		"heartbeat_seconds": int(h.cfg.Stream.Heartbeat.Seconds()),
	})
}
