package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tenantdesk/internal/config"
	"github.com/tenantdesk/internal/handler"
	"github.com/tenantdesk/internal/metrics"
	"github.com/tenantdesk/internal/middleware"
	"github.com/tenantdesk/internal/storage"
)

const streamPath = "/api/chat/stream"

type routerDeps struct {
	sessions storage.SessionStore
	chat     *handler.ChatHandler
	stream   *handler.StreamHandler
	files    *handler.FileHandler
	push     *handler.PushHandler
	config   *handler.ConfigHandler
}

func newRouter(cfg *config.Config, d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(metrics.HTTPMiddleware)
	r.Use(middleware.RequestLog(streamPath))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.SessionHeader, "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/config/push", d.config.GetPushConfig)
	r.Get("/api/config/chat", d.config.GetChatConfig)
	// картинки открываются из <img>, без заголовка сессии; имена — uuid
	r.Get("/api/files/{filename}", d.files.Serve)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(d.sessions))
		if cfg.RateLimit.RPS > 0 {
			r.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, streamPath).Handler)
		}
		r.Get(streamPath, d.stream.Stream)
		r.Group(func(r chi.Router) {
			// сжатие ломает построчную отдачу SSE, поэтому только для REST
			r.Use(chimw.Compress(5))
			r.Get("/api/chat/inbox", d.chat.Inbox)
			r.Get("/api/chat/unread", d.chat.Unread)
			r.Get("/api/chat/peers/{peerId}/messages", d.chat.History)
			r.Post("/api/chat/peers/{peerId}/messages", d.chat.Send)
			r.Delete("/api/chat/peers/{peerId}/messages", d.chat.DeleteHistory)
			r.Post("/api/chat/peers/{peerId}/read", d.chat.MarkRead)
			r.Post("/api/files/upload", d.files.Upload)
			r.Post("/api/push/subscribe", d.push.Subscribe)
			r.Delete("/api/push/subscribe", d.push.Unsubscribe)
		})
	})
	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
