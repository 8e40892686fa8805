package middleware

import (
	"net/http"

	"github.com/tenantdesk/internal/logger"
	"github.com/tenantdesk/internal/storage"
)

// SessionHeader — заголовок с идентификатором сессии.
const SessionHeader = "X-Session-Id"

// SessionAuth проверяет сессию по заголовку X-Session-Id или query session_id
// (EventSource в браузере не умеет ставить заголовки).
func SessionAuth(store storage.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionIDFromRequest(r)
			if sessionID == "" {
				unauthorized(w)
				return
			}
			session, err := store.GetSession(r.Context(), sessionID)
			if err != nil {
				logger.Errorf("session middleware GetSession session_id=%s: %v", MaskSessionID(sessionID), err)
				unauthorized(w)
				return
			}
			if session == nil || session.UserID <= 0 || !session.Role.Valid() {
				unauthorized(w)
				return
			}
			session.ID = sessionID
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

func SessionIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("session_id")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
