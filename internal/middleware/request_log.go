package middleware

import (
	"net/http"
	"time"

	"github.com/tenantdesk/internal/logger"
)

// RequestLog пишет длительность запроса (асинхронно). Стрим не логируется: он живёт минутами.
func RequestLog(skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			defer logger.DeferLogDuration("http "+r.Method+" "+r.URL.Path, time.Now())()
			next.ServeHTTP(w, r)
		})
	}
}
