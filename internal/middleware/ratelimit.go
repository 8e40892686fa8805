package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 20
	defaultBurst = 40
)

type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.rps), p.burst)
		p.m[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}

// RateLimiter — token bucket по IP и по user_id. 429 при превышении.
type RateLimiter struct {
	byIP   *limiterPool
	byUser *limiterPool
	exempt map[string]bool
}

// NewRateLimiter: exemptPaths не ограничиваются (долгоживущий SSE).
func NewRateLimiter(rps float64, burst int, exemptPaths ...string) *RateLimiter {
	rl := &RateLimiter{
		// на один IP может приходиться несколько пользователей (NAT в общежитии)
		byIP:   newLimiterPool(rps*2, burst*2),
		byUser: newLimiterPool(rps, burst),
		exempt: make(map[string]bool, len(exemptPaths)),
	}
	for _, p := range exemptPaths {
		rl.exempt[p] = true
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.byIP.allow(clientIP(r)) {
			tooManyRequests(w)
			return
		}
		if userID := GetUserID(r.Context()); userID > 0 {
			if !rl.byUser.allow("u:" + strconv.FormatInt(userID, 10)) {
				tooManyRequests(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"too many requests"}`))
}

// clientIP: X-Real-Ip, первый адрес X-Forwarded-For, затем RemoteAddr.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
