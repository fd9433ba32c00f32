package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/makabra/mayorista-api/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// ByClientIP keys requests by scope and the caller address.
func ByClientIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}

// Handler enforces Config in front of a route. When the limiter itself
// fails the request is let through and OnError is told.
type Handler struct {
	Limiter Allower
	Config  Config
	OnError func(error)
	Now     func() time.Time
}

// Middleware wraps next with the limit. CORS preflights are never counted.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, reset, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		h.writeHeaders(w, remaining, reset)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(h.retryAfter(reset)))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h Handler) writeHeaders(w http.ResponseWriter, remaining int, reset time.Time) {
	hdr := w.Header()
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	hdr.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

// retryAfter rounds up to whole seconds and never advertises less than one.
func (h Handler) retryAfter(reset time.Time) int {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	return max(int(math.Ceil(reset.Sub(now).Seconds())), 1)
}
