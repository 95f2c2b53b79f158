package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"artist-catalog-api/internal/event"
	"artist-catalog-api/internal/model"
	"artist-catalog-api/internal/ratelimit"
)

type admitter interface {
	Admit(principal model.Principal, ok bool) ratelimit.Decision
	Capacity() int
	Window() time.Duration
}

// RateLimit must run after Authenticator.Handler: it keys buckets by the
// principal that stage attached to the request context.
type RateLimit struct {
	limiter admitter
	message string
	events  event.Publisher
}

func NewRateLimit(limiter admitter) *RateLimit {
	return &RateLimit{
		limiter: limiter,
		message: rejectionMessage(limiter.Capacity(), limiter.Window()),
	}
}

// SetPublisher reports every rejection as an event. A nil publisher disables it.
func (m *RateLimit) SetPublisher(events event.Publisher) {
	m.events = events
}

func (m *RateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		decision := m.limiter.Admit(principal, ok)

		if ok {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}

		if !decision.Allowed {
			slog.Warn("rate limit exceeded", "principal", decision.Key, "path", r.URL.Path, "retry_after", decision.RetryAfter)
			if m.events != nil {
				m.events.Publish(event.Event{Type: event.TypeRateLimited, Principal: decision.Key, Detail: r.Method + " " + r.URL.Path})
			}

			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, model.RateLimitBody{
				Error:   "Rate limit exceeded",
				Message: m.message,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rejectionMessage(capacity int, window time.Duration) string {
	if window == time.Minute {
		return fmt.Sprintf("Maximum of %d requests per minute exceeded", capacity)
	}
	return fmt.Sprintf("Maximum of %d requests per %s exceeded", capacity, window)
}
