package ratelimit

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"artist-catalog-api/internal/model"
)

const (
	DefaultCapacity = 10
	DefaultWindow   = time.Minute
)

type Config struct {
	// Capacity is both the bucket size and the number of permits refilled
	// per Window. Refill is continuous, not a fixed-window reset.
	Capacity int
	Window   time.Duration
	Now      func() time.Time
}

type Decision struct {
	Allowed    bool
	Key        string
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter throttles authenticated principals with one token bucket each.
// Anonymous requests are never throttled.
type Limiter struct {
	store    Store
	capacity int
	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

func NewLimiter(cfg Config, store Store) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if store == nil {
		store = NewMemoryStore(0, cfg.Now)
	}

	return &Limiter{
		store:    store,
		capacity: cfg.Capacity,
		interval: cfg.Window / time.Duration(cfg.Capacity),
		window:   cfg.Window,
		now:      cfg.Now,
	}
}

// Admit consumes one permit from the principal's bucket. ok=false marks an
// anonymous request, which is always allowed.
func (l *Limiter) Admit(principal model.Principal, ok bool) Decision {
	if !ok {
		return Decision{Allowed: true, Limit: l.capacity, Remaining: l.capacity}
	}

	key := principal.Username
	bucket := l.store.GetOrCreate(key, l.newBucket)
	now := l.now()

	decision := Decision{Key: key, Limit: l.capacity}
	decision.Allowed = bucket.AllowN(now, 1)

	tokens := bucket.TokensAt(now)
	decision.Remaining = int(math.Max(0, math.Floor(tokens)))
	if !decision.Allowed {
		decision.RetryAfter = l.untilNextPermit(tokens)
	}

	return decision
}

func (l *Limiter) Capacity() int {
	return l.capacity
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

func (l *Limiter) newBucket() *rate.Limiter {
	return rate.NewLimiter(rate.Every(l.interval), l.capacity)
}

func (l *Limiter) untilNextPermit(tokens float64) time.Duration {
	missing := 1 - tokens
	if missing <= 0 {
		return 0
	}

	return time.Duration(math.Ceil(missing * float64(l.interval)))
}
