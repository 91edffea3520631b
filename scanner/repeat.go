package scanner

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneAbove bounds how many idle per-card limiters are kept around.
const pruneAbove = 256

// RepeatFilter lets each card through at most once per period.
type RepeatFilter struct {
	limit rate.Limit
	mu    sync.Mutex
	keys  map[string]*rate.Limiter
}

// NewRepeatFilter returns nil for a non-positive period; a nil filter
// accepts everything.
func NewRepeatFilter(period time.Duration) *RepeatFilter {
	if period <= 0 {
		return nil
	}
	return &RepeatFilter{
		limit: rate.Every(period),
		keys:  make(map[string]*rate.Limiter),
	}
}

func (filter *RepeatFilter) Accept(key string, now time.Time) bool {
	if filter == nil {
		return true
	}

	filter.mu.Lock()
	defer filter.mu.Unlock()

	limiter, ok := filter.keys[key]
	if !ok {
		if len(filter.keys) >= pruneAbove {
			filter.prune(now)
		}
		// Burst of 1 lets the first presentation through.
		limiter = rate.NewLimiter(filter.limit, 1)
		filter.keys[key] = limiter
	}

	return limiter.AllowN(now, 1)
}

// prune forgets cards whose limiter has refilled; they behave exactly like a
// card never seen.
func (filter *RepeatFilter) prune(now time.Time) {
	for key, limiter := range filter.keys {
		if limiter.TokensAt(now) >= 1 {
			delete(filter.keys, key)
		}
	}
}
