package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const sweepInterval = time.Minute

// RateLimiter sliding-window counter keyed by account, or by client IP
// before authentication. A limit <= 0 disables it.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time
	done chan struct{}
}

// NewRateLimiter creates a limiter whose idle-key sweeper runs until ctx is
// canceled.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration) *RateLimiter {
	l := &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		done:   make(chan struct{}),
	}
	if limit <= 0 {
		close(l.done)
		return l
	}

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()
	return l
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	hits := prune(l.hits[key], now.Add(-l.window))
	if len(hits) >= l.limit {
		l.hits[key] = hits
		return false
	}
	l.hits[key] = append(hits, now)
	return true
}

// sweep drops keys with no hits inside the window.
func (l *RateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-l.window)
	for key, hits := range l.hits {
		hits = prune(hits, cutoff)
		if len(hits) == 0 {
			delete(l.hits, key)
			continue
		}
		l.hits[key] = hits
	}
}

func (l *RateLimiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Handler rejects requests over the limit with 429 and message.
func (l *RateLimiter) Handler(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetCurrentUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !l.Allow(key, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": message})
			return
		}
		c.Next()
	}
}

// RateLimit allows at most limit requests per window for each account.
// The limiter lives until ctx is canceled.
func RateLimit(ctx context.Context, limit int, window time.Duration, message string) gin.HandlerFunc {
	return NewRateLimiter(ctx, limit, window).Handler(message)
}
