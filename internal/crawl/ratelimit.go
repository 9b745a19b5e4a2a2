package crawl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfeller/redsift/internal/metrics"
)

// Limiter throttles outbound requests to a fixed cadence shared by every
// worker: no two grants occur within 60/requestsPerMinute seconds of each
// other, regardless of how many goroutines are waiting.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter builds a Limiter granting requestsPerMinute requests.
func NewLimiter(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Acquire blocks until the shared cadence allows another request, or the
// context is canceled.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(waited)
	}
	return nil
}
