package oracle

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// adaptiveLimiter paces oracle calls. Successes raise the rate by 20% up
// to twice the configured rate; a 429 halves it, down to a quarter.
type adaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

func newAdaptiveLimiter(rps float64) *adaptiveLimiter {
	r := rate.Limit(rps)
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &adaptiveLimiter{
		limiter:     rate.NewLimiter(r, burst),
		maxRate:     r * 2,
		minRate:     r / 4,
		currentRate: r,
	}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) onSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setRate(min(a.currentRate*1.2, a.maxRate))
}

func (a *adaptiveLimiter) onRateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setRate(max(a.currentRate*0.5, a.minRate))
	zap.L().Warn("oracle: reducing request rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

func (a *adaptiveLimiter) setRate(r rate.Limit) {
	a.currentRate = r
	a.limiter.SetLimit(r)
}

func (a *adaptiveLimiter) current() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}
