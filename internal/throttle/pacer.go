package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// IntervalFunc returns the minimum spacing between calls to a provider
type IntervalFunc func(provider string) time.Duration

// Pacer enforces a minimum interval between calls to the same provider,
// across every concurrent escalation chain in the process.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval IntervalFunc
	logger   *logrus.Logger
}

// NewPacer creates a pacer. A provider whose interval is zero is never delayed.
func NewPacer(interval IntervalFunc, logger *logrus.Logger) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
		logger:   logger,
	}
}

// Wait blocks until the provider may be called or ctx is done
func (p *Pacer) Wait(ctx context.Context, provider string) error {
	limiter := p.limiter(provider)
	if limiter == nil {
		return nil
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %s rate limit: %w", provider, err)
	}

	if waited := time.Since(start); waited > 10*time.Millisecond {
		p.logger.WithFields(logrus.Fields{
			"provider":  provider,
			"waited_ms": waited.Milliseconds(),
		}).Debug("Paced provider call")
	}
	return nil
}

func (p *Pacer) limiter(provider string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.limiters[provider]; ok {
		return limiter
	}

	interval := p.interval(provider)
	if interval <= 0 {
		p.limiters[provider] = nil
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	p.limiters[provider] = limiter
	return limiter
}
