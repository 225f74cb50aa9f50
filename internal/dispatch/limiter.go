package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// backendLimiter bounds per-backend concurrency (a buffered-channel
// semaphore) and enforces a minimum spacing between requests (a
// rate.Limiter configured for burst 1), the two concurrency controls
// spec §4.4 asks for.
type backendLimiter struct {
	sem chan struct{}
	rl  *rate.Limiter
}

func newBackendLimiter(maxConcurrent int, minInterval time.Duration) *backendLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	var rl *rate.Limiter
	if minInterval > 0 {
		rl = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &backendLimiter{
		sem: make(chan struct{}, maxConcurrent),
		rl:  rl,
	}
}

// acquire blocks until both the concurrency slot and the min-interval gate
// admit this call, or ctx is done. The returned release func must be called
// exactly once.
func (b *backendLimiter) acquire(ctx context.Context) (func(), error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if b.rl != nil {
		if err := b.rl.Wait(ctx); err != nil {
			<-b.sem
			return nil, err
		}
	}
	return func() { <-b.sem }, nil
}

// backendLimiters lazily constructs and caches one backendLimiter per
// backend name.
type backendLimiters struct {
	mu       sync.Mutex
	limiters map[string]*backendLimiter
	opts     Options
}

func newBackendLimiters(opts Options) *backendLimiters {
	return &backendLimiters{limiters: make(map[string]*backendLimiter), opts: opts}
}

func (b *backendLimiters) forBackend(name string) *backendLimiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.limiters[name]; ok {
		return l
	}
	l := newBackendLimiter(b.opts.BackendConcurrency, b.opts.BackendMinInterval)
	b.limiters[name] = l
	return l
}
