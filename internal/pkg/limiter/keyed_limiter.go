/*
Package limiter provides keyed rate limiting.

It utilizes the Token Bucket algorithm (rate.Limiter) to control the frequency of events
per key (for example outbound typing updates per channel) and includes a cleanup goroutine
that periodically removes idle limiters, preventing unbounded growth.
*/
package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatline/internal/pkg/logx"
)

// cleanupPeriod is how often idle limiters are swept.
const cleanupPeriod = 3 * time.Minute

// Keyed implements a rate limiter per key.
type Keyed[K comparable] struct {
	// mu is used to protect concurrent access to the limits map.
	mu sync.RWMutex

	// limits stores the map from key to the *rate.Limiter instance.
	limits map[K]*rate.Limiter

	// r is the number of events allowed per second.
	r rate.Limit

	// b is the burst size of each limiter.
	b int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewKeyed creates a Keyed limiter and starts its cleanup goroutine. Call Stop to release it.
func NewKeyed[K comparable](r rate.Limit, b int) *Keyed[K] {
	k := &Keyed[K]{
		limits: make(map[K]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go k.cleanUp()

	return k
}

// Get retrieves the limiter for key, creating it on first use.
// It uses double-checked locking so concurrent first uses share one limiter.
func (k *Keyed[K]) Get(key K) *rate.Limiter {
	k.mu.RLock()
	limiter, exists := k.limits[key]
	k.mu.RUnlock()

	if !exists {
		k.mu.Lock()
		limiter, exists = k.limits[key]
		if !exists {
			limiter = rate.NewLimiter(k.r, k.b)
			k.limits[key] = limiter
		}
		k.mu.Unlock()
	}

	return limiter
}

// Allow reports whether an event for key may happen now.
func (k *Keyed[K]) Allow(key K) bool {
	return k.Get(key).Allow()
}

// Len returns the number of tracked keys.
func (k *Keyed[K]) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.limits)
}

// Sweep removes limiters whose bucket is full at now, i.e. keys that have been idle.
// It returns the number of removed keys.
func (k *Keyed[K]) Sweep(now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	count := 0
	for key, limiter := range k.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(k.limits, key)
			count++
		}
	}
	return count
}

// Stop terminates the cleanup goroutine and waits for it to exit. It is safe to call twice.
func (k *Keyed[K]) Stop() {
	k.stopOnce.Do(func() { close(k.stop) })
	<-k.done
}

func (k *Keyed[K]) cleanUp() {
	defer close(k.done)

	ticker := time.NewTicker(cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-k.stop:
			return
		case now := <-ticker.C:
			removed := k.Sweep(now)
			logx.Debug("Limiter cleanup finished.", "removed", removed, "remaining", k.Len())
		}
	}
}
