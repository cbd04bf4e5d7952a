package api

import (
	"sync"
	"time"
)

// Clock abstracts wall time so the pacer can run against a fake in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

func SystemClock() Clock { return systemClock{} }

// Pacer enforces a minimum interval between outbound calls. The last-call
// timestamp is shared across all endpoints because the external budget is
// global, not per-endpoint.
type Pacer struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	lastCall time.Time
}

func NewPacer(interval time.Duration, clock Clock) *Pacer {
	if clock == nil {
		clock = systemClock{}
	}
	return &Pacer{clock: clock, interval: interval}
}

// Wait blocks until the minimum interval since the previous call has elapsed,
// then claims the current instant as the new last-call timestamp. The lock is
// held across the sleep so concurrent callers are spaced out, not just the
// calls of a single goroutine.
func (p *Pacer) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastCall.IsZero() {
		if since := p.clock.Now().Sub(p.lastCall); since < p.interval {
			p.clock.Sleep(p.interval - since)
		}
	}
	p.lastCall = p.clock.Now()
}
