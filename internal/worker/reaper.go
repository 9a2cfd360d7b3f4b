package worker

import (
	"context"
	"log"
	"time"
)

// Expirer requeues tasks whose lease has lapsed.
type Expirer interface {
	RequeueExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reaper returns tasks abandoned by crashed workers to the queue.
type Reaper struct {
	store    Expirer
	interval time.Duration
	now      func() time.Time
}

// NewReaper creates a reaper that sweeps every interval.
func NewReaper(store Expirer, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reaper{store: store, interval: interval, now: time.Now}
}

// Sweep requeues expired leases once and returns how many tasks moved.
func (r *Reaper) Sweep(ctx context.Context) int64 {
	n, err := r.store.RequeueExpired(ctx, r.now())
	if err != nil {
		log.Printf("[reaper] requeue expired failed: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("[reaper] requeued %d task(s) with expired leases", n)
	}
	return n
}

// Run sweeps immediately and then on every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
