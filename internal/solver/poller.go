package solver

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Poller maintains a cached queue-status snapshot so every dashboard tab
// polling /api/queue/status hits the cache instead of the hardware. One
// goroutine polls at a fixed interval, backs off with jitter after
// failures, and stops when its context is canceled.
type Poller struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	snapshot  QueueStatus
	fetchedAt time.Time
	lastErr   error

	done chan struct{}
}

// NewPoller builds a poller; call Run to start it.
func NewPoller(client *Client, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:   client,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run polls until ctx is canceled. It always performs one immediate fetch
// so the cache is warm before the first page load.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)

	failures := 0
	p.fetch(ctx, &failures)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.delay(failures)):
			p.fetch(ctx, &failures)
		}
	}
}

// Done is closed once Run has returned.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Status returns the cached snapshot, its fetch time, and whether any
// successful fetch has happened yet.
func (p *Poller) Status() (QueueStatus, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot, p.fetchedAt, !p.fetchedAt.IsZero()
}

// LastErr returns the most recent fetch error, nil after a success.
func (p *Poller) LastErr() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Poller) fetch(ctx context.Context, failures *int) {
	st, err := p.client.QueueStatusNow(ctx, "")
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		if ctx.Err() == nil {
			*failures++
			p.lastErr = err
			p.logger.Warn("queue status fetch failed", "error", err, "failures", *failures)
		}
		return
	}
	*failures = 0
	p.lastErr = nil
	p.snapshot = st
	p.fetchedAt = time.Now()
}

// delay grows the poll interval after consecutive failures, capped at
// 8x, with jitter so restarted instances don't align.
func (p *Poller) delay(failures int) time.Duration {
	d := p.interval
	for i := 0; i < failures && i < 3; i++ {
		d *= 2
	}
	jitter := time.Duration(rand.Int64N(int64(p.interval) / 4))
	return d + jitter
}
