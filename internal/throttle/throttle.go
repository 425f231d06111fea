// Package throttle enforces a minimum interval between requests to the same
// host. One instance is shared by every concurrently running job so two jobs
// crawling the same host still respect the combined rate.
package throttle

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/structharvest/harvester/internal/capsule"
)

// Sleeper abstracts the wait so tests can observe it instead of sleeping.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// TimerSleeper waits on a timer, respecting context cancellation.
type TimerSleeper struct{}

// Sleep blocks for d or until the context ends.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Throttle is the shared per-host gate. The last-hit map is the only state
// shared across jobs; read, wait computation, and the new stamp happen under
// one lock so concurrent jobs cannot race past each other.
type Throttle struct {
	mu       sync.Mutex
	lastHit  map[string]time.Time
	interval time.Duration
	clock    capsule.Clock
	sleeper  Sleeper
}

// New builds a Throttle with the configured minimum per-host interval.
func New(interval time.Duration, clock capsule.Clock, sleeper Sleeper) *Throttle {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &Throttle{
		lastHit:  make(map[string]time.Time),
		interval: interval,
		clock:    clock,
		sleeper:  sleeper,
	}
}

// Wait blocks until the host may be hit again, then stamps the new last-hit
// time. The stamp accounts for the wait it just imposed.
func (t *Throttle) Wait(ctx context.Context, rawURL string) {
	if t.interval <= 0 {
		return
	}
	host := hostKey(rawURL)
	if host == "" {
		return
	}

	t.mu.Lock()
	now := t.clock.Now()
	wait := time.Duration(0)
	if last, ok := t.lastHit[host]; ok {
		if elapsed := now.Sub(last); elapsed < t.interval {
			wait = t.interval - elapsed
		}
	}
	t.lastHit[host] = now.Add(wait)
	t.mu.Unlock()

	t.sleeper.Sleep(ctx, wait)
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
