// Package ratelimit implements an in-memory sliding-window limiter keyed by
// caller identity and tier.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v3"
)

type Tier string

const (
	General    Tier = "general"
	Generation Tier = "generation"
	Voting     Tier = "voting"
)

// Policy allows Limit requests per sliding Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

var DefaultPolicies = map[Tier]Policy{
	General:    {Limit: 60, Window: time.Minute},
	Generation: {Limit: 10, Window: time.Hour},
	Voting:     {Limit: 120, Window: time.Minute},
}

const (
	defaultIdleTTL       = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

var ErrUnknownTier = errors.New("unknown rate limit tier")

var decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "memeforge_ratelimit_decisions_total",
	Help: "Rate limiter decisions by tier and outcome",
}, []string{"tier", "outcome"})

// Result describes a single limiter decision.
type Result struct {
	Allowed           bool
	Remaining         int
	Limit             int
	RetryAfterSeconds int
}

type limitKey struct {
	identity string
	tier     Tier
}

type window struct {
	hits     []time.Time
	lastSeen time.Time
}

// Limiter is safe for concurrent use. Each (identity, tier) key is updated
// atomically under the map's per-key lock.
type Limiter struct {
	policies      map[Tier]Policy
	entries       *xsync.MapOf[limitKey, *window]
	now           func() time.Time
	idleTTL       time.Duration
	sweepInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(policies map[Tier]Policy) *Limiter {
	return &Limiter{
		policies:      policies,
		entries:       xsync.NewMapOf[limitKey, *window](),
		now:           time.Now,
		idleTTL:       defaultIdleTTL,
		sweepInterval: defaultSweepInterval,
	}
}

// Check records a request for identity in tier if the window has room.
func (l *Limiter) Check(identity string, tier Tier) (Result, error) {
	p, ok := l.policies[tier]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}

	now := l.now()
	cutoff := now.Add(-p.Window)
	res := Result{Limit: p.Limit}

	l.entries.Compute(limitKey{identity: identity, tier: tier}, func(w *window, loaded bool) (*window, bool) {
		if !loaded {
			w = &window{}
		}
		w.lastSeen = now

		i := 0
		for i < len(w.hits) && !w.hits[i].After(cutoff) {
			i++
		}
		w.hits = w.hits[i:]

		if len(w.hits) >= p.Limit {
			wait := w.hits[0].Add(p.Window).Sub(now)
			res.RetryAfterSeconds = int(math.Ceil(wait.Seconds()))
			if res.RetryAfterSeconds < 1 {
				res.RetryAfterSeconds = 1
			}
			return w, false
		}

		w.hits = append(w.hits, now)
		res.Allowed = true
		res.Remaining = p.Limit - len(w.hits)
		return w, false
	})

	outcome := "allowed"
	if !res.Allowed {
		outcome = "rejected"
	}
	decisions.WithLabelValues(string(tier), outcome).Inc()

	return res, nil
}

// Sweep drops entries idle for longer than the idle TTL and reports how many
// were removed.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed := 0
	l.entries.Range(func(k limitKey, _ *window) bool {
		l.entries.Compute(k, func(w *window, loaded bool) (*window, bool) {
			if !loaded {
				return nil, true
			}
			if now.Sub(w.lastSeen) > l.idleTTL {
				removed++
				return nil, true
			}
			return w, false
		})
		return true
	})
	return removed
}

// Start launches the background sweep. Calling Start twice is a no-op.
func (l *Limiter) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		t := time.NewTicker(l.sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep()
			}
		}
	}(l.done)
}

// Stop terminates the sweep started by Start and waits for it to exit.
func (l *Limiter) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	return l.entries.Size()
}
