// Package pacing spaces out browser actions with randomized delays so that
// automated sessions look less like bursts of scripted traffic.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.Pacer = (*Controller)(nil)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Controller draws delays uniformly from per-kind ranges. It keeps no state
// besides its random source; run counters are owned by the caller.
type Controller struct {
	ranges map[adapter.DelayKind]config.DelayRange
	sleep  Sleeper
	rnd    *lockedRand
}

type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

func (l *lockedRand) int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Int63n(n)
}

type Option func(*Controller)

// WithRand injects the random source.
func WithRand(r *rand.Rand) Option { return func(c *Controller) { c.rnd = &lockedRand{src: r} } }

// WithSleeper injects the sleep function.
func WithSleeper(s Sleeper) Option { return func(c *Controller) { c.sleep = s } }

func New(p config.PacingConfig, opts ...Option) *Controller {
	c := &Controller{
		ranges: map[adapter.DelayKind]config.DelayRange{
			adapter.DelayCandidate: p.Candidate,
			adapter.DelayStep:      p.Step,
			adapter.DelaySearch:    p.Search,
		},
		sleep: ContextSleep,
		rnd:   &lockedRand{src: rand.New(rand.NewSource(time.Now().UnixNano()))},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ForCandidates returns a copy whose candidate delay uses r. Platforms with
// their own cadence get their own controller.
func (c *Controller) ForCandidates(r config.DelayRange) *Controller {
	if r.IsZero() {
		return c
	}
	cp := &Controller{ranges: map[adapter.DelayKind]config.DelayRange{}, sleep: c.sleep, rnd: c.rnd}
	for k, v := range c.ranges {
		cp.ranges[k] = v
	}
	cp.ranges[adapter.DelayCandidate] = r
	return cp
}

// Delay returns a duration drawn uniformly from the range of kind.
func (c *Controller) Delay(kind adapter.DelayKind) time.Duration {
	r := c.ranges[kind]
	if r.Max <= r.Min {
		return r.Min
	}
	span := int64(r.Max - r.Min)
	return r.Min + time.Duration(c.rnd.int63n(span+1))
}

func (c *Controller) Wait(ctx context.Context, kind adapter.DelayKind) error {
	return c.sleep(ctx, c.Delay(kind))
}

// ShouldStop reports whether the per-run ceiling has been reached.
func (c *Controller) ShouldStop(appliedSoFar, ceiling int) bool {
	return ShouldStop(appliedSoFar, ceiling)
}

func ShouldStop(appliedSoFar, ceiling int) bool {
	return ceiling <= 0 || appliedSoFar >= ceiling
}
