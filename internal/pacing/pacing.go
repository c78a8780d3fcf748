package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Policy computes randomized inter-action delays so automated browsing does
// not fire requests at machine cadence. It holds no state beyond its bounds
// and the random source.
type Policy struct {
	Min time.Duration
	Max time.Duration
	rng *rand.Rand
}

// New builds a policy sampling uniformly in [min, max]. A nil source falls
// back to a time-seeded one.
func New(min, max time.Duration, src rand.Source) *Policy {
	if max < min {
		max = min
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Policy{Min: min, Max: max, rng: rand.New(src)}
}

// NextDelay returns a uniformly sampled duration in [Min, Max].
func (p *Policy) NextDelay() time.Duration {
	if p.Max == p.Min {
		return p.Min
	}
	return p.Min + time.Duration(p.rng.Int63n(int64(p.Max-p.Min)+1))
}

// Wait suspends for the next sampled delay or until ctx is done.
func (p *Policy) Wait(ctx context.Context) error {
	t := time.NewTimer(p.NextDelay())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
