package pacing

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestNextDelayWithinBounds(t *testing.T) {
	p := New(5*time.Second, 15*time.Second, rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		d := p.NextDelay()
		if d < 5*time.Second || d > 15*time.Second {
			t.Fatalf("delay %v out of [5s, 15s]", d)
		}
	}
}

func TestNextDelayDeterministicUnderSeed(t *testing.T) {
	a := New(time.Second, 10*time.Second, rand.NewSource(42))
	b := New(time.Second, 10*time.Second, rand.NewSource(42))

	for i := 0; i < 50; i++ {
		if da, db := a.NextDelay(), b.NextDelay(); da != db {
			t.Fatalf("sample %d differs: %v vs %v", i, da, db)
		}
	}
}

func TestNextDelayDegenerateRange(t *testing.T) {
	p := New(3*time.Second, 3*time.Second, rand.NewSource(7))
	if d := p.NextDelay(); d != 3*time.Second {
		t.Errorf("expected 3s for equal bounds, got %v", d)
	}

	// Max below min collapses to min
	p = New(4*time.Second, time.Second, rand.NewSource(7))
	if d := p.NextDelay(); d != 4*time.Second {
		t.Errorf("expected 4s when max < min, got %v", d)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	p := New(time.Hour, 2*time.Hour, rand.NewSource(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
