package orchestrator

import (
	"context"
	"testing"
	"time"
)

func TestJitterSource_Deterministic(t *testing.T) {
	a := NewJitterSource(42)
	b := NewJitterSource(42)

	for i := 0; i < 10; i++ {
		ja := a.RunJitter(i, time.Second)
		jb := b.RunJitter(i, time.Second)
		if ja != jb {
			t.Errorf("run %d: jitter %v != %v for the same seed", i, ja, jb)
		}
		if ja < 0 || ja >= time.Second {
			t.Errorf("run %d: jitter %v out of range", i, ja)
		}
	}
}

func TestJitterSource_ZeroMax(t *testing.T) {
	j := NewJitterSource(1)
	if got := j.RunJitter(3, 0); got != 0 {
		t.Errorf("RunJitter(3, 0) = %v, want 0", got)
	}
	if got := j.RunJitter(3, -time.Second); got != 0 {
		t.Errorf("RunJitter(3, -1s) = %v, want 0", got)
	}
}

func TestPacer_Delay(t *testing.T) {
	testCases := []struct {
		name      string
		gap       time.Duration
		maxJitter time.Duration
		index     int
		min, max  time.Duration
	}{
		{"first run starts at once", 5 * time.Second, time.Second, 0, 0, 0},
		{"gap without jitter", 5 * time.Second, 0, 1, 5 * time.Second, 5 * time.Second},
		{"gap with jitter", 5 * time.Second, time.Second, 2, 5 * time.Second, 6 * time.Second},
		{"no gap", 0, 0, 4, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPacer(tc.gap, tc.maxJitter, 7)
			d := p.Delay(tc.index)
			if d < tc.min || d > tc.max {
				t.Errorf("Delay(%d) = %v, want within [%v, %v]", tc.index, d, tc.min, tc.max)
			}
		})
	}
}

func TestPacer_WaitCancelled(t *testing.T) {
	p := NewPacer(time.Hour, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := p.Wait(ctx, 1); err == nil {
		t.Error("Wait should return the context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait should return promptly when cancelled")
	}
}

func TestPacer_WaitFirstRun(t *testing.T) {
	p := NewPacer(time.Hour, 0, 1)
	if err := p.Wait(context.Background(), 0); err != nil {
		t.Errorf("Wait(0) = %v, want nil", err)
	}
}

func TestPacer_EstimatedBatchDuration(t *testing.T) {
	p := NewPacer(5*time.Second, 2*time.Second, 1)

	if got := p.EstimatedBatchDuration(0, time.Minute); got != 0 {
		t.Errorf("empty batch = %v, want 0", got)
	}
	// 3 runs of 1m plus 2 pauses of 5s + 1s average jitter
	want := 3*time.Minute + 12*time.Second
	if got := p.EstimatedBatchDuration(3, time.Minute); got != want {
		t.Errorf("EstimatedBatchDuration = %v, want %v", got, want)
	}
}
