package orchestrator

import (
	"context"
	"time"
)

// Pacer spaces the runs of a batch: a fixed pause between runs plus a
// per-run jitter so that repeated batches on several nodes do not hit the
// CDN in lockstep.
type Pacer struct {
	gap       time.Duration
	maxJitter time.Duration
	jitter    *JitterSource
}

// NewPacer creates a pacer. A seed of 0 seeds from the clock.
func NewPacer(gap, maxJitter time.Duration, seed int64) *Pacer {
	js := NewJitterSource(seed)
	if seed == 0 {
		js = NewJitterSourceFromTime()
	}
	return &Pacer{gap: gap, maxJitter: maxJitter, jitter: js}
}

// Delay returns the pause before run index. The first run starts at once.
func (p *Pacer) Delay(index int) time.Duration {
	if index <= 0 {
		return 0
	}
	return p.gap + p.jitter.RunJitter(index, p.maxJitter)
}

// Wait blocks for the pause before run index. Returns the context error
// if cancelled first.
func (p *Pacer) Wait(ctx context.Context, index int) error {
	d := p.Delay(index)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EstimatedBatchDuration returns the expected wall time of a batch of runs
// that each last up to runDuration.
func (p *Pacer) EstimatedBatchDuration(runs int, runDuration time.Duration) time.Duration {
	if runs <= 0 {
		return 0
	}
	pauses := time.Duration(runs - 1)
	return time.Duration(runs)*runDuration + pauses*(p.gap+p.maxJitter/2)
}

// Gap returns the configured pause between runs.
func (p *Pacer) Gap() time.Duration {
	return p.gap
}
