package orchestrator

import (
	"math/rand"
	"time"
)

// JitterSource provides deterministic, per-run jitter values. The same
// seed and run index always give the same offset, so a repeated batch
// keeps its timing.
type JitterSource struct {
	seed int64
}

// NewJitterSource creates a jitter source with the given batch seed.
func NewJitterSource(seed int64) *JitterSource {
	return &JitterSource{seed: seed}
}

// NewJitterSourceFromTime creates a jitter source seeded from the current time.
func NewJitterSourceFromTime() *JitterSource {
	return NewJitterSource(time.Now().UnixNano())
}

// ForRun returns a random number generator seeded for run index.
func (j *JitterSource) ForRun(index int) *rand.Rand {
	return rand.New(rand.NewSource(int64(index) ^ j.seed))
}

// RunJitter returns a jitter duration for run index within [0, maxJitter).
func (j *JitterSource) RunJitter(index int, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(j.ForRun(index).Int63n(int64(maxJitter)))
}
