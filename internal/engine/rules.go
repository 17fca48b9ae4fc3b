package engine

import "time"

// RuleInput is the state an ABR rule decides on.
type RuleInput struct {
	Representations []Representation // ascending bandwidth
	Current         int              // index of the current rendition, -1 before the first choice
	Buffer          time.Duration
	MaxBuffer       time.Duration
	Throughput      int64 // estimated bits per second
}

// Rule picks the rendition index for the next segment.
type Rule interface {
	Name() string
	Choose(in RuleInput) int
}

// highestBelow returns the highest index whose bandwidth is <= limit, or 0.
func highestBelow(reps []Representation, limit float64) int {
	idx := 0
	for i, r := range reps {
		if float64(r.Bandwidth) <= limit {
			idx = i
		}
	}
	return idx
}

// ThroughputRule selects the highest rendition that fits under the
// estimated throughput scaled by Safety.
type ThroughputRule struct {
	Safety float64
}

// Name implements Rule.
func (r ThroughputRule) Name() string { return "throughput" }

// Choose implements Rule.
func (r ThroughputRule) Choose(in RuleInput) int {
	safety := r.Safety
	if safety <= 0 || safety > 1 {
		safety = 0.9
	}
	return highestBelow(in.Representations, float64(in.Throughput)*safety)
}

// BufferRule maps buffer occupancy onto the bitrate ladder. Below the
// reservoir it picks the lowest rendition, above the upper reservoir the
// highest, and in the cushion between it interpolates linearly. It moves at
// most one rung per decision.
type BufferRule struct {
	// Reservoir is the fraction of MaxBuffer held at the bottom and top.
	Reservoir float64
}

// Name implements Rule.
func (r BufferRule) Name() string { return "buffer" }

// Choose implements Rule.
func (r BufferRule) Choose(in RuleInput) int {
	reps := in.Representations
	top := len(reps) - 1
	if in.Current < 0 || top <= 0 {
		return 0
	}

	frac := r.Reservoir
	if frac <= 0 || frac >= 0.5 {
		frac = 0.1
	}
	reservoir := time.Duration(float64(in.MaxBuffer) * frac)
	cushion := in.MaxBuffer - 2*reservoir

	var target int
	switch {
	case in.Buffer <= reservoir:
		target = 0
	case in.Buffer >= in.MaxBuffer-reservoir:
		target = top
	default:
		pct := float64(in.Buffer-reservoir) / float64(cushion)
		low, high := float64(reps[0].Bandwidth), float64(reps[top].Bandwidth)
		target = highestBelow(reps, low+pct*(high-low))
	}

	switch {
	case target > in.Current:
		return in.Current + 1
	case target < in.Current:
		return in.Current - 1
	default:
		return in.Current
	}
}

// DynamicRule uses the throughput rule while the buffer is low and the
// buffer rule once it is stable, with hysteresis between the two.
type DynamicRule struct {
	Throughput ThroughputRule
	Buffer     BufferRule
	SwitchOn   time.Duration // buffer level that enables the buffer rule
	SwitchOff  time.Duration // buffer level that falls back to throughput

	useBuffer bool
}

// NewDynamicRule returns a DynamicRule with the usual thresholds.
func NewDynamicRule() *DynamicRule {
	return &DynamicRule{
		Throughput: ThroughputRule{Safety: 0.9},
		Buffer:     BufferRule{Reservoir: 0.1},
		SwitchOn:   12 * time.Second,
		SwitchOff:  6 * time.Second,
	}
}

// Name implements Rule.
func (r *DynamicRule) Name() string { return "dynamic" }

// Choose implements Rule.
func (r *DynamicRule) Choose(in RuleInput) int {
	if r.useBuffer && in.Buffer < r.SwitchOff {
		r.useBuffer = false
	} else if !r.useBuffer && in.Buffer >= r.SwitchOn {
		r.useBuffer = true
	}
	if r.useBuffer {
		return r.Buffer.Choose(in)
	}
	return r.Throughput.Choose(in)
}
