package engine

import (
	"math"
	"time"
)

// DefaultBandwidthEstimate is used until the first segment completes.
const DefaultBandwidthEstimate = 1_000_000

// ewma is an exponentially weighted moving average where each sample is
// weighted by its duration in seconds.
type ewma struct {
	alpha       float64
	estimate    float64
	totalWeight float64
}

func newEWMA(halfLife time.Duration) *ewma {
	return &ewma{alpha: math.Exp(math.Log(0.5) / halfLife.Seconds())}
}

func (e *ewma) sample(weight, value float64) {
	a := math.Pow(e.alpha, weight)
	e.estimate = value*(1-a) + a*e.estimate
	e.totalWeight += weight
}

func (e *ewma) value() float64 {
	zeroFactor := 1 - math.Pow(e.alpha, e.totalWeight)
	if zeroFactor == 0 {
		return 0
	}
	return e.estimate / zeroFactor
}

// throughputEstimator keeps a fast and a slow average and reports the
// smaller, so drops are followed quickly and spikes slowly.
type throughputEstimator struct {
	fast    *ewma
	slow    *ewma
	samples int
}

func newThroughputEstimator() *throughputEstimator {
	return &throughputEstimator{
		fast: newEWMA(2 * time.Second),
		slow: newEWMA(5 * time.Second),
	}
}

func (t *throughputEstimator) sample(elapsed time.Duration, bytes int64) {
	if elapsed <= 0 || bytes <= 0 {
		return
	}
	bps := float64(bytes*8) / elapsed.Seconds()
	w := elapsed.Seconds()
	t.fast.sample(w, bps)
	t.slow.sample(w, bps)
	t.samples++
}

// estimate returns the throughput estimate in bits per second.
func (t *throughputEstimator) estimate() int64 {
	if t.samples == 0 {
		return DefaultBandwidthEstimate
	}
	return int64(math.Min(t.fast.value(), t.slow.value()))
}
