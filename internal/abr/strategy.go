// Package abr resolves an experiment's requested ABR algorithm against what
// the active player backend can actually switch to.
package abr

// Strategy is the ABR algorithm applied to a session.
type Strategy string

const (
	// Dynamic is the engine's intrinsic default: throughput-based at low
	// buffer, buffer-based once the buffer is healthy.
	Dynamic Strategy = "abrDynamic"

	// Bola is a buffer-occupancy based algorithm.
	Bola Strategy = "abrBola"

	// Throughput picks the highest rendition below the estimated throughput.
	Throughput Strategy = "abrThroughput"

	// Unsupported means no override was applied and the engine kept its
	// default.
	Unsupported Strategy = "unsupported"
)

// String returns the wire name of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// Parse maps a requested algorithm name onto the enumerated set. Anything
// that is not a known algorithm, including "", is Unsupported.
func Parse(requested string) Strategy {
	switch Strategy(requested) {
	case Dynamic, Bola, Throughput:
		return Strategy(requested)
	default:
		return Unsupported
	}
}

// Overridable reports whether the strategy is one a backend can be told to
// switch to. Dynamic is the default and is never "switched to".
func (s Strategy) Overridable() bool {
	return s == Bola || s == Throughput
}

// Overrider is the optional capability of a player adapter that can change
// its ABR algorithm. Adapters without a switch do not implement it.
type Overrider interface {
	SetABRStrategy(s Strategy) bool
}

// Apply applies the requested algorithm to adapter where possible and returns
// the strategy actually in effect.
//
// Only Bola and Throughput are ever switched to. An adapter that does not
// implement Overrider, a rejected override and any other request (including
// Dynamic and "") yield Unsupported and leave the engine on its default.
func Apply(adapter any, requested string) Strategy {
	o, ok := adapter.(Overrider)
	if !ok {
		return Unsupported
	}

	s := Parse(requested)
	if !s.Overridable() {
		return Unsupported
	}
	if o.SetABRStrategy(s) {
		return s
	}
	return Unsupported
}
