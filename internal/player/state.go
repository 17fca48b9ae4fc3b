package player

// State represents the lifecycle state of a player adapter.
type State int

const (
	// StateCreated is the initial state before Initialize.
	StateCreated State = iota

	// StateInitializing indicates the manifest load is in flight.
	StateInitializing

	// StateReady indicates the manifest loaded and playback can start.
	StateReady

	// StateFailed indicates the manifest load failed. Terminal.
	StateFailed

	// StatePlaying indicates media is playing.
	StatePlaying

	// StateStalled indicates playback is waiting for data.
	StateStalled

	// StateEnded indicates playback finished or the adapter was destroyed.
	// Terminal.
	StateEnded
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StatePlaying:
		return "playing"
	case StateStalled:
		return "stalled"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// IsActive returns true while the adapter holds a loaded or loading engine
// that has not finished.
func (s State) IsActive() bool {
	return s == StateInitializing || s == StateReady || s == StatePlaying || s == StateStalled
}

// IsTerminal returns true for Failed and Ended.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateEnded
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// There is no way back from Failed; a failed load is never retried.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateCreated:
		return next == StateInitializing
	case StateInitializing:
		return next == StateReady || next == StateFailed
	case StateReady:
		return next == StatePlaying || next == StateEnded
	case StatePlaying:
		return next == StateStalled || next == StateEnded
	case StateStalled:
		return next == StatePlaying || next == StateEnded
	default:
		return false
	}
}
