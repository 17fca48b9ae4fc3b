package engine

import "time"

// EventType identifies an engine event.
type EventType int

const (
	// EventLoaded fires once the manifest has been parsed.
	EventLoaded EventType = iota

	// EventQualityChanged fires when a new rendition is selected for
	// download, including the very first selection.
	EventQualityChanged

	// EventPlay fires when playback first starts.
	EventPlay

	// EventStallStarted fires when the buffer runs dry during playback.
	EventStallStarted

	// EventStallEnded fires when playback resumes after a stall.
	EventStallEnded

	// EventEnded fires when playback finishes or the playback limit is hit.
	EventEnded

	// EventError fires on load failures.
	EventError
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventLoaded:
		return "loaded"
	case EventQualityChanged:
		return "quality_changed"
	case EventPlay:
		return "play"
	case EventStallStarted:
		return "stall_started"
	case EventStallEnded:
		return "stall_ended"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to handlers on the engine goroutine.
type Event struct {
	Type      EventType
	Time      time.Time     // wall-clock timestamp (virtual time offset from the start)
	MediaTime time.Duration // playhead position
	Buffer    time.Duration

	// EventQualityChanged
	From, To    Representation
	FromIndex   int // -1 for the initial selection
	ToIndex     int
	InitialPick bool

	// EventError
	Err error
}

// Handler receives engine events. Handlers run synchronously on the
// engine's goroutine and must not block.
type Handler func(Event)
