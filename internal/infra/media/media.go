// Package media provides the playback transport contract and a
// clock-driven reference transport.
package media

import "time"

// EventType represents a transport event type.
type EventType int

const (
	EventProgress EventType = iota // Playback position advanced
	EventDuration                  // Source duration became known
	EventEnded                     // Source played to its end
	EventError                     // Source failed to load or play
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventProgress:
		return "progress"
	case EventDuration:
		return "duration"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event represents a transport event. Source identifies the locator the
// event belongs to, so consumers can discard events left over from a
// superseded load.
type Event struct {
	Type     EventType
	Source   string
	Position time.Duration // Current position (EventProgress)
	Duration time.Duration // Total duration (EventDuration, EventEnded)
	Err      error         // EventError only
}

// Player is the playback transport: load a source, control it, observe it.
// It performs no queue or session logic. Seeks outside [0, duration] are
// ignored; callers clamp.
type Player interface {
	Load(source string)
	Play()
	Pause()
	Seek(pos time.Duration)
	SetVolume(v float64)
	Events() <-chan Event
	Close()
}
