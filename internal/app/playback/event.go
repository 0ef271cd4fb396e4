package playback

import "github.com/recoverlution/lumaplay/internal/domain/soundbite"

// EventType represents a playback event type.
type EventType int

const (
	EventItemStarted EventType = iota // Soundbite started playing
	EventItemEnded                    // Soundbite played to its natural end
	EventItemSkipped                  // Soundbite was skipped
	EventItemFailed                   // Soundbite could not be played
	EventStateChanged                 // Playback state changed (pause/resume/stop)
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventItemStarted:
		return "item_started"
	case EventItemEnded:
		return "item_ended"
	case EventItemSkipped:
		return "item_skipped"
	case EventItemFailed:
		return "item_failed"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event surfaced to the presentation layer.
type Event struct {
	Type  EventType
	Item  *soundbite.Soundbite // Affected soundbite (nil for some events)
	State State                // Playback state after the event
}
