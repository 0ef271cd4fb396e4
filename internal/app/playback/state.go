// Package playback provides the player façade: a single state container
// that owns the queue, the media transport, and the open telemetry session.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // No soundbite loaded (empty queue or stopped)
	StateLoading              // Source handed to the transport, not yet playing
	StatePlaying              // Soundbite is playing
	StatePaused               // Soundbite is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
