package session

import "time"

// StateSnapshot captures how the listener reports feeling at a point in
// time. Each dimension is self-reported on a 0-10 scale.
type StateSnapshot struct {
	Energy     int
	Clarity    int
	Arousal    int
	Connection int
}

// WhyNow captures the rationale shown to the listener before playback.
type WhyNow struct {
	YourState      string
	WhyThis        string
	ExpectedEffect string
	Authority      string
	NextStep       string
}

// LaunchContext carries optional context collected when playback of a
// single soundbite starts.
type LaunchContext struct {
	Intent   string
	Band     int // Therapeutic band, 0 = unset
	PreState *StateSnapshot
	WhyNow   *WhyNow
}

// Handle identifies a remote session. It is passed around by value so an
// in-flight update issued just before an item change still targets the
// session it was triggered against, not whatever is current when the
// network call completes.
type Handle struct {
	ID        string
	StartedAt time.Time
}

// Metrics is a partial metrics patch. Nil fields are omitted; each patch
// is an independent server-side merge, never a client-side read-modify-write.
type Metrics struct {
	Completed        *bool
	Skipped          *bool
	Saved            *bool
	LedToPractice    *bool
	LedToReceipt     *bool
	LoopCount        *int
	DurationListened *time.Duration
}

// Update is a partial session update. A non-nil EndedAt closes the session.
type Update struct {
	EndedAt   *time.Time
	PostState *StateSnapshot
	Metrics   *Metrics
}

// Flag returns a pointer to b, for building partial metrics patches.
func Flag(b bool) *bool {
	return &b
}

// Count returns a pointer to n.
func Count(n int) *int {
	return &n
}

// Listened returns a pointer to d.
func Listened(d time.Duration) *time.Duration {
	return &d
}
