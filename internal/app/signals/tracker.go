// Package signals tracks per-soundbite behavioral flags.
package signals

// Tracker holds ephemeral flags scoped to the currently loaded soundbite.
// Flags reset whenever a different soundbite is loaded; reloading the same
// soundbite keeps them and counts a loop.
//
// The tracker is not goroutine-safe; the playback engine serializes access
// under its own lock.
type Tracker struct {
	itemID        string
	saved         bool
	loopCount     int
	ledToPractice bool
	ledToReceipt  bool
}

// Load points the tracker at a soundbite. Loading a different soundbite
// resets all flags to defaults; reloading the current one increments the
// loop count and leaves the saved flag alone.
func (t *Tracker) Load(itemID string) {
	if itemID == t.itemID && t.itemID != "" {
		t.loopCount++
		return
	}

	t.itemID = itemID
	t.saved = false
	t.loopCount = 0
	t.ledToPractice = false
	t.ledToReceipt = false
}

// Clear resets the tracker to no item.
func (t *Tracker) Clear() {
	*t = Tracker{}
}

// MarkSaved flips the saved flag. The flip is optimistic: it is never
// rolled back if the matching telemetry patch fails.
func (t *Tracker) MarkSaved() {
	t.saved = true
}

// Saved reports whether the current soundbite has been saved.
func (t *Tracker) Saved() bool {
	return t.saved
}

// LoopCount returns how many times the current soundbite has been replayed.
func (t *Tracker) LoopCount() int {
	return t.loopCount
}

// MarkLedToPractice records that this soundbite led into a practice.
// Optimistic like MarkSaved.
func (t *Tracker) MarkLedToPractice() {
	t.ledToPractice = true
}

// MarkLedToReceipt records that this soundbite led to capturing a receipt.
func (t *Tracker) MarkLedToReceipt() {
	t.ledToReceipt = true
}

// LedToPractice reports the led-to-practice flag.
func (t *Tracker) LedToPractice() bool {
	return t.ledToPractice
}

// LedToReceipt reports the led-to-receipt flag.
func (t *Tracker) LedToReceipt() bool {
	return t.ledToReceipt
}
