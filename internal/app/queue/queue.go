// Package queue provides ordered soundbite queue navigation.
package queue

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/recoverlution/lumaplay/internal/domain/soundbite"
)

// ErrEmptyQueue is returned when a load leaves no playable soundbites.
var ErrEmptyQueue = errors.New("queue has no playable soundbites")

// RestartThreshold is how far into an item "previous" means "restart the
// current item" instead of stepping back to the prior one.
const RestartThreshold = 3 * time.Second

// Queue is an ordered sequence of soundbites with a current position.
// Loads replace the queue wholesale; navigation only moves the index.
// Invariant: 0 <= index < len(items).
type Queue struct {
	items []soundbite.Soundbite
	index int
}

// NewSingle builds a one-item queue, used when playing an ad-hoc soundbite
// outside any curated sequence.
func NewSingle(item soundbite.Soundbite) (*Queue, error) {
	return New([]soundbite.Soundbite{item}, 0)
}

// New builds a queue from items, dropping any without a playable source
// before indices are computed. startIndex is clamped into range.
func New(items []soundbite.Soundbite, startIndex int) (*Queue, error) {
	playable := lo.Filter(items, func(s soundbite.Soundbite, _ int) bool {
		return s.Playable()
	})
	if len(playable) == 0 {
		return nil, ErrEmptyQueue
	}

	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(playable) {
		startIndex = len(playable) - 1
	}

	return &Queue{items: playable, index: startIndex}, nil
}

// Current returns the soundbite at the current position.
func (q *Queue) Current() soundbite.Soundbite {
	return q.items[q.index]
}

// Index returns the current position.
func (q *Queue) Index() int {
	return q.index
}

// Len returns the number of soundbites in the queue.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queued soundbites.
func (q *Queue) Items() []soundbite.Soundbite {
	result := make([]soundbite.Soundbite, len(q.items))
	copy(result, q.items)
	return result
}

// Next advances the index by one, wrapping to the start after the last
// item. On a single-item queue this lands on the same item again.
func (q *Queue) Next() soundbite.Soundbite {
	q.index = (q.index + 1) % len(q.items)
	return q.items[q.index]
}

// Previous steps the index back by one with wraparound when elapsed is
// within RestartThreshold. Past the threshold the index stays put and the
// caller restarts the current item from zero; restarted reports which case
// applied.
func (q *Queue) Previous(elapsed time.Duration) (item soundbite.Soundbite, restarted bool) {
	if elapsed > RestartThreshold {
		return q.items[q.index], true
	}

	q.index = (q.index - 1 + len(q.items)) % len(q.items)
	return q.items[q.index], false
}
