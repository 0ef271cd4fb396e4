package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/recoverlution/lumaplay/internal/app/queue"
	"github.com/recoverlution/lumaplay/internal/app/session"
	"github.com/recoverlution/lumaplay/internal/app/signals"
	"github.com/recoverlution/lumaplay/internal/domain/soundbite"
	"github.com/recoverlution/lumaplay/internal/infra/media"
)

// Errors
var (
	ErrNoItem = errors.New("no soundbite loaded")
)

// Config holds engine configuration.
type Config struct {
	CompletionRatio float64 // Progress fraction that counts as completed (default 0.8)
	InitialVolume   float64 // Starting volume, clamped into [0, 1] (default 1)
}

// Engine is the player façade. It exclusively owns the queue, the playback
// state, and the reference to the currently open telemetry session; no
// other component mutates these directly.
//
// All mutation happens under one lock. Telemetry calls run in the
// background with session identities captured by value, so they never
// block playback and never act on a session that has since been replaced.
type Engine struct {
	mu sync.Mutex

	transport media.Player
	sessions  *session.Manager

	queue   *queue.Queue
	current *soundbite.Soundbite
	gen     uint64 // Bumped on every item load; guards stale async results

	state    State
	elapsed  time.Duration
	duration time.Duration
	volume   float64

	open  *session.Handle // At most one; nil until the create call resolves
	flags signals.Tracker

	completionRatio float64

	eventCh chan Event
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new playback engine and starts consuming transport
// events. The engine does not take ownership of the transport; the caller
// closes it after closing the engine.
func NewEngine(cfg Config, transport media.Player, sessions *session.Manager) *Engine {
	ratio := cfg.CompletionRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.8
	}
	volume := cfg.InitialVolume
	if volume <= 0 || volume > 1 {
		volume = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		transport:       transport,
		sessions:        sessions,
		state:           StateIdle,
		volume:          volume,
		completionRatio: ratio,
		eventCh:         make(chan Event, 16),
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	transport.SetVolume(volume)

	go e.loop()
	return e
}

// Events returns the engine event channel.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// Close stops the engine. In-flight telemetry calls are abandoned; there
// is no draining of pending updates.
func (e *Engine) Close() {
	e.cancel()
	<-e.done

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	close(e.eventCh)
}

// PlayItem replaces the queue with a single ad-hoc soundbite and starts
// playing it. The outgoing session, if any, is closed with best-effort
// metrics first.
func (e *Engine) PlayItem(item soundbite.Soundbite, launch *session.LaunchContext) error {
	q, err := queue.NewSingle(item)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeOutgoingLocked()
	e.queue = q
	e.startCurrentLocked(launch)
	return nil
}

// PlayQueue replaces the queue wholesale and starts playing at startIndex
// (clamped). Items without a playable source are dropped; if nothing
// playable remains the engine stays idle and queue.ErrEmptyQueue is
// returned.
func (e *Engine) PlayQueue(items []soundbite.Soundbite, startIndex int) error {
	q, err := queue.New(items, startIndex)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeOutgoingLocked()
	e.queue = q
	e.startCurrentLocked(nil)
	return nil
}

// Play resumes playback of the current soundbite. Resuming never touches
// the session.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoItem
	}
	if e.state == StatePlaying {
		return nil
	}

	e.transport.Play()
	e.state = StatePlaying
	e.sendEventLocked(Event{Type: EventStateChanged, Item: e.current, State: e.state})
	return nil
}

// Pause pauses playback. Pausing never closes the session.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoItem
	}
	if e.state != StatePlaying {
		return nil
	}

	e.transport.Pause()
	e.state = StatePaused
	e.sendEventLocked(Event{Type: EventStateChanged, Item: e.current, State: e.state})
	return nil
}

// Next advances to the next soundbite in the queue, wrapping around after
// the last one. The outgoing session is closed with best-effort metrics.
func (e *Engine) Next() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue == nil {
		return ErrNoItem
	}

	e.closeOutgoingLocked()
	e.queue.Next()
	e.startCurrentLocked(nil)
	return nil
}

// Previous restarts the current soundbite when meaningfully into it
// (past the restart threshold), otherwise steps back to the prior queue
// position with wraparound. A restart keeps the open session; a step back
// is an item transition and closes it.
func (e *Engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue == nil {
		return ErrNoItem
	}

	if _, restarted := e.queue.Previous(e.elapsed); restarted {
		e.elapsed = 0
		e.transport.Seek(0)
		e.sendEventLocked(Event{Type: EventStateChanged, Item: e.current, State: e.state})
		return nil
	}

	e.closeOutgoingLocked()
	e.startCurrentLocked(nil)
	return nil
}

// Seek moves the playback position, clamped into [0, duration]. Seeks are
// never rejected.
func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}

	e.elapsed = pos
	e.transport.Seek(pos)
}

// SetVolume sets the volume, clamped into [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	e.volume = v
	e.transport.SetVolume(v)
}

// Save marks the current soundbite saved: the local flag flips immediately
// and a metrics patch goes out in the background, never rolled back on
// failure. With no open session (create call still in flight, or failed)
// the action is dropped.
func (e *Engine) Save() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open == nil {
		zlog.Debug().Msg("playback: save dropped, no open session")
		return
	}

	e.flags.MarkSaved()
	e.sessions.Patch(e.ctx, e.open.ID, session.Metrics{Saved: session.Flag(true)})
}

// Skip skips the current soundbite: the session closes with skip metrics
// (completed when progress reached the completion ratio) and playback
// advances to the next queue position.
func (e *Engine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return ErrNoItem
	}

	skipped := e.current
	completed := e.progressFractionLocked() >= e.completionRatio
	e.closeSessionLocked(nil, &session.Metrics{
		Skipped:          session.Flag(true),
		Completed:        session.Flag(completed),
		LoopCount:        session.Count(e.flags.LoopCount()),
		DurationListened: session.Listened(e.elapsed),
	})
	e.sendEventLocked(Event{Type: EventItemSkipped, Item: skipped, State: e.state})

	e.queue.Next()
	e.startCurrentLocked(nil)
	return nil
}

// MarkLedToPractice records that the soundbite led the listener into a
// practice. Dropped when no session is open.
func (e *Engine) MarkLedToPractice() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open == nil {
		zlog.Debug().Msg("playback: behavioral patch dropped, no open session")
		return
	}
	e.flags.MarkLedToPractice()
	e.sessions.Patch(e.ctx, e.open.ID, session.Metrics{LedToPractice: session.Flag(true)})
}

// MarkLedToReceipt records that the soundbite led to capturing a receipt.
// Dropped when no session is open.
func (e *Engine) MarkLedToReceipt() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open == nil {
		zlog.Debug().Msg("playback: behavioral patch dropped, no open session")
		return
	}
	e.flags.MarkLedToReceipt()
	e.sessions.Patch(e.ctx, e.open.ID, session.Metrics{LedToReceipt: session.Flag(true)})
}

// CompleteWithPostState closes the open session with the listener's
// post-listening state and any trailing metrics. Playback continues; only
// the telemetry record ends. Further behavioral actions on this soundbite
// are no-ops until a new item opens a new session.
func (e *Engine) CompleteWithPostState(post *session.StateSnapshot, metrics *session.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open == nil {
		zlog.Debug().Msg("playback: complete dropped, no open session")
		return
	}
	e.closeSessionLocked(post, metrics)
}

// Snapshot is a read-only view of the engine state for the presentation
// layer.
type Snapshot struct {
	Current   *soundbite.Soundbite
	State     State
	Playing   bool
	Elapsed   time.Duration
	Duration  time.Duration
	Volume    float64
	Queue     []soundbite.Soundbite
	Index     int
	Saved     bool
	LoopCount int
	SessionID string // Empty until the create call has resolved
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:     e.state,
		Playing:   e.state == StatePlaying,
		Elapsed:   e.elapsed,
		Duration:  e.duration,
		Volume:    e.volume,
		Saved:     e.flags.Saved(),
		LoopCount: e.flags.LoopCount(),
	}
	if e.current != nil {
		item := *e.current
		s.Current = &item
	}
	if e.queue != nil {
		s.Queue = e.queue.Items()
		s.Index = e.queue.Index()
	}
	if e.open != nil {
		s.SessionID = e.open.ID
	}
	return s
}

// loop consumes transport events until the engine is closed.
func (e *Engine) loop() {
	defer close(e.done)

	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-e.transport.Events():
			if !ok {
				return
			}
			e.handleTransportEvent(ev)
		}
	}
}

func (e *Engine) handleTransportEvent(ev media.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Discard events left over from a superseded load.
	if e.current == nil || ev.Source != e.current.AudioURL {
		return
	}

	switch ev.Type {
	case media.EventProgress:
		e.elapsed = ev.Position
		if e.duration > 0 && e.elapsed > e.duration {
			e.elapsed = e.duration
		}
	case media.EventDuration:
		e.duration = ev.Duration
	case media.EventEnded:
		e.onEndedLocked()
	case media.EventError:
		e.onErrorLocked(ev.Err)
	}
}

// startCurrentLocked loads and plays the soundbite at the queue's current
// position, resets per-item state, and opens a fresh session off the
// playback path. Must be called with lock held.
func (e *Engine) startCurrentLocked(launch *session.LaunchContext) {
	item := e.queue.Current()
	e.current = &item
	e.gen++
	gen := e.gen

	e.flags.Load(item.ID)
	e.elapsed = 0
	e.duration = 0

	e.state = StateLoading
	e.transport.Load(item.AudioURL)
	e.transport.Play()
	e.state = StatePlaying

	zlog.Debug().Msgf("playback: starting: soundbite=%s title=%q loop=%d", item.ID, item.Title, e.flags.LoopCount())
	e.sendEventLocked(Event{Type: EventItemStarted, Item: e.current, State: e.state})

	go e.openSession(gen, item, launch)
}

// openSession runs the blocking create call off the playback path. Until
// it resolves the engine holds no session, so behavioral actions in that
// window are silently dropped.
func (e *Engine) openSession(gen uint64, item soundbite.Soundbite, launch *session.LaunchContext) {
	h, err := e.sessions.Open(e.ctx, item, launch)
	if err != nil {
		zlog.Warn().Msgf("playback: session open failed, playing without one: soundbite=%s err=%v", item.ID, err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen {
		// The item changed while the create call was in flight. Close the
		// orphan so the server record does not stay open forever; it never
		// attaches to the new item.
		zlog.Debug().Msgf("playback: discarding superseded session: session_id=%s soundbite=%s", h.ID, item.ID)
		e.sessions.Close(e.ctx, h.ID, time.Now(), nil, nil)
		return
	}
	e.open = &h
}

// onEndedLocked handles a natural end: close with full-listen metrics,
// then advance (a single-item queue replays the same soundbite).
func (e *Engine) onEndedLocked() {
	ended := e.current
	full := e.duration

	e.closeSessionLocked(nil, &session.Metrics{
		Completed:        session.Flag(true),
		Skipped:          session.Flag(false),
		LoopCount:        session.Count(e.flags.LoopCount()),
		DurationListened: session.Listened(full),
	})
	e.sendEventLocked(Event{Type: EventItemEnded, Item: ended, State: e.state})

	e.queue.Next()
	e.startCurrentLocked(nil)
}

// onErrorLocked handles an unplayable soundbite: the item is fatal but the
// engine is not. The failed item is never retried; on a single-item queue
// advancing would reload it, so the engine goes idle instead.
func (e *Engine) onErrorLocked(cause error) {
	failed := e.current
	zlog.Error().Msgf("playback: media error: soundbite=%s err=%v", failed.ID, cause)

	e.closeOutgoingLocked()
	e.sendEventLocked(Event{Type: EventItemFailed, Item: failed, State: e.state})

	if e.queue.Len() == 1 {
		e.stopLocked()
		return
	}

	e.queue.Next()
	e.startCurrentLocked(nil)
}

// stopLocked drops the current item and parks the engine in Idle.
func (e *Engine) stopLocked() {
	e.transport.Pause()
	e.current = nil
	e.state = StateIdle
	e.elapsed = 0
	e.duration = 0
	e.flags.Clear()
	e.sendEventLocked(Event{Type: EventStateChanged, Item: nil, State: e.state})
}

// closeOutgoingLocked closes the open session, if any, with best-effort
// transition metrics. Used on every implicit item change so telemetry is
// never lost silently.
func (e *Engine) closeOutgoingLocked() {
	if e.open == nil {
		return
	}

	completed := e.progressFractionLocked() >= e.completionRatio
	e.closeSessionLocked(nil, &session.Metrics{
		Completed:        session.Flag(completed),
		Skipped:          session.Flag(!completed),
		LoopCount:        session.Count(e.flags.LoopCount()),
		DurationListened: session.Listened(e.elapsed),
	})
}

// closeSessionLocked issues the close for the open session and clears the
// local reference before the network call resolves, which is what makes a
// second close for the same session impossible. Must be called with lock
// held.
func (e *Engine) closeSessionLocked(post *session.StateSnapshot, metrics *session.Metrics) {
	if e.open == nil {
		return
	}

	h := *e.open
	e.open = nil
	e.sessions.Close(e.ctx, h.ID, time.Now(), post, metrics)
}

func (e *Engine) progressFractionLocked() float64 {
	if e.duration <= 0 {
		return 0
	}
	return float64(e.elapsed) / float64(e.duration)
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (e *Engine) sendEventLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.eventCh <- ev:
	case <-e.ctx.Done():
	default:
		// Channel full, drop event
	}
}
