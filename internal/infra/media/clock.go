package media

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ClockConfig represents clock transport configuration.
type ClockConfig struct {
	TickMs     int                `yaml:"tick_ms" mapstructure:"tick_ms" default:"250" validate:"gte=5,lte=2000"`
	Durations  map[string]float64 `yaml:"durations" mapstructure:"durations"` // source -> seconds
	DefaultSec float64            `yaml:"default_sec" mapstructure:"default_sec" default:"60" validate:"gte=0"`
	Strict     bool               `yaml:"strict" mapstructure:"strict"` // Unknown sources fail instead of using the default
}

// ClockPlayer is a wall-clock simulation of an audio transport: it advances
// a position on a ticker and emits the same event stream a real backend
// would. Audio decoding is explicitly out of scope; real backends implement
// Player themselves.
type ClockPlayer struct {
	mu sync.Mutex

	tick       time.Duration
	durations  map[string]time.Duration
	defaultDur time.Duration
	strict     bool

	source   string
	duration time.Duration
	position time.Duration
	playing  bool
	volume   float64
	closed   bool

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClockPlayer creates a new clock transport and starts its ticker.
func NewClockPlayer(cfg ClockConfig) *ClockPlayer {
	durations := make(map[string]time.Duration, len(cfg.Durations))
	for src, sec := range cfg.Durations {
		durations[src] = time.Duration(sec * float64(time.Second))
	}

	tick := time.Duration(cfg.TickMs) * time.Millisecond
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &ClockPlayer{
		tick:       tick,
		durations:  durations,
		defaultDur: time.Duration(cfg.DefaultSec * float64(time.Second)),
		strict:     cfg.Strict,
		volume:     1,
		events:     make(chan Event, 32),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go p.run()
	return p
}

// Load points the transport at a new source and resolves its duration.
// Playback does not start until Play is called.
func (p *ClockPlayer) Load(source string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.source = source
	p.position = 0
	p.playing = false

	d, ok := p.durations[source]
	if !ok {
		if p.strict {
			p.duration = 0
			p.sendLocked(Event{
				Type:   EventError,
				Source: source,
				Err:    errors.Newf("unknown source: %s", source),
			})
			return
		}
		d = p.defaultDur
	}

	p.duration = d
	p.sendLocked(Event{Type: EventDuration, Source: source, Duration: d})
}

// Play starts or resumes the position clock.
func (p *ClockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == "" || p.duration <= 0 {
		return
	}
	p.playing = true
}

// Pause freezes the position clock. Position is retained.
func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// Seek moves the position. Targets outside [0, duration] are ignored.
func (p *ClockPlayer) Seek(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos < 0 || pos > p.duration {
		return
	}
	p.position = pos
}

// SetVolume stores the volume, clamped into [0, 1]. The simulation has no
// audible output; the value is kept for state reporting only.
func (p *ClockPlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.volume = v
}

// Events returns the transport event channel.
func (p *ClockPlayer) Events() <-chan Event {
	return p.events
}

// Close stops the ticker and closes the event channel.
func (p *ClockPlayer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	<-p.done
	close(p.events)
}

func (p *ClockPlayer) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.advance()
		}
	}
}

func (p *ClockPlayer) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing || p.source == "" {
		return
	}

	p.position += p.tick
	if p.position >= p.duration {
		p.position = p.duration
		p.playing = false
		p.sendLocked(Event{Type: EventProgress, Source: p.source, Position: p.position})
		p.sendLocked(Event{Type: EventEnded, Source: p.source, Duration: p.duration})
		return
	}

	p.sendLocked(Event{Type: EventProgress, Source: p.source, Position: p.position})
}

// sendLocked sends an event without blocking.
// Must be called with lock held.
func (p *ClockPlayer) sendLocked(e Event) {
	if p.closed {
		return
	}
	select {
	case p.events <- e:
	default:
		// Channel full, drop event
	}
}
