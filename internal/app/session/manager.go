// Package session manages the telemetry session lifecycle for played
// soundbites: exactly one create per item-start, partial metric patches,
// and an at-most-once close.
package session

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/recoverlution/lumaplay/internal/domain/soundbite"
)

// Recorder sends session lifecycle calls to the telemetry backend.
// Implemented by infra/telemetry.Client.
type Recorder interface {
	CreateSession(ctx context.Context, soundbiteID string, launch *LaunchContext) (Handle, error)
	UpdateSession(ctx context.Context, sessionID string, upd Update) error
}

// Manager issues create/update/close calls for playback sessions. It keeps
// no session state of its own beyond in-flight calls: every method takes
// the session identity by value, so out-of-order network responses cannot
// cross-contaminate sessions.
type Manager struct {
	rec     Recorder
	timeout time.Duration
}

// NewManager creates a new session lifecycle manager.
func NewManager(rec Recorder) *Manager {
	return &Manager{
		rec:     rec,
		timeout: 15 * time.Second,
	}
}

// Open issues the create-session call for a soundbite that just started
// playing. It blocks until the backend assigns an identity; the caller
// runs it off the playback path.
func (m *Manager) Open(ctx context.Context, sb soundbite.Soundbite, launch *LaunchContext) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	h, err := m.rec.CreateSession(ctx, sb.ID, launch)
	if err != nil {
		return Handle{}, errors.Wrap(err, "failed to create session")
	}

	zlog.Debug().Msgf("session: opened: session_id=%s soundbite=%s", h.ID, sb.ID)
	return h, nil
}

// Patch merges a partial metrics patch into the session. Fire-and-observe:
// the call runs in the background and failures are logged, never surfaced
// to the listener and never retried.
func (m *Manager) Patch(ctx context.Context, sessionID string, metrics Metrics) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		if err := m.rec.UpdateSession(ctx, sessionID, Update{Metrics: &metrics}); err != nil {
			zlog.Warn().Msgf("session: patch failed: session_id=%s err=%v", sessionID, err)
			return
		}
		zlog.Debug().Msgf("session: patched: session_id=%s", sessionID)
	}()
}

// Close stamps the end timestamp and merges any trailing metrics and
// post-state. Also fire-and-observe. The caller guarantees at most one
// logical close per opened session by clearing its local reference before
// calling.
func (m *Manager) Close(ctx context.Context, sessionID string, endedAt time.Time, post *StateSnapshot, metrics *Metrics) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		upd := Update{
			EndedAt:   &endedAt,
			PostState: post,
			Metrics:   metrics,
		}
		if err := m.rec.UpdateSession(ctx, sessionID, upd); err != nil {
			zlog.Warn().Msgf("session: close failed: session_id=%s err=%v", sessionID, err)
			return
		}
		zlog.Debug().Msgf("session: closed: session_id=%s", sessionID)
	}()
}
