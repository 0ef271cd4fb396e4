package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverlution/lumaplay/internal/domain/soundbite"
)

// Mock Recorder for testing
type mockRecorder struct {
	mu        sync.Mutex
	creates   []string
	updates   map[string][]Update
	createErr error
	updateErr error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{updates: make(map[string][]Update)}
}

func (m *mockRecorder) CreateSession(ctx context.Context, soundbiteID string, launch *LaunchContext) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return Handle{}, m.createErr
	}
	m.creates = append(m.creates, soundbiteID)
	return Handle{ID: "sess-1", StartedAt: time.Now()}, nil
}

func (m *mockRecorder) UpdateSession(ctx context.Context, sessionID string, upd Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates[sessionID] = append(m.updates[sessionID], upd)
	return nil
}

func (m *mockRecorder) updateCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates[sessionID])
}

func TestManager_Open(t *testing.T) {
	rec := newMockRecorder()
	m := NewManager(rec)

	h, err := m.Open(context.Background(), soundbite.Soundbite{ID: "sb-1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", h.ID)
	assert.Equal(t, []string{"sb-1"}, rec.creates)
}

func TestManager_Open_Error(t *testing.T) {
	rec := newMockRecorder()
	rec.createErr = errors.New("boom")
	m := NewManager(rec)

	_, err := m.Open(context.Background(), soundbite.Soundbite{ID: "sb-1"}, nil)
	assert.Error(t, err)
}

func TestManager_Patch(t *testing.T) {
	rec := newMockRecorder()
	m := NewManager(rec)

	m.Patch(context.Background(), "sess-1", Metrics{Saved: Flag(true)})

	assert.Eventually(t, func() bool {
		return rec.updateCount("sess-1") == 1
	}, time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	upd := rec.updates["sess-1"][0]
	require.NotNil(t, upd.Metrics)
	assert.True(t, *upd.Metrics.Saved)
	assert.Nil(t, upd.EndedAt)
}

func TestManager_Patch_FailureIsSwallowed(t *testing.T) {
	rec := newMockRecorder()
	rec.updateErr = errors.New("network down")
	m := NewManager(rec)

	// Must not panic or block; failures are logged only.
	m.Patch(context.Background(), "sess-1", Metrics{Saved: Flag(true)})
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, rec.updateCount("sess-1"))
}

func TestManager_Close(t *testing.T) {
	rec := newMockRecorder()
	m := NewManager(rec)

	endedAt := time.Now()
	post := &StateSnapshot{Energy: 7, Clarity: 8}
	m.Close(context.Background(), "sess-1", endedAt, post, &Metrics{
		Completed:        Flag(true),
		Skipped:          Flag(false),
		DurationListened: Listened(42 * time.Second),
	})

	assert.Eventually(t, func() bool {
		return rec.updateCount("sess-1") == 1
	}, time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	upd := rec.updates["sess-1"][0]
	require.NotNil(t, upd.EndedAt)
	assert.Equal(t, endedAt.Unix(), upd.EndedAt.Unix())
	assert.Equal(t, post, upd.PostState)
	require.NotNil(t, upd.Metrics)
	assert.True(t, *upd.Metrics.Completed)
	assert.False(t, *upd.Metrics.Skipped)
	assert.Equal(t, 42*time.Second, *upd.Metrics.DurationListened)
}

func TestManager_UpdatesTargetCapturedID(t *testing.T) {
	rec := newMockRecorder()
	m := NewManager(rec)

	// Two patches against two different captured identities must land on
	// their own sessions regardless of completion order.
	m.Patch(context.Background(), "sess-a", Metrics{Saved: Flag(true)})
	m.Patch(context.Background(), "sess-b", Metrics{LedToPractice: Flag(true)})

	assert.Eventually(t, func() bool {
		return rec.updateCount("sess-a") == 1 && rec.updateCount("sess-b") == 1
	}, time.Second, 10*time.Millisecond)
}
