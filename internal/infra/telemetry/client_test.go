package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverlution/lumaplay/internal/app/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:    srv.URL,
		Token:      "test-token",
		Device:     "web",
		AppVersion: "2.2",
	})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Token: "t"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestClient_CreateSession(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotRequestID string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session":{"id":"sess-42","started_at":"2026-09-01T10:00:00Z"}}`))
	})

	launch := &session.LaunchContext{
		Intent: "settle",
		Band:   3,
		PreState: &session.StateSnapshot{
			Energy: 4, Clarity: 5, Arousal: 6, Connection: 7,
		},
		WhyNow: &session.WhyNow{YourState: "restless"},
	}

	h, err := c.CreateSession(context.Background(), "sb-1", launch)
	require.NoError(t, err)

	assert.Equal(t, "sess-42", h.ID)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), h.StartedAt)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "sb-1", gotBody["soundbite_asset_id"])
	assert.Equal(t, "settle", gotBody["intent"])
	// Band travels as a string on the wire.
	assert.Equal(t, "3", gotBody["band"])
	assert.Equal(t, "web", gotBody["device"])
	assert.Equal(t, "2.2", gotBody["app_version"])

	pre, ok := gotBody["pre_state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), pre["energy"])

	why, ok := gotBody["why_now"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "restless", why["your_state"])
}

func TestClient_CreateSession_MinimalRequest(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"session":{"id":"sess-1","started_at":"2026-09-01T10:00:00Z"}}`))
	})

	_, err := c.CreateSession(context.Background(), "sb-1", nil)
	require.NoError(t, err)

	_, hasIntent := gotBody["intent"]
	assert.False(t, hasIntent)
	_, hasBand := gotBody["band"]
	assert.False(t, hasBand)
	_, hasPre := gotBody["pre_state"]
	assert.False(t, hasPre)
}

func TestClient_CreateSession_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusInternalServerError)
	})

	_, err := c.CreateSession(context.Background(), "sb-1", nil)
	assert.Error(t, err)
}

func TestClient_CreateSession_MissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session":{}}`))
	})

	_, err := c.CreateSession(context.Background(), "sb-1", nil)
	assert.Error(t, err)
}

func TestClient_UpdateSession(t *testing.T) {
	var gotBody map[string]any
	var gotPath string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	endedAt := time.Date(2026, 9, 1, 10, 5, 0, 0, time.UTC)
	err := c.UpdateSession(context.Background(), "sess-42", session.Update{
		EndedAt:   &endedAt,
		PostState: &session.StateSnapshot{Energy: 8},
		Metrics: &session.Metrics{
			Completed:        session.Flag(true),
			Skipped:          session.Flag(false),
			DurationListened: session.Listened(90 * time.Second),
			LoopCount:        session.Count(2),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/sessions/sess-42", gotPath)
	// The engine-side end timestamp maps to completed_at on the wire.
	assert.Equal(t, "2026-09-01T10:05:00Z", gotBody["completed_at"])

	metrics, ok := gotBody["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, metrics["completed"])
	assert.Equal(t, false, metrics["skipped"])
	assert.Equal(t, float64(90000), metrics["duration_listened_ms"])
	assert.Equal(t, float64(2), metrics["loop_count"])

	post, ok := gotBody["post_state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(8), post["energy"])
}

func TestClient_UpdateSession_MetricsOnly(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := c.UpdateSession(context.Background(), "sess-42", session.Update{
		Metrics: &session.Metrics{Saved: session.Flag(true)},
	})
	require.NoError(t, err)

	_, hasCompletedAt := gotBody["completed_at"]
	assert.False(t, hasCompletedAt)

	metrics, ok := gotBody["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, metrics["saved"])
	_, hasSkipped := metrics["skipped"]
	assert.False(t, hasSkipped)
}

func TestClient_UpdateSession_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	})

	err := c.UpdateSession(context.Background(), "sess-42", session.Update{})
	assert.Error(t, err)
}
