// Package telemetry provides the client for the playback session API.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/recoverlution/lumaplay/internal/app/session"
)

// Config represents telemetry client configuration.
type Config struct {
	BaseURL    string
	Token      string // Bearer token
	Device     string // Device tag sent on every call (e.g. "web")
	AppVersion string
	Timeout    time.Duration
}

// Client talks to the playback session API. It implements session.Recorder.
type Client struct {
	baseURL    string
	device     string
	appVersion string
	httpClient *http.Client
}

// New creates a new telemetry client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("telemetry base URL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("telemetry token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	device := cfg.Device
	if device == "" {
		device = "web"
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		device:     device,
		appVersion: cfg.AppVersion,
		httpClient: httpClient,
	}, nil
}

// stateSnapshot is the wire form of a pre/post state capture.
type stateSnapshot struct {
	Energy     int `json:"energy"`
	Clarity    int `json:"clarity"`
	Arousal    int `json:"arousal"`
	Connection int `json:"connection"`
}

// whyNow is the wire form of the pre-playback rationale.
type whyNow struct {
	YourState      string `json:"your_state,omitempty"`
	WhyThis        string `json:"why_this,omitempty"`
	ExpectedEffect string `json:"expected_effect,omitempty"`
	Authority      string `json:"authority,omitempty"`
	NextStep       string `json:"next_step,omitempty"`
}

// createSessionRequest is the POST /sessions body.
type createSessionRequest struct {
	SoundbiteAssetID string         `json:"soundbite_asset_id"`
	Intent           *string        `json:"intent,omitempty"`
	Band             *string        `json:"band,omitempty"` // Band travels as a string
	PreState         *stateSnapshot `json:"pre_state,omitempty"`
	WhyNow           *whyNow        `json:"why_now,omitempty"`
	Device           string         `json:"device"`
	AppVersion       string         `json:"app_version"`
}

// createSessionResponse is the POST /sessions response envelope.
type createSessionResponse struct {
	Session struct {
		ID        string    `json:"id"`
		StartedAt time.Time `json:"started_at"`
	} `json:"session"`
}

// metricsPatch is the partial metrics object of an update.
type metricsPatch struct {
	Completed        *bool  `json:"completed,omitempty"`
	Skipped          *bool  `json:"skipped,omitempty"`
	Saved            *bool  `json:"saved,omitempty"`
	LoopCount        *int   `json:"loop_count,omitempty"`
	LedToPractice    *bool  `json:"led_to_practice,omitempty"`
	LedToReceipt     *bool  `json:"led_to_receipt,omitempty"`
	DurationListened *int64 `json:"duration_listened_ms,omitempty"`
}

// updateSessionRequest is the PATCH /sessions/{id} body. The engine-side
// end timestamp maps to the API's completed_at field.
type updateSessionRequest struct {
	CompletedAt *string        `json:"completed_at,omitempty"` // RFC3339
	PostState   *stateSnapshot `json:"post_state,omitempty"`
	Metrics     *metricsPatch  `json:"metrics,omitempty"`
	Device      string         `json:"device"`
	AppVersion  string         `json:"app_version"`
}

// CreateSession opens a playback session for a soundbite.
func (c *Client) CreateSession(ctx context.Context, soundbiteID string, launch *session.LaunchContext) (session.Handle, error) {
	if soundbiteID == "" {
		return session.Handle{}, errors.New("soundbite ID is required")
	}

	req := createSessionRequest{
		SoundbiteAssetID: soundbiteID,
		Device:           c.device,
		AppVersion:       c.appVersion,
	}
	if launch != nil {
		if launch.Intent != "" {
			req.Intent = &launch.Intent
		}
		if launch.Band > 0 {
			band := strconv.Itoa(launch.Band)
			req.Band = &band
		}
		req.PreState = toWireState(launch.PreState)
		req.WhyNow = toWireWhyNow(launch.WhyNow)
	}

	var resp createSessionResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", req, &resp); err != nil {
		return session.Handle{}, errors.Wrap(err, "failed to create session")
	}
	if resp.Session.ID == "" {
		return session.Handle{}, errors.New("create session response missing id")
	}

	return session.Handle{
		ID:        resp.Session.ID,
		StartedAt: resp.Session.StartedAt,
	}, nil
}

// UpdateSession merges a partial update into a session. Idempotent from
// the caller's perspective; no payload is expected back.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, upd session.Update) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}

	req := updateSessionRequest{
		PostState:  toWireState(upd.PostState),
		Metrics:    toWireMetrics(upd.Metrics),
		Device:     c.device,
		AppVersion: c.appVersion,
	}
	if upd.EndedAt != nil {
		ts := upd.EndedAt.UTC().Format(time.RFC3339)
		req.CompletedAt = &ts
	}

	if err := c.do(ctx, http.MethodPatch, "/sessions/"+sessionID, req, nil); err != nil {
		return errors.Wrapf(err, "failed to update session %s", sessionID)
	}
	return nil
}

// do issues a JSON request and decodes the response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		zlog.Debug().Msgf("telemetry: %s %s failed: status=%d body=%s", method, path, resp.StatusCode, snippet)
		return errors.Newf("unexpected status %d from %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func toWireState(s *session.StateSnapshot) *stateSnapshot {
	if s == nil {
		return nil
	}
	return &stateSnapshot{
		Energy:     s.Energy,
		Clarity:    s.Clarity,
		Arousal:    s.Arousal,
		Connection: s.Connection,
	}
}

func toWireWhyNow(w *session.WhyNow) *whyNow {
	if w == nil {
		return nil
	}
	return &whyNow{
		YourState:      w.YourState,
		WhyThis:        w.WhyThis,
		ExpectedEffect: w.ExpectedEffect,
		Authority:      w.Authority,
		NextStep:       w.NextStep,
	}
}

func toWireMetrics(m *session.Metrics) *metricsPatch {
	if m == nil {
		return nil
	}
	patch := &metricsPatch{
		Completed:     m.Completed,
		Skipped:       m.Skipped,
		Saved:         m.Saved,
		LoopCount:     m.LoopCount,
		LedToPractice: m.LedToPractice,
		LedToReceipt:  m.LedToReceipt,
	}
	if m.DurationListened != nil {
		ms := m.DurationListened.Milliseconds()
		patch.DurationListened = &ms
	}
	return patch
}
