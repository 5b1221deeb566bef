// Package session maintains the authenticated identity and wraps every
// call to the metering backend.
//
// The client is an explicit context object — constructed once, threaded
// through the oracle and orchestrator — not ambient global state. It
// caches the last-known account snapshot on disk so the rest of the core
// can degrade gracefully when the server is unreachable, and broadcasts
// an event on every state transition so the UI never polls.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pagecraft-labs/file-converter-api/internal/events"
	"github.com/pagecraft-labs/file-converter-api/internal/models"
	"github.com/pagecraft-labs/file-converter-api/internal/plan"
)

// State is the auth lifecycle position.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// ErrUnauthorized reports a 401-equivalent response. Receiving it from
// any authenticated call means the session has already been torn down.
var ErrUnauthorized = errors.New("session expired or unauthorized")

// ErrAnonymous reports an account call made without a session.
var ErrAnonymous = errors.New("not authenticated")

const snapshotFile = "identity.json"

// snapshot is the cached identity persisted between runs.
type snapshot struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// Identity is what the oracle branches on: a guest, or an account with
// its last-known limits.
type Identity struct {
	Guest bool
	User  *models.User
}

// Client talks to the auth and conversions endpoints and owns the
// session state machine.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bus        *events.Bus
	stateDir   string

	mu    sync.Mutex
	state State
	snap  *snapshot // nil while anonymous
}

// New constructs a client against baseURL, restoring any cached identity
// snapshot from stateDir. A restored snapshot puts the client straight
// into Authenticated — the next server round-trip will correct it if the
// session is stale.
func New(baseURL string, stateDir string, bus *events.Bus) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		bus:        bus,
		stateDir:   stateDir,
		state:      StateAnonymous,
	}
	if snap := c.loadSnapshot(); snap != nil {
		c.snap = snap
		c.state = StateAuthenticated
	}
	return c
}

// State returns the current lifecycle position.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the current identity without a network round-trip.
// Within a session the transition is one-directional: once an account is
// active it never silently becomes a guest again except through logout
// or session expiry.
func (c *Client) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return Identity{Guest: true}
	}
	u := c.snap.User
	return Identity{User: &u}
}

// Login authenticates and transitions Anonymous -> Authenticating ->
// Authenticated, broadcasting a login event on success. Failure returns
// to Anonymous with the error surfaced to the caller.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	c.setState(StateAuthenticating)

	var resp models.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", "",
		models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		c.setState(StateAnonymous)
		return nil, err
	}

	c.adopt(resp.User, resp.Token)
	c.bus.Publish(events.Event{Type: events.Login, Payload: resp.User})
	return &resp.User, nil
}

// Register creates an account and logs it in, broadcasting a register
// event. New accounts start on the free plan.
func (c *Client) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	c.setState(StateAuthenticating)

	var resp models.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/register", "",
		models.RegisterRequest{Name: name, Email: email, Password: password}, &resp)
	if err != nil {
		c.setState(StateAnonymous)
		return nil, err
	}

	c.adopt(resp.User, resp.Token)
	c.bus.Publish(events.Event{Type: events.Register, Payload: resp.User})
	return &resp.User, nil
}

// Logout ends the session. The server call is best-effort — local state
// is cleared and the logout event fires even if the server is down.
func (c *Client) Logout(ctx context.Context) {
	token := c.token()
	if token != "" {
		_ = c.doJSON(ctx, http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
	}
	c.expire()
}

// CurrentIdentity refreshes the identity from the server. On a network
// failure it degrades to the cached snapshot; on a 401 the session is
// expired and a guest identity is returned.
func (c *Client) CurrentIdentity(ctx context.Context) Identity {
	token := c.token()
	if token == "" {
		return Identity{Guest: true}
	}

	var resp models.UserResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/auth/me", token, nil, &resp)
	switch {
	case errors.Is(err, ErrUnauthorized):
		return Identity{Guest: true}
	case err != nil:
		// Degraded mode: the cached snapshot is stale but usable.
		return c.Identity()
	}

	c.mu.Lock()
	if c.snap != nil {
		c.snap.User = resp.User
		c.saveSnapshotLocked()
	}
	c.mu.Unlock()
	return Identity{User: &resp.User}
}

// UpgradePlan switches the account to a paid tier and refreshes the
// cached limits from the server's response.
func (c *Client) UpgradePlan(ctx context.Context, tier plan.Tier) (*models.User, error) {
	token := c.token()
	if token == "" {
		return nil, ErrAnonymous
	}

	var resp models.UpgradeResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/upgrade", token,
		models.UpgradeRequest{Plan: tier}, &resp)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.snap != nil {
		c.snap.User = resp.User
		c.saveSnapshotLocked()
	}
	c.mu.Unlock()
	// Usage events always carry a plan.Counter, whoever publishes them.
	c.bus.Publish(events.Event{
		Type:    events.UsageUpdated,
		Payload: plan.CounterFor(resp.User.ConversionsUsed, resp.User.ConversionsLimit),
	})
	return &resp.User, nil
}

// CheckLimits asks the server whether a conversion of fileSize may
// proceed. Callers must be authenticated; guests are decided locally by
// the oracle. Idempotent and safe to retry.
func (c *Client) CheckLimits(ctx context.Context, fileSize int64) (*models.CheckLimitsResponse, error) {
	token := c.token()
	if token == "" {
		return nil, ErrAnonymous
	}

	var resp models.CheckLimitsResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/conversions/check-limits", token,
		models.CheckLimitsRequest{FileSize: fileSize}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Reason == "" {
		// A payload without a reason is malformed — reject it at the
		// boundary rather than handing undefined state to the oracle.
		return nil, fmt.Errorf("malformed check-limits response")
	}
	return &resp, nil
}

// TrackConversion reports one completed conversion. NOT idempotent:
// exactly one call per successful batch.
func (c *Client) TrackConversion(ctx context.Context, rec models.ConversionRecord) (*models.TrackConversionResponse, error) {
	token := c.token()
	if token == "" {
		return nil, ErrAnonymous
	}

	var resp models.TrackConversionResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/conversions/track", token, rec, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches the account's recent conversions from the server.
func (c *Client) History(ctx context.Context, limit int) ([]models.Conversion, error) {
	token := c.token()
	if token == "" {
		return nil, ErrAnonymous
	}

	var resp models.HistoryResponse
	path := fmt.Sprintf("/api/v1/conversions/history?limit=%d", limit)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversions, nil
}

// AdoptCounters overwrites the cached usage counters with
// server-reported values and persists the snapshot.
func (c *Client) AdoptCounters(used, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return
	}
	c.snap.User.ConversionsUsed = used
	if limit != 0 {
		c.snap.User.ConversionsLimit = limit
	}
	c.saveSnapshotLocked()
}

// BumpShadowCounter increments the cached used-count by one. Called when
// a track call fails: the increment may be lost server-side, which is an
// accepted inconsistency, but the local view stays monotonic.
func (c *Client) BumpShadowCounter() models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return models.User{}
	}
	c.snap.User.ConversionsUsed++
	c.saveSnapshotLocked()
	return c.snap.User
}

// --- internals ---

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return ""
	}
	return c.snap.Token
}

// adopt installs a fresh identity after login/register.
func (c *Client) adopt(user models.User, token string) {
	c.mu.Lock()
	c.snap = &snapshot{User: user, Token: token}
	c.state = StateAuthenticated
	c.saveSnapshotLocked()
	c.mu.Unlock()
}

// expire tears the session down and broadcasts logout. Terminal for the
// session: the only way back is a fresh login.
func (c *Client) expire() {
	c.mu.Lock()
	wasAuthenticated := c.snap != nil
	c.snap = nil
	c.state = StateAnonymous
	_ = os.Remove(filepath.Join(c.stateDir, snapshotFile))
	c.mu.Unlock()

	if wasAuthenticated {
		c.bus.Publish(events.Event{Type: events.Logout})
	}
}

// doJSON performs one round-trip with a typed request and response.
// Any 401 expires the session before returning ErrUnauthorized, so the
// implicit Authenticated -> Anonymous transition happens no matter which
// call detected it.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.expire()
		return ErrUnauthorized
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr models.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s", apiErr.Message)
		}
		return fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) loadSnapshot() *snapshot {
	data, err := os.ReadFile(filepath.Join(c.stateDir, snapshotFile))
	if err != nil {
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Token == "" {
		return nil
	}
	return &snap
}

// saveSnapshotLocked persists the identity snapshot. Callers hold c.mu.
func (c *Client) saveSnapshotLocked() {
	if c.snap == nil {
		return
	}
	data, err := json.MarshalIndent(c.snap, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(c.stateDir, 0o755)
	_ = os.WriteFile(filepath.Join(c.stateDir, snapshotFile), data, 0o600)
}
