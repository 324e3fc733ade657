package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jamesprial/go-ruqqus/internal/metrics"
	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

const (
	// DefaultGrantURL is the credential exchange endpoint.
	DefaultGrantURL = "https://ruqqus.com/oauth/grant"

	// refreshLead is how long before expiry a scheduled refresh fires.
	refreshLead = 5 * time.Second

	initialRetryDelay = 5 * time.Second
	maxRetryDelay     = 5 * time.Minute
)

// AuthState is the token manager's lifecycle state.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateExchanging
	StateAuthenticated
	StateRefreshing
	StateFatal
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateExchanging:
		return "exchanging"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Stopper cancels a pending timer.
type Stopper interface {
	Stop() bool
}

// AfterFunc arms a timer that calls f after d.
type AfterFunc func(d time.Duration, f func()) Stopper

func defaultAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// TokenManagerConfig wires a TokenManager to the rest of the session.
type TokenManagerConfig struct {
	// Transport sends the grant requests.
	Transport Transport
	// Caller fetches the identity after the first exchange.
	Caller  *Caller
	Store   *CredentialStore
	Conn    *ConnectionManager
	Emitter *Emitter
	Parser  *Parser
	Metrics metrics.Recorder
	Logger  *slog.Logger

	// GrantURL defaults to DefaultGrantURL.
	GrantURL string
	// Code is the one-time authorization code used when no refresh token is stored.
	Code string
	// Lifetime bounds timer driven refreshes. It is cancelled when the session closes.
	Lifetime context.Context
	// OnFatal is called once when the credentials are rejected for good.
	OnFatal func(error)

	Now       func() time.Time
	AfterFunc AfterFunc
}

// TokenManager owns the credential lifecycle: the initial exchange, scheduled
// refreshes before expiry, out-of-band refreshes after a 401 and the login transition.
type TokenManager struct {
	transport Transport
	caller    *Caller
	store     *CredentialStore
	conn      *ConnectionManager
	emitter   *Emitter
	parser    *Parser
	metrics   metrics.Recorder
	logger    *slog.Logger
	grantURL  string
	code      string
	lifetime  context.Context
	onFatal   func(error)
	now       func() time.Time
	afterFunc AfterFunc

	// mu serialises exchanges.
	mu       sync.Mutex
	failures int

	stateMu  sync.RWMutex
	state    AuthState
	identity *types.User

	timerMu sync.Mutex
	timer   Stopper
	stopped bool

	loginOnce sync.Once
	fatalOnce sync.Once
}

// NewTokenManager creates a TokenManager from cfg.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	m := &TokenManager{
		transport: cfg.Transport,
		caller:    cfg.Caller,
		store:     cfg.Store,
		conn:      cfg.Conn,
		emitter:   cfg.Emitter,
		parser:    cfg.Parser,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		grantURL:  cfg.GrantURL,
		code:      cfg.Code,
		lifetime:  cfg.Lifetime,
		onFatal:   cfg.OnFatal,
		now:       cfg.Now,
		afterFunc: cfg.AfterFunc,
	}
	if m.grantURL == "" {
		m.grantURL = DefaultGrantURL
	}
	if m.metrics == nil {
		m.metrics = metrics.Nop{}
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.lifetime == nil {
		m.lifetime = context.Background()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.afterFunc == nil {
		m.afterFunc = defaultAfterFunc
	}
	if m.parser == nil {
		m.parser = NewParser("")
	}
	if m.emitter == nil {
		m.emitter = NewEmitter(m.metrics, m.logger)
	}
	return m
}

// State returns the current lifecycle state.
func (m *TokenManager) State() AuthState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

func (m *TokenManager) setState(s AuthState) {
	m.stateMu.Lock()
	if m.state != StateFatal {
		m.state = s
	}
	m.stateMu.Unlock()
}

// Identity returns the session user fetched at login, or nil.
func (m *TokenManager) Identity() *types.User {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.identity
}

// Start performs the initial exchange and the login transition. A fatal
// credential error is also reported through OnFatal.
func (m *TokenManager) Start(ctx context.Context) error {
	if err := m.exchange(ctx, "", false); err != nil {
		if isFatal(err) {
			m.fail(err)
		}
		return err
	}
	return m.login(ctx)
}

// RefreshAfterUnauthorized refreshes the credentials unless staleToken was already
// replaced by a concurrent exchange.
func (m *TokenManager) RefreshAfterUnauthorized(ctx context.Context, staleToken string) error {
	err := m.exchange(ctx, staleToken, true)
	if err != nil && isFatal(err) {
		m.fail(err)
	}
	return err
}

// Stop cancels the pending refresh and prevents new ones from being armed.
func (m *TokenManager) Stop() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *TokenManager) exchange(ctx context.Context, staleToken string, onlyIfStale bool) error {
	m.mu.Lock()
	if onlyIfStale && m.store.AccessToken() != staleToken {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "token already refreshed, skipping")
		return nil
	}
	snapshot, err := m.exchangeLocked(ctx)
	if err == nil {
		m.failures = 0
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}

	m.emitter.Emit(types.Event{Kind: types.EventRefresh, Credentials: &snapshot})
	return nil
}

func (m *TokenManager) exchangeLocked(ctx context.Context) (types.Credentials, error) {
	if m.conn.Closed() {
		return types.Credentials{}, pkgerrs.ErrClosed
	}

	mode := m.store.Mode()
	form := url.Values{
		"client_id":     {m.store.ClientID()},
		"client_secret": {m.store.ClientSecret()},
	}

	previous := m.State()
	switch mode {
	case types.GrantRefreshToken:
		form.Set("grant_type", "refresh")
		form.Set("refresh_token", m.store.RefreshToken())
	default:
		if previous != StateUnauthenticated || m.code == "" {
			return types.Credentials{}, &pkgerrs.AuthError{
				StatusCode: http.StatusUnauthorized,
				Reason:     pkgerrs.ReasonRefreshToken,
				Message:    "no refresh token available",
				Fatal:      true,
			}
		}
		form.Set("grant_type", "code")
		form.Set("code", m.code)
	}

	if previous == StateUnauthenticated {
		m.setState(StateExchanging)
	} else {
		m.setState(StateRefreshing)
	}

	resp, err := m.transport.Do(ctx, &Request{Method: http.MethodPost, Path: m.grantURL, Form: form})
	if err == nil {
		var res GrantResult
		res, err = parseGrant(resp, mode)
		if err == nil {
			if m.conn.Closed() {
				return types.Credentials{}, pkgerrs.ErrClosed
			}
			m.store.Apply(res)
			m.setState(StateAuthenticated)
			m.metrics.RecordExchange(mode.String(), true)
			m.logger.InfoContext(ctx, "credentials exchanged",
				"mode", mode.String(),
				"expires_at", res.ExpiresAt,
				"scopes", res.Scopes.String(),
			)
			m.schedule(res.ExpiresAt)
			return m.store.Snapshot(), nil
		}
	}

	m.setState(previous)
	m.metrics.RecordExchange(mode.String(), false)
	return types.Credentials{}, err
}

// grantResponse is the body of the grant endpoint on success or failure.
type grantResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"`
	Scopes       string  `json:"scopes"`
	OAuthError   string  `json:"oauth_error"`
	Error        string  `json:"error"`
}

func parseGrant(resp *Response, mode types.GrantMode) (GrantResult, error) {
	var body grantResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return GrantResult{}, pkgerrs.NewAPIError(resp.StatusCode, string(resp.Body))
		}
		return GrantResult{}, &pkgerrs.ParseError{Operation: "grant", Err: err}
	}

	clientError := resp.StatusCode >= 400 && resp.StatusCode < 500
	if body.OAuthError != "" || (body.Error != "" && clientError) {
		msg := body.OAuthError
		if msg == "" {
			msg = body.Error
		}
		return GrantResult{}, &pkgerrs.AuthError{
			StatusCode: http.StatusUnauthorized,
			Reason:     classifyOAuthError(body.Error, body.OAuthError, mode),
			Message:    msg,
			Body:       string(resp.Body),
			Fatal:      true,
		}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return GrantResult{}, pkgerrs.NewAPIError(resp.StatusCode, string(resp.Body))
	}
	if clientError {
		return GrantResult{}, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Reason:     pkgerrs.ReasonUnknown,
			Body:       string(resp.Body),
			Fatal:      true,
		}
	}

	if body.AccessToken == "" || body.ExpiresAt <= 0 || body.Scopes == "" {
		return GrantResult{}, &pkgerrs.ParseError{
			Operation: "grant",
			Message:   "response is missing access_token, expires_at or scopes",
		}
	}

	return GrantResult{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    unixTime(body.ExpiresAt),
		Scopes:       types.ParseScopes(body.Scopes),
	}, nil
}

// classifyOAuthError decides which credential the server rejected. A structured
// error code wins; otherwise the human readable message is matched by prefix.
func classifyOAuthError(code, message string, mode types.GrantMode) pkgerrs.AuthReason {
	switch code {
	case "invalid_client", "unauthorized_client":
		return pkgerrs.ReasonClientCredentials
	case "invalid_grant":
		if mode == types.GrantRefreshToken {
			return pkgerrs.ReasonRefreshToken
		}
		return pkgerrs.ReasonAuthorizationCode
	}

	switch {
	case strings.HasPrefix(message, "Invalid refresh_token"):
		return pkgerrs.ReasonRefreshToken
	case strings.HasPrefix(message, "Invalid code"):
		return pkgerrs.ReasonAuthorizationCode
	case strings.HasPrefix(message, "Invalid `client_id`"):
		return pkgerrs.ReasonClientCredentials
	}
	return pkgerrs.ReasonUnknown
}

func (m *TokenManager) schedule(expiresAt time.Time) {
	delay := expiresAt.Add(-refreshLead).Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	m.arm(delay)
}

func (m *TokenManager) arm(delay time.Duration) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.stopped {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.afterFunc(delay, m.onTimer)
	m.logger.Debug("credential refresh scheduled", "in", delay)
}

func (m *TokenManager) onTimer() {
	ctx := m.lifetime
	if ctx.Err() != nil {
		return
	}

	err := m.exchange(ctx, "", false)
	switch {
	case err == nil:
		return
	case isFatal(err):
		m.fail(err)
		return
	case errors.Is(err, pkgerrs.ErrClosed) || ctx.Err() != nil:
		return
	}

	m.mu.Lock()
	m.failures++
	attempt := m.failures
	m.mu.Unlock()

	delay := retryBackoff(attempt - 1)
	m.logger.Warn("credential refresh failed, retrying",
		"error", err,
		"attempt", attempt,
		"retry_in", delay,
	)
	m.arm(delay)
}

// retryBackoff doubles the delay for each consecutive failure up to maxRetryDelay.
func retryBackoff(consecutiveFailures int) time.Duration {
	delay := initialRetryDelay
	for i := 0; i < consecutiveFailures; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

func (m *TokenManager) fail(err error) {
	m.stateMu.Lock()
	m.state = StateFatal
	m.stateMu.Unlock()
	m.Stop()

	m.fatalOnce.Do(func() {
		m.logger.Error("credentials rejected", "error", err)
		if m.onFatal != nil {
			m.onFatal(err)
		}
	})
}

func (m *TokenManager) login(ctx context.Context) error {
	var err error
	m.loginOnce.Do(func() {
		if m.conn.Online() {
			return
		}

		scopes := m.store.Scopes()
		var identity *types.User
		if scopes.Has(types.ScopeIdentity) {
			raw, callErr := m.caller.Get(ctx, "identity", nil)
			if callErr == nil {
				identity, callErr = m.parser.ParseUser(raw)
			}
			if callErr != nil {
				if m.State() == StateFatal {
					err = callErr
					return
				}
				m.logger.WarnContext(ctx, "identity lookup failed, continuing without user data", "error", callErr)
				identity = nil
			}
		} else {
			m.logger.WarnContext(ctx, `missing "identity" scope`, "detail", "client user data will be unavailable")
		}

		if !scopes.Has(types.ScopeRead) {
			m.logger.WarnContext(ctx, `missing "read" scope`, "detail", "post and comment events will not be emitted")
		}

		m.stateMu.Lock()
		m.identity = identity
		m.stateMu.Unlock()

		if m.conn.MarkOnline(m.now()) {
			m.logger.InfoContext(ctx, "session online", "user", usernameOf(identity))
			m.emitter.Emit(types.Event{Kind: types.EventLogin, Identity: identity})
		}
	})
	return err
}

func usernameOf(u *types.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}

func isFatal(err error) bool {
	var authErr *pkgerrs.AuthError
	return errors.As(err, &authErr) && authErr.Fatal
}
