package ruqqus

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jamesprial/go-ruqqus/internal"
	"github.com/jamesprial/go-ruqqus/internal/metrics"
	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"github.com/jamesprial/go-ruqqus/pkg/types"
)

const (
	// DefaultDomain is the platform host.
	DefaultDomain = "ruqqus.com"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
	// DefaultPollInterval is the time between two polls for new posts and comments.
	DefaultPollInterval = internal.DefaultPollInterval
	// DefaultRecencyCapacity is how many post and comment ids are remembered per kind.
	DefaultRecencyCapacity = internal.DefaultRecencyCapacity
	// DefaultUserAgentPrefix is followed by "@" and the client id.
	DefaultUserAgentPrefix = "go-ruqqus"
)

// RateLimitConfig controls client-side request throttling.
type RateLimitConfig = internal.RateLimitConfig

// Config holds the configuration for a Session.
//
// ClientID and ClientSecret identify the application. A session needs either a
// RefreshToken saved from an earlier session or a one-time AccessCode obtained
// through the authorization URL:
//
//	session, err := ruqqus.NewSession(&ruqqus.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		RefreshToken: "saved-refresh-token",
//	})
type Config struct {
	ClientID     string
	ClientSecret string

	// RefreshToken takes precedence over AccessCode when both are set.
	RefreshToken string
	AccessCode   string

	// UserAgent defaults to "go-ruqqus@<ClientID>".
	UserAgent string

	// Domain is the API host. A value with a scheme, such as "http://localhost:8080",
	// is used as is; a bare host is reached over https. Defaults to DefaultDomain.
	Domain string
	// AuthDomain hosts the grant endpoint. Defaults to Domain.
	AuthDomain string

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// RecencyCapacity defaults to DefaultRecencyCapacity and is never below 100.
	RecencyCapacity int

	// RateLimitConfig configures request throttling. Defaults to 60 requests per minute.
	RateLimitConfig *RateLimitConfig

	// HTTPClient to use for requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger

	// Registerer receives the session's Prometheus metrics. Optional.
	Registerer prometheus.Registerer
}

// Session is an authenticated connection to the platform. It keeps its credentials
// fresh, polls for new posts and comments and exposes the platform's read and
// write operations, each gated on the scope it needs.
//
// A Session is safe for concurrent use. Event handlers run on the session's
// background goroutines.
type Session struct {
	config *Config

	transport *internal.Client
	store     *internal.CredentialStore
	conn      *internal.ConnectionManager
	caller    *internal.Caller
	gate      *internal.Gate
	emitter   *internal.Emitter
	parser    *internal.Parser
	validator *internal.Validator
	tokens    *internal.TokenManager
	poller    *internal.Poller
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	errMu sync.Mutex
	err   error

	now func() time.Time
}

// NewSession validates config and wires a session. It does not contact the server;
// call Connect to authenticate.
func NewSession(config *Config) (*Session, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if strings.TrimSpace(config.ClientID) == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "client id is required"}
	}
	if strings.TrimSpace(config.ClientSecret) == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientSecret", Message: "client secret is required"}
	}
	if config.RefreshToken == "" && config.AccessCode == "" {
		return nil, &pkgerrs.ConfigError{Field: "AccessCode", Message: "an access code or a refresh token is required"}
	}

	cfg := *config
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgentPrefix + "@" + cfg.ClientID
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.AuthDomain == "" {
		cfg.AuthDomain = cfg.Domain
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	validator := internal.NewValidator()
	if err := validator.ValidateUserAgent(cfg.UserAgent); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var rec metrics.Recorder = metrics.Nop{}
	if cfg.Registerer != nil {
		rec = metrics.NewCollector(cfg.Registerer)
	}

	site := siteURL(cfg.Domain)
	transport, err := internal.NewClient(cfg.HTTPClient, site+"/api/v1/", cfg.UserAgent, cfg.RateLimitConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		config:    &cfg,
		transport: transport,
		store:     internal.NewCredentialStore(cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken),
		conn:      internal.NewConnectionManager(),
		parser:    internal.NewParser(site),
		validator: validator,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
	s.caller = internal.NewCaller(transport, s.store, s.conn, rec, logger)
	s.gate = internal.NewGate(s.store)
	s.emitter = internal.NewEmitter(rec, logger)
	s.tokens = internal.NewTokenManager(internal.TokenManagerConfig{
		Transport: transport,
		Caller:    s.caller,
		Store:     s.store,
		Conn:      s.conn,
		Emitter:   s.emitter,
		Parser:    s.parser,
		Metrics:   rec,
		Logger:    logger,
		GrantURL:  siteURL(cfg.AuthDomain) + "/oauth/grant",
		Code:      cfg.AccessCode,
		Lifetime:  ctx,
		OnFatal:   s.fail,
	})
	s.caller.SetRefresher(s.tokens)
	s.poller = internal.NewPoller(s.caller, s.parser, s.emitter, s.gate, cfg.RecencyCapacity, rec, logger)

	return s, nil
}

func siteURL(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}

// Connect exchanges the configured credentials, fetches the session identity and
// starts polling. It is safe to call Connect multiple times; the work happens once
// and later calls return the first result.
func (s *Session) Connect(ctx context.Context) error {
	return s.conn.Initialize(ctx, s.start)
}

func (s *Session) start(ctx context.Context) error {
	if s.conn.Closed() {
		return pkgerrs.ErrClosed
	}

	// Close aborts an in-flight login.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := s.tokens.Start(ctx); err != nil {
		return err
	}

	go s.poller.Start(s.ctx, s.config.PollInterval)
	return nil
}

// Close stops the refresh timer and the poller, cancels in-flight requests and
// wipes the credentials. No request is sent after Close returns.
func (s *Session) Close() error {
	s.shutdown(nil)
	return nil
}

func (s *Session) fail(err error) {
	s.shutdown(err)
}

func (s *Session) shutdown(cause error) {
	if cause != nil {
		s.errMu.Lock()
		if s.err == nil {
			s.err = cause
		}
		s.errMu.Unlock()
	}

	if !s.conn.Close() {
		return
	}
	s.cancel()
	s.tokens.Stop()
	s.store.Release()

	if cause != nil {
		s.logger.Error("session closed after fatal error", "error", cause)
	} else {
		s.logger.Info("session closed")
	}
}

// Done is closed when the session ends, through Close or a fatal credential error.
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}

// Err returns the error from a failed Connect while the session is open, and nil
// otherwise. Afterwards it returns the fatal error that ended the session, or
// ErrClosed after a regular Close.
func (s *Session) Err() error {
	if !s.conn.Closed() {
		return s.conn.Error()
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err != nil {
		return s.err
	}
	return pkgerrs.ErrClosed
}

// Online reports whether the login completed.
func (s *Session) Online() bool {
	return s.conn.Online() && !s.conn.Closed()
}

// StartedAt returns the login time, or the zero time before login.
func (s *Session) StartedAt() time.Time {
	return s.conn.StartedAt()
}

// Uptime returns the time since login, or zero when the session is not online.
func (s *Session) Uptime() time.Duration {
	if !s.Online() {
		return 0
	}
	return s.now().Sub(s.conn.StartedAt())
}

// Identity returns the session user. It is nil without the identity scope or
// when the lookup at login failed.
func (s *Session) Identity() *types.User {
	return s.tokens.Identity()
}

// Scopes returns the granted scopes.
func (s *Session) Scopes() types.ScopeSet {
	return s.store.Scopes()
}

// HasScope reports whether scope was granted.
func (s *Session) HasScope(scope types.Scope) bool {
	return s.store.HasScope(scope)
}

// Credentials returns a copy of the current credentials, for example to persist
// the refresh token.
func (s *Session) Credentials() types.Credentials {
	return s.store.Snapshot()
}

// ensureConnected rejects calls before Connect completed, after a failed Connect
// or after Close.
func (s *Session) ensureConnected(op string) error {
	if s.conn.Closed() {
		return pkgerrs.ErrClosed
	}
	if s.conn.Online() {
		return nil
	}
	if !s.conn.IsInitialized() {
		return &pkgerrs.StateError{Operation: op, Message: "session is not connected, call Connect first"}
	}
	if err := s.conn.Error(); err != nil {
		return &pkgerrs.StateError{Operation: op, Message: "connect failed: " + err.Error()}
	}
	return &pkgerrs.StateError{Operation: op, Message: "session is not connected"}
}
