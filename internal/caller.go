package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesprial/go-ruqqus/internal/metrics"
	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
)

// Refresher performs an out-of-band credential refresh after the server rejected
// staleToken.
type Refresher interface {
	RefreshAfterUnauthorized(ctx context.Context, staleToken string) error
}

// Caller issues authenticated API calls and maps response statuses to errors.
type Caller struct {
	transport Transport
	store     *CredentialStore
	conn      *ConnectionManager
	refresher Refresher
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewCaller creates a Caller. A nil recorder or logger disables that output.
func NewCaller(transport Transport, store *CredentialStore, conn *ConnectionManager, rec metrics.Recorder, logger *slog.Logger) *Caller {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Caller{
		transport: transport,
		store:     store,
		conn:      conn,
		metrics:   rec,
		logger:    logger,
	}
}

// SetRefresher installs the component that recovers from 401 responses.
func (c *Caller) SetRefresher(r Refresher) {
	c.refresher = r
}

// Get issues a GET request for path.
func (c *Caller) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.Call(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a form-encoded POST request for path.
func (c *Caller) Post(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	return c.Call(ctx, &Request{Method: http.MethodPost, Path: path, Form: form})
}

// Call sends req with the current access token. A 401 response triggers one
// credential refresh and one retry; a second 401 is returned to the caller.
// Closing the connection aborts the call with ErrClosed.
func (c *Caller) Call(ctx context.Context, req *Request) (json.RawMessage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.conn.Context(), cancel)
	defer stop()

	resp, token, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.refresher != nil {
		c.logger.DebugContext(ctx, "access token rejected, refreshing", "path", req.Path)
		if err := c.refresher.RefreshAfterUnauthorized(ctx, token); err != nil {
			return nil, err
		}
		resp, _, err = c.send(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	return decodeResponse(req, resp)
}

func (c *Caller) send(ctx context.Context, req *Request) (*Response, string, error) {
	if c.conn.Closed() {
		return nil, "", fmt.Errorf("%s %s: %w", req.Method, req.Path, pkgerrs.ErrClosed)
	}

	token := c.store.AccessToken()
	attempt := *req
	attempt.Token = token

	start := time.Now()
	resp, err := c.transport.Do(ctx, &attempt)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.metrics.RecordRequest(endpointLabel(req.Path), status, elapsed)
	c.logger.DebugContext(ctx, "api request",
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"duration", elapsed,
	)

	if c.conn.Closed() {
		return nil, token, fmt.Errorf("%s %s: %w", req.Method, req.Path, pkgerrs.ErrClosed)
	}
	if err != nil {
		return nil, token, err
	}
	return resp, token, nil
}

func decodeResponse(req *Request, resp *Response) (json.RawMessage, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := pkgerrs.NewAPIError(resp.StatusCode, string(resp.Body))
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body, &body) == nil {
			apiErr.ErrorCode = body.Error
		}
		return nil, apiErr
	}

	trimmed := strings.TrimSpace(string(resp.Body))
	if trimmed == "" {
		return json.RawMessage("null"), nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, &pkgerrs.ParseError{
			Operation: req.Method + " " + req.Path,
			Message:   "response body is not valid JSON",
		}
	}
	return json.RawMessage(trimmed), nil
}

// endpointLabel reduces a path to its first segment to keep metric cardinality bounded.
func endpointLabel(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		path = u.Path
	}
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}
