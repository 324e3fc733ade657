package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrs "github.com/jamesprial/go-ruqqus/pkg/errors"
	"golang.org/x/time/rate"
)

// Request describes a single API call.
type Request struct {
	Method string
	// Path is resolved against the API base unless it is an absolute URL.
	Path  string
	Query url.Values
	// Form is sent url-encoded as the body of POST requests.
	Form url.Values
	// Token is sent as a bearer token when non-empty.
	Token string
}

// Response is the raw outcome of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ErrBodyTooLarge is wrapped by the RequestError for a response over the body limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Transport sends requests. An error is returned only when no response was received.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client is the HTTP Transport for the Ruqqus API.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	Library   string

	// MaxBodyBytes bounds the response body. Larger bodies fail the request.
	MaxBodyBytes int64

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching the server.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10
	DefaultLibraryName       = "go-ruqqus"
	SecondsPerMinute         = 60.0
	ParseFloatBitSize        = 64

	// MaxResponseBytes is the default MaxBodyBytes.
	MaxResponseBytes = 10 << 20
)

// NewClient returns a new API transport.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, baseURL string, userAgent string, rateCfg *RateLimitConfig) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "parse base URL", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:       httpClient,
		BaseURL:      parsedURL,
		UserAgent:    userAgent,
		Library:      DefaultLibraryName,
		MaxBodyBytes: MaxResponseBytes,
		limiter:      buildLimiter(*rateCfg),
	}, nil
}

// Do sends req and returns the status, headers and body of the response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, &pkgerrs.APIError{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    fmt.Sprintf("invalid request method %q", req.Method),
		}
	}

	u, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "resolve " + req.Path, Err: err}
	}

	var body io.Reader
	if method == http.MethodPost && len(req.Form) > 0 {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "build request", Err: err}
	}

	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	httpReq.Header.Set("User-Agent", c.UserAgent)
	httpReq.Header.Set("X-User-Type", "App")
	httpReq.Header.Set("X-Library", c.Library)
	httpReq.Header.Set("X-Supports", "auth")
	if method == http.MethodPost {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if err := c.waitForRateLimit(ctx); err != nil {
		return nil, &pkgerrs.RequestError{Operation: method, URL: u.String(), Message: "rate limit wait aborted", Err: err}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	c.applyRateHeaders(resp)

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = MaxResponseBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method, URL: u.String(), Message: "failed to read response body", Err: err}
	}
	if int64(len(data)) > limit {
		return nil, &pkgerrs.RequestError{
			Operation: method,
			URL:       u.String(),
			Message:   fmt.Sprintf("response body exceeds %d bytes", limit),
			Err:       ErrBodyTooLarge,
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	u, err := c.BaseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	limitPerSecond := rate.Limit(requestsPerMinute / SecondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return rate.NewLimiter(limitPerSecond, burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, ParseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 1 {
		c.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}
