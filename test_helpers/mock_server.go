package test_helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const apiPrefix = "/api/v1/"

// MockServer is an in-memory Ruqqus server. It answers the grant endpoint with
// real token bookkeeping and serves canned responses for API paths, rejecting
// requests that do not carry the current access token.
type MockServer struct {
	server *httptest.Server

	mu         sync.Mutex
	responses  map[string]*MockResponse
	funcs      map[string]ResponseFunc
	callCount  map[string]int
	requestLog []RequestEntry

	clientID     string
	clientSecret string
	scopes       string
	lifetime     time.Duration
	rotate       bool
	codes        map[string]bool
	refreshToken string
	accessToken  string
	grants       int
	grantResp    *MockResponse
}

// RequestEntry logs incoming requests for debugging
type RequestEntry struct {
	Method       string
	Path         string
	Query        url.Values
	Form         url.Values
	Headers      http.Header
	Timestamp    time.Time
	ResponseCode int
}

// MockResponse defines a mock API response
type MockResponse struct {
	Status  int
	Body    string
	Headers map[string]string
	Delay   time.Duration
	// MaxCalls limits how often the response is served; later calls get a 404. 0 = unlimited.
	MaxCalls int
}

// ResponseFunc builds a response from the request's query and form values.
type ResponseFunc func(values url.Values) *MockResponse

// NewMockServer starts a server accepting the given application credentials.
// Grants carry every scope and last an hour until configured otherwise.
func NewMockServer(clientID, clientSecret string) *MockServer {
	ms := &MockServer{
		responses:    make(map[string]*MockResponse),
		funcs:        make(map[string]ResponseFunc),
		callCount:    make(map[string]int),
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       "identity,create,read,update,delete,vote,guildmaster",
		lifetime:     time.Hour,
		codes:        make(map[string]bool),
	}
	ms.server = httptest.NewServer(ms)
	return ms
}

// URL returns the base URL of the mock server
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close shuts down the mock server
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetScopes sets the comma separated scope string returned by grants.
func (ms *MockServer) SetScopes(scopes string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.scopes = scopes
}

// SetTokenLifetime sets how long granted access tokens are valid.
func (ms *MockServer) SetTokenLifetime(d time.Duration) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.lifetime = d
}

// SetRotateRefreshToken makes refresh grants return a new refresh token.
func (ms *MockServer) SetRotateRefreshToken(rotate bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.rotate = rotate
}

// SetRefreshToken sets the refresh token the server accepts.
func (ms *MockServer) SetRefreshToken(token string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.refreshToken = token
}

// AddCode registers a one-time authorization code.
func (ms *MockServer) AddCode(code string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.codes[code] = true
}

// SetGrantResponse replaces the grant endpoint's behaviour. Nil restores it.
func (ms *MockServer) SetGrantResponse(resp *MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.grantResp = resp
}

// ExpireAccessToken invalidates the current access token, so the next API call is
// answered with a 401.
func (ms *MockServer) ExpireAccessToken() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.accessToken = ""
}

// AccessToken returns the access token issued last.
func (ms *MockServer) AccessToken() string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.accessToken
}

// RefreshToken returns the refresh token the server currently accepts.
func (ms *MockServer) RefreshToken() string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.refreshToken
}

// GrantCount returns the number of successful grants.
func (ms *MockServer) GrantCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.grants
}

// SetResponse configures the response for method and an API path relative to
// /api/v1/, such as "guild/general".
func (ms *MockServer) SetResponse(method, path string, response *MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[key(method, path)] = response
}

// SetFunc serves responses built per request, for paths whose answer depends on
// the query, such as paged listings. It takes precedence over SetResponse; a nil
// response is answered with a 404. fn runs with the server locked and must not
// call back into it.
func (ms *MockServer) SetFunc(method, path string, fn ResponseFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.funcs[key(method, path)] = fn
}

// SetJSON serves v encoded as JSON with status 200.
func (ms *MockServer) SetJSON(method, path string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock server: encode %s %s: %v", method, path, err))
	}
	ms.SetResponse(method, path, &MockResponse{Status: http.StatusOK, Body: string(body)})
}

// GetCallCount returns the number of requests for method and API path.
func (ms *MockServer) GetCallCount(method, path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.callCount[key(method, path)]
}

// GetRequestLog returns the request log
func (ms *MockServer) GetRequestLog() []RequestEntry {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RequestEntry{}, ms.requestLog...)
}

// GetLastRequest returns the last request made to method and API path.
func (ms *MockServer) GetLastRequest(method, path string) (*RequestEntry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i := len(ms.requestLog) - 1; i >= 0; i-- {
		e := ms.requestLog[i]
		if e.Method == method && e.Path == strings.TrimPrefix(path, "/") {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("no requests found for %s %s", method, path)
}

// WaitForRequests waits until method and API path were requested count times.
func (ms *MockServer) WaitForRequests(method, path string, count int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if ms.GetCallCount(method, path) >= count {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %d requests to %s %s", count, method, path)
		case <-ticker.C:
		}
	}
}

// ServeHTTP implements http.Handler
func (ms *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	path := r.URL.Path
	if rel, ok := strings.CutPrefix(path, apiPrefix); ok {
		path = rel
	}

	entry := RequestEntry{
		Method:    r.Method,
		Path:      strings.TrimPrefix(path, "/"),
		Query:     r.URL.Query(),
		Form:      r.PostForm,
		Headers:   r.Header.Clone(),
		Timestamp: time.Now(),
	}

	var status int
	var body string
	var delay time.Duration
	headers := map[string]string{"Content-Type": "application/json"}

	ms.mu.Lock()
	ms.callCount[key(r.Method, path)]++
	calls := ms.callCount[key(r.Method, path)]
	switch {
	case r.URL.Path == "/oauth/grant":
		status, body = ms.grant(r.PostForm)
	case strings.HasPrefix(r.URL.Path, apiPrefix):
		if ms.accessToken == "" || r.Header.Get("Authorization") != "Bearer "+ms.accessToken {
			status, body = http.StatusUnauthorized, `{"error":"401 Unauthorized"}`
			break
		}
		resp, ok := ms.responses[key(r.Method, path)]
		if fn, found := ms.funcs[key(r.Method, path)]; found {
			resp = fn(r.Form)
			ok = resp != nil
		}
		if !ok || (resp.MaxCalls > 0 && calls > resp.MaxCalls) {
			status, body = http.StatusNotFound, `{"error":"404 Not Found"}`
			break
		}
		status, body, delay = resp.Status, resp.Body, resp.Delay
		for k, v := range resp.Headers {
			headers[k] = v
		}
	default:
		status, body = http.StatusNotFound, `{"error":"404 Not Found"}`
	}
	entry.ResponseCode = status
	ms.requestLog = append(ms.requestLog, entry)
	ms.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// grant runs with ms.mu held.
func (ms *MockServer) grant(form url.Values) (int, string) {
	if ms.grantResp != nil {
		return ms.grantResp.Status, ms.grantResp.Body
	}

	if form.Get("client_id") != ms.clientID || form.Get("client_secret") != ms.clientSecret {
		return http.StatusUnauthorized, oauthError("Invalid `client_id` or `client_secret`")
	}

	issueRefresh := false
	switch form.Get("grant_type") {
	case "code":
		code := form.Get("code")
		if !ms.codes[code] {
			return http.StatusUnauthorized, oauthError("Invalid code")
		}
		delete(ms.codes, code)
		issueRefresh = true
	case "refresh":
		if ms.refreshToken == "" || form.Get("refresh_token") != ms.refreshToken {
			return http.StatusUnauthorized, oauthError("Invalid refresh_token")
		}
		issueRefresh = ms.rotate
	default:
		return http.StatusBadRequest, oauthError("Invalid grant_type")
	}

	ms.grants++
	ms.accessToken = "access-" + strconv.Itoa(ms.grants)
	resp := map[string]any{
		"access_token": ms.accessToken,
		"expires_at":   time.Now().Add(ms.lifetime).Unix(),
		"scopes":       ms.scopes,
	}
	if issueRefresh {
		ms.refreshToken = "refresh-" + strconv.Itoa(ms.grants)
		resp["refresh_token"] = ms.refreshToken
	}
	body, _ := json.Marshal(resp)
	return http.StatusOK, string(body)
}

func oauthError(msg string) string {
	body, _ := json.Marshal(map[string]string{"oauth_error": msg})
	return string(body)
}

func key(method, path string) string {
	return method + " " + strings.TrimPrefix(path, "/")
}
