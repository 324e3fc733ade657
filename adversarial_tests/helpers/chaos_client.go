package helpers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// ChaosMode defines the type of chaos to inject
type ChaosMode int

const (
	// ChaosNone performs normal HTTP requests
	ChaosNone ChaosMode = iota

	// ChaosConnectionReset fails the round trip without a response
	ChaosConnectionReset

	// ChaosPartialRead cuts the response body off halfway with a read error
	ChaosPartialRead

	// ChaosEmptyBody answers 200 with no body
	ChaosEmptyBody

	// ChaosInvalidJSON answers 200 with a body that is not JSON
	ChaosInvalidJSON

	// ChaosOversizedBody answers 200 with a body larger than the client reads
	ChaosOversizedBody

	// ChaosServerError answers 503 with an HTML error page
	ChaosServerError
)

// OversizedBodyBytes is the size of a ChaosOversizedBody response.
const OversizedBodyBytes = 12 << 20

// ChaosTransport is an http.RoundTripper that injects failures into API calls.
// Requests whose path does not start with PathPrefix pass through untouched, so
// the credential exchange keeps working while the API misbehaves.
type ChaosTransport struct {
	Mode       ChaosMode
	PathPrefix string

	next     http.RoundTripper
	requests atomic.Int64
	injected atomic.Int64
}

// NewChaosTransport creates a transport that injects mode into requests under /api/.
func NewChaosTransport(mode ChaosMode) *ChaosTransport {
	return &ChaosTransport{
		Mode:       mode,
		PathPrefix: "/api/",
		next:       http.DefaultTransport,
	}
}

// Client returns an http.Client using the transport.
func (c *ChaosTransport) Client() *http.Client {
	return &http.Client{Transport: c}
}

// Requests returns how many requests went through the transport.
func (c *ChaosTransport) Requests() int64 {
	return c.requests.Load()
}

// Injected returns how many requests received an injected failure.
func (c *ChaosTransport) Injected() int64 {
	return c.injected.Load()
}

// RoundTrip implements http.RoundTripper interface
func (c *ChaosTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.requests.Add(1)

	if c.Mode == ChaosNone || !strings.HasPrefix(req.URL.Path, c.PathPrefix) {
		return c.next.RoundTrip(req)
	}
	c.injected.Add(1)

	switch c.Mode {
	case ChaosConnectionReset:
		return nil, errors.New("connection reset by peer")

	case ChaosPartialRead:
		resp, err := c.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		resp.Body = &partialReadCloser{reader: bytes.NewReader(data[:len(data)/2])}
		return resp, nil

	case ChaosEmptyBody:
		return syntheticResponse(req, http.StatusOK, nil), nil

	case ChaosInvalidJSON:
		return syntheticResponse(req, http.StatusOK, []byte(`{"data": [ {"id": "abc", "title": `)), nil

	case ChaosOversizedBody:
		// A valid JSON prefix that never closes within the read limit.
		data := make([]byte, OversizedBodyBytes)
		copy(data, `{"data":["`)
		for i := len(`{"data":["`); i < len(data); i++ {
			data[i] = byte('a' + i%26)
		}
		return syntheticResponse(req, http.StatusOK, data), nil

	case ChaosServerError:
		return syntheticResponse(req, http.StatusServiceUnavailable, []byte("<html><body>503 Service Unavailable</body></html>")), nil
	}
	return c.next.RoundTrip(req)
}

func syntheticResponse(req *http.Request, status int, body []byte) *http.Response {
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
		Header:        http.Header{"Content-Type": {"application/json"}},
	}
}

// partialReadCloser returns its data and then fails instead of reporting EOF.
type partialReadCloser struct {
	reader io.Reader
}

func (p *partialReadCloser) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if err == io.EOF {
		return n, errors.New("connection reset during read")
	}
	return n, err
}

func (p *partialReadCloser) Close() error {
	return nil
}
