package httputil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/fetchq/pkg/observability"
)

const (
	httpTimeout = 30 * time.Second

	// maxBodySize bounds buffered response bodies.
	maxBodySize = 32 << 20
)

var (
	// ErrNetwork is returned for transport failures (timeouts, connection errors).
	ErrNetwork = errors.New("network error")

	// ErrBodyTooLarge is returned when a response body exceeds the buffer limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Request describes the method, headers and body sent with each attempt.
// The zero value is a plain GET.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewHTTPClient creates an HTTP client with the default request timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// Client issues buffered requests with a set of default headers.
type Client struct {
	http    *http.Client
	headers map[string]string
}

// NewClient creates a Client. A nil hc uses [NewHTTPClient].
// Headers are applied to all requests; per-request headers override them.
func NewClient(hc *http.Client, headers map[string]string) *Client {
	if hc == nil {
		hc = NewHTTPClient()
	}
	return &Client{http: hc, headers: headers}
}

// Do sends req to url and reads the full response body.
func (c *Client) Do(ctx context.Context, url string, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		hr.Header.Set(k, v)
	}
	for k, vs := range req.Header {
		hr.Header.Del(k)
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}

	hooks := observability.HTTP()
	host, path := hr.URL.Host, hr.URL.Path
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(hr)
	if err != nil {
		return nil, c.transportError(ctx, method, host, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, c.transportError(ctx, method, host, path, err)
	}
	if len(data) > maxBodySize {
		hooks.OnError(ctx, method, host, path, ErrBodyTooLarge)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxBodySize)
	}

	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) transportError(ctx context.Context, method, host, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	observability.HTTP().OnError(ctx, method, host, path, err)
	return &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
}
