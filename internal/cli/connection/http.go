// Package connection provides the HTTP client used to reach the backend.
package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/tokpass/internal/infra/buildinfo"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
)

// DefaultTimeout bounds a single request when the caller sets no deadline.
const DefaultTimeout = 30 * time.Second

// HeaderRequestID carries the per-submit request id.
const HeaderRequestID = "X-Request-ID"

// HTTPClient provides HTTP communication with the backend.
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithTLSConfig sets the TLS configuration used for https backends.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(h *HTTPClient) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		h.client.Transport = transport
	}
}

// WithTimeout sets the client-wide request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(h *HTTPClient) {
		h.client.Timeout = d
	}
}

// NewHTTPClient creates a client for backendURL. A missing scheme defaults
// to http and trailing slashes are dropped.
func NewHTTPClient(backendURL string, opts ...ClientOption) *HTTPClient {
	baseURL := NormalizeBaseURL(backendURL)

	c := &HTTPClient{
		baseURL:   baseURL,
		userAgent: "tokpass/" + buildinfo.Version,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeBaseURL adds an http scheme when none is given and strips
// trailing slashes.
func NormalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(ctx, req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.L(ctx).Debug("http request", "method", req.Method, "url", req.URL.String())
	return c.client.Do(req)
}

// addHeaders adds the common headers.
func (c *HTTPClient) addHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if id := logger.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(HeaderRequestID, id)
	}
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}
