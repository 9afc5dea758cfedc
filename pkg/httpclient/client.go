package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"golang.org/x/time/rate"
)

// ClientType represents the type of HTTP client configuration
type ClientType string

const (
	// BrowserClient presents as an ordinary browser session: a randomized
	// User-Agent per request plus Chrome's default header set.
	// Used for scraping public pages and private web endpoints.
	BrowserClient ClientType = "browser"

	// APIClient sends only what the caller sets. Used for documented JSON APIs
	// that authenticate with keys or bearer tokens.
	APIClient ClientType = "api"
)

const maxErrorBody = 512

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status code %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// HTTPClient wraps an http.Client with configuration
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
	limiter    *rate.Limiter
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the overall per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests to rps per second with the given burst.
// rps <= 0 leaves the client unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *HTTPClient) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLimiter shares an existing limiter between clients.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *HTTPClient) {
		c.limiter = l
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient creates a new HTTP client with the specified type
func NewClient(clientType ClientType, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Follow up to 10 redirects
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		clientType: clientType,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do waits for the rate limiter, applies the profile headers and executes the request.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get is a convenience method for GET requests
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Fetch executes a request and returns the body of a 2xx response.
// Any other status is reported as *StatusError.
func (c *HTTPClient) Fetch(ctx context.Context, method, rawURL string, query url.Values, headers map[string]string, body io.Reader) ([]byte, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL = rawURL + sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted(), Body: snippet}
	}

	return data, nil
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string, out any) error {
	data, err := c.Fetch(ctx, http.MethodGet, rawURL, query, withAccept(headers), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

// PostJSON encodes payload as the request body and decodes the JSON response into out.
// out may be nil when the response body is not needed.
func (c *HTTPClient) PostJSON(ctx context.Context, rawURL string, payload any, headers map[string]string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	h := withAccept(headers)
	if _, ok := h["Content-Type"]; !ok {
		h["Content-Type"] = "application/json"
	}

	data, err := c.Fetch(ctx, http.MethodPost, rawURL, nil, h, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

func withAccept(headers map[string]string) map[string]string {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	if _, ok := h["Accept"]; !ok {
		h["Accept"] = "application/json"
	}
	return h
}

// setHeaders sets the appropriate headers based on client type.
// Headers already present on the request win over the profile defaults.
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		for k, v := range stealth.ChromeHeaders() {
			// Leave encoding negotiation to net/http so bodies stay transparently decoded.
			if strings.EqualFold(k, "Accept-Encoding") {
				continue
			}
			setDefault(req, k, v)
		}
		setDefault(req, "User-Agent", stealth.RandomUserAgent())
		setDefault(req, "Accept-Language", "en-GB,en;q=0.5")

	default:
		// APIClient: Go's default User-Agent, caller headers only
	}
}

func setDefault(req *http.Request, key, value string) {
	if req.Header.Get(key) == "" {
		req.Header.Set(key, value)
	}
}
