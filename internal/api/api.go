package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"llm-dealer/internal/logger"
)

// Client sends JSON requests to model endpoints and news pages. Default
// headers apply to every request; logging is off unless enabled.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	useLogging bool
}

func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Warn(ctx, msg, args...)
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each HTTP round trip.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURL prefixes every request URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithLogging turns request and response logging on or off.
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// WithHTTPClient swaps the underlying *http.Client, mostly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client with a 30s timeout before options apply.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Request is one HTTP call. A non-nil Body is sent as JSON.
type Request struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
	ctx     context.Context
}

// NewRequest starts a request bound to context.Background.
func NewRequest(method, url string) *Request {
	return &Request{
		Method:  method,
		URL:     url,
		Headers: make(map[string]string),
		ctx:     context.Background(),
	}
}

// WithContext binds the request, and any retry waits, to ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// WithBody sets the value to encode as the JSON body.
func (r *Request) WithBody(body any) *Request {
	r.Body = body
	return r
}

// WithHeader sets a header on this request only. It overrides client defaults.
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// Response holds a fully read 2xx/3xx reply.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Get reads a gjson path from the body. Invalid JSON yields an empty result.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	Code int
	Body string
	// RetryAfter is the server's requested delay, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, body)
}

// Retryable is true for 429 and 5xx.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// Do sends the request once and reads the whole body.
func (c *Client) Do(req *Request) (*Response, error) {
	url := c.baseURL + req.URL

	var bodyReader io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(req.ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logDebug(req.ctx, "HTTP request", "method", req.Method, "url", url)

	started := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, url, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.logDebug(req.ctx, "HTTP response",
		"url", url,
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
		"bytes", len(body),
	)

	if httpResp.StatusCode >= 400 {
		c.logWarn(req.ctx, "HTTP error response", "url", url, "status", httpResp.StatusCode)
		return nil, &StatusError{
			Code:       httpResp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(httpResp.Header.Get("Retry-After"), time.Now()),
		}
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: body, Headers: httpResp.Header}, nil
}

// BrowserHeaders are sent by the news scraper so pages serve their normal markup.
func BrowserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9,zh-CN;q=0.8",
	}
}

// RetryConfig bounds DoWithRetry. Waits double from InitialWait up to MaxWait.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultRetryConfig is three attempts with 1s to 5s waits.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Second,
		MaxWait:     5 * time.Second,
	}
}

// DoWithRetry retries transport failures, 429 and 5xx. A Retry-After header
// replaces the backoff step, capped at MaxWait. It gives up as soon as the
// request context ends.
func (c *Client) DoWithRetry(req *Request, config *RetryConfig) (*Response, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	backoff := config.InitialWait

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		resp, err := c.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		wait := backoff
		var se *StatusError
		if errors.As(err, &se) {
			if !se.Retryable() {
				return nil, err
			}
			if se.RetryAfter > 0 {
				wait = se.RetryAfter
			}
		}
		if wait > config.MaxWait {
			wait = config.MaxWait
		}
		if attempt == config.MaxAttempts {
			break
		}

		c.logWarn(req.ctx, "Request failed, retrying", "attempt", attempt, "error", err, "wait", wait)
		select {
		case <-req.ctx.Done():
			return nil, fmt.Errorf("retry aborted: %w", req.ctx.Err())
		case <-time.After(wait):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", config.MaxAttempts, lastErr)
}
