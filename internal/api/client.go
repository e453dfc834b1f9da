// Package api is the client of the remote tracker REST API. Every call goes
// through one pipeline: request interceptors (bearer token first), the HTTP
// round trip, response interceptors, envelope unwrapping and error
// normalisation into *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moneybook/internal/log"
)

const (
	DefaultBaseURL = "http://localhost:5000/api"
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 10 << 20
)

// Credentials supplies the bearer token of the current caller and forgets it
// once the API rejects it.
type Credentials interface {
	Token(ctx context.Context) string
	Clear(ctx context.Context) error
}

// RequestInterceptor may modify or reject an outgoing request.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor sees every response before status handling. The body
// has already been buffered and may be read again.
type ResponseInterceptor func(resp *http.Response) error

// UnauthorizedFunc runs once after the credentials of a rejected token have
// been cleared.
type UnauthorizedFunc func(ctx context.Context, token string)

// Client provides typed access to the tracker API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials Credentials
	logger      *log.Logger
	retry       RetryPolicy
	requestFns  []RequestInterceptor
	responseFns []ResponseInterceptor
	metrics     *Metrics
	gate        *unauthorizedGate
	timeout     time.Duration

	onUnauthorized UnauthorizedFunc

	Auth         *AuthAPI
	Categories   *CategoriesAPI
	Transactions *TransactionsAPI
	Dashboard    *DashboardAPI
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-request timeout of the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.credentials = creds
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentAPI)
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithRequestInterceptor appends fn after the built-in bearer interceptor.
func WithRequestInterceptor(fn RequestInterceptor) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestFns = append(c.requestFns, fn)
		}
	}
}

func WithResponseInterceptor(fn ResponseInterceptor) Option {
	return func(c *Client) {
		if fn != nil {
			c.responseFns = append(c.responseFns, fn)
		}
	}
}

// WithOnUnauthorized registers the hook run after a rejected token has been
// cleared.
func WithOnUnauthorized(fn UnauthorizedFunc) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", base)
	}
	c := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.Discard(),
		retry:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 || c.metrics != nil {
		hc := *c.httpClient
		if c.timeout > 0 {
			hc.Timeout = c.timeout
		}
		if c.metrics != nil {
			hc.Transport = c.metrics.instrument(hc.Transport)
		}
		c.httpClient = &hc
	}
	c.requestFns = append([]RequestInterceptor{c.attachBearer}, c.requestFns...)
	c.gate = newUnauthorizedGate(c)

	c.Auth = &AuthAPI{c: c}
	c.Categories = &CategoriesAPI{c: c}
	c.Transactions = &TransactionsAPI{c: c}
	c.Dashboard = &DashboardAPI{c: c}
	return c, nil
}

// BaseURL returns the normalised API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) attachBearer(req *http.Request) error {
	if c.credentials == nil {
		return nil
	}
	if token := strings.TrimSpace(c.credentials.Token(req.Context())); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, v any) error {
	return c.doURL(ctx, method, c.baseURL+path, query, body, v)
}

func (c *Client) doURL(ctx context.Context, method, endpoint string, query url.Values, body, v any) error {
	if c == nil {
		return errors.New("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, fn := range c.requestFns {
		if err := fn(req); err != nil {
			return fmt.Errorf("request interceptor: %w", err)
		}
	}
	token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		normalized := transportError(ctx, err)
		c.logger.WarnContext(ctx, "API request failed",
			log.FieldMethod, method,
			log.FieldURL, req.URL.Path,
			log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		return normalized
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(ctx, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	log.NewStructuredLogger(c.logger).LogUpstreamCall(ctx, method, req.URL.Path, resp.StatusCode, time.Since(start).Milliseconds())

	for _, fn := range c.responseFns {
		if err := fn(resp); err != nil {
			return fmt.Errorf("response interceptor: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return c.unauthorized(ctx, token, data)
	case resp.StatusCode >= http.StatusBadRequest:
		return statusError(resp.StatusCode, data)
	}
	return decodeEnvelope(resp.StatusCode, data, v)
}

func (c *Client) unauthorized(ctx context.Context, token string, body []byte) error {
	if token == "" {
		e := statusError(http.StatusUnauthorized, body)
		e.Kind = KindUnauthorized
		if extractMessage(body) == "" {
			e.Message = msgUnauthorized
		}
		return e
	}
	c.gate.logout(ctx, token)
	e := &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: msgSignInAgain}
	if json.Valid(body) {
		e.Body = json.RawMessage(body)
	}
	return e
}

// decodeEnvelope unwraps {success, message, data} into v. Bodies without a
// data member are decoded whole.
func decodeEnvelope(status int, data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if v == nil {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = msgUnknown
		}
		return &Error{Kind: KindServer, Status: status, Message: msg, Body: json.RawMessage(data)}
	}
	if v == nil {
		return nil
	}
	raw := []byte(env.Data)
	if len(raw) == 0 {
		raw = data
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// unwrapKey decodes raw into v, descending into raw[key] when present. The
// API wraps single resources as {"category": {...}} on some endpoints and
// returns them bare on others.
func unwrapKey(raw json.RawMessage, key string, v any) error {
	if len(raw) == 0 {
		return nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if inner, ok := wrapped[key]; ok {
			raw = inner
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
