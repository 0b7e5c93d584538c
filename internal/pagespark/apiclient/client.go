package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"finitefield.org/page-spark/internal/pagespark/requestctx"
)

// Per-call timeouts.
const (
	DefaultTimeout    = 60 * time.Second
	GenerationTimeout = 120 * time.Second
	PromptTimeout     = 90 * time.Second
)

const maxErrorBody = 1 << 16

// ErrNotConfigured is returned by New when no base URL is supplied.
var ErrNotConfigured = errors.New("apiclient: base URL is required")

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token attached to authenticated calls.
type TokenSource interface {
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

// Token implements TokenSource.
func (f TokenFunc) Token() (string, bool) { return f() }

// Client is the single outbound gateway to the page generation backend.
type Client struct {
	baseURL string
	http    HTTPClient
	tokens  TokenSource
	logger  *zap.Logger
	tracer  trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithLogger sets the fallback logger used when the request context carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer overrides the tracer used for client spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// New constructs a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("finitefield.org/page-spark/internal/pagespark/apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithTokens returns a shallow copy of c reading bearer tokens from tokens.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

// CallOption customises a single request.
type CallOption func(*callConfig)

type callConfig struct {
	headers  http.Header
	query    url.Values
	timeout  time.Duration
	skipAuth bool
}

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(cfg *callConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithHeader adds a custom request header.
func WithHeader(key, value string) CallOption {
	return func(cfg *callConfig) {
		cfg.headers.Set(key, value)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) CallOption {
	return func(cfg *callConfig) {
		cfg.query.Add(key, value)
	}
}

// SkipAuth omits the bearer token.
func SkipAuth() CallOption {
	return func(cfg *callConfig) {
		cfg.skipAuth = true
	}
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do performs a request. Every failure is returned as *RequestError. When the
// response is not JSON and out is a *string, the raw body is stored there.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) error {
	cfg := callConfig{
		headers: make(http.Header),
		query:   make(url.Values),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.tracer.Start(ctx, "pagespark.api "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	reqCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	logger := c.loggerFor(ctx).With(zap.String("method", method), zap.String("path", path))
	start := time.Now()

	err := c.do(reqCtx, method, path, body, out, cfg, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("api request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}
	logger.Debug("api request completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, cfg callConfig, span trace.Span) error {
	target, err := c.resolve(path, cfg.query)
	if err != nil {
		return &RequestError{Status: StatusNetworkError, Message: err.Error(), Err: err}
	}

	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return &RequestError{Status: StatusNetworkError, Message: err.Error(), Err: err}
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &RequestError{Status: StatusNetworkError, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	requestID := requestctx.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	for key, values := range cfg.headers {
		req.Header[key] = values
	}
	if !cfg.skipAuth && c.tokens != nil {
		if token, ok := c.tokens.Token(); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	isJSON := isJSONContent(resp.Header.Get("Content-Type"))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp, isJSON)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, err)
	}
	if isJSON {
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &RequestError{Status: StatusNetworkError, Message: err.Error(), Err: err}
		}
		return nil
	}
	switch text := out.(type) {
	case nil:
	case *string:
		if text != nil {
			*text = string(raw)
		}
	default:
		// Typed results must be decoded; an HTML error page is not success.
		if len(bytes.TrimSpace(raw)) > 0 {
			return &RequestError{Status: StatusNetworkError, Message: "unexpected non-JSON response"}
		}
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("apiclient: build url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) loggerFor(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	return c.logger
}

// transportError maps a failure without an HTTP response. Deadline expiry and
// caller cancellation collapse into the timeout error.
func transportError(ctx context.Context, err error) *RequestError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &RequestError{Status: StatusTimeout, Message: timeoutMessage, Err: err}
	}
	return &RequestError{Status: StatusNetworkError, Message: err.Error(), Err: err}
}

func errorFromResponse(resp *http.Response, isJSON bool) *RequestError {
	reqErr := &RequestError{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, statusText(resp)),
	}
	if !isJSON {
		return reqErr
	}

	var payload struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(body, &payload); err != nil {
		return reqErr
	}
	switch {
	case payload.Message != "":
		reqErr.Message = payload.Message
	case payload.Error != "":
		reqErr.Message = payload.Error
	}
	if len(payload.Errors) > 0 {
		var fields map[string][]string
		if json.Unmarshal(payload.Errors, &fields) == nil && len(fields) > 0 {
			reqErr.Errors = fields
		}
	}
	return reqErr
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func isJSONContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
