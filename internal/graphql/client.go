// Package graphql talks to the evidence engine's GraphQL endpoint. Requests
// carry the user's bearer token and W3C trace headers, pass through a circuit
// breaker, and read queries are retried with exponential backoff.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// Request is one GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Error is one entry of a GraphQL response's errors array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors"`
}

// Client executes GraphQL operations against a single endpoint. It is safe
// for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *CircuitBreaker
	retry    config.RetryConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewClient builds a client for cfg.Endpoint. metrics may be nil.
func NewClient(cfg config.GraphQLConfig, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		endpoint: cfg.Endpoint,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retry:   cfg.Retry,
		logger:  logger.Named("graphql"),
		metrics: metrics,
	}
	c.breaker = NewCircuitBreaker(cfg.CircuitBreaker, func(s BreakerState) {
		c.metrics.SetBackendCircuitBreakerState(c.endpoint, float64(s))
		c.logger.Warn("circuit breaker state changed",
			zap.String("endpoint", c.endpoint),
			zap.Stringer("state", s),
		)
	})
	return c
}

// Breaker returns the client's circuit breaker.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// HealthCheck reports the endpoint unhealthy while the breaker is open.
func (c *Client) HealthCheck(context.Context) error {
	if c.breaker.State() == BreakerOpen {
		return ErrCircuitOpen
	}
	return nil
}

// Query executes a read operation and returns its data object.
func (c *Client) Query(ctx context.Context, req Request) (json.RawMessage, error) {
	return c.do(ctx, req, false)
}

// Mutate executes a mutation and returns its data object. Mutations are not
// retried when the retry policy is restricted to queries.
func (c *Client) Mutate(ctx context.Context, req Request) (json.RawMessage, error) {
	return c.do(ctx, req, true)
}

func (c *Client) do(ctx context.Context, req Request, mutation bool) (json.RawMessage, error) {
	spanName := "graphql.query"
	if mutation {
		spanName = "graphql.mutation"
	}
	ctx, span := observability.StartSpan(ctx, spanName,
		observability.AttrOperation.String(req.OperationName),
		observability.AttrMutation.Bool(mutation),
	)

	body, err := json.Marshal(req)
	if err != nil {
		err = fmt.Errorf("graphql: marshal request: %w", err)
		observability.EndSpanWithError(span, err)
		return nil, err
	}

	logger := observability.RequestLogger(ctx, c.logger)
	if ce := logger.Check(zap.DebugLevel, "graphql request"); ce != nil {
		ce.Write(
			zap.String("operation", req.OperationName),
			zap.Any("variables", observability.RedactBody(req.Variables, nil)),
		)
	}

	data, err := c.executeWithRetry(ctx, req.OperationName, body, mutation)
	if err != nil {
		logger.Warn("graphql request failed",
			zap.String("operation", req.OperationName),
			zap.Error(err),
		)
	}
	observability.EndSpanWithError(span, err)
	return data, err
}

// executeWithRetry wraps executeOnce with retry logic and exponential backoff.
func (c *Client) executeWithRetry(ctx context.Context, operation string, body []byte, mutation bool) (json.RawMessage, error) {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 || mutation && c.retry.QueriesOnly {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.metrics.RecordBackendRetry(operation)
			select {
			case <-ctx.Done():
				return nil, model.NewBackendTimeoutError()
			case <-time.After(calculateBackoff(c.retry, attempt)):
			}
		}

		data, retryable, err := c.executeOnce(ctx, operation, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Debug("retrying graphql request",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max", maxAttempts),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// executeOnce performs a single POST with circuit breaker protection. The
// boolean result reports whether the failure is worth retrying.
func (c *Client) executeOnce(ctx context.Context, operation string, body []byte) (json.RawMessage, bool, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, false, model.NewBackendUnavailableError()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("graphql: build request: %w", err)
	}
	httpReq.Header = c.headers(ctx)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		c.metrics.RecordBackendRequest(operation, 0, time.Since(start))
		switch {
		case isTimeout(ctx, err):
			return nil, false, model.NewBackendTimeoutError()
		case isConnectionError(err):
			return nil, true, model.NewBackendUnavailableError()
		default:
			return nil, true, fmt.Errorf("graphql: request failed: %w", err)
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.RecordBackendRequest(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, true, fmt.Errorf("graphql: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
		// An errors array is the server's answer and is not retried.
		if msg, ok := graphQLErrors(raw); ok {
			return nil, false, model.NewGraphQLError(msg)
		}
		if isRetryableStatus(resp.StatusCode) {
			return nil, true, model.NewBackendUnavailableError()
		}
		return nil, false, model.NewBackendUnavailableError()
	}
	c.breaker.RecordSuccess()

	data, err := decodeResponse(resp.StatusCode, raw)
	return data, false, err
}

func (c *Client) headers(ctx context.Context) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/graphql-response+json, application/json")
	h.Set("Content-Type", "application/json")
	if sec, ok := model.SecurityStateFrom(ctx); ok && sec.Token != "" {
		h.Set("Authorization", "Bearer "+sanitizeHeader(sec.Token))
	}
	if id := model.SessionIDFrom(ctx); id != "" {
		h.Set("X-Session-Id", sanitizeHeader(id))
	}
	observability.InjectTraceHeaders(ctx, h)
	return h
}

// decodeResponse turns a non-5xx answer into the data object or an error.
// GraphQL errors win over HTTP status so the server's text reaches the user.
func decodeResponse(status int, raw []byte) (json.RawMessage, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		switch status {
		case http.StatusUnauthorized:
			return nil, model.NewUnauthorizedError("The evidence engine server rejected the credentials")
		case http.StatusForbidden:
			return nil, model.NewForbiddenError("The evidence engine server denied access")
		}
		if status >= 400 {
			return nil, model.NewBadRequestError(fmt.Sprintf("The evidence engine server answered %d %s", status, http.StatusText(status)))
		}
		return nil, model.NewMalformedResultError("The evidence engine server returned an unreadable response")
	}
	if len(resp.Errors) > 0 {
		return nil, model.NewGraphQLError(joinErrors(resp.Errors))
	}
	if status >= 400 {
		return nil, model.NewBadRequestError(fmt.Sprintf("The evidence engine server answered %d %s", status, http.StatusText(status)))
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, model.NewMalformedResultError("The evidence engine server returned no data")
	}
	return resp.Data, nil
}

// graphQLErrors returns the joined messages of raw's errors array, if raw is
// a GraphQL response carrying one.
func graphQLErrors(raw []byte) (string, bool) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Errors) == 0 {
		return "", false
	}
	return joinErrors(resp.Errors), true
}

func joinErrors(errs []Error) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}

	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			return cfg.BackoffMax
		}
	}
	return delay
}
