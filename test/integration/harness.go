// Package integration exercises the console end to end: real HTTP routing,
// sessions, listing logic and GraphQL client against a mock evidence engine.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/demonfiddler/evidence-engine-sub001/internal/catalog"
	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/graphql"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/session"
	"github.com/demonfiddler/evidence-engine-sub001/internal/transport"
)

// TestHarness wires a complete console server against a mock backend.
type TestHarness struct {
	t       *testing.T
	Server  *httptest.Server
	Backend *MockBackend
	Tokens  *tokenIssuer
	Client  *graphql.Client
	Config  *config.Config
	Redis   *miniredis.Miniredis
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessOptions)

type harnessOptions struct {
	configure   func(*config.Config)
	redis       bool
	sharedRedis *miniredis.Miniredis
	backend     *MockBackend
}

// WithConfig adjusts the configuration before the server is built.
func WithConfig(fn func(*config.Config)) HarnessOption {
	return func(o *harnessOptions) { o.configure = fn }
}

// WithRedisSessions keeps session state in a fresh miniredis instance.
func WithRedisSessions() HarnessOption {
	return func(o *harnessOptions) { o.redis = true }
}

// WithSharedRedis keeps session state in mr, standing in for a store shared
// by several console processes.
func WithSharedRedis(mr *miniredis.Miniredis) HarnessOption {
	return func(o *harnessOptions) {
		o.redis = true
		o.sharedRedis = mr
	}
}

// WithBackend reuses an existing mock backend.
func WithBackend(mb *MockBackend) HarnessOption {
	return func(o *harnessOptions) { o.backend = mb }
}

// NewTestHarness creates a fully-wired test harness.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	mb := o.backend
	if mb == nil {
		mb = newMockBackend(t)
	}

	cfg := config.Defaults()
	cfg.GraphQL.Endpoint = mb.URL()
	cfg.GraphQL.Timeout = 2 * time.Second
	cfg.GraphQL.Retry.BackoffInitial = time.Millisecond
	cfg.GraphQL.Retry.BackoffMax = 5 * time.Millisecond
	cfg.GraphQL.CircuitBreaker.FailureThreshold = 100
	cfg.Server.HandlerTimeout = 5 * time.Second
	if o.configure != nil {
		o.configure(cfg)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	client := graphql.NewClient(cfg.GraphQL, logger, nil)

	h := &TestHarness{
		t:       t,
		Backend: mb,
		Tokens:  newTokenIssuer(t),
		Client:  client,
		Config:  cfg,
	}

	var backend session.Backend = session.NewMemoryBackend(cfg.Session.TTL)
	if o.redis {
		mr := o.sharedRedis
		if mr == nil {
			mr = miniredis.RunT(t)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		backend = session.NewRedisBackend(rdb, cfg.Session.TTL)
		h.Redis = mr
	}

	sessions := transport.NewManager(backend, catalog.New(client), cfg.Pages, cfg.Session.Idle, logger, nil)
	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Sessions: sessions,
		Readiness: observability.ReadinessChecks{
			Backend: client,
		},
		Logger: logger,
	})

	h.Server = httptest.NewServer(router)
	t.Cleanup(h.Server.Close)
	return h
}

// --- Browser sessions ---

// Browser issues requests within one browser session, optionally signed in.
type Browser struct {
	h       *TestHarness
	Session string
	Token   string
}

// NewBrowser starts an anonymous browser session.
func (h *TestHarness) NewBrowser() *Browser {
	return &Browser{h: h, Session: uuid.NewString()}
}

// SignIn attaches a valid token for username with the given authorities.
func (b *Browser) SignIn(username string, authorities ...string) *Browser {
	b.Token = b.h.Tokens.GenerateToken(TestClaims{Username: username, Authorities: authorities})
	return b
}

// GET sends a GET request.
func (b *Browser) GET(path string) *http.Response {
	return b.Do(http.MethodGet, path, "")
}

// POST sends a POST request with a JSON body.
func (b *Browser) POST(path, body string) *http.Response {
	return b.Do(http.MethodPost, path, body)
}

// PUT sends a PUT request with a JSON body.
func (b *Browser) PUT(path, body string) *http.Response {
	return b.Do(http.MethodPut, path, body)
}

// Do sends a request carrying the session header and any bearer token.
func (b *Browser) Do(method, path, body string) *http.Response {
	b.h.t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, b.h.Server.URL+path, r)
	if err != nil {
		b.h.t.Fatalf("create request: %v", err)
	}
	req.Header.Set(transport.DefaultSessionHeader, b.Session)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		b.h.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// --- Response helpers ---

// ParseJSON reads and decodes the response body into out.
func ParseJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode response body: %v\nbody: %s", err, body)
	}
}

// AssertStatus checks the status code, printing the body on mismatch.
func AssertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode == want {
		return
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, want, body)
}

// ErrorCode decodes an error envelope response and returns its code.
func ErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	ParseJSON(t, resp, &out)
	return out.Error.Code
}

// --- Fixtures ---

// ClaimFixture is a claim record as the backend returns it.
func ClaimFixture(id, text string) map[string]any {
	return map[string]any{"id": id, "status": "PUB", "text": text}
}

// PersonFixture is a person record as the backend returns it.
func PersonFixture(id, lastName string) map[string]any {
	return map[string]any{"id": id, "status": "PUB", "lastName": lastName}
}

// PageFixture wraps records in a single-page list response under field.
func PageFixture(field string, records ...map[string]any) map[string]any {
	if records == nil {
		records = []map[string]any{}
	}
	return map[string]any{
		field: map[string]any{
			"content":          records,
			"hasContent":       len(records) > 0,
			"isEmpty":          len(records) == 0,
			"isFirst":          true,
			"isLast":           true,
			"number":           0,
			"size":             len(records),
			"numberOfElements": len(records),
			"totalElements":    len(records),
			"totalPages":       1,
		},
	}
}
