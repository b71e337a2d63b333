package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/catalog"
	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/graphql"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/session"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// --- Test helpers ---

const claimPage = `{"claims":{"content":[{"id":"1","status":"PUB","text":"warming"},{"id":"2","status":"PUB","text":"cooling"}],"number":0,"size":10,"numberOfElements":2,"totalElements":2,"totalPages":1,"hasContent":true,"isFirst":true,"isLast":true}}`

// scriptedExecutor answers by operation name and records every request.
type scriptedExecutor struct {
	mu        sync.Mutex
	responses map[string]string
	requests  []graphql.Request
}

func newExecutor() *scriptedExecutor {
	return &scriptedExecutor{responses: map[string]string{
		"ClaimList":        claimPage,
		"UpdateClaim":      `{"updateClaim":{"id":"1","status":"PUB","text":"warming, revised"}}`,
		"CreateEntityLink": `{"createEntityLink":{"id":"9","fromEntityKind":"Person","fromEntityId":"p1","toEntityKind":"Claim","toEntityId":"1"}}`,
	}}
}

func (s *scriptedExecutor) Query(_ context.Context, req graphql.Request) (json.RawMessage, error) {
	return s.answer(req)
}

func (s *scriptedExecutor) Mutate(_ context.Context, req graphql.Request) (json.RawMessage, error) {
	return s.answer(req)
}

func (s *scriptedExecutor) answer(req graphql.Request) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	body, ok := s.responses[req.OperationName]
	if !ok {
		return nil, model.NewGraphQLError("unexpected operation " + req.OperationName)
	}
	return json.RawMessage(body), nil
}

func (s *scriptedExecutor) respond(name, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[name] = body
}

func (s *scriptedExecutor) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if req.OperationName == name {
			n++
		}
	}
	return n
}

func (s *scriptedExecutor) last(name string) (graphql.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].OperationName == name {
			return s.requests[i], true
		}
	}
	return graphql.Request{}, false
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.GraphQL.Endpoint = "http://backend.test/graphql"
	cfg.Server.CORS.AllowedOrigins = []string{"https://app.example.com"}
	cfg.Server.HandlerTimeout = 5 * time.Second
	return cfg
}

// testDeps returns Dependencies over a scripted backend and in-memory sessions.
func testDeps(ex *scriptedExecutor) Dependencies {
	cfg := testConfig()
	ok := observability.HealthCheckFunc(func(context.Context) error { return nil })
	return Dependencies{
		Config:    cfg,
		Sessions:  NewManager(session.NewMemoryBackend(time.Hour), catalog.New(ex), cfg.Pages, time.Hour, zap.NewNop(), nil),
		Readiness: observability.ReadinessChecks{Backend: ok, SessionStore: ok},
		Logger:    zap.NewNop(),
	}
}

// client issues API requests within one browser session.
type client struct {
	t       *testing.T
	handler http.Handler
	session string
}

func newClient(t *testing.T, h http.Handler) *client {
	return &client{t: t, handler: h, session: uuid.NewString()}
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(DefaultSessionHeader, c.session)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

type pageResponse struct {
	Kind       model.EntityKind `json:"kind"`
	SelectedID string           `json:"selectedId"`
	Page       struct {
		Content []model.Claim `json:"content"`
	} `json:"page"`
	Fields        catalog.ClaimFields   `json:"fields"`
	Detail        model.DetailState     `json:"detail"`
	MasterLink    model.MasterLinkState `json:"masterLink"`
	Notifications []model.Notification  `json:"notifications"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	return resp.Error.Code
}

// --- Public routes ---

func TestNewRouter_health(t *testing.T) {
	r := NewRouter(testDeps(newExecutor()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	body := decode[observability.HealthResponse](t, w)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestNewRouter_ready(t *testing.T) {
	r := NewRouter(testDeps(newExecutor()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestNewRouter_notReady(t *testing.T) {
	deps := testDeps(newExecutor())
	deps.Readiness.Backend = observability.HealthCheckFunc(func(context.Context) error {
		return errors.New("connection refused")
	})
	r := NewRouter(deps)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))

	if w.Code != 503 {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestNewRouter_metrics(t *testing.T) {
	r := NewRouter(testDeps(newExecutor()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestNewRouter_publicRoutesBypassAuth(t *testing.T) {
	deps := testDeps(newExecutor())
	deps.Config.Identity.RequireToken = true
	r := NewRouter(deps)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
			if w.Code != 200 {
				t.Errorf("status = %d, want 200 (should bypass auth)", w.Code)
			}
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/context", nil))
	if w.Code != 401 {
		t.Errorf("context status = %d, want 401", w.Code)
	}
}

// --- Listing routes ---

func TestGetPage_mountsAndFetches(t *testing.T) {
	ex := newExecutor()
	c := newClient(t, NewRouter(testDeps(ex)))

	w := c.do("GET", "/api/pages/Claim", "")
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(DefaultSessionHeader); got != c.session {
		t.Errorf("session header = %q, want %q", got, c.session)
	}
	resp := decode[pageResponse](t, w)
	if resp.Kind != model.KindClaim {
		t.Errorf("kind = %q, want Claim", resp.Kind)
	}
	if len(resp.Page.Content) != 2 {
		t.Errorf("content = %d records, want 2", len(resp.Page.Content))
	}
	if ex.count("ClaimList") != 1 {
		t.Errorf("ClaimList requests = %d, want 1", ex.count("ClaimList"))
	}

	// A second plain GET reuses the mounted listing.
	c.do("GET", "/api/pages/Claim", "")
	if ex.count("ClaimList") != 1 {
		t.Errorf("ClaimList requests after second GET = %d, want 1", ex.count("ClaimList"))
	}

	c.do("GET", "/api/pages/Claim?refresh=true", "")
	if ex.count("ClaimList") != 2 {
		t.Errorf("ClaimList requests after refresh = %d, want 2", ex.count("ClaimList"))
	}
}

func TestGetPage_appliesFilterAndPaging(t *testing.T) {
	ex := newExecutor()
	c := newClient(t, NewRouter(testDeps(ex)))

	w := c.do("GET", "/api/pages/Claim?text=warming&size=20&sort=-text", "")
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	req, ok := ex.last("ClaimList")
	if !ok {
		t.Fatal("no ClaimList request")
	}
	filter, _ := req.Variables["filter"].(map[string]any)
	if filter["text"] != "warming" {
		t.Errorf("filter = %v, want text=warming", filter)
	}
	if req.Variables["pageSort"] == nil {
		t.Error("pageSort should be sent for a manually paged listing")
	}
	if n := ex.count("ClaimList"); n != 1 {
		t.Errorf("ClaimList requests = %d, want 1 for a first load with a query", n)
	}
}

func TestGetPage_setsListingToggles(t *testing.T) {
	ex := newExecutor()
	c := newClient(t, NewRouter(testDeps(ex)))
	c.do("GET", "/api/pages/Claim", "")

	w := c.do("GET", "/api/pages/Claim?selectedLinkId=l3&showUsersOrMembers=members&activeTab=links", "")
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Query model.QueryState `json:"query"`
	}](t, w)
	q := resp.Query
	if q.SelectedLinkID != "l3" || q.ShowUsersOrMembers != "members" || q.ActiveTab != "links" {
		t.Errorf("query = %+v, want the toggles set", q)
	}
	if n := ex.count("ClaimList"); n != 1 {
		t.Errorf("ClaimList requests = %d, want 1 for display-only changes", n)
	}

	w = c.do("GET", "/api/pages/Claim?showUsersOrMembers=everyone", "")
	if w.Code != 400 {
		t.Errorf("status = %d, want 400 for an unknown showUsersOrMembers", w.Code)
	}
}

func TestGetPage_unknownKind(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	for _, kind := range []string{"Widget", "None"} {
		w := c.do("GET", "/api/pages/"+kind, "")
		if w.Code != 404 {
			t.Errorf("GET %s status = %d, want 404", kind, w.Code)
		}
		if code := errorCode(t, w); code != model.ErrNotFound {
			t.Errorf("GET %s code = %q, want NOT_FOUND", kind, code)
		}
	}
}

func TestGetPage_badPaging(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	for _, q := range []string{"page=-1", "page=x", "size=0"} {
		w := c.do("GET", "/api/pages/Claim?"+q, "")
		if w.Code != 400 {
			t.Errorf("%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestSelect_updatesListingAndContext(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	c.do("GET", "/api/pages/Claim", "")

	w := c.do("POST", "/api/pages/Claim/select", `{"id":"2"}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decode[pageResponse](t, w)
	if resp.SelectedID != "2" {
		t.Errorf("selectedId = %q, want 2", resp.SelectedID)
	}
	if resp.Fields.Text != "cooling" {
		t.Errorf("fields.text = %q, want cooling", resp.Fields.Text)
	}

	ctx := decode[struct {
		SelectedRecords model.SelectedRecordsMap `json:"selectedRecords"`
	}](t, c.do("GET", "/api/context", ""))
	if ctx.SelectedRecords[model.KindClaim].ID != "2" {
		t.Errorf("selectedRecords = %v, want Claim 2", ctx.SelectedRecords)
	}
}

func TestMode_rejectsUnknownMode(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	w := c.do("POST", "/api/pages/Claim/mode", `{"mode":"archive"}`)
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAction_updateRecord(t *testing.T) {
	ex := newExecutor()
	c := newClient(t, NewRouter(testDeps(ex)))
	c.do("GET", "/api/pages/Claim", "")
	c.do("POST", "/api/pages/Claim/select", `{"id":"1"}`)
	c.do("POST", "/api/pages/Claim/mode", `{"mode":"edit"}`)
	ex.respond("ClaimList", strings.Replace(claimPage, `"text":"warming"`, `"text":"warming, revised"`, 1))

	w := c.do("POST", "/api/pages/Claim/actions/update", `{"id":"1","text":"warming, revised"}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	req, ok := ex.last("UpdateClaim")
	if !ok {
		t.Fatal("no updateClaim request")
	}
	input, _ := req.Variables["input"].(map[string]any)
	if input["id"] != "1" || input["text"] != "warming, revised" {
		t.Errorf("input = %v", input)
	}
	resp := decode[pageResponse](t, w)
	if resp.Fields.Text != "warming, revised" {
		t.Errorf("fields.text = %q, want the updated text", resp.Fields.Text)
	}
	if len(resp.Notifications) == 0 {
		t.Error("expected a success notification")
	}
}

func TestAction_validationFailure(t *testing.T) {
	ex := newExecutor()
	c := newClient(t, NewRouter(testDeps(ex)))
	c.do("GET", "/api/pages/Claim", "")
	c.do("POST", "/api/pages/Claim/select", `{"id":"1"}`)
	c.do("POST", "/api/pages/Claim/mode", `{"mode":"edit"}`)

	w := c.do("POST", "/api/pages/Claim/actions/update", `{"id":"1","text":""}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ex.count("UpdateClaim") != 0 {
		t.Error("invalid form should not reach the backend")
	}
	resp := decode[pageResponse](t, w)
	if len(resp.Notifications) == 0 || resp.Notifications[0].Error == nil || resp.Notifications[0].Error.Code != model.ErrValidationError {
		t.Errorf("notifications = %+v, want a validation error", resp.Notifications)
	}
}

func TestAction_unknownCommand(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	w := c.do("POST", "/api/pages/Claim/actions/archive", "")
	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAction_readOnlyListing(t *testing.T) {
	ex := newExecutor()
	ex.respond("LogList", `{"log":{"content":[{"id":"9","transactionKind":"CRE","entityKind":"Claim","entityId":"1"}]}}`)
	c := newClient(t, NewRouter(testDeps(ex)))
	c.do("GET", "/api/pages/Log", "")

	for _, path := range []string{"/api/pages/Log/actions/create", "/api/pages/Log/actions/delete", "/api/pages/Log/link"} {
		w := c.do("POST", path, "")
		if w.Code != 400 {
			t.Errorf("POST %s status = %d, want 400", path, w.Code)
		}
		if code := errorCode(t, w); code != model.ErrBadRequest {
			t.Errorf("POST %s code = %q, want BAD_REQUEST", path, code)
		}
	}
	if w := c.do("POST", "/api/pages/Log/actions/reset", ""); w.Code != 200 {
		t.Errorf("reset status = %d, want 200", w.Code)
	}
}

func TestAction_badValues(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	c.do("GET", "/api/pages/Claim", "")
	w := c.do("POST", "/api/pages/Claim/actions/create", `{"text":`)
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLayout_roundTrip(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	w := c.do("PUT", "/api/pages/Claim/layout", `{"order":["text","id"],"visibility":{"notes":false}}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	layout := decode[model.ColumnLayout](t, c.do("GET", "/api/pages/Claim/layout", ""))
	if len(layout.Order) != 2 || layout.Order[0] != "text" {
		t.Errorf("order = %v, want [text id]", layout.Order)
	}
	if layout.Visibility["notes"] {
		t.Errorf("visibility = %v, want notes hidden", layout.Visibility)
	}
}

// --- Context routes ---

func TestMasterRecord_followsSelection(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	c.do("GET", "/api/pages/Claim", "")

	w := c.do("PUT", "/api/context/master-record-kind", `{"kind":"Claim"}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	c.do("POST", "/api/pages/Claim/select", `{"id":"1"}`)

	ctx := decode[struct {
		MasterLink model.MasterLinkState `json:"masterLink"`
	}](t, c.do("GET", "/api/context", ""))
	if ctx.MasterLink.MasterRecordKind != model.KindClaim || ctx.MasterLink.MasterRecordID != "1" {
		t.Errorf("masterLink = %+v, want Claim 1", ctx.MasterLink)
	}
}

func TestMasterRecordKind_rejectsNonLinkable(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	for _, body := range []string{`{"kind":"Journal"}`, `{"kind":"Widget"}`} {
		w := c.do("PUT", "/api/context/master-record-kind", body)
		if w.Code != 400 {
			t.Errorf("%s status = %d, want 400", body, w.Code)
		}
	}
}

func TestMasterTopic_refetchesLinkedListings(t *testing.T) {
	ex := newExecutor()
	c := newClient(t, NewRouter(testDeps(ex)))
	c.do("GET", "/api/pages/Claim?showOnlyLinked=true", "")
	before := ex.count("ClaimList")

	w := c.do("PUT", "/api/context/master-topic", `{"id":"t1","path":"Climate"}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	ctx := decode[struct {
		MasterLink model.MasterLinkState `json:"masterLink"`
	}](t, w)
	if ctx.MasterLink.MasterTopicID != "t1" || ctx.MasterLink.MasterTopicPath != "Climate" {
		t.Errorf("masterLink = %+v, want topic t1", ctx.MasterLink)
	}
	if got := ex.count("ClaimList"); got != before+1 {
		t.Errorf("ClaimList requests = %d, want %d", got, before+1)
	}
	req, _ := ex.last("ClaimList")
	filter, _ := req.Variables["filter"].(map[string]any)
	if filter["topicId"] != "t1" {
		t.Errorf("filter = %v, want topicId t1", filter)
	}

	w = c.do("PUT", "/api/context/master-topic", `{"id":""}`)
	ctx = decode[struct {
		MasterLink model.MasterLinkState `json:"masterLink"`
	}](t, w)
	if ctx.MasterLink.MasterTopicID != "" {
		t.Errorf("masterTopicId = %q, want cleared", ctx.MasterLink.MasterTopicID)
	}
}

func TestGetPage_badShowOnlyLinked(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	w := c.do("GET", "/api/pages/Claim?showOnlyLinked=maybe", "")
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSidebar(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	w := c.do("PUT", "/api/context/sidebar", `{"open":false}`)
	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	ctx := decode[struct {
		SidebarOpen bool `json:"sidebarOpen"`
	}](t, w)
	if ctx.SidebarOpen {
		t.Error("sidebarOpen = true, want false")
	}
}

func TestContext_signedInUser(t *testing.T) {
	c := newClient(t, NewRouter(testDeps(newExecutor())))
	token := signToken(t, map[string]any{"sub": "alice", "authorities": []any{"UPD"}})

	req := httptest.NewRequest("GET", "/api/context", nil)
	req.Header.Set(DefaultSessionHeader, c.session)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	ctx := decode[struct {
		Security model.SecurityState `json:"security"`
	}](t, w)
	if ctx.Security.Username != "alice" {
		t.Errorf("username = %q, want alice", ctx.Security.Username)
	}
}

func TestSessions_areIsolated(t *testing.T) {
	h := NewRouter(testDeps(newExecutor()))
	a, b := newClient(t, h), newClient(t, h)

	a.do("PUT", "/api/context/sidebar", `{"open":false}`)
	ctx := decode[struct {
		SidebarOpen bool `json:"sidebarOpen"`
	}](t, b.do("GET", "/api/context", ""))
	if !ctx.SidebarOpen {
		t.Error("a change in one session leaked into another")
	}
}
