package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockBackend is a configurable GraphQL test server standing in for the
// evidence engine. Responses are configured per operation name and every
// received request is recorded for later assertion.
type MockBackend struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.RWMutex
	operations   map[string]*operationConfig
	receivedByOp map[string][]*RecordedRequest
}

// RecordedRequest captures the details of a request received by the mock backend.
type RecordedRequest struct {
	OperationName string
	Query         string
	Variables     map[string]any
	Headers       http.Header
	ReceivedAt    time.Time
}

// operationConfig holds the configured responses for a single operation.
type operationConfig struct {
	mu        sync.Mutex
	responses []*mockResponse
	current   int
}

type mockResponse struct {
	status    int
	body      any
	delay     time.Duration
	connError bool
}

// OperationMock is a builder for configuring responses for one operation.
type OperationMock struct {
	backend *MockBackend
	opName  string
}

// newMockBackend creates a mock backend and starts its HTTP test server.
func newMockBackend(t *testing.T) *MockBackend {
	t.Helper()

	mb := &MockBackend{
		t:            t,
		operations:   make(map[string]*operationConfig),
		receivedByOp: make(map[string][]*RecordedRequest),
	}
	mb.server = httptest.NewServer(http.HandlerFunc(mb.handle))
	t.Cleanup(mb.server.Close)
	return mb
}

// URL returns the GraphQL endpoint of the mock backend.
func (mb *MockBackend) URL() string {
	return mb.server.URL + "/graphql"
}

// OnOperation returns a builder for configuring responses for the named operation.
func (mb *MockBackend) OnOperation(operationName string) *OperationMock {
	return &OperationMock{backend: mb, opName: operationName}
}

// RespondWithData configures the operation to answer 200 with the given data
// object.
func (om *OperationMock) RespondWithData(data any) *OperationMock {
	om.backend.addResponse(om.opName, &mockResponse{
		status: http.StatusOK,
		body:   map[string]any{"data": data},
	})
	return om
}

// RespondWithErrors configures a GraphQL errors array with a null data object.
func (om *OperationMock) RespondWithErrors(messages ...string) *OperationMock {
	errs := make([]map[string]any, len(messages))
	for i, m := range messages {
		errs[i] = map[string]any{"message": m}
	}
	om.backend.addResponse(om.opName, &mockResponse{
		status: http.StatusOK,
		body:   map[string]any{"data": nil, "errors": errs},
	})
	return om
}

// RespondWithStatus configures a bare HTTP status with the given body.
func (om *OperationMock) RespondWithStatus(status int, body any) *OperationMock {
	om.backend.addResponse(om.opName, &mockResponse{status: status, body: body})
	return om
}

// RespondWithDelay configures a delayed response to simulate a slow backend.
func (om *OperationMock) RespondWithDelay(delay time.Duration, data any) *OperationMock {
	om.backend.addResponse(om.opName, &mockResponse{
		status: http.StatusOK,
		body:   map[string]any{"data": data},
		delay:  delay,
	})
	return om
}

// RespondWithConnectionError configures the operation to close the
// connection to simulate a backend failure.
func (om *OperationMock) RespondWithConnectionError() *OperationMock {
	om.backend.addResponse(om.opName, &mockResponse{connError: true})
	return om
}

func (mb *MockBackend) addResponse(opName string, resp *mockResponse) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	cfg, ok := mb.operations[opName]
	if !ok {
		cfg = &operationConfig{}
		mb.operations[opName] = cfg
	}
	cfg.responses = append(cfg.responses, resp)
}

func (mb *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	body, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mb.mu.Lock()
	mb.receivedByOp[req.OperationName] = append(mb.receivedByOp[req.OperationName], &RecordedRequest{
		OperationName: req.OperationName,
		Query:         req.Query,
		Variables:     req.Variables,
		Headers:       r.Header.Clone(),
		ReceivedAt:    time.Now(),
	})
	mb.mu.Unlock()

	resp := mb.getNextResponse(req.OperationName)
	if resp == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data":   nil,
			"errors": []map[string]any{{"message": "mock: no response configured for " + req.OperationName}},
		})
		return
	}

	if resp.connError {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			if conn != nil {
				conn.Close()
			}
		}
		return
	}

	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if resp.body != nil {
		json.NewEncoder(w).Encode(resp.body)
	}
}

func (mb *MockBackend) getNextResponse(opName string) *mockResponse {
	mb.mu.RLock()
	cfg, ok := mb.operations[opName]
	mb.mu.RUnlock()
	if !ok || cfg == nil {
		return nil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if len(cfg.responses) == 0 {
		return nil
	}

	idx := cfg.current
	if idx >= len(cfg.responses) {
		// Repeat the last response for subsequent calls.
		idx = len(cfg.responses) - 1
	} else {
		cfg.current++
	}
	return cfg.responses[idx]
}

// AssertCalled verifies that the operation was called the expected number of times.
func (mb *MockBackend) AssertCalled(t *testing.T, operationName string, expectedCount int) {
	t.Helper()
	mb.mu.RLock()
	actual := len(mb.receivedByOp[operationName])
	mb.mu.RUnlock()
	if actual != expectedCount {
		t.Errorf("mock: operation %q called %d times, want %d", operationName, actual, expectedCount)
	}
}

// AssertNotCalled verifies that the operation was never called.
func (mb *MockBackend) AssertNotCalled(t *testing.T, operationName string) {
	t.Helper()
	mb.AssertCalled(t, operationName, 0)
}

// CallCount returns how many times the operation was called.
func (mb *MockBackend) CallCount(operationName string) int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return len(mb.receivedByOp[operationName])
}

// LastRequest returns the last request received for the given operation, or
// nil if none was recorded.
func (mb *MockBackend) LastRequest(operationName string) *RecordedRequest {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	reqs := mb.receivedByOp[operationName]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// ResetOperation clears recorded requests and configured responses for one
// operation.
func (mb *MockBackend) ResetOperation(operationName string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	delete(mb.operations, operationName)
	delete(mb.receivedByOp, operationName)
}
