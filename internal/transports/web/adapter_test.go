package web

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sysconsole/internal/core"
	"sysconsole/internal/executor/executortest"
	"sysconsole/internal/storage"
	"sysconsole/internal/transports/common"
)

type fakeModule struct {
	block   bool
	actions core.Actions
}

func newFakeModule(block bool) *fakeModule {
	m := &fakeModule{block: block}
	m.actions.Add(core.ActionSpec{Name: "greet", Title: "Greet", Params: []string{"name"}}, func(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
		if m.block {
			<-ctx.Done()
			return core.Fail(ctx.Err())
		}
		name, err := env.Arg(args, 0, "Name")
		if err != nil {
			return env.Reject("Greeter", "Greet", err)
		}
		env.Out.Success("Hello, " + name)
		env.Log("Greeter", "Greet", "greeted "+name)
		return core.OK(map[string]string{"name": name})
	})
	return m
}

func (m *fakeModule) Name() string               { return "greeter" }
func (m *fakeModule) Title() string              { return "Greeter" }
func (m *fakeModule) Init(context.Context) error { return nil }
func (m *fakeModule) Actions() []core.ActionSpec { return m.actions.Specs() }
func (m *fakeModule) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

type fakeStore struct {
	mu      sync.Mutex
	latest  *storage.MetricRecord
	entries []storage.ActionEntry
}

func (s *fakeStore) SaveAction(_ context.Context, e storage.ActionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeStore) QueryActions(_ context.Context, q storage.ActionQuery) ([]storage.ActionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ActionEntry
	for _, e := range s.entries {
		if q.Component == "" || e.Component == q.Component {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveMetric(_ context.Context, rec storage.MetricRecord) error {
	s.latest = &rec
	return nil
}

func (s *fakeStore) LatestMetric(_ context.Context, module string) (storage.MetricRecord, error) {
	if s.latest == nil || s.latest.Module != module {
		return storage.MetricRecord{}, storage.ErrNotFound
	}
	return *s.latest, nil
}

func (s *fakeStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *fakeStore) Close() error                                    { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

const testToken = "test-token"

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newTestAdapter(t *testing.T, block bool, cfg Config) *Adapter {
	t.Helper()
	return newAdapterWithStore(t, &fakeStore{
		latest: &storage.MetricRecord{Module: "resource.snapshot", Payload: []byte(`{"cpu":1}`), TS: time.Now().UTC()},
	}, block, cfg)
}

func newAdapterWithStore(t *testing.T, store *fakeStore, block bool, cfg Config) *Adapter {
	t.Helper()
	registry := core.NewRegistry()
	if err := registry.Register(context.Background(), newFakeModule(block)); err != nil {
		t.Fatalf("register fake module: %v", err)
	}
	cfg.AllowLegacySubjectHeader = true
	cfg.Tokens = append(cfg.Tokens, TokenEntry{ID: "ops", TokenSHA256: tokenHash(testToken), Subject: "u1", Enabled: true})
	svc := &common.Service{
		Source:     "web",
		Registry:   registry,
		Exec:       executortest.NewFake(),
		Authorizer: core.NewAllowlistAuthorizer(map[string][]string{"web": {"u1"}}).Deny("greeter/forbidden"),
		Sink:       store,
	}
	return NewAdapter(svc, store, cfg)
}

func serve(a *Adapter, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.routes().ServeHTTP(rr, req)
	return rr
}

func executeRequestFor(body, subject string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/actions/execute", bytes.NewBufferString(body))
	if subject != "" {
		req.Header.Set("X-Subject-ID", subject)
	}
	return req
}

func TestHealthEndpoint(t *testing.T) {
	rr := serve(newTestAdapter(t, false, Config{}), httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestProtectedEndpointRequiresSubject(t *testing.T) {
	rr := serve(newTestAdapter(t, false, Config{}), httptest.NewRequest(http.MethodGet, "/v1/log", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	assertErrorHasRequestID(t, rr)
}

func TestBearerToken(t *testing.T) {
	a := newTestAdapter(t, false, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := serve(a, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var me map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me["subject"] != "u1" || me["auth_method"] != "bearer" {
		t.Fatalf("unexpected identity %v", me)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rr := serve(a, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rr.Code)
	}
}

func TestExecuteEndpointReturnsOutput(t *testing.T) {
	store := &fakeStore{}
	a := newAdapterWithStore(t, store, false, Config{})

	req := executeRequestFor(`{"module":"greeter","action":"greet","answers":["bob"]}`, "u1")
	req.Header.Set("X-Request-ID", "abc-123")
	rr := serve(a, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected request id header abc-123, got %q", got)
	}
	var resp struct {
		RequestID string `json:"request_id"`
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
		Output    string `json:"output"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != core.StatusOK || resp.RequestID != "abc-123" || resp.SessionID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(resp.Output, "## Greet") || !strings.Contains(resp.Output, "[SUCCESS] Hello, bob") {
		t.Fatalf("unexpected output %q", resp.Output)
	}
	if store.count() != 1 {
		t.Fatalf("expected action log entry, got %d", store.count())
	}
}

func TestExecuteTextCommand(t *testing.T) {
	rr := serve(newTestAdapter(t, false, Config{}), executeRequestFor(`{"command":"/greeter greet alice"}`, "u1"))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Hello, alice") {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
}

func TestExecuteMissingAnswerIsInBand(t *testing.T) {
	rr := serve(newTestAdapter(t, false, Config{}), executeRequestFor(`{"module":"greeter","action":"greet"}`, "u1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != core.StatusError || resp["error_code"] != core.CodeNoAnswer {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestExecuteStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		subject string
		status  int
		code    string
	}{
		{name: "forbidden subject", body: `{"module":"greeter","action":"greet","args":["x"]}`, subject: "u2", status: http.StatusForbidden, code: common.CodeAccessDenied},
		{name: "denied action", body: `{"module":"greeter","action":"forbidden"}`, subject: "u1", status: http.StatusForbidden, code: common.CodeAccessDenied},
		{name: "unknown module", body: `{"module":"nope","action":"x"}`, subject: "u1", status: http.StatusNotFound, code: core.CodeModuleNotFound},
		{name: "unknown action", body: `{"module":"greeter","action":"x"}`, subject: "u1", status: http.StatusNotFound, code: core.CodeUnknownAction},
		{name: "missing action", body: `{"module":"greeter"}`, subject: "u1", status: http.StatusBadRequest, code: common.CodeBadCommand},
		{name: "unknown field", body: `{"module":"greeter","action":"greet","shell":"rm"}`, subject: "u1", status: http.StatusBadRequest, code: "invalid_json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(newTestAdapter(t, false, Config{}), executeRequestFor(tt.body, tt.subject))
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			var resp map[string]interface{}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error_code"] != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, resp["error_code"])
			}
		})
	}
}

func TestInvalidRequestIDGetsReplaced(t *testing.T) {
	req := executeRequestFor(`{"module":"greeter","action":"greet","args":["x"]}`, "u1")
	req.Header.Set("X-Request-ID", "bad id with spaces")
	rr := serve(newTestAdapter(t, false, Config{}), req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-Request-ID"); got == "" || got == "bad id with spaces" {
		t.Fatalf("expected sanitized generated request id, got %q", got)
	}
}

func TestExecuteEndpointBodyTooLarge(t *testing.T) {
	a := newTestAdapter(t, false, Config{MaxRequestBody: 16})
	rr := serve(a, executeRequestFor(`{"module":"greeter","action":"greet","args":["a","b","c"]}`, "u1"))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rr.Code)
	}
}

func TestExecuteEndpointTimeout(t *testing.T) {
	a := newTestAdapter(t, true, Config{RequestTimeout: 20 * time.Millisecond})
	rr := serve(a, executeRequestFor(`{"module":"greeter","action":"greet","args":["x"]}`, "u1"))
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected status 504, got %d", rr.Code)
	}
}

func TestLatestMetricEndpoint(t *testing.T) {
	a := newTestAdapter(t, false, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/latest?module=resource.snapshot", nil)
	req.Header.Set("X-Subject-ID", "u1")
	if rr := serve(a, req); rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/metrics/latest?module=other", nil)
	req.Header.Set("X-Subject-ID", "u1")
	if rr := serve(a, req); rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestLogEndpointFiltersComponent(t *testing.T) {
	store := &fakeStore{}
	store.entries = []storage.ActionEntry{
		{Component: "UserGroup", Action: "Add User", Status: "ok"},
		{Component: "Firewall", Action: "Enable Firewall", Status: "cancelled"},
	}
	a := newAdapterWithStore(t, store, false, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/log?component=Firewall", nil)
	req.Header.Set("X-Subject-ID", "u1")
	rr := serve(a, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Items []storage.ActionEntry `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Action != "Enable Firewall" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/log?from=yesterday", nil)
	req.Header.Set("X-Subject-ID", "u1")
	if rr := serve(a, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	a := newTestAdapter(t, false, Config{CORSAllowedOrigins: []string{"https://console.local"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/actions/execute", nil)
	req.Header.Set("Origin", "https://console.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := serve(a, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "https://console.local" {
		t.Fatalf("unexpected preflight response %d %v", rr.Code, rr.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	if rr := serve(a, req); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got %d", rr.Code)
	}
}

func assertErrorHasRequestID(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	var resp struct {
		RequestID string `json:"request_id"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RequestID == "" {
		t.Fatal("expected request_id in error response")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header in error response")
	}
}
