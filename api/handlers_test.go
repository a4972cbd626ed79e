package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/promptsentinel/sentinel/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, configPath string) (*Server, store.Store) {
	t.Helper()
	t.Setenv("SENTINEL_API_KEY", "secret")

	st, err := store.Open("memory")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv, err := NewServer(st, configPath)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, st
}

func doRequest(srv *Server, method, path, apiKey string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(len(body))
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestServer_RequiresAuthConfiguration(t *testing.T) {
	t.Setenv("SENTINEL_API_KEY", "")
	t.Setenv("SENTINEL_DISABLE_AUTH", "")

	st, err := store.Open("memory")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	if _, err := NewServer(st, "tests.yaml"); err == nil {
		t.Fatalf("server without auth configuration should refuse to start")
	}

	t.Setenv("SENTINEL_DISABLE_AUTH", "true")
	if _, err := NewServer(st, "tests.yaml"); err != nil {
		t.Fatalf("explicit auth opt-out: %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, "tests.yaml")

	w := doRequest(srv, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
}

func TestServer_AuthEnforced(t *testing.T) {
	srv, _ := newTestServer(t, "tests.yaml")

	if w := doRequest(srv, http.MethodGet, "/api/v1/runs", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no key: %d", w.Code)
	}
	if w := doRequest(srv, http.MethodGet, "/api/v1/runs", "wrong", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: %d", w.Code)
	}
	if w := doRequest(srv, http.MethodGet, "/api/v1/runs", "secret", ""); w.Code != http.StatusOK {
		t.Fatalf("valid key: %d (%s)", w.Code, w.Body.String())
	}
}

func seedRun(t *testing.T, st store.Store, runID, testID string) {
	t.Helper()
	now := time.Now().UTC()
	if err := st.SaveRun(context.Background(), &store.RunRecord{
		ID: runID, StartedAt: now, FinishedAt: now.Add(time.Second),
		SourceFile: "tests.yaml", TotalCases: 2, PassedCases: 2,
	}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := st.SaveTestResult(context.Background(), &store.TestRecord{
		ID: store.NewID(), RunID: runID, TestID: testID,
		TotalCases: 2, PassedCases: 2, CreatedAt: now,
	}); err != nil {
		t.Fatalf("SaveTestResult: %v", err)
	}
}

func TestServer_ListAndGetRuns(t *testing.T) {
	srv, st := newTestServer(t, "tests.yaml")
	seedRun(t, st, "run-1", "greet")

	w := doRequest(srv, http.MethodGet, "/api/v1/runs", "secret", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var runs []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs: %v", runs)
	}

	if w := doRequest(srv, http.MethodGet, "/api/v1/runs/run-1", "secret", ""); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	if w := doRequest(srv, http.MethodGet, "/api/v1/runs/absent", "secret", ""); w.Code != http.StatusNotFound {
		t.Fatalf("absent run: %d", w.Code)
	}
	if w := doRequest(srv, http.MethodGet, "/api/v1/runs/run-1/results", "secret", ""); w.Code != http.StatusOK {
		t.Fatalf("results: %d", w.Code)
	}
	if w := doRequest(srv, http.MethodGet, "/api/v1/history/greet", "secret", ""); w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	if w := doRequest(srv, http.MethodGet, "/api/v1/runs?limit=bogus", "secret", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", w.Code)
	}
}

func TestServer_StartRunAgainstWebhook(t *testing.T) {
	// Back the run with a webhook endpoint so no real provider keys
	// are needed.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "pong", "usage": {"prompt_tokens": 1, "completion_tokens": 1}}`))
	}))
	t.Cleanup(backend.Close)
	t.Setenv("WEBHOOK_URL", backend.URL)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tests.yaml")
	cfg := `
version: "1"
defaults:
  provider: webhook
  model: custom
tests:
  - id: ping
    prompt: "ping"
    cases:
      - input: {}
        assert:
          - type: contains
            value: pong
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	srv, _ := newTestServer(t, cfgPath)

	w := doRequest(srv, http.MethodPost, "/api/v1/runs", "secret", `{"concurrency": 2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start run: %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		RunID   string `json:"run_id"`
		Summary struct {
			Passed int `json:"passed"`
			Failed int `json:"failed"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Summary.Passed != 1 || resp.Summary.Failed != 0 {
		t.Fatalf("summary: %+v", resp.Summary)
	}
	if resp.RunID == "" {
		t.Fatalf("run not persisted")
	}
}

func TestServer_StartRunValidationProblems(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tests.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\"\ntests: []\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	srv, _ := newTestServer(t, cfgPath)

	w := doRequest(srv, http.MethodPost, "/api/v1/runs", "secret", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty suite: %d (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "problems") {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestServer_StartRunBadFlags(t *testing.T) {
	srv, _ := newTestServer(t, "tests.yaml")

	if w := doRequest(srv, http.MethodPost, "/api/v1/runs", "secret", `{"concurrency": 0}`); w.Code != http.StatusBadRequest {
		t.Fatalf("zero concurrency: %d", w.Code)
	}
	if w := doRequest(srv, http.MethodPost, "/api/v1/runs", "secret", `{"timeout_ms": -5}`); w.Code != http.StatusBadRequest {
		t.Fatalf("negative timeout: %d", w.Code)
	}
}
