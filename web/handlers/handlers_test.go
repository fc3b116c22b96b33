package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/engine"
	"github.com/alienxp03/tradedebate/internal/storage"
	"github.com/alienxp03/tradedebate/provider"
	"github.com/alienxp03/tradedebate/provider/mock"
)

// setupTestHandler creates a handler backed by a temporary SQLite database
// and a simulated backend for every role.
func setupTestHandler(t *testing.T) (*Handler, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "tradedebate-web-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	store, err := storage.Open(storage.DriverSQLite, filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create storage: %v", err)
	}

	registry := provider.NewRegistry()
	registry.Register(mock.New(provider.Config{}))

	settings := engine.DefaultSettings()
	settings.DefaultBuy = "mock"
	settings.DefaultSell = "mock"
	settings.DefaultJudge = "mock"
	settings.Retry = provider.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond}

	handler := New(engine.New(store, registry, settings),
		WithHealthCachePath(filepath.Join(tmpDir, "health.json")),
		WithPollInterval(10*time.Millisecond),
	)

	cleanup := func() {
		handler.Wait()
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return handler, cleanup
}

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)
	return w
}

func createRun(t *testing.T, h *Handler, body string) *core.Run {
	t.Helper()
	w := doRequest(t, h, "POST", "/api/runs", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var run core.Run
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("failed to parse run: %v", err)
	}
	return &run
}

type runPayload struct {
	Run      core.Run             `json:"run"`
	Messages []core.StoredMessage `json:"messages"`
}

func getRun(t *testing.T, h *Handler, id string) runPayload {
	t.Helper()
	w := doRequest(t, h, "GET", "/api/runs/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var payload runPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return payload
}

func TestCreateRunAutoRuns(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	run := createRun(t, handler, `{"ticker":"acme","news_data":"record quarter"}`)

	if run.Ticker != "ACME" {
		t.Errorf("expected ticker ACME, got %s", run.Ticker)
	}
	if run.MaxTurns != 8 {
		t.Errorf("expected web max turns 8, got %d", run.MaxTurns)
	}

	handler.Wait()

	payload := getRun(t, handler, run.ID)
	if payload.Run.Status != core.StatusCompleted {
		t.Fatalf("expected completed run, got %s (%s)", payload.Run.Status, payload.Run.Error)
	}
	if len(payload.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(payload.Messages))
	}
	if payload.Messages[0].Speaker != core.SpeakerBuy || payload.Messages[1].Speaker != core.SpeakerSell {
		t.Errorf("unexpected speakers: %s, %s", payload.Messages[0].Speaker, payload.Messages[1].Speaker)
	}
	if payload.Run.Verdict == nil || payload.Run.Verdict.Winner != core.WinnerBuy {
		t.Errorf("unexpected verdict: %+v", payload.Run.Verdict)
	}
}

func TestCreateRunWithoutAutoRun(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	run := createRun(t, handler, `{"topic":"Should we buy ACME?","max_turns":3,"auto_run":false}`)
	handler.Wait()

	payload := getRun(t, handler, run.ID)
	if payload.Run.Status != core.StatusPending {
		t.Errorf("expected pending run, got %s", payload.Run.Status)
	}
	if payload.Run.MaxTurns != 3 {
		t.Errorf("expected max turns 3, got %d", payload.Run.MaxTurns)
	}
	if len(payload.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(payload.Messages))
	}
}

func TestCloseCancelsBackgroundRuns(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	handler.registry.Register(mock.New(provider.Config{Name: "slow"}, mock.WithDelay(time.Hour)))
	run := createRun(t, handler, `{"topic":"Should we buy ACME?","buy":"slow"}`)

	deadline := time.Now().Add(5 * time.Second)
	for getRun(t, handler, run.ID).Run.Status != core.StatusInProgress {
		if time.Now().After(deadline) {
			t.Fatal("run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	handler.Close()

	payload := getRun(t, handler, run.ID)
	if payload.Run.Status != core.StatusFailed {
		t.Fatalf("expected failed run after close, got %s", payload.Run.Status)
	}
	if !strings.Contains(payload.Run.Error, "context canceled") {
		t.Errorf("expected cancellation in run error, got %q", payload.Run.Error)
	}

	if w := doRequest(t, handler, "DELETE", "/api/runs/"+run.ID, ""); w.Code != http.StatusNoContent {
		t.Errorf("expected canceled run to be deletable, got %d", w.Code)
	}
	if w := doRequest(t, handler, "POST", "/api/runs", `{"topic":"t"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after close, got %d", w.Code)
	}
}

func TestCreateRunValidation(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	tests := []struct {
		name string
		body string
	}{
		{"InvalidJSON", `{not json`},
		{"MissingTopic", `{}`},
		{"BadTicker", `{"ticker":"../etc"}`},
		{"UnknownBackend", `{"topic":"t","judge":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, handler, "POST", "/api/runs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	w := doRequest(t, handler, "GET", "/api/runs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", w.Body.String())
	}

	createRun(t, handler, `{"topic":"one","auto_run":false}`)
	createRun(t, handler, `{"topic":"two","auto_run":false}`)

	w = doRequest(t, handler, "GET", "/api/runs?limit=1", "")
	var runs []core.RunSummary
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("failed to parse runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected limit to apply, got %d runs", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	w := doRequest(t, handler, "GET", "/api/runs/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestDeleteRun(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	run := createRun(t, handler, `{"topic":"t","auto_run":false}`)

	w := doRequest(t, handler, "DELETE", "/api/runs/"+run.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	w = doRequest(t, handler, "DELETE", "/api/runs/"+run.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on second delete, got %d", w.Code)
	}
}

func TestExportRun(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	run := createRun(t, handler, `{"topic":"Should we buy ACME?"}`)
	handler.Wait()

	w := doRequest(t, handler, "GET", "/api/runs/"+run.ID+"/export/markdown", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Should_we_buy_ACME.md") {
		t.Errorf("unexpected content disposition: %s", cd)
	}
	if !strings.Contains(w.Body.String(), "**Winner: BUY**") {
		t.Error("export missing verdict")
	}

	w = doRequest(t, handler, "GET", "/api/runs/"+run.ID+"/export/docx", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unsupported format, got %d", w.Code)
	}

	w = doRequest(t, handler, "GET", "/api/runs/missing/export/json", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func TestRunStreamCompletedRun(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	run := createRun(t, handler, `{"topic":"Should we buy ACME?"}`)
	handler.Wait()

	w := doRequest(t, handler, "GET", "/api/runs/"+run.ID+"/stream", "")
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type: %s", ct)
	}

	events := parseSSE(t, w.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	for i := 0; i < 3; i++ {
		if events[i].name != eventMessage {
			t.Errorf("event %d: expected message, got %s", i, events[i].name)
		}
	}
	if events[3].name != eventRunComplete {
		t.Errorf("expected run_complete, got %s", events[3].name)
	}

	var msg core.StoredMessage
	if err := json.Unmarshal([]byte(events[2].data), &msg); err != nil {
		t.Fatalf("failed to parse message event: %v", err)
	}
	if !strings.HasPrefix(msg.Content, core.VerdictPrefix+"BUY") {
		t.Errorf("unexpected final message: %s", msg.Content)
	}
}

func TestRunStreamFailedRun(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	handler.registry.Register(mock.New(provider.Config{Name: "broken"}, mock.WithResponses("not a verdict")))
	run := createRun(t, handler, `{"topic":"t","judge":"broken"}`)
	handler.Wait()

	w := doRequest(t, handler, "GET", "/api/runs/"+run.ID+"/stream", "")
	events := parseSSE(t, w.Body.String())
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	last := events[len(events)-1]
	if last.name != eventError {
		t.Errorf("expected final error event, got %s", last.name)
	}
	if !strings.Contains(last.data, "retries") {
		t.Errorf("expected run error in event, got %s", last.data)
	}
}

func TestRunStreamNotFound(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	w := doRequest(t, handler, "GET", "/api/runs/missing/stream", "")
	events := parseSSE(t, w.Body.String())
	if len(events) != 1 || events[0].name != eventError {
		t.Errorf("expected single error event, got %+v", events)
	}
}

func TestHandleAPIProviders(t *testing.T) {
	handler, cleanup := setupTestHandler(t)
	defer cleanup()

	handler.registry.Register(mock.New(provider.Config{Name: "alpha", DisplayName: "Alpha", DefaultModel: "a-1"}))

	w := doRequest(t, handler, "GET", "/api/providers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var providers []providerInfo
	if err := json.Unmarshal(w.Body.Bytes(), &providers); err != nil {
		t.Fatalf("failed to parse providers: %v", err)
	}
	if len(providers) != 1 {
		t.Fatalf("expected mock to be hidden, got %+v", providers)
	}
	if providers[0].Name != "alpha" || providers[0].DisplayName != "Alpha" || providers[0].DefaultModel != "a-1" {
		t.Errorf("unexpected provider info: %+v", providers[0])
	}
}
