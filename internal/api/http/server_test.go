package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/corral/internal/api"
	"github.com/Paintersrp/corral/internal/metrics"
)

type mockController struct {
	statusFn func(stdcontext.Context) (*api.StatusReport, error)
	stopFn   func(stdcontext.Context, string) (*api.StopResult, error)
}

func (m *mockController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return nil, nil
}

func (m *mockController) StopProcess(ctx stdcontext.Context, name string) (*api.StopResult, error) {
	if m.stopFn != nil {
		return m.stopFn(ctx, name)
	}
	return nil, nil
}

func newTestServer(t *testing.T, ctrl api.Controller) *Server {
	t.Helper()
	server, err := NewServer(Config{Addr: "127.0.0.1:0", Controller: ctrl})
	if err != nil {
		t.Fatalf("failed creating server: %v", err)
	}
	return server
}

func decodeError(t *testing.T, body io.Reader) errorBody {
	t.Helper()
	var payload errorBody
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload
}

func TestNewServerRejectsTypedNilController(t *testing.T) {
	var ctrl api.Controller = (*mockController)(nil)
	_, err := NewServer(Config{Addr: ":0", Controller: ctrl})
	if err == nil {
		t.Fatalf("expected error when controller is typed nil")
	}
	if !strings.Contains(err.Error(), "mockController") {
		t.Fatalf("expected error to describe typed nil controller, got %v", err)
	}
}

func TestNewServerRequiresAddress(t *testing.T) {
	if _, err := NewServer(Config{Controller: &mockController{}}); err == nil {
		t.Fatalf("expected error without an address")
	}
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "0.0.0.0:80",
		"[::]:80":    "[::]:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
		"garbage":    "garbage",
	}

	for input, expected := range tests {
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddr(input); got != expected {
				t.Fatalf("normalizeAddr(%q)=%q, want %q", input, got, expected)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{
				GeneratedAt: time.Unix(123, 0),
				Running:     1,
				Processes: map[string]api.ProcessReport{
					"app": {Name: "app", Pid: 4242, Running: true},
				},
			}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store cache header")
	}
	var body api.StatusReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if body.Running != 1 || body.Processes["app"].Pid != 4242 {
		t.Fatalf("unexpected status body %+v", body)
	}
}

func TestHandleStatusError(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return nil, errors.New("boom")
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decodeError(t, rec.Body); body.Code != "internal_error" {
		t.Fatalf("expected internal_error code, got %q", body.Code)
	}
}

func TestHandleStatusMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, &mockController{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow header %q, got %q", http.MethodGet, allow)
	}
}

func TestHandleStop(t *testing.T) {
	ctrl := &mockController{
		stopFn: func(_ stdcontext.Context, name string) (*api.StopResult, error) {
			if name != "app" {
				t.Fatalf("unexpected process %q", name)
			}
			return &api.StopResult{Process: name, Exit: &api.ExitReport{Kind: "signaled", Signal: 15}}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stop/app", nil)
	rec := httptest.NewRecorder()
	server.handleStop(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]api.StopResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	result, ok := body["stop"]
	if !ok {
		t.Fatalf("expected stop field in response")
	}
	if result.Exit == nil || result.Exit.Signal != 15 {
		t.Fatalf("unexpected stop result %+v", result)
	}
}

func TestHandleStopErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
	}{
		{name: "emptyName", path: "/api/v1/stop/", status: http.StatusNotFound, code: "unknown_process"},
		{name: "nestedPath", path: "/api/v1/stop/a/b", status: http.StatusNotFound, code: "unknown_process"},
		{name: "unknown", path: "/api/v1/stop/ghost", err: fmt.Errorf("%w: ghost", api.ErrUnknownProcess), status: http.StatusNotFound, code: "unknown_process"},
		{name: "notRunning", path: "/api/v1/stop/app", err: fmt.Errorf("%w: app", api.ErrProcessNotRunning), status: http.StatusConflict, code: "process_not_running"},
		{name: "timeout", path: "/api/v1/stop/app", err: stdcontext.DeadlineExceeded, status: http.StatusGatewayTimeout, code: "stop_timeout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := &mockController{
				stopFn: func(stdcontext.Context, string) (*api.StopResult, error) {
					return nil, tc.err
				},
			}
			server := newTestServer(t, ctrl)

			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			rec := httptest.NewRecorder()
			server.handleStop(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			body := decodeError(t, rec.Body)
			if body.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, body.Code)
			}
			details, ok := body.Details.(map[string]any)
			if !ok {
				t.Fatalf("expected map details, got %T", body.Details)
			}
			if _, ok := details["process"]; !ok {
				t.Fatalf("expected process key in details")
			}
			if _, ok := details["timestamp"]; !ok {
				t.Fatalf("expected timestamp key in details")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, &mockController{})

	process := "http_metrics"
	metrics.SetProcessRunning(process, true)
	metrics.EmitBuildInfo()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", rec.Code)
	}
	body := rec.Body.String()
	expected := fmt.Sprintf("corral_process_running{process=\"%s\"} 1", process)
	if !strings.Contains(body, expected) {
		t.Fatalf("expected body to contain %q, got:\n%s", expected, body)
	}
	if !strings.Contains(body, "corral_build_info{") {
		t.Fatalf("expected metrics output to include build info, got:\n%s", body)
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{Processes: map[string]api.ProcessReport{}}, nil
		},
	}
	server, err := NewServer(Config{Controller: ctrl, Listener: listener})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	resp, err := http.Get("http://" + server.Addr() + "/api/v1/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
