package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakePinger reports err from every probe.
type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	s, _ := newTestServer(t)
	s.pingers = pingers
	return s
}

func getReady(t *testing.T, s *Server) (int, readyResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w.Code, resp
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	tests := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantFail  []string
	}{
		{name: "no pingers", wantCode: http.StatusOK, wantReady: true},
		{
			name:      "all healthy",
			pingers:   []Pinger{&fakePinger{name: "sessions"}, &fakePinger{name: "qdrant"}},
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		{
			name:     "qdrant down",
			pingers:  []Pinger{&fakePinger{name: "sessions"}, &fakePinger{name: "qdrant", err: down}},
			wantCode: http.StatusServiceUnavailable,
			wantFail: []string{"qdrant"},
		},
		{
			name:     "all down",
			pingers:  []Pinger{&fakePinger{name: "sessions", err: down}, &fakePinger{name: "qdrant", err: down}},
			wantCode: http.StatusServiceUnavailable,
			wantFail: []string{"sessions", "qdrant"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			code, resp := getReady(t, newReadyTestServer(t, tc.pingers...))
			if code != tc.wantCode {
				t.Errorf("status = %d, want %d", code, tc.wantCode)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.pingers) {
				t.Fatalf("got %d checks, want %d", len(resp.Checks), len(tc.pingers))
			}

			var failed []string
			for _, c := range resp.Checks {
				if !c.OK {
					failed = append(failed, c.Name)
					if c.Error != down.Error() {
						t.Errorf("check %s error = %q", c.Name, c.Error)
					}
				}
			}
			if len(failed) != len(tc.wantFail) {
				t.Fatalf("failed checks = %v, want %v", failed, tc.wantFail)
			}
			for i := range failed {
				if failed[i] != tc.wantFail[i] {
					t.Errorf("failed checks = %v, want %v", failed, tc.wantFail)
				}
			}
		})
	}
}

func TestHandleReady_ReportsIndexes(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t)
	withIndex(s, newFakeIndex("idx-1", nil))

	code, resp := getReady(t, s)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Indexes != 1 {
		t.Errorf("indexes = %d, want 1", resp.Indexes)
	}
}

func TestStorePinger(t *testing.T) {
	t.Parallel()

	_, d := newTestServer(t)
	p := NewStorePinger(d.sessions)
	if p.Name() != "sessions" {
		t.Errorf("Name() = %q", p.Name())
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
