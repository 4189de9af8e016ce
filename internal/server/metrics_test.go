package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_Metrics_EndpointServesRegistry(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "pdfchat_index_active") {
		t.Error("pdfchat_index_active missing from /metrics output")
	}
}

func Test_Metrics_ChatOutcomes(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)
	cookie := withIndex(s, newFakeIndex("idx", &fakeStore{}))

	s.Handler().ServeHTTP(httptest.NewRecorder(), chatRequestFor(`{"question":"q"}`, "", cookie))
	s.Handler().ServeHTTP(httptest.NewRecorder(), chatRequestFor(`{"question":"q"}`, "k", cookie))
	s.Handler().ServeHTTP(httptest.NewRecorder(), chatRequestFor(`{"question":"q"}`, "k", nil))

	checks := map[string]float64{"no_key": 1, "ok": 1, "not_ready": 1}
	for outcome, want := range checks {
		got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues(outcome))
		if got != want {
			t.Errorf("pdfchat_chat_requests_total{outcome=%q} = %v, want %v", outcome, got, want)
		}
	}

	if n := testutil.CollectAndCount(s.metrics.chatDurationSeconds); n != 3 {
		t.Errorf("duration series = %d, want 3", n)
	}
}

func Test_Metrics_HTTPRequestsUseRoutePattern(t *testing.T) {
	t.Parallel()
	s, d := newTestServer(t)

	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/abc/history", nil))
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues(
		http.MethodGet, "GET /api/sessions/{id}/history", "200"))
	if got != 1 {
		t.Errorf("pattern-labelled counter = %v, want 1", got)
	}
	if testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")) != 1 {
		t.Error("unmatched request not counted")
	}

	mfs, err := d.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "pdfchat_http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("pdfchat_http_requests_total not registered")
	}
}

func Test_Metrics_IsolatedRegistries(t *testing.T) {
	t.Parallel()

	// Two servers on separate registries must not collide on registration.
	for range 2 {
		reg := prometheus.NewRegistry()
		_ = newServerMetrics(reg)
	}
}
