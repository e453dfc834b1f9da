package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"moneybook/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
	reg := prometheus.NewRegistry()
	m := NewMiddleware(logger, func(*http.Request) string { return "1.2.3.4" }, reg)

	var seen string
	var ctxLogger *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header = %q, want %q", rec.Header().Get(RequestIDHeader), seen)
	}
	if ctxLogger == nil || ctxLogger.Logger == slog.Default() {
		t.Fatal("request logger not stored in context")
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"`+seen+`"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("log output missing request id or level:\n%s", out)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "moneybook_http_requests_total" {
			for _, metric := range f.GetMetric() {
				for _, l := range metric.GetLabel() {
					if l.GetName() == "code" && l.GetValue() == "404" {
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Fatal("request counter not recorded with code 404")
	}
}

func TestMiddlewareKeepsValidUpstreamID(t *testing.T) {
	m := NewMiddleware(nil, nil, nil)
	tests := []struct {
		in       string
		wantKeep bool
	}{
		{"abc12345-proxy", true},
		{"short", false},
		{"bad id with spaces", false},
	}
	for _, tt := range tests {
		var seen string
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, tt.in)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if (seen == tt.in) != tt.wantKeep {
			t.Errorf("header %q: got id %q, keep = %v", tt.in, seen, tt.wantKeep)
		}
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
