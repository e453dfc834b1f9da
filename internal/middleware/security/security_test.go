package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInspect(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name   string
		method string
		target string
		agent  string
		xff    string
		want   Reason
	}{
		{"dashboard", http.MethodGet, "/?year=2024&month=3", "Mozilla/5.0", "", ReasonNone},
		{"search query", http.MethodGet, "/transactions?search=coffee", "Mozilla/5.0", "", ReasonNone},
		{"dotenv probe", http.MethodGet, "/.env", "", "", ReasonPathPattern},
		{"traversal in query", http.MethodGet, "/static/app.css?f=../../etc/passwd", "", "", ReasonQueryPattern},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "", ReasonScannerAgent},
		{"trace method", "TRACE", "/", "", "", ReasonMethod},
		{"long url", http.MethodGet, "/" + strings.Repeat("a", 2100), "", "", ReasonLongURL},
		{"many hops", http.MethodGet, "/", "", "1.1.1.1,2.2.2.2,3.3.3.3,4.4.4.4,5.5.5.5,6.6.6.6,7.7.7.7", ReasonForwardedHops},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.agent != "" {
				req.Header.Set("User-Agent", tt.agent)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.Inspect(req); got != tt.want {
				t.Fatalf("Inspect = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector(nil)
	reached := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil))
	if rec.Code != http.StatusNotFound || reached {
		t.Fatalf("probe: status = %d reached = %v", rec.Code, reached)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "nikto")
	h.ServeHTTP(rec, req)
	if !reached {
		t.Fatal("scanner agents are logged but still served")
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatal(err)
	}
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores headers", "198.51.100.7:5555", "1.2.3.4", "", "198.51.100.7"},
		{"trusted proxy forwards", "10.1.2.3:80", "1.2.3.4, 10.1.2.3", "", "1.2.3.4"},
		{"added proxy network", "203.0.113.9:80", "5.6.7.8", "", "5.6.7.8"},
		{"x-real-ip fallback", "127.0.0.1:80", "garbage", "9.9.9.9", "9.9.9.9"},
		{"no headers", "192.168.1.10:1234", "", "", "192.168.1.10"},
		{"spoofed leftmost hop ignored", "10.0.0.1:80", "6.6.6.6, 198.51.100.20", "", "198.51.100.20"},
		{"multi hop chain through proxies", "10.0.0.1:80", "6.6.6.6, 7.7.7.7, 198.51.100.20, 10.0.0.5, 203.0.113.4", "", "198.51.100.20"},
		{"only trusted hops", "10.0.0.1:80", "192.168.0.9, 10.0.0.5", "", "192.168.0.9"},
		{"garbage hop stops the walk", "10.0.0.1:80", "6.6.6.6, bogus, 10.0.0.5", "", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Fatalf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "form-action 'self'") {
		t.Fatalf("CSP = %q", csp)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent over plain HTTP")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}
}
