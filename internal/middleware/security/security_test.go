package security

import (
	"bytes"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "academy/internal/log"
)

func TestExtractClientIP(t *testing.T) {
	d, err := NewDetector([]string{"10.0.0.0/8", "203.0.113.7"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct peer", "198.51.100.1:5555", "", "", "198.51.100.1"},
		{"untrusted peer ignores xff", "198.51.100.1:5555", "1.2.3.4", "", "198.51.100.1"},
		{"trusted cidr uses first xff", "10.1.2.3:80", "1.2.3.4, 10.1.2.3", "", "1.2.3.4"},
		{"trusted single ip", "203.0.113.7:80", "5.6.7.8", "", "5.6.7.8"},
		{"invalid xff falls back to real ip", "10.1.2.3:80", "garbage", "9.9.9.9", "9.9.9.9"},
		{"no headers", "10.1.2.3:80", "", "", "10.1.2.3"},
		{"remote without port", "198.51.100.2", "", "", "198.51.100.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
	if d.GetMetrics().InvalidIPAttempts != 1 {
		t.Errorf("expected one invalid forwarded address, got %+v", d.GetMetrics())
	}
}

func TestNewDetectorRejectsBadProxy(t *testing.T) {
	if _, err := NewDetector([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected error for invalid proxy")
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d, _ := NewDetector(nil)
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"dashboard", http.MethodGet, "/dashboard?month=March&year=2026", "Mozilla/5.0", false},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"traversal in query", http.MethodGet, "/backups/download?f=../etc/passwd", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.DetectSuspiciousRequest(r); got != tt.want {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddlewareLogsButServes(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(&buf, nil)})
	d, _ := NewDetector(nil)

	h := d.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "Suspicious request") {
		t.Fatalf("expected warning, got %q", buf.String())
	}
}

func TestHeadersMiddleware(t *testing.T) {
	cfg := DefaultHeadersConfig()
	cfg.TrustForwardedProto = true
	h := NewHeadersMiddleware(cfg).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "script-src 'self'") {
		t.Errorf("unexpected CSP %q", rec.Header().Get("Content-Security-Policy"))
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(rec, r)
	if !strings.HasPrefix(rec.Header().Get("Strict-Transport-Security"), "max-age=31536000") {
		t.Errorf("expected HSTS behind TLS proxy, got %q", rec.Header().Get("Strict-Transport-Security"))
	}

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.NotFoundHandler()).ServeHTTP(rec, r)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS on direct TLS")
	}
}
