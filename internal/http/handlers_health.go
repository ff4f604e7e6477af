package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	applog "academy/internal/log"
)

const readyTimeout = 2 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the store answers. Backups and rate
// limiter state are reported but never fail the check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	dbCheck := map[string]any{"status": "ok"}
	if err := s.Store.Ping(ctx); err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
		dbCheck["status"] = "error"
		s.logger.WarnContext(ctx, "Readiness check failed", "check", "database", applog.FieldError, err)
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks": map[string]any{
			"database": dbCheck,
			"backups":  map[string]any{"enabled": s.Backups.Enabled()},
			"rate_limiter": map[string]any{
				"active_clients": s.rateLimiter.GetMetrics().ClientCount,
			},
		},
	})
}

// handleMetrics writes request and security counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	sec := s.securityDetector.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	tr := s.traceMiddleware.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tr.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tr.ServerErrors)
	metric("http_last_response_microseconds", "gauge", "Duration of the most recent request", tr.LastResponseMicro)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rl.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rl.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", sec.SuspiciousRequests)
	metric("invalid_forwarded_ip_total", "counter", "Forwarded client addresses that failed to parse", sec.InvalidIPAttempts)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(s.now().Sub(s.started).Seconds()))
}
