package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.started).Round(time.Second).String(),
	})
}

// handleReady pings every configured dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{"templates": "ok"}

	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	checks["workspaces"] = map[string]any{"entries": s.workspaces.Size(), "status": "ok"}
	checks["rate_limiter"] = map[string]any{"active_clients": s.loginLimiter.ActiveClients(), "status": "ok"}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	sm := s.detector.GetMetrics()
	rm := s.loginLimiter.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, typ, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, typ, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", tm.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("http_response_time_avg_ms", "gauge", "Average response time in milliseconds", tm.AverageResponseTime.Milliseconds())
	metric("transactions_created_total", "counter", "Transactions created through the front end", s.appMetrics.created.Load())
	metric("transactions_updated_total", "counter", "Transactions updated through the front end", s.appMetrics.updated.Load())
	metric("transactions_deleted_total", "counter", "Transactions deleted through the front end", s.appMetrics.deleted.Load())
	metric("logins_total", "counter", "Successful logins", s.appMetrics.logins.Load())
	metric("login_failures_total", "counter", "Rejected logins", s.appMetrics.failedLogins.Load())
	metric("workspaces_active", "gauge", "Sessions holding view state", s.workspaces.Size())
	metric("rate_limit_hits_total", "counter", "Requests rejected by the login rate limiter", rm.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Clients tracked by the login rate limiter", rm.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", sm.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Suspicious requests rejected", sm.BlockedRequests)
	if s.counter != nil {
		if n, err := s.counter.Count(r.Context()); err == nil {
			metric("sessions_stored", "gauge", "Sessions persisted in the session store", n)
		}
	}
	metric("uptime_seconds", "gauge", "Process uptime in seconds", int64(time.Since(s.appMetrics.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
