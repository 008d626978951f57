package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/hookbridge/internal/dispatch"
	"github.com/vietddude/hookbridge/internal/infra/storage"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

// WebhookHandler processes one raw webhook body into an acknowledgement.
type WebhookHandler interface {
	Dispatch(ctx context.Context, clientID string, body []byte) *dispatch.Ack
}

// Server provides the HTTP surface: webhook ingest, health endpoints,
// Prometheus metrics, and admin operations.
type Server struct {
	monitor    *Monitor
	dispatcher WebhookHandler
	breakers   *breaker.Registry
	deliveries storage.DeliveryRepository // optional
	server     *http.Server
}

// NewServer creates the HTTP server. deliveries may be nil when no
// history store is configured.
func NewServer(
	monitor *Monitor,
	dispatcher WebhookHandler,
	breakers *breaker.Registry,
	deliveries storage.DeliveryRepository,
	port int,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:    monitor,
		dispatcher: dispatcher,
		breakers:   breakers,
		deliveries: deliveries,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	mux.HandleFunc("POST /webhook/jira", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.HandleFunc("POST /admin/breakers/reset", s.handleBreakerReset)
	mux.HandleFunc("GET /admin/deliveries", s.handleDeliveries)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}

	ack := s.dispatcher.Dispatch(r.Context(), clientIdentity(r), body)

	code := http.StatusOK
	switch ack.Status {
	case dispatch.AckRejected:
		code = http.StatusBadRequest
	case dispatch.AckRateLimited:
		code = http.StatusTooManyRequests
	}
	writeJSON(w, code, ack)
}

// clientIdentity resolves the rate-limit identity for a request. Senders
// without an X-Client-ID header are identified by remote host only; the
// ephemeral port would make every connection a fresh identity and defeat
// the sliding window.
func clientIdentity(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	dep := r.URL.Query().Get("dependency")
	if dep == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dependency is required"})
		return
	}
	if err := s.breakers.Reset(breaker.Dependency(dep)); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "dependency": dep})
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery history not configured"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.deliveries.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
