package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vietddude/hookbridge/internal/dispatch"
	"github.com/vietddude/hookbridge/internal/queue"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/errstats"
)

type fakeQueueStatus struct {
	status queue.Status
}

func (f *fakeQueueStatus) Status() queue.Status { return f.status }

type fakeDispatcher struct {
	ack     *dispatch.Ack
	clients []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, clientID string, body []byte) *dispatch.Ack {
	f.clients = append(f.clients, clientID)
	return f.ack
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   SystemStatus
	}{
		{
			name:   "all quiet",
			report: Report{},
			want:   StatusHealthy,
		},
		{
			name: "open breaker is critical",
			report: Report{
				Breakers: []breaker.Status{{State: breaker.StateOpen}},
			},
			want: StatusCritical,
		},
		{
			name: "half-open breaker is degraded",
			report: Report{
				Breakers: []breaker.Status{{State: breaker.StateHalfOpen}, {State: breaker.StateClosed}},
			},
			want: StatusDegraded,
		},
		{
			name: "queued work is degraded",
			report: Report{
				Queue: queue.Status{Enabled: true, Size: 3, MaxSize: 100},
			},
			want: StatusDegraded,
		},
		{
			name: "full queue is critical",
			report: Report{
				Queue: queue.Status{Enabled: true, Size: 100, MaxSize: 100},
			},
			want: StatusCritical,
		},
		{
			name: "disabled queue ignored",
			report: Report{
				Queue: queue.Status{Enabled: false, Size: 100, MaxSize: 100},
			},
			want: StatusHealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluate(tt.report); got != tt.want {
				t.Errorf("evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMonitorReport(t *testing.T) {
	breakers := breaker.NewRegistry(breaker.DefaultConfig)
	breakers.Get(breaker.DepSlackAPI)
	breakers.Get(breaker.DepDatabase)
	q := &fakeQueueStatus{status: queue.Status{Enabled: true, Size: 1, MaxSize: 10}}

	m := NewMonitor(breakers, q, errstats.NewCollector())
	report := m.CheckHealth(context.Background())

	if report.SystemStatus != StatusDegraded {
		t.Errorf("status %s, want degraded", report.SystemStatus)
	}
	if len(report.Breakers) != 2 {
		t.Fatalf("breakers %d, want 2", len(report.Breakers))
	}
	// Sorted by dependency name.
	if report.Breakers[0].Dependency != breaker.DepDatabase {
		t.Errorf("first breaker %s", report.Breakers[0].Dependency)
	}
}

func newTestServer(d WebhookHandler) *Server {
	breakers := breaker.NewRegistry(breaker.DefaultConfig)
	breakers.Get(breaker.DepSlackAPI)
	m := NewMonitor(breakers, nil, errstats.NewCollector())
	return NewServer(m, d, breakers, nil, 0)
}

func TestServerWebhookStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		ack  *dispatch.Ack
		want int
	}{
		{"accepted", &dispatch.Ack{Status: dispatch.AckAccepted}, http.StatusOK},
		{"degraded still ok", &dispatch.Ack{Status: dispatch.AckDegraded}, http.StatusOK},
		{"rejected", &dispatch.Ack{Status: dispatch.AckRejected}, http.StatusBadRequest},
		{"rate limited", &dispatch.Ack{Status: dispatch.AckRateLimited}, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeDispatcher{ack: tt.ack})
			req := httptest.NewRequest(http.MethodPost, "/webhook/jira", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("code %d, want %d", rec.Code, tt.want)
			}
			var ack dispatch.Ack
			if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
				t.Fatalf("body not an ack: %v", err)
			}
			if ack.Status != tt.ack.Status {
				t.Errorf("ack status %s, want %s", ack.Status, tt.ack.Status)
			}
		})
	}
}

func TestServerClientIdentity(t *testing.T) {
	fd := &fakeDispatcher{ack: &dispatch.Ack{Status: dispatch.AckAccepted}}
	srv := newTestServer(fd)

	// Same sender across two connections: the ephemeral port must not
	// split the rate-limit identity.
	for _, addr := range []string{"203.0.113.7:50001", "203.0.113.7:50002"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook/jira", strings.NewReader(`{}`))
		req.RemoteAddr = addr
		srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook/jira", strings.NewReader(`{}`))
	req.RemoteAddr = "203.0.113.7:50003"
	req.Header.Set("X-Client-ID", "jira-prod")
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	want := []string{"203.0.113.7", "203.0.113.7", "jira-prod"}
	if len(fd.clients) != len(want) {
		t.Fatalf("dispatched %d times, want %d", len(fd.clients), len(want))
	}
	for i, id := range want {
		if fd.clients[i] != id {
			t.Errorf("client[%d] = %q, want %q", i, fd.clients[i], id)
		}
	}
}

func TestServerHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeDispatcher{ack: &dispatch.Ack{Status: dispatch.AckAccepted}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != string(StatusHealthy) {
		t.Errorf("status %q", body["status"])
	}
}

func TestServerBreakerReset(t *testing.T) {
	srv := newTestServer(&fakeDispatcher{})

	req := httptest.NewRequest(http.MethodPost, "/admin/breakers/reset?dependency=slack_api", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("reset known breaker: code %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/breakers/reset?dependency=nonexistent", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("reset unknown breaker: code %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/breakers/reset", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reset without dependency: code %d", rec.Code)
	}
}
