package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/OutreachHub/internal/analytics"
	"github.com/Mutter0815/OutreachHub/internal/scheduler"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeScheduler struct {
	report scheduler.Report
	err    error
	panic  bool
	calls  int
}

func (f *fakeScheduler) ProcessCampaignsInWorkingHours(ctx context.Context) (scheduler.Report, error) {
	f.calls++
	if f.panic {
		panic("nil organization")
	}
	return f.report, f.err
}

type fakeAggregator struct {
	err error
}

func (f *fakeAggregator) AppointmentsByMonth(ctx context.Context) ([]analytics.MonthlyAppointments, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]analytics.MonthlyAppointments, 12)
	for i, m := range analytics.MonthLabels {
		out[i] = analytics.MonthlyAppointments{Month: m}
	}
	out[2].Appointments = 8
	return out, nil
}

func (f *fakeAggregator) ResponseRateByMonth(ctx context.Context) ([]analytics.MonthlyResponseRate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]analytics.MonthlyResponseRate, 12)
	for i, m := range analytics.MonthLabels {
		out[i] = analytics.MonthlyResponseRate{Month: m}
	}
	out[4].ResponseRate = 33.3
	return out, nil
}

type errTest string

func (e errTest) Error() string { return string(e) }

func newTestServer(s schedulerAPI, a aggregatorAPI) *http.Server {
	h := NewHandlers(s, a)
	h.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return NewHTTPServer(":0", h)
}

func do(srv *http.Server, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestProcessCampaigns_OK(t *testing.T) {
	fs := &fakeScheduler{report: scheduler.Report{RunID: "run-1", Total: 3, Eligible: 2, Skipped: 1, Dispatched: 1, Failed: 1}}
	srv := newTestServer(fs, &fakeAggregator{})

	for _, path := range []string{"/api/campaigns/process", "/api/campaigns/scheduler"} {
		rr := do(srv, http.MethodPost, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		var resp struct {
			Success   bool              `json:"success"`
			Message   string            `json:"message"`
			Timestamp string            `json:"timestamp"`
			Summary   scheduler.Summary `json:"summary"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.Success || resp.Message == "" {
			t.Fatalf("%s: unexpected body %s", path, rr.Body.String())
		}
		if resp.Timestamp != "2026-03-02T10:00:00.000Z" {
			t.Fatalf("%s: unexpected timestamp %q", path, resp.Timestamp)
		}
		if resp.Summary.Total != 3 || resp.Summary.Dispatched != 1 || resp.Summary.Failed != 1 || resp.Summary.RunID != "run-1" {
			t.Fatalf("%s: unexpected summary %+v", path, resp.Summary)
		}
	}
	if fs.calls != 2 {
		t.Fatalf("want 2 runs, got %d", fs.calls)
	}
}

func TestProcessCampaigns_LoadError(t *testing.T) {
	srv := newTestServer(&fakeScheduler{err: errTest("load active campaigns: boom")}, &fakeAggregator{})

	rr := do(srv, http.MethodPost, "/api/campaigns/process")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["success"] != false || resp["error"] != "load active campaigns: boom" || resp["timestamp"] == nil {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestProcessCampaigns_PanicIsStructured(t *testing.T) {
	srv := newTestServer(&fakeScheduler{panic: true}, &fakeAggregator{})

	rr := do(srv, http.MethodPost, "/api/campaigns/scheduler")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"success":false`) || !strings.Contains(rr.Body.String(), "nil organization") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestStatusEndpoints(t *testing.T) {
	fs := &fakeScheduler{}
	srv := newTestServer(fs, &fakeAggregator{})

	for _, path := range []string{"/api/campaigns/process", "/api/campaigns/scheduler"} {
		rr := do(srv, http.MethodGet, path)
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "active") {
			t.Fatalf("%s: status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
	if fs.calls != 0 {
		t.Fatal("status endpoints must not run the scheduler")
	}
}

func TestMetricsEndpoints_OK(t *testing.T) {
	srv := newTestServer(&fakeScheduler{}, &fakeAggregator{})

	rr := do(srv, http.MethodGet, "/api/metrics/appointments-by-month")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var appts []analytics.MonthlyAppointments
	if err := json.Unmarshal(rr.Body.Bytes(), &appts); err != nil {
		t.Fatal(err)
	}
	if len(appts) != 12 || appts[0].Month != "Jan" || appts[2].Appointments != 8 {
		t.Fatalf("unexpected series %+v", appts)
	}

	rr = do(srv, http.MethodGet, "/api/metrics/response-rate-by-month")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"responseRate":33.3`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestMetricsEndpoints_ErrorReturnsEmptyArray(t *testing.T) {
	srv := newTestServer(&fakeScheduler{}, &fakeAggregator{err: errTest("upstream 503")})

	for _, path := range []string{"/api/metrics/appointments-by-month", "/api/metrics/response-rate-by-month"} {
		rr := do(srv, http.MethodGet, path)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, rr.Code)
		}
		if strings.TrimSpace(rr.Body.String()) != "[]" {
			t.Fatalf("%s: want [], got %s", path, rr.Body.String())
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(&fakeScheduler{}, &fakeAggregator{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("request id not echoed: %q", rr.Header().Get("X-Request-ID"))
	}

	rr = do(srv, http.MethodGet, "/healthz")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id not generated")
	}
}

func TestDocsEndpoints(t *testing.T) {
	srv := newTestServer(&fakeScheduler{}, &fakeAggregator{})

	t.Run("html", func(t *testing.T) {
		rr := do(srv, http.MethodGet, "/docs")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "SwaggerUIBundle") {
			t.Fatalf("swagger bundle not rendered: %s", rr.Body.String())
		}
	})

	t.Run("openapi", func(t *testing.T) {
		rr := do(srv, http.MethodGet, "/docs/dashboard-api/openapi.yaml")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "yaml") {
			t.Fatalf("unexpected content type: %s", ct)
		}
		if !strings.Contains(rr.Body.String(), "openapi: 3.0.3") {
			t.Fatalf("unexpected body: %s", rr.Body.String())
		}
	})
}

func TestPrometheusEndpoint(t *testing.T) {
	srv := newTestServer(&fakeScheduler{}, &fakeAggregator{})
	_ = do(srv, http.MethodGet, "/healthz")

	rr := do(srv, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "api_http_requests_total") {
		t.Fatalf("unexpected metrics output: %d", rr.Code)
	}
}
