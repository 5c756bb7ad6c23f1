package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	coremetrics "github.com/wastemaster/wastemaster/core/metrics"
)

func TestInfluxSink_RecordDispatchOutcomes(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	out := coremetrics.DispatchOutcome{
		OccurrenceID: "occ-1",
		ServiceID:    "svc-1",
		VehicleID:    "veh-1",
		OperatorID:   "op-1",
		Date:         time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Status:       "SCHEDULED",
	}
	if err := sink.RecordDispatchOutcomes([]coremetrics.DispatchOutcome{out}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	for _, want := range []string{"dispatch_outcome", "service_id=svc-1", "status=SCHEDULED", "date=2024-01-08"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

func TestInfluxSink_RecordPassStats(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	stats := coremetrics.PassStats{Scheduled: 3, Deferred: 1, Duration: 250 * time.Millisecond}
	if err := sink.RecordPassStats(stats); err != nil {
		t.Fatalf("record error: %v", err)
	}
	for _, want := range []string{"scheduling_pass", "scheduled=3i", "deferred=1i", "duration_ms=250i"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
