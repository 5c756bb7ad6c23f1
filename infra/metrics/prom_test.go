package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/wastemaster/wastemaster/core/metrics"
)

func TestPromSink_RecordDispatchOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	outcomes := []coremetrics.DispatchOutcome{
		{ServiceID: "svc-1", Status: "SCHEDULED"},
		{ServiceID: "svc-2", Status: "DEFERRED", Reason: "NoAvailableResource"},
		{ServiceID: "svc-3", Status: "DEFERRED", Reason: "NoAvailableResource"},
	}
	if err := sink.RecordDispatchOutcomes(outcomes); err != nil {
		t.Fatalf("record: %v", err)
	}
	ps := sink.(*PromSink)
	if got := testutil.ToFloat64(ps.outcomes.WithLabelValues("SCHEDULED", "")); got != 1 {
		t.Fatalf("scheduled counter = %v", got)
	}
	if got := testutil.ToFloat64(ps.outcomes.WithLabelValues("DEFERRED", "NoAvailableResource")); got != 2 {
		t.Fatalf("deferred counter = %v", got)
	}
}

func TestPromSink_RecordPassStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	stats := coremetrics.PassStats{Duration: time.Second, MeanVehicleLoad: 2.5, LoadStdDev: 0.5}
	if err := sink.RecordPassStats(stats); err != nil {
		t.Fatalf("record: %v", err)
	}
	ps := sink.(*PromSink)
	if got := testutil.ToFloat64(ps.load); got != 2.5 {
		t.Fatalf("load gauge = %v", got)
	}
	if got := testutil.ToFloat64(ps.loadDev); got != 0.5 {
		t.Fatalf("stddev gauge = %v", got)
	}
}

func TestPromSink_ReRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration: %v", err)
	}
}
