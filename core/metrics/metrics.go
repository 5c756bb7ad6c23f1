// Package metrics defines the observability contract of the scheduling
// core. Sinks live under infra/metrics.
package metrics

import "time"

// DispatchOutcome records one candidate's fate during a pass.
type DispatchOutcome struct {
	OccurrenceID string
	ServiceID    string
	VehicleID    string
	OperatorID   string
	Date         time.Time
	Status       string // SCHEDULED, DEFERRED or FAILED
	Reason       string // deferral reason or error text
}

// PassStats summarizes one orchestrator pass.
type PassStats struct {
	Scheduled       int
	Deferred        int
	Failed          int
	Missed          int
	Billed          int
	Held            int
	Duration        time.Duration
	MeanVehicleLoad float64
	LoadStdDev      float64
}

// Sink records scheduling observability data.
type Sink interface {
	RecordDispatchOutcomes(outcomes []DispatchOutcome) error
	RecordPassStats(stats PassStats) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordDispatchOutcomes([]DispatchOutcome) error { return nil }
func (NopSink) RecordPassStats(PassStats) error                { return nil }

// Config selects and configures the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = ":9090"
	}
}
