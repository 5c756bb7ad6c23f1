package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/wastemaster/wastemaster/core/metrics"
)

// PromSink records scheduling outcomes in Prometheus metrics.
type PromSink struct {
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
	load     prometheus.Gauge
	loadDev  prometheus.Gauge
}

// NewPromSink registers scheduling metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_outcomes_total",
		Help: "Total number of dispatch outcomes by status and reason",
	}, []string{"status", "reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_pass_duration_seconds",
		Help:    "Wall time of a full scheduling pass",
		Buckets: prometheus.DefBuckets,
	})
	load := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_mean_vehicle_load",
		Help: "Mean committed load per vehicle over the pass horizon",
	})
	loadDev := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_vehicle_load_stddev",
		Help: "Standard deviation of committed load per vehicle over the pass horizon",
	})

	if err := reg.Register(outcomes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			outcomes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(load); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			load = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(loadDev); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			loadDev = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{outcomes: outcomes, duration: duration, load: load, loadDev: loadDev}, nil
}

// RecordDispatchOutcomes increments the counter for each outcome.
func (s *PromSink) RecordDispatchOutcomes(outcomes []coremetrics.DispatchOutcome) error {
	for _, o := range outcomes {
		s.outcomes.WithLabelValues(o.Status, o.Reason).Inc()
	}
	return nil
}

// RecordPassStats records the summary gauges and the pass duration.
func (s *PromSink) RecordPassStats(stats coremetrics.PassStats) error {
	s.duration.Observe(stats.Duration.Seconds())
	s.load.Set(stats.MeanVehicleLoad)
	s.loadDev.Set(stats.LoadStdDev)
	return nil
}
