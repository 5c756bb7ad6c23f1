package metrics

import coremetrics "github.com/wastemaster/wastemaster/core/metrics"

// MultiSink fanouts scheduling records to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatchOutcomes forwards the outcomes to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordDispatchOutcomes(outcomes []coremetrics.DispatchOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatchOutcomes(outcomes); err != nil {
			return err
		}
	}
	return nil
}

// RecordPassStats forwards the pass summary to all sinks.
func (m *MultiSink) RecordPassStats(stats coremetrics.PassStats) error {
	for _, s := range m.Sinks {
		if err := s.RecordPassStats(stats); err != nil {
			return err
		}
	}
	return nil
}
