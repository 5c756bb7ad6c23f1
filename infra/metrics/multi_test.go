package metrics

import (
	"testing"

	coremetrics "github.com/wastemaster/wastemaster/core/metrics"
)

type recordSink struct {
	count int
}

func (r *recordSink) RecordDispatchOutcomes([]coremetrics.DispatchOutcome) error {
	r.count++
	return nil
}

func (r *recordSink) RecordPassStats(coremetrics.PassStats) error {
	r.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordDispatchOutcomes(nil); err != nil {
		t.Fatalf("record outcomes: %v", err)
	}
	if err := m.RecordPassStats(coremetrics.PassStats{}); err != nil {
		t.Fatalf("record stats: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("records not forwarded")
	}
}
