package orchestrator

import (
	"fmt"
	"time"

	"github.com/wastemaster/wastemaster/core/dispatch"
	"github.com/wastemaster/wastemaster/core/metrics"
	"github.com/wastemaster/wastemaster/core/model"
)

// PassSummary aggregates the outcome of one scheduling pass.
type PassSummary struct {
	Scheduled []model.Occurrence
	Deferrals []dispatch.Deferral
	// Errors maps service id to the failure that excluded it from this
	// pass. Store-level failures abort the pass instead and are returned
	// from RunPass directly.
	Errors map[string]string
	Missed int
	Billed int
	Held   int

	// Fleet utilization over the pass horizon.
	MeanVehicleLoad float64
	LoadStdDev      float64

	Duration time.Duration
}

func (s PassSummary) String() string {
	return fmt.Sprintf("pass: %d scheduled, %d deferred, %d failed, %d missed, %d billed, %d held in %s (mean load %.2f, stddev %.2f)",
		len(s.Scheduled), len(s.Deferrals), len(s.Errors), s.Missed, s.Billed, s.Held,
		s.Duration.Round(time.Millisecond), s.MeanVehicleLoad, s.LoadStdDev)
}

// Stats converts the summary into the metrics sink representation.
func (s PassSummary) Stats() metrics.PassStats {
	return metrics.PassStats{
		Scheduled:       len(s.Scheduled),
		Deferred:        len(s.Deferrals),
		Failed:          len(s.Errors),
		Missed:          s.Missed,
		Billed:          s.Billed,
		Held:            s.Held,
		Duration:        s.Duration,
		MeanVehicleLoad: s.MeanVehicleLoad,
		LoadStdDev:      s.LoadStdDev,
	}
}

func (s PassSummary) outcomes() []metrics.DispatchOutcome {
	out := make([]metrics.DispatchOutcome, 0, len(s.Scheduled)+len(s.Deferrals)+len(s.Errors))
	for _, occ := range s.Scheduled {
		out = append(out, metrics.DispatchOutcome{
			OccurrenceID: occ.ID,
			ServiceID:    occ.ServiceID,
			VehicleID:    occ.VehicleID,
			OperatorID:   occ.OperatorID,
			Date:         occ.Date,
			Status:       model.StatusScheduled.String(),
		})
	}
	for _, d := range s.Deferrals {
		out = append(out, metrics.DispatchOutcome{
			ServiceID: d.Candidate.Service.ID,
			Date:      d.Candidate.Occurrence.Date,
			Status:    "DEFERRED",
			Reason:    string(d.Reason),
		})
	}
	for id, reason := range s.Errors {
		out = append(out, metrics.DispatchOutcome{
			ServiceID: id,
			Status:    "FAILED",
			Reason:    reason,
		})
	}
	return out
}
