package logging

import (
	"context"
	"time"
)

// Assignment captures one scheduled occurrence within a pass.
type Assignment struct {
	OccurrenceID string    `json:"occurrence_id"`
	ServiceID    string    `json:"service_id"`
	Date         time.Time `json:"date"`
	VehicleID    string    `json:"vehicle_id"`
	OperatorID   string    `json:"operator_id"`
}

// Deferral captures one occurrence the pass could not place.
type Deferral struct {
	ServiceID string    `json:"service_id"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}

// PassRecord captures one orchestrator pass and its outcomes.
type PassRecord struct {
	Timestamp   time.Time         `json:"timestamp"`
	WindowStart time.Time         `json:"window_start"`
	WindowEnd   time.Time         `json:"window_end"`
	Assignments []Assignment      `json:"assignments"`
	Deferrals   []Deferral        `json:"deferrals"`
	Errors      map[string]string `json:"errors"`
	Missed      int               `json:"missed"`
	Billed      int               `json:"billed"`
	Held        int               `json:"held"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	ServiceID string
	VehicleID string
}

// LogStore persists PassRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec PassRecord) error
	Query(ctx context.Context, q LogQuery) ([]PassRecord, error)
	Close() error
}

func (r PassRecord) matches(q LogQuery) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.ServiceID != "" && !r.hasService(q.ServiceID) {
		return false
	}
	if q.VehicleID != "" && !r.hasVehicle(q.VehicleID) {
		return false
	}
	return true
}

func (r PassRecord) hasService(id string) bool {
	for _, a := range r.Assignments {
		if a.ServiceID == id {
			return true
		}
	}
	for _, d := range r.Deferrals {
		if d.ServiceID == id {
			return true
		}
	}
	_, ok := r.Errors[id]
	return ok
}

func (r PassRecord) hasVehicle(id string) bool {
	for _, a := range r.Assignments {
		if a.VehicleID == id {
			return true
		}
	}
	return false
}
