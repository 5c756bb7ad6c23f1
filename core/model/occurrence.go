package model

import "time"

// OccurrenceStatus tracks an occurrence through its lifecycle.
type OccurrenceStatus int

const (
	StatusPlanned OccurrenceStatus = iota
	StatusScheduled
	StatusInProgress
	StatusCompleted
	StatusMissed
	StatusCancelled
)

// String returns a human-readable representation of the status.
func (s OccurrenceStatus) String() string {
	switch s {
	case StatusPlanned:
		return "PLANNED"
	case StatusScheduled:
		return "SCHEDULED"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusCompleted:
		return "COMPLETED"
	case StatusMissed:
		return "MISSED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are permitted.
func (s OccurrenceStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusMissed || s == StatusCancelled
}

// Occurrence is one concrete pickup instance generated from a service's
// recurrence rule. It references its service and assigned resources but owns
// neither; durable storage belongs to the persistence collaborator.
//
// At most one occurrence exists per (ServiceID, Date).
type Occurrence struct {
	ID         string
	ServiceID  string
	CustomerID string
	CategoryID string
	Date       time.Time // midnight UTC, see DateOf
	Status     OccurrenceStatus

	// Assignment, set when the dispatcher schedules the occurrence.
	VehicleID           string
	OperatorID          string
	VehicleReservation  string
	OperatorReservation string

	// Collection window on the target date.
	WindowStart time.Time
	WindowEnd   time.Time

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Assigned reports whether both resources have been reserved.
func (o Occurrence) Assigned() bool {
	return o.VehicleID != "" && o.OperatorID != ""
}
