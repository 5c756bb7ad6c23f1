// Package lifecycle drives occurrences through their state machine:
//
//	PLANNED -> SCHEDULED -> IN_PROGRESS -> COMPLETED | MISSED | CANCELLED
//
// COMPLETED, MISSED and CANCELLED are terminal; any transition attempted
// from a terminal state fails with InvalidTransitionError.
package lifecycle

import (
	"fmt"

	"github.com/wastemaster/wastemaster/core/model"
)

// InvalidTransitionError reports a transition the state machine forbids. It
// is a programming or ordering error, fatal to that single attempt only.
type InvalidTransitionError struct {
	OccurrenceID string
	From         model.OccurrenceStatus
	To           model.OccurrenceStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: occurrence %s: invalid transition %s -> %s",
		e.OccurrenceID, e.From, e.To)
}

var allowed = map[model.OccurrenceStatus][]model.OccurrenceStatus{
	model.StatusPlanned:    {model.StatusScheduled, model.StatusCancelled},
	model.StatusScheduled:  {model.StatusInProgress, model.StatusMissed, model.StatusCancelled},
	model.StatusInProgress: {model.StatusCompleted, model.StatusMissed, model.StatusCancelled},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to model.OccurrenceStatus) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition mutates the occurrence status after checking the state machine.
func Transition(occ *model.Occurrence, to model.OccurrenceStatus) error {
	if !CanTransition(occ.Status, to) {
		return &InvalidTransitionError{OccurrenceID: occ.ID, From: occ.Status, To: to}
	}
	occ.Status = to
	return nil
}
