package dispatch

import (
	"fmt"
	"time"

	"github.com/wastemaster/wastemaster/core/ledger"
	"github.com/wastemaster/wastemaster/core/model"
)

// Candidate is a planned occurrence awaiting resources.
type Candidate struct {
	Occurrence model.Occurrence
	Service    model.Service
}

// DeferralReason explains why a candidate could not be scheduled in this
// pass. Deferrals are transient: the occurrence is retried on the next pass.
type DeferralReason string

const (
	// ReasonNoCapacity means no registered resource meets the service's
	// capacity class.
	ReasonNoCapacity DeferralReason = "NoCapacity"
	// ReasonNoAvailableResource means capable resources exist but all are
	// booked for the target date.
	ReasonNoAvailableResource DeferralReason = "NoAvailableResource"
)

// Deferral tags a candidate with the reason it was not scheduled.
type Deferral struct {
	Candidate Candidate
	Reason    DeferralReason
}

// Error is a logic inconsistency between the service state and the dispatch
// attempt, surfaced to the caller rather than retried.
type Error struct {
	ServiceID string
	Date      time.Time
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch: service %s at %s: %s",
		e.ServiceID, e.Date.Format("2006-01-02"), e.Reason)
}

// Resources is the fleet view a dispatcher draws from.
type Resources struct {
	Vehicles  []model.Vehicle
	Operators []model.Operator
	Ledger    *ledger.Ledger
}

// Dispatcher assigns a candidate occurrence to a (vehicle, operator) pair.
// It returns the fully assigned occurrence, or a deferral when no suitable
// combination can be reserved. A non-nil error means the dispatch attempt
// was inconsistent with the service state.
type Dispatcher interface {
	Dispatch(cand Candidate, res Resources) (model.Occurrence, *Deferral, error)
}
