// Package recurrence expands service recurrence rules into candidate pickup
// dates. Expansion is deterministic: the same rule and window always yield
// the same sequence, with no wall-clock dependency beyond the bounds passed
// in by the caller.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is the unit a rule repeats on.
type Frequency int

const (
	FrequencyUnspecified Frequency = iota
	FrequencyDaily
	FrequencyWeekly
	FrequencyMonthly
)

// String returns a human-readable representation of the frequency.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	case FrequencyMonthly:
		return "monthly"
	default:
		return "unspecified"
	}
}

// ErrInvalidRule indicates a malformed recurrence definition. Rules are
// validated at service creation so invalid ones never reach expansion.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// Rule describes how a service's pickups repeat. End is optional; a nil End
// means the rule is open-ended. A one-off pickup is a daily rule whose End
// equals Start: it expands to exactly that date and nothing after.
type Rule struct {
	Frequency Frequency
	Interval  int
	Weekdays  []time.Weekday
	Start     time.Time
	End       *time.Time
}

// Validate checks the rule invariants: interval >= 1, a non-empty weekday
// set for weekly rules, and an end date not preceding the start date.
func (r Rule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("%w: unsupported frequency %d", ErrInvalidRule, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval %d, must be >= 1", ErrInvalidRule, r.Interval)
	}
	if r.Frequency == FrequencyWeekly && len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: weekly rule requires a weekday set", ErrInvalidRule)
	}
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidRule)
	}
	if r.End != nil && r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s precedes start %s", ErrInvalidRule,
			r.End.Format("2006-01-02"), r.Start.Format("2006-01-02"))
	}
	return nil
}

// AlignToCollectionDay moves date forward to the next occurrence of the
// category's collection weekday. A date already on that weekday is returned
// unchanged.
func AlignToCollectionDay(date time.Time, day time.Weekday) time.Time {
	for date.Weekday() != day {
		date = date.AddDate(0, 0, 1)
	}
	return date
}
