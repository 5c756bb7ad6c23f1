package recurrence

import "time"

// Sequence is a lazy, finite, restartable stream of candidate dates produced
// by Expand. It is not safe for concurrent use.
type Sequence struct {
	rule   Rule
	lower  time.Time
	upper  time.Time
	cursor time.Time
	days   map[time.Weekday]struct{}
}

// Expand produces the candidate dates for rule within [from, to], clipped to
// the rule's own effective range. A window entirely outside the rule's range
// yields an empty sequence. The rule is validated first so a malformed rule
// fails with ErrInvalidRule before any date is produced.
func Expand(rule Rule, from, to time.Time) (*Sequence, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	lower := dateOf(from)
	if start := dateOf(rule.Start); start.After(lower) {
		lower = start
	}
	upper := dateOf(to)
	if rule.End != nil {
		if end := dateOf(*rule.End); end.Before(upper) {
			upper = end
		}
	}

	days := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, d := range rule.Weekdays {
		days[d] = struct{}{}
	}

	s := &Sequence{rule: rule, lower: lower, upper: upper, days: days}
	s.Reset()
	return s, nil
}

// Reset rewinds the sequence to its first candidate date.
func (s *Sequence) Reset() { s.cursor = s.lower }

// Next returns the next candidate date, or false when the sequence is
// exhausted.
func (s *Sequence) Next() (time.Time, bool) {
	for !s.cursor.After(s.upper) {
		d := s.cursor
		s.cursor = s.cursor.AddDate(0, 0, 1)
		if s.matches(d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// Dates drains a reset copy of the sequence. The receiver's own cursor is
// left untouched.
func (s *Sequence) Dates() []time.Time {
	c := *s
	c.Reset()
	var out []time.Time
	for {
		d, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, d)
	}
}

func (s *Sequence) matches(d time.Time) bool {
	start := dateOf(s.rule.Start)
	switch s.rule.Frequency {
	case FrequencyDaily:
		days := int(d.Sub(start).Hours() / 24)
		return days >= 0 && days%s.rule.Interval == 0
	case FrequencyWeekly:
		if _, ok := s.days[d.Weekday()]; !ok {
			return false
		}
		weeks := int(weekStart(d).Sub(weekStart(start)).Hours() / (24 * 7))
		return weeks >= 0 && weeks%s.rule.Interval == 0
	case FrequencyMonthly:
		months := (d.Year()-start.Year())*12 + int(d.Month()) - int(start.Month())
		if months < 0 || months%s.rule.Interval != 0 {
			return false
		}
		return d.Day() == monthlyDay(start, d)
	default:
		return false
	}
}

// monthlyDay is the rule's day-of-month clamped to the length of d's month,
// so a rule starting on the 31st still fires in shorter months.
func monthlyDay(start, d time.Time) int {
	day := start.Day()
	if last := lastDayOfMonth(d); day > last {
		day = last
	}
	return day
}

func lastDayOfMonth(d time.Time) int {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

// weekStart returns the Monday of d's week.
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
