package recurrence

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandWeeklyMondays(t *testing.T) {
	end := date(2024, 1, 31)
	rule := Rule{
		Frequency: FrequencyWeekly,
		Interval:  1,
		Weekdays:  []time.Weekday{time.Monday},
		Start:     date(2024, 1, 1),
		End:       &end,
	}
	seq, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	got := seq.Dates()
	want := []time.Time{
		date(2024, 1, 1), date(2024, 1, 8), date(2024, 1, 15),
		date(2024, 1, 22), date(2024, 1, 29),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("date %d: expected %s got %s", i, want[i], got[i])
		}
	}
}

func TestExpandDeterministic(t *testing.T) {
	rule := Rule{
		Frequency: FrequencyWeekly,
		Interval:  2,
		Weekdays:  []time.Weekday{time.Monday, time.Thursday},
		Start:     date(2024, 1, 1),
	}
	seq, err := Expand(rule, date(2024, 1, 1), date(2024, 3, 31))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	first := seq.Dates()
	second := seq.Dates()
	if len(first) == 0 {
		t.Fatal("expected non-empty expansion")
	}
	if len(first) != len(second) {
		t.Fatalf("re-expansion differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("date %d differs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestExpandBiweeklySkipsAlternateWeeks(t *testing.T) {
	rule := Rule{
		Frequency: FrequencyWeekly,
		Interval:  2,
		Weekdays:  []time.Weekday{time.Monday},
		Start:     date(2024, 1, 1),
	}
	seq, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	got := seq.Dates()
	want := []time.Time{date(2024, 1, 1), date(2024, 1, 15), date(2024, 1, 29)}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("date %d: expected %s got %s", i, want[i], got[i])
		}
	}
}

func TestExpandMonthlyClampsShortMonths(t *testing.T) {
	rule := Rule{Frequency: FrequencyMonthly, Interval: 1, Start: date(2024, 1, 31)}
	seq, err := Expand(rule, date(2024, 1, 1), date(2024, 4, 30))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	got := seq.Dates()
	want := []time.Time{
		date(2024, 1, 31), date(2024, 2, 29), date(2024, 3, 31), date(2024, 4, 30),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("date %d: expected %s got %s", i, want[i], got[i])
		}
	}
}

func TestExpandOneOff(t *testing.T) {
	day := date(2024, 1, 15)
	rule := Rule{Frequency: FrequencyDaily, Interval: 1, Start: day, End: &day}
	seq, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	got := seq.Dates()
	if len(got) != 1 || !got[0].Equal(day) {
		t.Fatalf("expected single date %s, got %v", day, got)
	}

	seq, err = Expand(rule, date(2024, 2, 1), date(2024, 2, 29))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got := seq.Dates(); len(got) != 0 {
		t.Fatalf("expected empty sequence past the pickup date, got %v", got)
	}
}

func TestExpandWindowOutsideRuleRange(t *testing.T) {
	end := date(2024, 1, 31)
	rule := Rule{
		Frequency: FrequencyWeekly,
		Interval:  1,
		Weekdays:  []time.Weekday{time.Monday},
		Start:     date(2024, 1, 1),
		End:       &end,
	}
	seq, err := Expand(rule, date(2024, 6, 1), date(2024, 6, 30))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got := seq.Dates(); len(got) != 0 {
		t.Fatalf("expected empty sequence, got %v", got)
	}
}

func TestExpandRestartable(t *testing.T) {
	rule := Rule{Frequency: FrequencyDaily, Interval: 3, Start: date(2024, 1, 1)}
	seq, err := Expand(rule, date(2024, 1, 1), date(2024, 1, 10))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	var n int
	for {
		if _, ok := seq.Next(); !ok {
			break
		}
		n++
	}
	if n != 4 {
		t.Fatalf("expected 4 dates got %d", n)
	}
	seq.Reset()
	if d, ok := seq.Next(); !ok || !d.Equal(date(2024, 1, 1)) {
		t.Fatalf("expected restart at 2024-01-01, got %v %v", d, ok)
	}
}

func TestRuleValidate(t *testing.T) {
	end := date(2023, 12, 1)
	cases := []struct {
		name string
		rule Rule
	}{
		{"zero interval", Rule{Frequency: FrequencyDaily, Interval: 0, Start: date(2024, 1, 1)}},
		{"weekly without weekdays", Rule{Frequency: FrequencyWeekly, Interval: 1, Start: date(2024, 1, 1)}},
		{"end before start", Rule{Frequency: FrequencyDaily, Interval: 1, Start: date(2024, 1, 1), End: &end}},
		{"unspecified frequency", Rule{Interval: 1, Start: date(2024, 1, 1)}},
		{"missing start", Rule{Frequency: FrequencyDaily, Interval: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.rule.Validate(); !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("expected ErrInvalidRule, got %v", err)
			}
			if _, err := Expand(tc.rule, date(2024, 1, 1), date(2024, 2, 1)); !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("expand accepted invalid rule: %v", err)
			}
		})
	}
}

func TestAlignToCollectionDay(t *testing.T) {
	// 2024-01-02 is a Tuesday.
	got := AlignToCollectionDay(date(2024, 1, 2), time.Friday)
	if !got.Equal(date(2024, 1, 5)) {
		t.Fatalf("expected Friday 2024-01-05 got %s", got)
	}
	if got := AlignToCollectionDay(date(2024, 1, 5), time.Friday); !got.Equal(date(2024, 1, 5)) {
		t.Fatalf("aligned date moved: %s", got)
	}
}
