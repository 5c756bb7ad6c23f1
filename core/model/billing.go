package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSchedule prices a service's pickups over a validity range. A nil To
// means the schedule is open-ended.
type PriceSchedule struct {
	ServiceID string
	From      time.Time
	To        *time.Time
	UnitPrice decimal.Decimal
	Currency  string
}

// Covers reports whether the schedule prices pickups completed on date.
func (p PriceSchedule) Covers(date time.Time) bool {
	d := DateOf(date)
	if d.Before(DateOf(p.From)) {
		return false
	}
	return p.To == nil || !d.After(DateOf(*p.To))
}

// BillingLineItem is a read-only projection of a completed occurrence plus
// the service pricing resolved at the completion date. Never mutated after
// creation.
type BillingLineItem struct {
	ID           string
	OccurrenceID string
	ServiceID    string
	CustomerID   string
	Description  string
	Date         time.Time
	Amount       decimal.Decimal
	Currency     string
	CreatedAt    time.Time
}
