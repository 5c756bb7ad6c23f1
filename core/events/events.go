// Package events defines the scheduling events emitted on the event bus.
// The presentation layer subscribes to them for per-occurrence status
// display; the core never blocks on a slow subscriber.
package events

import (
	"time"

	"github.com/wastemaster/wastemaster/core/model"
)

// OccurrenceScheduled is published when the dispatcher assigns resources.
type OccurrenceScheduled struct {
	Occurrence model.Occurrence
}

// OccurrenceDeferred is published when a candidate could not be scheduled in
// this pass. Reason mirrors dispatch.DeferralReason.
type OccurrenceDeferred struct {
	ServiceID string
	Date      time.Time
	Reason    string
}

// LifecycleChanged is published for every accepted state transition.
type LifecycleChanged struct {
	OccurrenceID string
	From         model.OccurrenceStatus
	To           model.OccurrenceStatus
	Actor        model.Actor
	At           time.Time
}

// LineItemCreated is published when the billing feed produces a line item.
type LineItemCreated struct {
	Item model.BillingLineItem
}

// PricingHeld is published when a completed occurrence is withheld from
// billing pending manual price resolution.
type PricingHeld struct {
	OccurrenceID string
	Date         time.Time
}

// PassCompleted carries the structured summary of one orchestrator pass.
type PassCompleted struct {
	Scheduled int
	Deferred  int
	Failed    int
	Missed    int
	Billed    int
	Duration  time.Duration
}
