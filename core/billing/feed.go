// Package billing turns completed occurrences into billable line items and
// hands ordered, deduplicated batches to the document generator.
package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wastemaster/wastemaster/core/events"
	"github.com/wastemaster/wastemaster/core/logger"
	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/core/store"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

// PricingUnavailableError indicates no price schedule covers the completion
// date. The occurrence is withheld for manual resolution, never zeroed.
type PricingUnavailableError struct {
	OccurrenceID string
	ServiceID    string
	Date         time.Time
}

func (e *PricingUnavailableError) Error() string {
	return fmt.Sprintf("billing: no price schedule for service %s covers %s (occurrence %s)",
		e.ServiceID, e.Date.Format("2006-01-02"), e.OccurrenceID)
}

// DocumentRenderer is the external document generator collaborator. It
// receives correctly ordered, deduplicated line-item batches.
type DocumentRenderer interface {
	Render(ctx context.Context, batch []model.BillingLineItem) error
}

// Feed consumes completed occurrences exactly once. Idempotence against
// re-delivery is guaranteed by the processed marker the store keeps per
// occurrence id.
type Feed struct {
	store store.Store
	bus   eventbus.EventBus
	log   logger.Logger
}

// NewFeed creates a Feed.
func NewFeed(st store.Store, bus eventbus.EventBus, log logger.Logger) (*Feed, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("billing: nil parameter provided to NewFeed")
	}
	return &Feed{store: st, bus: bus, log: log}, nil
}

// Process bills one completed occurrence. Re-delivery of an already billed
// occurrence returns (nil, nil). A missing price schedule holds the
// occurrence and returns PricingUnavailableError.
func (f *Feed) Process(ctx context.Context, occ model.Occurrence) (*model.BillingLineItem, error) {
	if occ.Status != model.StatusCompleted {
		return nil, fmt.Errorf("billing: occurrence %s is %s, not COMPLETED", occ.ID, occ.Status)
	}
	billed, err := f.store.IsBilled(ctx, occ.ID)
	if err != nil {
		return nil, err
	}
	if billed {
		return nil, nil
	}

	completedOn := occ.Date
	if occ.CompletedAt != nil {
		completedOn = model.DateOf(*occ.CompletedAt)
	}

	schedules, err := f.store.ListPriceSchedules(ctx, occ.ServiceID)
	if err != nil {
		return nil, err
	}
	schedule, ok := resolve(schedules, completedOn)
	if !ok {
		if err := f.store.HoldOccurrence(ctx, occ.ID, "no price schedule covers completion date"); err != nil {
			return nil, err
		}
		if f.bus != nil {
			f.bus.Publish(events.PricingHeld{OccurrenceID: occ.ID, Date: completedOn})
		}
		return nil, &PricingUnavailableError{OccurrenceID: occ.ID, ServiceID: occ.ServiceID, Date: completedOn}
	}

	item := model.BillingLineItem{
		ID:           uuid.NewString(),
		OccurrenceID: occ.ID,
		ServiceID:    occ.ServiceID,
		CustomerID:   occ.CustomerID,
		Description:  fmt.Sprintf("Waste collection on %s", completedOn.Format("2006-01-02")),
		Date:         completedOn,
		Amount:       schedule.UnitPrice,
		Currency:     schedule.Currency,
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.store.AppendLineItem(ctx, item); err != nil {
		return nil, err
	}
	if f.bus != nil {
		f.bus.Publish(events.LineItemCreated{Item: item})
	}
	f.log.Debugw("line item created", map[string]any{
		"occurrence": occ.ID,
		"amount":     item.Amount.String(),
	})
	return &item, nil
}

// Export hands every stored line item to the renderer as one batch, ordered
// by customer, date and id, deduplicated by occurrence.
func (f *Feed) Export(ctx context.Context, renderer DocumentRenderer) (int, error) {
	if renderer == nil {
		return 0, fmt.Errorf("billing: nil renderer")
	}
	items, err := f.store.ListLineItems(ctx)
	if err != nil {
		return 0, err
	}
	batch := dedupe(items)
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].CustomerID != batch[j].CustomerID {
			return batch[i].CustomerID < batch[j].CustomerID
		}
		if !batch[i].Date.Equal(batch[j].Date) {
			return batch[i].Date.Before(batch[j].Date)
		}
		return batch[i].ID < batch[j].ID
	})
	if len(batch) == 0 {
		return 0, nil
	}
	if err := renderer.Render(ctx, batch); err != nil {
		return 0, fmt.Errorf("render batch: %w", err)
	}
	return len(batch), nil
}

func resolve(schedules []model.PriceSchedule, date time.Time) (model.PriceSchedule, bool) {
	for _, s := range schedules {
		if s.Covers(date) {
			return s, true
		}
	}
	return model.PriceSchedule{}, false
}

func dedupe(items []model.BillingLineItem) []model.BillingLineItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]model.BillingLineItem, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.OccurrenceID]; ok {
			continue
		}
		seen[it.OccurrenceID] = struct{}{}
		out = append(out, it)
	}
	return out
}
