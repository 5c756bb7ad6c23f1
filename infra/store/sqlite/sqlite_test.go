package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/core/recurrence"
	"github.com/wastemaster/wastemaster/core/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestServiceRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	svc := model.Service{
		ID:         "svc-1",
		CustomerID: "cust-1",
		CategoryID: "cat-1",
		Rule: recurrence.Rule{
			Frequency: recurrence.FrequencyWeekly,
			Interval:  2,
			Weekdays:  []time.Weekday{time.Monday, time.Thursday},
			Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:       &end,
		},
		Capacity: model.ClassMedium,
		Status:   model.ServiceActive,
	}
	if err := s.SaveService(ctx, svc); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetService(ctx, "svc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Rule.Interval != 2 || len(got.Rule.Weekdays) != 2 || got.Rule.End == nil {
		t.Fatalf("rule not preserved: %+v", got.Rule)
	}
	if !got.Rule.End.Equal(end) {
		t.Fatalf("end = %s, want %s", got.Rule.End, end)
	}
	if got.Capacity != model.ClassMedium {
		t.Fatalf("capacity = %d", got.Capacity)
	}

	if _, err := s.GetService(ctx, "svc-none"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveServicesExcludesCancelled(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	rule := recurrence.Rule{Frequency: recurrence.FrequencyDaily, Interval: 1, Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, id := range []string{"svc-a", "svc-b"} {
		svc := model.Service{ID: id, CustomerID: "c", CategoryID: "cat", Rule: rule, Capacity: model.ClassSmall}
		if err := s.SaveService(ctx, svc); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := s.UpdateServiceStatus(ctx, "svc-b", model.ServiceCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	active, err := s.ListActiveServices(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != "svc-a" {
		t.Fatalf("unexpected active set: %+v", active)
	}
}

func occurrenceAt(id, svc string, date time.Time, status model.OccurrenceStatus) model.Occurrence {
	return model.Occurrence{
		ID: id, ServiceID: svc, CustomerID: "cust-1", CategoryID: "cat-1",
		Date: date, Status: status,
		WindowStart: date.Add(6 * time.Hour), WindowEnd: date.Add(18 * time.Hour),
	}
}

func TestOccurrenceUniquePerServiceDate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	if err := s.SaveOccurrence(ctx, occurrenceAt("occ-1", "svc-1", date, model.StatusPlanned)); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := s.SaveOccurrence(ctx, occurrenceAt("occ-2", "svc-1", date, model.StatusPlanned))
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	exists, err := s.HasOccurrence(ctx, "svc-1", date)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !exists {
		t.Fatalf("expected occurrence to exist")
	}
}

func TestOccurrenceUpdateAndStatusQueries(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	occ := occurrenceAt("occ-1", "svc-1", date, model.StatusScheduled)
	occ.VehicleID = "veh-1"
	occ.OperatorID = "op-1"
	if err := s.SaveOccurrence(ctx, occ); err != nil {
		t.Fatalf("save: %v", err)
	}
	started := date.Add(7 * time.Hour)
	occ.Status = model.StatusInProgress
	occ.StartedAt = &started
	if err := s.UpdateOccurrence(ctx, occ); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetOccurrence(ctx, "occ-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusInProgress || got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Fatalf("update not preserved: %+v", got)
	}

	open, err := s.ListOccurrencesByStatus(ctx, model.StatusInProgress)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(open) != 1 || open[0].ID != "occ-1" {
		t.Fatalf("unexpected list: %+v", open)
	}

	missing := occurrenceAt("occ-ghost", "svc-1", date.AddDate(0, 0, 7), model.StatusPlanned)
	if err := s.UpdateOccurrence(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOpenOccurrencesByService(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	seed := []model.Occurrence{
		occurrenceAt("occ-past", "svc-1", base.AddDate(0, 0, -7), model.StatusScheduled),
		occurrenceAt("occ-open", "svc-1", base.AddDate(0, 0, 7), model.StatusScheduled),
		occurrenceAt("occ-done", "svc-1", base.AddDate(0, 0, 14), model.StatusCompleted),
		occurrenceAt("occ-other", "svc-2", base.AddDate(0, 0, 7), model.StatusScheduled),
	}
	for _, occ := range seed {
		if err := s.SaveOccurrence(ctx, occ); err != nil {
			t.Fatalf("save %s: %v", occ.ID, err)
		}
	}
	open, err := s.ListOpenOccurrencesByService(ctx, "svc-1", base)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || open[0].ID != "occ-open" {
		t.Fatalf("unexpected open set: %+v", open)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	boom := fmt.Errorf("boom")
	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.SaveOccurrence(ctx, occurrenceAt("occ-1", "svc-1", date, model.StatusPlanned)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, err := s.GetOccurrence(ctx, "occ-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestBillingMarkerIsAtomic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	item := model.BillingLineItem{
		ID: "item-1", OccurrenceID: "occ-1", ServiceID: "svc-1", CustomerID: "cust-1",
		Description: "Waste collection on 2024-01-08",
		Date:        time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(30), Currency: "EUR",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.AppendLineItem(ctx, item); err != nil {
		t.Fatalf("append: %v", err)
	}
	billed, err := s.IsBilled(ctx, "occ-1")
	if err != nil {
		t.Fatalf("is billed: %v", err)
	}
	if !billed {
		t.Fatalf("expected occurrence marked billed")
	}
	dup := item
	dup.ID = "item-2"
	if err := s.AppendLineItem(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	items, err := s.ListLineItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || !items[0].Amount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestPriceScheduleRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	schedules := []model.PriceSchedule{
		{ServiceID: "svc-1", From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: &to,
			UnitPrice: decimal.RequireFromString("29.90"), Currency: "EUR"},
		{ServiceID: "svc-1", From: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			UnitPrice: decimal.RequireFromString("32.50"), Currency: "EUR"},
	}
	for _, p := range schedules {
		if err := s.SavePriceSchedule(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	got, err := s.ListPriceSchedules(ctx, "svc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(got))
	}
	if got[0].To == nil || got[1].To != nil {
		t.Fatalf("validity bounds not preserved: %+v", got)
	}
	if !got[1].UnitPrice.Equal(decimal.RequireFromString("32.50")) {
		t.Fatalf("unit price = %s", got[1].UnitPrice)
	}
}

func TestHoldOccurrence(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.HoldOccurrence(ctx, "occ-1", "no price schedule covers completion date"); err != nil {
		t.Fatalf("hold: %v", err)
	}
	// Holding again updates the reason instead of failing.
	if err := s.HoldOccurrence(ctx, "occ-1", "still unresolved"); err != nil {
		t.Fatalf("re-hold: %v", err)
	}
	held, err := s.ListHeld(ctx)
	if err != nil {
		t.Fatalf("list held: %v", err)
	}
	if held["occ-1"] != "still unresolved" {
		t.Fatalf("unexpected held set: %v", held)
	}
}
