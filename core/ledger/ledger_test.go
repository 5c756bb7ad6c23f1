package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func slotAt(h, dur int) Slot {
	start := time.Date(2024, 3, 4, h, 0, 0, 0, time.UTC)
	return Slot{Start: start, End: start.Add(time.Duration(dur) * time.Hour)}
}

func TestTryReserveAndRelease(t *testing.T) {
	l := New()
	l.Register("truck-1", 3)

	res, err := l.TryReserve("truck-1", slotAt(8, 4), 2)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.ID == "" || res.ResourceID != "truck-1" {
		t.Fatalf("bad reservation %+v", res)
	}

	if _, err := l.TryReserve("truck-1", slotAt(10, 2), 1); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	if err := l.Release("truck-1", res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.TryReserve("truck-1", slotAt(10, 2), 1); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestTryReserveCapacity(t *testing.T) {
	l := New()
	l.Register("truck-1", 1)
	if _, err := l.TryReserve("truck-1", slotAt(8, 4), 2); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestTryReserveUnknownResource(t *testing.T) {
	l := New()
	if _, err := l.TryReserve("ghost", slotAt(8, 1), 1); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
}

func TestAdjacentSlotsDoNotConflict(t *testing.T) {
	l := New()
	l.Register("truck-1", 3)
	if _, err := l.TryReserve("truck-1", slotAt(8, 2), 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := l.TryReserve("truck-1", slotAt(10, 2), 1); err != nil {
		t.Fatalf("adjacent reserve: %v", err)
	}
}

func TestConcurrentReservationsNoOverlap(t *testing.T) {
	l := New()
	l.Register("truck-1", 3)
	slot := slotAt(8, 4)

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TryReserve("truck-1", slot, 1); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}

	held := l.Reservations("truck-1")
	for i := range held {
		for j := i + 1; j < len(held); j++ {
			if held[i].Slot.Overlaps(held[j].Slot) {
				t.Fatalf("overlapping reservations committed: %+v %+v", held[i], held[j])
			}
		}
	}
}

func TestRestore(t *testing.T) {
	l := New()
	l.Register("truck-1", 3)

	if err := l.Restore("truck-1", "res-1", slotAt(8, 4), 2); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := l.TryReserve("truck-1", slotAt(10, 2), 1); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict against restored slot, got %v", err)
	}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := l.CommittedLoad("truck-1", day); got != 2 {
		t.Fatalf("expected restored load 2, got %d", got)
	}

	// Replaying the same reservation must not double the committed load.
	if err := l.Restore("truck-1", "res-1", slotAt(8, 4), 2); err != nil {
		t.Fatalf("restore replay: %v", err)
	}
	if got := l.CommittedLoad("truck-1", day); got != 2 {
		t.Fatalf("replay doubled load: %d", got)
	}

	// The persisted id still works for release.
	if err := l.Release("truck-1", "res-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.TryReserve("truck-1", slotAt(10, 2), 1); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}

	if err := l.Restore("ghost", "res-2", slotAt(8, 1), 1); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
	if err := l.Restore("truck-1", "", slotAt(8, 1), 1); err == nil {
		t.Fatal("expected error for empty reservation id")
	}
}

func TestCommittedLoad(t *testing.T) {
	l := New()
	l.Register("truck-1", 5)
	if _, err := l.TryReserve("truck-1", slotAt(8, 2), 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := l.TryReserve("truck-1", slotAt(12, 2), 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := l.CommittedLoad("truck-1", day); got != 3 {
		t.Fatalf("expected load 3 got %d", got)
	}
	if got := l.CommittedLoad("truck-1", day.AddDate(0, 0, 1)); got != 0 {
		t.Fatalf("expected load 0 next day, got %d", got)
	}
}
