// Package ledger tracks resource availability per time slot. It is the unit
// of conflict detection for the dispatcher: reservations against a shared
// resource are serialized, so two concurrent attempts to reserve overlapping
// slots can never both succeed.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownResource is returned when the resource was never registered.
	ErrUnknownResource = errors.New("ledger: unknown resource")
	// ErrSlotConflict is returned when the requested slot overlaps a
	// committed reservation on the same resource.
	ErrSlotConflict = errors.New("ledger: slot conflict")
	// ErrCapacityExceeded is returned when the requested load exceeds the
	// resource's capacity.
	ErrCapacityExceeded = errors.New("ledger: capacity exceeded")
)

// Slot is a time window on a resource's calendar.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two slots share any instant.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Reservation is the handle returned by TryReserve. The holder releases the
// slot by passing the resource and reservation ids back.
type Reservation struct {
	ID         string
	ResourceID string
	Slot       Slot
	Load       int
}

type resource struct {
	id       string
	capacity int

	mu       sync.Mutex
	reserved map[string]Reservation
}

// Ledger holds the calendars of all registered resources. It knows nothing
// about vehicles or operators beyond id and capacity.
type Ledger struct {
	mu        sync.RWMutex
	resources map[string]*resource
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{resources: make(map[string]*resource)}
}

// Register adds a resource with the given capacity. Re-registering an id
// replaces its capacity but keeps committed reservations.
func (l *Ledger) Register(id string, capacity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.resources[id]; ok {
		r.capacity = capacity
		return
	}
	l.resources[id] = &resource{
		id:       id,
		capacity: capacity,
		reserved: make(map[string]Reservation),
	}
}

// TryReserve atomically commits a reservation for the slot, or reports why
// it cannot. Reservation attempts on the same resource are mutually
// exclusive.
func (l *Ledger) TryReserve(resourceID string, slot Slot, load int) (Reservation, error) {
	l.mu.RLock()
	r, ok := l.resources[resourceID]
	l.mu.RUnlock()
	if !ok {
		return Reservation{}, fmt.Errorf("%w: %s", ErrUnknownResource, resourceID)
	}
	if !slot.End.After(slot.Start) {
		return Reservation{}, fmt.Errorf("ledger: slot end must follow start")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if load > r.capacity {
		return Reservation{}, fmt.Errorf("%w: %s load %d > capacity %d",
			ErrCapacityExceeded, resourceID, load, r.capacity)
	}
	for _, held := range r.reserved {
		if held.Slot.Overlaps(slot) {
			return Reservation{}, fmt.Errorf("%w: %s at %s", ErrSlotConflict,
				resourceID, slot.Start.Format(time.RFC3339))
		}
	}
	res := Reservation{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		Slot:       slot,
		Load:       load,
	}
	r.reserved[res.ID] = res
	return res, nil
}

// Restore re-commits a reservation that was persisted before a restart,
// keeping its original id so later releases still match. The durable store
// is authoritative here, so no conflict check is applied. Restoring an id
// the resource already holds is a no-op, which keeps replay idempotent.
func (l *Ledger) Restore(resourceID, reservationID string, slot Slot, load int) error {
	if reservationID == "" {
		return fmt.Errorf("ledger: empty reservation id")
	}
	l.mu.RLock()
	r, ok := l.resources[resourceID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resourceID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reserved[reservationID]; ok {
		return nil
	}
	r.reserved[reservationID] = Reservation{
		ID:         reservationID,
		ResourceID: resourceID,
		Slot:       slot,
		Load:       load,
	}
	return nil
}

// Release frees a committed reservation. Releasing an unknown reservation is
// not an error so that cancellation paths stay idempotent.
func (l *Ledger) Release(resourceID, reservationID string) error {
	l.mu.RLock()
	r, ok := l.resources[resourceID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resourceID)
	}
	r.mu.Lock()
	delete(r.reserved, reservationID)
	r.mu.Unlock()
	return nil
}

// CommittedLoad sums the loads of reservations touching the given day. The
// dispatcher uses it to pick the least-loaded resource.
func (l *Ledger) CommittedLoad(resourceID string, day time.Time) int {
	l.mu.RLock()
	r, ok := l.resources[resourceID]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	window := Slot{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}

	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, held := range r.reserved {
		if held.Slot.Overlaps(window) {
			total += held.Load
		}
	}
	return total
}

// Reservations returns a snapshot of the resource's committed reservations.
func (l *Ledger) Reservations(resourceID string) []Reservation {
	l.mu.RLock()
	r, ok := l.resources[resourceID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reservation, 0, len(r.reserved))
	for _, held := range r.reserved {
		out = append(out, held)
	}
	return out
}
