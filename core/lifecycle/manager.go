package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wastemaster/wastemaster/core/events"
	"github.com/wastemaster/wastemaster/core/ledger"
	"github.com/wastemaster/wastemaster/core/logger"
	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/core/store"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

// CancelNoticeDays is the minimum notice a non-administrative cancellation
// requires before the target date.
const CancelNoticeDays = 2

var (
	// ErrCancelWindowClosed is returned when a customer-requested
	// cancellation arrives with less than CancelNoticeDays of notice.
	ErrCancelWindowClosed = errors.New("lifecycle: cancellation window closed")
	// ErrNotAuthorized is returned when the actor's role does not permit
	// the operation.
	ErrNotAuthorized = errors.New("lifecycle: not authorized")
)

// Manager applies lifecycle signals to occurrences. It trusts the actor
// identity it is handed; authentication happens upstream.
type Manager struct {
	store  store.Store
	ledger *ledger.Ledger
	bus    eventbus.EventBus
	log    logger.Logger
}

// NewManager creates a Manager.
func NewManager(st store.Store, l *ledger.Ledger, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if st == nil || l == nil || log == nil {
		return nil, fmt.Errorf("lifecycle: nil parameter provided to NewManager")
	}
	return &Manager{store: st, ledger: l, bus: bus, log: log}, nil
}

// Start records an operator start signal: SCHEDULED -> IN_PROGRESS.
func (m *Manager) Start(ctx context.Context, occurrenceID string, actor model.Actor, now time.Time) error {
	return m.transition(ctx, occurrenceID, model.StatusInProgress, actor, now, func(occ *model.Occurrence) {
		t := now
		occ.StartedAt = &t
	})
}

// Complete records an operator completion signal: IN_PROGRESS -> COMPLETED.
// The held resource slots are released for reuse.
func (m *Manager) Complete(ctx context.Context, occurrenceID string, actor model.Actor, now time.Time) error {
	return m.transition(ctx, occurrenceID, model.StatusCompleted, actor, now, func(occ *model.Occurrence) {
		t := now
		occ.CompletedAt = &t
		m.releaseSlots(*occ)
	})
}

// Cancel cancels an occurrence. Administrators may cancel at any time;
// other actors must respect the cancellation notice limit. Held slots are
// released before the cancellation is considered complete.
func (m *Manager) Cancel(ctx context.Context, occurrenceID string, actor model.Actor, now time.Time) error {
	occ, err := m.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		notice := occ.Date.Sub(model.DateOf(now))
		if notice < CancelNoticeDays*24*time.Hour {
			return fmt.Errorf("%w: %s is less than %d days away",
				ErrCancelWindowClosed, occ.Date.Format("2006-01-02"), CancelNoticeDays)
		}
	}
	return m.transition(ctx, occurrenceID, model.StatusCancelled, actor, now, func(occ *model.Occurrence) {
		m.releaseSlots(*occ)
	})
}

// CancelService administratively cancels a contract and synchronously
// cancels every future non-terminal occurrence, releasing their reserved
// slots. No orphaned reservation survives this call.
func (m *Manager) CancelService(ctx context.Context, serviceID string, actor model.Actor, now time.Time) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: service cancellation requires administrator", ErrNotAuthorized)
	}
	if err := m.store.UpdateServiceStatus(ctx, serviceID, model.ServiceCancelled); err != nil {
		return err
	}
	open, err := m.store.ListOpenOccurrencesByService(ctx, serviceID, now)
	if err != nil {
		return err
	}
	for _, occ := range open {
		if err := m.transition(ctx, occ.ID, model.StatusCancelled, actor, now, func(o *model.Occurrence) {
			m.releaseSlots(*o)
		}); err != nil {
			return fmt.Errorf("cancel occurrence %s: %w", occ.ID, err)
		}
	}
	m.log.Infof("service %s cancelled, %d occurrences released", serviceID, len(open))
	return nil
}

// SweepTimeouts transitions SCHEDULED and IN_PROGRESS occurrences whose
// collection window ended before now to MISSED and releases their slots.
// It only touches non-terminal occurrences, so it is safe to run
// concurrently with dispatch activity. Returns the number of occurrences
// marked missed.
func (m *Manager) SweepTimeouts(ctx context.Context, now time.Time) (int, error) {
	open, err := m.store.ListOccurrencesByStatus(ctx, model.StatusScheduled, model.StatusInProgress)
	if err != nil {
		return 0, err
	}
	missed := 0
	for _, occ := range open {
		if !occ.WindowEnd.Before(now) {
			continue
		}
		err := m.transition(ctx, occ.ID, model.StatusMissed, model.Actor{ID: "system", Role: model.RoleAdministrator}, now, func(o *model.Occurrence) {
			m.releaseSlots(*o)
		})
		if err != nil {
			// Raced with a completion or cancellation; the guard already
			// protected the terminal state.
			var ite *InvalidTransitionError
			if errors.As(err, &ite) {
				continue
			}
			return missed, err
		}
		missed++
	}
	return missed, nil
}

func (m *Manager) transition(ctx context.Context, occurrenceID string, to model.OccurrenceStatus, actor model.Actor, now time.Time, mutate func(*model.Occurrence)) error {
	return m.store.WithTx(ctx, func(s store.Store) error {
		occ, err := s.GetOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		from := occ.Status
		if err := Transition(&occ, to); err != nil {
			return err
		}
		if mutate != nil {
			mutate(&occ)
		}
		if err := s.UpdateOccurrence(ctx, occ); err != nil {
			return err
		}
		if m.bus != nil {
			m.bus.Publish(events.LifecycleChanged{
				OccurrenceID: occ.ID,
				From:         from,
				To:           to,
				Actor:        actor,
				At:           now,
			})
		}
		m.log.Debugw("lifecycle transition", map[string]any{
			"occurrence": occ.ID,
			"from":       from.String(),
			"to":         to.String(),
			"actor":      actor.ID,
		})
		return nil
	})
}

func (m *Manager) releaseSlots(occ model.Occurrence) {
	if occ.VehicleReservation != "" {
		if err := m.ledger.Release(occ.VehicleID, occ.VehicleReservation); err != nil {
			m.log.Warnf("release vehicle slot %s: %v", occ.VehicleID, err)
		}
	}
	if occ.OperatorReservation != "" {
		if err := m.ledger.Release(occ.OperatorID, occ.OperatorReservation); err != nil {
			m.log.Warnf("release operator slot %s: %v", occ.OperatorID, err)
		}
	}
}
