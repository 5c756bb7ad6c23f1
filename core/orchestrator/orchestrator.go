// Package orchestrator drives scheduling passes: recurrence expansion,
// dispatch, lifecycle sweep and billing, in that order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/wastemaster/wastemaster/core/billing"
	"github.com/wastemaster/wastemaster/core/dispatch"
	"github.com/wastemaster/wastemaster/core/dispatch/logging"
	"github.com/wastemaster/wastemaster/core/events"
	"github.com/wastemaster/wastemaster/core/ledger"
	"github.com/wastemaster/wastemaster/core/lifecycle"
	"github.com/wastemaster/wastemaster/core/logger"
	"github.com/wastemaster/wastemaster/core/metrics"
	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/core/recurrence"
	"github.com/wastemaster/wastemaster/core/store"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

// ErrPassInProgress is returned when RunPass is invoked while another pass
// still holds the lease.
var ErrPassInProgress = errors.New("orchestrator: pass already in progress")

// Config tunes the scheduling pass.
type Config struct {
	// HorizonDays is how far ahead of now a pass expands recurrence rules.
	HorizonDays int `json:"horizon_days"`
	// WindowStartHour and WindowEndHour bound the collection window placed
	// on each occurrence date, in UTC hours.
	WindowStartHour int `json:"window_start_hour"`
	WindowEndHour   int `json:"window_end_hour"`
	// Workers bounds the per-service expansion+dispatch pool.
	Workers int `json:"workers"`
	// PassIntervalSeconds is the period of the service run loop.
	PassIntervalSeconds int `json:"pass_interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HorizonDays == 0 {
		c.HorizonDays = 7
	}
	if c.WindowStartHour == 0 && c.WindowEndHour == 0 {
		c.WindowStartHour = 6
		c.WindowEndHour = 18
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.PassIntervalSeconds == 0 {
		c.PassIntervalSeconds = 3600
	}
}

// PassInterval is the run loop period as a duration.
func (c Config) PassInterval() time.Duration {
	return time.Duration(c.PassIntervalSeconds) * time.Second
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.HorizonDays < 1 {
		return fmt.Errorf("orchestrator: horizon must be at least one day")
	}
	if c.WindowStartHour < 0 || c.WindowEndHour > 24 || c.WindowStartHour >= c.WindowEndHour {
		return fmt.Errorf("orchestrator: invalid collection window %d-%d", c.WindowStartHour, c.WindowEndHour)
	}
	if c.Workers < 1 {
		return fmt.Errorf("orchestrator: worker count must be at least 1")
	}
	return nil
}

// Orchestrator coordinates one scheduling pass at a time.
type Orchestrator struct {
	cfg        Config
	store      store.Store
	ledger     *ledger.Ledger
	dispatcher dispatch.Dispatcher
	lifecycle  *lifecycle.Manager
	billing    *billing.Feed
	bus        eventbus.EventBus
	sink       metrics.Sink
	log        logger.Logger

	mu      sync.Mutex
	passLog logging.LogStore

	runMu sync.Mutex
}

// New creates an Orchestrator.
func New(cfg Config, st store.Store, l *ledger.Ledger, d dispatch.Dispatcher, lm *lifecycle.Manager, feed *billing.Feed, bus eventbus.EventBus, sink metrics.Sink, log logger.Logger) (*Orchestrator, error) {
	if st == nil || l == nil || d == nil || lm == nil || feed == nil || log == nil {
		return nil, fmt.Errorf("orchestrator: nil parameter provided to New")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		ledger:     l,
		dispatcher: d,
		lifecycle:  lm,
		billing:    feed,
		bus:        bus,
		sink:       sink,
		log:        log,
	}, nil
}

// SetPassLog configures the store used to persist pass records.
func (o *Orchestrator) SetPassLog(ls logging.LogStore) {
	o.mu.Lock()
	o.passLog = ls
	o.mu.Unlock()
}

// RunPass executes one scheduling pass. Only one pass runs at a time; a
// second caller gets ErrPassInProgress instead of queueing.
func (o *Orchestrator) RunPass(ctx context.Context, now time.Time) (PassSummary, error) {
	if !o.runMu.TryLock() {
		return PassSummary{}, ErrPassInProgress
	}
	defer o.runMu.Unlock()

	started := time.Now()
	sum := PassSummary{Errors: make(map[string]string)}

	vehicles, err := o.store.ListVehicles(ctx)
	if err != nil {
		return sum, fmt.Errorf("list vehicles: %w", err)
	}
	operators, err := o.store.ListOperators(ctx)
	if err != nil {
		return sum, fmt.Errorf("list operators: %w", err)
	}
	for _, v := range vehicles {
		o.ledger.Register(v.ID, int(v.Capacity))
	}
	for _, op := range operators {
		o.ledger.Register(op.ID, int(op.Capacity))
	}
	if err := o.rehydrate(ctx); err != nil {
		return sum, fmt.Errorf("rehydrate ledger: %w", err)
	}

	services, err := o.store.ListActiveServices(ctx)
	if err != nil {
		return sum, fmt.Errorf("list services: %w", err)
	}

	res := dispatch.Resources{Vehicles: vehicles, Operators: operators, Ledger: o.ledger}
	from := model.DateOf(now)
	to := from.AddDate(0, 0, o.cfg.HorizonDays)

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		fatal error
	)
	jobs := make(chan model.Service)
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for svc := range jobs {
				scheduled, deferrals, err := o.dispatchService(ctx, svc, res, from, to)
				mu.Lock()
				sum.Scheduled = append(sum.Scheduled, scheduled...)
				sum.Deferrals = append(sum.Deferrals, deferrals...)
				if err != nil {
					var de *dispatch.Error
					if errors.As(err, &de) {
						sum.Errors[svc.ID] = de.Reason
					} else if fatal == nil {
						fatal = err
					}
				}
				mu.Unlock()
			}
		}()
	}
	for _, svc := range services {
		jobs <- svc
	}
	close(jobs)
	wg.Wait()
	if fatal != nil {
		return sum, fmt.Errorf("pass aborted: %w", fatal)
	}

	missed, err := o.lifecycle.SweepTimeouts(ctx, now)
	if err != nil {
		return sum, fmt.Errorf("timeout sweep: %w", err)
	}
	sum.Missed = missed

	if err := o.runBilling(ctx, &sum); err != nil {
		return sum, fmt.Errorf("billing feed: %w", err)
	}

	sum.MeanVehicleLoad, sum.LoadStdDev = o.utilization(vehicles, from, to)
	sum.Duration = time.Since(started)

	o.publishResults(ctx, now, from, to, sum)
	o.log.Infof("%s", sum)
	return sum, nil
}

// rehydrate replays the reservations of persisted open occurrences into the
// ledger, so a freshly started process cannot double-book a resource whose
// slot was committed before the restart. Replaying an id the ledger already
// holds is a no-op, so running this every pass is safe.
func (o *Orchestrator) rehydrate(ctx context.Context) error {
	open, err := o.store.ListOccurrencesByStatus(ctx, model.StatusScheduled, model.StatusInProgress)
	if err != nil {
		return err
	}
	for _, occ := range open {
		svc, err := o.store.GetService(ctx, occ.ServiceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				o.log.Warnf("open occurrence %s references missing service %s", occ.ID, occ.ServiceID)
				continue
			}
			return err
		}
		slot := ledger.Slot{Start: occ.WindowStart, End: occ.WindowEnd}
		load := int(svc.Capacity)
		if occ.VehicleReservation != "" {
			if err := o.ledger.Restore(occ.VehicleID, occ.VehicleReservation, slot, load); err != nil {
				o.log.Warnf("restore vehicle slot for %s: %v", occ.ID, err)
			}
		}
		if occ.OperatorReservation != "" {
			if err := o.ledger.Restore(occ.OperatorID, occ.OperatorReservation, slot, load); err != nil {
				o.log.Warnf("restore operator slot for %s: %v", occ.ID, err)
			}
		}
	}
	return nil
}

// dispatchService expands one service over the pass horizon and dispatches
// every date that has no persisted occurrence yet. A *dispatch.Error covers
// the whole service; any other error is store-level and aborts the pass.
func (o *Orchestrator) dispatchService(ctx context.Context, svc model.Service, res dispatch.Resources, from, to time.Time) ([]model.Occurrence, []dispatch.Deferral, error) {
	cat, err := o.store.GetCategory(ctx, svc.CategoryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, &dispatch.Error{ServiceID: svc.ID, Reason: fmt.Sprintf("unknown waste category %s", svc.CategoryID)}
		}
		return nil, nil, err
	}
	seq, err := recurrence.Expand(svc.Rule, from, to)
	if err != nil {
		return nil, nil, &dispatch.Error{ServiceID: svc.ID, Reason: err.Error()}
	}

	var (
		scheduled []model.Occurrence
		deferrals []dispatch.Deferral
	)
	for date, ok := seq.Next(); ok; date, ok = seq.Next() {
		if svc.Rule.Frequency == recurrence.FrequencyMonthly {
			// Monthly pickups land on the category's collection weekday.
			date = recurrence.AlignToCollectionDay(date, cat.CollectionDay)
			if date.After(to) {
				continue
			}
		}
		exists, err := o.store.HasOccurrence(ctx, svc.ID, date)
		if err != nil {
			return scheduled, deferrals, err
		}
		if exists {
			continue
		}

		occ := model.Occurrence{
			ID:          uuid.NewString(),
			ServiceID:   svc.ID,
			CustomerID:  svc.CustomerID,
			CategoryID:  svc.CategoryID,
			Date:        date,
			Status:      model.StatusPlanned,
			WindowStart: date.Add(time.Duration(o.cfg.WindowStartHour) * time.Hour),
			WindowEnd:   date.Add(time.Duration(o.cfg.WindowEndHour) * time.Hour),
		}
		assigned, deferral, err := o.dispatcher.Dispatch(dispatch.Candidate{Occurrence: occ, Service: svc}, res)
		if err != nil {
			return scheduled, deferrals, err
		}
		if deferral != nil {
			deferrals = append(deferrals, *deferral)
			if o.bus != nil {
				o.bus.Publish(events.OccurrenceDeferred{ServiceID: svc.ID, Date: date, Reason: string(deferral.Reason)})
			}
			continue
		}

		err = o.store.WithTx(ctx, func(s store.Store) error {
			return s.SaveOccurrence(ctx, assigned)
		})
		if err != nil {
			o.releaseSlots(assigned)
			if errors.Is(err, store.ErrDuplicate) {
				// Another pass or an aligned sibling date won the race.
				continue
			}
			return scheduled, deferrals, err
		}
		if o.bus != nil {
			o.bus.Publish(events.OccurrenceScheduled{Occurrence: assigned})
		}
		scheduled = append(scheduled, assigned)
	}
	return scheduled, deferrals, nil
}

func (o *Orchestrator) runBilling(ctx context.Context, sum *PassSummary) error {
	completed, err := o.store.ListOccurrencesByStatus(ctx, model.StatusCompleted)
	if err != nil {
		return err
	}
	for _, occ := range completed {
		item, err := o.billing.Process(ctx, occ)
		if err != nil {
			var pue *billing.PricingUnavailableError
			if errors.As(err, &pue) {
				sum.Held++
				continue
			}
			return err
		}
		if item != nil {
			sum.Billed++
		}
	}
	return nil
}

// utilization computes mean and standard deviation of per-vehicle committed
// load over the pass horizon.
func (o *Orchestrator) utilization(vehicles []model.Vehicle, from, to time.Time) (float64, float64) {
	if len(vehicles) == 0 {
		return 0, 0
	}
	loads := make([]float64, 0, len(vehicles))
	for _, v := range vehicles {
		total := 0
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			total += o.ledger.CommittedLoad(v.ID, d)
		}
		loads = append(loads, float64(total))
	}
	mean := stat.Mean(loads, nil)
	sd := 0.0
	if len(loads) > 1 {
		sd = stat.StdDev(loads, nil)
	}
	return mean, sd
}

func (o *Orchestrator) publishResults(ctx context.Context, now, from, to time.Time, sum PassSummary) {
	if err := o.sink.RecordDispatchOutcomes(sum.outcomes()); err != nil {
		o.log.Warnf("record dispatch outcomes: %v", err)
	}
	if err := o.sink.RecordPassStats(sum.Stats()); err != nil {
		o.log.Warnf("record pass stats: %v", err)
	}
	if o.bus != nil {
		o.bus.Publish(events.PassCompleted{
			Scheduled: len(sum.Scheduled),
			Deferred:  len(sum.Deferrals),
			Failed:    len(sum.Errors),
			Missed:    sum.Missed,
			Billed:    sum.Billed,
			Duration:  sum.Duration,
		})
	}

	o.mu.Lock()
	ls := o.passLog
	o.mu.Unlock()
	if ls == nil {
		return
	}
	rec := logging.PassRecord{
		Timestamp:   now,
		WindowStart: from,
		WindowEnd:   to,
		Errors:      sum.Errors,
		Missed:      sum.Missed,
		Billed:      sum.Billed,
		Held:        sum.Held,
	}
	for _, occ := range sum.Scheduled {
		rec.Assignments = append(rec.Assignments, logging.Assignment{
			OccurrenceID: occ.ID,
			ServiceID:    occ.ServiceID,
			Date:         occ.Date,
			VehicleID:    occ.VehicleID,
			OperatorID:   occ.OperatorID,
		})
	}
	for _, d := range sum.Deferrals {
		rec.Deferrals = append(rec.Deferrals, logging.Deferral{
			ServiceID: d.Candidate.Service.ID,
			Date:      d.Candidate.Occurrence.Date,
			Reason:    string(d.Reason),
		})
	}
	if err := ls.Append(ctx, rec); err != nil {
		o.log.Warnf("append pass record: %v", err)
	}
}

func (o *Orchestrator) releaseSlots(occ model.Occurrence) {
	if occ.VehicleReservation != "" {
		if err := o.ledger.Release(occ.VehicleID, occ.VehicleReservation); err != nil {
			o.log.Warnf("release vehicle slot %s: %v", occ.VehicleID, err)
		}
	}
	if occ.OperatorReservation != "" {
		if err := o.ledger.Release(occ.OperatorID, occ.OperatorReservation); err != nil {
			o.log.Warnf("release operator slot %s: %v", occ.OperatorID, err)
		}
	}
}
