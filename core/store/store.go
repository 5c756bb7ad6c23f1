// Package store defines the persistence collaborator contract. The core
// reads and writes domain records through this interface; durable storage
// and relational integrity are the implementation's responsibility.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wastemaster/wastemaster/core/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrUnavailable indicates the backing store cannot be reached. The
	// orchestrator aborts the whole pass on it; everything else is isolated
	// per service.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrDuplicate is returned when a unique constraint would be violated,
	// e.g. a second occurrence for the same (service, date).
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the persistence contract for the scheduling core.
//
// WithTx runs fn against a transaction-bound view of the store: every write
// made through that view commits together or not at all. The dispatcher's
// reservation rows and the occurrence status update go through one WithTx
// call.
type Store interface {
	SaveCustomer(ctx context.Context, c model.Customer) error
	GetCustomer(ctx context.Context, id string) (model.Customer, error)

	SaveCategory(ctx context.Context, c model.WasteCategory) error
	GetCategory(ctx context.Context, id string) (model.WasteCategory, error)

	SaveService(ctx context.Context, s model.Service) error
	GetService(ctx context.Context, id string) (model.Service, error)
	ListActiveServices(ctx context.Context) ([]model.Service, error)
	UpdateServiceStatus(ctx context.Context, id string, status model.ServiceStatus) error

	SaveVehicle(ctx context.Context, v model.Vehicle) error
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	SaveOperator(ctx context.Context, o model.Operator) error
	ListOperators(ctx context.Context) ([]model.Operator, error)

	SaveOccurrence(ctx context.Context, o model.Occurrence) error
	UpdateOccurrence(ctx context.Context, o model.Occurrence) error
	GetOccurrence(ctx context.Context, id string) (model.Occurrence, error)
	HasOccurrence(ctx context.Context, serviceID string, date time.Time) (bool, error)
	ListOccurrencesByStatus(ctx context.Context, statuses ...model.OccurrenceStatus) ([]model.Occurrence, error)
	ListOpenOccurrencesByService(ctx context.Context, serviceID string, from time.Time) ([]model.Occurrence, error)

	SavePriceSchedule(ctx context.Context, p model.PriceSchedule) error
	ListPriceSchedules(ctx context.Context, serviceID string) ([]model.PriceSchedule, error)

	// IsBilled reports whether the occurrence already produced a line item.
	IsBilled(ctx context.Context, occurrenceID string) (bool, error)
	// AppendLineItem stores the line item and marks its occurrence billed in
	// one atomic step.
	AppendLineItem(ctx context.Context, item model.BillingLineItem) error
	// HoldOccurrence parks a completed occurrence whose pricing could not be
	// resolved, pending manual resolution.
	HoldOccurrence(ctx context.Context, occurrenceID, reason string) error
	ListLineItems(ctx context.Context) ([]model.BillingLineItem, error)
	ListHeld(ctx context.Context) (map[string]string, error)

	WithTx(ctx context.Context, fn func(Store) error) error
}
