package model

import (
	"fmt"
	"time"
)

// CapacityClass ranks the volume/weight requirement of a pickup. A resource
// can serve any service whose class is less than or equal to its own.
type CapacityClass int

const (
	ClassSmall CapacityClass = iota + 1
	ClassMedium
	ClassLarge
)

// String returns a human-readable representation of the capacity class.
func (c CapacityClass) String() string {
	switch c {
	case ClassSmall:
		return "small"
	case ClassMedium:
		return "medium"
	case ClassLarge:
		return "large"
	default:
		return "unknown"
	}
}

// Customer is referenced by services and occurrences but owned by the
// persistence collaborator.
type Customer struct {
	ID      string
	Name    string
	Address string
	Active  bool
}

// WasteCategory describes a waste stream and the weekday the municipality
// collects it on.
type WasteCategory struct {
	ID            string
	Name          string
	CollectionDay time.Weekday
}

// ServiceStatus is the administrative state of a service contract.
type ServiceStatus int

const (
	ServiceActive ServiceStatus = iota
	ServiceCancelled
)

// String returns a human-readable representation of the service status.
func (s ServiceStatus) String() string {
	switch s {
	case ServiceActive:
		return "active"
	case ServiceCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Vehicle is a collection vehicle with a fixed capacity class.
type Vehicle struct {
	ID        string
	Plate     string
	Capacity  CapacityClass
	Available bool
}

// Validate checks that the vehicle configuration is sound.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	if v.Capacity < ClassSmall || v.Capacity > ClassLarge {
		return fmt.Errorf("vehicle %s: invalid capacity class %d", v.ID, v.Capacity)
	}
	return nil
}

// Operator is a field employee qualified up to a capacity class.
type Operator struct {
	ID        string
	Name      string
	Capacity  CapacityClass
	Available bool
}

// Validate checks that the operator configuration is sound.
func (o Operator) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("operator id must not be empty")
	}
	if o.Capacity < ClassSmall || o.Capacity > ClassLarge {
		return fmt.Errorf("operator %s: invalid capacity class %d", o.ID, o.Capacity)
	}
	return nil
}

// Role of an authenticated actor issuing lifecycle commands.
type Role int

const (
	RoleOperator Role = iota
	RoleAdministrator
)

// String returns a human-readable representation of the role.
func (r Role) String() string {
	switch r {
	case RoleOperator:
		return "operator"
	case RoleAdministrator:
		return "administrator"
	default:
		return "unknown"
	}
}

// Actor is an already-authenticated identity. Authentication itself is the
// responsibility of the auth collaborator.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// IsAdmin reports whether the actor may perform administrative operations.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdministrator }

// DateOf truncates t to midnight UTC. Occurrence target dates are always
// normalized this way so that (service, date) comparisons are exact.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
