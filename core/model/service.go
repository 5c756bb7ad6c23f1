package model

import (
	"fmt"
	"time"

	"github.com/wastemaster/wastemaster/core/recurrence"
)

// Service is a collection contract between a customer and a waste category.
// Once an occurrence has been dispatched against it the contract is immutable
// except for administrative cancellation.
type Service struct {
	ID         string
	CustomerID string
	CategoryID string
	Rule       recurrence.Rule
	Capacity   CapacityClass
	Status     ServiceStatus
}

// Validate rejects malformed contracts at creation time so that invalid
// recurrence rules never reach expansion.
func (s Service) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("service id must not be empty")
	}
	if s.CustomerID == "" {
		return fmt.Errorf("service %s: customer id must not be empty", s.ID)
	}
	if s.Capacity < ClassSmall || s.Capacity > ClassLarge {
		return fmt.Errorf("service %s: invalid capacity class %d", s.ID, s.Capacity)
	}
	if err := s.Rule.Validate(); err != nil {
		return fmt.Errorf("service %s: %w", s.ID, err)
	}
	return nil
}

// Cancelled reports whether the contract has been administratively cancelled.
func (s Service) Cancelled() bool { return s.Status == ServiceCancelled }

// WindowClosed reports whether the contract's effective range ended before
// the given date.
func (s Service) WindowClosed(date time.Time) bool {
	return s.Rule.End != nil && s.Rule.End.Before(DateOf(date))
}
