// Package mqtt defines the transport contract between the scheduling core
// and the crew terminals.
package mqtt

import "time"

// AssignmentOrder is the payload sent to a crew when an occurrence is
// scheduled.
type AssignmentOrder struct {
	OccurrenceID string    `json:"occurrence_id"`
	ServiceID    string    `json:"service_id"`
	CustomerID   string    `json:"customer_id"`
	VehicleID    string    `json:"vehicle_id"`
	OperatorID   string    `json:"operator_id"`
	Date         time.Time `json:"date"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
}

// Client represents an MQTT client capable of sending assignment orders and
// waiting for acknowledgments from crew terminals.
type Client interface {
	// SendAssignment sends the order to the assigned vehicle's topic and
	// returns the order identifier used to track the acknowledgment.
	SendAssignment(order AssignmentOrder) (orderID string, err error)

	// WaitForAck waits for an acknowledgment for the provided order
	// identifier or until the timeout expires.
	WaitForAck(orderID string, timeout time.Duration) (bool, error)
}
