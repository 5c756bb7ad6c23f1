package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/wastemaster/wastemaster/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockClient is a simple assignment publisher used in tests.
type MockClient struct {
	Orders     map[string]coremqtt.AssignmentOrder
	FailIDs    map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		Orders:     make(map[string]coremqtt.AssignmentOrder),
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendAssignment records the order or returns an error if configured to fail.
func (m *MockClient) SendAssignment(order coremqtt.AssignmentOrder) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[order.VehicleID] {
		return "", fmt.Errorf("publish failed")
	}
	orderID := fmt.Sprintf("order-%s", order.OccurrenceID)
	m.Orders[orderID] = order
	m.AckResults[orderID] = true
	return orderID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockClient) WaitForAck(orderID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[orderID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("unknown order")
	}
	return ok, nil
}
