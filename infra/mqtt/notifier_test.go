package mqtt

import (
	"testing"
	"time"

	"github.com/wastemaster/wastemaster/core/events"
	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

func TestNotifierForwardsScheduledOccurrences(t *testing.T) {
	bus := eventbus.New()
	cli := NewMockClient()
	n := NewNotifier(cli, bus, 10*time.Millisecond)

	occ := model.Occurrence{
		ID: "occ-1", ServiceID: "svc-1", CustomerID: "cust-1",
		Date:      time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Status:    model.StatusScheduled,
		VehicleID: "veh-1", OperatorID: "op-1",
	}
	bus.Publish(events.OccurrenceScheduled{Occurrence: occ})
	// An unrelated event must be ignored.
	bus.Publish(events.PassCompleted{Scheduled: 1})

	deadline := time.After(time.Second)
	for {
		cli.mu.Lock()
		got := len(cli.Orders)
		cli.mu.Unlock()
		if got == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("order never forwarded")
		case <-time.After(5 * time.Millisecond):
		}
	}
	n.Close()

	order, ok := cli.Orders["order-occ-1"]
	if !ok {
		t.Fatalf("missing order for occ-1: %+v", cli.Orders)
	}
	if order.VehicleID != "veh-1" || order.OperatorID != "op-1" {
		t.Fatalf("unexpected order: %+v", order)
	}
}
