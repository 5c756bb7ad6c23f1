package mqtt

import (
	"time"

	"github.com/wastemaster/wastemaster/core/events"
	coremqtt "github.com/wastemaster/wastemaster/core/mqtt"
	"github.com/wastemaster/wastemaster/infra/logger"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

// Notifier forwards scheduled occurrences from the event bus to the crew
// terminals as assignment orders.
type Notifier struct {
	cli        coremqtt.Client
	bus        eventbus.EventBus
	sub        <-chan eventbus.Event
	ackTimeout time.Duration
	log        logger.Logger
	done       chan struct{}
}

// NewNotifier subscribes to the bus and starts forwarding in the background.
func NewNotifier(cli coremqtt.Client, bus eventbus.EventBus, ackTimeout time.Duration) *Notifier {
	n := &Notifier{
		cli:        cli,
		bus:        bus,
		sub:        bus.Subscribe(),
		ackTimeout: ackTimeout,
		log:        logger.New("mqtt_notifier"),
		done:       make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.done)
	for ev := range n.sub {
		scheduled, ok := ev.(events.OccurrenceScheduled)
		if !ok {
			continue
		}
		occ := scheduled.Occurrence
		orderID, err := n.cli.SendAssignment(coremqtt.AssignmentOrder{
			OccurrenceID: occ.ID,
			ServiceID:    occ.ServiceID,
			CustomerID:   occ.CustomerID,
			VehicleID:    occ.VehicleID,
			OperatorID:   occ.OperatorID,
			Date:         occ.Date,
			WindowStart:  occ.WindowStart,
			WindowEnd:    occ.WindowEnd,
		})
		if err != nil {
			n.log.Errorf("send assignment for %s: %v", occ.ID, err)
			continue
		}
		acked, err := n.cli.WaitForAck(orderID, n.ackTimeout)
		if err != nil || !acked {
			n.log.Warnf("order %s for %s not acknowledged: %v", orderID, occ.ID, err)
			continue
		}
		n.log.Debugf("order %s acknowledged by crew of %s", orderID, occ.VehicleID)
	}
}

// Close unsubscribes from the bus and waits for the forwarder to drain.
func (n *Notifier) Close() {
	n.bus.Unsubscribe(n.sub)
	<-n.done
}
