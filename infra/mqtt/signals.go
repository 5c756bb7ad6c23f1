package mqtt

import (
	"context"
	"time"

	"github.com/wastemaster/wastemaster/core/model"
	"github.com/wastemaster/wastemaster/infra/logger"
)

// Authenticator verifies crew credentials carried on lifecycle signals.
type Authenticator interface {
	Verify(account, secret string) (model.Actor, error)
}

// LifecycleSink applies verified lifecycle signals. Implemented by the
// lifecycle manager.
type LifecycleSink interface {
	Start(ctx context.Context, occurrenceID string, actor model.Actor, now time.Time) error
	Complete(ctx context.Context, occurrenceID string, actor model.Actor, now time.Time) error
}

// SignalDispatcher authenticates incoming signals and routes them to the
// lifecycle sink.
type SignalDispatcher struct {
	auth Authenticator
	sink LifecycleSink
	log  logger.Logger
}

// NewSignalDispatcher creates a dispatcher for crew lifecycle signals.
func NewSignalDispatcher(auth Authenticator, sink LifecycleSink) *SignalDispatcher {
	return &SignalDispatcher{auth: auth, sink: sink, log: logger.New("mqtt_signals")}
}

// Handle processes one signal. Suitable for PahoClient.SetSignalHandler.
func (d *SignalDispatcher) Handle(sig Signal) {
	actor, err := d.auth.Verify(sig.Account, sig.Secret)
	if err != nil {
		d.log.Warnf("rejected signal for %s: %v", sig.OccurrenceID, err)
		return
	}
	at := sig.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	switch sig.Action {
	case "start":
		err = d.sink.Start(ctx, sig.OccurrenceID, actor, at)
	case "complete":
		err = d.sink.Complete(ctx, sig.OccurrenceID, actor, at)
	default:
		d.log.Warnf("unknown signal action %q for %s", sig.Action, sig.OccurrenceID)
		return
	}
	if err != nil {
		d.log.Errorf("apply %s signal for %s: %v", sig.Action, sig.OccurrenceID, err)
		return
	}
	d.log.Infof("applied %s signal for %s by %s", sig.Action, sig.OccurrenceID, actor.ID)
}
