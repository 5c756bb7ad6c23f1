// Package app wires the scheduling engine from its configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/wastemaster/wastemaster/auth"
	"github.com/wastemaster/wastemaster/config"
	"github.com/wastemaster/wastemaster/core/billing"
	"github.com/wastemaster/wastemaster/core/dispatch"
	"github.com/wastemaster/wastemaster/core/dispatch/logging"
	"github.com/wastemaster/wastemaster/core/ledger"
	"github.com/wastemaster/wastemaster/core/lifecycle"
	coremetrics "github.com/wastemaster/wastemaster/core/metrics"
	"github.com/wastemaster/wastemaster/core/orchestrator"
	"github.com/wastemaster/wastemaster/core/store"
	"github.com/wastemaster/wastemaster/infra/logger"
	"github.com/wastemaster/wastemaster/infra/metrics"
	"github.com/wastemaster/wastemaster/infra/mqtt"
	"github.com/wastemaster/wastemaster/infra/store/sqlite"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

// Service owns the scheduling engine and its collaborators.
type Service struct {
	Orchestrator *orchestrator.Orchestrator
	Lifecycle    *lifecycle.Manager
	Feed         *billing.Feed
	Store        store.Store

	bus         eventbus.EventBus
	client      *mqtt.PahoClient
	notifier    *mqtt.Notifier
	passLog     logging.LogStore
	log         logger.Logger
	promEnabled bool
	promPort    string
	interval    time.Duration
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	bus := eventbus.New()
	led := ledger.New()
	lm, err := lifecycle.NewManager(st, led, bus, logg)
	if err != nil {
		return nil, fmt.Errorf("lifecycle manager: %w", err)
	}
	feed, err := billing.NewFeed(st, bus, logg)
	if err != nil {
		return nil, fmt.Errorf("billing feed: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	orch, err := orchestrator.New(cfg.Orchestrator, st, led, dispatch.LeastLoadDispatcher{}, lm, feed, bus, sink, logg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	passLog, err := OpenPassLog(cfg.PassLog)
	if err != nil {
		return nil, fmt.Errorf("pass log: %w", err)
	}
	orch.SetPassLog(passLog)

	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	ackTimeout := 5 * time.Second
	if cfg.MQTT.AckTimeoutSeconds > 0 {
		ackTimeout = time.Duration(cfg.MQTT.AckTimeoutSeconds) * time.Second
	}
	notifier := mqtt.NewNotifier(client, bus, ackTimeout)

	verifier, err := auth.NewVerifier(cfg.Auth.Accounts)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	client.SetSignalHandler(mqtt.NewSignalDispatcher(verifier, lm).Handle)

	return &Service{
		Orchestrator: orch,
		Lifecycle:    lm,
		Feed:         feed,
		Store:        st,
		bus:          bus,
		client:       client,
		notifier:     notifier,
		passLog:      passLog,
		log:          logg,
		promEnabled:  cfg.Metrics.PrometheusEnabled,
		promPort:     cfg.Metrics.PrometheusPort,
		interval:     cfg.Orchestrator.PassInterval(),
	}, nil
}

// OpenStore opens the persistence backend named by the configuration.
func OpenStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemStore(), nil
	default:
		return sqlite.New(cfg.Path)
	}
}

// OpenPassLog opens the pass log backend named by the configuration.
func OpenPassLog(cfg config.PassLogConfig) (logging.LogStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return logging.NewSQLiteStore(cfg.Path)
	case "jsonl_rotating":
		return logging.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	default:
		return logging.NewJSONLStore(cfg.Path)
	}
}

// Run starts the pass loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	s.runPass(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Service) runPass(ctx context.Context) {
	sum, err := s.Orchestrator.RunPass(ctx, time.Now().UTC())
	if err != nil {
		if err == orchestrator.ErrPassInProgress {
			s.log.Warnf("pass skipped, previous pass still running")
			return
		}
		s.log.Errorf("pass failed: %v", err)
		return
	}
	s.log.Infof("%s", sum.String())
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.client != nil {
		s.client.Disconnect()
	}
	var err error
	if s.passLog != nil {
		err = s.passLog.Close()
	}
	if c, ok := s.Store.(interface{ Close() error }); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
