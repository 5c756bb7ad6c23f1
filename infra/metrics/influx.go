package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/wastemaster/wastemaster/core/metrics"
	"github.com/wastemaster/wastemaster/infra/logger"
)

// InfluxSink writes scheduling events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDispatchOutcomes writes the dispatch outcomes as line protocol events.
func (s *InfluxSink) RecordDispatchOutcomes(outcomes []coremetrics.DispatchOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	now := time.Now()
	for _, o := range outcomes {
		p := write.NewPointWithMeasurement("dispatch_outcome").
			AddTag("service_id", o.ServiceID).
			AddTag("status", o.Status).
			AddTag("component", "orchestrator").
			AddField("occurrence_id", o.OccurrenceID).
			AddField("vehicle_id", o.VehicleID).
			AddField("operator_id", o.OperatorID).
			AddField("reason", o.Reason).
			SetTime(now)
		if !o.Date.IsZero() {
			p.AddTag("date", o.Date.Format("2006-01-02"))
		}
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordPassStats persists the summary of one scheduling pass.
func (s *InfluxSink) RecordPassStats(stats coremetrics.PassStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("scheduling_pass").
		AddTag("component", "orchestrator").
		AddField("scheduled", stats.Scheduled).
		AddField("deferred", stats.Deferred).
		AddField("failed", stats.Failed).
		AddField("missed", stats.Missed).
		AddField("billed", stats.Billed).
		AddField("held", stats.Held).
		AddField("duration_ms", stats.Duration.Milliseconds()).
		AddField("mean_vehicle_load", stats.MeanVehicleLoad).
		AddField("vehicle_load_stddev", stats.LoadStdDev).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}
