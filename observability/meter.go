package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/teashell/logger"
	"github.com/kbukum/teashell/version"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
	// Logger receives a line once the provider is installed. Optional.
	Logger *logger.Logger
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.Short(),
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The returned provider should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if config.Logger != nil {
		config.Logger.Info("meter initialized", logger.Fields(
			"service", config.ServiceName,
			"endpoint", config.Endpoint,
			"interval", config.Interval.String(),
		))
	}

	return mp, nil
}

// Meter returns the teashell meter from mp, or from the global provider
// when mp is nil.
func Meter(mp metric.MeterProvider) metric.Meter {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	return mp.Meter(ScopeName, metric.WithInstrumentationVersion(version.Short()))
}

// ProcessMetrics holds the instruments recorded over a child process lifecycle.
type ProcessMetrics struct {
	spawned           metric.Int64Counter
	spawnFailures     metric.Int64Counter
	active            metric.Int64UpDownCounter
	exited            metric.Int64Counter
	duration          metric.Float64Histogram
	outputBytes       metric.Int64Counter
	passthroughErrors metric.Int64Counter
}

// NewProcessMetrics creates metric instruments on the given meter.
func NewProcessMetrics(meter metric.Meter) (*ProcessMetrics, error) {
	spawned, err := meter.Int64Counter("process.spawned",
		metric.WithDescription("Child processes started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.spawned counter: %w", err)
	}

	spawnFailures, err := meter.Int64Counter("process.spawn_failures",
		metric.WithDescription("Child processes that failed to start"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.spawn_failures counter: %w", err)
	}

	active, err := meter.Int64UpDownCounter("process.active",
		metric.WithDescription("Child processes started and not yet completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.active gauge: %w", err)
	}

	exited, err := meter.Int64Counter("process.exited",
		metric.WithDescription("Child processes completed, by final state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.exited counter: %w", err)
	}

	duration, err := meter.Float64Histogram("process.duration",
		metric.WithDescription("Wall time from spawn to completion"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.duration histogram: %w", err)
	}

	outputBytes, err := meter.Int64Counter("process.output_bytes",
		metric.WithDescription("Bytes read from child output streams"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.output_bytes counter: %w", err)
	}

	passthroughErrors, err := meter.Int64Counter("process.passthrough_errors",
		metric.WithDescription("Writes to a passthrough destination that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.passthrough_errors counter: %w", err)
	}

	return &ProcessMetrics{
		spawned:           spawned,
		spawnFailures:     spawnFailures,
		active:            active,
		exited:            exited,
		duration:          duration,
		outputBytes:       outputBytes,
		passthroughErrors: passthroughErrors,
	}, nil
}

// RecordSpawn counts a started process and marks it active.
func (m *ProcessMetrics) RecordSpawn(ctx context.Context, program string) {
	m.spawned.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrProgram, program)))
	m.active.Add(ctx, 1)
}

// RecordSpawnFailure counts a process that could not be started.
func (m *ProcessMetrics) RecordSpawnFailure(ctx context.Context, program, code string) {
	m.spawnFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProgram, program),
		attribute.String(AttrErrorCode, code),
	))
}

// RecordExit marks a process inactive and records its final state and duration.
func (m *ProcessMetrics) RecordExit(ctx context.Context, program, state string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrProgram, program),
		attribute.String(AttrState, state),
	)
	m.active.Add(ctx, -1)
	m.exited.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOutput adds n bytes read from stream.
func (m *ProcessMetrics) RecordOutput(ctx context.Context, stream string, n int64) {
	if n <= 0 {
		return
	}
	m.outputBytes.Add(ctx, n, metric.WithAttributes(attribute.String(AttrStream, stream)))
}

// RecordPassthroughError counts a failed passthrough write on stream.
func (m *ProcessMetrics) RecordPassthroughError(ctx context.Context, stream string) {
	m.passthroughErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStream, stream)))
}
