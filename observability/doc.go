// Package observability provides OpenTelemetry tracing and metrics for
// child process execution.
//
// Tracing:
//
//	cfg := observability.DefaultTracerConfig("my-service")
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	cfg := observability.DefaultMeterConfig("my-service")
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewProcessMetrics(observability.Meter(mp))
//	metrics.RecordSpawn(ctx, "git")
//
// The process engine records spawn and wait spans and ProcessMetrics on the
// global providers unless others are injected.
package observability
