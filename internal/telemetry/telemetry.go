// Package telemetry provides OpenTelemetry metrics for draftboard.
//
// Telemetry is disabled by default (no-op providers, zero runtime overhead).
//
// # Configuration
//
//	DRAFTBOARD_OTEL_ENABLED=true   enable metrics (default: off)
//	OTEL_SERVICE_NAME=draftboard   override service name
//
// Metrics are written to stderr via the stdout exporter on a periodic reader.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/draftboard/draftboard"

var shutdownFns []func(context.Context) error

// Enabled reports whether telemetry is active (DRAFTBOARD_OTEL_ENABLED=true).
func Enabled() bool {
	return os.Getenv("DRAFTBOARD_OTEL_ENABLED") == "true"
}

// Init configures the OTel meter provider. When telemetry is disabled this
// installs a no-op provider and returns immediately.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		serviceName = name
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("telemetry: exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)
	return nil
}

// Shutdown flushes and stops all configured providers.
func Shutdown(ctx context.Context) error {
	var firstErr error
	for _, fn := range shutdownFns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	shutdownFns = nil
	return firstErr
}

// instruments holds lazily-initialized counters. Lazy init keeps package-level
// Count* helpers safe to call before (or without) Init.
var instruments struct {
	once            sync.Once
	draftsSubmitted metric.Int64Counter
	draftsApplied   metric.Int64Counter
	draftsDiscarded metric.Int64Counter
	rollbacks       metric.Int64Counter
	toolCalls       metric.Int64Counter
}

func initInstruments() {
	meter := otel.Meter(instrumentationScope)
	instruments.draftsSubmitted, _ = meter.Int64Counter("draftboard.drafts.submitted",
		metric.WithDescription("Drafts submitted to the draft engine"))
	instruments.draftsApplied, _ = meter.Int64Counter("draftboard.drafts.applied",
		metric.WithDescription("Drafts applied to the store"))
	instruments.draftsDiscarded, _ = meter.Int64Counter("draftboard.drafts.discarded",
		metric.WithDescription("Drafts discarded without applying"))
	instruments.rollbacks, _ = meter.Int64Counter("draftboard.audit.rollbacks",
		metric.WithDescription("Audit entries rolled back"))
	instruments.toolCalls, _ = meter.Int64Counter("draftboard.tools.calls",
		metric.WithDescription("Agent tool invocations"))
}

// CountDraftSubmitted records a draft submission attributed to its author.
func CountDraftSubmitted(ctx context.Context, createdBy string) {
	instruments.once.Do(initInstruments)
	instruments.draftsSubmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("created_by", createdBy)))
}

// CountDraftApplied records a successful draft application.
func CountDraftApplied(ctx context.Context, actions int) {
	instruments.once.Do(initInstruments)
	instruments.draftsApplied.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("actions", actions)))
}

// CountDraftDiscarded records a draft discard.
func CountDraftDiscarded(ctx context.Context) {
	instruments.once.Do(initInstruments)
	instruments.draftsDiscarded.Add(ctx, 1)
}

// CountRollback records a rollback of one audit entry.
func CountRollback(ctx context.Context) {
	instruments.once.Do(initInstruments)
	instruments.rollbacks.Add(ctx, 1)
}

// CountToolCall records one agent tool dispatch.
func CountToolCall(ctx context.Context, name string, success bool) {
	instruments.once.Do(initInstruments)
	instruments.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.Bool("success", success)))
}
