// Package telemetry installs real tracer/meter providers behind the
// otel.Tracer/otel.Meter calls internal/epoch and internal/index make
// against the global default. Those packages never import this one —
// they only call the global accessors, exactly the way
// internal/storage/dolt/store.go's doltTracer/doltMetrics comment
// describes ("uses the global provider, which is a no-op until
// telemetry.Init() is called"); that function never existed in the
// teacher's own tree, so this is the first caller of it.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and stops the providers Init installed.
type Shutdown func(context.Context) error

// Init installs stdout-exporting tracer and meter providers as the
// process-wide otel defaults. Before Init runs, every span and instrument
// call in this repo goes through the no-op default providers and costs
// nothing; after Init, spans and metric points print to stdout as they
// complete. Callers (cmd/enginectl) must invoke the returned Shutdown
// before exit or the last batch of spans/metrics is lost.
func Init() (Shutdown, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: construct trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: construct metric exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(metricExporter)
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}
