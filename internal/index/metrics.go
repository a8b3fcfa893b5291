package index

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// indexTracer and indexMetrics follow internal/storage/dolt/store.go's
// package-level otel.Tracer(name)/otel.Meter(name) pattern: both are
// no-ops against the default global providers, cheap until a caller
// installs a real one (see internal/telemetry).
var indexTracer = otel.Tracer("github.com/latchdb/latchdb/internal/index")

var indexMetrics struct {
	casRetries       metric.Int64Histogram
	uniqueViolations metric.Int64Counter
	unsupportedScans metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/latchdb/latchdb/internal/index")
	var err error
	if indexMetrics.casRetries, err = m.Int64Histogram("index.cas_retries",
		metric.WithDescription("number of CAS attempts a bwtree/skiplist mutation needed before it committed or gave up"),
		metric.WithUnit("{retry}")); err != nil {
		panic(err)
	}
	if indexMetrics.uniqueViolations, err = m.Int64Counter("index.unique_violations",
		metric.WithDescription("inserts rejected by a unique index's constraint check")); err != nil {
		panic(err)
	}
	if indexMetrics.unsupportedScans, err = m.Int64Counter("index.unsupported_scans",
		metric.WithDescription("scan_range/scan_all/lower_bound calls rejected by a shape that doesn't support them")); err != nil {
		panic(err)
	}
}

// casSpan starts a span around a CAS-retry loop (bwtree/skiplist
// insert/delete), returning an End func that also records the attempt
// count against the cas_retries histogram.
func casSpan(op string) func(attempts int) {
	_, span := indexTracer.Start(context.Background(), "index."+op)
	return func(attempts int) {
		indexMetrics.casRetries.Record(context.Background(), int64(attempts))
		span.End()
	}
}

func recordUniqueViolation() {
	indexMetrics.uniqueViolations.Add(context.Background(), 1)
}

func recordUnsupportedScan() {
	indexMetrics.unsupportedScans.Add(context.Background(), 1)
}
