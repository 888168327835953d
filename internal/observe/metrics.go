// Package observe provides application-wide observability primitives for
// ChirpLink: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ChirpLink metrics.
const meterName = "github.com/MrWong99/chirplink"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// ChirpsSent counts accepted transmits. Use with attribute:
	//   attribute.String("protocol", ...)
	ChirpsSent metric.Int64Counter

	// ChirpsHeard counts successfully decoded chirps. Use with attribute:
	//   attribute.String("protocol", ...)
	ChirpsHeard metric.Int64Counter

	// DecodeRejections counts candidate frames that failed error correction
	// or re-verification. Use with attribute:
	//   attribute.String("protocol", ...)
	DecodeRejections metric.Int64Counter

	// BlocksDropped counts capture blocks discarded because the processing
	// queue was full.
	BlocksDropped metric.Int64Counter

	// AuthRequests counts authorization attempts against the licence
	// endpoint. Use with attribute:
	//   attribute.String("status", ...)
	AuthRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveListeners tracks whether a chirp-heard listener is currently
	// registered (0 or 1 for a single engine).
	ActiveListeners metric.Int64UpDownCounter

	// --- Latency histograms ---

	// AuthRequestDuration tracks licence-endpoint round-trip latency.
	AuthRequestDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// network round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.ChirpsSent, err = m.Int64Counter("chirplink.chirps.sent",
		metric.WithDescription("Total accepted transmits by protocol."),
	); err != nil {
		return nil, err
	}
	if met.ChirpsHeard, err = m.Int64Counter("chirplink.chirps.heard",
		metric.WithDescription("Total successfully decoded chirps by protocol."),
	); err != nil {
		return nil, err
	}
	if met.DecodeRejections, err = m.Int64Counter("chirplink.decode.rejections",
		metric.WithDescription("Total candidate frames rejected by error correction, by protocol."),
	); err != nil {
		return nil, err
	}
	if met.BlocksDropped, err = m.Int64Counter("chirplink.blocks.dropped",
		metric.WithDescription("Total capture blocks dropped due to a full processing queue."),
	); err != nil {
		return nil, err
	}
	if met.AuthRequests, err = m.Int64Counter("chirplink.auth.requests",
		metric.WithDescription("Total authorization attempts by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveListeners, err = m.Int64UpDownCounter("chirplink.active_listeners",
		metric.WithDescription("Number of registered chirp-heard listeners."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.AuthRequestDuration, err = m.Float64Histogram("chirplink.auth.request.duration",
		metric.WithDescription("Licence-endpoint round-trip latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("chirplink.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAuthRequest records an authorization attempt with its round-trip
// duration in seconds.
func (m *Metrics) RecordAuthRequest(ctx context.Context, status string, seconds float64) {
	m.AuthRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.AuthRequestDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
