package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineRecorder adapts [Metrics] to the chirp engine's telemetry interface.
// The engine invokes these methods from its processing goroutine, so they
// must never block; the OTel instruments satisfy that.
type EngineRecorder struct {
	m *Metrics
}

// NewEngineRecorder wraps the given Metrics as an engine telemetry recorder.
func NewEngineRecorder(m *Metrics) *EngineRecorder {
	return &EngineRecorder{m: m}
}

// ChirpSent records an accepted transmit.
func (r *EngineRecorder) ChirpSent(protocol string) {
	r.m.ChirpsSent.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("protocol", protocol)),
	)
}

// ChirpHeard records a successfully decoded chirp.
func (r *EngineRecorder) ChirpHeard(protocol string) {
	r.m.ChirpsHeard.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("protocol", protocol)),
	)
}

// DecodeRejected records a candidate frame that failed error correction.
func (r *EngineRecorder) DecodeRejected(protocol string) {
	r.m.DecodeRejections.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("protocol", protocol)),
	)
}

// BlockDropped records a capture block discarded on queue overflow.
func (r *EngineRecorder) BlockDropped() {
	r.m.BlocksDropped.Add(context.Background(), 1)
}
