package chirp

// Recorder receives pipeline telemetry from the engine. The application
// wires an implementation backed by its metrics stack; the SDK itself stays
// free of exporter dependencies.
//
// Implementations must be safe for concurrent use and must not block — some
// methods are invoked from the audio path.
type Recorder interface {
	// ChirpSent is invoked once per accepted transmit.
	ChirpSent(protocol string)

	// ChirpHeard is invoked once per emitted ChirpEvent.
	ChirpHeard(protocol string)

	// DecodeRejected is invoked when a candidate symbol sequence fails the
	// demodulator's local checks.
	DecodeRejected(protocol string)

	// BlockDropped is invoked when the bounded capture queue overflows and
	// the oldest unprocessed block is discarded.
	BlockDropped()
}

// nopRecorder is the default Recorder when none is configured.
type nopRecorder struct{}

func (nopRecorder) ChirpSent(string)      {}
func (nopRecorder) ChirpHeard(string)     {}
func (nopRecorder) DecodeRejected(string) {}
func (nopRecorder) BlockDropped()         {}
