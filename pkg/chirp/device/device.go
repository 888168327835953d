// Package device abstracts full-duplex audio hardware for the ChirpLink
// engine.
//
// The [Device] interface is intentionally narrow: a device delivers captured
// input blocks and requests output blocks through a single callback, and is
// otherwise opaque. Two implementations are provided:
//
//   - [Malgo] — real hardware via the miniaudio bindings.
//   - [Loopback] — a pure-Go device that feeds its own output back into its
//     input, for tests and offline development.
//
// External code may implement [Device] to adapt other audio stacks.
package device

// Callback is invoked once per hardware period on the device's real-time
// audio thread. in holds the newly captured mono PCM block; the callback
// must fill out with the next block to play (zero it for silence).
//
// Implementations of [Device] guarantee len(in) == len(out). The callback
// must never block: no locks held across slow operations, no channel sends
// without a default case.
type Callback func(in, out []int16)

// Device is a running full-duplex mono audio stream.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// Start opens the hardware stream and begins invoking cb. Calling Start
	// on a started device is a no-op.
	Start(cb Callback) error

	// Stop tears the stream down. No callback invocations occur after Stop
	// returns. Calling Stop on a stopped device is a no-op.
	Stop() error

	// SampleRate returns the stream's sample rate in Hz. Valid before Start.
	SampleRate() int

	// SystemVolume returns the hardware output volume in [0, 1] as set by
	// the user through device controls. Implementations that cannot read it
	// report 1.0.
	SystemVolume() float64
}
