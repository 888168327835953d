package chirp

import "errors"

// Sentinel errors returned by the SDK. Callers should test with [errors.Is]
// because returned errors may carry additional context via wrapping.
var (
	// ErrInvalidIdentifier indicates an identifier, symbol array, or shortcode
	// that does not satisfy the active protocol's alphabet or length
	// constraints. Validation fails closed: malformed input is reported, never
	// panicked on.
	ErrInvalidIdentifier = errors.New("chirp: invalid identifier for active protocol")

	// ErrInvalidProtocol indicates an unknown protocol name was passed to
	// [SDK.SetProtocolNamed]. The previously active protocol remains selected.
	ErrInvalidProtocol = errors.New("chirp: unknown protocol name")

	// ErrNotAuthorized indicates a protocol that requires elevated
	// authorization (e.g. "ultrasonic") was selected before a successful
	// authentication. The previously active protocol remains selected.
	ErrNotAuthorized = errors.New("chirp: protocol requires authorization")

	// ErrProtocolBusy indicates a protocol change was attempted while the
	// engine was Chirping or Receiving.
	ErrProtocolBusy = errors.New("chirp: cannot change protocol while chirping or receiving")

	// ErrEngineBusy indicates a second transmit was attempted while a chirp
	// was already playing. Transmits are never queued.
	ErrEngineBusy = errors.New("chirp: a chirp is already playing")

	// ErrEngineClosed indicates an operation on an SDK instance after
	// [SDK.Close].
	ErrEngineClosed = errors.New("chirp: engine is closed")
)
