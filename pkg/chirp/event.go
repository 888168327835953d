package chirp

import "time"

// ChirpEvent is one successfully decoded chirp. Events are immutable value
// objects: a new decode supersedes the previous last-heard event rather than
// mutating it.
type ChirpEvent struct {
	// Identifier is the decoded payload.
	Identifier string

	// Protocol is the name of the protocol the chirp was decoded under.
	Protocol string

	// Heard is the wall-clock time the decode completed.
	Heard time.Time

	// Confidence is the mean spectral peak-to-band ratio across the decoded
	// symbols, normalised to [0, 1]. Higher values indicate a cleaner signal.
	Confidence float64
}
