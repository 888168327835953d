package chirp

// AudioState enumerates the activity modes of the audio engine. Exactly one
// state is active at a time; transitions are serialized by the session's
// mutual-exclusion domain and reported through the state-changed callback.
type AudioState int

const (
	// StateStopped means the audio engine is not running.
	StateStopped AudioState = iota

	// StateReady means the engine is running but neither playing nor
	// receiving a chirp.
	StateReady

	// StateChirping means the engine is currently outputting chirp audio.
	StateChirping

	// StateStreaming means the engine is tracking a continuously repeated
	// chirp stream (streaming mode only).
	StateStreaming

	// StateReceiving means the engine is listening for incoming chirps.
	StateReceiving
)

// String returns the human-readable name of the state.
func (s AudioState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateReady:
		return "READY"
	case StateChirping:
		return "CHIRPING"
	case StateStreaming:
		return "STREAMING"
	case StateReceiving:
		return "RECEIVING"
	default:
		return "UNKNOWN"
	}
}
