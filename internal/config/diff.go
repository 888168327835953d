package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; audio device and
// server changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ProtocolChanged bool
	NewProtocol     string

	VolumeChanged bool
	NewVolume     float64

	StreamingModeChanged bool
	NewStreamingMode     bool
}

// Empty reports whether no hot-reloadable field changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ProtocolChanged && !d.VolumeChanged && !d.StreamingModeChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Chirp.EffectiveProtocol() != new.Chirp.EffectiveProtocol() {
		d.ProtocolChanged = true
		d.NewProtocol = new.Chirp.EffectiveProtocol()
	}
	if old.Chirp.EffectiveVolume() != new.Chirp.EffectiveVolume() {
		d.VolumeChanged = true
		d.NewVolume = new.Chirp.EffectiveVolume()
	}
	if old.Chirp.StreamingMode != new.Chirp.StreamingMode {
		d.StreamingModeChanged = true
		d.NewStreamingMode = new.Chirp.StreamingMode
	}
	return d
}
