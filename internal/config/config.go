// Package config provides the configuration schema, loader, device registry,
// and file watcher for the ChirpLink daemon.
package config

import (
	"fmt"
	"time"

	"github.com/MrWong99/chirplink/pkg/chirp"
	"gopkg.in/yaml.v3"
)

// Duration wraps [time.Duration] so YAML configs can use strings like "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity for the ChirpLink daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for ChirpLink.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Audio  AudioConfig  `yaml:"audio"`
	Chirp  ChirpConfig  `yaml:"chirp"`
	Auth   AuthConfig   `yaml:"auth"`
}

// ServerConfig holds network and logging settings for the daemon's
// observability endpoint.
type ServerConfig struct {
	// ListenAddr is the TCP address the metrics/health server listens on
	// (e.g., ":9464"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig selects and parameterises the audio device.
type AudioConfig struct {
	// Device selects the registered audio device implementation
	// (e.g., "malgo", "loopback"). Empty selects the registry default.
	Device string `yaml:"device"`

	// DeviceName narrows the hardware device selection when the backend
	// exposes multiple devices. Empty uses the system default.
	DeviceName string `yaml:"device_name"`

	// SampleRate is the capture/playback rate in Hz. 0 means the backend
	// default (44100).
	SampleRate int `yaml:"sample_rate"`

	// BlockSize is the hardware period in samples. 0 means the backend
	// default (1024).
	BlockSize int `yaml:"block_size"`

	// QueueCapacity bounds the capture hand-off queue between the audio
	// callback and the decode goroutine. 0 means the engine default.
	QueueCapacity int `yaml:"queue_capacity"`
}

// ChirpConfig holds the initial engine settings. The hot-reloadable fields
// here may be changed at runtime through the config watcher.
type ChirpConfig struct {
	// Protocol names the transmission scheme ("standard", "ultrasonic").
	// Empty selects standard. Ultrasonic additionally requires auth
	// credentials below.
	Protocol string `yaml:"protocol"`

	// Volume is the engine output gain in [0, 1]. 0 is valid and means
	// muted; the field defaults to 1.0 when omitted.
	Volume *float64 `yaml:"volume"`

	// StreamingMode enables duplicate suppression for continuously repeated
	// chirps.
	StreamingMode bool `yaml:"streaming_mode"`
}

// AuthConfig holds the application credentials checked against the
// authorization service. All fields empty means offline operation: the
// daemon runs with the capabilities that need no authorization.
type AuthConfig struct {
	// Key is the application key.
	Key string `yaml:"key"`

	// Secret is the application secret.
	Secret string `yaml:"secret"`

	// Endpoint is the authorization service URL. Empty uses the service
	// default baked into the client.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds a single authorization request. 0 means the client
	// default.
	Timeout Duration `yaml:"timeout"`
}

// EffectiveVolume returns the configured volume, defaulting to full scale
// when the field is omitted.
func (c ChirpConfig) EffectiveVolume() float64 {
	if c.Volume == nil {
		return 1.0
	}
	return *c.Volume
}

// EffectiveProtocol returns the configured protocol name, defaulting to the
// standard protocol when the field is empty.
func (c ChirpConfig) EffectiveProtocol() string {
	if c.Protocol == "" {
		return chirp.ProtocolStandard
	}
	return c.Protocol
}
