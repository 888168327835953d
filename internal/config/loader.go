package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/MrWong99/chirplink/pkg/chirp"
	"gopkg.in/yaml.v3"
)

// ValidDeviceNames lists the audio device backends shipped with the daemon.
// Used by [Validate] to warn about unrecognised names, which may also be
// third-party devices registered at runtime.
var ValidDeviceNames = []string{"malgo", "loopback"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	validateDeviceName(cfg.Audio.Device)
	if cfg.Audio.SampleRate != 0 && (cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000) {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 192000]", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("audio.block_size %d is negative", cfg.Audio.BlockSize))
	}
	if cfg.Audio.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("audio.queue_capacity %d is negative", cfg.Audio.QueueCapacity))
	}

	// Chirp
	proto, protoErr := chirp.ProtocolNamed(cfg.Chirp.EffectiveProtocol())
	if protoErr != nil {
		errs = append(errs, fmt.Errorf("chirp.protocol %q is invalid; valid values: standard, ultrasonic", cfg.Chirp.EffectiveProtocol()))
	}
	if v := cfg.Chirp.Volume; v != nil && (*v < 0 || *v > 1) {
		errs = append(errs, fmt.Errorf("chirp.volume %.2f is out of range [0, 1]", *v))
	}

	// Auth
	if (cfg.Auth.Key == "") != (cfg.Auth.Secret == "") {
		errs = append(errs, errors.New("auth.key and auth.secret must be set together"))
	}
	if cfg.Auth.Timeout < 0 {
		errs = append(errs, fmt.Errorf("auth.timeout %v is negative", cfg.Auth.Timeout))
	}

	// An authorization-gated protocol with no credentials can never be
	// selected; catch the misconfiguration at startup rather than at the
	// first transmit.
	if protoErr == nil && proto.RequiresAuth && cfg.Auth.Key == "" {
		errs = append(errs, fmt.Errorf("chirp.protocol %q requires authorization but auth.key is not configured", proto.Name))
	}

	return errors.Join(errs...)
}

// validateDeviceName logs a warning if name is non-empty and not a shipped
// device backend.
func validateDeviceName(name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidDeviceNames, name) {
		return
	}
	slog.Warn("unknown audio device name — may be a typo or a runtime-registered device",
		"name", name,
		"known", ValidDeviceNames,
	)
}
