package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/chirplink/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_SampleRateOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  sample_rate: 4000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range sample rate, got nil")
	}
	if !strings.Contains(err.Error(), "sample_rate") {
		t.Errorf("error should mention sample_rate, got: %v", err)
	}
}

func TestValidate_UnknownProtocol(t *testing.T) {
	t.Parallel()
	yaml := `
chirp:
  protocol: warbler
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown protocol, got nil")
	}
	if !strings.Contains(err.Error(), "protocol") {
		t.Errorf("error should mention protocol, got: %v", err)
	}
}

func TestValidate_VolumeOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
chirp:
  volume: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range volume, got nil")
	}
	if !strings.Contains(err.Error(), "volume") {
		t.Errorf("error should mention volume, got: %v", err)
	}
}

func TestValidate_AuthKeyWithoutSecret(t *testing.T) {
	t.Parallel()
	yaml := `
auth:
  key: app-key-only
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for key without secret, got nil")
	}
	if !strings.Contains(err.Error(), "auth.key and auth.secret") {
		t.Errorf("error should mention the key/secret pairing, got: %v", err)
	}
}

func TestValidate_UltrasonicRequiresCredentials(t *testing.T) {
	t.Parallel()
	yaml := `
chirp:
  protocol: ultrasonic
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for ultrasonic without credentials, got nil")
	}
	if !strings.Contains(err.Error(), "requires authorization") {
		t.Errorf("error should mention authorization, got: %v", err)
	}
}

func TestValidate_UltrasonicWithCredentialsIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
chirp:
  protocol: ultrasonic
auth:
  key: app-key
  secret: app-secret
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
chirp:
  protocol: warbler
  volume: -0.2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "protocol", "volume"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
chirp:
  protocl: standard
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
	if !strings.Contains(err.Error(), "decode yaml") {
		t.Errorf("error should come from the decoder, got: %v", err)
	}
}

func TestValidDeviceNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidDeviceNames) == 0 {
		t.Fatal("ValidDeviceNames should not be empty")
	}
	found := false
	for _, n := range config.ValidDeviceNames {
		if n == "loopback" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidDeviceNames should contain \"loopback\"")
	}
}
