package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/chirplink/pkg/chirp/device"
)

// ErrDeviceNotRegistered is returned by [Registry.CreateDevice] when no
// factory has been registered under the requested device name.
var ErrDeviceNotRegistered = errors.New("config: audio device not registered")

// DeviceFactory builds an audio device from an [AudioConfig].
type DeviceFactory func(AudioConfig) (device.Device, error)

// Registry maps audio device names to their constructor functions. The
// daemon registers its built-in backends at startup; embedding applications
// may register additional ones. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	devices     map[string]DeviceFactory
	defaultName string
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]DeviceFactory)}
}

// RegisterDevice registers a device factory under name. The first
// registration becomes the default used when the config names no device.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterDevice(name string, factory DeviceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.devices) == 0 {
		r.defaultName = name
	}
	r.devices[name] = factory
}

// CreateDevice instantiates the audio device selected by cfg.Device, or the
// default registration when cfg.Device is empty. Returns
// [ErrDeviceNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateDevice(cfg AudioConfig) (device.Device, error) {
	name := cfg.Device
	r.mu.RLock()
	if name == "" {
		name = r.defaultName
	}
	factory, ok := r.devices[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotRegistered, name)
	}
	return factory(cfg)
}

// DeviceNames returns the registered device names, default first.
func (r *Registry) DeviceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	if r.defaultName != "" {
		names = append(names, r.defaultName)
	}
	for name := range r.devices {
		if name != r.defaultName {
			names = append(names, name)
		}
	}
	return names
}
