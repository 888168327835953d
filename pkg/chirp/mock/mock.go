// Package mock provides an in-memory mock implementation of the
// [device.Device] interface for use in unit tests.
//
// The mock is driven manually: the test queues input PCM with [Device.Feed]
// and invokes the registered callback one block at a time with
// [Device.Pump], collecting whatever the engine wrote to the output. This
// gives tests full control over block boundaries and timing without any
// real audio hardware or goroutines.
//
// Typical usage:
//
//	dev := mock.NewDevice(44100, 512)
//	sdk, _ := chirp.New(dev)
//	_ = sdk.Start()
//	dev.Feed(waveform.Samples)
//	for dev.Pump() {
//	}
package mock

import (
	"sync"

	"github.com/MrWong99/chirplink/pkg/chirp/device"
)

// Device is a mock implementation of [device.Device].
// Set the exported fields before use; inspect the Call* fields after.
type Device struct {
	mu sync.Mutex

	// SystemVolumeResult is returned by [Device.SystemVolume]. Defaults to 1.0.
	SystemVolumeResult float64

	// StartError is returned by [Device.Start].
	StartError error

	// Played accumulates every output block the engine produced during Pump.
	Played []int16

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	rate      int
	blockSize int
	cb        device.Callback
	pending   []int16
	started   bool
}

var _ device.Device = (*Device)(nil)

// NewDevice creates a mock device with the given sample rate and block size.
func NewDevice(sampleRate, blockSize int) *Device {
	return &Device{
		SystemVolumeResult: 1.0,
		rate:               sampleRate,
		blockSize:          blockSize,
	}
}

// Start implements [device.Device]. The callback is stored; no goroutine
// runs — the test drives delivery via [Device.Pump].
func (d *Device) Start(cb device.Callback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountStart++
	if d.StartError != nil {
		return d.StartError
	}
	d.cb = cb
	d.started = true
	return nil
}

// Stop implements [device.Device].
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountStop++
	d.started = false
	return nil
}

// SampleRate implements [device.Device].
func (d *Device) SampleRate() int { return d.rate }

// SystemVolume implements [device.Device].
func (d *Device) SystemVolume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.SystemVolumeResult
}

// SetSystemVolume simulates the user moving the hardware volume control.
func (d *Device) SetSystemVolume(v float64) {
	d.mu.Lock()
	d.SystemVolumeResult = v
	d.mu.Unlock()
}

// Feed queues input PCM for delivery to the engine on subsequent Pump calls.
func (d *Device) Feed(pcm []int16) {
	d.mu.Lock()
	d.pending = append(d.pending, pcm...)
	d.mu.Unlock()
}

// FeedSilence queues n samples of silence.
func (d *Device) FeedSilence(n int) {
	d.Feed(make([]int16, n))
}

// Pump delivers one block: the next queued input block (zero-padded if the
// queue is short) goes in, and the engine's output is appended to Played.
// Returns false once the device is stopped and the input queue is empty —
// Pump keeps delivering silence blocks only while input remains.
func (d *Device) Pump() bool {
	d.mu.Lock()
	if !d.started || d.cb == nil {
		d.mu.Unlock()
		return false
	}
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return false
	}
	in := make([]int16, d.blockSize)
	n := copy(in, d.pending)
	d.pending = d.pending[n:]
	cb := d.cb
	d.mu.Unlock()

	out := make([]int16, d.blockSize)
	cb(in, out)

	d.mu.Lock()
	d.Played = append(d.Played, out...)
	d.mu.Unlock()
	return true
}

// PumpOutput delivers up to limit blocks of pure silence input, collecting
// the engine's output into Played. Use it to capture a transmitted waveform.
func (d *Device) PumpOutput(limit int) {
	for i := 0; i < limit; i++ {
		d.mu.Lock()
		started, cb := d.started, d.cb
		d.mu.Unlock()
		if !started || cb == nil {
			return
		}
		in := make([]int16, d.blockSize)
		out := make([]int16, d.blockSize)
		cb(in, out)
		d.mu.Lock()
		d.Played = append(d.Played, out...)
		d.mu.Unlock()
	}
}
