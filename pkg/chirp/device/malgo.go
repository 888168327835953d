package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// DefaultSampleRate is used when [MalgoConfig.SampleRate] is zero.
const DefaultSampleRate = 44100

// DefaultBlockSize is the hardware period length in frames when
// [MalgoConfig.BlockSize] is zero.
const DefaultBlockSize = 1024

// MalgoConfig configures a [Malgo] device.
type MalgoConfig struct {
	// SampleRate in Hz. Zero selects [DefaultSampleRate].
	SampleRate int

	// BlockSize is the hardware period length in frames. Zero selects
	// [DefaultBlockSize].
	BlockSize int
}

// Malgo is a [Device] backed by the miniaudio library: one full-duplex mono
// stream on the system default capture and playback devices.
type Malgo struct {
	cfg MalgoConfig

	mu      sync.Mutex
	allocd  *malgo.AllocatedContext
	dev     *malgo.Device
	started bool

	// Reused between callbacks to avoid per-period allocation.
	inBuf, outBuf []int16
}

// NewMalgo creates an unstarted miniaudio device.
func NewMalgo(cfg MalgoConfig) *Malgo {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	return &Malgo{cfg: cfg}
}

// Start implements [Device].
func (m *Malgo) Start(cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	allocd, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return fmt.Errorf("device: init audio context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Duplex)
	devCfg.SampleRate = uint32(m.cfg.SampleRate)
	devCfg.PeriodSizeInFrames = uint32(m.cfg.BlockSize)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Playback.Format = malgo.FormatS16
	devCfg.Playback.Channels = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, in []byte, frameCount uint32) {
			n := int(frameCount)
			if cap(m.inBuf) < n {
				m.inBuf = make([]int16, n)
				m.outBuf = make([]int16, n)
			}
			inPCM := m.inBuf[:n]
			outPCM := m.outBuf[:n]
			for i := 0; i < n; i++ {
				inPCM[i] = int16(binary.LittleEndian.Uint16(in[i*2:]))
				outPCM[i] = 0
			}
			cb(inPCM, outPCM)
			for i := 0; i < n; i++ {
				binary.LittleEndian.PutUint16(out[i*2:], uint16(outPCM[i]))
			}
		},
	}

	dev, err := malgo.InitDevice(allocd.Context, devCfg, callbacks)
	if err != nil {
		_ = allocd.Uninit()
		allocd.Free()
		return fmt.Errorf("device: init duplex device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = allocd.Uninit()
		allocd.Free()
		return fmt.Errorf("device: start duplex device: %w", err)
	}

	m.allocd = allocd
	m.dev = dev
	m.started = true
	return nil
}

// Stop implements [Device].
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	_ = m.dev.Stop()
	m.dev.Uninit()
	_ = m.allocd.Uninit()
	m.allocd.Free()
	m.dev = nil
	m.allocd = nil
	m.started = false
	return nil
}

// SampleRate implements [Device].
func (m *Malgo) SampleRate() int { return m.cfg.SampleRate }

// SystemVolume implements [Device]. miniaudio exposes no portable read of
// the OS mixer volume, so the hardware volume is reported as full scale.
func (m *Malgo) SystemVolume() float64 { return 1.0 }
