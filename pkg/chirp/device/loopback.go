package device

import (
	"sync"
	"time"
)

// Loopback is a pure-Go [Device] that plays its output straight back into
// its input, optionally attenuated. It lets the full encode→decode pipeline
// run without sound hardware, which makes it the device of choice for tests
// and headless development.
type Loopback struct {
	rate      int
	blockSize int
	gain      float64 // applied to the fed-back signal
	paced     bool    // when true, blocks are delivered in real time

	mu     sync.Mutex
	sysVol float64
	done   chan struct{}
	wg     sync.WaitGroup
}

// LoopbackOption configures a [Loopback].
type LoopbackOption func(*Loopback)

// WithLoopbackGain attenuates the fed-back signal by the given factor.
func WithLoopbackGain(gain float64) LoopbackOption {
	return func(l *Loopback) { l.gain = gain }
}

// WithRealtimePacing delivers blocks at the wall-clock cadence the sample
// rate implies, instead of as fast as the consumer accepts them.
func WithRealtimePacing() LoopbackOption {
	return func(l *Loopback) { l.paced = true }
}

// NewLoopback creates an unstarted loopback device.
func NewLoopback(sampleRate, blockSize int, opts ...LoopbackOption) *Loopback {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	l := &Loopback{
		rate:      sampleRate,
		blockSize: blockSize,
		gain:      1.0,
		sysVol:    1.0,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start implements [Device]. The pump goroutine alternates two buffers so
// that each output block reappears as the next input block.
func (l *Loopback) Start(cb Callback) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return nil
	}
	done := make(chan struct{})
	l.done = done

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		in := make([]int16, l.blockSize)
		out := make([]int16, l.blockSize)

		var tick <-chan time.Time
		if l.paced {
			t := time.NewTicker(time.Duration(l.blockSize) * time.Second / time.Duration(l.rate))
			defer t.Stop()
			tick = t.C
		}

		for {
			select {
			case <-done:
				return
			default:
			}
			if tick != nil {
				select {
				case <-done:
					return
				case <-tick:
				}
			}

			for i := range out {
				out[i] = 0
			}
			cb(in, out)
			for i, s := range out {
				in[i] = int16(float64(s) * l.gain)
			}
		}
	}()
	return nil
}

// Stop implements [Device]. It waits for the pump goroutine to exit so no
// callback runs after Stop returns.
func (l *Loopback) Stop() error {
	l.mu.Lock()
	if l.done == nil {
		l.mu.Unlock()
		return nil
	}
	close(l.done)
	l.done = nil
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

// SampleRate implements [Device].
func (l *Loopback) SampleRate() int { return l.rate }

// SystemVolume implements [Device].
func (l *Loopback) SystemVolume() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sysVol
}

// SetSystemVolume simulates the user moving the hardware volume control.
func (l *Loopback) SetSystemVolume(v float64) {
	l.mu.Lock()
	l.sysVol = v
	l.mu.Unlock()
}
