package device_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/chirplink/pkg/chirp/device"
)

func TestLoopback_FeedsOutputBack(t *testing.T) {
	l := device.NewLoopback(44100, 256, device.WithLoopbackGain(0.5))

	captured := make(chan int16, 4)
	var calls atomic.Int32
	err := l.Start(func(in, out []int16) {
		if n := calls.Add(1); n <= 3 {
			captured <- in[0]
		}
		out[0] = 1000
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	read := func() int16 {
		select {
		case v := <-captured:
			return v
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for loopback callback")
			return 0
		}
	}
	if v := read(); v != 0 {
		t.Errorf("first input sample = %d, want 0 (nothing played yet)", v)
	}
	// each output reappears as the next input, attenuated by the gain
	for i := 0; i < 2; i++ {
		if v := read(); v != 500 {
			t.Errorf("fed-back sample = %d, want 500 (1000 × gain 0.5)", v)
		}
	}

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != after {
		t.Errorf("callbacks continued after Stop: %d → %d", after, got)
	}
}

func TestLoopback_StartStopIdempotent(t *testing.T) {
	l := device.NewLoopback(0, 0) // defaults apply

	if l.SampleRate() != device.DefaultSampleRate {
		t.Errorf("SampleRate() = %d, want default %d", l.SampleRate(), device.DefaultSampleRate)
	}
	if err := l.Start(func(in, out []int16) {}); err != nil {
		t.Fatal(err)
	}
	if err := l.Start(func(in, out []int16) {}); err != nil {
		t.Errorf("second Start() error = %v, want no-op", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := l.Stop(); err != nil {
		t.Errorf("second Stop() error = %v, want no-op", err)
	}
}

func TestLoopback_SystemVolume(t *testing.T) {
	l := device.NewLoopback(44100, 256)

	if v := l.SystemVolume(); v != 1.0 {
		t.Errorf("SystemVolume() = %v, want 1.0 initially", v)
	}
	l.SetSystemVolume(0.25)
	if v := l.SystemVolume(); v != 0.25 {
		t.Errorf("SystemVolume() after set = %v, want 0.25", v)
	}
}
