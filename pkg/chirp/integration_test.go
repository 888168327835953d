package chirp_test

import (
	"testing"
	"time"

	"github.com/MrWong99/chirplink/pkg/chirp"
	"github.com/MrWong99/chirplink/pkg/chirp/device"
)

// TestSDK_LoopbackRoundTrip runs the full pipeline over the loopback device
// in real time: the SDK transmits a chirp through its own output and hears
// it on its own input, exercising render, playback pull, capture hand-off,
// and decode together.
func TestSDK_LoopbackRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("plays a full chirp in real time")
	}

	dev := device.NewLoopback(44100, 1024,
		device.WithLoopbackGain(0.8),
		device.WithRealtimePacing(),
	)
	sdk, err := chirp.New(dev, chirp.WithQueueCapacity(128))
	if err != nil {
		t.Fatal(err)
	}
	defer sdk.Close()

	heard := make(chan *chirp.ChirpEvent, 1)
	sdk.SetChirpHeardFunc(func(ev *chirp.ChirpEvent, err error) {
		if err != nil {
			t.Errorf("heard callback error = %v", err)
			return
		}
		select {
		case heard <- ev:
		default:
		}
	})

	p := sdk.Protocol()
	id := p.RandomIdentifier()
	if err := sdk.Send(id); err != nil {
		t.Fatalf("Send(%q) error = %v", id, err)
	}

	select {
	case ev := <-heard:
		if ev.Identifier != id {
			t.Errorf("heard %q, want %q", ev.Identifier, id)
		}
		if ev.Confidence <= 0 {
			t.Errorf("Confidence = %v, want positive", ev.Confidence)
		}
	case <-time.After(p.ChirpDuration() + 5*time.Second):
		t.Fatalf("chirp %q not heard over loopback", id)
	}

	waitFor(t, "return to Receiving", func() bool {
		return sdk.State() == chirp.StateReceiving
	})
}
