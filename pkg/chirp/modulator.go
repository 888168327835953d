package chirp

import (
	"math"
	"time"
)

// peakAmplitude leaves headroom below full-scale int16 so the raised-cosine
// ramps never clip after device-side volume scaling.
const peakAmplitude = 0.8 * 32767

// rampDuration is the raised-cosine attack/release applied to each tone to
// suppress spectral splatter at symbol boundaries.
const rampDuration = 4 * time.Millisecond

// Waveform is a rendered chirp: mono 16-bit PCM at a fixed sample rate,
// sized to the protocol's total chirp duration.
type Waveform struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the playback length of the waveform.
func (w *Waveform) Duration() time.Duration {
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Modulator renders identifiers into tone-sequence waveforms for a single
// protocol and sample rate. Render is a pure transform — playback is the
// audio engine's responsibility.
//
// A Modulator is not safe for concurrent use; the owning session serialises
// access.
type Modulator struct {
	// Gain scales the output amplitude, range [0, 1]. Defaults to full scale.
	Gain float64

	protocol   *Protocol
	sampleRate int
}

// NewModulator creates a modulator for the given protocol and device sample
// rate.
func NewModulator(p *Protocol, sampleRate int) *Modulator {
	return &Modulator{
		Gain:       1.0,
		protocol:   p,
		sampleRate: sampleRate,
	}
}

// Render converts a valid identifier into its on-air waveform: the two
// front-door marker tones followed by payload and parity symbols, one tone
// per symbol. Returns [ErrInvalidIdentifier] when the identifier does not
// satisfy the protocol.
func (m *Modulator) Render(identifier string) (*Waveform, error) {
	if !m.protocol.IsValidIdentifier(identifier) {
		return nil, ErrInvalidIdentifier
	}
	return m.renderSymbols(m.protocol.symbolsOf(identifier)), nil
}

// RenderArray is the raw-payload variant of [Modulator.Render].
func (m *Modulator) RenderArray(symbols []int) (*Waveform, error) {
	if !m.protocol.IsValidArray(symbols) {
		return nil, ErrInvalidIdentifier
	}
	return m.renderSymbols(symbols), nil
}

func (m *Modulator) renderSymbols(data []int) *Waveform {
	p := m.protocol
	codeword := p.rs.encode(data)

	freqs := make([]float64, 0, p.SymbolCount())
	freqs = append(freqs, p.MarkerFreq(0), p.MarkerFreq(1))
	for _, sym := range codeword {
		freqs = append(freqs, p.ToneFreq(sym))
	}

	symLen := symbolSamples(m.sampleRate)
	samples := make([]int16, 0, len(freqs)*symLen)
	for _, f := range freqs {
		samples = m.appendTone(samples, f, symLen)
	}
	return &Waveform{Samples: samples, SampleRate: m.sampleRate}
}

// appendTone writes one raised-cosine-shaped sine tone of symLen samples.
func (m *Modulator) appendTone(out []int16, freq float64, symLen int) []int16 {
	ramp := int(float64(m.sampleRate) * rampDuration.Seconds())
	if 2*ramp > symLen {
		ramp = symLen / 2
	}
	amp := m.Gain * peakAmplitude
	step := 2 * math.Pi * freq / float64(m.sampleRate)

	for i := 0; i < symLen; i++ {
		env := 1.0
		switch {
		case i < ramp:
			env = 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(ramp)))
		case i >= symLen-ramp:
			env = 0.5 * (1 - math.Cos(math.Pi*float64(symLen-1-i)/float64(ramp)))
		}
		out = append(out, int16(amp*env*math.Sin(step*float64(i))))
	}
	return out
}
