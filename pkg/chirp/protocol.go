// Package chirp implements the ChirpLink acoustic data link: encoding short
// identifiers into audible or ultrasonic tone sequences, playing them through
// the system audio output, and decoding them from a live microphone stream.
//
// The package is organised as a pipeline:
//
//   - [Protocol] — the immutable tone plan, alphabet, and error-correction
//     parameters for a named transmission scheme.
//   - identifier codec ([Protocol.IsValidIdentifier], [Protocol.RandomIdentifier])
//     — validates and generates identifiers against the active protocol.
//   - [Modulator] — pure transform from identifier to PCM waveform.
//   - [Demodulator] — stateful spectral analyser turning PCM blocks into
//     decoded [ChirpEvent] values.
//   - [SDK] — the session controller owning the audio device, engine state
//     machine, and callback registrations.
//
// A typical caller constructs an [SDK] over a [device.Device], registers a
// chirp-heard callback, and calls [SDK.Send] to transmit.
package chirp

import (
	"math"
	"time"
)

// Built-in protocol names. Selecting a non-standard protocol requires
// elevated authorization (a successful [SDK.Authenticate]).
const (
	// ProtocolStandard is the audible protocol: 50-bit identifiers as ten
	// symbols over a 32-character alphabet, tones between roughly 2.7 and
	// 5.5 kHz.
	ProtocolStandard = "standard"

	// ProtocolUltrasonic is the near-inaudible protocol: 32-bit identifiers
	// as eight symbols over a 16-character alphabet, tones between roughly
	// 18 and 19.4 kHz.
	ProtocolUltrasonic = "ultrasonic"
)

// Reference DFT grid. Tone frequencies are defined as bin indices of a
// 4096-point transform at 44.1 kHz so that, at the reference rate, every tone
// falls exactly on an analysis bin. At other device rates the demodulator
// scales its window to preserve the symbol duration.
const (
	refSampleRate = 44100
	refWindow     = 4096
)

// binFreq returns the frequency in Hz of a reference-grid bin.
func binFreq(bin int) float64 {
	return float64(bin) * refSampleRate / refWindow
}

// Protocol is a named, immutable configuration of the chirp encoding:
// identifier alphabet and length, tone plan, and error-correction parameters.
// Exactly one protocol is active on an [SDK] at a time; selecting a new one
// resets all codec, modulator, and demodulator state.
//
// The concrete scheme here is ChirpLink's own. It makes no compatibility
// claim with any other acoustic protocol.
type Protocol struct {
	// Name is the protocol's registry name ("standard", "ultrasonic").
	Name string

	// Alphabet is the ordered identifier character set. Symbol value i is
	// written as Alphabet[i].
	Alphabet string

	// DataSymbols is the number of payload symbols in one chirp.
	DataSymbols int

	// ParitySymbols is the number of Reed-Solomon parity symbols appended to
	// the payload.
	ParitySymbols int

	// BitCapacity is the identifier payload size in bits
	// (DataSymbols × log2(len(Alphabet))).
	BitCapacity int

	// RequiresAuth reports whether selecting this protocol requires a
	// successful authentication.
	RequiresAuth bool

	// markerBins are the reference bins of the two front-door marker tones
	// that open every chirp.
	markerBins [2]int

	// baseBin and binStep define the data tone grid: symbol value k is
	// transmitted at bin baseBin + k*binStep.
	baseBin, binStep int

	// rs is the Reed-Solomon codec over the protocol's symbol field.
	rs *rsCodec
}

var (
	standardProtocol = &Protocol{
		Name:          ProtocolStandard,
		Alphabet:      "0123456789abcdefghijklmnopqrstuv",
		DataSymbols:   10,
		ParitySymbols: 2,
		BitCapacity:   50,
		markerBins:    [2]int{232, 244},
		baseBin:       256,
		binStep:       8,
		rs:            newRSCodec(newField(5, 0x25), 2),
	}

	ultrasonicProtocol = &Protocol{
		Name:          ProtocolUltrasonic,
		Alphabet:      "0123456789abcdef",
		DataSymbols:   8,
		ParitySymbols: 2,
		BitCapacity:   32,
		RequiresAuth:  true,
		markerBins:    [2]int{1656, 1668},
		baseBin:       1680,
		binStep:       8,
		rs:            newRSCodec(newField(4, 0x13), 2),
	}

	protocols = map[string]*Protocol{
		ProtocolStandard:   standardProtocol,
		ProtocolUltrasonic: ultrasonicProtocol,
	}
)

// ProtocolNamed returns the built-in protocol with the given name, or
// [ErrInvalidProtocol] if the name is not recognised. Authorization is not
// checked here; that is the session's concern.
func ProtocolNamed(name string) (*Protocol, error) {
	p, ok := protocols[name]
	if !ok {
		return nil, ErrInvalidProtocol
	}
	return p, nil
}

// SymbolDuration is the on-air duration of one tone.
func (p *Protocol) SymbolDuration() time.Duration {
	return time.Second * refWindow / refSampleRate
}

// SymbolCount is the total number of tones in one chirp: two markers plus
// payload and parity symbols.
func (p *Protocol) SymbolCount() int {
	return 2 + p.DataSymbols + p.ParitySymbols
}

// ChirpDuration is the total on-air duration of one chirp.
func (p *Protocol) ChirpDuration() time.Duration {
	return time.Duration(p.SymbolCount()) * p.SymbolDuration()
}

// ToneFreq returns the transmit frequency in Hz for symbol value sym.
// sym must be in [0, len(Alphabet)).
func (p *Protocol) ToneFreq(sym int) float64 {
	return binFreq(p.baseBin + sym*p.binStep)
}

// MarkerFreq returns the frequency in Hz of front-door marker i (0 or 1).
func (p *Protocol) MarkerFreq(i int) float64 {
	return binFreq(p.markerBins[i])
}

// toneSpacing is the frequency distance between adjacent data tones in Hz.
func (p *Protocol) toneSpacing() float64 {
	return binFreq(p.binStep)
}

// bandRange returns the lowest and highest frequency of interest for this
// protocol, markers included.
func (p *Protocol) bandRange() (lo, hi float64) {
	lo = binFreq(p.markerBins[0])
	hi = binFreq(p.baseBin + (len(p.Alphabet)-1)*p.binStep)
	return lo, hi
}

// nearestSymbol maps a detected peak frequency to the closest data symbol
// value. The second return value is false when the peak lies more than half a
// tone spacing away from every data tone.
func (p *Protocol) nearestSymbol(freq float64) (int, bool) {
	step := p.toneSpacing()
	k := int(math.Round((freq - binFreq(p.baseBin)) / step))
	if k < 0 || k >= len(p.Alphabet) {
		return 0, false
	}
	if math.Abs(freq-p.ToneFreq(k)) > step/2 {
		return 0, false
	}
	return k, true
}

// nearestMarker maps a detected peak frequency to marker 0 or 1, or reports
// false if the peak is not a marker tone.
func (p *Protocol) nearestMarker(freq float64) (int, bool) {
	half := p.toneSpacing() / 2
	for i, bin := range p.markerBins {
		if math.Abs(freq-binFreq(bin)) <= half {
			return i, true
		}
	}
	return 0, false
}

// symbolSamples returns the length of one symbol in samples at the given
// device rate.
func symbolSamples(sampleRate int) int {
	return int(math.Round(float64(refWindow) * float64(sampleRate) / refSampleRate))
}
