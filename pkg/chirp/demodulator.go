package chirp

import (
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

// Detection thresholds, expressed as the ratio of the spectral peak to the
// mean magnitude across the protocol band. Markers gate frame acquisition
// and need a clean peak; payload windows are already position-locked and can
// tolerate boundary leakage from the neighbouring symbol.
const (
	markerQualityMin = 4.0
	symbolQualityMin = 2.0
)

// demodState is the acquisition phase of the rolling analysis.
type demodState int

const (
	// demodSearching scans hop-by-hop for the first front-door marker.
	demodSearching demodState = iota

	// demodMarkerSeen refines the marker-1 alignment and waits for marker 2.
	demodMarkerSeen

	// demodCollecting reads payload windows at locked symbol boundaries.
	demodCollecting
)

// Demodulator continuously analyses incoming PCM blocks for chirps of a
// single protocol. It maintains a rolling sample history spanning at least
// one symbol period, locks onto the two front-door marker tones, reads the
// payload tone-by-tone via spectral peak mapping, and applies the protocol's
// error correction before emitting a [ChirpEvent].
//
// Garbled candidates (failed error correction, implausible spectra) are
// dropped silently and counted — ambient noise must never surface as a
// callback error.
//
// A Demodulator is not safe for concurrent use; the owning session feeds it
// from a single processing goroutine.
type Demodulator struct {
	protocol   *Protocol
	sampleRate int
	window     int // one symbol period, in samples
	hop        int // search stride, window/4

	ring      []float64
	ringStart int64 // absolute stream index of ring[0]
	next      int64 // absolute start of the next search window

	state         demodState
	markerStart   int64 // best-aligned window start over marker 1
	markerQuality float64
	frameStart    int64 // absolute start of the first payload symbol
	symbols       []int
	qualities     []float64

	streaming    bool
	lastID       string
	lastFrameEnd int64
	streamActive bool

	rejected uint64
}

// NewDemodulator creates a demodulator for the given protocol and device
// sample rate.
func NewDemodulator(p *Protocol, sampleRate int) *Demodulator {
	w := symbolSamples(sampleRate)
	return &Demodulator{
		protocol:   p,
		sampleRate: sampleRate,
		window:     w,
		hop:        w / 4,
	}
}

// SetStreamingMode toggles duplicate suppression for continuously repeated
// chirps. While enabled, a chirp repeated back-to-back is reported once;
// a fresh chirp of the same identifier after a silence gap is reported again.
func (d *Demodulator) SetStreamingMode(on bool) {
	d.streaming = on
	if !on {
		d.streamActive = false
	}
}

// StreamingMode reports whether duplicate suppression is enabled.
func (d *Demodulator) StreamingMode() bool { return d.streaming }

// IsStreaming reports whether a repeated chirp stream is currently being
// tracked (streaming mode only).
func (d *Demodulator) IsStreaming() bool { return d.streamActive }

// Rejected returns the number of candidate symbol sequences dropped by local
// checks since construction or the last Reset.
func (d *Demodulator) Rejected() uint64 { return d.rejected }

// Reset discards all rolling state: sample history, acquisition phase, and
// streaming-mode tracking. Use after a protocol change or engine stop so no
// stale data produces a decode.
func (d *Demodulator) Reset() {
	d.ring = d.ring[:0]
	d.ringStart = 0
	d.next = 0
	d.state = demodSearching
	d.symbols = d.symbols[:0]
	d.qualities = d.qualities[:0]
	d.lastID = ""
	d.lastFrameEnd = 0
	d.streamActive = false
	d.rejected = 0
}

// Consume appends one captured PCM block to the rolling history and returns
// any chirps completed within it, oldest first. Most calls return nil — a
// chirp spans many blocks.
func (d *Demodulator) Consume(block []int16) []*ChirpEvent {
	for _, s := range block {
		d.ring = append(d.ring, float64(s)/32768)
	}
	end := d.ringStart + int64(len(d.ring))

	var events []*ChirpEvent
	for {
		if d.state == demodCollecting {
			ws := d.frameStart + int64(len(d.symbols))*int64(d.window)
			if ws+int64(d.window) > end {
				break
			}
			d.collectSymbol(ws)
			if len(d.symbols) == d.protocol.DataSymbols+d.protocol.ParitySymbols {
				if ev := d.finishFrame(); ev != nil {
					events = append(events, ev)
				}
			}
			continue
		}

		if d.next+int64(d.window) > end {
			break
		}
		d.search(d.next)
		d.next += int64(d.hop)
	}

	// A tracked stream ends once the search has moved past the point where a
	// continuation marker could still start. Without this the last repeat
	// would keep the stream flagged active through indefinite silence.
	if d.streamActive && d.state == demodSearching && d.next > d.lastFrameEnd+int64(d.window) {
		d.streamActive = false
	}

	d.trim()
	return events
}

// search advances marker acquisition by one window at absolute position ws.
func (d *Demodulator) search(ws int64) {
	freq, quality := d.peak(ws)
	if quality >= markerQualityMin {
		if mk, ok := d.protocol.nearestMarker(freq); ok {
			switch {
			case mk == 0 && d.state == demodSearching:
				d.state = demodMarkerSeen
				d.markerStart = ws
				d.markerQuality = quality
			case mk == 0 && d.state == demodMarkerSeen:
				// Still sliding across marker 1: keep the best-aligned
				// window. A re-detection more than a symbol later is a new
				// candidate chirp.
				if ws-d.markerStart >= int64(d.window) || quality > d.markerQuality {
					d.markerStart = ws
					d.markerQuality = quality
				}
			case mk == 1 && d.state == demodMarkerSeen:
				// Frame lock: payload begins one symbol after marker 2.
				d.frameStart = d.markerStart + 2*int64(d.window)
				d.state = demodCollecting
				d.symbols = d.symbols[:0]
				d.qualities = d.qualities[:0]
				return
			}
		}
	}
	if d.state == demodMarkerSeen && ws-d.markerStart > 3*int64(d.window) {
		// Marker 2 never followed.
		d.state = demodSearching
	}
}

// collectSymbol reads one locked payload window. An implausible window
// abandons the whole candidate frame.
func (d *Demodulator) collectSymbol(ws int64) {
	freq, quality := d.peak(ws)
	sym, ok := d.protocol.nearestSymbol(freq)
	if !ok || quality < symbolQualityMin {
		d.rejected++
		d.state = demodSearching
		if ws > d.next {
			d.next = ws
		}
		return
	}
	d.symbols = append(d.symbols, sym)
	d.qualities = append(d.qualities, quality)
}

// finishFrame validates a complete candidate symbol sequence and converts it
// to an event. Failed error correction drops the candidate silently.
func (d *Demodulator) finishFrame() *ChirpEvent {
	p := d.protocol
	frameEnd := d.frameStart + int64(len(d.symbols))*int64(d.window)

	word := make([]int, len(d.symbols))
	copy(word, d.symbols)
	qualitySum := 0.0
	for _, q := range d.qualities {
		qualitySum += q
	}

	d.state = demodSearching
	if frameEnd > d.next {
		d.next = frameEnd
	}

	data, err := p.rs.decode(word)
	if err != nil {
		d.rejected++
		d.streamActive = false
		return nil
	}
	id := p.identifierOf(data)

	// Streaming-mode suppression: the same identifier arriving with no
	// silence between the previous frame's end and this frame's marker is a
	// continuation of one acoustic stream, not a fresh chirp.
	markerPos := d.frameStart - 2*int64(d.window)
	continuous := d.lastFrameEnd > 0 && markerPos-d.lastFrameEnd <= int64(d.window)
	repeat := d.streaming && continuous && id == d.lastID
	d.lastID = id
	d.lastFrameEnd = frameEnd

	if repeat {
		d.streamActive = true
		return nil
	}
	d.streamActive = false

	meanQ := qualitySum / float64(len(d.qualities))
	return &ChirpEvent{
		Identifier: id,
		Protocol:   p.Name,
		Heard:      time.Now(),
		Confidence: meanQ / (meanQ + 8),
	}
}

// peak computes the dominant spectral peak of the window starting at
// absolute position ws, restricted to the protocol band. Returns the peak
// frequency and its magnitude ratio over the band mean.
func (d *Demodulator) peak(ws int64) (freq, quality float64) {
	off := int(ws - d.ringStart)
	spectrum := fft.FFTReal(d.ring[off : off+d.window])

	lo, hi := d.protocol.bandRange()
	spacing := d.protocol.toneSpacing()
	binHz := float64(d.sampleRate) / float64(d.window)
	binLo := int((lo - spacing) / binHz)
	binHi := int((hi+spacing)/binHz) + 1
	if binLo < 1 {
		binLo = 1
	}
	if binHi > len(spectrum)/2 {
		binHi = len(spectrum) / 2
	}

	peakIdx, peakMag, sum := binLo, 0.0, 0.0
	for i := binLo; i < binHi; i++ {
		mag := cmplx.Abs(spectrum[i])
		sum += mag
		if mag > peakMag {
			peakIdx, peakMag = i, mag
		}
	}
	n := float64(binHi - binLo)
	if n == 0 || sum == 0 {
		return 0, 0
	}
	return float64(peakIdx) * binHz, peakMag / (sum / n)
}

// trim discards history no analysis phase can revisit, keeping one window of
// slack before the earliest position still of interest.
func (d *Demodulator) trim() {
	keep := d.next
	switch d.state {
	case demodMarkerSeen:
		if d.markerStart < keep {
			keep = d.markerStart
		}
	case demodCollecting:
		ws := d.frameStart + int64(len(d.symbols))*int64(d.window)
		if ws < keep {
			keep = ws
		}
	}
	keep -= int64(d.window)
	if keep <= d.ringStart {
		return
	}
	drop := int(keep - d.ringStart)
	if drop > len(d.ring) {
		drop = len(d.ring)
	}
	d.ring = d.ring[drop:]
	d.ringStart += int64(drop)
}
