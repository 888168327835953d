package chirp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/chirplink/pkg/chirp/device"
)

// defaultQueueCapacity bounds the capture hand-off queue between the audio
// callback and the processing goroutine.
const defaultQueueCapacity = 32

// Authorizer grants elevated protocol access after validating application
// credentials against a remote service. The SDK never blocks on it: the
// check runs on its own goroutine and only gates protocols that require
// authorization.
type Authorizer interface {
	Authorize(ctx context.Context, key, secret string) (bool, error)
}

// captureBlock is one input block queued for the processing goroutine.
// Blocks carry the engine epoch at capture time so that Stop can invalidate
// everything already queued without draining races.
type captureBlock struct {
	pcm   []int16
	epoch uint64
}

// Option is a functional option for [New]. Use these to inject alternative
// collaborators in applications and tests.
type Option func(*SDK)

// WithProtocol selects the initial protocol by name. Defaults to
// [ProtocolStandard]. Protocols requiring authorization cannot be the
// initial protocol.
func WithProtocol(name string) Option {
	return func(s *SDK) { s.initialProtocol = name }
}

// WithRecorder wires a telemetry [Recorder]. Defaults to a no-op.
func WithRecorder(r Recorder) Option {
	return func(s *SDK) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithAuthorizer wires the credential check used by [SDK.Authenticate].
// Without one the SDK runs purely offline and authorization-gated protocols
// stay locked.
func WithAuthorizer(a Authorizer) Option {
	return func(s *SDK) { s.authorizer = a }
}

// WithQueueCapacity sets the capture queue depth. When the queue is full the
// oldest unprocessed block is dropped so the audio callback never waits.
func WithQueueCapacity(n int) Option {
	return func(s *SDK) {
		if n > 0 {
			s.queueCap = n
		}
	}
}

// SDK is the ChirpLink session controller: it owns the audio device
// lifecycle, the engine state machine, the active protocol, and the
// single-slot callback registrations.
//
// All exported methods are safe for concurrent use. State transitions,
// last-heard updates, and decode hand-off share one mutual-exclusion domain,
// so callback invocation order matches decode completion order.
type SDK struct {
	dev        device.Device
	rec        Recorder
	authorizer Authorizer
	queueCap   int

	initialProtocol string

	mu           sync.Mutex
	state        AudioState
	proto        *Protocol
	mod          *Modulator
	demod        *Demodulator
	volume       float64
	streamMode   bool
	authorized   bool
	listener     bool
	lastHeard    *ChirpEvent
	lastSysVol   float64
	lastRejected uint64
	closed       bool

	heardFn  func(*ChirpEvent, error)
	bufferFn func(pcm []int16, frames int)
	stateFn  func(AudioState)
	sysVolFn func(volume float64)

	// Playback state shared with the audio callback. Guarded by playMu
	// only — the callback must never contend on mu.
	playMu  sync.Mutex
	playing []int16
	playPos int

	epoch    atomic.Uint64
	blocks   chan captureBlock
	playDone chan struct{}
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New creates an SDK session over the given audio device. The engine starts
// in [StateStopped]; [SDK.Start] is invoked implicitly by the first transmit
// or listener registration. Call [SDK.Close] to release the processing
// goroutine.
func New(dev device.Device, opts ...Option) (*SDK, error) {
	s := &SDK{
		dev:             dev,
		rec:             nopRecorder{},
		queueCap:        defaultQueueCapacity,
		initialProtocol: ProtocolStandard,
		volume:          1.0,
		lastSysVol:      dev.SystemVolume(),
	}
	for _, o := range opts {
		o(s)
	}

	p, err := ProtocolNamed(s.initialProtocol)
	if err != nil {
		return nil, fmt.Errorf("chirp: initial protocol %q: %w", s.initialProtocol, err)
	}
	if p.RequiresAuth {
		return nil, fmt.Errorf("chirp: initial protocol %q: %w", s.initialProtocol, ErrNotAuthorized)
	}
	s.proto = p
	s.mod = NewModulator(p, dev.SampleRate())
	s.demod = NewDemodulator(p, dev.SampleRate())

	s.blocks = make(chan captureBlock, s.queueCap)
	s.playDone = make(chan struct{}, 1)
	s.quit = make(chan struct{})

	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Version returns the SDK's semantic version string.
func (s *SDK) Version() string { return Version }

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Start opens the audio stream. It is idempotent and is called automatically
// by the first [SDK.Send] or [SDK.SetChirpHeardFunc]; it only needs to be
// called manually after an explicit [SDK.Stop].
func (s *SDK) Start() error {
	s.mu.Lock()
	notify, err := s.startLocked()
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
	return err
}

// startLocked starts the device and moves to the base active state.
// Callers hold mu. The returned func, if non-nil, must run after unlock.
func (s *SDK) startLocked() (func(), error) {
	if s.closed {
		return nil, ErrEngineClosed
	}
	if s.state != StateStopped {
		return nil, nil
	}
	if err := s.dev.Start(s.audioCallback); err != nil {
		return nil, fmt.Errorf("chirp: start audio device: %w", err)
	}
	return s.setStateLocked(s.baseActiveLocked()), nil
}

// Stop tears the audio stream down from any state: it truncates an
// in-flight transmit, invalidates all queued capture blocks so no stale
// decode callbacks fire, and forces the state to [StateStopped].
func (s *SDK) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrEngineClosed
	}
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}

	s.epoch.Add(1)

	s.playMu.Lock()
	s.playing = nil
	s.playPos = 0
	s.playMu.Unlock()

	if err := s.dev.Stop(); err != nil {
		slog.Warn("audio device stop", "err", err)
	}
	s.demod.Reset()
	s.lastRejected = 0

	// Flush anything captured before the device stopped.
	for {
		select {
		case <-s.blocks:
		default:
			notify := s.setStateLocked(StateStopped)
			s.mu.Unlock()
			if notify != nil {
				notify()
			}
			return nil
		}
	}
}

// Close stops the engine and releases the processing goroutine. The SDK
// cannot be restarted afterwards.
func (s *SDK) Close() error {
	err := s.Stop()
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.quit)
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err == ErrEngineClosed {
		return nil
	}
	return err
}

// ─── Transmit ────────────────────────────────────────────────────────────────

// Send validates the identifier against the active protocol, renders it, and
// begins playback. The engine auto-starts if stopped. Returns
// [ErrEngineBusy] while a previous chirp is still playing — transmits are
// never queued — and [ErrInvalidIdentifier] for payloads outside the
// protocol's capacity. Playback completion returns the engine to its base
// state automatically.
func (s *SDK) Send(identifier string) error {
	s.mu.Lock()
	if !s.proto.IsValidIdentifier(identifier) {
		s.mu.Unlock()
		return ErrInvalidIdentifier
	}
	notify, err := s.transmitLocked(func(m *Modulator) (*Waveform, error) {
		return m.Render(identifier)
	})
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
	return err
}

// SendArray is the raw symbol-payload variant of [SDK.Send].
func (s *SDK) SendArray(symbols []int) error {
	s.mu.Lock()
	if !s.proto.IsValidArray(symbols) {
		s.mu.Unlock()
		return ErrInvalidIdentifier
	}
	notify, err := s.transmitLocked(func(m *Modulator) (*Waveform, error) {
		return m.RenderArray(symbols)
	})
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
	return err
}

// transmitLocked performs the common transmit path. Callers hold mu and have
// already validated the payload.
func (s *SDK) transmitLocked(render func(*Modulator) (*Waveform, error)) (func(), error) {
	if s.closed {
		return nil, ErrEngineClosed
	}
	if s.state == StateChirping {
		return nil, ErrEngineBusy
	}
	startNotify, err := s.startLocked()
	if err != nil {
		return nil, err
	}

	s.mod.Gain = s.volume
	wf, err := render(s.mod)
	if err != nil {
		return startNotify, err
	}

	s.playMu.Lock()
	s.playing = wf.Samples
	s.playPos = 0
	s.playMu.Unlock()

	s.rec.ChirpSent(s.proto.Name)
	chirpNotify := s.setStateLocked(StateChirping)

	return func() {
		if startNotify != nil {
			startNotify()
		}
		if chirpNotify != nil {
			chirpNotify()
		}
	}, nil
}

// ─── Callback registration ───────────────────────────────────────────────────

// SetChirpHeardFunc registers the callback invoked once per accepted decode
// (or with a structural engine error). Each registration replaces the
// previous one; pass nil to unregister. Registering a listener implicitly
// starts the engine and moves it to [StateReceiving] until [SDK.Stop].
func (s *SDK) SetChirpHeardFunc(fn func(ev *ChirpEvent, err error)) {
	s.mu.Lock()
	s.heardFn = fn
	s.listener = fn != nil

	var notify func()
	var startErr error
	if fn != nil {
		notify, startErr = s.startLocked()
		if startErr == nil && s.state == StateReady {
			notify = s.setStateLocked(StateReceiving)
		}
	} else if s.state == StateReceiving {
		notify = s.setStateLocked(StateReady)
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	if startErr != nil && fn != nil {
		fn(nil, startErr)
	}
}

// SetAudioBufferUpdatedFunc registers the raw-audio observer invoked with
// every captured block and its frame count. Each registration replaces the
// previous one; pass nil to unregister. The block is only valid for the
// duration of the call — observers must copy what they keep.
func (s *SDK) SetAudioBufferUpdatedFunc(fn func(pcm []int16, frames int)) {
	s.mu.Lock()
	s.bufferFn = fn
	s.mu.Unlock()
}

// SetAudioStateChangedFunc registers the callback invoked on every engine
// state transition. Each registration replaces the previous one.
func (s *SDK) SetAudioStateChangedFunc(fn func(state AudioState)) {
	s.mu.Lock()
	s.stateFn = fn
	s.mu.Unlock()
}

// SetSystemVolumeChangedFunc registers the callback invoked when the
// hardware output volume changes. Each registration replaces the previous
// one.
func (s *SDK) SetSystemVolumeChangedFunc(fn func(volume float64)) {
	s.mu.Lock()
	s.sysVolFn = fn
	s.mu.Unlock()
}

// ─── Protocol selection ──────────────────────────────────────────────────────

// SetProtocolNamed activates the named protocol. Returns
// [ErrInvalidProtocol] for unknown names, [ErrNotAuthorized] for protocols
// requiring authorization before a successful [SDK.Authenticate], and
// [ErrProtocolBusy] while the engine is Chirping or Receiving. On any error
// the previous protocol stays active. A successful switch resets all
// modulator and demodulator state.
func (s *SDK) SetProtocolNamed(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrEngineClosed
	}
	switch s.state {
	case StateChirping, StateReceiving, StateStreaming:
		return fmt.Errorf("%w (state %s)", ErrProtocolBusy, s.state)
	}
	p, err := ProtocolNamed(name)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, name)
	}
	if p.RequiresAuth && !s.authorized {
		return fmt.Errorf("%w: %q", ErrNotAuthorized, name)
	}
	if p == s.proto {
		return nil
	}

	rate := s.dev.SampleRate()
	s.proto = p
	s.mod = NewModulator(p, rate)
	s.demod = NewDemodulator(p, rate)
	s.demod.SetStreamingMode(s.streamMode)
	s.lastRejected = 0
	return nil
}

// Protocol returns the active protocol.
func (s *SDK) Protocol() *Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proto
}

// ─── Authentication ──────────────────────────────────────────────────────────

// Authenticate checks the application key and secret against the configured
// [Authorizer] on a background goroutine and invokes completion exactly once
// with the outcome. A successful check unlocks authorization-gated
// protocols. Without an Authorizer (offline operation) the completion is
// never invoked and all offline capability remains available, matching the
// advertised contract.
func (s *SDK) Authenticate(ctx context.Context, key, secret string, completion func(authenticated bool, err error)) {
	s.mu.Lock()
	auth := s.authorizer
	s.mu.Unlock()
	if auth == nil {
		slog.Debug("authenticate skipped: no authorizer configured (offline mode)")
		return
	}

	go func() {
		ok, err := auth.Authorize(ctx, key, secret)
		s.mu.Lock()
		if ok {
			s.authorized = true
		}
		s.mu.Unlock()
		if completion != nil {
			completion(ok, err)
		}
	}()
}

// Authorized reports whether a previous [SDK.Authenticate] succeeded.
func (s *SDK) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

// ─── Properties ──────────────────────────────────────────────────────────────

// State returns the current engine state.
func (s *SDK) State() AudioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Volume returns the engine's output gain, independent of the hardware
// volume.
func (s *SDK) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume sets the engine's output gain, clamped to [0, 1]. The new gain
// applies from the next transmit.
func (s *SDK) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

// SystemVolume returns the hardware output volume as reported by the device.
func (s *SDK) SystemVolume() float64 { return s.dev.SystemVolume() }

// SampleRate returns the audio stream's sample rate in Hz.
func (s *SDK) SampleRate() int { return s.dev.SampleRate() }

// SetStreamingMode toggles streaming mode: when enabled, a chirp repeated
// continuously is reported once rather than once per repetition.
func (s *SDK) SetStreamingMode(on bool) {
	s.mu.Lock()
	s.streamMode = on
	s.demod.SetStreamingMode(on)
	s.mu.Unlock()
}

// StreamingMode reports whether streaming mode is enabled.
func (s *SDK) StreamingMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamMode
}

// IsStreaming reports whether a repeated chirp stream is currently being
// tracked.
func (s *SDK) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demod.IsStreaming()
}

// LastHeard returns the most recently decoded chirp, or nil if none has been
// received since construction.
func (s *SDK) LastHeard() *ChirpEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeard
}

// ─── Audio path ──────────────────────────────────────────────────────────────

// audioCallback runs on the device's real-time thread. It must never block:
// capture hand-off drops the oldest queued block on overflow, and playback
// only touches playMu, which no slow path holds.
func (s *SDK) audioCallback(in, out []int16) {
	// Capture → bounded queue.
	b := captureBlock{pcm: make([]int16, len(in)), epoch: s.epoch.Load()}
	copy(b.pcm, in)
	select {
	case s.blocks <- b:
	default:
		select {
		case <-s.blocks:
			s.rec.BlockDropped()
		default:
		}
		select {
		case s.blocks <- b:
		default:
		}
	}

	// Playback ← current waveform.
	s.playMu.Lock()
	if s.playing != nil {
		n := copy(out, s.playing[s.playPos:])
		s.playPos += n
		if s.playPos >= len(s.playing) {
			s.playing = nil
			s.playPos = 0
			select {
			case s.playDone <- struct{}{}:
			default:
			}
		}
	}
	s.playMu.Unlock()
}

// run is the processing goroutine: the consumer side of the capture queue
// and the owner of decode-driven state transitions.
func (s *SDK) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case <-s.playDone:
			s.mu.Lock()
			var notify func()
			if s.state == StateChirping {
				notify = s.setStateLocked(s.baseActiveLocked())
			}
			s.mu.Unlock()
			if notify != nil {
				notify()
			}
		case b := <-s.blocks:
			if b.epoch != s.epoch.Load() {
				continue // stale: captured before the last Stop
			}
			s.processBlock(b)
		}
	}
}

// processBlock feeds one capture block through the demodulator and delivers
// the resulting callbacks outside the lock.
func (s *SDK) processBlock(b captureBlock) {
	s.mu.Lock()
	bufferFn := s.bufferFn
	heardFn := s.heardFn
	sysVolFn := s.sysVolFn
	protoName := s.proto.Name

	events := s.demod.Consume(b.pcm)
	for _, ev := range events {
		s.lastHeard = ev
	}

	rej := s.demod.Rejected()
	rejDelta := rej - s.lastRejected
	s.lastRejected = rej

	// Streaming-mode state reflection.
	var notify func()
	switch {
	case s.streamMode && s.demod.IsStreaming() && s.state == StateReceiving:
		notify = s.setStateLocked(StateStreaming)
	case s.state == StateStreaming && !s.demod.IsStreaming():
		notify = s.setStateLocked(s.baseActiveLocked())
	}

	sysVol := s.dev.SystemVolume()
	volChanged := sysVol != s.lastSysVol
	s.lastSysVol = sysVol
	s.mu.Unlock()

	if bufferFn != nil {
		bufferFn(b.pcm, len(b.pcm))
	}
	for i := uint64(0); i < rejDelta; i++ {
		s.rec.DecodeRejected(protoName)
	}
	for _, ev := range events {
		s.rec.ChirpHeard(protoName)
		if heardFn != nil {
			heardFn(ev, nil)
		}
	}
	if notify != nil {
		notify()
	}
	if volChanged && sysVolFn != nil {
		sysVolFn(sysVol)
	}
}

// baseActiveLocked is the state the engine rests in while running: Receiving
// with a listener registered, Ready otherwise. Callers hold mu.
func (s *SDK) baseActiveLocked() AudioState {
	if s.listener {
		return StateReceiving
	}
	return StateReady
}

// setStateLocked records a state transition and returns the deferred
// notifier, or nil when nothing changed. Callers hold mu and must run the
// notifier after unlocking so user callbacks cannot deadlock against the
// engine.
func (s *SDK) setStateLocked(st AudioState) func() {
	if s.state == st {
		return nil
	}
	s.state = st
	fn := s.stateFn
	if fn == nil {
		return nil
	}
	return func() { fn(st) }
}
