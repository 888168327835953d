// Command chirplink is the ChirpLink daemon: an acoustic data-over-sound
// engine that sends and receives short identifiers as audible or ultrasonic
// chirps, with a diagnostics HTTP server for metrics and health.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/chirplink/internal/auth"
	"github.com/MrWong99/chirplink/internal/config"
	"github.com/MrWong99/chirplink/internal/health"
	"github.com/MrWong99/chirplink/internal/observe"
	"github.com/MrWong99/chirplink/internal/server"
	"github.com/MrWong99/chirplink/pkg/chirp"
	"github.com/MrWong99/chirplink/pkg/chirp/device"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	sendID := flag.String("send", "", "send this identifier once at startup")
	random := flag.Bool("random", false, "send one random identifier at startup")
	listen := flag.Bool("listen", false, "log every chirp heard (default when nothing is sent)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "chirplink: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "chirplink: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("chirplink starting",
		"version", chirp.Version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "chirplink",
		ServiceVersion: chirp.Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Audio device ──────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinDevices(reg)

	dev, err := reg.CreateDevice(cfg.Audio)
	if err != nil {
		slog.Error("failed to create audio device", "err", err, "device", cfg.Audio.Device)
		return 1
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	sdkOpts := []chirp.Option{
		chirp.WithRecorder(observe.NewEngineRecorder(metrics)),
	}
	if cfg.Audio.QueueCapacity > 0 {
		sdkOpts = append(sdkOpts, chirp.WithQueueCapacity(cfg.Audio.QueueCapacity))
	}

	var authClient *auth.Client
	if cfg.Auth.Endpoint != "" {
		authClient, err = auth.New(cfg.Auth.Endpoint,
			auth.WithTimeout(cfg.Auth.Timeout.Std()),
			auth.WithMetrics(metrics),
		)
		if err != nil {
			slog.Error("failed to create licence client", "err", err)
			return 1
		}
		sdkOpts = append(sdkOpts, chirp.WithAuthorizer(authClient))
	}

	sdk, err := chirp.New(dev, sdkOpts...)
	if err != nil {
		slog.Error("failed to create chirp engine", "err", err)
		return 1
	}
	defer func() {
		if err := sdk.Close(); err != nil {
			slog.Warn("engine close error", "err", err)
		}
	}()

	sdk.SetVolume(cfg.Chirp.EffectiveVolume())
	sdk.SetStreamingMode(cfg.Chirp.StreamingMode)

	// ── Authentication + protocol selection ──────────────────────────────────
	if authClient != nil && cfg.Auth.Key != "" {
		if !authenticate(ctx, sdk, cfg.Auth.Key, cfg.Auth.Secret) {
			return 1
		}
	}
	if name := cfg.Chirp.EffectiveProtocol(); name != sdk.Protocol().Name {
		if err := sdk.SetProtocolNamed(name); err != nil {
			slog.Error("failed to select protocol", "err", err, "protocol", name)
			return 1
		}
	}
	slog.Info("protocol selected",
		"protocol", sdk.Protocol().Name,
		"chirp_duration", sdk.Protocol().ChirpDuration(),
		"streaming_mode", cfg.Chirp.StreamingMode,
	)

	// ── Listener ──────────────────────────────────────────────────────────────
	sending := *sendID != "" || *random
	if *listen || !sending {
		sdk.SetChirpHeardFunc(func(ev *chirp.ChirpEvent, err error) {
			if err != nil {
				slog.Error("listener error", "err", err)
				return
			}
			slog.Info("chirp heard",
				"identifier", ev.Identifier,
				"protocol", ev.Protocol,
				"confidence", fmt.Sprintf("%.2f", ev.Confidence),
			)
		})
		metrics.ActiveListeners.Add(ctx, 1)
		defer metrics.ActiveListeners.Add(context.Background(), -1)
		slog.Info("listening for chirps")
	}

	// ── One-shot send ─────────────────────────────────────────────────────────
	if sending {
		id := *sendID
		if *random {
			id = sdk.Protocol().RandomIdentifier()
		}
		if err := sendAndWait(ctx, sdk, id); err != nil {
			slog.Error("send failed", "err", err, "identifier", id)
			return 1
		}
		if !*listen {
			return 0
		}
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(sdk, logLevel, old, new)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Diagnostics server + run loop ─────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.ListenAddr != "" {
		diag := server.New(cfg.Server.ListenAddr, sdk,
			server.WithMetrics(metrics),
			server.WithHealth(newHealthHandler(sdk, authClient != nil)),
		)
		g.Go(func() error { return diag.Run(gctx) })
	}

	slog.Info("chirplink ready — press Ctrl+C to shut down")

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Device wiring ─────────────────────────────────────────────────────────────

// registerBuiltinDevices wires the audio backends that ship with chirplink.
// malgo registers first and is therefore the default.
func registerBuiltinDevices(reg *config.Registry) {
	reg.RegisterDevice("malgo", func(cfg config.AudioConfig) (device.Device, error) {
		return device.NewMalgo(device.MalgoConfig{
			SampleRate: cfg.SampleRate,
			BlockSize:  cfg.BlockSize,
		}), nil
	})
	reg.RegisterDevice("loopback", func(cfg config.AudioConfig) (device.Device, error) {
		return device.NewLoopback(cfg.SampleRate, cfg.BlockSize,
			device.WithRealtimePacing(),
		), nil
	})
}

// ── Authentication ────────────────────────────────────────────────────────────

// authenticate runs the asynchronous key/secret check and waits for its
// completion. Returns false when the credentials were rejected or the wait
// was interrupted.
func authenticate(ctx context.Context, sdk *chirp.SDK, key, secret string) bool {
	done := make(chan bool, 1)
	sdk.Authenticate(ctx, key, secret, func(authenticated bool, err error) {
		if err != nil {
			slog.Error("authentication error", "err", err)
		}
		done <- authenticated
	})

	select {
	case ok := <-done:
		if !ok {
			slog.Error("credentials rejected by licence endpoint")
			return false
		}
		slog.Info("authenticated")
		return true
	case <-ctx.Done():
		return false
	}
}

// ── One-shot send ─────────────────────────────────────────────────────────────

// sendAndWait transmits one identifier and blocks until playback completes.
func sendAndWait(ctx context.Context, sdk *chirp.SDK, id string) error {
	slog.Info("sending chirp", "identifier", id, "protocol", sdk.Protocol().Name)
	if err := sdk.Send(id); err != nil {
		return err
	}

	// Poll for playback completion; one chirp lasts about 1.3 s.
	deadline := time.After(sdk.Protocol().ChirpDuration() + 5*time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for sdk.State() == chirp.StateChirping {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return errors.New("timed out waiting for playback to finish")
		case <-tick.C:
		}
	}
	slog.Info("chirp sent", "identifier", id)
	return nil
}

// ── Config reload ─────────────────────────────────────────────────────────────

// applyConfigChange pushes the reloadable settings from a changed config file
// into the running engine.
func applyConfigChange(sdk *chirp.SDK, logLevel *slog.LevelVar, old, new *config.Config) {
	diff := config.Diff(old, new)
	if diff.Empty() {
		return
	}

	if diff.LogLevelChanged {
		logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.VolumeChanged {
		sdk.SetVolume(diff.NewVolume)
		slog.Info("volume changed", "volume", diff.NewVolume)
	}
	if diff.StreamingModeChanged {
		sdk.SetStreamingMode(diff.NewStreamingMode)
		slog.Info("streaming mode changed", "enabled", diff.NewStreamingMode)
	}
	if diff.ProtocolChanged {
		if err := sdk.SetProtocolNamed(diff.NewProtocol); err != nil {
			slog.Warn("protocol change rejected, keeping previous", "err", err, "protocol", diff.NewProtocol)
		} else {
			slog.Info("protocol changed", "protocol", diff.NewProtocol)
		}
	}
}

// ── Health ────────────────────────────────────────────────────────────────────

// newHealthHandler builds the readiness checkers for the diagnostics server.
func newHealthHandler(sdk *chirp.SDK, authConfigured bool) *health.Handler {
	checkers := []health.Checker{
		{
			Name: "engine",
			Check: func(_ context.Context) error {
				if sdk.State() == chirp.StateStopped {
					return errors.New("audio engine is stopped")
				}
				return nil
			},
		},
	}
	if authConfigured {
		checkers = append(checkers, health.Checker{
			Name: "auth",
			Check: func(_ context.Context) error {
				if !sdk.Authorized() {
					return errors.New("not authorized")
				}
				return nil
			},
		})
	}
	return health.New(checkers...)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar allows live log
// level changes from config reloads.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
