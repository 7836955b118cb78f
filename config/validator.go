package config

import (
	"fmt"
	"slices"

	"github.com/NOT-REAL-GAMES/videogen/logging"
)

// Validate checks cfg and fills zero values that have a sensible default.
func Validate(cfg *Config) error {
	def := Default()

	if cfg.Window.Title == "" {
		cfg.Window.Title = def.Window.Title
	}
	if cfg.Window.Width == 0 || cfg.Window.Height == 0 {
		return fmt.Errorf("%w: window size must be non-zero, got %dx%d", ErrInvalid, cfg.Window.Width, cfg.Window.Height)
	}

	if cfg.Frames.MaxInFlight <= 0 {
		cfg.Frames.MaxInFlight = def.Frames.MaxInFlight
	}
	if cfg.Frames.FPS <= 0 {
		return fmt.Errorf("%w: frames.fps must be > 0", ErrInvalid)
	}
	if cfg.Frames.FenceTimeout <= 0 {
		cfg.Frames.FenceTimeout = def.Frames.FenceTimeout
	}
	if cfg.Frames.AcquireTimeout <= 0 {
		cfg.Frames.AcquireTimeout = def.Frames.AcquireTimeout
	}
	if cfg.Frames.Limit < 0 {
		return fmt.Errorf("%w: frames.limit must be >= 0", ErrInvalid)
	}

	switch cfg.Sink.Backend {
	case "":
		cfg.Sink.Backend = def.Sink.Backend
	case BackendFFmpeg, BackendGStreamer, BackendH264, BackendNone:
	default:
		return fmt.Errorf("%w: unknown sink.backend %q", ErrInvalid, cfg.Sink.Backend)
	}
	if (cfg.Sink.Backend == BackendGStreamer || cfg.Sink.Backend == BackendH264) && cfg.Sink.Output == "" {
		return fmt.Errorf("%w: sink.output is required for %s", ErrInvalid, cfg.Sink.Backend)
	}
	if cfg.Sink.GOP < 0 {
		return fmt.Errorf("%w: sink.gop must be >= 0", ErrInvalid)
	}
	if cfg.Sink.Backend == BackendFFmpeg && cfg.Sink.Output == "" && len(cfg.Sink.Command) == 0 {
		return fmt.Errorf("%w: sink.output or sink.command is required for ffmpeg", ErrInvalid)
	}
	if cfg.Sink.CloseTimeout <= 0 {
		cfg.Sink.CloseTimeout = def.Sink.CloseTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if !slices.Contains([]string{"text", "json"}, cfg.Log.Format) {
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, cfg.Log.Format)
	}

	return nil
}
