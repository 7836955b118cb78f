// Command videogen renders a procedural compute kernel into a window and
// streams every frame to a video encoder.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/pflag"

	"github.com/NOT-REAL-GAMES/videogen/config"
	"github.com/NOT-REAL-GAMES/videogen/logging"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	cfg, err := parseConfig(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, "videogen:", err)
		return exitUsage
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger, err := logging.New(os.Stderr, cfg.Log.Format, level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "videogen:", err)
		return exitUsage
	}
	logger = logger.With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	logging.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("fatal error", "error", err)
		return exitFatal
	}
	return exitOK
}

// parseConfig loads the config file named by --config, if any, and applies
// the flags that were set on top of it.
func parseConfig(args []string) (*config.Config, error) {
	fs := pflag.NewFlagSet("videogen", pflag.ContinueOnError)

	configPath := fs.String("config", "", "path to a YAML configuration file")
	shader := fs.String("shader", "", "compute shader (.spv, .comp or .glsl); empty uses the built-in kernel")
	output := fs.String("output", "", "encoded video path")
	backend := fs.String("sink", "", "sink backend: ffmpeg, gstreamer, h264 or none")
	sinkCommand := fs.String("sink-command", "", "encoder command line for the ffmpeg backend, replacing the default")
	noSink := fs.Bool("no-sink", false, "discard frames instead of encoding them")
	timing := fs.String("timing", "", "write a per-frame timing log to this path")
	frames := fs.Int("frames", 0, "stop after this many rendered frames (0 runs until closed)")
	fps := fs.Int("fps", 0, "target frame rate")
	width := fs.Uint32("width", 0, "window and canvas width")
	height := fs.Uint32("height", 0, "window and canvas height")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "", "text or json")
	validation := fs.Bool("validation", false, "enable the Vulkan validation layer")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if fs.Changed("shader") {
		cfg.Shader.Path = *shader
	}
	if fs.Changed("output") {
		cfg.Sink.Output = *output
	}
	if fs.Changed("sink") {
		cfg.Sink.Backend = *backend
	}
	if fs.Changed("sink-command") {
		argv, err := shellwords.Parse(*sinkCommand)
		if err != nil {
			return nil, fmt.Errorf("invalid --sink-command: %w", err)
		}
		cfg.Sink.Command = argv
	}
	if *noSink {
		cfg.Sink.Backend = config.BackendNone
	}
	if fs.Changed("timing") {
		cfg.Sink.TimingPath = *timing
	}
	if fs.Changed("frames") {
		cfg.Frames.Limit = *frames
	}
	if fs.Changed("fps") {
		cfg.Frames.FPS = *fps
	}
	if fs.Changed("width") {
		cfg.Window.Width = *width
	}
	if fs.Changed("height") {
		cfg.Window.Height = *height
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if fs.Changed("validation") {
		cfg.GPU.Validation = *validation
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
