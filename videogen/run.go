package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unsafe"

	sdl "github.com/NOT-REAL-GAMES/sdl3go"

	"github.com/NOT-REAL-GAMES/videogen/compute"
	"github.com/NOT-REAL-GAMES/videogen/config"
	"github.com/NOT-REAL-GAMES/videogen/frame"
	"github.com/NOT-REAL-GAMES/videogen/gpu"
	"github.com/NOT-REAL-GAMES/videogen/sink"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

// run owns every resource for one session. Resources are released in
// reverse order of creation: sink, orchestrator, compute stage, device
// context, window.
func run(ctx context.Context, cfg *config.Config) (err error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("failed to initialize SDL: %w", err)
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(cfg.Window.Title, int(cfg.Window.Width), int(cfg.Window.Height), sdl.WINDOW_VULKAN)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer window.Destroy()

	exts, err := sdl.VulkanGetInstanceExtensions()
	if err != nil {
		return fmt.Errorf("failed to query instance extensions: %w", err)
	}
	slog.Debug("instance extensions", "extensions", exts)

	dev, err := gpu.New(gpu.Options{
		AppName:    cfg.Window.Title,
		Extensions: exts,
		Validation: cfg.GPU.Validation,
		CreateSurface: func(instance unsafe.Pointer) (unsafe.Pointer, error) {
			return window.VulkanCreateSurface(instance)
		},
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
	})
	if err != nil {
		return err
	}
	defer dev.Destroy()

	slog.Info("device ready",
		"device", dev.Properties.DeviceName,
		"queue_family", dev.QueueFamily,
		"swapchain_images", len(dev.Swapchain.Images),
		"swapchain_extent", fmt.Sprintf("%dx%d", dev.Swapchain.Extent.Width, dev.Swapchain.Extent.Height))

	cfg = sizeToSurface(cfg, dev.Swapchain.Extent)

	code, err := compute.LoadShader(resolveShaderPath(cfg.Shader.Path))
	if err != nil {
		return err
	}

	stage, err := compute.New(dev, compute.Config{
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Shader: code,
	})
	if err != nil {
		return err
	}
	defer stage.Destroy()

	out, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	tee := &sink.Tee{Sink: out}
	if cfg.Sink.TimingPath != "" {
		if tee.Timing, err = sink.NewTimingLog(cfg.Sink.TimingPath); err != nil {
			out.Close()
			return err
		}
	}

	orch, err := frame.New(dev, dev.Queue, stage, dev.Swapchain, frame.Config{
		MaxFramesInFlight: cfg.Frames.MaxInFlight,
		FenceTimeout:      cfg.Frames.FenceTimeout,
		AcquireTimeout:    cfg.Frames.AcquireTimeout,
		Consumer:          tee,
	})
	if err != nil {
		tee.Close()
		return err
	}
	defer orch.Destroy()

	defer func() {
		if cerr := tee.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close sink: %w", cerr))
		}
		logStats(orch.Stats(), out)
	}()

	if err := loop(ctx, cfg, orch); err != nil {
		return err
	}

	// Hand the last frames in flight to the sink before it closes.
	return orch.Flush()
}

// sizeToSurface returns cfg with the window size replaced by the swapchain
// extent, so the canvas, the staging regions and the sink all match the
// images being presented. A zero extent leaves cfg as it is.
func sizeToSurface(cfg *config.Config, extent vk.Extent2D) *config.Config {
	if extent.Width == 0 || extent.Height == 0 {
		return cfg
	}
	if extent.Width == cfg.Window.Width && extent.Height == cfg.Window.Height {
		return cfg
	}

	slog.Warn("surface extent differs from requested window size, rendering at surface size",
		"requested", fmt.Sprintf("%dx%d", cfg.Window.Width, cfg.Window.Height),
		"surface", fmt.Sprintf("%dx%d", extent.Width, extent.Height))

	sized := *cfg
	sized.Window.Width = extent.Width
	sized.Window.Height = extent.Height
	return &sized
}

func loop(ctx context.Context, cfg *config.Config, orch *frame.Orchestrator) error {
	ticker := time.NewTicker(time.Second / time.Duration(cfg.Frames.FPS))
	defer ticker.Stop()

	start := time.Now()
	limit := uint64(cfg.Frames.Limit)

	slog.Info("rendering", "fps", cfg.Frames.FPS, "limit", cfg.Frames.Limit)

	for limit == 0 || orch.Stats().Rendered < limit {
		if windowClosed() {
			slog.Info("window closed")
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("shutdown requested", "cause", context.Cause(ctx))
			return nil
		case <-ticker.C:
		}

		t := float32(time.Since(start).Seconds())
		if _, err := orch.RenderFrame(t); err != nil {
			return err
		}
	}
	return nil
}

func windowClosed() bool {
	closed := false
	for event, ok := sdl.PollEvent(); ok; event, ok = sdl.PollEvent() {
		if event.Type == sdl.EVENT_QUIT {
			closed = true
		}
	}
	return closed
}

// resolveShaderPath falls back to the built-in kernel when the default
// SPIR-V path was left in place but no such file exists.
func resolveShaderPath(path string) string {
	if path != config.DefaultShaderPath {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Info("default shader not found, using built-in kernel", "path", path)
		return ""
	}
	return path
}

func openSink(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	switch cfg.Sink.Backend {
	case config.BackendNone:
		return sink.Discard(), nil
	case config.BackendGStreamer:
		return sink.NewGStreamer(sink.GStreamerConfig{
			Width:        cfg.Window.Width,
			Height:       cfg.Window.Height,
			FPS:          cfg.Frames.FPS,
			Output:       cfg.Sink.Output,
			Encoder:      cfg.Sink.Encoder,
			CloseTimeout: cfg.Sink.CloseTimeout,
		})
	case config.BackendH264:
		return sink.NewH264File(sink.H264Config{
			Width:  cfg.Window.Width,
			Height: cfg.Window.Height,
			FPS:    cfg.Frames.FPS,
			Output: cfg.Sink.Output,
			GOP:    cfg.Sink.GOP,
		})
	case config.BackendFFmpeg:
		return sink.NewProcess(ctx, sink.ProcessConfig{
			Command:      cfg.Sink.Command,
			Width:        cfg.Window.Width,
			Height:       cfg.Window.Height,
			FPS:          cfg.Frames.FPS,
			Output:       cfg.Sink.Output,
			CloseTimeout: cfg.Sink.CloseTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: unknown sink backend %q", config.ErrInvalid, cfg.Sink.Backend)
	}
}

func logStats(stats frame.Stats, out sink.Sink) {
	attrs := []any{
		"rendered", stats.Rendered,
		"skipped", stats.Skipped,
		"stale_presents", stats.StalePresents,
		"delivered", stats.Delivered,
	}
	if c, ok := out.(interface{ Counters() sink.Counters }); ok {
		n := c.Counters()
		attrs = append(attrs,
			"sink_frames", n.Frames,
			"sink_bytes", n.Bytes,
			"sink_short_writes", n.ShortWrites,
			"sink_failed", n.Failed)
	}
	slog.Info("session finished", attrs...)
}
