package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "videogen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "VideoGenerator", cfg.Window.Title)
	assert.Equal(t, uint32(512), cfg.Window.Width)
	assert.Equal(t, uint32(512), cfg.Window.Height)
	assert.Equal(t, 2, cfg.Frames.MaxInFlight)
	assert.Equal(t, 30, cfg.Frames.FPS)
	assert.Equal(t, BackendFFmpeg, cfg.Sink.Backend)
	assert.Equal(t, "output.mp4", cfg.Sink.Output)
	assert.Equal(t, DefaultShaderPath, cfg.Shader.Path)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
window:
  width: 1280
  height: 720
shader:
  path: kernels/plasma.comp
frames:
  max_in_flight: 3
  fence_timeout: 250ms
  limit: 90
sink:
  backend: gstreamer
  output: plasma.mp4
  encoder: vah264enc
  timing_path: plasma.timing
log:
  level: debug
  format: json
gpu:
  validation: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "VideoGenerator", cfg.Window.Title, "unset keys keep defaults")
	assert.Equal(t, uint32(1280), cfg.Window.Width)
	assert.Equal(t, uint32(720), cfg.Window.Height)
	assert.Equal(t, "kernels/plasma.comp", cfg.Shader.Path)
	assert.Equal(t, 3, cfg.Frames.MaxInFlight)
	assert.Equal(t, 30, cfg.Frames.FPS)
	assert.Equal(t, 250*time.Millisecond, cfg.Frames.FenceTimeout)
	assert.Equal(t, 5*time.Second, cfg.Frames.AcquireTimeout)
	assert.Equal(t, 90, cfg.Frames.Limit)
	assert.Equal(t, BackendGStreamer, cfg.Sink.Backend)
	assert.Equal(t, "plasma.mp4", cfg.Sink.Output)
	assert.Equal(t, "vah264enc", cfg.Sink.Encoder)
	assert.Equal(t, "plasma.timing", cfg.Sink.TimingPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.GPU.Validation)
}

func TestLoadCustomCommand(t *testing.T) {
	path := writeConfig(t, `
sink:
  output: ""
  command: ["sh", "-c", "cat > raw.rgba"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c", "cat > raw.rgba"}, cfg.Sink.Command)
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := &Config{
		Window: WindowConfig{Width: 64, Height: 64},
		Frames: FramesConfig{FPS: 24},
		Sink:   SinkConfig{Backend: BackendNone},
	}
	require.NoError(t, Validate(cfg))

	def := Default()
	assert.Equal(t, def.Window.Title, cfg.Window.Title)
	assert.Equal(t, def.Frames.MaxInFlight, cfg.Frames.MaxInFlight)
	assert.Equal(t, def.Frames.FenceTimeout, cfg.Frames.FenceTimeout)
	assert.Equal(t, def.Frames.AcquireTimeout, cfg.Frames.AcquireTimeout)
	assert.Equal(t, def.Sink.CloseTimeout, cfg.Sink.CloseTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Window.Width = 0 }},
		{"zero height", func(c *Config) { c.Window.Height = 0 }},
		{"zero fps", func(c *Config) { c.Frames.FPS = 0 }},
		{"negative limit", func(c *Config) { c.Frames.Limit = -1 }},
		{"unknown backend", func(c *Config) { c.Sink.Backend = "vlc" }},
		{"gstreamer without output", func(c *Config) { c.Sink.Backend = BackendGStreamer; c.Sink.Output = "" }},
		{"h264 without output", func(c *Config) { c.Sink.Backend = BackendH264; c.Sink.Output = "" }},
		{"negative gop", func(c *Config) { c.Sink.GOP = -1 }},
		{"ffmpeg without output or command", func(c *Config) { c.Sink.Output = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), ErrInvalid)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "window: [not, a, map]\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "frames:\n  fps: 0\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}
