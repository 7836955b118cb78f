package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NOT-REAL-GAMES/videogen/config"
	vk "github.com/NOT-REAL-GAMES/videogen/vulkango"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestParseConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videogen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
window:
  width: 256
  height: 128
frames:
  fps: 60
  fence_timeout: 2s
sink:
  output: from-file.mp4
`), 0o644))

	cfg, err := parseConfig([]string{
		"--config", path,
		"--width", "320",
		"--output", "from-flag.mp4",
		"--frames", "10",
		"--log-format", "json",
		"--validation",
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(320), cfg.Window.Width)
	assert.Equal(t, uint32(128), cfg.Window.Height, "file value kept when the flag is unset")
	assert.Equal(t, 60, cfg.Frames.FPS)
	assert.Equal(t, 2*time.Second, cfg.Frames.FenceTimeout)
	assert.Equal(t, 10, cfg.Frames.Limit)
	assert.Equal(t, "from-flag.mp4", cfg.Sink.Output)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.GPU.Validation)
}

func TestParseConfigNoSink(t *testing.T) {
	cfg, err := parseConfig([]string{"--sink", "gstreamer", "--no-sink"})
	require.NoError(t, err)
	assert.Equal(t, config.BackendNone, cfg.Sink.Backend)
}

func TestParseConfigSinkCommand(t *testing.T) {
	cfg, err := parseConfig([]string{"--output", "", "--sink-command", `sh -c 'cat > "raw frames.rgba"'`})
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c", `cat > "raw frames.rgba"`}, cfg.Sink.Command)

	_, err = parseConfig([]string{"--sink-command", `sh -c 'unterminated`})
	assert.Error(t, err)
}

func TestParseConfigEmptyShaderUsesBuiltIn(t *testing.T) {
	cfg, err := parseConfig([]string{"--shader", ""})
	require.NoError(t, err)
	assert.Empty(t, cfg.Shader.Path)
}

func TestParseConfigErrors(t *testing.T) {
	tests := [][]string{
		{"--frames", "many"},
		{"--unknown"},
		{"--fps", "0"},
		{"--sink", "vlc"},
		{"--config", filepath.Join(os.TempDir(), "videogen-missing.yaml")},
	}
	for _, args := range tests {
		_, err := parseConfig(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestRealMainUsageExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, realMain([]string{"--width", "0"}))
	assert.Equal(t, exitOK, realMain([]string{"--help"}))
}

func TestResolveShaderPath(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.Equal(t, "", resolveShaderPath(config.DefaultShaderPath), "missing default falls back")
	assert.Equal(t, "custom.comp", resolveShaderPath("custom.comp"), "explicit paths are kept even when missing")
	assert.Equal(t, "", resolveShaderPath(""))

	require.NoError(t, os.MkdirAll(filepath.Dir(config.DefaultShaderPath), 0o755))
	require.NoError(t, os.WriteFile(config.DefaultShaderPath, []byte{0x03, 0x02, 0x23, 0x07}, 0o644))
	assert.Equal(t, config.DefaultShaderPath, resolveShaderPath(config.DefaultShaderPath))
}

func TestSizeToSurface(t *testing.T) {
	cfg := config.Default()

	same := sizeToSurface(cfg, vk.Extent2D{Width: 512, Height: 512})
	assert.Same(t, cfg, same)

	unknown := sizeToSurface(cfg, vk.Extent2D{})
	assert.Same(t, cfg, unknown)

	hidpi := sizeToSurface(cfg, vk.Extent2D{Width: 1024, Height: 1024})
	assert.Equal(t, uint32(1024), hidpi.Window.Width)
	assert.Equal(t, uint32(1024), hidpi.Window.Height)
	assert.Equal(t, cfg.Sink, hidpi.Sink)
	assert.Equal(t, uint32(512), cfg.Window.Width, "the loaded config is not modified")
}
