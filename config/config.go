// Package config loads the videogen YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultShaderPath is where the SPIR-V kernel is looked for when nothing
// else is configured.
const DefaultShaderPath = "shaders/compute.glsl.spv"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete videogen configuration
type Config struct {
	Window WindowConfig `yaml:"window"`
	Shader ShaderConfig `yaml:"shader"`
	Frames FramesConfig `yaml:"frames"`
	Sink   SinkConfig   `yaml:"sink"`
	Log    LogConfig    `yaml:"log"`
	GPU    GPUConfig    `yaml:"gpu"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

type ShaderConfig struct {
	// Path is a .spv, .comp or .glsl file. Empty uses the built-in kernel.
	Path string `yaml:"path"`
}

type FramesConfig struct {
	MaxInFlight    int           `yaml:"max_in_flight"`
	FPS            int           `yaml:"fps"`
	FenceTimeout   time.Duration `yaml:"fence_timeout"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	Limit          int           `yaml:"limit"` // 0 runs until closed
}

// Sink backends.
const (
	BackendFFmpeg    = "ffmpeg"
	BackendGStreamer = "gstreamer"
	BackendH264      = "h264"
	BackendNone      = "none"
)

type SinkConfig struct {
	Backend      string        `yaml:"backend"` // ffmpeg, gstreamer, h264, none
	Output       string        `yaml:"output"`
	Command      []string      `yaml:"command"` // replaces the ffmpeg argv
	Encoder      string        `yaml:"encoder"` // gstreamer encoder element
	GOP          int           `yaml:"gop"`     // h264 IDR interval
	CloseTimeout time.Duration `yaml:"close_timeout"`
	TimingPath   string        `yaml:"timing_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type GPUConfig struct {
	Validation bool `yaml:"validation"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Window: WindowConfig{Title: "VideoGenerator", Width: 512, Height: 512},
		Shader: ShaderConfig{Path: DefaultShaderPath},
		Frames: FramesConfig{
			MaxInFlight:    2,
			FPS:            30,
			FenceTimeout:   5 * time.Second,
			AcquireTimeout: 5 * time.Second,
		},
		Sink: SinkConfig{
			Backend:      BackendFFmpeg,
			Output:       "output.mp4",
			CloseTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and parses a YAML configuration file. Keys missing from the
// file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
