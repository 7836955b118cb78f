package sink

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/NOT-REAL-GAMES/videogen/logging"
)

type GStreamerConfig struct {
	Width, Height uint32
	FPS           int
	Output        string

	// Encoder is the element description between videoconvert and the
	// muxer. Empty means x264enc.
	Encoder string

	CloseTimeout time.Duration
}

// GStreamerPipeline builds the launch line for cfg. The appsrc is named
// "src".
func GStreamerPipeline(cfg GStreamerConfig) string {
	encoder := cfg.Encoder
	if encoder == "" {
		encoder = "x264enc"
	}
	return fmt.Sprintf(
		"appsrc name=src format=time is-live=false block=true "+
			"caps=video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1 "+
			"! videoconvert ! %s ! mp4mux ! filesink location=%q",
		cfg.Width, cfg.Height, cfg.FPS, encoder, cfg.Output)
}

// GStreamer encodes in-process through an appsrc pipeline.
type GStreamer struct {
	counters

	pipeline     *gst.Pipeline
	src          *app.Source
	frameTime    time.Duration
	closeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	err    error
}

func NewGStreamer(cfg GStreamerConfig) (*GStreamer, error) {
	if cfg.Output == "" {
		return nil, errors.New("encoder output path is required")
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %d", cfg.FPS)
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}

	gst.Init(nil)

	launch := GStreamerPipeline(cfg)
	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	elem, err := pipeline.GetElementByName("src")
	if err != nil {
		discardPipeline(pipeline)
		return nil, fmt.Errorf("failed to find appsrc: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		discardPipeline(pipeline)
		return nil, fmt.Errorf("failed to start pipeline: %w", err)
	}

	logging.Logger().Info("gstreamer pipeline started", "pipeline", launch)

	return &GStreamer{
		pipeline:     pipeline,
		src:          app.SrcFromElement(elem),
		frameTime:    time.Second / time.Duration(cfg.FPS),
		closeTimeout: cfg.CloseTimeout,
	}, nil
}

// discardPipeline releases a pipeline that never started streaming.
func discardPipeline(pipeline *gst.Pipeline) {
	if err := pipeline.SetState(gst.StateNull); err != nil {
		logging.Logger().Warn("failed to stop pipeline", "error", err)
	}
}

// WriteFrame copies pixels into a new buffer stamped at the next frame
// time.
func (g *GStreamer) WriteFrame(pixels []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}

	n := g.frames.Load() + g.failed.Load()
	buf := gst.NewBufferFromBytes(pixels)
	buf.SetPresentationTimestamp(time.Duration(n) * g.frameTime)
	buf.SetDuration(g.frameTime)

	if ret := g.src.PushBuffer(buf); ret != gst.FlowOK {
		g.failed.Add(1)
		logging.Logger().Warn("appsrc rejected frame", "flow", ret)
		return nil
	}

	g.frames.Add(1)
	g.bytes.Add(uint64(len(pixels)))
	return nil
}

// Close sends end-of-stream, waits for the muxer to finish the file and
// stops the pipeline.
func (g *GStreamer) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return g.err
	}
	g.closed = true

	g.src.EndStream()
	g.err = g.waitEOS()

	if err := g.pipeline.SetState(gst.StateNull); err != nil && g.err == nil {
		g.err = fmt.Errorf("failed to stop pipeline: %w", err)
	}
	return g.err
}

func (g *GStreamer) waitEOS() error {
	bus := g.pipeline.GetPipelineBus()
	deadline := time.Now().Add(g.closeTimeout)

	for time.Now().Before(deadline) {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			logging.Logger().Info("gstreamer pipeline finished", "frames", g.frames.Load())
			return nil
		case gst.MessageError:
			gerr := msg.ParseError()
			logging.Logger().Error("gstreamer pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			return fmt.Errorf("pipeline error: %s", gerr.Error())
		}
	}

	logging.Logger().Warn("gstreamer pipeline did not reach end of stream in time", "timeout", g.closeTimeout)
	return fmt.Errorf("no end of stream after %s", g.closeTimeout)
}

func (g *GStreamer) Counters() Counters { return g.snapshot() }
