package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/NOT-REAL-GAMES/videogen/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestDiscard(t *testing.T) {
	d := Discard()
	require.NoError(t, d.WriteFrame(make([]byte, 16)))
	require.NoError(t, d.WriteFrame(make([]byte, 16)))
	assert.Equal(t, Counters{Frames: 2, Bytes: 32}, d.Counters())

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.WriteFrame(nil), ErrClosed)
}

func TestFFmpegArgs(t *testing.T) {
	assert.Equal(t, []string{
		"ffmpeg", "-y", "-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", "512x512", "-r", "30", "-i", "-",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "out.mp4",
	}, FFmpegArgs(512, 512, 30, "out.mp4"))
}

func TestGStreamerPipeline(t *testing.T) {
	got := GStreamerPipeline(GStreamerConfig{Width: 640, Height: 360, FPS: 30, Output: "clip.mp4"})
	assert.Contains(t, got, "appsrc name=src")
	assert.Contains(t, got, "caps=video/x-raw,format=RGBA,width=640,height=360,framerate=30/1")
	assert.Contains(t, got, "! videoconvert ! x264enc ! mp4mux ! filesink location=\"clip.mp4\"")

	got = GStreamerPipeline(GStreamerConfig{Width: 8, Height: 8, FPS: 1, Output: "x.mp4", Encoder: "vah264enc"})
	assert.Contains(t, got, "! vah264enc ! mp4mux")
}

func requireElements(t *testing.T, names ...string) {
	t.Helper()
	gst.Init(nil)
	for _, name := range names {
		if gst.Find(name) == nil {
			t.Skipf("gstreamer element %s not available", name)
		}
	}
}

func TestDiscardPipelineStopsIt(t *testing.T) {
	requireElements(t, "videotestsrc", "fakesink")

	pipeline, err := gst.NewPipelineFromString("videotestsrc ! fakesink")
	require.NoError(t, err)
	require.NoError(t, pipeline.SetState(gst.StatePaused))

	discardPipeline(pipeline)
	assert.Equal(t, gst.StateNull, pipeline.GetCurrentState())
}

func TestGStreamerStartFailure(t *testing.T) {
	requireElements(t, "appsrc", "videoconvert", "x264enc", "mp4mux", "filesink")

	g, err := NewGStreamer(GStreamerConfig{
		Width: 16, Height: 16, FPS: 30,
		Output: filepath.Join(t.TempDir(), "missing", "clip.mp4"),
	})
	assert.Error(t, err, "filesink cannot open a file in a missing directory")
	assert.Nil(t, g)

	_, err = NewGStreamer(GStreamerConfig{Width: 16, Height: 16, FPS: 30})
	assert.Error(t, err)
}

func TestProcessWritesFrames(t *testing.T) {
	requireTool(t, "sh")
	out := filepath.Join(t.TempDir(), "raw.rgba")

	p, err := NewProcess(context.Background(), ProcessConfig{
		Command: []string{"sh", "-c", "cat > " + out},
	})
	require.NoError(t, err)

	frameA := bytes.Repeat([]byte{1, 2, 3, 4}, 64)
	frameB := bytes.Repeat([]byte{5, 6, 7, 8}, 64)
	require.NoError(t, p.WriteFrame(frameA))
	require.NoError(t, p.WriteFrame(frameB))
	require.NoError(t, p.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte(nil), frameA...), frameB...), data, "frames are back to back with no header")
	assert.Equal(t, Counters{Frames: 2, Bytes: 512}, p.Counters())

	assert.ErrorIs(t, p.WriteFrame(frameA), ErrClosed)
	assert.NoError(t, p.Close(), "second Close returns the first result")
}

func TestProcessOutlivesCancelledContext(t *testing.T) {
	requireTool(t, "sh")
	out := filepath.Join(t.TempDir(), "raw.rgba")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := NewProcess(ctx, ProcessConfig{
		Command: []string{"sh", "-c", "cat > " + out + "; echo finalized >> " + out},
	})
	require.NoError(t, err)

	require.NoError(t, p.WriteFrame([]byte("frame1\n")))
	cancel()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.WriteFrame([]byte("frame2\n")))

	require.NoError(t, p.Close(), "the encoder sees end of input and exits cleanly")
	assert.Equal(t, Counters{Frames: 2, Bytes: 14}, p.Counters())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "frame1\nframe2\nfinalized\n", string(data))
}

func TestProcessShortWrite(t *testing.T) {
	requireTool(t, "head")

	p, err := NewProcess(context.Background(), ProcessConfig{
		Command: []string{"head", "-c", "100"},
	})
	require.NoError(t, err)

	pixels := make([]byte, 4096)
	require.NoError(t, p.WriteFrame(pixels))

	select {
	case <-p.exited:
	case <-time.After(5 * time.Second):
		t.Fatal("head did not exit")
	}

	// The encoder is gone; production carries on and the loss is counted.
	assert.NoError(t, p.WriteFrame(pixels))
	assert.NoError(t, p.WriteFrame(pixels))

	c := p.Counters()
	assert.Equal(t, uint64(1), c.Frames)
	assert.Equal(t, uint64(2), c.ShortWrites)

	assert.NoError(t, p.Close())
}

func TestProcessCloseKillsStuckEncoder(t *testing.T) {
	requireTool(t, "sleep")

	p, err := NewProcess(context.Background(), ProcessConfig{
		Command:      []string{"sleep", "30"},
		CloseTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	err = p.Close()
	assert.Error(t, err, "a killed encoder reports its exit")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProcessStartFailure(t *testing.T) {
	_, err := NewProcess(context.Background(), ProcessConfig{
		Command: []string{filepath.Join(t.TempDir(), "no-such-encoder")},
	})
	assert.Error(t, err)

	_, err = NewProcess(context.Background(), ProcessConfig{Width: 8, Height: 8, FPS: 30})
	assert.Error(t, err, "default command needs an output path")
}

type recordingSink struct {
	frames [][]byte
	err    error
	closed bool
}

func (s *recordingSink) WriteFrame(p []byte) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append([]byte(nil), p...))
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestTeeWritesAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.msgpack")
	timing, err := NewTimingLog(path)
	require.NoError(t, err)

	rs := &recordingSink{}
	tee := &Tee{Sink: rs, Timing: timing}

	submitted := time.Unix(1700000000, 500)
	for i := 0; i < 3; i++ {
		err := tee.Consume(frame.Frame{
			Seq:         uint64(i),
			Slot:        i % 2,
			Time:        float32(i) / 30,
			SubmittedAt: submitted.Add(time.Duration(i) * time.Millisecond),
			Pixels:      []byte{byte(i), 0, 0, 255},
		})
		require.NoError(t, err)
	}
	require.NoError(t, tee.Close())
	assert.True(t, rs.closed)
	assert.Len(t, rs.frames, 3)
	assert.Equal(t, []byte{2, 0, 0, 255}, rs.frames[2])

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := ReadTimingLog(f)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, uint64(i), rec.Seq)
		assert.Equal(t, i%2, rec.Slot)
		assert.Equal(t, float32(i)/30, rec.Time)
		assert.Equal(t, submitted.Add(time.Duration(i)*time.Millisecond).UnixNano(), rec.SubmittedAt)
		assert.GreaterOrEqual(t, rec.WrittenAt, rec.SubmittedAt)
		assert.Equal(t, 4, rec.Bytes)
	}

	assert.ErrorIs(t, timing.Record(frame.Frame{}, time.Now()), ErrClosed)
	assert.NoError(t, timing.Close())
}

func TestTeeErrors(t *testing.T) {
	rs := &recordingSink{err: errors.New("disk full")}
	tee := &Tee{Sink: rs}
	assert.NoError(t, tee.Consume(frame.Frame{Pixels: []byte{1}}), "write failures are warnings")

	rs.err = ErrClosed
	assert.ErrorIs(t, tee.Consume(frame.Frame{Pixels: []byte{1}}), ErrClosed)
}

func TestReadTimingLogTruncated(t *testing.T) {
	_, err := ReadTimingLog(bytes.NewReader([]byte{0, 0, 0, 9, 1, 2}))
	assert.Error(t, err)

	records, err := ReadTimingLog(bytes.NewReader(nil))
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestH264FileRaw(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip.h264")
	s, err := NewH264File(H264Config{Width: 16, Height: 16, FPS: 30, Output: out, GOP: 2})
	require.NoError(t, err)

	pixels := bytes.Repeat([]byte{0, 0, 0, 255}, 16*16)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.WriteFrame(pixels))
	}
	assert.NoError(t, s.WriteFrame(pixels[:8]), "bad frames are counted, not fatal")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.WriteFrame(pixels), ErrClosed)

	c := s.Counters()
	assert.Equal(t, uint64(3), c.Frames)
	assert.Equal(t, uint64(1), c.Failed)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, int(c.Bytes), len(data))
	assert.Equal(t, []byte{0, 0, 0, 1, 0x67}, data[:5], "stream opens with an SPS")
}

func TestH264FileMP4(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip.mp4")
	s, err := NewH264File(H264Config{Width: 16, Height: 16, FPS: 30, Output: out})
	require.NoError(t, err)

	require.NoError(t, s.WriteFrame(bytes.Repeat([]byte{9, 9, 9, 255}, 16*16)))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ftyp", string(data[4:8]))
	assert.True(t, bytes.Contains(data, []byte("moov")))
}
