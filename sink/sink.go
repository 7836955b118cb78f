// Package sink writes raw RGBA8 frames to a video encoder.
package sink

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/NOT-REAL-GAMES/videogen/frame"
	"github.com/NOT-REAL-GAMES/videogen/logging"
)

// ErrClosed is returned by WriteFrame after Close.
var ErrClosed = errors.New("sink is closed")

// Sink receives tightly packed RGBA8 frames, back to back, no header.
// WriteFrame must not retain pixels after it returns.
type Sink interface {
	WriteFrame(pixels []byte) error
	Close() error
}

// Counters are the per-sink delivery statistics.
type Counters struct {
	Frames      uint64
	Bytes       uint64
	ShortWrites uint64
	Failed      uint64
}

type counters struct {
	frames      atomic.Uint64
	bytes       atomic.Uint64
	shortWrites atomic.Uint64
	failed      atomic.Uint64
}

func (c *counters) snapshot() Counters {
	return Counters{
		Frames:      c.frames.Load(),
		Bytes:       c.bytes.Load(),
		ShortWrites: c.shortWrites.Load(),
		Failed:      c.failed.Load(),
	}
}

// DiscardSink counts frames and drops them.
type DiscardSink struct {
	counters
	closed atomic.Bool
}

func Discard() *DiscardSink {
	return &DiscardSink{}
}

func (d *DiscardSink) WriteFrame(pixels []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.frames.Add(1)
	d.bytes.Add(uint64(len(pixels)))
	return nil
}

func (d *DiscardSink) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *DiscardSink) Counters() Counters { return d.snapshot() }

// Tee feeds each delivered frame to a sink and, when set, a timing log.
// Write problems are logged and dropped; only ErrClosed reaches the
// render loop.
type Tee struct {
	Sink   Sink
	Timing *TimingLog
}

var _ frame.Consumer = (*Tee)(nil)

func (t *Tee) Consume(f frame.Frame) error {
	if err := t.Sink.WriteFrame(f.Pixels); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		logging.Logger().Warn("frame write failed", "seq", f.Seq, "slot", f.Slot, "error", err)
	}

	if t.Timing != nil {
		if err := t.Timing.Record(f, time.Now()); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			logging.Logger().Warn("timing record failed", "seq", f.Seq, "error", err)
		}
	}
	return nil
}

// Close closes the sink and then the timing log, returning the first error.
func (t *Tee) Close() error {
	err := t.Sink.Close()
	if t.Timing != nil {
		if terr := t.Timing.Close(); err == nil {
			err = terr
		}
	}
	return err
}
