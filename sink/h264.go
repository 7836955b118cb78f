package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/NOT-REAL-GAMES/videogen/h264"
	"github.com/NOT-REAL-GAMES/videogen/logging"
)

type H264Config struct {
	Width, Height uint32
	FPS           int

	// Output ending in .h264 or .264 gets a raw Annex B stream, anything
	// else an MP4 file.
	Output string
	GOP    int
}

// H264File encodes in-process with no external encoder. The stream is
// lossless I_PCM, so files are large.
type H264File struct {
	counters

	enc  *h264.Encoder
	file *os.File
	raw  *bufio.Writer
	mp4  *h264.MP4Writer

	mu     sync.Mutex
	closed bool
	err    error
}

func NewH264File(cfg H264Config) (*H264File, error) {
	if cfg.Output == "" {
		return nil, errors.New("encoder output path is required")
	}

	enc, err := h264.NewEncoder(h264.Config{Width: cfg.Width, Height: cfg.Height, GOP: cfg.GOP})
	if err != nil {
		return nil, err
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.Output, err)
	}

	s := &H264File{enc: enc, file: f}
	switch strings.ToLower(filepath.Ext(cfg.Output)) {
	case ".h264", ".264":
		s.raw = bufio.NewWriterSize(f, 1<<20)
	default:
		if s.mp4, err = h264.NewMP4Writer(f, cfg.Width, cfg.Height, cfg.FPS, enc.SPS(), enc.PPS()); err != nil {
			f.Close()
			return nil, err
		}
	}

	logging.Logger().Info("h264 writer started", "output", cfg.Output, "mp4", s.mp4 != nil)
	return s, nil
}

func (s *H264File) WriteFrame(pixels []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	au, key, err := s.enc.Encode(pixels)
	if err != nil {
		s.failed.Add(1)
		logging.Logger().Warn("frame encode failed", "error", err)
		return nil
	}

	if s.mp4 != nil {
		err = s.mp4.WriteSample(au, key)
	} else {
		_, err = s.raw.Write(au)
	}
	if err != nil {
		s.failed.Add(1)
		logging.Logger().Warn("frame write failed", "output", s.file.Name(), "error", err)
		return nil
	}

	s.frames.Add(1)
	s.bytes.Add(uint64(len(au)))
	return nil
}

// Close finishes the container and closes the file. Calling it again
// returns the first result.
func (s *H264File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.err
	}
	s.closed = true

	var finishErr error
	if s.mp4 != nil {
		finishErr = s.mp4.Close()
	} else {
		finishErr = s.raw.Flush()
	}
	s.err = errors.Join(finishErr, s.file.Close())

	logging.Logger().Info("h264 writer finished", "output", s.file.Name(), "frames", s.frames.Load())
	return s.err
}

func (s *H264File) Counters() Counters { return s.snapshot() }
