package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NOT-REAL-GAMES/videogen/logging"
)

const DefaultCloseTimeout = 5 * time.Second

type ProcessConfig struct {
	// Command is the encoder argv. Empty means FFmpegArgs.
	Command []string

	Width, Height uint32
	FPS           int
	Output        string

	CloseTimeout time.Duration
}

// FFmpegArgs is the default encoder: raw RGBA on stdin to H.264 in Output.
func FFmpegArgs(width, height uint32, fps int, output string) []string {
	return []string{
		"ffmpeg", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		output,
	}
}

// Process pipes frames into an encoder's stdin. A short or failed write is
// logged and counted but does not stop the caller.
type Process struct {
	counters

	cmd          *exec.Cmd
	stdin        io.WriteCloser
	group        *errgroup.Group
	exited       chan struct{}
	closeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	waitMu sync.Mutex
	err    error

	running atomic.Bool
}

// NewProcess starts the encoder. Cancelling ctx does not stop it: the
// encoder must see end of input to finish its file, so only Close ends it,
// and Close kills it after the close timeout.
func NewProcess(ctx context.Context, cfg ProcessConfig) (*Process, error) {
	argv := cfg.Command
	if len(argv) == 0 {
		if cfg.Output == "" {
			return nil, errors.New("encoder output path is required")
		}
		argv = FFmpegArgs(cfg.Width, cfg.Height, cfg.FPS, cfg.Output)
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}

	cmd := exec.CommandContext(context.WithoutCancel(ctx), argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open encoder stdin: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open encoder stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start encoder %q: %w", argv[0], err)
	}

	p := &Process{
		cmd:          cmd,
		stdin:        stdin,
		group:        &errgroup.Group{},
		exited:       make(chan struct{}),
		closeTimeout: cfg.CloseTimeout,
	}
	p.running.Store(true)

	log := logging.Logger().With("encoder", argv[0], "pid", cmd.Process.Pid)
	log.Info("encoder started", "args", argv[1:])

	// Stderr must be drained before Wait is called.
	stderrDone := make(chan struct{})
	p.group.Go(func() error {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug("encoder output", "line", scanner.Text())
		}
		return nil
	})

	p.group.Go(func() error {
		<-stderrDone
		err := cmd.Wait()
		p.running.Store(false)
		close(p.exited)
		if err != nil {
			log.Warn("encoder exited", "error", err)
			return fmt.Errorf("encoder exited: %w", err)
		}
		log.Info("encoder exited")
		return nil
	})

	return p, nil
}

// WriteFrame writes all of pixels to the encoder.
func (p *Process) WriteFrame(pixels []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	n, err := p.stdin.Write(pixels)
	p.bytes.Add(uint64(n))
	if n < len(pixels) {
		p.shortWrites.Add(1)
		logging.Logger().Warn("short write to encoder",
			"expected", len(pixels),
			"written", n,
			"running", p.running.Load(),
			"error", err)
		return nil
	}
	if err != nil {
		p.failed.Add(1)
		logging.Logger().Warn("write to encoder failed", "running", p.running.Load(), "error", err)
		return nil
	}

	p.frames.Add(1)
	return nil
}

// Close ends the stream and waits for the encoder, killing it if it has not
// exited within the close timeout. Calling it again returns the first
// result.
func (p *Process) Close() error {
	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()

	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	if alreadyClosed {
		return p.err
	}

	if err := p.stdin.Close(); err != nil {
		logging.Logger().Debug("encoder stdin close", "error", err)
	}

	select {
	case <-p.exited:
	case <-time.After(p.closeTimeout):
		logging.Logger().Warn("encoder did not exit in time, killing it", "timeout", p.closeTimeout)
		if err := p.cmd.Process.Kill(); err != nil {
			logging.Logger().Error("failed to kill encoder", "error", err)
		}
	}

	p.err = p.group.Wait()
	return p.err
}

func (p *Process) Counters() Counters { return p.snapshot() }
