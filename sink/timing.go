package sink

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/NOT-REAL-GAMES/videogen/frame"
)

// TimingRecord is one delivered frame in the timing sidecar.
type TimingRecord struct {
	Seq         uint64  `msgpack:"seq"`
	Slot        int     `msgpack:"slot"`
	Time        float32 `msgpack:"t"`
	SubmittedAt int64   `msgpack:"submitted_unix_nano"`
	WrittenAt   int64   `msgpack:"written_unix_nano"`
	Bytes       int     `msgpack:"bytes"`
}

// TimingLog appends msgpack records, each behind a 4-byte big-endian
// length, so raw video can be re-timed afterwards.
type TimingLog struct {
	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

func NewTimingLog(path string) (*TimingLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create timing log: %w", err)
	}
	return &TimingLog{file: f, w: bufio.NewWriter(f)}, nil
}

func (l *TimingLog) Record(f frame.Frame, written time.Time) error {
	data, err := msgpack.Marshal(&TimingRecord{
		Seq:         f.Seq,
		Slot:        f.Slot,
		Time:        f.Time,
		SubmittedAt: f.SubmittedAt.UnixNano(),
		WrittenAt:   written.UnixNano(),
		Bytes:       len(f.Pixels),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal timing record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := l.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write timing record: %w", err)
	}
	if _, err := l.w.Write(data); err != nil {
		return fmt.Errorf("failed to write timing record: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Calling it again does nothing.
func (l *TimingLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.w.Flush()
	closeErr := l.file.Close()
	return errors.Join(flushErr, closeErr)
}

// ReadTimingLog decodes every record from r.
func ReadTimingLog(r io.Reader) ([]TimingRecord, error) {
	br := bufio.NewReader(r)
	var records []TimingRecord
	for {
		var prefix [4]byte
		if _, err := io.ReadFull(br, prefix[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("failed to read record length: %w", err)
		}

		data := make([]byte, binary.BigEndian.Uint32(prefix[:]))
		if _, err := io.ReadFull(br, data); err != nil {
			return records, fmt.Errorf("failed to read record: %w", err)
		}

		var rec TimingRecord
		if err := msgpack.Unmarshal(data, &rec); err != nil {
			return records, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}
}
