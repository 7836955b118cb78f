package h264

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MP4Writer streams access units into an MP4 file. Samples go straight to
// the mdat box; only their sizes and sync flags are kept for the moov box
// written by Close. The mdat uses a 64-bit size and chunk offsets are
// co64, so files may exceed 4 GiB.
type MP4Writer struct {
	out io.WriteSeeker
	bw  *bufio.Writer

	width, height uint32
	timescale     uint32
	sps, pps      []byte

	mdatStart int64
	written   int64
	sizes     []uint32
	keys      []uint32
	closed    bool
}

var ErrWriterClosed = errors.New("mp4 writer is closed")

// NewMP4Writer writes the file header. sps and pps are NAL units without
// start codes. Every sample lasts one tick of a timescale equal to fps.
func NewMP4Writer(out io.WriteSeeker, width, height uint32, fps int, sps, pps []byte) (*MP4Writer, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %d", fps)
	}
	if len(sps) < 4 || len(pps) == 0 {
		return nil, errors.New("missing parameter sets")
	}

	start, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to query output position: %w", err)
	}

	m := &MP4Writer{
		out:       out,
		bw:        bufio.NewWriterSize(out, 1<<20),
		width:     width,
		height:    height,
		timescale: uint32(fps),
		sps:       sps,
		pps:       pps,
	}

	ftyp := box("ftyp", []byte("isom"), u32(0x200), []byte("isomiso2avc1mp41"))
	// The real size is patched into the largesize field by Close.
	mdat := append(u32(1), []byte("mdat")...)
	mdat = append(mdat, make([]byte, 8)...)

	if _, err := m.bw.Write(ftyp); err != nil {
		return nil, fmt.Errorf("failed to write ftyp: %w", err)
	}
	if _, err := m.bw.Write(mdat); err != nil {
		return nil, fmt.Errorf("failed to write mdat header: %w", err)
	}
	m.mdatStart = start + int64(len(ftyp))
	m.written = int64(len(mdat))
	return m, nil
}

// WriteSample appends one Annex B access unit. Parameter sets are dropped
// from the sample since they live in the avcC box.
func (m *MP4Writer) WriteSample(au []byte, key bool) error {
	if m.closed {
		return ErrWriterClosed
	}

	var size uint32
	for _, unit := range SplitAnnexB(au) {
		if len(unit) == 0 {
			continue
		}
		if t := unit[0] & 0x1F; t == NALSPS || t == NALPPS {
			continue
		}
		if _, err := m.bw.Write(u32(uint32(len(unit)))); err != nil {
			return err
		}
		if _, err := m.bw.Write(unit); err != nil {
			return err
		}
		size += 4 + uint32(len(unit))
	}

	m.written += int64(size)
	m.sizes = append(m.sizes, size)
	if key {
		m.keys = append(m.keys, uint32(len(m.sizes)))
	}
	return nil
}

// Samples returns how many samples have been written.
func (m *MP4Writer) Samples() int { return len(m.sizes) }

// Close patches the mdat size and appends the moov box. It does not close
// the underlying writer.
func (m *MP4Writer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	if err := m.bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush samples: %w", err)
	}

	if _, err := m.out.Seek(m.mdatStart+8, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to mdat: %w", err)
	}
	if _, err := m.out.Write(u64(uint64(m.written))); err != nil {
		return fmt.Errorf("failed to patch mdat size: %w", err)
	}
	if _, err := m.out.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	if _, err := m.out.Write(m.moov()); err != nil {
		return fmt.Errorf("failed to write moov: %w", err)
	}
	return nil
}

var identityMatrix = []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}

func (m *MP4Writer) moov() []byte {
	duration := uint32(len(m.sizes))

	mvhd := fullBox("mvhd", 0, 0,
		u32(0), u32(0), // creation and modification time
		u32(m.timescale), u32(duration),
		u32(0x00010000), u16(0x0100), make([]byte, 10),
		u32s(identityMatrix), make([]byte, 24),
		u32(2), // next_track_ID
	)

	tkhd := fullBox("tkhd", 0, 3,
		u32(0), u32(0),
		u32(1), u32(0), // track_ID, reserved
		u32(duration), make([]byte, 8),
		u16(0), u16(0), u16(0), u16(0), // layer, alternate_group, volume, reserved
		u32s(identityMatrix),
		u32(m.width<<16), u32(m.height<<16),
	)

	mdhd := fullBox("mdhd", 0, 0, u32(0), u32(0), u32(m.timescale), u32(duration), u16(0x55C4), u16(0))
	hdlr := fullBox("hdlr", 0, 0, u32(0), []byte("vide"), make([]byte, 12), []byte("VideoHandler\x00"))

	vmhd := fullBox("vmhd", 0, 1, make([]byte, 8))
	dinf := box("dinf", fullBox("dref", 0, 0, u32(1), fullBox("url ", 0, 1)))

	stbl := box("stbl",
		m.stsd(),
		fullBox("stts", 0, 0, u32(1), u32(duration), u32(1)),
		fullBox("stss", 0, 0, u32(uint32(len(m.keys))), u32s(m.keys)),
		fullBox("stsc", 0, 0, u32(1), u32(1), u32(1), u32(1)),
		fullBox("stsz", 0, 0, u32(0), u32(duration), u32s(m.sizes)),
		m.co64(),
	)

	minf := box("minf", vmhd, dinf, stbl)
	mdia := box("mdia", mdhd, hdlr, minf)
	trak := box("trak", tkhd, mdia)
	return box("moov", mvhd, trak)
}

func (m *MP4Writer) stsd() []byte {
	avcC := box("avcC",
		[]byte{1, m.sps[1], m.sps[2], m.sps[3], 0xFF, 0xE1},
		u16(uint16(len(m.sps))), m.sps,
		[]byte{1},
		u16(uint16(len(m.pps))), m.pps,
	)

	avc1 := box("avc1",
		make([]byte, 6), u16(1), // reserved, data_reference_index
		make([]byte, 16), // pre_defined and reserved
		u16(uint16(m.width)), u16(uint16(m.height)),
		u32(0x00480000), u32(0x00480000), // 72 dpi
		u32(0), u16(1), // reserved, frame_count
		make([]byte, 32), // compressorname
		u16(0x0018), u16(0xFFFF),
		avcC,
	)

	return fullBox("stsd", 0, 0, u32(1), avc1)
}

// co64 lists one chunk per sample.
func (m *MP4Writer) co64() []byte {
	offsets := make([]byte, 0, 8*len(m.sizes))
	off := uint64(m.mdatStart) + 16
	for _, s := range m.sizes {
		offsets = append(offsets, u64(off)...)
		off += uint64(s)
	}
	return fullBox("co64", 0, 0, u32(uint32(len(m.sizes))), offsets)
}

func box(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	out := make([]byte, 0, size)
	out = append(out, u32(uint32(size))...)
	out = append(out, typ...)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

func fullBox(typ string, version byte, flags uint32, payload ...[]byte) []byte {
	header := []byte{version, byte(flags >> 16), byte(flags >> 8), byte(flags)}
	return box(typ, append([][]byte{header}, payload...)...)
}

func u16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
func u64(v uint64) []byte { return binary.BigEndian.AppendUint64(nil, v) }

func u32s(vs []uint32) []byte {
	out := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		out = binary.BigEndian.AppendUint32(out, v)
	}
	return out
}
