// Package h264 writes lossless H.264 streams built from I_PCM macroblocks,
// either as an Annex B elementary stream or inside an MP4 file.
package h264

// NAL unit types used by the encoder.
const (
	NALSlice    = 1
	NALSliceIDR = 5
	NALSPS      = 7
	NALPPS      = 8
)

var startCode = []byte{0, 0, 0, 1}

// BitWriter appends MSB-first bit fields to a byte slice.
type BitWriter struct {
	buf  []byte
	used int // bits used in the last byte, 0 when aligned
}

func NewBitWriter(capacity int) *BitWriter {
	return &BitWriter{buf: make([]byte, 0, capacity)}
}

func (w *BitWriter) WriteBits(value uint32, n int) {
	for n > 0 {
		if w.used == 0 {
			w.buf = append(w.buf, 0)
		}
		take := min(8-w.used, n)
		bits := byte(value>>(n-take)) & byte(1<<take-1)
		w.buf[len(w.buf)-1] |= bits << (8 - w.used - take)
		w.used = (w.used + take) % 8
		n -= take
	}
}

func (w *BitWriter) WriteFlag(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// WriteUE writes an unsigned Exp-Golomb code.
func (w *BitWriter) WriteUE(v uint32) {
	x := uint64(v) + 1
	size := 0
	for t := x; t > 1; t >>= 1 {
		size++
	}
	w.WriteBits(0, size)
	w.WriteBits(uint32(x), size+1)
}

// WriteSE writes a signed Exp-Golomb code.
func (w *BitWriter) WriteSE(v int32) {
	if v <= 0 {
		w.WriteUE(uint32(-v) * 2)
	} else {
		w.WriteUE(uint32(v)*2 - 1)
	}
}

// Align pads with zero bits to the next byte boundary.
func (w *BitWriter) Align() {
	if w.used != 0 {
		w.WriteBits(0, 8-w.used)
	}
}

// Trailing writes rbsp_trailing_bits: a stop bit and zero padding.
func (w *BitWriter) Trailing() {
	w.WriteBits(1, 1)
	w.Align()
}

func (w *BitWriter) Bytes() []byte { return w.buf }

// Aligned reports whether the next write starts a new byte.
func (w *BitWriter) Aligned() bool { return w.used == 0 }

// NAL wraps an RBSP payload with a start code and header, inserting
// emulation prevention bytes.
func NAL(nalType byte, refIdc byte, rbsp []byte) []byte {
	out := make([]byte, 0, len(startCode)+1+len(rbsp)+len(rbsp)/64)
	out = append(out, startCode...)
	out = append(out, refIdc<<5|nalType)

	zeros := 0
	for _, b := range rbsp {
		if zeros == 2 && b <= 3 {
			out = append(out, 3)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// SplitAnnexB returns the NAL units in an Annex B stream without their
// start codes.
func SplitAnnexB(stream []byte) [][]byte {
	var units [][]byte
	start := -1
	i := 0
	for i+2 < len(stream) {
		if stream[i] == 0 && stream[i+1] == 0 && stream[i+2] == 1 {
			if start >= 0 {
				units = append(units, trimZeros(stream[start:i]))
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(stream) {
		units = append(units, stream[start:])
	}
	return units
}

// trimZeros drops the leading zero of a four-byte start code that belongs
// to the next unit.
func trimZeros(unit []byte) []byte {
	for len(unit) > 0 && unit[len(unit)-1] == 0 {
		unit = unit[:len(unit)-1]
	}
	return unit
}
