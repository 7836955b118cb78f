package h264

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteUE(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x80}}, // 1
		{1, []byte{0x40}}, // 010
		{2, []byte{0x60}}, // 011
		{3, []byte{0x20}}, // 00100
		{7, []byte{0x10}}, // 0001000
		{25, []byte{0x0D, 0x00}},
	}
	for _, tt := range tests {
		w := NewBitWriter(4)
		w.WriteUE(tt.value)
		assert.Equal(t, tt.want, w.Bytes(), "ue(%d)", tt.value)
	}
}

func TestWriteSE(t *testing.T) {
	for value, code := range map[int32]uint32{0: 0, 1: 1, -1: 2, 2: 3, -2: 4} {
		se := NewBitWriter(2)
		se.WriteSE(value)
		ue := NewBitWriter(2)
		ue.WriteUE(code)
		assert.Equal(t, ue.Bytes(), se.Bytes(), "se(%d)", value)
	}
}

func TestWriteBitsAcrossBytes(t *testing.T) {
	w := NewBitWriter(4)
	w.WriteBits(0b101, 3)
	w.WriteBits(0xABC, 12)
	assert.False(t, w.Aligned())
	w.Trailing()
	assert.True(t, w.Aligned())
	// 101 1010 1011 1100 1 -> 1011 0101 0111 1001
	assert.Equal(t, []byte{0xB5, 0x79}, w.Bytes())
}

func TestNALEmulationPrevention(t *testing.T) {
	got := NAL(NALSlice, 3, []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x04})
	assert.Equal(t, []byte{
		0, 0, 0, 1, 0x61,
		0x00, 0x00, 0x03, 0x01,
		0x00, 0x00, 0x03, 0x00, 0x00, 0x04,
	}, got)
}

func TestSplitAnnexB(t *testing.T) {
	stream := []byte{0, 0, 0, 1, 0x67, 1, 2, 0, 0, 1, 0x68, 3, 0, 0, 0, 1, 0x65, 4, 5}
	units := SplitAnnexB(stream)
	assert.Equal(t, [][]byte{{0x67, 1, 2}, {0x68, 3}, {0x65, 4, 5}}, units)
}

func TestRGBToYCbCr(t *testing.T) {
	tests := []struct {
		r, g, b   uint8
		y, cb, cr uint8
	}{
		{0, 0, 0, 16, 128, 128},
		{255, 255, 255, 235, 128, 128},
		{255, 0, 0, 82, 90, 240},
	}
	for _, tt := range tests {
		y, cb, cr := RGBToYCbCr(tt.r, tt.g, tt.b)
		assert.Equal(t, []uint8{tt.y, tt.cb, tt.cr}, []uint8{y, cb, cr}, "rgb(%d,%d,%d)", tt.r, tt.g, tt.b)
	}
}

func solid(w, h int, r, g, b byte) []byte {
	return bytes.Repeat([]byte{r, g, b, 255}, w*h)
}

func nalTypes(au []byte) []byte {
	var types []byte
	for _, u := range SplitAnnexB(au) {
		types = append(types, u[0]&0x1F)
	}
	return types
}

func TestEncoderGOP(t *testing.T) {
	enc, err := NewEncoder(Config{Width: 32, Height: 32, GOP: 2})
	require.NoError(t, err)

	var keys []bool
	var types [][]byte
	for i := 0; i < 5; i++ {
		au, key, err := enc.Encode(solid(32, 32, 10, 200, 30))
		require.NoError(t, err)
		keys = append(keys, key)
		types = append(types, nalTypes(au))
	}

	assert.Equal(t, []bool{true, false, true, false, true}, keys)
	assert.Equal(t, []byte{NALSPS, NALPPS, NALSliceIDR}, types[0])
	assert.Equal(t, []byte{NALSlice}, types[1])
	assert.Equal(t, []byte{NALSPS, NALPPS, NALSliceIDR}, types[2])
}

func TestEncoderCarriesSamples(t *testing.T) {
	enc, err := NewEncoder(Config{Width: 16, Height: 16})
	require.NoError(t, err)

	au, _, err := enc.Encode(solid(16, 16, 255, 255, 255))
	require.NoError(t, err)

	units := SplitAnnexB(au)
	require.Len(t, units, 3)
	slice := units[2]

	// One macroblock of white: 256 luma samples at 235, then 128 chroma
	// samples at 128.
	want := append(bytes.Repeat([]byte{235}, 256), bytes.Repeat([]byte{128}, 128)...)
	assert.True(t, bytes.Contains(slice, want), "slice holds the raw samples")
	assert.Equal(t, byte(0x80), slice[len(slice)-1], "stop bit after the last macroblock")
}

func TestEncoderCropsOddSizes(t *testing.T) {
	enc, err := NewEncoder(Config{Width: 20, Height: 18})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), enc.mbWidth)
	assert.Equal(t, uint32(2), enc.mbHeight)

	_, _, err = enc.Encode(solid(20, 18, 1, 2, 3))
	assert.NoError(t, err)
}

func TestEncoderRejectsWrongSize(t *testing.T) {
	enc, err := NewEncoder(Config{Width: 16, Height: 16})
	require.NoError(t, err)
	_, _, err = enc.Encode(make([]byte, 10))
	assert.ErrorIs(t, err, ErrFrameSize)

	_, err = NewEncoder(Config{Width: 0, Height: 16})
	assert.Error(t, err)
}

func findBox(t *testing.T, data []byte, typ string) []byte {
	t.Helper()
	i := bytes.Index(data, []byte(typ))
	require.GreaterOrEqual(t, i, 4, "box %s", typ)
	size := binary.BigEndian.Uint32(data[i-4:])
	return data[i+4 : i-4+int(size)]
}

func TestMP4Writer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc, err := NewEncoder(Config{Width: 32, Height: 16, GOP: 3})
	require.NoError(t, err)

	mw, err := NewMP4Writer(f, 32, 16, 30, enc.SPS(), enc.PPS())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		au, key, err := enc.Encode(solid(32, 16, byte(i*40), 0, 0))
		require.NoError(t, err)
		require.NoError(t, mw.WriteSample(au, key))
	}
	require.NoError(t, mw.Close())
	require.NoError(t, mw.Close())
	assert.ErrorIs(t, mw.WriteSample(nil, false), ErrWriterClosed)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// ftyp, then a 64-bit mdat, then moov filling the rest.
	ftypSize := int(binary.BigEndian.Uint32(data))
	assert.Equal(t, "ftyp", string(data[4:8]))
	mdat := data[ftypSize:]
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(mdat))
	assert.Equal(t, "mdat", string(mdat[4:8]))
	mdatSize := int(binary.BigEndian.Uint64(mdat[8:16]))
	moov := mdat[mdatSize:]
	assert.Equal(t, "moov", string(moov[4:8]))
	assert.Equal(t, len(moov), int(binary.BigEndian.Uint32(moov)))

	// First sample is a length-prefixed IDR slice with no parameter sets.
	assert.Equal(t, byte(0x65), mdat[16+4])

	stsz := findBox(t, moov, "stsz")
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(stsz[8:12]))

	stss := findBox(t, moov, "stss")
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(stss[4:8]))
	assert.Equal(t, []uint32{1, 4}, []uint32{binary.BigEndian.Uint32(stss[8:]), binary.BigEndian.Uint32(stss[12:])})

	co64 := findBox(t, moov, "co64")
	assert.Equal(t, uint64(ftypSize+16), binary.BigEndian.Uint64(co64[8:16]))

	avcC := findBox(t, moov, "avcC")
	assert.Equal(t, []byte{1, 66, 0xC0, 51}, avcC[:4])
}
