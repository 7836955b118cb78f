package h264

import (
	"errors"
	"fmt"
)

const (
	profileBaseline = 66
	level51         = 51

	// log2_max_frame_num_minus4 is 0, so frame_num is 4 bits.
	maxFrameNum = 16

	mbTypeIPCM = 25
	sliceTypeI = 7

	DefaultGOP = 30
)

var ErrFrameSize = errors.New("frame size does not match encoder")

type Config struct {
	Width, Height uint32

	// GOP is the distance between IDR pictures. Zero means DefaultGOP.
	GOP int
}

// Encoder turns RGBA8 frames into I_PCM access units. Every macroblock
// carries raw 4:2:0 samples, so the output is lossless apart from the
// colour conversion and chroma subsampling.
type Encoder struct {
	cfg      Config
	mbWidth  uint32
	mbHeight uint32
	sps      []byte
	pps      []byte

	frames   uint64
	gopFrame uint32
	idrPicID uint32
}

func NewEncoder(cfg Config) (*Encoder, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.GOP <= 0 {
		cfg.GOP = DefaultGOP
	}

	e := &Encoder{
		cfg:      cfg,
		mbWidth:  (cfg.Width + 15) / 16,
		mbHeight: (cfg.Height + 15) / 16,
	}
	e.sps = e.buildSPS()
	e.pps = buildPPS()
	return e, nil
}

// SPS returns the sequence parameter set NAL unit without a start code.
func (e *Encoder) SPS() []byte { return e.sps[len(startCode):] }

// PPS returns the picture parameter set NAL unit without a start code.
func (e *Encoder) PPS() []byte { return e.pps[len(startCode):] }

// Encode returns one Annex B access unit for rgba. IDR access units start
// with the SPS and PPS.
func (e *Encoder) Encode(rgba []byte) (au []byte, key bool, err error) {
	if want := int(e.cfg.Width) * int(e.cfg.Height) * 4; len(rgba) != want {
		return nil, false, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(rgba), want)
	}

	key = e.frames == 0 || e.gopFrame >= uint32(e.cfg.GOP)
	if key {
		e.gopFrame = 0
	}

	slice := e.buildSlice(rgba, key)
	if key {
		au = make([]byte, 0, len(e.sps)+len(e.pps)+len(slice)+8)
		au = append(au, e.sps...)
		au = append(au, e.pps...)
		au = append(au, NAL(NALSliceIDR, 3, slice)...)
		e.idrPicID = (e.idrPicID + 1) & 0xFFFF
	} else {
		au = NAL(NALSlice, 3, slice)
	}

	e.frames++
	e.gopFrame++
	return au, key, nil
}

func (e *Encoder) buildSPS() []byte {
	w := NewBitWriter(32)
	w.WriteBits(profileBaseline, 8)
	w.WriteBits(0xC0, 8) // constraint_set0 and constraint_set1
	w.WriteBits(level51, 8)
	w.WriteUE(0) // seq_parameter_set_id
	w.WriteUE(0) // log2_max_frame_num_minus4
	w.WriteUE(2) // pic_order_cnt_type
	w.WriteUE(1) // max_num_ref_frames
	w.WriteFlag(false)
	w.WriteUE(e.mbWidth - 1)
	w.WriteUE(e.mbHeight - 1)
	w.WriteFlag(true) // frame_mbs_only_flag
	w.WriteFlag(true) // direct_8x8_inference_flag

	// Crop offsets are in units of two luma samples for 4:2:0 frames.
	cropRight := (e.mbWidth*16 - e.cfg.Width) / 2
	cropBottom := (e.mbHeight*16 - e.cfg.Height) / 2
	if cropRight > 0 || cropBottom > 0 {
		w.WriteFlag(true)
		w.WriteUE(0)
		w.WriteUE(cropRight)
		w.WriteUE(0)
		w.WriteUE(cropBottom)
	} else {
		w.WriteFlag(false)
	}

	w.WriteFlag(false) // vui_parameters_present_flag
	w.Trailing()
	return NAL(NALSPS, 3, w.Bytes())
}

func buildPPS() []byte {
	w := NewBitWriter(16)
	w.WriteUE(0)       // pic_parameter_set_id
	w.WriteUE(0)       // seq_parameter_set_id
	w.WriteFlag(false) // CAVLC
	w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(0)       // num_slice_groups_minus1
	w.WriteUE(0)       // num_ref_idx_l0_default_active_minus1
	w.WriteUE(0)       // num_ref_idx_l1_default_active_minus1
	w.WriteFlag(false) // weighted_pred_flag
	w.WriteBits(0, 2)  // weighted_bipred_idc
	w.WriteSE(0)       // pic_init_qp_minus26
	w.WriteSE(0)       // pic_init_qs_minus26
	w.WriteSE(0)       // chroma_qp_index_offset
	w.WriteFlag(true)  // deblocking_filter_control_present_flag
	w.WriteFlag(false) // constrained_intra_pred_flag
	w.WriteFlag(false) // redundant_pic_cnt_present_flag
	w.Trailing()
	return NAL(NALPPS, 3, w.Bytes())
}

func (e *Encoder) buildSlice(rgba []byte, idr bool) []byte {
	mbs := int(e.mbWidth * e.mbHeight)
	w := NewBitWriter(16 + mbs*(384+2))

	w.WriteUE(0) // first_mb_in_slice
	w.WriteUE(sliceTypeI)
	w.WriteUE(0) // pic_parameter_set_id
	w.WriteBits(e.gopFrame%maxFrameNum, 4)
	if idr {
		w.WriteUE(e.idrPicID)
		w.WriteFlag(false) // no_output_of_prior_pics_flag
		w.WriteFlag(false) // long_term_reference_flag
	} else {
		w.WriteFlag(false) // adaptive_ref_pic_marking_mode_flag
	}
	w.WriteSE(0) // slice_qp_delta
	w.WriteUE(1) // disable_deblocking_filter_idc

	var luma [256]byte
	var cb, cr [64]byte
	for mbY := uint32(0); mbY < e.mbHeight; mbY++ {
		for mbX := uint32(0); mbX < e.mbWidth; mbX++ {
			w.WriteUE(mbTypeIPCM)
			w.Align()

			e.macroblock(rgba, mbX, mbY, &luma, &cb, &cr)
			w.buf = append(w.buf, luma[:]...)
			w.buf = append(w.buf, cb[:]...)
			w.buf = append(w.buf, cr[:]...)
		}
	}

	w.Trailing()
	return w.Bytes()
}

// macroblock converts one 16x16 block. Samples past the picture edge repeat
// the nearest edge pixel and are cropped away by the SPS.
func (e *Encoder) macroblock(rgba []byte, mbX, mbY uint32, luma *[256]byte, cb, cr *[64]byte) {
	width, height := e.cfg.Width, e.cfg.Height
	pixel := func(x, y uint32) (r, g, b int32) {
		x = min(x, width-1)
		y = min(y, height-1)
		i := (y*width + x) * 4
		return int32(rgba[i]), int32(rgba[i+1]), int32(rgba[i+2])
	}

	for y := uint32(0); y < 16; y++ {
		for x := uint32(0); x < 16; x++ {
			r, g, b := pixel(mbX*16+x, mbY*16+y)
			luma[y*16+x] = lumaOf(r, g, b)
		}
	}

	for y := uint32(0); y < 8; y++ {
		for x := uint32(0); x < 8; x++ {
			px, py := mbX*16+x*2, mbY*16+y*2
			var r, g, b int32
			for _, d := range [4][2]uint32{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				pr, pg, pb := pixel(px+d[0], py+d[1])
				r, g, b = r+pr, g+pg, b+pb
			}
			cb[y*8+x], cr[y*8+x] = chromaOf((r+2)/4, (g+2)/4, (b+2)/4)
		}
	}
}

// RGBToYCbCr converts with BT.601 limited-range coefficients.
func RGBToYCbCr(r, g, b uint8) (y, cb, cr uint8) {
	ri, gi, bi := int32(r), int32(g), int32(b)
	cb, cr = chromaOf(ri, gi, bi)
	return lumaOf(ri, gi, bi), cb, cr
}

func lumaOf(r, g, b int32) uint8 {
	return uint8(clamp(((66*r+129*g+25*b+128)>>8)+16, 16, 235))
}

func chromaOf(r, g, b int32) (cb, cr uint8) {
	cb = uint8(clamp(((-38*r-74*g+112*b+128)>>8)+128, 16, 240))
	cr = uint8(clamp(((112*r-94*g-18*b+128)>>8)+128, 16, 240))
	return cb, cr
}

func clamp(v, lo, hi int32) int32 {
	return max(lo, min(v, hi))
}
