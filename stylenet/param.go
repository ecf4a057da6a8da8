package stylenet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ParamMagic is the leading word of a binary architecture descriptor.
const ParamMagic = 7767517

// paramHeaderSize is magic, layer count and blob count, each a little-endian int32.
const paramHeaderSize = 12

// ParamHeader is the fixed prefix of a binary architecture descriptor.
type ParamHeader struct {
	LayerCount int
	BlobCount  int
}

// ParseParamHeader reads the header of a binary architecture descriptor.
func ParseParamHeader(data []byte) (ParamHeader, error) {
	if len(data) < paramHeaderSize {
		return ParamHeader{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidParam, len(data))
	}
	magic := int32(binary.LittleEndian.Uint32(data[0:4]))
	if magic != ParamMagic {
		return ParamHeader{}, fmt.Errorf("%w: bad magic %d", ErrInvalidParam, magic)
	}
	h := ParamHeader{
		LayerCount: int(int32(binary.LittleEndian.Uint32(data[4:8]))),
		BlobCount:  int(int32(binary.LittleEndian.Uint32(data[8:12]))),
	}
	if h.LayerCount <= 0 || h.BlobCount < 2 {
		return ParamHeader{}, fmt.Errorf("%w: %d layers, %d blobs", ErrInvalidParam, h.LayerCount, h.BlobCount)
	}
	return h, nil
}

// OutputIndex is the index of the last blob in the graph, which is the
// single network output for the style models.
func (h ParamHeader) OutputIndex() int {
	return h.BlobCount - 1
}

// EncodeParamHeader writes a descriptor header with no layer bodies.
// The reference backend only reads the header, so this is enough for fixtures.
func EncodeParamHeader(h ParamHeader) []byte {
	buf := make([]byte, paramHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(ParamMagic))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.LayerCount))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.BlobCount))
	return buf
}

// ColorTransform is the pointwise network evaluated by the reference backend:
// out[c] = sum_k Matrix[c][k] * in[k] + Bias[c] for every pixel.
// It is stored at the head of a weight blob as ColorTransformMagic followed by
// twelve little-endian float32 values, matrix rows first.
type ColorTransform struct {
	Matrix [3][3]float32
	Bias   [3]float32
}

// ColorTransformMagic is the leading word of a reference weight blob ("STCT").
// ncnn weight files start with a storage flag word instead (0 for fp32, or a
// fp16/int8 tag) and are refused.
const ColorTransformMagic = 0x54435453

const colorTransformSize = 4 + 12*4

// IdentityTransform returns the transform that leaves pixels unchanged.
func IdentityTransform() ColorTransform {
	return ColorTransform{Matrix: [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// MarshalBinary encodes the transform as a weight blob.
func (t ColorTransform) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(ColorTransformMagic)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, t.Matrix); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, t.Bias); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseColorTransform decodes a weight blob. Trailing bytes are ignored.
func ParseColorTransform(data []byte) (ColorTransform, error) {
	var t ColorTransform
	if len(data) < colorTransformSize {
		return t, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidWeight, len(data), colorTransformSize)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != ColorTransformMagic {
		return t, fmt.Errorf("%w: leading word %#08x is not a reference weight blob", ErrInvalidWeight, magic)
	}
	r := bytes.NewReader(data[4:colorTransformSize])
	if err := binary.Read(r, binary.LittleEndian, &t.Matrix); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidWeight, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &t.Bias); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidWeight, err)
	}
	for _, row := range t.Matrix {
		for _, v := range row {
			if !finite(v) {
				return t, fmt.Errorf("%w: non-finite coefficient", ErrInvalidWeight)
			}
		}
	}
	for _, v := range t.Bias {
		if !finite(v) {
			return t, fmt.Errorf("%w: non-finite bias", ErrInvalidWeight)
		}
	}
	return t, nil
}

// Apply evaluates the transform on one RGB triple.
func (t ColorTransform) Apply(r, g, b float32) (float32, float32, float32) {
	m := &t.Matrix
	return m[0][0]*r + m[0][1]*g + m[0][2]*b + t.Bias[0],
		m[1][0]*r + m[1][1]*g + m[1][2]*b + t.Bias[1],
		m[2][0]*r + m[2][1]*g + m[2][2]*b + t.Bias[2]
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
