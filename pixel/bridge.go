package pixel

import (
	"fmt"
	"image"

	"go_styletransfer/stylenet"

	"golang.org/x/image/draw"
)

// ResizeMode selects how a reduced output tensor is written back.
type ResizeMode int

const (
	// ResizeToBitmap scales the tensor to the bitmap's full size.
	ResizeToBitmap ResizeMode = iota
	// KeepTensorSize writes the tensor unscaled into the top-left corner and
	// leaves the remaining pixels untouched.
	KeepTensorSize
)

// ToTensor resizes the bitmap to targetW x targetH, drops alpha and returns a
// planar R, G, B float tensor with values in [0,255].
// The bitmap is only read.
func ToTensor(bmp *Bitmap, targetW, targetH int) (*stylenet.Mat, error) {
	src, err := bmp.Image()
	if err != nil {
		return nil, err
	}
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrInvalidDimensions, targetW, targetH)
	}

	scaled := src
	if targetW != bmp.Width || targetH != bmp.Height {
		scaled = image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	mat, err := stylenet.NewMat(targetW, targetH, 3)
	if err != nil {
		return nil, err
	}
	r, g, b := mat.Channel(0), mat.Channel(1), mat.Channel(2)
	for y := 0; y < targetH; y++ {
		row := scaled.Pix[y*scaled.Stride:]
		for x := 0; x < targetW; x++ {
			i := y*targetW + x
			r[i] = float32(row[x*4+0])
			g[i] = float32(row[x*4+1])
			b[i] = float32(row[x*4+2])
		}
	}
	return mat, nil
}

// FromTensor writes a 3-channel tensor back into bmp with alpha 255.
// Values are rounded and clamped to [0,255]. The bitmap keeps its size.
func FromTensor(mat *stylenet.Mat, bmp *Bitmap, mode ResizeMode) error {
	dst, err := bmp.Image()
	if err != nil {
		return err
	}
	if err := mat.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTensor, err)
	}
	if mat.C != 3 {
		return fmt.Errorf("%w: expected 3 channels, got %d", ErrInvalidTensor, mat.C)
	}

	small := tensorImage(mat)
	switch {
	case mat.W == bmp.Width && mat.H == bmp.Height:
		draw.Copy(dst, image.Point{}, small, small.Bounds(), draw.Src, nil)
	case mode == KeepTensorSize:
		r := small.Bounds().Intersect(dst.Bounds())
		draw.Copy(dst, image.Point{}, small, r, draw.Src, nil)
	default:
		draw.BiLinear.Scale(dst, dst.Bounds(), small, small.Bounds(), draw.Src, nil)
	}
	return nil
}

// ReducedSize divides the bitmap dimensions by ratio, never going below 1.
func ReducedSize(width, height, ratio int) (int, int) {
	if ratio < 1 {
		ratio = 1
	}
	return max(width/ratio, 1), max(height/ratio, 1)
}

func tensorImage(mat *stylenet.Mat) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, mat.W, mat.H))
	r, g, b := mat.Channel(0), mat.Channel(1), mat.Channel(2)
	for y := 0; y < mat.H; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < mat.W; x++ {
			i := y*mat.W + x
			row[x*4+0] = saturate(r[i])
			row[x*4+1] = saturate(g[i])
			row[x*4+2] = saturate(b[i])
			row[x*4+3] = 0xff
		}
	}
	return img
}

func saturate(v float32) uint8 {
	// NaN fails both comparisons and lands on 0.
	switch {
	case v >= 255:
		return 255
	case v > 0:
		return uint8(v + 0.5)
	}
	return 0
}
