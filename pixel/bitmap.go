// Package pixel converts between host bitmaps and planar float tensors.
package pixel

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Pixel bridge errors
var (
	ErrUnsupportedFormat = errors.New("pixel: unsupported bitmap format")
	ErrInvalidDimensions = errors.New("pixel: invalid dimensions")
	ErrInvalidTensor     = errors.New("pixel: invalid tensor")
	ErrInvalidImage      = errors.New("pixel: invalid image data")
	ErrEmptyImage        = errors.New("pixel: empty image data")
)

// Format is the declared pixel layout of a Bitmap.
type Format int

const (
	FormatNone Format = iota
	// FormatRGBA8888 is packed 8-bit R, G, B, A. The only layout the bridge accepts.
	FormatRGBA8888
	FormatRGB565
	FormatRGBA4444
	FormatA8
)

var formatNames = map[Format]string{
	FormatNone:     "NONE",
	FormatRGBA8888: "RGBA_8888",
	FormatRGB565:   "RGB_565",
	FormatRGBA4444: "RGBA_4444",
	FormatA8:       "ALPHA_8",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// bytesPerPixel for each layout.
func (f Format) bytesPerPixel() int {
	switch f {
	case FormatRGBA8888:
		return 4
	case FormatRGB565, FormatRGBA4444:
		return 2
	case FormatA8:
		return 1
	}
	return 0
}

// Bitmap is a caller-owned pixel surface. The bridge reads it on input and
// overwrites Pix in place on output; Width, Height and Stride never change.
type Bitmap struct {
	Width  int
	Height int
	// Stride is the number of bytes between the starts of two rows.
	Stride int
	Format Format
	Pix    []byte
}

// NewBitmap allocates a zeroed RGBA_8888 bitmap.
func NewBitmap(width, height int) (*Bitmap, error) {
	return NewBitmapWithFormat(width, height, FormatRGBA8888)
}

// NewBitmapWithFormat allocates a zeroed bitmap in the given layout.
func NewBitmapWithFormat(width, height int, f Format) (*Bitmap, error) {
	bpp := f.bytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Bitmap{
		Width:  width,
		Height: height,
		Stride: width * bpp,
		Format: f,
		Pix:    make([]byte, width*height*bpp),
	}, nil
}

// FromImage copies any image into a new RGBA_8888 bitmap.
func FromImage(img image.Image) *Bitmap {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &Bitmap{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: rgba.Stride,
		Format: FormatRGBA8888,
		Pix:    rgba.Pix,
	}
}

// Validate checks that the geometry fits the pixel buffer.
func (b *Bitmap) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil bitmap", ErrInvalidDimensions)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, b.Width, b.Height)
	}
	bpp := b.Format.bytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, b.Format)
	}
	if b.Stride < b.Width*bpp {
		return fmt.Errorf("%w: stride %d below row size %d", ErrInvalidDimensions, b.Stride, b.Width*bpp)
	}
	if need := (b.Height-1)*b.Stride + b.Width*bpp; len(b.Pix) < need {
		return fmt.Errorf("%w: %d bytes, need %d", ErrInvalidDimensions, len(b.Pix), need)
	}
	return nil
}

// Image returns an *image.RGBA sharing Pix with the bitmap. Writes through
// the image land in the bitmap. The bitmap must be RGBA_8888.
func (b *Bitmap) Image() (*image.RGBA, error) {
	if b.Format != FormatRGBA8888 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, b.Format)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Stride,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}, nil
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	c := *b
	c.Pix = append([]byte(nil), b.Pix...)
	return &c
}
