package pixel

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the declared width*height accepted by Decode.
const DefaultMaxPixels int64 = 40_000_000

// Decode reads an encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP) into a
// new RGBA_8888 bitmap, refusing images larger than DefaultMaxPixels.
func Decode(data []byte) (*Bitmap, string, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel cap. The header is read first
// so an oversized image is refused before any pixel buffer is allocated.
// maxPixels <= 0 means DefaultMaxPixels.
func DecodeLimit(data []byte, maxPixels int64) (*Bitmap, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: declared size %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return FromImage(img), format, nil
}

// Encode writes the bitmap in the named format. Unknown names fall back to PNG.
func Encode(w io.Writer, b *Bitmap, format string) error {
	img, err := b.Image()
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff", "tif":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return png.Encode(w, img)
	}
}

// EncodePNG returns the bitmap as PNG bytes.
func EncodePNG(b *Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, b, "png"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatFromPath guesses an output format from a file extension.
func FormatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "jpg", "jpeg", "bmp", "tif", "tiff":
		return ext
	}
	return "png"
}
