//go:build !ncnn || !cgo

package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"go.uber.org/zap/zaptest"

	"go_styletransfer/assets"
	"go_styletransfer/logging"
	"go_styletransfer/stylenet"
	"go_styletransfer/styletransfer"
)

// fixtureFS holds the default layout: candy inverts, every other style is
// the identity.
func fixtureFS(t *testing.T) fstest.MapFS {
	t.Helper()
	fsys := fstest.MapFS{
		assets.DefaultArchitectureFile: {Data: stylenet.EncodeParamHeader(stylenet.ParamHeader{LayerCount: 4, BlobCount: 5})},
	}
	for i, name := range assets.DefaultStyles {
		transform := stylenet.IdentityTransform()
		if i == styletransfer.StyleCandy {
			transform = stylenet.ColorTransform{
				Matrix: [3][3]float32{{-1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
				Bias:   [3]float32{255, 255, 255},
			}
		}
		blob, err := transform.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary(%s): %v", name, err)
		}
		fsys[name+".bin"] = &fstest.MapFile{Data: blob}
	}
	return fsys
}

// newRuntime returns an initialized runtime that reports to observers.
func newRuntime(t *testing.T, observers ...styletransfer.Observer) *styletransfer.Runtime {
	t.Helper()
	logger := logging.FromZap(zaptest.NewLogger(t))
	rt := styletransfer.NewRuntime(styletransfer.DefaultConfig(), logger, observers...)
	if err := rt.InitContext(context.Background(), assets.FS(fixtureFS(t))); err != nil {
		t.Fatalf("InitContext: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

// solidPNG encodes a w×h image of one colour.
func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// declaredSizePNG returns a 1x1 PNG whose header claims w x h.
func declaredSizePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := solidPNG(t, 1, 1, color.RGBA{A: 255})
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func near(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -1 && d <= 1
}
