//go:build !ncnn || !cgo

package styletransfer

import (
	"context"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"go_styletransfer/assets"
	"go_styletransfer/logging"
	"go_styletransfer/pixel"
	"go_styletransfer/stylenet"
)

// invert maps every channel v to 255-v.
func invert() stylenet.ColorTransform {
	return stylenet.ColorTransform{
		Matrix: [3][3]float32{{-1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		Bias:   [3]float32{255, 255, 255},
	}
}

// swapRB exchanges red and blue.
func swapRB() stylenet.ColorTransform {
	return stylenet.ColorTransform{
		Matrix: [3][3]float32{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}},
	}
}

// grey averages the three channels.
func grey() stylenet.ColorTransform {
	third := float32(1.0 / 3.0)
	return stylenet.ColorTransform{
		Matrix: [3][3]float32{{third, third, third}, {third, third, third}, {third, third, third}},
	}
}

// brighten adds 40 to every channel.
func brighten() stylenet.ColorTransform {
	t := stylenet.IdentityTransform()
	t.Bias = [3]float32{40, 40, 40}
	return t
}

// fixtureTransforms are the per-slot networks used by the tests.
var fixtureTransforms = [NumStyles]stylenet.ColorTransform{
	StyleCandy:        invert(),
	StyleMosaic:       swapRB(),
	StylePointilism:   grey(),
	StyleRainPrincess: brighten(),
	StyleUdnie:        stylenet.IdentityTransform(),
}

// fixtureFS returns the default asset layout with every file present.
func fixtureFS(t *testing.T) fstest.MapFS {
	t.Helper()
	fsys := fstest.MapFS{
		assets.DefaultArchitectureFile: {Data: stylenet.EncodeParamHeader(stylenet.ParamHeader{LayerCount: 4, BlobCount: 5})},
	}
	for i, name := range assets.DefaultStyles {
		blob, err := fixtureTransforms[i].MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary(%s): %v", name, err)
		}
		fsys[name+".bin"] = &fstest.MapFile{Data: blob}
	}
	return fsys
}

func observedLogger(level zapcore.Level) (*logging.Logger, *observer.ObservedLogs) {
	obs, logs := observer.New(level)
	return logging.FromZap(zap.New(obs)), logs
}

// newTestLoader builds a loader that sees gpus compute devices.
func newTestLoader(cfg Config, logger *logging.Logger, gpus int) *Loader {
	l := NewLoader(cfg, logger)
	l.gpuCount = func() int { return gpus }
	return l
}

// loadRegistry loads the full fixture set and closes it at cleanup.
func loadRegistry(t *testing.T, cfg Config, gpus int) *Registry {
	t.Helper()
	reg, err := newTestLoader(cfg, nil, gpus).Initialize(context.Background(), assets.FS(fixtureFS(t)))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(reg.Close)
	return reg
}

// solidBitmap returns an RGBA_8888 bitmap filled with one colour.
func solidBitmap(t *testing.T, w, h int, r, g, b uint8) *pixel.Bitmap {
	t.Helper()
	bmp, err := pixel.NewBitmap(w, h)
	if err != nil {
		t.Fatalf("NewBitmap: %v", err)
	}
	for i := 0; i < len(bmp.Pix); i += 4 {
		bmp.Pix[i+0], bmp.Pix[i+1], bmp.Pix[i+2], bmp.Pix[i+3] = r, g, b, 0xff
	}
	return bmp
}

// gradientBitmap returns an RGBA_8888 bitmap with a diagonal gradient.
func gradientBitmap(t *testing.T, w, h int) *pixel.Bitmap {
	t.Helper()
	bmp, err := pixel.NewBitmap(w, h)
	if err != nil {
		t.Fatalf("NewBitmap: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*bmp.Stride + x*4
			bmp.Pix[i+0] = uint8(x * 255 / max(w-1, 1))
			bmp.Pix[i+1] = uint8(y * 255 / max(h-1, 1))
			bmp.Pix[i+2] = uint8((x + y) % 256)
			bmp.Pix[i+3] = 0xff
		}
	}
	return bmp
}
