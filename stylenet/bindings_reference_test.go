//go:build !ncnn || !cgo

package stylenet

import (
	"errors"
	"testing"
)

func loadedNet(t *testing.T, opt Option, tr ColorTransform) *Net {
	t.Helper()
	n, err := NewNet(opt)
	if err != nil {
		t.Fatalf("NewNet: %v", err)
	}
	t.Cleanup(n.Close)
	if err := n.LoadParam(EncodeParamHeader(ParamHeader{LayerCount: 2, BlobCount: 3})); err != nil {
		t.Fatalf("LoadParam: %v", err)
	}
	blob, err := tr.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if err := n.LoadModel(blob); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	return n
}

func rampMat(t *testing.T, w, h int) *Mat {
	t.Helper()
	m, err := NewMat(w, h, 3)
	if err != nil {
		t.Fatalf("NewMat: %v", err)
	}
	for i := range m.Data {
		m.Data[i] = float32(i % 256)
	}
	return m
}

func TestNet_LoadModelBeforeParam(t *testing.T) {
	n, err := NewNet(DefaultOption())
	if err != nil {
		t.Fatalf("NewNet: %v", err)
	}
	defer n.Close()

	blob, _ := IdentityTransform().MarshalBinary()
	err = n.LoadModel(blob)
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if ReturnCode(err) == 0 {
		t.Error("expected non-zero return code")
	}
	if n.Loaded() {
		t.Error("net should not report loaded")
	}
}

func TestNet_LoadErrorsCarryCodes(t *testing.T) {
	n, err := NewNet(DefaultOption())
	if err != nil {
		t.Fatalf("NewNet: %v", err)
	}
	defer n.Close()

	if err := n.LoadParam([]byte("not a descriptor")); ReturnCode(err) != -1 {
		t.Errorf("bad param: ReturnCode = %d, want -1 (err %v)", ReturnCode(err), err)
	}
	if err := n.LoadParam(EncodeParamHeader(ParamHeader{LayerCount: 1, BlobCount: 2})); err != nil {
		t.Fatalf("LoadParam: %v", err)
	}
	if err := n.LoadModel([]byte{1, 2, 3}); ReturnCode(err) != -1 {
		t.Errorf("bad model: ReturnCode = %d, want -1 (err %v)", ReturnCode(err), err)
	}
	if _, err := n.NewExtractor(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestExtractor_Forward(t *testing.T) {
	tr := ColorTransform{
		Matrix: [3][3]float32{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}},
		Bias:   [3]float32{1, 2, 3},
	}

	for _, threads := range []int{1, 3, 4, 16} {
		opt := DefaultOption()
		opt.NumThreads = threads
		n := loadedNet(t, opt, tr)

		in := rampMat(t, 5, 7)
		ex, err := n.NewExtractor()
		if err != nil {
			t.Fatalf("NewExtractor: %v", err)
		}
		if err := ex.Input(0, in); err != nil {
			t.Fatalf("Input: %v", err)
		}
		out, err := ex.Extract(n.Header().OutputIndex())
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		ex.Close()

		if out.W != 5 || out.H != 7 || out.C != 3 {
			t.Fatalf("threads=%d: output shape %dx%dx%d", threads, out.W, out.H, out.C)
		}
		for y := 0; y < in.H; y++ {
			for x := 0; x < in.W; x++ {
				if got, want := out.At(0, y, x), in.At(2, y, x)+1; got != want {
					t.Fatalf("threads=%d: R(%d,%d) = %v, want %v", threads, x, y, got, want)
				}
				if got, want := out.At(2, y, x), in.At(0, y, x)+3; got != want {
					t.Fatalf("threads=%d: B(%d,%d) = %v, want %v", threads, x, y, got, want)
				}
			}
		}
	}
}

func TestExtractor_PooledOutput(t *testing.T) {
	alloc := NewAllocators()
	defer alloc.Close()

	opt := DefaultOption()
	opt.Allocators = alloc
	n := loadedNet(t, opt, IdentityTransform())

	for i := 0; i < 3; i++ {
		ex, err := n.NewExtractor()
		if err != nil {
			t.Fatalf("NewExtractor: %v", err)
		}
		in := rampMat(t, 4, 4)
		if err := ex.Input(0, in); err != nil {
			t.Fatalf("Input: %v", err)
		}
		out, err := ex.Extract(2)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		for j := range in.Data {
			if out.Data[j] != in.Data[j] {
				t.Fatalf("iteration %d: element %d = %v, want %v", i, j, out.Data[j], in.Data[j])
			}
		}
		out.Release()
		ex.Close()
	}
}

func TestExtractor_Errors(t *testing.T) {
	n := loadedNet(t, DefaultOption(), IdentityTransform())

	ex, err := n.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	defer ex.Close()

	if _, err := ex.Extract(2); !errors.Is(err, ErrInputNotBound) {
		t.Errorf("extract before input: expected ErrInputNotBound, got %v", err)
	}
	if err := ex.Input(3, rampMat(t, 2, 2)); !errors.Is(err, ErrBlobIndex) {
		t.Errorf("input out of range: expected ErrBlobIndex, got %v", err)
	}
	if err := ex.Input(0, &Mat{W: 2, H: 2, C: 3}); !errors.Is(err, ErrInvalidMat) {
		t.Errorf("input with no data: expected ErrInvalidMat, got %v", err)
	}
	if _, err := ex.Extract(-1); !errors.Is(err, ErrBlobIndex) {
		t.Errorf("extract negative index: expected ErrBlobIndex, got %v", err)
	}

	ex.Close()
	if _, err := ex.Extract(2); !errors.Is(err, ErrExtractorClosed) {
		t.Errorf("extract after close: expected ErrExtractorClosed, got %v", err)
	}
}

func TestNet_CloseRejectsExtractors(t *testing.T) {
	n := loadedNet(t, DefaultOption(), IdentityTransform())
	n.Close()
	n.Close()
	if _, err := n.NewExtractor(); !errors.Is(err, ErrNetClosed) {
		t.Errorf("expected ErrNetClosed, got %v", err)
	}
}

func TestGPUInstance_Reference(t *testing.T) {
	// DOING: Create and destroy the GPU instance on the reference backend
	// EXPECT: No devices, calls are idempotent
	CreateGPUInstance()
	CreateGPUInstance()
	if got := GPUCount(); got != 0 {
		t.Errorf("GPUCount() = %d, want 0", got)
	}
	DestroyGPUInstance()
	DestroyGPUInstance()

	if BackendInfo() == "" {
		t.Error("BackendInfo() is empty")
	}
}
