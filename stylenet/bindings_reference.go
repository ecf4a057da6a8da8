//go:build !ncnn || !cgo

// Reference backend used when the ncnn library is not linked.
// It reads the same asset files as the native engine and evaluates the
// weight blob as a pointwise colour transform, so results are deterministic
// and the surrounding pipeline can be exercised without native code.

package stylenet

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// allocatorsImpl recycles output blob storage keyed by element count.
type allocatorsImpl struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

func newAllocatorsImpl() *allocatorsImpl {
	return &allocatorsImpl{pools: make(map[int]*sync.Pool)}
}

func (a *allocatorsImpl) pool(n int) *sync.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pools[n]
	if !ok {
		p = &sync.Pool{New: func() any { return make([]float32, n) }}
		a.pools[n] = p
	}
	return p
}

func (a *allocatorsImpl) get(n int) ([]float32, func([]float32)) {
	p := a.pool(n)
	buf := p.Get().([]float32)
	return buf, func(b []float32) { p.Put(b) }
}

func (a *allocatorsImpl) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pools = make(map[int]*sync.Pool)
}

type netImpl struct {
	opt       Option
	transform ColorTransform
}

func newNetImpl(opt Option) (*netImpl, error) {
	return &netImpl{opt: opt}, nil
}

func (n *netImpl) loadParam(data []byte) int {
	// The header was validated by the facade; layer bodies are not interpreted.
	return 0
}

func (n *netImpl) loadModel(data []byte) int {
	t, err := ParseColorTransform(data)
	if err != nil {
		return -1
	}
	n.transform = t
	return 0
}

func (n *netImpl) newExtractor() *extractorImpl {
	return &extractorImpl{
		net:       n,
		lightMode: n.opt.LightMode,
		vulkan:    n.opt.UseVulkanCompute,
		blobs:     make(map[int]*Mat),
	}
}

func (n *netImpl) close() {}

type extractorImpl struct {
	net       *netImpl
	lightMode bool
	vulkan    bool
	blobs     map[int]*Mat
}

// The reference backend has no GPU path; like the engine without a device it
// runs on the CPU regardless of this flag.
func (e *extractorImpl) setVulkanCompute(enable bool) { e.vulkan = enable }

func (e *extractorImpl) setLightMode(enable bool) { e.lightMode = enable }

func (e *extractorImpl) input(index int, m *Mat) error {
	if index != 0 {
		return fmt.Errorf("%w: blob %d is not a graph input", ErrBlobIndex, index)
	}
	if m.C != 3 {
		return fmt.Errorf("%w: input needs 3 channels, got %d", ErrInvalidMat, m.C)
	}
	e.blobs[index] = m
	return nil
}

func (e *extractorImpl) extract(index int) (*Mat, error) {
	if index == 0 {
		if in, ok := e.blobs[0]; ok {
			return in, nil
		}
		return nil, ErrInputNotBound
	}
	in, ok := e.blobs[0]
	if !ok {
		return nil, ErrInputNotBound
	}

	out := &Mat{W: in.W, H: in.H, C: 3}
	if a := e.net.opt.Allocators; a != nil && a.impl != nil {
		out.Data, out.release = a.impl.get(len(in.Data))
	} else {
		out.Data = make([]float32, len(in.Data))
	}

	if err := e.forward(in, out); err != nil {
		out.Release()
		return nil, fmt.Errorf("%w: %v", ErrExtractFailed, err)
	}
	if e.lightMode {
		delete(e.blobs, 0)
	}
	return out, nil
}

// forward splits rows across NumThreads workers. Each pixel is independent,
// so the result does not depend on the split.
func (e *extractorImpl) forward(in, out *Mat) error {
	t := e.net.transform
	plane := in.PlaneSize()
	r, g, b := in.Channel(0), in.Channel(1), in.Channel(2)
	or, og, ob := out.Data[0:plane], out.Data[plane:2*plane], out.Data[2*plane:3*plane]

	workers := e.net.opt.NumThreads
	if workers > in.H {
		workers = in.H
	}
	rowsPer := (in.H + workers - 1) / workers

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		y0 := w * rowsPer
		y1 := min(y0+rowsPer, in.H)
		if y0 >= y1 {
			break
		}
		eg.Go(func() error {
			for i := y0 * in.W; i < y1*in.W; i++ {
				or[i], og[i], ob[i] = t.Apply(r[i], g[i], b[i])
			}
			return nil
		})
	}
	return eg.Wait()
}

func (e *extractorImpl) close() {
	e.blobs = nil
}

func createGPUInstanceImpl() {}

func destroyGPUInstanceImpl() {}

func gpuCountImpl() int { return 0 }

const backendName = "reference"

func backendInfoImpl() string {
	return "reference (pure Go, no ncnn library linked)"
}
