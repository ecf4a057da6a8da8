//go:build ncnn && cgo

// ncnn implementation of the engine bindings.
// Build with: CGO_ENABLED=1 go build -tags ncnn
//
// Prerequisites:
//   1. ncnn built and installed (headers under include/ncnn, libncnn in lib)
//   2. Vulkan enabled in the ncnn build for the GPU path (NCNN_VULKAN=ON)
//
// Example:
//   CGO_CXXFLAGS="-I${NCNN_DIR}/include/ncnn" \
//   CGO_LDFLAGS="-L${NCNN_DIR}/lib -lncnn -lglslang -lSPIRV -lvulkan -fopenmp" \
//   go build -tags ncnn

package stylenet

/*
#cgo CXXFLAGS: -std=c++11 -I${SRCDIR}/../third_party/ncnn/include/ncnn
#cgo LDFLAGS: -L${SRCDIR}/../third_party/ncnn/lib -lncnn -lstdc++ -lm -fopenmp

#include <stdlib.h>
#include "shim_ncnn.h"
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type allocatorsImpl struct {
	c *C.stn_allocators
}

func newAllocatorsImpl() *allocatorsImpl {
	return &allocatorsImpl{c: C.stn_allocators_create()}
}

func (a *allocatorsImpl) close() {
	if a.c != nil {
		C.stn_allocators_destroy(a.c)
		a.c = nil
	}
}

type netImpl struct {
	c *C.stn_net
}

func newNetImpl(opt Option) (*netImpl, error) {
	var alloc *C.stn_allocators
	if opt.Allocators != nil && opt.Allocators.impl != nil {
		alloc = opt.Allocators.impl.c
	}
	c := C.stn_net_create(C.int(opt.NumThreads), cBool(opt.LightMode), cBool(opt.UseVulkanCompute), alloc)
	if c == nil {
		return nil, fmt.Errorf("%w: out of memory creating net", ErrLoadFailed)
	}
	return &netImpl{c: c}, nil
}

func (n *netImpl) loadParam(data []byte) int {
	if len(data) == 0 {
		return -1
	}
	return int(C.stn_net_load_param_bin(n.c, (*C.uchar)(unsafe.Pointer(&data[0])), C.size_t(len(data))))
}

func (n *netImpl) loadModel(data []byte) int {
	if len(data) == 0 {
		return -1
	}
	return int(C.stn_net_load_model(n.c, (*C.uchar)(unsafe.Pointer(&data[0])), C.size_t(len(data))))
}

func (n *netImpl) newExtractor() *extractorImpl {
	return &extractorImpl{c: C.stn_extractor_create(n.c)}
}

func (n *netImpl) close() {
	if n.c != nil {
		C.stn_net_destroy(n.c)
		n.c = nil
	}
}

type extractorImpl struct {
	c *C.stn_extractor
}

func (e *extractorImpl) setVulkanCompute(enable bool) {
	if e.c != nil {
		C.stn_extractor_set_vulkan_compute(e.c, cBool(enable))
	}
}

func (e *extractorImpl) setLightMode(enable bool) {
	if e.c != nil {
		C.stn_extractor_set_light_mode(e.c, cBool(enable))
	}
}

func (e *extractorImpl) input(index int, m *Mat) error {
	if e.c == nil {
		return fmt.Errorf("%w: extractor allocation failed", ErrExtractFailed)
	}
	ret := C.stn_extractor_input(e.c, C.int(index),
		(*C.float)(unsafe.Pointer(&m.Data[0])), C.int(m.W), C.int(m.H), C.int(m.C))
	if ret != 0 {
		return fmt.Errorf("%w: input returned %d", ErrExtractFailed, int(ret))
	}
	return nil
}

func (e *extractorImpl) extract(index int) (*Mat, error) {
	if e.c == nil {
		return nil, fmt.Errorf("%w: extractor allocation failed", ErrExtractFailed)
	}
	var data *C.float
	var w, h, c C.int
	ret := C.stn_extractor_extract(e.c, C.int(index), &data, &w, &h, &c)
	if ret != 0 {
		return nil, fmt.Errorf("%w: extract returned %d", ErrExtractFailed, int(ret))
	}
	defer C.stn_free(unsafe.Pointer(data))

	n := int(w) * int(h) * int(c)
	out := &Mat{W: int(w), H: int(h), C: int(c), Data: make([]float32, n)}
	copy(out.Data, unsafe.Slice((*float32)(unsafe.Pointer(data)), n))
	return out, nil
}

func (e *extractorImpl) close() {
	if e.c != nil {
		C.stn_extractor_destroy(e.c)
		e.c = nil
	}
}

func createGPUInstanceImpl() {
	C.stn_create_gpu_instance()
}

func destroyGPUInstanceImpl() {
	C.stn_destroy_gpu_instance()
}

func gpuCountImpl() int {
	return int(C.stn_get_gpu_count())
}

const backendName = "ncnn"

func backendInfoImpl() string {
	return fmt.Sprintf("ncnn (%d vulkan devices)", gpuCountImpl())
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}
