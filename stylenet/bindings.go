// Package stylenet binds the ncnn inference engine.
//
// This file contains the backend-independent facade. The backend is chosen at
// build time:
//
//	go build                 # pure Go reference backend (pointwise colour network)
//	go build -tags ncnn      # ncnn through cgo, see bindings_ncnn.go
//
// Build requirements for the ncnn backend:
//   - ncnn built as a static or shared library with its headers installed
//   - CGO_CXXFLAGS / CGO_LDFLAGS pointing at them, or the default
//     third_party/ncnn layout next to the module root
package stylenet

import (
	"fmt"
	"sync"
)

// Net is one loaded network: a shared architecture descriptor plus weights.
// A loaded Net is read-only and may serve concurrent extractors.
type Net struct {
	mu     sync.RWMutex
	impl   *netImpl
	header ParamHeader
	param  bool
	model  bool
}

// NewNet creates an empty network with the given options applied.
// Options must be set before loading, they cannot change afterwards.
func NewNet(opt Option) (*Net, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	impl, err := newNetImpl(opt)
	if err != nil {
		return nil, err
	}
	return &Net{impl: impl}, nil
}

// LoadParam loads the binary architecture descriptor.
// A failure is a *LoadError carrying the engine return code.
func (n *Net) LoadParam(data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.impl == nil {
		return ErrNetClosed
	}
	h, err := ParseParamHeader(data)
	if err != nil {
		return fmt.Errorf("%w: %v", &LoadError{Stage: "param", Code: -1}, err)
	}
	if code := n.impl.loadParam(data); code != 0 {
		return &LoadError{Stage: "param", Code: code}
	}
	n.header = h
	n.param = true
	return nil
}

// LoadModel loads the weight blob. The descriptor must be loaded first.
func (n *Net) LoadModel(data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.impl == nil {
		return ErrNetClosed
	}
	if !n.param {
		return &LoadError{Stage: "model", Code: -1}
	}
	if code := n.impl.loadModel(data); code != 0 {
		return &LoadError{Stage: "model", Code: code}
	}
	n.model = true
	return nil
}

// Loaded reports whether both the descriptor and the weights are in place.
func (n *Net) Loaded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.impl != nil && n.param && n.model
}

// Header returns the parsed descriptor header.
func (n *Net) Header() ParamHeader {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.header
}

// NewExtractor creates a transient execution context bound to this network.
// The extractor must be closed by the caller.
func (n *Net) NewExtractor() (*Extractor, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.impl == nil {
		return nil, ErrNetClosed
	}
	if !n.param || !n.model {
		return nil, ErrNotLoaded
	}
	return &Extractor{impl: n.impl.newExtractor(), blobs: n.header.BlobCount}, nil
}

// Close releases the network. Calling Close twice is safe.
func (n *Net) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.impl == nil {
		return
	}
	n.impl.close()
	n.impl = nil
}

// Extractor binds one input, runs the forward pass and fetches one output.
// It is not safe for concurrent use.
type Extractor struct {
	impl  *extractorImpl
	blobs int
}

// SetVulkanCompute toggles the GPU path for this extraction only.
func (e *Extractor) SetVulkanCompute(enable bool) {
	if e.impl != nil {
		e.impl.setVulkanCompute(enable)
	}
}

// SetLightMode toggles intermediate blob recycling for this extraction only.
func (e *Extractor) SetLightMode(enable bool) {
	if e.impl != nil {
		e.impl.setLightMode(enable)
	}
}

// Input binds m to the blob at index.
func (e *Extractor) Input(index int, m *Mat) error {
	if e.impl == nil {
		return ErrExtractorClosed
	}
	if index < 0 || index >= e.blobs {
		return fmt.Errorf("%w: input %d of %d", ErrBlobIndex, index, e.blobs)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	return e.impl.input(index, m)
}

// Extract evaluates the graph up to the blob at index and returns it.
// The returned Mat may come from the blob pool; call Release when done.
func (e *Extractor) Extract(index int) (*Mat, error) {
	if e.impl == nil {
		return nil, ErrExtractorClosed
	}
	if index < 0 || index >= e.blobs {
		return nil, fmt.Errorf("%w: output %d of %d", ErrBlobIndex, index, e.blobs)
	}
	return e.impl.extract(index)
}

// Close releases the extractor's blobs.
func (e *Extractor) Close() {
	if e.impl == nil {
		return
	}
	e.impl.close()
	e.impl = nil
}

var gpuInstance struct {
	mu      sync.Mutex
	created bool
}

// CreateGPUInstance initializes the GPU compute instance. It is called once
// at process start, before any network is built. Repeated calls are no-ops.
func CreateGPUInstance() {
	gpuInstance.mu.Lock()
	defer gpuInstance.mu.Unlock()
	if gpuInstance.created {
		return
	}
	createGPUInstanceImpl()
	gpuInstance.created = true
}

// DestroyGPUInstance tears down the GPU compute instance at process exit.
// All networks must be closed first.
func DestroyGPUInstance() {
	gpuInstance.mu.Lock()
	defer gpuInstance.mu.Unlock()
	if !gpuInstance.created {
		return
	}
	destroyGPUInstanceImpl()
	gpuInstance.created = false
}

// GPUCount returns the number of compute-capable devices found when the GPU
// instance was created. It is 0 before CreateGPUInstance.
func GPUCount() int {
	gpuInstance.mu.Lock()
	defer gpuInstance.mu.Unlock()
	if !gpuInstance.created {
		return 0
	}
	return gpuCountImpl()
}

// BackendName is the short backend label used in records and metrics.
func BackendName() string {
	return backendName
}

// BackendInfo describes the compiled-in backend.
func BackendInfo() string {
	return backendInfoImpl()
}
