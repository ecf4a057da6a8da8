package stylenet

import "fmt"

// DefaultNumThreads is the intra-op thread count applied to every network.
const DefaultNumThreads = 4

// Option holds the execution options shared by all networks of a registry.
// It is built once before any network is loaded and never mutated afterwards.
type Option struct {
	// NumThreads is the number of worker threads used inside one forward pass.
	NumThreads int
	// LightMode releases intermediate blobs as soon as they are consumed.
	LightMode bool
	// UseVulkanCompute enables the GPU compute path when a device exists.
	UseVulkanCompute bool
	// Allocators are the shared blob and workspace pools. Nil disables pooling.
	Allocators *Allocators
}

// DefaultOption returns the options used for style networks: four threads,
// light mode on, GPU compute off and no pools attached yet.
func DefaultOption() Option {
	return Option{
		NumThreads: DefaultNumThreads,
		LightMode:  true,
	}
}

// Validate checks the option values.
func (o Option) Validate() error {
	if o.NumThreads < 1 {
		return fmt.Errorf("%w: num threads must be >= 1, got %d", ErrLoadFailed, o.NumThreads)
	}
	return nil
}

// Allocators pairs the blob and workspace pools shared by a set of networks.
// Both pools are locked, so extractors on any of those networks may run
// concurrently.
type Allocators struct {
	impl *allocatorsImpl
}

// NewAllocators creates the blob and workspace pools.
func NewAllocators() *Allocators {
	return &Allocators{impl: newAllocatorsImpl()}
}

// Close releases pooled memory. Networks using the pools must be closed first.
func (a *Allocators) Close() {
	if a == nil || a.impl == nil {
		return
	}
	a.impl.close()
	a.impl = nil
}
