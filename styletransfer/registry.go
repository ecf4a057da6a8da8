package styletransfer

import (
	"fmt"
	"sync"
	"time"

	"go_styletransfer/stylenet"
)

// Slot is one fixed model entry. It is written once by the loader and only
// read afterwards.
type Slot struct {
	Index        int
	Name         string
	ParamRet     int
	ModelRet     int
	LoadDuration time.Duration
	Err          error

	net *stylenet.Net
}

// Ready reports whether the slot has a fully loaded network.
func (s *Slot) Ready() bool {
	return s.net != nil && s.Err == nil
}

// SlotStatus is a read-only snapshot of a slot for callers and surfaces.
type SlotStatus struct {
	Index        int           `json:"index"`
	Name         string        `json:"name"`
	Ready        bool          `json:"ready"`
	ParamRet     int           `json:"param_ret"`
	ModelRet     int           `json:"model_ret"`
	LoadDuration time.Duration `json:"load_duration"`
	Error        string        `json:"error,omitempty"`
}

// Registry owns the five model slots, the shared execution options and the
// pools they draw from. Multiple registries may coexist.
type Registry struct {
	mu     sync.RWMutex
	closed bool

	slots    [NumStyles]Slot
	opt      stylenet.Option
	gpuCount int
	source   string
}

// Status returns a snapshot of every slot in index order.
func (r *Registry) Status() []SlotStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SlotStatus, NumStyles)
	for i := range r.slots {
		s := &r.slots[i]
		st := SlotStatus{
			Index:        s.Index,
			Name:         s.Name,
			Ready:        !r.closed && s.Ready(),
			ParamRet:     s.ParamRet,
			ModelRet:     s.ModelRet,
			LoadDuration: s.LoadDuration,
		}
		if s.Err != nil {
			st.Error = s.Err.Error()
		}
		out[i] = st
	}
	return out
}

// ReadyCount returns how many slots can serve requests.
func (r *Registry) ReadyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0
	}
	n := 0
	for i := range r.slots {
		if r.slots[i].Ready() {
			n++
		}
	}
	return n
}

// SlotName returns the name of slot i as loaded, or "" when out of range.
func (r *Registry) SlotName(i int) string {
	if i < 0 || i >= NumStyles {
		return ""
	}
	return r.slots[i].Name
}

// GPUCount is the number of compute devices seen when the registry was built.
func (r *Registry) GPUCount() int {
	return r.gpuCount
}

// Option returns the shared execution options.
func (r *Registry) Option() stylenet.Option {
	return r.opt
}

// Source describes where the assets were loaded from.
func (r *Registry) Source() string {
	return r.source
}

// acquire returns the network for style and holds the registry open until
// release is called.
func (r *Registry) acquire(style int) (net *stylenet.Net, release func(), err error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, nil, ErrRegistryClosed
	}
	s := &r.slots[style]
	if !s.Ready() {
		r.mu.RUnlock()
		if s.Err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrSlotNotLoaded, s.Name, s.Err)
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrSlotNotLoaded, s.Name)
	}
	return s.net, r.mu.RUnlock, nil
}

// Close releases every network and the shared pools. It waits for running
// calls to finish. Calling Close twice is safe.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for i := range r.slots {
		if r.slots[i].net != nil {
			r.slots[i].net.Close()
			r.slots[i].net = nil
		}
	}
	r.opt.Allocators.Close()
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}
