package stylenet

import "fmt"

// Mat is a dense planar float32 tensor laid out channel-major:
// all of channel 0, then all of channel 1, and so on.
type Mat struct {
	W, H, C int
	Data    []float32

	release func([]float32)
}

// NewMat allocates a zeroed w x h x c tensor.
func NewMat(w, h, c int) (*Mat, error) {
	if w <= 0 || h <= 0 || c <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidMat, w, h, c)
	}
	return &Mat{W: w, H: h, C: c, Data: make([]float32, w*h*c)}, nil
}

// PlaneSize returns the number of elements in one channel.
func (m *Mat) PlaneSize() int {
	return m.W * m.H
}

// Channel returns the slice backing channel c.
func (m *Mat) Channel(c int) []float32 {
	n := m.PlaneSize()
	return m.Data[c*n : (c+1)*n]
}

// At returns the value at channel c, row y, column x.
func (m *Mat) At(c, y, x int) float32 {
	return m.Data[c*m.PlaneSize()+y*m.W+x]
}

// Validate reports whether the shape matches the backing slice.
func (m *Mat) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mat", ErrInvalidMat)
	}
	if m.W <= 0 || m.H <= 0 || m.C <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidMat, m.W, m.H, m.C)
	}
	if len(m.Data) != m.W*m.H*m.C {
		return fmt.Errorf("%w: %dx%dx%d with %d elements", ErrInvalidMat, m.W, m.H, m.C, len(m.Data))
	}
	return nil
}

// Release hands pooled storage back to the blob allocator it came from.
// The Mat must not be used afterwards. Release on an unpooled Mat is a no-op.
func (m *Mat) Release() {
	if m == nil || m.release == nil {
		return
	}
	m.release(m.Data)
	m.release = nil
	m.Data = nil
}
