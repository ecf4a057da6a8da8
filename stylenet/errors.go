// Package stylenet provides the inference engine binding used by the style transfer runtime.
package stylenet

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine operations.
var (
	// Load errors
	ErrLoadFailed    = errors.New("stylenet: failed to load network")
	ErrInvalidParam  = errors.New("stylenet: invalid architecture descriptor")
	ErrInvalidWeight = errors.New("stylenet: invalid weight blob")

	// Execution errors
	ErrNetClosed       = errors.New("stylenet: network is closed")
	ErrNotLoaded       = errors.New("stylenet: network is not loaded")
	ErrBlobIndex       = errors.New("stylenet: blob index out of range")
	ErrInputNotBound   = errors.New("stylenet: input blob not bound")
	ErrExtractFailed   = errors.New("stylenet: extract failed")
	ErrInvalidMat      = errors.New("stylenet: invalid tensor shape")
	ErrExtractorClosed = errors.New("stylenet: extractor is closed")
)

// LoadError reports the engine return code of a failed load step.
// Stage is "param" for the architecture descriptor and "model" for weights.
type LoadError struct {
	Stage string
	Code  int
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("stylenet: load %s returned %d", e.Stage, e.Code)
}

// Unwrap lets callers match any load failure with errors.Is(err, ErrLoadFailed).
func (e *LoadError) Unwrap() error {
	return ErrLoadFailed
}

// ReturnCode extracts the engine return code carried by err.
// A nil error maps to 0, and errors without a code map to -1.
func ReturnCode(err error) int {
	if err == nil {
		return 0
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return -1
}
