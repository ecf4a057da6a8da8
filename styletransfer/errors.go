package styletransfer

import "errors"

// Sentinel errors for style transfer operations.
var (
	// Invalid-argument errors. These are returned before any work is done,
	// so the bitmap is untouched.
	ErrInvalidStyle      = errors.New("styletransfer: style index out of range")
	ErrGPUUnavailable    = errors.New("styletransfer: gpu compute requested but no device available")
	ErrUnsupportedFormat = errors.New("styletransfer: bitmap format is not RGBA_8888")
	ErrInvalidBitmap     = errors.New("styletransfer: invalid bitmap")

	// Load errors
	ErrModelNotFound   = errors.New("styletransfer: model asset not found")
	ErrModelLoadFailed = errors.New("styletransfer: failed to load model")
	ErrSlotNotLoaded   = errors.New("styletransfer: model slot is not loaded")

	// Execution errors
	ErrInferenceFailed = errors.New("styletransfer: inference failed")
	ErrRegistryClosed  = errors.New("styletransfer: registry is closed")
	ErrNotInitialized  = errors.New("styletransfer: runtime is not initialized")
)

// IsInvalidArgument reports whether err was rejected during validation,
// which guarantees the bitmap was not modified.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidStyle) ||
		errors.Is(err, ErrGPUUnavailable) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrInvalidBitmap)
}
