package core

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// TransferStatus is the outcome of one style transfer request.
type TransferStatus string

const (
	TransferSucceeded TransferStatus = "success"
	TransferFailed    TransferStatus = "failed"
)

// TransferRecord describes one completed style transfer request.
// It is emitted by the dispatcher and consumed by logging, metrics and the
// history store. Implements zapcore.ObjectMarshaler for structured logging.
type TransferRecord struct {
	// ID is the request identifier (UUID)
	ID string `json:"id"`
	// Style is the slot index the caller asked for, possibly out of range
	Style int `json:"style"`
	// StyleName is the slot name, empty when Style is out of range
	StyleName string `json:"style_name,omitempty"`
	// Backend names the engine that ran the request
	Backend string `json:"backend"`
	// UseGPU is the compute path the caller requested
	UseGPU bool `json:"use_gpu"`
	// Width and Height are the bitmap dimensions
	Width  int `json:"width"`
	Height int `json:"height"`
	// Duration is wall-clock time from conversion to write-back
	Duration time.Duration `json:"duration"`
	// Status is success or failed
	Status TransferStatus `json:"status"`
	// Error holds the failure message when Status is failed
	Error string `json:"error,omitempty"`
	// CreatedAt is when the request started
	CreatedAt time.Time `json:"created_at"`
}

// DurationMS returns the duration in fractional milliseconds.
func (r TransferRecord) DurationMS() float64 {
	return float64(r.Duration) / float64(time.Millisecond)
}

// MarshalLogObject implements zapcore.ObjectMarshaler for structured logging.
func (r TransferRecord) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if r.ID != "" {
		enc.AddString("id", r.ID)
	}
	enc.AddInt("style", r.Style)
	if r.StyleName != "" {
		enc.AddString("style_name", r.StyleName)
	}
	enc.AddString("backend", r.Backend)
	enc.AddBool("use_gpu", r.UseGPU)
	enc.AddInt("width", r.Width)
	enc.AddInt("height", r.Height)
	enc.AddFloat64("duration_ms", r.DurationMS())
	enc.AddString("status", string(r.Status))
	if r.Error != "" {
		enc.AddString("error", r.Error)
	}
	return nil
}
