package styletransfer

import "go_styletransfer/core"

// Observer receives one record per dispatched request, success or failure.
// It is called synchronously on the caller's goroutine after the bitmap has
// been written, so implementations must be quick and safe for concurrent use.
type Observer interface {
	ObserveTransfer(rec core.TransferRecord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec core.TransferRecord)

// ObserveTransfer calls f(rec).
func (f ObserverFunc) ObserveTransfer(rec core.TransferRecord) {
	f(rec)
}
