// Package metrics collects transfer statistics: an in-memory store for the
// status API, a Prometheus exporter and an optional GPU sampler.
package metrics

import "go_styletransfer/core"

// Collector is what the HTTP surface reads from. MetricsStore implements it.
type Collector interface {
	// ObserveTransfer records one completed transfer.
	ObserveTransfer(rec core.TransferRecord)

	// GetTransferMetrics returns the running aggregates.
	GetTransferMetrics() TransferMetrics

	// GetRecentTransfers returns up to limit records, newest first.
	GetRecentTransfers(limit int) []core.TransferRecord

	// UpdateGPUMetrics stores the latest GPU sample.
	UpdateGPUMetrics(gpu GPUMetrics)

	// GetGPUMetrics returns the latest GPU sample.
	GetGPUMetrics() GPUMetrics

	// GetSystemStatus returns the health summary.
	GetSystemStatus() SystemStatus
}
