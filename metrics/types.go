package metrics

import "time"

// GPUMetrics is one GPU utilisation sample.
type GPUMetrics struct {
	// Utilization is the GPU utilization percentage (0-100)
	Utilization float64 `json:"utilization"`
	// Temperature is the GPU temperature in Celsius
	Temperature float64 `json:"temperature"`
	// MemoryTotal is the total GPU memory in bytes
	MemoryTotal int64 `json:"memory_total"`
	// MemoryUsed is the GPU memory in use in bytes
	MemoryUsed int64 `json:"memory_used"`
	// MemoryFree is the available GPU memory in bytes
	MemoryFree int64 `json:"memory_free"`
}

// TransferMetrics aggregates every observed transfer.
type TransferMetrics struct {
	TotalProcessed int64                    `json:"total_processed"`
	TotalSuccess   int64                    `json:"total_success"`
	TotalErrors    int64                    `json:"total_errors"`
	ByStyle        map[string]*StyleMetrics `json:"by_style"`
}

// StyleMetrics aggregates the transfers of one style.
type StyleMetrics struct {
	Count       int64         `json:"count"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// SystemStatus is the service health summary.
type SystemStatus struct {
	// Health is running, degraded or stopped
	Health     string        `json:"health"`
	Version    string        `json:"version"`
	Backend    string        `json:"backend"`
	ReadySlots int           `json:"ready_slots"`
	TotalSlots int           `json:"total_slots"`
	GPUCount   int           `json:"gpu_count"`
	Uptime     time.Duration `json:"uptime"`
	LastCheck  time.Time     `json:"last_check"`
}

// Health values for SystemStatus
const (
	SystemHealthRunning  = "running"
	SystemHealthDegraded = "degraded"
	SystemHealthStopped  = "stopped"
)

// invalidStyleLabel groups requests for out-of-range styles so label
// cardinality stays bounded.
const invalidStyleLabel = "invalid"
