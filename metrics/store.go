package metrics

import (
	"sync"
	"time"

	"go_styletransfer/core"
)

// MetricsStore keeps recent transfers and running aggregates in memory for
// the status endpoints. It is safe for concurrent use.
//
//	store := NewMetricsStore(DefaultStoreConfig(), time.Now())
//	dispatcher := styletransfer.NewDispatcher(reg, cfg, logger, store)
//	stats := store.GetTransferMetrics()
type MetricsStore struct {
	mu sync.RWMutex

	// Ring buffer of recent transfers
	history []core.TransferRecord
	histCap int
	head    int
	size    int

	totalTransfers int64
	totalSuccess   int64
	totalErrors    int64
	byStyle        map[string]*styleStats

	gpuMetrics GPUMetrics

	readySlots int
	totalSlots int
	gpuCount   int
	backend    string
	stopped    bool

	startTime time.Time
	version   string
}

type styleStats struct {
	count         int64
	successCount  int64
	totalDuration time.Duration
}

// StoreConfig configures the MetricsStore.
type StoreConfig struct {
	// HistoryCapacity is the number of recent transfers to retain
	HistoryCapacity int
	// Version is the application version string
	Version string
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		HistoryCapacity: 100,
		Version:         "dev",
	}
}

// NewMetricsStore creates an empty store. startTime anchors the uptime.
func NewMetricsStore(config StoreConfig, startTime time.Time) *MetricsStore {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = 100
	}
	return &MetricsStore{
		history:   make([]core.TransferRecord, capacity),
		histCap:   capacity,
		byStyle:   make(map[string]*styleStats),
		startTime: startTime,
		version:   config.Version,
	}
}

// ObserveTransfer records one completed transfer.
func (s *MetricsStore) ObserveTransfer(rec core.TransferRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % s.histCap
	if s.size < s.histCap {
		s.size++
	}

	s.totalTransfers++
	success := rec.Status == core.TransferSucceeded
	if success {
		s.totalSuccess++
	} else {
		s.totalErrors++
	}

	label := styleLabel(rec)
	stats, ok := s.byStyle[label]
	if !ok {
		stats = &styleStats{}
		s.byStyle[label] = stats
	}
	stats.count++
	if success {
		stats.successCount++
		stats.totalDuration += rec.Duration
	}
}

// GetTransferMetrics returns the running aggregates. AvgDuration covers
// successful transfers only.
func (s *MetricsStore) GetTransferMetrics() TransferMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := TransferMetrics{
		TotalProcessed: s.totalTransfers,
		TotalSuccess:   s.totalSuccess,
		TotalErrors:    s.totalErrors,
		ByStyle:        make(map[string]*StyleMetrics, len(s.byStyle)),
	}
	for label, stats := range s.byStyle {
		sm := &StyleMetrics{Count: stats.count}
		if stats.count > 0 {
			sm.SuccessRate = float64(stats.successCount) / float64(stats.count) * 100
		}
		if stats.successCount > 0 {
			sm.AvgDuration = stats.totalDuration / time.Duration(stats.successCount)
		}
		m.ByStyle[label] = sm
	}
	return m
}

// GetRecentTransfers returns up to limit records, newest first.
func (s *MetricsStore) GetRecentTransfers(limit int) []core.TransferRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []core.TransferRecord{}
	}
	if limit > s.size {
		limit = s.size
	}
	out := make([]core.TransferRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.history[(s.head-1-i+s.histCap)%s.histCap]
	}
	return out
}

// UpdateGPUMetrics stores the latest GPU sample.
func (s *MetricsStore) UpdateGPUMetrics(gpu GPUMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gpuMetrics = gpu
}

// GetGPUMetrics returns the latest GPU sample.
func (s *MetricsStore) GetGPUMetrics() GPUMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gpuMetrics
}

// SetRuntime records the loaded slot count, GPU count and backend.
func (s *MetricsStore) SetRuntime(ready, total, gpuCount int, backend string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readySlots, s.totalSlots, s.gpuCount, s.backend = ready, total, gpuCount, backend
}

// MarkStopped flags the runtime as released, for shutdown reporting.
func (s *MetricsStore) MarkStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.readySlots = 0
}

// GetSystemStatus reports health from the slot counts: running when every
// slot is ready, degraded when some are missing.
func (s *MetricsStore) GetSystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	switch {
	case s.stopped:
		health = SystemHealthStopped
	case s.readySlots < s.totalSlots || s.totalSlots == 0:
		health = SystemHealthDegraded
	}
	return SystemStatus{
		Health:     health,
		Version:    s.version,
		Backend:    s.backend,
		ReadySlots: s.readySlots,
		TotalSlots: s.totalSlots,
		GPUCount:   s.gpuCount,
		Uptime:     time.Since(s.startTime),
		LastCheck:  time.Now(),
	}
}

func styleLabel(rec core.TransferRecord) string {
	if rec.StyleName == "" {
		return invalidStyleLabel
	}
	return rec.StyleName
}

var _ Collector = (*MetricsStore)(nil)
