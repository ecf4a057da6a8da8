package metrics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GPUReader reads one GPU sample.
type GPUReader interface {
	ReadGPUMetrics(ctx context.Context) (GPUMetrics, error)
}

// GPUSink receives every successful sample. MetricsStore and Exporter both
// implement it.
type GPUSink interface {
	UpdateGPUMetrics(gpu GPUMetrics)
}

// GPUSamplerConfig configures the GPUSampler.
type GPUSamplerConfig struct {
	// Interval is how often to sample
	Interval time.Duration
	// NvidiaSMIPath is the nvidia-smi executable, resolved on PATH when bare
	NvidiaSMIPath string
}

// DefaultGPUSamplerConfig returns a default configuration.
func DefaultGPUSamplerConfig() GPUSamplerConfig {
	return GPUSamplerConfig{
		Interval:      5 * time.Second,
		NvidiaSMIPath: "nvidia-smi",
	}
}

// GPUSampler periodically samples GPU utilisation and forwards it to its
// sinks. It only runs when the inference engine reports a GPU.
type GPUSampler struct {
	mu sync.RWMutex

	config GPUSamplerConfig
	reader GPUReader
	sinks  []GPUSink
	logger *zap.Logger

	last      GPUMetrics
	available bool
	lastErr   error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGPUSampler creates a sampler backed by nvidia-smi, or by NVML when
// built with the nvml tag.
func NewGPUSampler(config GPUSamplerConfig, logger *zap.Logger, sinks ...GPUSink) *GPUSampler {
	if config.Interval < time.Second {
		config.Interval = 5 * time.Second
	}
	if config.NvidiaSMIPath == "" {
		config.NvidiaSMIPath = "nvidia-smi"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPUSampler{
		config: config,
		reader: newGPUReader(config),
		sinks:  sinks,
		logger: logger.Named("gpu"),
	}
}

// NewGPUSamplerWithReader creates a sampler with a custom reader.
func NewGPUSamplerWithReader(config GPUSamplerConfig, reader GPUReader, logger *zap.Logger, sinks ...GPUSink) *GPUSampler {
	s := NewGPUSampler(config, logger, sinks...)
	s.reader = reader
	return s
}

// Start samples once immediately, then every Interval until ctx is done or
// Stop is called.
func (s *GPUSampler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts sampling and waits for the loop to exit.
func (s *GPUSampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if c, ok := s.reader.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("Failed to release GPU reader", zap.Error(err))
		}
	}
}

// IsAvailable reports whether the last sample succeeded.
func (s *GPUSampler) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// LastError returns the error of the last sample, if any.
func (s *GPUSampler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Current returns the last successful sample.
func (s *GPUSampler) Current() GPUMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *GPUSampler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.sample(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *GPUSampler) sample(ctx context.Context) {
	gpu, err := s.reader.ReadGPUMetrics(ctx)

	s.mu.Lock()
	wasAvailable := s.available
	s.available = err == nil
	s.lastErr = err
	if err == nil {
		s.last = gpu
	}
	s.mu.Unlock()

	if err != nil {
		// Only the transition is logged; nvidia-smi may be missing for the whole run.
		if wasAvailable && ctx.Err() == nil {
			s.logger.Warn("GPU sampling stopped working", zap.Error(err))
		}
		return
	}
	for _, sink := range s.sinks {
		sink.UpdateGPUMetrics(gpu)
	}
}

type nvidiaSMIReader struct {
	path string
}

func (r nvidiaSMIReader) ReadGPUMetrics(ctx context.Context) (GPUMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.path,
		"--query-gpu=utilization.gpu,temperature.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return GPUMetrics{}, fmt.Errorf("nvidia-smi failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return parseNvidiaSMIOutput(stdout.String())
}

// parseNvidiaSMIOutput parses the first GPU line of
// "utilization, temperature, memory.used MiB, memory.total MiB".
func parseNvidiaSMIOutput(output string) (GPUMetrics, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return GPUMetrics{}, fmt.Errorf("empty nvidia-smi output")
	}

	record, err := csv.NewReader(strings.NewReader(output)).Read()
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(record) < 4 {
		return GPUMetrics{}, fmt.Errorf("unexpected field count: got %d, expected 4", len(record))
	}

	names := [4]string{"utilization", "temperature", "memory used", "memory total"}
	var values [4]float64
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return GPUMetrics{}, fmt.Errorf("failed to parse %s: %w", names[i], err)
		}
		values[i] = v
	}

	const mib = 1024 * 1024
	total := int64(values[3] * mib)
	used := int64(values[2] * mib)
	return GPUMetrics{
		Utilization: values[0],
		Temperature: values[1],
		MemoryTotal: total,
		MemoryUsed:  used,
		MemoryFree:  total - used,
	}, nil
}
