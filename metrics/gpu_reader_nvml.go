//go:build nvml && cgo

package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlReader samples the first device through NVML. It falls back to
// nvidia-smi when the library cannot be loaded.
type nvmlReader struct {
	fallback GPUReader

	once    sync.Once
	initErr error
	device  nvml.Device
}

func newGPUReader(config GPUSamplerConfig) GPUReader {
	return &nvmlReader{fallback: nvidiaSMIReader{path: config.NvidiaSMIPath}}
}

func (r *nvmlReader) init() {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		r.initErr = fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
		return
	}
	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		r.initErr = fmt.Errorf("nvml device 0: %s", nvml.ErrorString(ret))
		_ = nvml.Shutdown()
		return
	}
	r.device = device
}

func (r *nvmlReader) ReadGPUMetrics(ctx context.Context) (GPUMetrics, error) {
	r.once.Do(r.init)
	if r.initErr != nil {
		return r.fallback.ReadGPUMetrics(ctx)
	}

	util, ret := r.device.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return GPUMetrics{}, fmt.Errorf("nvml utilization: %s", nvml.ErrorString(ret))
	}
	temp, ret := r.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return GPUMetrics{}, fmt.Errorf("nvml temperature: %s", nvml.ErrorString(ret))
	}
	mem, ret := r.device.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return GPUMetrics{}, fmt.Errorf("nvml memory: %s", nvml.ErrorString(ret))
	}
	return GPUMetrics{
		Utilization: float64(util.Gpu),
		Temperature: float64(temp),
		MemoryTotal: int64(mem.Total),
		MemoryUsed:  int64(mem.Used),
		MemoryFree:  int64(mem.Free),
	}, nil
}

// Close releases NVML if it was initialised.
func (r *nvmlReader) Close() error {
	if r.device == nil {
		return nil
	}
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvml shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}
