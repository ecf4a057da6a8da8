//go:build !nvml || !cgo

package metrics

func newGPUReader(config GPUSamplerConfig) GPUReader {
	return nvidiaSMIReader{path: config.NvidiaSMIPath}
}
