package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go_styletransfer/core"
)

const namespace = "styletransfer"

// Exporter publishes transfer metrics in the Prometheus format. Each
// Exporter owns its registry, so several can coexist in tests.
type Exporter struct {
	registry *prometheus.Registry

	transfers   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	loadedSlots prometheus.Gauge

	gpuUtilization prometheus.Gauge
	gpuMemoryUsed  prometheus.Gauge
	gpuTemperature prometheus.Gauge
}

// NewExporter creates an exporter with the Go runtime and process collectors
// registered alongside the transfer metrics.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Style transfer requests by style, backend and status.",
		}, []string{"style", "backend", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Wall-clock time of successful style transfers.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"style", "backend"}),
		loadedSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_slots",
			Help:      "Number of style model slots ready to serve.",
		}),
		gpuUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gpu",
			Name:      "utilization_percent",
			Help:      "GPU utilization sampled from nvidia-smi.",
		}),
		gpuMemoryUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gpu",
			Name:      "memory_used_bytes",
			Help:      "GPU memory in use sampled from nvidia-smi.",
		}),
		gpuTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gpu",
			Name:      "temperature_celsius",
			Help:      "GPU temperature sampled from nvidia-smi.",
		}),
	}
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		e.transfers,
		e.duration,
		e.loadedSlots,
		e.gpuUtilization,
		e.gpuMemoryUsed,
		e.gpuTemperature,
	)
	return e
}

// ObserveTransfer counts rec and, for successes, records its duration.
func (e *Exporter) ObserveTransfer(rec core.TransferRecord) {
	style := styleLabel(rec)
	e.transfers.WithLabelValues(style, rec.Backend, string(rec.Status)).Inc()
	if rec.Status == core.TransferSucceeded {
		e.duration.WithLabelValues(style, rec.Backend).Observe(rec.Duration.Seconds())
	}
}

// SetLoadedSlots updates the ready slot gauge.
func (e *Exporter) SetLoadedSlots(n int) {
	e.loadedSlots.Set(float64(n))
}

// UpdateGPUMetrics publishes one GPU sample.
func (e *Exporter) UpdateGPUMetrics(gpu GPUMetrics) {
	e.gpuUtilization.Set(gpu.Utilization)
	e.gpuMemoryUsed.Set(float64(gpu.MemoryUsed))
	e.gpuTemperature.Set(gpu.Temperature)
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}
