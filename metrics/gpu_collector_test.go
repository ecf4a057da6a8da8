package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeGPUReader struct {
	mu    sync.Mutex
	gpu   GPUMetrics
	err   error
	calls int
}

func (f *fakeGPUReader) ReadGPUMetrics(ctx context.Context) (GPUMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.gpu, f.err
}

func (f *fakeGPUReader) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type sinkFunc func(GPUMetrics)

func (f sinkFunc) UpdateGPUMetrics(gpu GPUMetrics) { f(gpu) }

func TestParseNvidiaSMIOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    GPUMetrics
		wantErr bool
	}{
		{
			name:   "single gpu",
			output: "45, 62, 2048, 8192\n",
			want: GPUMetrics{
				Utilization: 45,
				Temperature: 62,
				MemoryTotal: 8192 << 20,
				MemoryUsed:  2048 << 20,
				MemoryFree:  6144 << 20,
			},
		},
		{
			name:   "first of several gpus",
			output: "10, 40, 100, 1000\n90, 80, 900, 1000",
			want: GPUMetrics{
				Utilization: 10,
				Temperature: 40,
				MemoryTotal: 1000 << 20,
				MemoryUsed:  100 << 20,
				MemoryFree:  900 << 20,
			},
		},
		{name: "empty", output: "  \n", wantErr: true},
		{name: "short row", output: "1, 2, 3", wantErr: true},
		{name: "not a number", output: "[N/A], 40, 100, 1000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNvidiaSMIOutput(tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGPUSampler_FeedsSinks(t *testing.T) {
	reader := &fakeGPUReader{gpu: GPUMetrics{Utilization: 33, MemoryUsed: 512}}
	store := NewMetricsStore(DefaultStoreConfig(), time.Now())
	exporter := NewExporter()
	got := make(chan GPUMetrics, 1)

	sampler := NewGPUSamplerWithReader(DefaultGPUSamplerConfig(), reader, zaptest.NewLogger(t),
		store, exporter, sinkFunc(func(g GPUMetrics) {
			select {
			case got <- g:
			default:
			}
		}))
	sampler.Start(context.Background())
	defer sampler.Stop()

	select {
	case g := <-got:
		if g.Utilization != 33 {
			t.Errorf("sink got %+v", g)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sampler never sampled")
	}
	if !sampler.IsAvailable() || sampler.LastError() != nil {
		t.Errorf("available = %v, err = %v", sampler.IsAvailable(), sampler.LastError())
	}
	if store.GetGPUMetrics().Utilization != 33 || sampler.Current().MemoryUsed != 512 {
		t.Errorf("store = %+v, current = %+v", store.GetGPUMetrics(), sampler.Current())
	}
}

func TestGPUSampler_ReaderError(t *testing.T) {
	reader := &fakeGPUReader{gpu: GPUMetrics{Utilization: 12}}
	sampler := NewGPUSamplerWithReader(DefaultGPUSamplerConfig(), reader, zaptest.NewLogger(t))
	ctx := context.Background()

	sampler.sample(ctx)
	if !sampler.IsAvailable() {
		t.Fatal("first sample failed")
	}

	// DOING: the reader starts failing
	reader.setErr(errors.New("nvidia-smi: not found"))
	sampler.sample(ctx)

	// EXPECT: unavailable, last good sample kept
	if sampler.IsAvailable() || sampler.LastError() == nil {
		t.Errorf("available = %v, err = %v", sampler.IsAvailable(), sampler.LastError())
	}
	if sampler.Current().Utilization != 12 {
		t.Errorf("Current() = %+v, want last good sample", sampler.Current())
	}
}

func TestGPUSampler_StopsWithContext(t *testing.T) {
	reader := &fakeGPUReader{}
	sampler := NewGPUSamplerWithReader(GPUSamplerConfig{Interval: time.Hour}, reader, nil)
	ctx, cancel := context.WithCancel(context.Background())
	sampler.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		sampler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}
}
