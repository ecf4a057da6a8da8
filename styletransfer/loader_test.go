//go:build !ncnn || !cgo

package styletransfer

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"testing/fstest"

	"go.uber.org/zap/zapcore"

	"go_styletransfer/assets"
	"go_styletransfer/stylenet"
)

func TestLoader_Initialize_AllSlots(t *testing.T) {
	logger, logs := observedLogger(zapcore.DebugLevel)
	reg, err := newTestLoader(DefaultConfig(), logger, 0).Initialize(context.Background(), assets.FS(fixtureFS(t)))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer reg.Close()

	if reg.ReadyCount() != NumStyles {
		t.Errorf("ReadyCount = %d, want %d", reg.ReadyCount(), NumStyles)
	}
	for i, st := range reg.Status() {
		if st.Index != i || st.Name != StyleName(i) || !st.Ready {
			t.Errorf("slot %d = %+v", i, st)
		}
		if st.ParamRet != 0 || st.ModelRet != 0 || st.Error != "" {
			t.Errorf("slot %d return codes = %d %d (%s)", i, st.ParamRet, st.ModelRet, st.Error)
		}
	}

	// One load record per slot carrying both return codes
	loads := logs.FilterMessage("load 0 0").All()
	if len(loads) != NumStyles {
		t.Fatalf("expected %d load records, got %d", NumStyles, len(loads))
	}
	seen := make(map[string]bool)
	for _, e := range loads {
		fields := e.ContextMap()
		if fields["param_ret"] != int64(0) || fields["model_ret"] != int64(0) {
			t.Errorf("load record fields = %v", fields)
		}
		seen[fields["style"].(string)] = true
	}
	for _, name := range assets.DefaultStyles {
		if !seen[name] {
			t.Errorf("no load record for %s", name)
		}
	}
}

func TestLoader_Initialize_SharedOption(t *testing.T) {
	tests := []struct {
		name       string
		gpus       int
		wantVulkan bool
	}{
		{"no device", 0, false},
		{"one device", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.NumThreads = 2
			reg := loadRegistry(t, cfg, tt.gpus)

			opt := reg.Option()
			if opt.NumThreads != 2 || !opt.LightMode {
				t.Errorf("option = %+v", opt)
			}
			if opt.UseVulkanCompute != tt.wantVulkan {
				t.Errorf("UseVulkanCompute = %v, want %v", opt.UseVulkanCompute, tt.wantVulkan)
			}
			if opt.Allocators == nil {
				t.Error("expected shared allocators")
			}
			if reg.GPUCount() != tt.gpus {
				t.Errorf("GPUCount = %d, want %d", reg.GPUCount(), tt.gpus)
			}
		})
	}
}

func TestLoader_Initialize_Lenient(t *testing.T) {
	// DOING: remove one weight file and corrupt another
	fsys := fixtureFS(t)
	delete(fsys, "mosaic.bin")
	fsys["udnie.bin"] = &fstest.MapFile{Data: []byte("short")}

	logger, logs := observedLogger(zapcore.InfoLevel)
	reg, err := newTestLoader(DefaultConfig(), logger, 0).Initialize(context.Background(), assets.FS(fsys))
	// EXPECT: initialization still succeeds with three ready slots
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer reg.Close()

	if reg.ReadyCount() != 3 {
		t.Errorf("ReadyCount = %d, want 3", reg.ReadyCount())
	}
	status := reg.Status()
	if status[StyleMosaic].Ready || status[StyleMosaic].Error == "" {
		t.Errorf("mosaic = %+v", status[StyleMosaic])
	}
	if status[StyleMosaic].ParamRet != 0 || status[StyleMosaic].ModelRet != -1 {
		t.Errorf("mosaic return codes = %d %d", status[StyleMosaic].ParamRet, status[StyleMosaic].ModelRet)
	}
	if status[StyleUdnie].Ready || status[StyleUdnie].ModelRet != -1 {
		t.Errorf("udnie = %+v", status[StyleUdnie])
	}
	if logs.FilterMessage("load 0 -1").Len() != 2 {
		t.Errorf("expected two failed load records, got %d", logs.FilterMessage("load 0 -1").Len())
	}

	// Running a failed slot is an error, a healthy slot still works
	d := NewDispatcher(reg, DefaultConfig(), nil)
	bmp := solidBitmap(t, 8, 8, 1, 2, 3)
	if err := d.Run(context.Background(), bmp, StyleMosaic, false); !errors.Is(err, ErrSlotNotLoaded) {
		t.Errorf("expected ErrSlotNotLoaded, got %v", err)
	}
	if err := d.Run(context.Background(), bmp, StyleCandy, false); err != nil {
		t.Errorf("candy: %v", err)
	}
}

func TestLoader_Initialize_NcnnWeightsNotLoaded(t *testing.T) {
	// DOING: replace a weight file with an fp32 ncnn blob (flag word 0, then weights)
	blob := make([]byte, 4+256*4)
	for i := 4; i < len(blob); i += 4 {
		binary.LittleEndian.PutUint32(blob[i:], math.Float32bits(0.5))
	}
	fsys := fixtureFS(t)
	fsys["candy.bin"] = &fstest.MapFile{Data: blob}

	reg, err := newTestLoader(DefaultConfig(), nil, 0).Initialize(context.Background(), assets.FS(fsys))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer reg.Close()

	// EXPECT: the slot reports model_ret -1 and is not ready
	st := reg.Status()[StyleCandy]
	if st.Ready || st.ParamRet != 0 || st.ModelRet != -1 {
		t.Errorf("candy = %+v", st)
	}
	if reg.ReadyCount() != NumStyles-1 {
		t.Errorf("ReadyCount = %d, want %d", reg.ReadyCount(), NumStyles-1)
	}
}

func TestLoader_Initialize_Strict(t *testing.T) {
	fsys := fixtureFS(t)
	delete(fsys, "pointilism.bin")

	cfg := DefaultConfig()
	cfg.LoadPolicy = LoadPolicyStrict
	reg, err := newTestLoader(cfg, nil, 0).Initialize(context.Background(), assets.FS(fsys))
	if reg != nil {
		t.Error("expected nil registry")
	}
	if !errors.Is(err, ErrModelLoadFailed) {
		t.Fatalf("expected ErrModelLoadFailed, got %v", err)
	}
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound in chain, got %v", err)
	}
}

func TestLoader_Initialize_MissingArchitecture(t *testing.T) {
	fsys := fixtureFS(t)
	delete(fsys, assets.DefaultArchitectureFile)

	t.Run("lenient", func(t *testing.T) {
		reg, err := newTestLoader(DefaultConfig(), nil, 0).Initialize(context.Background(), assets.FS(fsys))
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		defer reg.Close()
		if reg.ReadyCount() != 0 {
			t.Errorf("ReadyCount = %d, want 0", reg.ReadyCount())
		}
		for _, st := range reg.Status() {
			if st.ParamRet != -1 {
				t.Errorf("slot %d param_ret = %d", st.Index, st.ParamRet)
			}
		}
	})

	t.Run("strict", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LoadPolicy = LoadPolicyStrict
		_, err := newTestLoader(cfg, nil, 0).Initialize(context.Background(), assets.FS(fsys))
		if !errors.Is(err, ErrModelNotFound) || !errors.Is(err, ErrModelLoadFailed) {
			t.Errorf("expected ErrModelLoadFailed wrapping ErrModelNotFound, got %v", err)
		}
	})
}

func TestLoader_Initialize_BadDescriptor(t *testing.T) {
	fsys := fixtureFS(t)
	fsys[assets.DefaultArchitectureFile] = &fstest.MapFile{Data: []byte("not a descriptor")}

	reg, err := newTestLoader(DefaultConfig(), nil, 0).Initialize(context.Background(), assets.FS(fsys))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer reg.Close()
	for _, st := range reg.Status() {
		if st.Ready || st.ParamRet != -1 {
			t.Errorf("slot %d = %+v", st.Index, st)
		}
	}
}

func TestLoader_Initialize_Manifest(t *testing.T) {
	fsys := fixtureFS(t)
	fsys["weights/candy-v2.bin"] = fsys["candy.bin"]
	delete(fsys, "candy.bin")
	fsys[assets.ManifestFile] = &fstest.MapFile{Data: []byte(`
architecture:
  file: styletransfer.param.bin
styles:
  - name: candy
    file: weights/candy-v2.bin
  - name: mosaic
    file: mosaic.bin
  - name: pointilism
    file: pointilism.bin
  - name: rain_princess
    file: rain_princess.bin
  - name: udnie
    file: udnie.bin
`)}

	reg, err := newTestLoader(DefaultConfig(), nil, 0).Initialize(context.Background(), assets.FS(fsys))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer reg.Close()
	if reg.ReadyCount() != NumStyles {
		t.Errorf("ReadyCount = %d", reg.ReadyCount())
	}
}

func TestLoader_Initialize_Errors(t *testing.T) {
	shortManifest := fixtureFS(t)
	shortManifest[assets.ManifestFile] = &fstest.MapFile{Data: []byte("architecture:\n  file: styletransfer.param.bin\nstyles:\n  - name: candy\n    file: candy.bin\n")}

	badCfg := DefaultConfig()
	badCfg.NumThreads = 0

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		cfg     Config
		ctx     context.Context
		src     assets.Source
		wantErr error
	}{
		{"nil source", DefaultConfig(), context.Background(), nil, ErrModelLoadFailed},
		{"wrong style count", DefaultConfig(), context.Background(), assets.FS(shortManifest), assets.ErrInvalidManifest},
		{"cancelled", DefaultConfig(), cancelled, assets.FS(fixtureFS(t)), context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := newTestLoader(tt.cfg, nil, 0).Initialize(tt.ctx, tt.src)
			if reg != nil {
				reg.Close()
				t.Error("expected nil registry")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("invalid config", func(t *testing.T) {
		if _, err := newTestLoader(badCfg, nil, 0).Initialize(context.Background(), assets.FS(fixtureFS(t))); err == nil {
			t.Error("expected config error")
		}
	})
}

func TestRegistry_Close(t *testing.T) {
	reg, err := newTestLoader(DefaultConfig(), nil, 0).Initialize(context.Background(), assets.FS(fixtureFS(t)))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	reg.Close()
	reg.Close()

	if !reg.Closed() {
		t.Error("Closed() = false")
	}
	if reg.ReadyCount() != 0 {
		t.Errorf("ReadyCount after close = %d", reg.ReadyCount())
	}
	for _, st := range reg.Status() {
		if st.Ready {
			t.Errorf("slot %d still ready", st.Index)
		}
	}

	d := NewDispatcher(reg, DefaultConfig(), nil)
	if err := d.Run(context.Background(), solidBitmap(t, 4, 4, 0, 0, 0), StyleCandy, false); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("expected ErrRegistryClosed, got %v", err)
	}
}

func TestRegistry_Independent(t *testing.T) {
	a := loadRegistry(t, DefaultConfig(), 0)
	b := loadRegistry(t, DefaultConfig(), 0)
	a.Close()

	if b.ReadyCount() != NumStyles {
		t.Errorf("closing one registry affected another: ready = %d", b.ReadyCount())
	}
	if stylenet.GPUCount() != 0 {
		t.Errorf("reference backend GPUCount = %d", stylenet.GPUCount())
	}
}
