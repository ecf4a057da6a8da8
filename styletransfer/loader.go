package styletransfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go_styletransfer/assets"
	"go_styletransfer/logging"
	"go_styletransfer/stylenet"
)

// Loader builds a Registry from an asset source.
type Loader struct {
	cfg    Config
	logger *logging.Logger

	// gpuCount reports the compute devices; stylenet.GPUCount unless replaced
	// in tests.
	gpuCount func() int
	now      func() time.Time
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(cfg Config, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		cfg:      cfg,
		logger:   logger.Named("loader"),
		gpuCount: stylenet.GPUCount,
		now:      time.Now,
	}
}

// Initialize loads the shared descriptor and the five weight blobs into a
// new Registry.
//
// Under LoadPolicyLenient a slot that fails to load is logged and left not
// ready, and Initialize still succeeds. Under LoadPolicyStrict the first
// failure releases everything and is returned wrapped in ErrModelLoadFailed.
// Manifest problems and context cancellation fail under both policies.
func (l *Loader) Initialize(ctx context.Context, src assets.Source) (*Registry, error) {
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil asset source", ErrModelLoadFailed)
	}
	manifest, err := assets.LoadManifest(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoadFailed, err)
	}
	if len(manifest.Styles) != NumStyles {
		return nil, fmt.Errorf("%w: %w: manifest lists %d styles, need %d",
			ErrModelLoadFailed, assets.ErrInvalidManifest, len(manifest.Styles), NumStyles)
	}

	gpus := l.gpuCount()
	opt := stylenet.Option{
		NumThreads:       l.cfg.NumThreads,
		LightMode:        l.cfg.LightMode,
		UseVulkanCompute: gpus > 0,
		Allocators:       stylenet.NewAllocators(),
	}
	reg := &Registry{opt: opt, gpuCount: gpus, source: src.String()}
	for i, st := range manifest.Styles {
		reg.slots[i] = Slot{Index: i, Name: st.Name}
	}

	l.logger.Info("loading style models",
		zap.String("source", src.String()),
		zap.String("backend", stylenet.BackendInfo()),
		zap.Int("gpu_count", gpus),
		zap.String("config", l.cfg.String()))

	param, paramErr := src.ReadFile(manifest.Architecture.File)
	if paramErr != nil {
		paramErr = l.assetError(paramErr)
		if l.cfg.LoadPolicy == LoadPolicyStrict {
			reg.Close()
			return nil, fmt.Errorf("%w: architecture %s: %w", ErrModelLoadFailed, manifest.Architecture.File, paramErr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.LoadConcurrency)
	for i := range manifest.Styles {
		style := manifest.Styles[i]
		slot := &reg.slots[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l.loadSlot(slot, opt, src, param, paramErr, style.File)
			if slot.Err != nil && l.cfg.LoadPolicy == LoadPolicyStrict {
				return fmt.Errorf("%w: %s: %w", ErrModelLoadFailed, slot.Name, slot.Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		reg.Close()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		reg.Close()
		return nil, err
	}

	ready := reg.ReadyCount()
	if ready < NumStyles {
		l.logger.Warn("some style models failed to load",
			zap.Int("ready", ready), zap.Int("total", NumStyles))
	} else {
		l.logger.Info("style models loaded", zap.Int("ready", ready))
	}
	return reg, nil
}

// loadSlot builds one network. Each goroutine writes only its own slot.
// Both load steps are attempted so the log carries both return codes.
func (l *Loader) loadSlot(slot *Slot, opt stylenet.Option, src assets.Source, param []byte, paramErr error, weights string) {
	start := l.now()
	slot.ParamRet, slot.ModelRet = -1, -1

	net, err := stylenet.NewNet(opt)
	if err != nil {
		slot.Err = err
		l.logLoad(slot, start)
		return
	}

	var perr, rerr, merr error
	if paramErr != nil {
		perr = paramErr
	} else {
		perr = net.LoadParam(param)
		slot.ParamRet = stylenet.ReturnCode(perr)
	}
	model, rerr := src.ReadFile(weights)
	if rerr != nil {
		rerr = l.assetError(rerr)
	} else {
		merr = net.LoadModel(model)
		slot.ModelRet = stylenet.ReturnCode(merr)
	}

	for _, e := range []error{perr, rerr, merr} {
		if e != nil {
			slot.Err = e
			break
		}
	}
	if slot.Err != nil {
		net.Close()
	} else {
		slot.net = net
	}
	l.logLoad(slot, start)
}

func (l *Loader) logLoad(slot *Slot, start time.Time) {
	slot.LoadDuration = l.now().Sub(start)
	fields := logging.LoadFields(slot.Name, slot.ParamRet, slot.ModelRet, slot.LoadDuration)
	msg := fmt.Sprintf("load %d %d", slot.ParamRet, slot.ModelRet)
	if slot.Err != nil {
		l.logger.Warn(msg, append(fields, zap.Int("slot", slot.Index), zap.Error(slot.Err))...)
		return
	}
	l.logger.Info(msg, append(fields, zap.Int("slot", slot.Index))...)
}

func (l *Loader) assetError(err error) error {
	if errors.Is(err, assets.ErrAssetNotFound) {
		return fmt.Errorf("%w: %v", ErrModelNotFound, err)
	}
	return err
}
