package styletransfer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go_styletransfer/assets"
	"go_styletransfer/logging"
	"go_styletransfer/pixel"
)

// Runtime is the boolean host-facing surface: Init loads the models,
// StyleTransfer runs one request. Errors are logged and collapsed to false;
// use Loader and Dispatcher directly for the error values.
type Runtime struct {
	cfg       Config
	logger    *logging.Logger
	observers []Observer

	mu         sync.RWMutex
	loader     *Loader
	dispatcher *Dispatcher
}

// NewRuntime creates an uninitialized runtime.
func NewRuntime(cfg Config, logger *logging.Logger, observers ...Observer) *Runtime {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		observers: observers,
		loader:    NewLoader(cfg, logger),
	}
}

// Init loads every slot from src. Calling Init again replaces the previous
// registry once the new one is ready.
func (r *Runtime) Init(src assets.Source) bool {
	return r.InitContext(context.Background(), src) == nil
}

// InitContext is Init with a context and the underlying error.
func (r *Runtime) InitContext(ctx context.Context, src assets.Source) error {
	reg, err := r.loader.Initialize(ctx, src)
	if err != nil {
		r.logger.Error("initialization failed", zap.Error(err))
		return err
	}

	r.mu.Lock()
	old := r.dispatcher
	r.dispatcher = NewDispatcher(reg, r.cfg, r.logger, r.observers...)
	r.mu.Unlock()

	if old != nil {
		old.Registry().Close()
	}
	return nil
}

// StyleTransfer applies style to bmp in place and reports success.
func (r *Runtime) StyleTransfer(bmp *pixel.Bitmap, style int, useGPU bool) bool {
	return r.Run(context.Background(), bmp, style, useGPU) == nil
}

// Run is StyleTransfer with a context and the underlying error.
func (r *Runtime) Run(ctx context.Context, bmp *pixel.Bitmap, style int, useGPU bool) error {
	d := r.Dispatcher()
	if d == nil {
		return ErrNotInitialized
	}
	return d.Run(ctx, bmp, style, useGPU)
}

// Dispatcher returns the active dispatcher, or nil before Init.
func (r *Runtime) Dispatcher() *Dispatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dispatcher
}

// Registry returns the active registry, or nil before Init.
func (r *Runtime) Registry() *Registry {
	d := r.Dispatcher()
	if d == nil {
		return nil
	}
	return d.Registry()
}

// Close releases the active registry. The runtime can be initialized again.
func (r *Runtime) Close() error {
	r.mu.Lock()
	d := r.dispatcher
	r.dispatcher = nil
	r.mu.Unlock()

	if d != nil {
		d.Registry().Close()
		r.logger.Info("style models released")
	}
	return nil
}
