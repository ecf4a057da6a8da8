package styletransfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go_styletransfer/core"
	"go_styletransfer/logging"
	"go_styletransfer/pixel"
	"go_styletransfer/stylenet"
)

// Dispatcher runs one style transfer per call against a Registry.
// Calls are independent and may run concurrently: each creates its own
// extractor and the registry's shared allocators are locked pools.
// Run holds the registry open so Close waits for it.
type Dispatcher struct {
	registry  *Registry
	cfg       Config
	logger    *logging.Logger
	bench     *logging.Bench
	observers []Observer

	newID func() string
	now   func() time.Time
}

// NewDispatcher creates a dispatcher for reg. A nil logger discards output.
func NewDispatcher(reg *Registry, cfg Config, logger *logging.Logger, observers ...Observer) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("dispatcher")
	return &Dispatcher{
		registry:  reg,
		cfg:       cfg,
		logger:    logger,
		bench:     logging.NewBench(logger),
		observers: observers,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Registry returns the registry the dispatcher runs against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Run applies style to bmp in place.
//
// Validation failures (ErrInvalidStyle, ErrGPUUnavailable,
// ErrUnsupportedFormat, ErrInvalidBitmap) leave the bitmap untouched. A
// failure after write-back has started may leave it partially modified.
// ctx is checked once before the forward pass.
func (d *Dispatcher) Run(ctx context.Context, bmp *pixel.Bitmap, style int, useGPU bool) error {
	id := RequestIDFromContext(ctx)
	if id == "" {
		id = d.newID()
	}
	rec := core.TransferRecord{
		ID:        id,
		Style:     style,
		Backend:   stylenet.BackendName(),
		UseGPU:    useGPU,
		CreatedAt: d.now(),
	}
	if bmp != nil {
		rec.Width, rec.Height = bmp.Width, bmp.Height
	}
	if d.registry != nil {
		rec.StyleName = d.registry.SlotName(style)
	}

	err := d.run(ctx, bmp, style, useGPU, &rec)
	if err != nil {
		rec.Status = core.TransferFailed
		rec.Error = err.Error()
		d.logger.Warn("style transfer failed", logging.TransferFields(rec))
	} else {
		rec.Status = core.TransferSucceeded
		d.logger.Debug("style transfer complete", logging.TransferFields(rec))
	}
	for _, o := range d.observers {
		o.ObserveTransfer(rec)
	}
	return err
}

// RunStyleTransfer is the boolean form of Run with a background context.
func (d *Dispatcher) RunStyleTransfer(bmp *pixel.Bitmap, style int, useGPU bool) bool {
	return d.Run(context.Background(), bmp, style, useGPU) == nil
}

func (d *Dispatcher) run(ctx context.Context, bmp *pixel.Bitmap, style int, useGPU bool, rec *core.TransferRecord) error {
	if style < 0 || style >= NumStyles {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidStyle, style, NumStyles)
	}
	if d.registry == nil {
		return ErrNotInitialized
	}
	if useGPU && d.registry.GPUCount() == 0 {
		return ErrGPUUnavailable
	}
	if bmp == nil {
		return fmt.Errorf("%w: nil bitmap", ErrInvalidBitmap)
	}
	if bmp.Format != pixel.FormatRGBA8888 {
		return fmt.Errorf("%w: got %s", ErrUnsupportedFormat, bmp.Format)
	}
	if err := bmp.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBitmap, err)
	}

	net, release, err := d.registry.acquire(style)
	if err != nil {
		return err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return err
	}

	timer := d.bench.Start("styletransfer")

	w, h := pixel.ReducedSize(bmp.Width, bmp.Height, d.cfg.DownscaleRatio)
	in, err := pixel.ToTensor(bmp, w, h)
	if err != nil {
		return fmt.Errorf("%w: to tensor: %v", ErrInferenceFailed, err)
	}

	ex, err := net.NewExtractor()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}
	defer ex.Close()
	ex.SetVulkanCompute(useGPU)
	ex.SetLightMode(d.registry.Option().LightMode)

	if err := ex.Input(d.cfg.InputBlob, in); err != nil {
		return fmt.Errorf("%w: input: %v", ErrInferenceFailed, err)
	}
	outIndex := d.cfg.OutputBlob
	if outIndex < 0 {
		outIndex = net.Header().OutputIndex()
	}
	out, err := ex.Extract(outIndex)
	if err != nil {
		return fmt.Errorf("%w: extract: %v", ErrInferenceFailed, err)
	}
	defer out.Release()

	if err := pixel.FromTensor(out, bmp, d.cfg.OutputMode.resizeMode()); err != nil {
		if errors.Is(err, pixel.ErrUnsupportedFormat) {
			return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return fmt.Errorf("%w: from tensor: %v", ErrInferenceFailed, err)
	}

	rec.Duration = d.bench.End(timer,
		logging.RequestField(rec.ID),
		zap.Int("style", style),
		zap.Bool("use_gpu", useGPU),
		zap.Int("tensor_w", w),
		zap.Int("tensor_h", h))
	return nil
}
