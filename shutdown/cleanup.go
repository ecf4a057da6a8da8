package shutdown

import (
	"context"
	"errors"
	"net/http"
	"syscall"

	"go.uber.org/zap"

	"go_styletransfer/core"
)

// HTTPServer drains srv within the shutdown deadline.
func HTTPServer(logger *zap.Logger, srv *http.Server) core.ShutdownFunc {
	return func(ctx context.Context) error {
		logger.Info("Stopping HTTP server", zap.String("addr", srv.Addr))
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Closer adapts an error-returning Close method.
func Closer(closeFn func() error) core.ShutdownFunc {
	return func(ctx context.Context) error {
		return closeFn()
	}
}

// Stopper adapts a Stop method that cannot fail.
func Stopper(stop func()) core.ShutdownFunc {
	return func(ctx context.Context) error {
		stop()
		return nil
	}
}

// ContextCloser adapts a Stop(ctx) method such as db.AsyncWriter.Stop.
func ContextCloser(stop func(context.Context) error) core.ShutdownFunc {
	return func(ctx context.Context) error {
		return stop(ctx)
	}
}

// SyncLogger flushes the logger. Sync on a terminal returns EINVAL or
// ENOTTY, which are ignored.
func SyncLogger(sync func() error) core.ShutdownFunc {
	return func(ctx context.Context) error {
		err := sync()
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return err
	}
}
