package core

import (
	"context"
)

// ShutdownFunc is a cleanup handler run during graceful shutdown.
// It receives a context carrying the shutdown deadline and must be safe to
// call more than once.
//
//	var closeRegistry ShutdownFunc = func(ctx context.Context) error {
//	    registry.Close()
//	    return nil
//	}
type ShutdownFunc func(ctx context.Context) error
