package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_styletransfer/core"
	"go_styletransfer/db"
	"go_styletransfer/logging"
	"go_styletransfer/metrics"
	"go_styletransfer/server"
	"go_styletransfer/shutdown"
	"go_styletransfer/stylenet"
	"go_styletransfer/styletransfer"
)

// historyCleanupInterval is how often rows past STYLE_HISTORY_RETENTION are purged.
const historyCleanupInterval = time.Hour

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the style models and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides STYLE_HTTP_ADDR)")
	return cmd
}

// service is the wired long-running process: the runtime, its observers and
// the HTTP surface, all registered with one shutdown manager.
type service struct {
	manager  *shutdown.Manager
	runtime  *styletransfer.Runtime
	store    *metrics.MetricsStore
	exporter *metrics.Exporter
	events   *server.Events
	database *db.Database
	history  *db.Repository
	gpu      *metrics.GPUSampler
	server   *server.Server
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger.Zap()
	logger.Info("Starting style transfer service",
		zap.String("version", core.VersionInfo(stylenet.BackendName())),
		zap.String("assets", a.cfg.AssetsDir),
		zap.String("addr", a.cfg.HTTPAddr),
		zap.Bool("history", a.cfg.HistoryEnabled()),
		zap.String("engine", a.styleCfg.String()),
	)

	manager := shutdown.NewManager(logger, shutdown.WithTimeout(a.cfg.ShutdownTimeout))
	svc, err := a.newService(ctx, manager)
	if err != nil {
		_ = manager.Shutdown()
		return err
	}

	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		_ = manager.Shutdown()
		return fmt.Errorf("listen %s: %w", a.cfg.HTTPAddr, err)
	}
	manager.Start()

	serveErr := make(chan error, 1)
	go func() {
		err := svc.server.Serve(manager.Context(), ln)
		if err != nil {
			manager.Trigger("http server failed")
		}
		serveErr <- err
	}()

	select {
	case <-ctx.Done():
		manager.Trigger("context cancelled")
	case <-manager.Context().Done():
	}

	shutdownErr := manager.Shutdown()
	return errors.Join(<-serveErr, shutdownErr)
}

// newService builds every component and registers its cleanup with manager.
// On error the handlers registered so far still need manager.Shutdown.
func (a *app) newService(ctx context.Context, manager *shutdown.Manager) (*service, error) {
	logger := a.logger.Zap()

	stylenet.CreateGPUInstance()
	manager.Register("gpu-instance", shutdown.PriorityGPUInstance, shutdown.Stopper(stylenet.DestroyGPUInstance))

	svc := &service{
		manager:  manager,
		store:    metrics.NewMetricsStore(metrics.StoreConfig{HistoryCapacity: 100, Version: core.Version}, time.Now()),
		exporter: metrics.NewExporter(),
		events:   server.NewEvents(server.DefaultEventsConfig(), logger),
	}
	observers := []styletransfer.Observer{svc.store, svc.exporter, svc.events}

	if a.cfg.HistoryEnabled() {
		if err := svc.openHistory(a.cfg, a.logger); err != nil {
			return nil, err
		}
		observers = append(observers, svc.history)
	}

	src, err := a.source()
	if err != nil {
		return nil, err
	}
	svc.runtime = styletransfer.NewRuntime(a.styleCfg, a.logger.Named(logging.ModuleName), observers...)
	if err := svc.runtime.InitContext(ctx, src); err != nil {
		return nil, err
	}
	manager.Register("runtime", shutdown.PriorityRuntime, func(context.Context) error {
		svc.store.MarkStopped()
		svc.exporter.SetLoadedSlots(0)
		return svc.runtime.Close()
	})

	reg := svc.runtime.Registry()
	ready := reg.ReadyCount()
	svc.store.SetRuntime(ready, styletransfer.NumStyles, reg.GPUCount(), stylenet.BackendName())
	svc.exporter.SetLoadedSlots(ready)
	if ready < styletransfer.NumStyles {
		logger.Warn("Some styles failed to load; requests for them will fail",
			zap.Int("ready", ready),
			zap.Int("total", styletransfer.NumStyles),
		)
	}

	if reg.GPUCount() > 0 {
		svc.gpu = metrics.NewGPUSampler(metrics.DefaultGPUSamplerConfig(), logger, svc.store, svc.exporter, svc.events)
		svc.gpu.Start(manager.Context())
		manager.Register("gpu-sampler", shutdown.PriorityGPUSampler, shutdown.Stopper(svc.gpu.Stop))
	}

	opts := server.Options{
		Store:      svc.store,
		Exporter:   svc.exporter,
		GPU:        svc.gpu,
		Events:     svc.events,
		Operations: manager,
	}
	if svc.history != nil {
		opts.History = svc.history
	}
	if a.cfg.APIKey != "" {
		auth, err := server.NewAPIKeyAuth(a.cfg.APIKey, logger.Named("auth"))
		if err != nil {
			return nil, fmt.Errorf("STYLE_API_KEY: %w", err)
		}
		opts.Auth = auth
		logger.Info("API key required for transfer, history and event routes")
	}
	srvCfg := server.DefaultConfig()
	srvCfg.Addr = a.cfg.HTTPAddr
	srvCfg.MaxUploadBytes = a.cfg.MaxUploadBytes
	srvCfg.MaxPixels = a.cfg.MaxPixels
	srvCfg.Version = core.Version
	svc.server = server.New(srvCfg, svc.runtime, opts, logger)
	manager.Register("http-server", shutdown.PriorityHTTPServer, shutdown.HTTPServer(logger, svc.server.HTTPServer()))

	manager.Register("logger", shutdown.PriorityLogger, shutdown.SyncLogger(a.logger.Sync))
	return svc, nil
}

// openHistory opens the database, starts the async writer and the retention
// scheduler, and registers their shutdown.
func (svc *service) openHistory(cfg *core.Config, logger *logging.Logger) error {
	database, err := db.NewDatabase(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	svc.database = database
	svc.history = db.NewRepository(database, nil, logger)

	writer := db.NewAsyncWriter(svc.history.AsyncWriteHandler(), db.DefaultChannelCapacity)
	svc.history.SetAsyncWriter(writer)
	writer.Start()

	svc.manager.Register("history", shutdown.PriorityHistory, func(ctx context.Context) error {
		stopErr := writer.Stop(ctx)
		if failed := writer.Failed(); failed > 0 {
			logger.Warn("Some history writes failed", zap.Int64("failed", failed))
		}
		return errors.Join(stopErr, database.Close())
	})

	if cfg.HistoryRetention > 0 {
		database.StartCleanupScheduler(svc.manager.Context(), cfg.HistoryRetention, historyCleanupInterval,
			func(res db.CleanupResult, err error) {
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						logger.Warn("History cleanup failed", zap.Error(err))
					}
					return
				}
				if res.Deleted > 0 {
					logger.Info("History cleanup complete",
						zap.Int64("deleted", res.Deleted),
						zap.Duration("duration", res.Duration),
					)
				}
			})
	}
	logger.Info("Transfer history enabled",
		zap.String("path", database.Path()),
		zap.Duration("retention", cfg.HistoryRetention),
	)
	return nil
}
