// Package app assembles the bundled binary's dependency graph with
// go.uber.org/fx: config, logger, memory pool, buffer pool, the default
// storage engine, the command executor, and the connection server are
// each an fx provider; cmd/kvstored only supplies the already-parsed
// Config to New and starts and stops the returned app.
//
// None of spec.md's components depend on fx themselves — it only
// replaces what would otherwise be a hand-rolled construction sequence
// in main(), the same role the teacher's (unused, indirect) fx
// dependency would play had its own main.go grown past the
// few-dozen-line prototype it is.
package app

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/nmxmxh/kvstored/internal/bufpool"
	"github.com/nmxmxh/kvstored/internal/config"
	"github.com/nmxmxh/kvstored/internal/executor"
	"github.com/nmxmxh/kvstored/internal/kverrors"
	"github.com/nmxmxh/kvstored/internal/logging"
	"github.com/nmxmxh/kvstored/internal/metrics"
	"github.com/nmxmxh/kvstored/internal/pool"
	"github.com/nmxmxh/kvstored/internal/server"
	"github.com/nmxmxh/kvstored/internal/storage"
	"github.com/nmxmxh/kvstored/internal/storage/memengine"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level := logging.Info
	switch cfg.LogLevel {
	case "debug":
		level = logging.Debug
	case "warn":
		level = logging.Warn
	case "error":
		level = logging.Error
	}
	return logging.New(logging.Config{Level: level, Production: cfg.LogProduction})
}

func newPool(cfg config.Config) *pool.Pool {
	pool.ApplyDetectedAlignment()
	return pool.New(pool.Config{
		InitialPoolSize: cfg.PoolInitialBytes,
		EmptySlabCap:    cfg.PoolEmptySlabCap,
		StatsEnabled:    cfg.StatsEnabled,
	})
}

func newBufPool() *bufpool.Pool { return bufpool.New() }

func newMetrics(cfg config.Config) *metrics.Registry {
	if !cfg.MetricsEnabled {
		return nil
	}
	return metrics.New()
}

func newFacade(cfg config.Config, log *zap.Logger) (storage.Facade, error) {
	eng, err := memengine.Open(cfg.StorageDir, logging.Component(log, "memengine"))
	if err != nil {
		return nil, kverrors.Wrap(kverrors.KindFatalInit, "open storage engine", err)
	}
	return eng, nil
}

func newExecutor(facade storage.Facade) *executor.Executor {
	return executor.New(facade, nil, nil)
}

func newServer(cfg config.Config, log *zap.Logger, p *pool.Pool, buffers *bufpool.Pool, ex *executor.Executor, mr *metrics.Registry) *server.Server {
	srv := server.New(cfg, log, p, buffers, ex, mr)
	ex.SetStats(srv)
	return srv
}

// registerHooks binds the server's listener bind to fx's OnStart
// (synchronously, so a bind failure fails application startup per
// spec.md §6's "non-zero on fatal startup error (bind failure)"), the
// accept loop and the metrics endpoint (when enabled) to background
// goroutines started there, and the metrics endpoint's shutdown, the
// server's Shutdown and the storage facade's Close to OnStop.
func registerHooks(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, srv *server.Server, mr *metrics.Registry, facade storage.Facade) {
	var metricsSrv *http.Server

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Listen(); err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(context.Background()); err != nil {
					log.Error("server exited", zap.Error(err))
				}
			}()

			if mr != nil {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(mr.Gatherer(), promhttp.HandlerOpts{}))
				metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Warn("metrics server stopped", zap.Error(err))
					}
				}()
				log.Info("metrics endpoint listening", zap.String("addr", cfg.MetricsAddr))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			shutdownErr := srv.Shutdown(ctx)
			if err := facade.Close(); err != nil {
				log.Warn("storage close failed", zap.Error(err))
			}
			return shutdownErr
		},
	})
}

// Module is the complete fx provider set for the bundled kvstored
// binary.
var Module = fx.Options(
	fx.Provide(newLogger),
	fx.Provide(newPool),
	fx.Provide(newBufPool),
	fx.Provide(newMetrics),
	fx.Provide(newFacade),
	fx.Provide(newExecutor),
	fx.Provide(newServer),
	fx.Invoke(registerHooks),
)

// New builds the fx.App for cfg, with cfg supplied directly (it is
// already fully resolved from defaults/file/flags by the time
// cmd/kvstored calls this). fxLog may be nil to use fx's default
// console logger.
func New(cfg config.Config, fxLog fxevent.Logger) *fx.App {
	opts := []fx.Option{fx.Supply(cfg), Module}
	if fxLog != nil {
		opts = append(opts, fx.WithLogger(func() fxevent.Logger { return fxLog }))
	}
	return fx.New(opts...)
}
