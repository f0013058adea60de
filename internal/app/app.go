// Package app wires the forwarder together: config, logging, grace store,
// route table, ingest server, and the background chores (config watch,
// grace pruning).
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"carrier/internal/config"
	"carrier/internal/grace"
	"carrier/internal/pipeline"
	"carrier/internal/server"
	"carrier/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager

	log      logx.Logger
	logClose func() error

	gate    grace.Gate
	client  *http.Client
	limiter *rate.Limiter

	srv  *server.Server
	cron *cron.Cron

	mu     sync.RWMutex
	routes map[string]*pipeline.Route

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New loads and validates the config and builds every component. Nothing
// starts running until Start.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, logClose := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log)

	busyTimeout, _ := time.ParseDuration(cfg.GraceStore.BusyTimeout)
	gate, err := grace.Open(grace.Config{
		Driver:      cfg.GraceStore.Driver,
		Path:        cfg.GraceStore.Path,
		BusyTimeout: busyTimeout,
	}, log)
	if err != nil {
		_ = logClose()
		return nil, fmt.Errorf("opening grace store: %w", err)
	}

	timeout, _ := time.ParseDuration(cfg.Dispatch.Timeout)
	a := &App{
		cfgMgr:   mgr,
		log:      log,
		logClose: logClose,
		gate:     gate,
		client:   &http.Client{Timeout: timeout},
	}
	if rps := cfg.Dispatch.RatePerSec; rps > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}

	if err := a.rebuildRoutes(cfg); err != nil {
		_ = gate.Close()
		_ = logClose()
		return nil, err
	}
	mgr.OnChange(a.applyConfig)

	a.srv = server.New(cfg.Server, a.lookupRoute, log)
	return a, nil
}

// Logger exposes the root logger for the entrypoint.
func (a *App) Logger() logx.Logger { return a.log }

// Start launches the ingest server, the config watcher, and the prune job.
// It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	cfg := a.cfgMgr.Get()

	a.cron = cron.New()
	pruneIdle, _ := time.ParseDuration(cfg.GraceStore.PruneIdle)
	if _, err := a.cron.AddFunc(cfg.GraceStore.PruneSchedule, func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer pcancel()
		n, err := a.gate.Prune(pctx, pruneIdle)
		if err != nil {
			a.log.Warn("grace prune failed", logx.Err(err))
			return
		}
		if n > 0 {
			a.log.Debug("pruned stale grace entries", logx.Int("removed", n))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("prune schedule %q: %w", cfg.GraceStore.PruneSchedule, err)
	}
	a.cron.Start()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error("config watcher stopped", logx.Err(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.srv.Start(); err != nil {
			a.log.Error("ingest server stopped", logx.Err(err))
		}
	}()

	a.log.Info("carrier started",
		logx.Int("routes", len(a.snapshotRoutes())),
		logx.String("addr", cfg.Server.Addr))
	return nil
}

// Stop shuts everything down in reverse order of startup.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.cron != nil {
		stopCtx := a.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Warn("server shutdown", logx.Err(err))
		}
	}
	a.wg.Wait()

	err := a.gate.Close()
	a.log.Info("carrier stopped")
	_ = a.logClose()
	return err
}

// applyConfig swaps the route table after a validated reload. The gate is
// kept: grace state belongs to sources, not to route objects.
func (a *App) applyConfig(cfg *config.Config) {
	if err := a.rebuildRoutes(cfg); err != nil {
		a.log.Error("keeping previous routes", logx.Err(err))
	}
}

func (a *App) rebuildRoutes(cfg *config.Config) error {
	routes := make(map[string]*pipeline.Route, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		route, err := pipeline.NewRoute(rc, a.gate, a.client, a.limiter, a.log)
		if err != nil {
			return fmt.Errorf("building route %s: %w", rc.Source.ID, err)
		}
		routes[rc.Source.ID] = route
	}

	a.mu.Lock()
	a.routes = routes
	a.mu.Unlock()
	return nil
}

func (a *App) lookupRoute(id string) (*pipeline.Route, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.routes[id]
	return r, ok
}

func (a *App) snapshotRoutes() map[string]*pipeline.Route {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.routes
}
