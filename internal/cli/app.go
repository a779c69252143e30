package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/lanatus/internal/account"
	"github.com/roach88/lanatus/internal/config"
	"github.com/roach88/lanatus/internal/engine"
	"github.com/roach88/lanatus/internal/idcache"
	"github.com/roach88/lanatus/internal/store"
)

// app is the wiring shared by the commands that touch the database.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *store.Store
	engine   *engine.Engine
	accounts *account.Repository
	// registry holds the engine and cache counters of this process.
	registry *prometheus.Registry
}

// loadConfig reads the config file and applies the flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.Database != "" {
		cfg.Database.DSN = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// newLogger builds the slog logger described by cfg, writing to w.
func newLogger(cfg config.Log, w io.Writer) *slog.Logger {
	// validated by config.Validate
	level, _ := cfg.SlogLevel()

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// openApp loads the configuration, configures logging and opens the
// database. The caller must call close.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(log)

	log.Debug("opening database", "driver", cfg.Database.Driver)
	st, err := store.Open(ctx, cfg.Database.StoreOptions(log))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	engineMetrics := engine.NewMetrics()
	cacheMetrics := idcache.NewMetrics("accounts")

	registry := prometheus.NewRegistry()
	registry.MustRegister(engineMetrics, cacheMetrics)

	e := engine.New(st, engine.WithMetrics(engineMetrics))

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		engine:   e,
		accounts: account.NewRepository(e, idcache.WithMetrics[uuid.UUID, *account.Snapshot](cacheMetrics)),
		registry: registry,
	}, nil
}

// serveRegistry returns the collectors worth scraping from a long-running
// serve process: pool and runtime metrics.
func (a *app) serveRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		a.store,
	)
	return r
}

func (a *app) close() {
	a.logCounters()
	if err := a.store.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}

// logCounters logs the non-zero engine and cache counters at debug level.
func (a *app) logCounters() {
	if !a.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	families, err := a.registry.Gather()
	if err != nil {
		a.log.Debug("failed to gather counters", "error", err)
		return
	}

	var attrs []any
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if v := m.GetCounter().GetValue(); v != 0 {
				attrs = append(attrs, mf.GetName(), v)
			}
		}
	}
	a.log.Debug("session counters", attrs...)
}
