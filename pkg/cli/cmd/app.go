package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rzbill/placer/internal/config"
	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/confpre"
	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/metrics"
	"github.com/rzbill/placer/pkg/placement"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/store/repos"
)

// app holds everything a command needs. Parts are opened on first use so
// that commands like version never touch the data directory.
type app struct {
	cfgFile string
	verbose bool
	output  string

	cfg     *config.Config
	logger  log.Logger
	catalog *catalog.Catalog
	store   store.Store
	repos   *repos.Set
	metrics *metrics.Recorder
	conf    *confpre.Provider
	service *placement.Service
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return nil, err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := log.ApplyConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	log.SetDefaultLogger(logger)

	a.cfg = cfg
	a.logger = logger.WithComponent("cli")
	return cfg, nil
}

// loadCatalog loads the manifest named in the configuration, or the built-in one.
func (a *app) loadCatalog() (*catalog.Catalog, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(os.ExpandEnv(cfg.Catalog.Manifest))
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	a.catalog = cat
	return cat, nil
}

// open brings up the store and the placement service.
func (a *app) open() error {
	if a.service != nil {
		return nil
	}
	cfg, err := a.config()
	if err != nil {
		return err
	}
	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}

	opts := cfg.StoreOptions(log.GetDefaultLogger())
	if opts.Backend != store.BackendMemory {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	st, err := store.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open %s store at %s: %w", opts.Backend, opts.Path, err)
	}

	recorder, err := metrics.NewRecorder()
	if err != nil {
		_ = st.Close()
		return err
	}

	a.store = st
	a.repos = repos.New(st)
	a.metrics = recorder
	a.conf = confpre.NewProvider(cat, a.repos.Properties, log.GetDefaultLogger())
	a.service = placement.NewService(cat, a.repos, a.conf, placement.Options{
		TransactionTimeout:   cfg.Placement.TransactionTimeout,
		AllowReselectRemoved: cfg.Placement.AllowReselectRemoved,
		Logger:               log.GetDefaultLogger(),
		Metrics:              recorder,
	})
	a.logger.Debug("Opened placement store",
		log.Str("backend", string(opts.Backend)),
		log.Str("path", opts.Path),
		log.Str("catalog_version", cat.Version()))
	return nil
}

// close flushes metrics and releases the store.
func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	if path := a.cfg.Metrics.Textfile; path != "" {
		path = os.ExpandEnv(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if err := a.metrics.WriteTextfile(path); err != nil {
				a.logger.Warn("Failed to write metrics textfile", log.Str("path", path), log.Err(err))
			}
		}
	}
	err := a.store.Close()
	a.store, a.service = nil, nil
	return err
}

// svc opens the app and returns the placement service.
func (a *app) svc(cmd *cobra.Command) (*placement.Service, context.Context, error) {
	if err := a.open(); err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return a.service, ctx, nil
}
