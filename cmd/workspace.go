package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/afero"

	"github.com/conneroisu/hcm/internal/config"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/loader"
	"github.com/conneroisu/hcm/internal/logging"
	"github.com/conneroisu/hcm/internal/model"
	"github.com/conneroisu/hcm/internal/registry"
)

// appFs is the filesystem modules are read from.
var appFs afero.Fs = afero.NewOsFs()

// workspace ties a loader, a module registry and a model builder together
// for one command invocation.
type workspace struct {
	cfg      *config.Config
	logger   logging.Logger
	loader   *loader.Loader
	registry *registry.ModuleRegistry
	builder  *model.Builder
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: w,
	})
}

func newWorkspace(cfg *config.Config, fs afero.Fs, logger logging.Logger) *workspace {
	return &workspace{
		cfg:    cfg,
		logger: logger,
		loader: loader.New(fs,
			loader.WithLogger(logger),
			loader.WithWorkers(runtime.GOMAXPROCS(0))),
		registry: registry.NewModuleRegistry(),
		builder:  model.NewBuilder(model.WithLogger(logger)),
	}
}

// openWorkspace loads the configuration and returns a workspace logging
// to stderr.
func openWorkspace() (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newWorkspace(cfg, appFs, newLogger(cfg, os.Stderr)), nil
}

// load discovers and registers the modules below roots, falling back to
// the configured module paths, and pushes them into the builder. Modules
// that fail to load are reported in the returned collector.
func (w *workspace) load(ctx context.Context, roots ...string) (*hcmerrors.ErrorCollector, error) {
	if len(roots) == 0 {
		roots = w.cfg.Modules.Paths
	}
	diagnostics, err := w.loader.LoadModules(ctx, w.registry, roots, w.cfg.Modules.Exclude)
	if err != nil {
		return diagnostics, fmt.Errorf("failed to load modules: %w", err)
	}
	for _, g := range w.registry.Groups() {
		if err := w.builder.Push(g); err != nil {
			return diagnostics, err
		}
	}
	return diagnostics, nil
}

// loadModel loads the modules and builds the model. Any module that failed
// to load fails the whole operation after its diagnostics are printed.
func (w *workspace) loadModel(ctx context.Context, stderr io.Writer, roots ...string) (*model.ConfigurationModel, error) {
	diagnostics, err := w.load(ctx, roots...)
	if diagnostics != nil && diagnostics.HasErrors() {
		printDiagnostics(stderr, diagnostics.Diagnostics())
		return nil, fmt.Errorf("%d module(s) failed to load", diagnostics.Count(hcmerrors.ErrorSeverityError))
	}
	if err != nil {
		return nil, err
	}

	m, err := w.builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build configuration model: %w", err)
	}
	return m, nil
}
