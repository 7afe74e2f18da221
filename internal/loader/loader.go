// Package loader discovers configuration modules on a filesystem and
// parses their descriptors and YAML sources into model modules.
package loader

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/hcm/internal/definition"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/logging"
	"github.com/conneroisu/hcm/internal/model"
	"github.com/conneroisu/hcm/internal/registry"
)

// Source patterns, relative to a module root.
const (
	ConfigPattern  = "hcm-config/**/*.yaml"
	ContentPattern = "hcm-content/**/*.yaml"
)

// Loader reads modules from a filesystem.
type Loader struct {
	fs      afero.Fs
	logger  logging.Logger
	workers int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loader) { l.logger = logger.WithComponent("loader") }
}

// WithWorkers limits how many sources are parsed at once.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// New creates a loader over fs.
func New(fs afero.Fs, opts ...Option) *Loader {
	l := &Loader{
		fs:      fs,
		logger:  logging.NewNopLogger(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discover returns the descriptor paths found below roots, sorted.
// Paths relative to a root that match an exclude pattern are skipped, as
// are hidden directories.
func (l *Loader) Discover(roots, exclude []string) ([]string, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, hcmerrors.NewConfigError(hcmerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid exclude pattern '%s'", pattern))
		}
	}

	seen := make(map[string]bool)
	var found []string
	for _, root := range roots {
		err := afero.Walk(l.fs, root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)

			if info.IsDir() {
				if rel != "." && strings.HasPrefix(info.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if info.Name() != DescriptorName || excluded(rel, exclude) {
				return nil
			}
			if !seen[p] {
				seen[p] = true
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, hcmerrors.NewIOError(hcmerrors.ErrCodeFileNotFound,
				fmt.Sprintf("failed to scan module path '%s'", root), err)
		}
	}

	sort.Strings(found)
	return found, nil
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// LoadModule reads a descriptor and all sources of its module. Sources are
// parsed concurrently and kept in path order.
func (l *Loader) LoadModule(ctx context.Context, descriptorPath string) (*model.Module, error) {
	data, err := afero.ReadFile(l.fs, descriptorPath)
	if err != nil {
		return nil, hcmerrors.NewIOError(hcmerrors.ErrCodeFileNotFound,
			fmt.Sprintf("failed to read module descriptor '%s'", descriptorPath), err)
	}

	module, err := parseDescriptor(data, descriptorPath)
	if err != nil {
		return nil, err
	}
	module.Root = filepath.Dir(descriptorPath)

	paths, err := l.sourcePaths(module.Root)
	if err != nil {
		return nil, err
	}

	sources := make([]*model.Source, len(paths))
	for i, sp := range paths {
		sources[i] = module.AddSource(sp.path, sp.kind)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, source := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return l.parseSource(module, source)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Debug(ctx, "Loaded module",
		"module", module.FullName(),
		"descriptor", descriptorPath,
		"sources", len(sources))
	return module, nil
}

type sourcePath struct {
	path string
	kind model.SourceKind
}

func (l *Loader) sourcePaths(moduleRoot string) ([]sourcePath, error) {
	var out []sourcePath
	err := afero.Walk(l.fs, moduleRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(moduleRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if ok, _ := doublestar.Match(ConfigPattern, rel); ok {
			out = append(out, sourcePath{path: rel, kind: model.SourceConfig})
		} else if ok, _ := doublestar.Match(ContentPattern, rel); ok {
			out = append(out, sourcePath{path: rel, kind: model.SourceContent})
		}
		return nil
	})
	if err != nil {
		return nil, hcmerrors.NewIOError(hcmerrors.ErrCodeFileNotFound,
			fmt.Sprintf("failed to scan module '%s'", moduleRoot), err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

func (l *Loader) parseSource(module *model.Module, source *model.Source) error {
	full := path.Join(filepath.ToSlash(module.Root), source.Path)
	data, err := afero.ReadFile(l.fs, full)
	if err != nil {
		return hcmerrors.NewIOError(hcmerrors.ErrCodeFileNotFound,
			fmt.Sprintf("failed to read source '%s'", full), err).
			WithModule(module.FullName())
	}

	p := &sourceParser{
		fs:         l.fs,
		module:     module.FullName(),
		moduleRoot: filepath.ToSlash(module.Root),
		sourcePath: source.Path,
	}

	var defs []definition.Definition
	switch source.Kind {
	case model.SourceContent:
		defs, err = p.parseContent(data)
	default:
		defs, err = p.parseConfig(data)
	}
	if err != nil {
		return err
	}
	source.Definitions = defs
	return nil
}

// LoadModules discovers modules below roots, loads each of them and
// registers it. Every failing module is reported; the returned collector
// holds one diagnostic per failure.
func (l *Loader) LoadModules(ctx context.Context, reg *registry.ModuleRegistry, roots, exclude []string) (*hcmerrors.ErrorCollector, error) {
	op := logging.StartOperation(l.logger, "loader.load_modules")

	descriptors, err := l.Discover(roots, exclude)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	collector := hcmerrors.NewErrorCollector()
	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			op.EndWithError(ctx, err)
			return collector, err
		}

		module, err := l.LoadModule(ctx, d)
		if err != nil {
			l.logger.Warn(ctx, err, "Failed to load module", "descriptor", d)
			collector.AddError(err)
			continue
		}

		if existing, ok := reg.Get(module.FullName()); ok && existing.DescriptorPath != module.DescriptorPath {
			collector.AddError(hcmerrors.NewModelError(hcmerrors.ErrCodeConflictingModule,
				fmt.Sprintf("module '%s' is defined in both '%s' and '%s'",
					module.FullName(), existing.DescriptorPath, module.DescriptorPath)).
				WithModule(module.FullName()))
			continue
		}
		reg.Register(module)
	}

	op.End(ctx, "descriptors", len(descriptors), "errors", collector.Count(hcmerrors.ErrorSeverityError))
	return collector, nil
}
