package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/hcm/internal/config"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/loader"
	"github.com/conneroisu/hcm/internal/logging"
	"github.com/conneroisu/hcm/internal/model"
	"github.com/conneroisu/hcm/internal/registry"
	"github.com/conneroisu/hcm/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the configuration model whenever a module changes",
	Long: `Load and merge all modules, then watch the module paths. When a source
or descriptor changes, only the touched modules are reloaded before the
model is rebuilt. New modules are picked up and deleted ones dropped.

Examples:
  hcm watch                      # Report each rebuild
  hcm watch --print -f text      # Print the tree after each rebuild
  hcm watch --debounce 1s        # Wait longer for changes to settle`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchPrint bool

func init() {
	rootCmd.AddCommand(watchCmd)

	flags := watchCmd.Flags()
	flags.Duration("debounce", config.DefaultDebounce, "quiet period before a batch of changes is processed")
	flags.StringP("format", "f", config.DefaultFormat, "output format for --print (yaml, json, text)")
	flags.BoolVar(&watchPrint, "print", false, "print the tree after every successful rebuild")

	AddFlagValidation(flags, "format", enumValidator(config.Formats))
	bindFlag(config.KeyWatchDebounce, flags.Lookup("debounce"))
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if !cmd.Flags().Changed("format") {
		format = ws.cfg.Build.Format
	}

	r := &reloader{
		ws:     ws,
		fs:     appFs,
		out:    cmd.ErrOrStderr(),
		errors: hcmerrors.NewErrorHandler(ws.logger),
	}
	if watchPrint {
		r.onBuild = func(m *model.ConfigurationModel) error {
			return render(cmd.OutOrStdout(), m.ConfigRoot, format, false)
		}
	}

	diagnostics, err := ws.load(cmd.Context())
	if err != nil {
		return err
	}
	printDiagnostics(cmd.ErrOrStderr(), diagnostics.Diagnostics())
	r.rebuild(cmd.Context())

	events := ws.registry.Watch()
	defer ws.registry.UnWatch(events)
	go logModuleEvents(cmd.Context(), events, ws.logger)

	fw, err := watcher.NewFileWatcher(ws.cfg.Watch.Debounce, ws.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(watcher.YAMLFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddHandler(r.handle)

	for _, path := range ws.cfg.Modules.Paths {
		if err := fw.AddRecursive(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}
	if err := fw.Start(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d module path(s), press Ctrl+C to stop\n", len(ws.cfg.Modules.Paths))
	<-cmd.Context().Done()
	return nil
}

// reloader keeps a workspace in step with file changes.
type reloader struct {
	ws      *workspace
	fs      afero.Fs
	out     io.Writer
	errors  *hcmerrors.ErrorHandler
	onBuild func(*model.ConfigurationModel) error
}

func (r *reloader) handle(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, err := range r.apply(ctx, events) {
		r.errors.Handle(ctx, err)
	}
	r.rebuild(ctx)
	return nil
}

// apply reloads, adds or drops the modules touched by events. A module
// that fails to reload keeps its previous version.
func (r *reloader) apply(ctx context.Context, events []watcher.ChangeEvent) []error {
	var errs []error
	for _, desc := range r.touchedDescriptors(events) {
		if err := r.reload(ctx, desc); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// touchedDescriptors maps changed files to the descriptors of their
// modules, sorted and without duplicates. An overflow event touches every
// registered and discoverable module.
func (r *reloader) touchedDescriptors(events []watcher.ChangeEvent) []string {
	seen := make(map[string]bool)
	for _, e := range events {
		if e.Type == watcher.EventTypeOverflow {
			r.allDescriptors(seen)
			continue
		}
		path := filepath.Clean(e.Path)
		if filepath.Base(path) == loader.DescriptorName {
			seen[path] = true
			continue
		}
		if m, ok := r.ws.registry.FindByPath(path); ok {
			seen[filepath.Clean(m.DescriptorPath)] = true
		} else if d := r.enclosingDescriptor(path); d != "" {
			seen[d] = true
		}
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (r *reloader) allDescriptors(seen map[string]bool) {
	for _, m := range r.ws.registry.GetAll() {
		seen[filepath.Clean(m.DescriptorPath)] = true
	}
	found, err := r.ws.loader.Discover(r.ws.cfg.Modules.Paths, r.ws.cfg.Modules.Exclude)
	if err != nil {
		r.ws.logger.Warn(context.Background(), err, "Rescan failed to discover modules")
		return
	}
	for _, d := range found {
		seen[filepath.Clean(d)] = true
	}
}

// enclosingDescriptor finds the descriptor of the nearest directory above
// path that has one. It covers modules that failed to load earlier.
func (r *reloader) enclosingDescriptor(path string) string {
	for dir := filepath.Dir(path); ; {
		candidate := filepath.Join(dir, loader.DescriptorName)
		if ok, _ := afero.Exists(r.fs, candidate); ok {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (r *reloader) registered(descriptor string) *model.Module {
	for _, m := range r.ws.registry.GetAll() {
		if filepath.Clean(m.DescriptorPath) == descriptor {
			return m
		}
	}
	return nil
}

func (r *reloader) reload(ctx context.Context, descriptor string) error {
	existing := r.registered(descriptor)

	exists, err := afero.Exists(r.fs, descriptor)
	if err != nil {
		return err
	}
	if !exists {
		if existing != nil {
			r.drop(existing)
		}
		return nil
	}

	if existing == nil && !r.discoverable(descriptor) {
		return nil
	}

	m, err := r.ws.loader.LoadModule(ctx, descriptor)
	if err != nil {
		return err
	}

	if other, ok := r.ws.registry.Get(m.FullName()); ok && other != existing {
		return fmt.Errorf("module '%s' is defined in both '%s' and '%s'",
			m.FullName(), other.DescriptorPath, m.DescriptorPath)
	}

	if existing != nil && existing.FullName() == m.FullName() {
		if err := r.ws.builder.Replace(m); err != nil {
			return err
		}
		r.ws.registry.Register(m)
		return nil
	}

	if existing != nil {
		r.drop(existing)
	}
	if err := r.ws.builder.PushModule(m); err != nil {
		return err
	}
	r.ws.registry.Register(m)
	return nil
}

func (r *reloader) drop(m *model.Module) {
	r.ws.builder.Remove(m.FullName())
	r.ws.registry.Remove(m.FullName())
}

// discoverable reports whether a new descriptor lies below the module
// paths and is not excluded.
func (r *reloader) discoverable(descriptor string) bool {
	found, err := r.ws.loader.Discover(r.ws.cfg.Modules.Paths, r.ws.cfg.Modules.Exclude)
	if err != nil {
		return false
	}
	for _, d := range found {
		if filepath.Clean(d) == descriptor {
			return true
		}
	}
	return false
}

// logModuleEvents logs registry changes until events is closed or ctx
// is done.
func logModuleEvents(ctx context.Context, events <-chan registry.ModuleEvent, logger logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			logger.Info(ctx, "Module "+e.Type.String(), "module", e.Module.FullName())
		}
	}
}

func (r *reloader) rebuild(ctx context.Context) {
	m, err := r.ws.builder.Build(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "%s %v\n", errorColor.Sprint("✗ build failed:"), err)
		return
	}
	printWarnings(r.out, m.Warnings)
	fmt.Fprintln(r.out, successColor.Sprintf("✓ merged %d module(s), %d warning(s)", len(m.Modules()), len(m.Warnings)))

	if r.onBuild != nil {
		if err := r.onBuild(m); err != nil {
			fmt.Fprintf(r.out, "%s %v\n", errorColor.Sprint("error:"), err)
		}
	}
}
