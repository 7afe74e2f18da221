// Package testutils holds fixtures shared by package tests: in-memory
// module trees and the configuration that points at them.
package testutils

import (
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hcm/internal/config"
)

// WriteFiles writes each path → content pair into fs.
func WriteFiles(t testing.TB, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

// CreateModuleFs returns an in-memory filesystem holding files.
func CreateModuleFs(t testing.TB, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	WriteFiles(t, fs, files)
	return fs
}

// Descriptor renders an hcm-module.yaml. Module dependencies are written
// with the mapping form only when after is non-empty.
func Descriptor(group, project, module string, after ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "group: %s\nproject: %s\n", group, project)
	if len(after) == 0 {
		fmt.Fprintf(&b, "module: %s\n", module)
		return b.String()
	}
	fmt.Fprintf(&b, "module:\n  name: %s\n  after: [%s]\n", module, strings.Join(after, ", "))
	return b.String()
}

// Module lays out one module below root: its descriptor plus config
// sources keyed by path relative to hcm-config.
type Module struct {
	Root       string
	Descriptor string
	Config     map[string]string
	Content    map[string]string
}

// Files flattens the module into the map accepted by WriteFiles.
func (m Module) Files() map[string]string {
	files := map[string]string{path.Join(m.Root, "hcm-module.yaml"): m.Descriptor}
	for name, content := range m.Config {
		files[path.Join(m.Root, "hcm-config", name)] = content
	}
	for name, content := range m.Content {
		files[path.Join(m.Root, "hcm-content", name)] = content
	}
	return files
}

// Merge combines the file maps of several modules.
func Merge(modules ...Module) map[string]string {
	files := make(map[string]string)
	for _, m := range modules {
		for name, content := range m.Files() {
			files[name] = content
		}
	}
	return files
}

// CreateTestConfig returns a configuration scanning paths with the
// default excludes and output format.
func CreateTestConfig(paths ...string) *config.Config {
	return &config.Config{
		Modules: config.ModulesConfig{
			Paths:   paths,
			Exclude: append([]string(nil), config.DefaultExclude...),
		},
		Build: config.BuildConfig{Format: config.DefaultFormat},
		HST:   config.HSTConfig{HostsPath: config.DefaultHostsPath},
		Watch: config.WatchConfig{Debounce: config.DefaultDebounce},
		Log:   config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
	}
}
