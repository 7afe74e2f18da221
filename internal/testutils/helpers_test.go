package testutils

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hcm/internal/config"
)

func TestDescriptor(t *testing.T) {
	assert.Equal(t, "group: g\nproject: p\nmodule: m\n", Descriptor("g", "p", "m"))
	assert.Equal(t, "group: g\nproject: p\nmodule:\n  name: m\n  after: [a, b]\n", Descriptor("g", "p", "m", "a", "b"))
}

func TestModuleFiles(t *testing.T) {
	m := Module{
		Root:       "/repo/m",
		Descriptor: Descriptor("g", "p", "m"),
		Config:     map[string]string{"main.yaml": "definitions: {}\n"},
		Content:    map[string]string{"docs/a.yaml": "/content/a: {}\n"},
	}

	assert.Equal(t, map[string]string{
		"/repo/m/hcm-module.yaml":         "group: g\nproject: p\nmodule: m\n",
		"/repo/m/hcm-config/main.yaml":    "definitions: {}\n",
		"/repo/m/hcm-content/docs/a.yaml": "/content/a: {}\n",
	}, m.Files())
}

func TestCreateModuleFs(t *testing.T) {
	a := Module{Root: "/r/a", Descriptor: Descriptor("g", "p", "a")}
	b := Module{Root: "/r/b", Descriptor: Descriptor("g", "p", "b", "a")}

	fs := CreateModuleFs(t, Merge(a, b))

	data, err := afero.ReadFile(fs, "/r/b/hcm-module.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "after: [a]")

	ok, err := afero.Exists(fs, "/r/a/hcm-module.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateTestConfig(t *testing.T) {
	cfg := CreateTestConfig("/repo")

	assert.Equal(t, []string{"/repo"}, cfg.Modules.Paths)
	assert.Equal(t, config.DefaultExclude, cfg.Modules.Exclude)
	assert.Equal(t, config.DefaultFormat, cfg.Build.Format)
	assert.Equal(t, config.DefaultHostsPath, cfg.HST.HostsPath)
	assert.NoError(t, config.Validate(cfg))

	cfg.Modules.Exclude[0] = "changed"
	assert.NotEqual(t, "changed", config.DefaultExclude[0])
}
