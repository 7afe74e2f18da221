package version

import (
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2024-05-06T07:08:09Z"},
		},
	}

	info := Info{Version: "dev"}
	fillFromBuildInfo(&info, bi)
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.True(t, info.Dirty)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), info.BuildTime)

	linked := Info{Version: "v2.0.0", GitCommit: "fedcba9876"}
	fillFromBuildInfo(&linked, bi)
	assert.Equal(t, "v2.0.0", linked.Version, "linker values win")
	assert.Equal(t, "fedcba9876", linked.GitCommit)

	devel := Info{Version: "dev"}
	fillFromBuildInfo(&devel, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", devel.Version)
}

func TestShort(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		expected string
	}{
		{"no commit", Info{Version: "dev"}, "dev"},
		{"short commit", Info{Version: "dev", GitCommit: "abc"}, "dev"},
		{"commit", Info{Version: "v1.0.0", GitCommit: "0123456789"}, "v1.0.0 (0123456)"},
		{"dirty", Info{Version: "v1.0.0", GitCommit: "0123456789", Dirty: true}, "v1.0.0 (0123456-dirty)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.info.Short())
		})
	}
}

func TestString(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		GitCommit: "0123456789",
		BuildTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}
	assert.Equal(t, "Version: v1.0.0\nCommit: 0123456789\nBuilt: 2024-01-02T03:04:05Z\nGo: go1.24.4\nPlatform: linux/amd64", info.String())

	assert.Equal(t, "Version: dev\nGo: go1.24.4\nPlatform: linux/amd64",
		Info{Version: "dev", GoVersion: "go1.24.4", Platform: "linux/amd64"}.String())
}
