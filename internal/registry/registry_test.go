package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hcm/internal/model"
)

func testModule(group, project, name, root string) *model.Module {
	m := model.NewGroup(group).AddProject(project).AddModule(name)
	m.Root = root
	m.DescriptorPath = root + "/hcm-module.yaml"
	return m
}

func TestNewModuleRegistry(t *testing.T) {
	registry := NewModuleRegistry()

	assert.NotNil(t, registry)
	assert.Equal(t, 0, registry.Count())
	assert.Empty(t, registry.GetAll())
}

func TestModuleRegistry_RegisterAndGet(t *testing.T) {
	registry := NewModuleRegistry()
	module := testModule("g", "p", "m", "/repo/m")

	registry.Register(module)

	retrieved, exists := registry.Get("g/p/m")
	assert.True(t, exists)
	assert.Same(t, module, retrieved)
	assert.Equal(t, 1, registry.Count())

	_, exists = registry.Get("g/p/other")
	assert.False(t, exists)
}

func TestModuleRegistry_GetAllSorted(t *testing.T) {
	registry := NewModuleRegistry()
	registry.Register(testModule("z", "p", "m", "/z"))
	registry.Register(testModule("a", "p", "m", "/a"))
	registry.Register(testModule("a", "p", "b", "/b"))

	var names []string
	for _, m := range registry.GetAll() {
		names = append(names, m.FullName())
	}
	assert.Equal(t, []string{"a/p/b", "a/p/m", "z/p/m"}, names)
}

func TestModuleRegistry_FindByPath(t *testing.T) {
	registry := NewModuleRegistry()
	outer := testModule("g", "p", "outer", "/repo")
	inner := testModule("g", "p", "inner", "/repo/nested")
	registry.Register(outer)
	registry.Register(inner)

	tests := []struct {
		path string
		want *model.Module
	}{
		{"/repo/hcm-config/main.yaml", outer},
		{"/repo/nested/hcm-config/main.yaml", inner},
		{"/repo/nested", inner},
		{"/repository/other.yaml", nil},
		{"/elsewhere/x.yaml", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := registry.FindByPath(tt.path)
			assert.Equal(t, tt.want != nil, ok)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestModuleRegistry_Events(t *testing.T) {
	registry := NewModuleRegistry()
	events := registry.Watch()

	module := testModule("g", "p", "m", "/repo")
	registry.Register(module)
	registry.Register(module)
	registry.Remove("g/p/m")
	registry.Remove("g/p/m")

	want := []EventType{EventTypeAdded, EventTypeUpdated, EventTypeRemoved}
	for _, w := range want {
		select {
		case event := <-events:
			assert.Equal(t, w, event.Type)
			assert.Same(t, module, event.Module)
			assert.False(t, event.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", w)
		}
	}

	select {
	case event := <-events:
		t.Fatalf("unexpected event %s", event.Type)
	default:
	}

	registry.UnWatch(events)
	_, open := <-events
	assert.False(t, open)
}

func TestModuleRegistry_FullWatcherDropsEvents(t *testing.T) {
	registry := NewModuleRegistry()
	events := registry.Watch()

	for i := 0; i < 150; i++ {
		registry.Register(testModule("g", "p", "m", "/repo"))
	}
	assert.Len(t, events, 100)
}

func TestModuleRegistry_Groups(t *testing.T) {
	registry := NewModuleRegistry()

	a := model.NewGroup("core", "base").AddProject("platform", "shared").AddModule("repo")
	a.Root = "/core/repo"
	b := model.NewGroup("core").AddProject("platform").AddModule("cms", "repo")
	b.Root = "/core/cms"
	c := model.NewGroup("site").AddProject("web").AddModule("app")
	c.Root = "/site/app"

	registry.Register(a)
	registry.Register(b)
	registry.Register(c)

	groups := registry.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "core", groups[0].Name())
	assert.Equal(t, []string{"base"}, groups[0].After())

	platform := groups[0].Project("platform")
	require.NotNil(t, platform)
	assert.Equal(t, []string{"shared"}, platform.After())
	require.Len(t, platform.Modules(), 2)
	assert.Equal(t, "cms", platform.Modules()[0].Name())
	assert.Equal(t, []string{"repo"}, platform.Modules()[0].After())
	assert.Equal(t, "/core/cms", platform.Modules()[0].Root)
	assert.Equal(t, "site/web/app", groups[1].Projects()[0].Modules()[0].FullName())

	groupAfter, projectAfter := platform.Modules()[0].Declared()
	assert.Empty(t, groupAfter)
	assert.Empty(t, projectAfter)
	groupAfter, projectAfter = platform.Modules()[1].Declared()
	assert.Equal(t, []string{"base"}, groupAfter)
	assert.Equal(t, []string{"shared"}, projectAfter)
}

func TestModuleRegistry_GroupsRemoveFromBuilder(t *testing.T) {
	registry := NewModuleRegistry()
	a := model.NewGroup("core", "base").AddProject("platform", "shared").AddModule("repo")
	b := model.NewGroup("core").AddProject("platform").AddModule("cms")
	registry.Register(a)
	registry.Register(b)

	builder := model.NewBuilder()
	for _, g := range registry.Groups() {
		require.NoError(t, builder.Push(g))
	}
	require.True(t, builder.Remove("core/platform/repo"))

	m, err := builder.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Groups, 1)
	assert.Empty(t, m.Groups[0].After())
	assert.Empty(t, m.Groups[0].Projects()[0].After())
}

func TestModuleRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewModuleRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := testModule("g", "p", string(rune('a'+i)), "/repo")
			registry.Register(m)
			registry.Get(m.FullName())
			registry.GetAll()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, registry.Count())
}
