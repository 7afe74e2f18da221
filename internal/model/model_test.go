package model

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/hcm/internal/definition"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
)

func newModule(group, project, module string, after ...string) *Module {
	m := NewGroup(group).AddProject(project).AddModule(module, after...)
	m.DescriptorPath = group + "/" + project + "/" + module + "/hcm-module.yaml"
	return m
}

func origin(m *Module, source string) definition.Origin {
	return definition.Origin{Module: m.FullName(), Source: source, Line: 1, Column: 1}
}

func configDef(m *Module, source, path, primaryType string) *definition.ConfigDefinition {
	root := definition.NewRootNode(path, origin(m, source))
	if primaryType != "" {
		root.AddProperty(definition.PrimaryType, definition.TypeName, false,
			[]definition.Value{{Raw: primaryType, Type: definition.TypeName}}, origin(m, source))
	}
	return &definition.ConfigDefinition{Root: root}
}

func fullNames(modules []*Module) []string {
	var names []string
	for _, m := range modules {
		names = append(names, m.FullName())
	}
	return names
}

func TestFullName(t *testing.T) {
	m := newModule("g", "p", "m")
	assert.Equal(t, "g/p/m", m.FullName())
	assert.Equal(t, "p", m.Project().Name())
	assert.Equal(t, "g", m.Project().Group().Name())
}

func TestBuildOrdersGroupsProjectsModules(t *testing.T) {
	b := NewBuilder()

	core := NewGroup("core")
	platform := core.AddProject("platform")
	platform.AddModule("repository")
	platform.AddModule("cms", "repository")
	require.NoError(t, b.Push(core))

	site := NewGroup("site", "core")
	site.AddProject("web").AddModule("a-module")
	require.NoError(t, b.Push(site))

	app := NewGroup("app", "site")
	app.AddProject("main").AddModule("z")
	require.NoError(t, b.Push(app))

	model, err := b.Build(context.Background())
	require.NoError(t, err)

	want := []string{"core/platform/repository", "core/platform/cms", "site/web/a-module", "app/main/z"}
	if diff := cmp.Diff(want, fullNames(model.Modules())); diff != "" {
		t.Errorf("module order mismatch (-want +got):\n%s", diff)
	}
}

func TestPushMergesSameNameGroupsAndProjects(t *testing.T) {
	b := NewBuilder()

	first := NewGroup("g")
	first.AddProject("p").AddModule("a")
	require.NoError(t, b.Push(first))

	second := NewGroup("g", "other")
	second.AddProject("p", "q").AddModule("b")
	require.NoError(t, b.Push(second))

	third := NewGroup("other")
	third.AddProject("x").AddModule("y")
	require.NoError(t, b.Push(third))

	q := NewGroup("g")
	q.AddProject("q").AddModule("c")
	require.NoError(t, b.Push(q))

	model, err := b.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, model.Groups, 2)
	assert.Equal(t, "other", model.Groups[0].Name())
	g := model.Groups[1]
	assert.Equal(t, []string{"other"}, g.After())
	require.Len(t, g.Projects(), 2)
	assert.Equal(t, "q", g.Projects()[0].Name())
	assert.Equal(t, []string{"a", "b"}, []string{g.Projects()[1].Modules()[0].Name(), g.Projects()[1].Modules()[1].Name()})
}

func TestConflictingModule(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.PushModule(newModule("g", "p", "m")))

	dup := newModule("g", "p", "m")
	dup.DescriptorPath = "elsewhere/hcm-module.yaml"
	err := b.PushModule(dup)
	require.Error(t, err)
	assert.True(t, hcmerrors.HasCode(err, hcmerrors.ErrCodeConflictingModule))
	assert.Contains(t, err.Error(), "g/p/m/hcm-module.yaml")
	assert.Contains(t, err.Error(), "elsewhere/hcm-module.yaml")
}

func TestOrderingErrors(t *testing.T) {
	t.Run("missing module dependency", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.PushModule(newModule("g", "p", "m", "nope")))
		_, err := b.Build(context.Background())
		assert.True(t, hcmerrors.HasCode(err, hcmerrors.ErrCodeMissingDependency), "got %v", err)
	})

	t.Run("circular group dependency", func(t *testing.T) {
		b := NewBuilder()
		a := NewGroup("a", "b")
		a.AddProject("p").AddModule("m")
		c := NewGroup("b", "a")
		c.AddProject("p").AddModule("m")
		require.NoError(t, b.Push(a))
		require.NoError(t, b.Push(c))
		_, err := b.Build(context.Background())
		assert.True(t, hcmerrors.HasCode(err, hcmerrors.ErrCodeCircularDependency), "got %v", err)
	})
}

func TestReplaceAndRemove(t *testing.T) {
	b := NewBuilder()
	m := newModule("g", "p", "m")
	m.AddSource("hcm-config/main.yaml", SourceConfig).AddDefinition(configDef(m, "hcm-config/main.yaml", "/a", "nt:unstructured"))
	require.NoError(t, b.PushModule(m))

	updated := newModule("g", "p", "m")
	updated.AddSource("hcm-config/main.yaml", SourceConfig).AddDefinition(configDef(updated, "hcm-config/main.yaml", "/b", "nt:unstructured"))
	require.NoError(t, b.Replace(updated))

	model, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Nil(t, model.ResolveNode("/a"))
	assert.NotNil(t, model.ResolveNode("/b"))

	assert.True(t, b.Remove("g/p/m"))
	assert.False(t, b.Remove("g/p/m"))

	model, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, model.Modules())
	assert.Empty(t, model.Groups)

	err = b.Replace(newModule("x", "y", "z"))
	assert.True(t, hcmerrors.HasCode(err, hcmerrors.ErrCodeUnknownModule))
}

func TestReplaceDropsStaleDependencies(t *testing.T) {
	withProjectAfter := func(module string, projectAfter ...string) *Module {
		m := NewGroup("g").AddProject("p", projectAfter...).AddModule(module)
		m.DescriptorPath = "p/" + module + "/hcm-module.yaml"
		return m
	}
	qModule := func(projectAfter ...string) *Module {
		m := NewGroup("g").AddProject("q", projectAfter...).AddModule("qm")
		m.DescriptorPath = "q/qm/hcm-module.yaml"
		return m
	}

	b := NewBuilder()
	require.NoError(t, b.PushModule(withProjectAfter("m1", "q")))
	require.NoError(t, b.PushModule(withProjectAfter("m2")))
	require.NoError(t, b.PushModule(qModule()))

	require.NoError(t, b.Replace(withProjectAfter("m1")))
	require.NoError(t, b.Replace(qModule("p")))

	incremental, err := b.Build(context.Background())
	require.NoError(t, err)

	fresh := NewBuilder()
	require.NoError(t, fresh.PushModule(withProjectAfter("m1")))
	require.NoError(t, fresh.PushModule(withProjectAfter("m2")))
	require.NoError(t, fresh.PushModule(qModule("p")))
	want, err := fresh.Build(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(fullNames(want.Modules()), fullNames(incremental.Modules())); diff != "" {
		t.Errorf("incremental build differs from a fresh one (-fresh +incremental):\n%s", diff)
	}
	assert.Equal(t, []string{"g/p/m1", "g/p/m2", "g/q/qm"}, fullNames(incremental.Modules()))
}

func TestRemoveDropsGroupDependencies(t *testing.T) {
	b := NewBuilder()
	a1 := NewGroup("a", "b").AddProject("p").AddModule("a1")
	a2 := NewGroup("a").AddProject("p").AddModule("a2")
	other := NewGroup("b", "a").AddProject("x").AddModule("b1")
	require.NoError(t, b.PushModule(a1))
	require.NoError(t, b.PushModule(a2))

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, hcmerrors.HasCode(err, hcmerrors.ErrCodeMissingDependency))

	assert.True(t, b.Remove("a/p/a1"))
	require.NoError(t, b.PushModule(other))

	model, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/p/a2", "b/x/b1"}, fullNames(model.Modules()))
	assert.Empty(t, model.Groups[0].After())
}

func TestBuildMergesConfigInModuleOrder(t *testing.T) {
	b := NewBuilder()

	base := newModule("g", "p", "base")
	base.AddSource("hcm-config/main.yaml", SourceConfig).AddDefinition(configDef(base, "hcm-config/main.yaml", "/site", "nt:unstructured"))

	ext := newModule("g", "p", "ext", "base")
	ext.AddSource("hcm-config/b.yaml", SourceConfig).AddDefinition(configDef(ext, "hcm-config/b.yaml", "/site/child", "nt:unstructured"))
	ext.AddSource("hcm-config/a.yaml", SourceConfig).AddDefinition(configDef(ext, "hcm-config/a.yaml", "/site/first", "nt:unstructured"))

	require.NoError(t, b.PushModule(ext))
	require.NoError(t, b.PushModule(base))

	model, err := b.Build(context.Background())
	require.NoError(t, err)

	site := model.ResolveNode("/site")
	require.NotNil(t, site)
	var names []string
	for _, n := range site.Nodes() {
		names = append(names, n.Name())
	}
	assert.Equal(t, []string{"first", "child"}, names)
	assert.NotNil(t, model.ResolveProperty("/site/jcr:primaryType"))
	assert.Equal(t, "g/p/ext", model.Module("g/p/ext").FullName())
}

func TestBuildTreeErrorCarriesDefinition(t *testing.T) {
	b := NewBuilder()
	m := newModule("g", "p", "m")
	m.AddSource("hcm-config/main.yaml", SourceConfig).AddDefinition(configDef(m, "hcm-config/main.yaml", "/missing/child", "nt:unstructured"))
	require.NoError(t, b.PushModule(m))

	_, err := b.Build(context.Background())
	require.Error(t, err)

	var hcmErr *hcmerrors.HcmError
	require.ErrorAs(t, err, &hcmErr)
	assert.Equal(t, hcmerrors.ErrCodeMissingParent, hcmErr.Code)
	assert.Equal(t, "/missing/child", hcmErr.Context["definition"])
	assert.Equal(t, "g/p/m", hcmErr.Module)
}

func TestNamespacesAndBundles(t *testing.T) {
	tests := []struct {
		name string
		defs func(a, b *Module) (definition.Definition, definition.Definition)
		code string
	}{
		{
			name: "duplicate namespace",
			defs: func(a, b *Module) (definition.Definition, definition.Definition) {
				return &definition.NamespaceDefinition{Prefix: "myns", URI: "http://a", At: origin(a, "x.yaml")},
					&definition.NamespaceDefinition{Prefix: "myns", URI: "http://b", At: origin(b, "y.yaml")}
			},
			code: hcmerrors.ErrCodeDuplicateNamespace,
		},
		{
			name: "duplicate bundle",
			defs: func(a, b *Module) (definition.Definition, definition.Definition) {
				return &definition.WebFileBundleDefinition{Name: "site", At: origin(a, "x.yaml")},
					&definition.WebFileBundleDefinition{Name: "site", At: origin(b, "y.yaml")}
			},
			code: hcmerrors.ErrCodeDuplicateWebFileBundle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			m1 := newModule("g", "p", "a")
			m2 := newModule("g", "p", "b")
			d1, d2 := tt.defs(m1, m2)
			m1.AddSource("x.yaml", SourceConfig).AddDefinition(d1)
			m2.AddSource("y.yaml", SourceConfig).AddDefinition(d2)
			require.NoError(t, b.PushModule(m1))
			require.NoError(t, b.PushModule(m2))

			_, err := b.Build(context.Background())
			assert.True(t, hcmerrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	b := NewBuilder()
	m := newModule("g", "p", "m")
	s := m.AddSource("main.yaml", SourceConfig)
	s.AddDefinition(&definition.NamespaceDefinition{Prefix: "myns", URI: "http://a", At: origin(m, "main.yaml")})
	s.AddDefinition(&definition.WebFileBundleDefinition{Name: "site", At: origin(m, "main.yaml")})
	require.NoError(t, b.PushModule(m))
	model, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, model.Namespaces, 1)
	assert.Len(t, model.WebFileBundles, 1)
}

func TestContentDefinitions(t *testing.T) {
	content := func(m *Module, path string) *definition.ContentDefinition {
		return &definition.ContentDefinition{Root: definition.NewRootNode(path, origin(m, "hcm-content/c.yaml"))}
	}

	b := NewBuilder()
	first := newModule("g", "p", "first")
	second := newModule("g", "p", "second", "first")

	cs := second.AddSource("hcm-content/c.yaml", SourceContent)
	cs.AddDefinition(content(second, "/content/documents/b"))
	cs.AddDefinition(content(second, "/content"))

	cf := first.AddSource("hcm-content/c.yaml", SourceContent)
	cf.AddDefinition(content(first, "/content/documents/z/deep"))
	cf.AddDefinition(content(first, "/content/documents/a"))

	require.NoError(t, b.PushModule(second))
	require.NoError(t, b.PushModule(first))

	model, err := b.Build(context.Background())
	require.NoError(t, err)

	var paths []string
	for _, d := range model.ContentDefinitions {
		paths = append(paths, d.Root.Path)
	}
	assert.Equal(t, []string{
		"/content/documents/a",
		"/content/documents/z/deep",
		"/content",
		"/content/documents/b",
	}, paths)

	dup := NewBuilder()
	m := newModule("g", "p", "m")
	src := m.AddSource("hcm-content/c.yaml", SourceContent)
	src.AddDefinition(content(m, "/content"))
	src.AddDefinition(content(m, "/content"))
	require.NoError(t, dup.PushModule(m))
	_, err = dup.Build(context.Background())
	assert.True(t, hcmerrors.HasCode(err, hcmerrors.ErrCodeDuplicateContentRoot), "got %v", err)
}

func TestBuildCollectsWarnings(t *testing.T) {
	b := NewBuilder()
	m := newModule("g", "p", "m")
	src := m.AddSource("hcm-config/main.yaml", SourceConfig)
	src.AddDefinition(configDef(m, "hcm-config/main.yaml", "/a", "nt:unstructured"))
	src.AddDefinition(configDef(m, "hcm-config/main.yaml", "/a", "nt:unstructured"))
	require.NoError(t, b.PushModule(m))

	model, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, model.Warnings, 1)
	assert.Equal(t, "g/p/m", model.Warnings[0].Origin.Module)
}
