package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/hcm/internal/definition"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/logging"
	"github.com/conneroisu/hcm/internal/orderable"
	"github.com/conneroisu/hcm/internal/tree"
)

// Builder collects modules and builds a ConfigurationModel from them.
// Pushed groups are merged by name; the builder never modifies them.
type Builder struct {
	groups  []*Group
	modules map[string]*Module
	logger  logging.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used while building.
func WithLogger(logger logging.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger.WithComponent("model") }
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		modules: make(map[string]*Module),
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Push merges a group, its projects and modules into the builder. The
// after lists of merged groups and projects are the union of what their
// modules declare.
func (b *Builder) Push(g *Group) error {
	b.group(g.name).AddAfter(g.after...)
	for _, p := range g.projects {
		for _, m := range p.modules {
			if err := b.pushModule(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// PushModule merges a single module along with its project and group.
func (b *Builder) PushModule(m *Module) error {
	return b.pushModule(m)
}

// Replace swaps a previously pushed module for a new version with the
// same full name.
func (b *Builder) Replace(m *Module) error {
	if _, ok := b.modules[m.FullName()]; !ok {
		return hcmerrors.NewModelError(hcmerrors.ErrCodeUnknownModule,
			fmt.Sprintf("cannot replace module '%s': it was never pushed", m.FullName()))
	}
	b.Remove(m.FullName())
	return b.pushModule(m)
}

// Remove drops a module along with the group and project dependencies
// it declared. Projects and groups left without modules are dropped as
// well. It reports whether the module was present.
func (b *Builder) Remove(fullName string) bool {
	merged, ok := b.modules[fullName]
	if !ok {
		return false
	}
	delete(b.modules, fullName)

	project := merged.project
	group := project.group
	project.modules = removeModule(project.modules, merged)
	if len(project.modules) == 0 {
		for i, p := range group.projects {
			if p == project {
				group.projects = append(group.projects[:i], group.projects[i+1:]...)
				break
			}
		}
	}
	if len(group.projects) > 0 {
		recomputeAfter(group)
		return true
	}

	for i, g := range b.groups {
		if g == group {
			b.groups = append(b.groups[:i], b.groups[i+1:]...)
			break
		}
	}
	return true
}

func (b *Builder) pushModule(m *Module) error {
	src := m.project
	group := b.group(src.group.name)
	project := group.Project(src.name)
	if project == nil {
		project = group.AddProject(src.name)
	} else if existing := project.Module(m.name); existing != nil {
		return hcmerrors.NewModelError(hcmerrors.ErrCodeConflictingModule,
			fmt.Sprintf("module '%s' is defined in both '%s' and '%s'",
				m.FullName(), existing.DescriptorPath, m.DescriptorPath)).
			WithModule(m.FullName())
	}

	groupAfter, projectAfter := m.Declared()
	group.AddAfter(groupAfter...)
	project.AddAfter(projectAfter...)

	merged := *m
	merged.SetDeclared(groupAfter, projectAfter)
	merged.project = project
	merged.after = append([]string(nil), m.after...)
	project.modules = append(project.modules, &merged)
	b.modules[merged.FullName()] = &merged
	return nil
}

func (b *Builder) group(name string) *Group {
	for _, g := range b.groups {
		if g.name == name {
			return g
		}
	}
	g := NewGroup(name)
	b.groups = append(b.groups, g)
	return g
}

// Build orders the pushed modules and merges their definitions.
func (b *Builder) Build(ctx context.Context) (*ConfigurationModel, error) {
	op := logging.StartOperation(b.logger, "model.build")

	groups, err := b.sortAll()
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	model := &ConfigurationModel{Groups: groups}
	treeBuilder := tree.NewBuilder()
	namespaces := make(map[string]*definition.NamespaceDefinition)
	bundles := make(map[string]*definition.WebFileBundleDefinition)
	contentRoots := make(map[string]*definition.ContentDefinition)
	moduleIndex := make(map[string]int)

	for i, m := range model.Modules() {
		moduleIndex[m.FullName()] = i
		b.logger.Debug(ctx, "Merging module", "module", m.FullName(), "sources", len(m.Sources))

		for _, source := range m.SortedSources() {
			for _, def := range source.Definitions {
				switch d := def.(type) {
				case *definition.NamespaceDefinition:
					if prev, ok := namespaces[d.Prefix]; ok {
						return nil, b.fail(ctx, op, duplicateError(hcmerrors.ErrCodeDuplicateNamespace,
							"namespace prefix", d.Prefix, prev.At, d.At))
					}
					namespaces[d.Prefix] = d
					model.Namespaces = append(model.Namespaces, d)

				case *definition.WebFileBundleDefinition:
					if prev, ok := bundles[d.Name]; ok {
						return nil, b.fail(ctx, op, duplicateError(hcmerrors.ErrCodeDuplicateWebFileBundle,
							"web file bundle", d.Name, prev.At, d.At))
					}
					bundles[d.Name] = d
					model.WebFileBundles = append(model.WebFileBundles, d)

				case *definition.ConfigDefinition:
					if err := treeBuilder.Push(d.Root); err != nil {
						return nil, b.fail(ctx, op, withDefinition(err, source, d.Root.Path))
					}

				case *definition.ContentDefinition:
					if prev, ok := contentRoots[d.Root.Path]; ok {
						return nil, b.fail(ctx, op, duplicateError(hcmerrors.ErrCodeDuplicateContentRoot,
							"content root", d.Root.Path, prev.Origin(), d.Origin()))
					}
					contentRoots[d.Root.Path] = d
					model.ContentDefinitions = append(model.ContentDefinitions, d)
				}
			}
		}
	}

	sortContent(model.ContentDefinitions, moduleIndex)
	model.ConfigRoot = treeBuilder.Root()
	model.Warnings = treeBuilder.Warnings()

	op.End(ctx, "modules", len(moduleIndex), "warnings", len(model.Warnings))
	return model, nil
}

func (b *Builder) fail(ctx context.Context, op *logging.PerfLogger, err error) error {
	op.EndWithError(ctx, err)
	return err
}

func (b *Builder) sortAll() ([]*Group, error) {
	groups, err := orderable.NewSorter[*Group]("group").Sort(b.groups)
	if err != nil {
		return nil, err
	}

	out := make([]*Group, 0, len(groups))
	for _, g := range groups {
		projects, err := orderable.NewSorter[*Project]("project").Sort(g.projects)
		if err != nil {
			return nil, err
		}

		sortedGroup := &Group{name: g.name, after: g.after}
		for _, p := range projects {
			modules, err := orderable.NewSorter[*Module]("module").Sort(p.modules)
			if err != nil {
				return nil, err
			}
			sortedProject := &Project{name: p.name, after: p.after, group: sortedGroup}
			for _, m := range modules {
				mod := *m
				mod.project = sortedProject
				sortedProject.modules = append(sortedProject.modules, &mod)
			}
			sortedGroup.projects = append(sortedGroup.projects, sortedProject)
		}
		out = append(out, sortedGroup)
	}
	return out, nil
}

func duplicateError(code, what, name string, first, second definition.Origin) error {
	return hcmerrors.NewModelError(code,
		fmt.Sprintf("%s '%s' is defined more than once: first at %s", what, name, first)).
		WithModule(second.Module).
		WithLocation(second.Source, second.Line, second.Column)
}

func withDefinition(err error, source *Source, path string) error {
	var hcmErr *hcmerrors.HcmError
	if errors.As(err, &hcmErr) {
		hcmErr.WithContext("definition", path).WithContext("source", source.Path)
		return err
	}
	return fmt.Errorf("merging definition '%s' of %s: %w", path, source.Path, err)
}

func sortContent(defs []*definition.ContentDefinition, moduleIndex map[string]int) {
	sort.SliceStable(defs, func(i, j int) bool {
		a, b := defs[i], defs[j]
		if ma, mb := moduleIndex[a.Origin().Module], moduleIndex[b.Origin().Module]; ma != mb {
			return ma < mb
		}
		if da, db := depth(a.Root.Path), depth(b.Root.Path); da != db {
			return da < db
		}
		return a.Root.Path < b.Root.Path
	})
}

func depth(path string) int {
	if path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}

// recomputeAfter rebuilds the after lists of g and its projects from the
// declarations of the modules still merged into them.
func recomputeAfter(g *Group) {
	g.after = nil
	for _, p := range g.projects {
		p.after = nil
		for _, m := range p.modules {
			groupAfter, projectAfter := m.Declared()
			g.AddAfter(groupAfter...)
			p.AddAfter(projectAfter...)
		}
	}
}

func removeModule(modules []*Module, target *Module) []*Module {
	for i, m := range modules {
		if m == target {
			return append(modules[:i], modules[i+1:]...)
		}
	}
	return modules
}
