// Package model assembles groups, projects and modules into a single
// configuration model.
//
// Modules are pushed into a Builder grouped by their project and group.
// Build orders everything with the orderable sorter, merges the config
// definitions of every module into one configuration tree and collects
// namespaces, web file bundles and content definitions.
package model

import (
	"sort"

	"github.com/conneroisu/hcm/internal/definition"
	"github.com/conneroisu/hcm/internal/tree"
)

// Group is the outermost ordering scope.
type Group struct {
	name     string
	after    []string
	projects []*Project
}

// NewGroup creates a group that sorts after the named groups.
func NewGroup(name string, after ...string) *Group {
	return &Group{name: name, after: appendUnique(nil, after...)}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// After returns the names of the groups this group sorts after.
func (g *Group) After() []string { return g.after }

// AddAfter adds names to the group's dependencies.
func (g *Group) AddAfter(names ...string) { g.after = appendUnique(g.after, names...) }

// Projects returns the projects of the group.
func (g *Group) Projects() []*Project { return g.projects }

// Project returns the named project or nil.
func (g *Group) Project(name string) *Project {
	for _, p := range g.projects {
		if p.name == name {
			return p
		}
	}
	return nil
}

// AddProject adds a project to the group.
func (g *Group) AddProject(name string, after ...string) *Project {
	p := &Project{name: name, after: appendUnique(nil, after...), group: g}
	g.projects = append(g.projects, p)
	return p
}

// Project groups modules inside a group.
type Project struct {
	name    string
	after   []string
	group   *Group
	modules []*Module
}

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// After returns the names of the projects in the same group this project sorts after.
func (p *Project) After() []string { return p.after }

// AddAfter adds names to the project's dependencies.
func (p *Project) AddAfter(names ...string) { p.after = appendUnique(p.after, names...) }

// Group returns the owning group.
func (p *Project) Group() *Group { return p.group }

// Modules returns the modules of the project.
func (p *Project) Modules() []*Module { return p.modules }

// Module returns the named module or nil.
func (p *Project) Module(name string) *Module {
	for _, m := range p.modules {
		if m.name == name {
			return m
		}
	}
	return nil
}

// AddModule adds a module to the project.
func (p *Project) AddModule(name string, after ...string) *Module {
	m := &Module{name: name, after: appendUnique(nil, after...), project: p}
	p.modules = append(p.modules, m)
	return m
}

// Module is the unit of configuration that ships sources.
type Module struct {
	name    string
	after   []string
	project *Project

	// Group and project dependencies declared by this module's own
	// descriptor, recorded once the module is merged with others.
	declared     bool
	groupAfter   []string
	projectAfter []string

	// DescriptorPath is the hcm-module.yaml the module was loaded from.
	DescriptorPath string
	// Root is the directory holding the descriptor.
	Root    string
	Sources []*Source
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// After returns the names of the modules in the same project this module sorts after.
func (m *Module) After() []string { return m.after }

// Project returns the owning project.
func (m *Module) Project() *Project { return m.project }

// Declared returns the group and project dependencies this module
// contributes. Until recorded with SetDeclared they are those of the
// module's own project and group.
func (m *Module) Declared() (groupAfter, projectAfter []string) {
	if m.declared {
		return m.groupAfter, m.projectAfter
	}
	return m.project.group.after, m.project.after
}

// SetDeclared records the group and project dependencies this module
// contributes, independent of the project it ends up in.
func (m *Module) SetDeclared(groupAfter, projectAfter []string) {
	m.declared = true
	m.groupAfter = append([]string(nil), groupAfter...)
	m.projectAfter = append([]string(nil), projectAfter...)
}

// FullName returns group/project/module.
func (m *Module) FullName() string {
	return m.project.group.name + "/" + m.project.name + "/" + m.name
}

// AddSource adds a source at a path relative to the module root.
func (m *Module) AddSource(path string, kind SourceKind) *Source {
	s := &Source{Path: path, Kind: kind, Module: m}
	m.Sources = append(m.Sources, s)
	return s
}

// SortedSources returns the sources ordered by path.
func (m *Module) SortedSources() []*Source {
	out := make([]*Source, len(m.Sources))
	copy(out, m.Sources)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// SourceKind distinguishes config from content sources.
type SourceKind string

const (
	SourceConfig  SourceKind = "config"
	SourceContent SourceKind = "content"
)

// Source is one YAML file of a module.
type Source struct {
	Path        string
	Kind        SourceKind
	Module      *Module
	Definitions []definition.Definition
}

// AddDefinition appends a parsed definition.
func (s *Source) AddDefinition(d definition.Definition) {
	s.Definitions = append(s.Definitions, d)
}

// ConfigurationModel is the result of a build.
type ConfigurationModel struct {
	Groups             []*Group
	ConfigRoot         *tree.Node
	Namespaces         []*definition.NamespaceDefinition
	WebFileBundles     []*definition.WebFileBundleDefinition
	ContentDefinitions []*definition.ContentDefinition
	Warnings           []tree.Warning
}

// Modules returns every module in build order.
func (m *ConfigurationModel) Modules() []*Module {
	var out []*Module
	for _, g := range m.Groups {
		for _, p := range g.projects {
			out = append(out, p.modules...)
		}
	}
	return out
}

// Module returns the module with the given full name or nil.
func (m *ConfigurationModel) Module(fullName string) *Module {
	for _, mod := range m.Modules() {
		if mod.FullName() == fullName {
			return mod
		}
	}
	return nil
}

// ResolveNode returns the config node at an absolute path or nil.
func (m *ConfigurationModel) ResolveNode(path string) *tree.Node {
	return m.ConfigRoot.Resolve(path)
}

// ResolveProperty returns the config property at an absolute path or nil.
func (m *ConfigurationModel) ResolveProperty(path string) *tree.Property {
	return m.ConfigRoot.ResolveProperty(path)
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		found := false
		for _, existing := range dst {
			if existing == n {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, n)
		}
	}
	return dst
}
