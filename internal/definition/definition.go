// Package definition holds the parsed, not yet merged content of
// configuration sources: namespace, config, content and web file bundle
// definitions, and the node/property items that config and content
// definitions are made of.
package definition

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a definition.
type Kind int

const (
	KindNamespace Kind = iota
	KindConfig
	KindContent
	KindWebFileBundle
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindConfig:
		return "config"
	case KindContent:
		return "content"
	case KindWebFileBundle:
		return "webfilebundle"
	default:
		return "unknown"
	}
}

// Origin records where a definition item was declared.
type Origin struct {
	Module string
	Source string
	Line   int
	Column int
}

// String renders the origin as module:source:line:col.
func (o Origin) String() string {
	var b strings.Builder
	if o.Module != "" {
		b.WriteString(o.Module)
		b.WriteString(":")
	}
	b.WriteString(o.Source)
	if o.Line > 0 {
		fmt.Fprintf(&b, ":%d:%d", o.Line, o.Column)
	}
	return b.String()
}

// Definition is one entry of a source file.
type Definition interface {
	Kind() Kind
	Origin() Origin
}

// NamespaceDefinition registers a JCR namespace prefix.
type NamespaceDefinition struct {
	Prefix  string
	URI     string
	CndPath string
	At      Origin
}

func (d *NamespaceDefinition) Kind() Kind     { return KindNamespace }
func (d *NamespaceDefinition) Origin() Origin { return d.At }

// WebFileBundleDefinition names a web file bundle shipped by a module.
type WebFileBundleDefinition struct {
	Name string
	At   Origin
}

func (d *WebFileBundleDefinition) Kind() Kind     { return KindWebFileBundle }
func (d *WebFileBundleDefinition) Origin() Origin { return d.At }

// ConfigDefinition is a node subtree merged into the configuration tree.
type ConfigDefinition struct {
	Root *Node
}

func (d *ConfigDefinition) Kind() Kind     { return KindConfig }
func (d *ConfigDefinition) Origin() Origin { return d.Root.Origin }

// ContentDefinition is a node subtree applied as content, outside the
// configuration tree.
type ContentDefinition struct {
	Root *Node
}

func (d *ContentDefinition) Kind() Kind     { return KindContent }
func (d *ContentDefinition) Origin() Origin { return d.Root.Origin }
