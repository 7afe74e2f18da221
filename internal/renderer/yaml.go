// Package renderer turns a configuration tree into YAML, JSON or a text
// outline, runs jq queries over it and diffs two renderings.
//
// The YAML form uses the same definition syntax the loader reads, so a
// rendered subtree can be dropped into a module source unchanged.
package renderer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/hcm/internal/definition"
	"github.com/conneroisu/hcm/internal/tree"
)

// Keys of the definition syntax.
const (
	keyDefinitions = "definitions"
	keyConfig      = "config"
	keyType        = "type"
	keyValue       = "value"
	keyResource    = "resource"
	keyPath        = "path"

	metaCategory                  = ".meta:category"
	metaIgnoreReorderedChildren   = ".meta:ignore-reordered-children"
	metaResidualChildNodeCategory = ".meta:residual-child-node-category"
)

// RenderYAML renders node and its subtree as a config definition.
func RenderYAML(node *tree.Node) ([]byte, error) {
	doc := mapping(
		scalar(keyDefinitions), mapping(
			scalar(keyConfig), mapping(
				scalar(node.Path()), nodeMapping(node),
			),
		),
	)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", node.Path(), err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", node.Path(), err)
	}
	return buf.Bytes(), nil
}

func nodeMapping(node *tree.Node) *yaml.Node {
	m := mapping()

	for _, p := range node.Properties() {
		m.Content = append(m.Content, scalar(p.Name()), propertyValue(p))
	}
	for _, name := range node.ChildPropertyCategoryNames() {
		if node.Property(name) != nil {
			continue
		}
		s, _ := node.ChildPropertyCategory(name)
		m.Content = append(m.Content, scalar(name), mapping(scalar(metaCategory), scalar(string(s.Category))))
	}

	if node.IgnoreReorderedChildren() {
		m.Content = append(m.Content, scalar(metaIgnoreReorderedChildren), tagged("!!bool", "true"))
	}
	if c := node.ResidualChildNodeCategory(); c != definition.CategoryUnset {
		m.Content = append(m.Content, scalar(metaResidualChildNodeCategory), scalar(string(c)))
	}

	for _, child := range node.Nodes() {
		m.Content = append(m.Content, scalar("/"+child.Name()), nodeMapping(child))
	}
	for _, name := range node.ChildNodeCategoryNames() {
		s, _ := node.ChildNodeCategory(name)
		m.Content = append(m.Content, scalar("/"+name), mapping(scalar(metaCategory), scalar(string(s.Category))))
	}
	return m
}

// propertyValue renders a property as a plain scalar or sequence when the
// loader would infer the same type back, and as a typed mapping otherwise.
func propertyValue(p *tree.Property) *yaml.Node {
	values := p.Values()
	kind := definition.ValueLiteral
	if len(values) > 0 {
		kind = values[0].Kind
	}

	var category definition.Category
	if s, ok := p.Parent().ChildPropertyCategory(p.Name()); ok {
		category = s.Category
	}

	if kind == definition.ValueLiteral && category == definition.CategoryUnset && plain(p.Name(), p.Type(), values) {
		return valueNode(p.Type(), p.Multiple(), values, true)
	}

	m := mapping()
	if category != definition.CategoryUnset {
		m.Content = append(m.Content, scalar(metaCategory), scalar(string(category)))
	}
	if p.Type() != defaultType(p.Name(), kind) {
		m.Content = append(m.Content, scalar(keyType), scalar(string(p.Type())))
	}
	m.Content = append(m.Content, scalar(kind.String()), valueNode(p.Type(), p.Multiple(), values, false))
	return m
}

func defaultType(name string, kind definition.ValueKind) definition.ValueType {
	switch {
	case kind == definition.ValueResource:
		return definition.TypeBinary
	case kind == definition.ValuePath:
		return definition.TypeReference
	case name == definition.PrimaryType || name == definition.MixinTypes:
		return definition.TypeName
	default:
		return definition.TypeString
	}
}

// plain reports whether every value reads back as vt without a type key.
func plain(name string, vt definition.ValueType, values []definition.Value) bool {
	if len(values) == 0 {
		return vt == defaultType(name, definition.ValueLiteral)
	}
	for _, v := range values {
		if _, ok := scalarTag(name, vt, v.Raw); !ok {
			return false
		}
	}
	return true
}

func scalarTag(name string, vt definition.ValueType, raw string) (string, bool) {
	switch vt {
	case definition.TypeLong:
		_, err := strconv.ParseInt(raw, 10, 64)
		return "!!int", err == nil
	case definition.TypeDouble:
		_, err := strconv.ParseFloat(raw, 64)
		return "!!float", err == nil && strings.ContainsAny(raw, ".eE")
	case definition.TypeBoolean:
		return "!!bool", raw == "true" || raw == "false"
	default:
		return "!!str", vt == defaultType(name, definition.ValueLiteral)
	}
}

func valueNode(vt definition.ValueType, multiple bool, values []definition.Value, tagged bool) *yaml.Node {
	one := func(v definition.Value) *yaml.Node {
		tag := "!!str"
		if tagged {
			tag, _ = scalarTag("", vt, v.Raw)
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.Raw}
	}

	if !multiple && len(values) == 1 {
		return one(values[0])
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if len(values) == 0 {
		seq.Style = yaml.FlowStyle
	}
	for _, v := range values {
		seq.Content = append(seq.Content, one(v))
	}
	return seq
}

func mapping(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content}
}

func scalar(value string) *yaml.Node {
	return tagged("!!str", value)
}

func tagged(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
