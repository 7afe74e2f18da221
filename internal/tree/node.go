// Package tree is the merged configuration tree: nodes with ordered
// children and properties, per-child category settings, and provenance
// linking every node and property back to the definition items that
// shaped it. Builder merges config definitions into a tree.
package tree

import (
	"sort"

	"github.com/conneroisu/hcm/internal/definition"
	"github.com/conneroisu/hcm/internal/nodename"
)

// CategorySetting is an explicit category assigned to a child by a
// .meta:category directive.
type CategorySetting struct {
	Category definition.Category
	Origin   definition.Origin
}

// Node is a node of the configuration tree.
type Node struct {
	name   string
	parent *Node

	nodes      []*Node
	nodeIndex  map[string]*Node
	properties []*Property
	propIndex  map[string]*Property

	definitions []*definition.Node

	ignoreReorderedChildren   bool
	residualChildNodeCategory definition.Category
	childNodeCategories       map[string]CategorySetting
	childPropertyCategories   map[string]CategorySetting
}

func newNode(name string, parent *Node) *Node {
	return &Node{
		name:                    name,
		parent:                  parent,
		nodeIndex:               make(map[string]*Node),
		propIndex:               make(map[string]*Property),
		childNodeCategories:     make(map[string]CategorySetting),
		childPropertyCategories: make(map[string]CategorySetting),
	}
}

// Name returns the node name, including a same-name-sibling index above 1.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether n is the tree root.
func (n *Node) IsRoot() bool { return n.parent == nil }

// Path returns the absolute path of the node.
func (n *Node) Path() string {
	if n.parent == nil {
		return "/"
	}
	return definition.JoinPath(n.parent.Path(), n.name)
}

// Nodes returns the child nodes in order.
func (n *Node) Nodes() []*Node {
	out := make([]*Node, len(n.nodes))
	copy(out, n.nodes)
	return out
}

// Node returns the named child or nil. "foo[1]" and "foo" are the same child.
func (n *Node) Node(name string) *Node {
	if normalized, err := nodename.Normalize(name); err == nil {
		name = normalized
	}
	return n.nodeIndex[name]
}

// Properties returns the properties in order.
func (n *Node) Properties() []*Property {
	out := make([]*Property, len(n.properties))
	copy(out, n.properties)
	return out
}

// Property returns the named property or nil.
func (n *Node) Property(name string) *Property {
	return n.propIndex[name]
}

// PrimaryType returns the value of jcr:primaryType, or "".
func (n *Node) PrimaryType() string {
	if p := n.propIndex[definition.PrimaryType]; p != nil && len(p.values) > 0 {
		return p.values[0].Raw
	}
	return ""
}

// Definitions returns the definition items that touched this node, in merge order.
func (n *Node) Definitions() []*definition.Node {
	out := make([]*definition.Node, len(n.definitions))
	copy(out, n.definitions)
	return out
}

// IgnoreReorderedChildren reports whether child order is not enforced.
func (n *Node) IgnoreReorderedChildren() bool { return n.ignoreReorderedChildren }

// ResidualChildNodeCategory is the category of children not in the tree.
func (n *Node) ResidualChildNodeCategory() definition.Category {
	return n.residualChildNodeCategory
}

// ChildNodeCategory returns the explicit category setting for a child node.
func (n *Node) ChildNodeCategory(name string) (CategorySetting, bool) {
	if normalized, err := nodename.Normalize(name); err == nil {
		name = normalized
	}
	s, ok := n.childNodeCategories[name]
	return s, ok
}

// ChildPropertyCategory returns the explicit category setting for a property.
func (n *Node) ChildPropertyCategory(name string) (CategorySetting, bool) {
	s, ok := n.childPropertyCategories[name]
	return s, ok
}

// ChildNodeCategoryNames returns the children with an explicit category, sorted.
func (n *Node) ChildNodeCategoryNames() []string {
	return sortedKeys(n.childNodeCategories)
}

// ChildPropertyCategoryNames returns the properties with an explicit category, sorted.
func (n *Node) ChildPropertyCategoryNames() []string {
	return sortedKeys(n.childPropertyCategories)
}

func sortedKeys(m map[string]CategorySetting) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the node at an absolute path below this node's tree root.
func (n *Node) Resolve(path string) *Node {
	cur := n.root()
	for _, seg := range definition.SplitPath(path) {
		cur = cur.Node(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// ResolveProperty returns the property at an absolute path.
func (n *Node) ResolveProperty(path string) *Property {
	parent := n.Resolve(definition.ParentPath(path))
	if parent == nil {
		return nil
	}
	segs := definition.SplitPath(path)
	if len(segs) == 0 {
		return nil
	}
	return parent.Property(segs[len(segs)-1])
}

// Walk visits n and its descendants depth-first in child order. Returning
// an error stops the walk.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.nodes {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

func (n *Node) addNode(child *Node) {
	n.nodes = append(n.nodes, child)
	n.nodeIndex[child.name] = child
}

func (n *Node) removeNode(name string) *Node {
	child := n.nodeIndex[name]
	if child == nil {
		return nil
	}
	delete(n.nodeIndex, name)
	for i, c := range n.nodes {
		if c == child {
			n.nodes = append(n.nodes[:i], n.nodes[i+1:]...)
			break
		}
	}
	return child
}

// orderBefore moves child directly before sibling; a nil sibling moves it first.
func (n *Node) orderBefore(child, sibling *Node) {
	rest := make([]*Node, 0, len(n.nodes))
	for _, c := range n.nodes {
		if c != child {
			rest = append(rest, c)
		}
	}
	out := make([]*Node, 0, len(n.nodes))
	if sibling == nil {
		out = append(out, child)
		out = append(out, rest...)
	} else {
		for _, c := range rest {
			if c == sibling {
				out = append(out, child)
			}
			out = append(out, c)
		}
	}
	n.nodes = out
}

func (n *Node) addProperty(p *Property) {
	n.properties = append(n.properties, p)
	n.propIndex[p.name] = p
}

func (n *Node) removeProperty(name string) *Property {
	p := n.propIndex[name]
	if p == nil {
		return nil
	}
	delete(n.propIndex, name)
	for i, c := range n.properties {
		if c == p {
			n.properties = append(n.properties[:i], n.properties[i+1:]...)
			break
		}
	}
	return p
}

// Property is a property of the configuration tree.
type Property struct {
	name        string
	parent      *Node
	valueType   definition.ValueType
	multiple    bool
	values      []definition.Value
	definitions []*definition.Property
}

// Name returns the property name.
func (p *Property) Name() string { return p.name }

// Parent returns the owning node.
func (p *Property) Parent() *Node { return p.parent }

// Path returns the absolute path of the property.
func (p *Property) Path() string { return definition.JoinPath(p.parent.Path(), p.name) }

// Type returns the value type.
func (p *Property) Type() definition.ValueType { return p.valueType }

// Multiple reports whether the property is multi-valued.
func (p *Property) Multiple() bool { return p.multiple }

// Values returns a copy of the values.
func (p *Property) Values() []definition.Value {
	out := make([]definition.Value, len(p.values))
	copy(out, p.values)
	return out
}

// Value returns the single value of a single-valued property.
func (p *Property) Value() (definition.Value, bool) {
	if p.multiple || len(p.values) == 0 {
		return definition.Value{}, false
	}
	return p.values[0], true
}

// Definitions returns the definition items that touched this property.
func (p *Property) Definitions() []*definition.Property {
	out := make([]*definition.Property, len(p.definitions))
	copy(out, p.definitions)
	return out
}
