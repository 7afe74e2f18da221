package definition

import "strings"

// Well-known property names.
const (
	PrimaryType = "jcr:primaryType"
	MixinTypes  = "jcr:mixinTypes"
	UUID        = "jcr:uuid"
)

// Node is a node item of a config or content definition. The definition
// root carries its full path; descendants are addressed relative to it.
type Node struct {
	Name   string
	Path   string
	Parent *Node

	Nodes      []*Node
	Properties []*Property

	Delete                    bool
	OrderBefore               *string
	IgnoreReorderedChildren   *bool
	Category                  Category
	ResidualChildNodeCategory Category

	Origin Origin
}

// NewRootNode creates the root item of a definition at an absolute path.
func NewRootNode(path string, origin Origin) *Node {
	name := ""
	if path != "/" {
		name = path[strings.LastIndex(path, "/")+1:]
	}
	return &Node{Name: name, Path: path, Origin: origin}
}

// AddNode appends a child node item.
func (n *Node) AddNode(name string, origin Origin) *Node {
	child := &Node{
		Name:   name,
		Path:   JoinPath(n.Path, name),
		Parent: n,
		Origin: origin,
	}
	n.Nodes = append(n.Nodes, child)
	return child
}

// AddProperty appends a property item.
func (n *Node) AddProperty(name string, valueType ValueType, multiple bool, values []Value, origin Origin) *Property {
	p := &Property{
		Name:      name,
		Path:      JoinPath(n.Path, name),
		Parent:    n,
		Type:      valueType,
		Multiple:  multiple,
		Values:    values,
		Operation: OpReplace,
		Origin:    origin,
	}
	n.Properties = append(n.Properties, p)
	return p
}

// Node returns the child node item with the given name.
func (n *Node) Node(name string) *Node {
	for _, c := range n.Nodes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Property returns the property item with the given name.
func (n *Node) Property(name string) *Property {
	for _, p := range n.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// HasContent reports whether the item defines anything besides meta directives.
func (n *Node) HasContent() bool {
	return len(n.Nodes) > 0 || len(n.Properties) > 0
}

// HasMeta reports whether the item carries a meta directive other than
// delete.
func (n *Node) HasMeta() bool {
	return n.OrderBefore != nil || n.IgnoreReorderedChildren != nil ||
		n.Category != CategoryUnset || n.ResidualChildNodeCategory != CategoryUnset
}

// IsRoot reports whether this is the root item of its definition.
func (n *Node) IsRoot() bool {
	return n.Parent == nil
}

// Property is a property item of a definition node.
type Property struct {
	Name   string
	Path   string
	Parent *Node

	Type      ValueType
	Multiple  bool
	Values    []Value
	Operation PropertyOperation
	Category  Category

	Origin Origin
}

// JoinPath joins a parent path and a child name.
func JoinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// SplitPath splits an absolute path into its segments; "/" yields none.
func SplitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// ParentPath returns the path of the parent; the parent of "/x" is "/".
func ParentPath(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}
