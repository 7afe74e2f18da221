package tree

import "github.com/conneroisu/hcm/internal/definition"

// CategoryForNode returns the effective category of the node at path.
// Nodes present in the tree are config. A missing node takes the explicit
// setting on its parent, then the parent's residual child category, and
// finally runtime.
func CategoryForNode(root *Node, path string) definition.Category {
	cur := root.root()
	for _, seg := range definition.SplitPath(path) {
		if s, ok := cur.ChildNodeCategory(seg); ok && s.Category != definition.CategoryConfig {
			return s.Category
		}
		next := cur.Node(seg)
		if next == nil {
			if cur.residualChildNodeCategory != definition.CategoryUnset {
				return cur.residualChildNodeCategory
			}
			return definition.CategoryRuntime
		}
		cur = next
	}
	return definition.CategoryConfig
}

// CategoryForProperty returns the effective category of the property at path.
func CategoryForProperty(root *Node, path string) definition.Category {
	parentPath := definition.ParentPath(path)
	if c := CategoryForNode(root, parentPath); c != definition.CategoryConfig {
		return c
	}
	segs := definition.SplitPath(path)
	if len(segs) == 0 {
		return definition.CategoryConfig
	}
	parent := root.Resolve(parentPath)
	if s, ok := parent.ChildPropertyCategory(segs[len(segs)-1]); ok {
		return s.Category
	}
	return definition.CategoryConfig
}
