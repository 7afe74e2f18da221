package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/hcm/internal/definition"
	"github.com/conneroisu/hcm/internal/tree"
)

// RenderText writes an indented outline of node. With origins, every node
// and property is followed by the definitions that shaped it.
func RenderText(w io.Writer, node *tree.Node, withOrigins bool) error {
	return node.Walk(func(n *tree.Node) error {
		depth := len(definition.SplitPath(n.Path())) - len(definition.SplitPath(node.Path()))
		indent := strings.Repeat("  ", depth)

		label := "/" + n.Name()
		if n == node {
			label = n.Path()
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", indent, label, nodeOrigins(n, withOrigins)); err != nil {
			return err
		}

		for _, p := range n.Properties() {
			if _, err := fmt.Fprintf(w, "%s  - %s = %s%s\n", indent, p.Name(), formatValues(p), propertyOrigins(p, withOrigins)); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatValues(p *tree.Property) string {
	raw := make([]string, 0, len(p.Values()))
	for _, v := range p.Values() {
		raw = append(raw, v.Raw)
	}

	out := strings.Join(raw, ", ")
	if p.Multiple() {
		out = "[" + out + "]"
	}
	if p.Type() != definition.TypeString {
		out += " (" + string(p.Type()) + ")"
	}
	return out
}

func nodeOrigins(n *tree.Node, with bool) string {
	if !with {
		return ""
	}
	var origins []string
	for _, d := range n.Definitions() {
		origins = append(origins, d.Origin.String())
	}
	return formatOrigins(origins)
}

func propertyOrigins(p *tree.Property, with bool) string {
	if !with {
		return ""
	}
	var origins []string
	for _, d := range p.Definitions() {
		origins = append(origins, d.Origin.String())
	}
	return formatOrigins(origins)
}

func formatOrigins(origins []string) string {
	if len(origins) == 0 {
		return ""
	}
	return "  # " + strings.Join(origins, "; ")
}
