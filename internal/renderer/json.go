package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/itchyny/gojq"

	"github.com/conneroisu/hcm/internal/definition"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/tree"
)

// ToMap converts node into plain maps and slices:
//
//	{"name": "...", "path": "...", "primaryType": "...",
//	 "properties": {"name": value-or-list}, "nodes": [...]}
//
// Long, double and boolean values become numbers and booleans; all other
// types stay strings.
func ToMap(node *tree.Node) map[string]interface{} {
	props := make(map[string]interface{}, len(node.Properties()))
	for _, p := range node.Properties() {
		props[p.Name()] = propertyToValue(p)
	}

	nodes := make([]interface{}, 0, len(node.Nodes()))
	for _, child := range node.Nodes() {
		nodes = append(nodes, ToMap(child))
	}

	return map[string]interface{}{
		"name":        node.Name(),
		"path":        node.Path(),
		"primaryType": node.PrimaryType(),
		"properties":  props,
		"nodes":       nodes,
	}
}

func propertyToValue(p *tree.Property) interface{} {
	values := p.Values()
	if !p.Multiple() && len(values) == 1 {
		return convertValue(p.Type(), values[0].Raw)
	}
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, convertValue(p.Type(), v.Raw))
	}
	return out
}

func convertValue(vt definition.ValueType, raw string) interface{} {
	switch vt {
	case definition.TypeLong:
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case definition.TypeDouble:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case definition.TypeBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

// RenderJSON renders ToMap(node) as indented JSON.
func RenderJSON(node *tree.Node) ([]byte, error) {
	data, err := json.MarshalIndent(ToMap(node), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", node.Path(), err)
	}
	return append(data, '\n'), nil
}

// Query runs the jq expression expr over ToMap(node) and returns every
// result it emits.
func Query(ctx context.Context, node *tree.Node, expr string) ([]interface{}, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("invalid query: %v", err)).WithCause(err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("invalid query: %v", err)).WithCause(err)
	}

	var results []interface{}
	iter := code.RunWithContext(ctx, ToMap(node))
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("query failed: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}
