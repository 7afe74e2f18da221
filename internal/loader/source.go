package loader

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/hcm/internal/definition"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/nodename"
)

const metaPrefix = ".meta:"

// Node directives.
const (
	metaDelete                    = ".meta:delete"
	metaOrderBefore               = ".meta:order-before"
	metaCategory                  = ".meta:category"
	metaResidualChildNodeCategory = ".meta:residual-child-node-category"
	metaIgnoreReorderedChildren   = ".meta:ignore-reordered-children"
)

// sourceParser turns one YAML source into definitions. Paths are slash
// separated; moduleRoot and sourcePath address the file on fs.
type sourceParser struct {
	fs         afero.Fs
	module     string
	moduleRoot string
	sourcePath string
}

func (p *sourceParser) origin(n *yaml.Node) definition.Origin {
	return definition.Origin{Module: p.module, Source: p.sourcePath, Line: n.Line, Column: n.Column}
}

func (p *sourceParser) errorf(n *yaml.Node, code, format string, args ...interface{}) error {
	line, col := 0, 0
	if n != nil {
		line, col = n.Line, n.Column
	}
	return hcmerrors.NewValidationError(code, fmt.Sprintf(format, args...)).
		WithModule(p.module).
		WithLocation(p.sourcePath, line, col)
}

func (p *sourceParser) document(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, p.errorf(nil, hcmerrors.ErrCodeParseFailed, "invalid YAML: %v", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, p.errorf(root, hcmerrors.ErrCodeParseFailed, "source root must be a mapping")
	}
	return root, nil
}

// parseConfig parses a config source: a "definitions" mapping holding
// namespace, config and webfilebundle sections.
func (p *sourceParser) parseConfig(data []byte) ([]definition.Definition, error) {
	root, err := p.document(data)
	if err != nil || root == nil {
		return nil, err
	}

	var defs []definition.Definition
	err = p.eachPair(root, func(key, value *yaml.Node) error {
		if key.Value != "definitions" {
			return p.errorf(key, hcmerrors.ErrCodeParseFailed,
				"unknown key '%s'; config sources hold a single 'definitions' mapping", key.Value)
		}
		if value.Kind != yaml.MappingNode {
			return p.errorf(value, hcmerrors.ErrCodeParseFailed, "'definitions' must be a mapping")
		}
		return p.eachPair(value, func(section, body *yaml.Node) error {
			var parsed []definition.Definition
			var err error
			switch section.Value {
			case "namespace":
				parsed, err = p.parseNamespaces(body)
			case "config":
				parsed, err = p.parseConfigRoots(body)
			case "webfilebundle":
				parsed, err = p.parseWebFileBundle(body)
			default:
				return p.errorf(section, hcmerrors.ErrCodeParseFailed,
					"unknown definition type '%s' (expected namespace, config or webfilebundle)", section.Value)
			}
			defs = append(defs, parsed...)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// parseContent parses a content source: a single root path mapping.
func (p *sourceParser) parseContent(data []byte) ([]definition.Definition, error) {
	root, err := p.document(data)
	if err != nil {
		return nil, err
	}
	if root == nil || len(root.Content) != 2 {
		return nil, p.errorf(root, hcmerrors.ErrCodeParseFailed, "content sources must hold exactly one root path")
	}

	node, err := p.parseRoot(root.Content[0], root.Content[1])
	if err != nil {
		return nil, err
	}
	return []definition.Definition{&definition.ContentDefinition{Root: node}}, nil
}

func (p *sourceParser) parseNamespaces(body *yaml.Node) ([]definition.Definition, error) {
	if body.Kind != yaml.MappingNode {
		return nil, p.errorf(body, hcmerrors.ErrCodeParseFailed, "'namespace' must be a mapping of prefix to uri")
	}

	var defs []definition.Definition
	err := p.eachPair(body, func(prefix, value *yaml.Node) error {
		if err := nodename.Validate(prefix.Value); err != nil || strings.Contains(prefix.Value, ":") {
			return p.errorf(prefix, hcmerrors.ErrCodeInvalidName, "invalid namespace prefix '%s'", prefix.Value)
		}
		ns := &definition.NamespaceDefinition{Prefix: prefix.Value, At: p.origin(prefix)}
		switch value.Kind {
		case yaml.ScalarNode:
			ns.URI = value.Value
		case yaml.MappingNode:
			err := p.eachPair(value, func(k, v *yaml.Node) error {
				switch k.Value {
				case "uri":
					ns.URI = v.Value
				case "cnd":
					ns.CndPath = v.Value
				default:
					return p.errorf(k, hcmerrors.ErrCodeParseFailed, "unknown namespace key '%s' (expected uri or cnd)", k.Value)
				}
				return nil
			})
			if err != nil {
				return err
			}
		default:
			return p.errorf(value, hcmerrors.ErrCodeParseFailed, "namespace '%s' must be a uri or a mapping", prefix.Value)
		}
		if ns.URI == "" {
			return p.errorf(value, hcmerrors.ErrCodeParseFailed, "namespace '%s' must define a uri", prefix.Value)
		}
		if ns.CndPath != "" {
			if err := p.checkResource(value, ns.CndPath); err != nil {
				return err
			}
		}
		defs = append(defs, ns)
		return nil
	})
	return defs, err
}

func (p *sourceParser) parseWebFileBundle(body *yaml.Node) ([]definition.Definition, error) {
	name := body.Value
	if body.Kind == yaml.MappingNode {
		err := p.eachPair(body, func(k, v *yaml.Node) error {
			if k.Value != "name" {
				return p.errorf(k, hcmerrors.ErrCodeParseFailed, "unknown webfilebundle key '%s'", k.Value)
			}
			name = v.Value
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else if body.Kind != yaml.ScalarNode {
		return nil, p.errorf(body, hcmerrors.ErrCodeParseFailed, "'webfilebundle' must be a name")
	}
	if name == "" {
		return nil, p.errorf(body, hcmerrors.ErrCodeParseFailed, "webfilebundle must have a name")
	}
	return []definition.Definition{&definition.WebFileBundleDefinition{Name: name, At: p.origin(body)}}, nil
}

func (p *sourceParser) parseConfigRoots(body *yaml.Node) ([]definition.Definition, error) {
	if body.Kind != yaml.MappingNode {
		return nil, p.errorf(body, hcmerrors.ErrCodeParseFailed, "'config' must be a mapping of paths to nodes")
	}
	var defs []definition.Definition
	err := p.eachPair(body, func(key, value *yaml.Node) error {
		node, err := p.parseRoot(key, value)
		if err != nil {
			return err
		}
		defs = append(defs, &definition.ConfigDefinition{Root: node})
		return nil
	})
	return defs, err
}

func (p *sourceParser) parseRoot(key, value *yaml.Node) (*definition.Node, error) {
	rootPath := key.Value
	if !strings.HasPrefix(rootPath, "/") || (rootPath != "/" && strings.HasSuffix(rootPath, "/")) {
		return nil, p.errorf(key, hcmerrors.ErrCodeInvalidPath,
			"'%s' is not a valid root path; it must be absolute and must not end with '/'", rootPath)
	}
	for _, seg := range definition.SplitPath(rootPath) {
		if err := nodename.Validate(seg); err != nil {
			return nil, p.errorf(key, hcmerrors.ErrCodeInvalidName, "invalid path '%s': %v", rootPath, err)
		}
	}

	node := definition.NewRootNode(rootPath, p.origin(key))
	if err := p.parseNode(node, value); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *sourceParser) parseNode(node *definition.Node, value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return p.errorf(value, hcmerrors.ErrCodeParseFailed, "node '%s' must be a mapping", node.Path)
	}

	return p.eachPair(value, func(key, val *yaml.Node) error {
		name := key.Value
		switch {
		case strings.HasPrefix(name, "/"):
			childName := name[1:]
			if err := nodename.Validate(childName); err != nil {
				return p.errorf(key, hcmerrors.ErrCodeInvalidName, "invalid node name '%s': %v", childName, err)
			}
			child := node.AddNode(childName, p.origin(key))
			return p.parseNode(child, val)

		case strings.HasPrefix(name, metaPrefix):
			return p.parseNodeMeta(node, key, val)

		default:
			if err := nodename.Validate(name); err != nil {
				return p.errorf(key, hcmerrors.ErrCodeInvalidName, "invalid property name '%s': %v", name, err)
			}
			return p.parseProperty(node, key, val)
		}
	})
}

func (p *sourceParser) parseNodeMeta(node *definition.Node, key, val *yaml.Node) error {
	switch key.Value {
	case metaDelete:
		b, err := p.boolean(val)
		if err != nil {
			return err
		}
		node.Delete = b

	case metaOrderBefore:
		if val.Kind != yaml.ScalarNode {
			return p.errorf(val, hcmerrors.ErrCodeParseFailed, "%s must be a node name", metaOrderBefore)
		}
		target := val.Value
		node.OrderBefore = &target

	case metaIgnoreReorderedChildren:
		b, err := p.boolean(val)
		if err != nil {
			return err
		}
		node.IgnoreReorderedChildren = &b

	case metaCategory:
		c, err := p.category(val)
		if err != nil {
			return err
		}
		node.Category = c

	case metaResidualChildNodeCategory:
		c, err := p.category(val)
		if err != nil {
			return err
		}
		node.ResidualChildNodeCategory = c

	default:
		return p.errorf(key, hcmerrors.ErrCodeParseFailed, "unknown directive '%s'", key.Value)
	}
	return nil
}

func (p *sourceParser) parseProperty(node *definition.Node, key, val *yaml.Node) error {
	name := key.Value
	origin := p.origin(key)

	switch val.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		vt, multiple, values, err := p.values(name, val, "", definition.ValueLiteral)
		if err != nil {
			return err
		}
		node.AddProperty(name, vt, multiple, values, origin)
		return nil

	case yaml.MappingNode:
		return p.parsePropertyMapping(node, key, val)

	default:
		return p.errorf(val, hcmerrors.ErrCodeParseFailed, "property '%s' has an unsupported value", name)
	}
}

func (p *sourceParser) parsePropertyMapping(node *definition.Node, key, val *yaml.Node) error {
	name := key.Value
	var (
		explicitType definition.ValueType
		op           = definition.OpReplace
		category     definition.Category
		valueNode    *yaml.Node
		kind         definition.ValueKind
		valueKeys    int
	)

	err := p.eachPair(val, func(k, v *yaml.Node) error {
		switch k.Value {
		case "type":
			t, err := definition.ParseValueType(v.Value)
			if err != nil {
				return p.errorf(v, hcmerrors.ErrCodeParseFailed, "%v", err)
			}
			explicitType = t
		case "operation":
			o, err := definition.ParseOperation(v.Value)
			if err != nil {
				return p.errorf(v, hcmerrors.ErrCodeParseFailed, "%v", err)
			}
			op = o
		case metaCategory:
			c, err := p.category(v)
			if err != nil {
				return err
			}
			category = c
		case "value":
			valueNode, kind = v, definition.ValueLiteral
			valueKeys++
		case "resource":
			valueNode, kind = v, definition.ValueResource
			valueKeys++
		case "path":
			valueNode, kind = v, definition.ValuePath
			valueKeys++
		default:
			return p.errorf(k, hcmerrors.ErrCodeParseFailed,
				"unknown key '%s' in property '%s' (expected type, value, resource, path, operation or %s)",
				k.Value, name, metaCategory)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if valueKeys > 1 {
		return p.errorf(val, hcmerrors.ErrCodeParseFailed,
			"property '%s' must specify only one of value, resource or path", name)
	}

	if valueNode == nil {
		if op != definition.OpDelete && category == definition.CategoryUnset {
			return p.errorf(val, hcmerrors.ErrCodeParseFailed,
				"property '%s' must specify value, resource or path", name)
		}
		t := explicitType
		if t == "" {
			t = definition.TypeString
		}
		prop := node.AddProperty(name, t, false, nil, p.origin(key))
		prop.Operation = op
		prop.Category = category
		return nil
	}

	vt, multiple, values, err := p.values(name, valueNode, explicitType, kind)
	if err != nil {
		return err
	}

	prop := node.AddProperty(name, vt, multiple, values, p.origin(key))
	prop.Operation = op
	prop.Category = category
	return nil
}

// values reads a scalar or sequence of values. With no explicit type the
// type is inferred from the YAML tags and must agree across a sequence.
func (p *sourceParser) values(name string, n *yaml.Node, explicit definition.ValueType, kind definition.ValueKind) (definition.ValueType, bool, []definition.Value, error) {
	var items []*yaml.Node
	multiple := false
	switch n.Kind {
	case yaml.ScalarNode:
		items = []*yaml.Node{n}
	case yaml.SequenceNode:
		items = n.Content
		multiple = true
	default:
		return "", false, nil, p.errorf(n, hcmerrors.ErrCodeParseFailed,
			"property '%s' value must be a scalar or a sequence", name)
	}

	vt := explicit
	if vt == "" {
		vt = defaultType(name, kind)
	}

	values := make([]definition.Value, 0, len(items))
	for i, item := range items {
		if item.Kind != yaml.ScalarNode {
			return "", false, nil, p.errorf(item, hcmerrors.ErrCodeParseFailed,
				"property '%s' values must be scalars", name)
		}
		if item.ShortTag() == "!!null" {
			return "", false, nil, p.errorf(item, hcmerrors.ErrCodeParseFailed,
				"property '%s' must not hold a null value", name)
		}

		if explicit == "" && kind == definition.ValueLiteral {
			inferred := inferType(name, item)
			if i == 0 {
				vt = inferred
			} else if inferred != vt {
				return "", false, nil, p.errorf(item, hcmerrors.ErrCodeParseFailed,
					"property '%s' mixes value types '%s' and '%s'", name, vt, inferred)
			}
		}

		if err := p.checkValue(name, item, vt, kind); err != nil {
			return "", false, nil, err
		}
		values = append(values, definition.Value{Raw: item.Value, Type: vt, Kind: kind})
	}

	for i := range values {
		values[i].Type = vt
	}
	return vt, multiple, values, nil
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

func inferType(name string, n *yaml.Node) definition.ValueType {
	switch n.ShortTag() {
	case "!!int":
		return definition.TypeLong
	case "!!float":
		return definition.TypeDouble
	case "!!bool":
		return definition.TypeBoolean
	case "!!timestamp":
		return definition.TypeDate
	case "!!binary":
		return definition.TypeBinary
	default:
		return defaultType(name, definition.ValueLiteral)
	}
}

func (p *sourceParser) checkValue(name string, n *yaml.Node, vt definition.ValueType, kind definition.ValueKind) error {
	switch kind {
	case definition.ValueResource:
		if vt != definition.TypeBinary && vt != definition.TypeString {
			return p.errorf(n, hcmerrors.ErrCodeParseFailed,
				"property '%s' is a resource and must be of type binary or string", name)
		}
		return p.checkResource(n, n.Value)
	case definition.ValuePath:
		if vt != definition.TypeReference && vt != definition.TypeWeakReference {
			return p.errorf(n, hcmerrors.ErrCodeParseFailed,
				"property '%s' is a path reference and must be of type reference or weakreference", name)
		}
		if !strings.HasPrefix(n.Value, "/") {
			return p.errorf(n, hcmerrors.ErrCodeInvalidPath, "property '%s' path '%s' must be absolute", name, n.Value)
		}
		return nil
	}

	var err error
	switch vt {
	case definition.TypeLong:
		_, err = strconv.ParseInt(n.Value, 0, 64)
	case definition.TypeDouble, definition.TypeDecimal:
		_, err = strconv.ParseFloat(n.Value, 64)
	case definition.TypeBoolean:
		_, err = strconv.ParseBool(n.Value)
	case definition.TypeDate:
		err = parseDate(n.Value)
	}
	if err != nil {
		return p.errorf(n, hcmerrors.ErrCodeParseFailed, "property '%s' value '%s' is not a valid %s", name, n.Value, vt)
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02t15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseDate(raw string) error {
	var err error
	for _, layout := range dateLayouts {
		if _, err = time.Parse(layout, raw); err == nil {
			return nil
		}
	}
	return err
}

// checkResource verifies that a resource referenced by a source exists.
// Paths starting with "/" are relative to the module root, others to the
// directory of the source.
func (p *sourceParser) checkResource(n *yaml.Node, ref string) error {
	var full string
	if strings.HasPrefix(ref, "/") {
		full = path.Join(p.moduleRoot, ref)
	} else {
		full = path.Join(p.moduleRoot, path.Dir(p.sourcePath), ref)
	}
	exists, err := afero.Exists(p.fs, full)
	if err != nil {
		return p.errorf(n, hcmerrors.ErrCodeFileNotFound, "cannot check resource '%s': %v", ref, err)
	}
	if !exists {
		return p.errorf(n, hcmerrors.ErrCodeFileNotFound, "resource '%s' not found", ref)
	}
	return nil
}

func (p *sourceParser) boolean(n *yaml.Node) (bool, error) {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!bool" {
		return false, p.errorf(n, hcmerrors.ErrCodeParseFailed, "expected a boolean")
	}
	return strconv.ParseBool(n.Value)
}

func (p *sourceParser) category(n *yaml.Node) (definition.Category, error) {
	c, err := definition.ParseCategory(n.Value)
	if err != nil {
		return definition.CategoryUnset, p.errorf(n, hcmerrors.ErrCodeParseFailed, "%v", err)
	}
	return c, nil
}

// eachPair walks a mapping in key order, rejecting duplicate keys.
func (p *sourceParser) eachPair(m *yaml.Node, fn func(key, value *yaml.Node) error) error {
	seen := make(map[string]bool, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, value := m.Content[i], m.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return p.errorf(key, hcmerrors.ErrCodeParseFailed, "mapping keys must be scalars")
		}
		if seen[key.Value] {
			return p.errorf(key, hcmerrors.ErrCodeParseFailed, "duplicate key '%s'", key.Value)
		}
		seen[key.Value] = true
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}
