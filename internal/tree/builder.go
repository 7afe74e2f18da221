package tree

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conneroisu/hcm/internal/definition"
	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/nodename"
)

// Warning is a non-fatal finding of a merge.
type Warning struct {
	Message string
	Origin  definition.Origin
}

// String renders the warning with its origin.
func (w Warning) String() string {
	return fmt.Sprintf("%s (%s)", w.Message, w.Origin)
}

// Builder merges config definitions, in the order they are pushed, into a
// single tree rooted at "/".
type Builder struct {
	root     *Node
	warnings []Warning
	uuids    map[string]string
}

// NewBuilder creates a builder whose tree holds only a rep:root typed root.
func NewBuilder() *Builder {
	root := newNode("", nil)
	root.addProperty(&Property{
		name:      definition.PrimaryType,
		parent:    root,
		valueType: definition.TypeName,
		values:    []definition.Value{{Raw: "rep:root", Type: definition.TypeName}},
	})
	return &Builder{root: root, uuids: make(map[string]string)}
}

// Root returns the merged tree.
func (b *Builder) Root() *Node { return b.root }

// Warnings returns the warnings collected so far, in push order.
func (b *Builder) Warnings() []Warning {
	out := make([]Warning, len(b.warnings))
	copy(out, b.warnings)
	return out
}

func (b *Builder) warn(origin definition.Origin, format string, args ...interface{}) {
	b.warnings = append(b.warnings, Warning{Message: fmt.Sprintf(format, args...), Origin: origin})
}

func mergeError(code string, origin definition.Origin, format string, args ...interface{}) *hcmerrors.HcmError {
	return hcmerrors.NewDefinitionError(code, fmt.Sprintf(format, args...)).
		WithModule(origin.Module).
		WithLocation(origin.Source, origin.Line, origin.Column)
}

// Push merges the root item of one config definition into the tree.
func (b *Builder) Push(def *definition.Node) error {
	if def.Path == "/" {
		return b.mergeNode(b.root, def)
	}

	segments := definition.SplitPath(def.Path)
	parent := b.root
	for _, seg := range segments[:len(segments)-1] {
		next := parent.Node(seg)
		if next == nil {
			if s, ok := parent.ChildNodeCategory(seg); ok && s.Category != definition.CategoryConfig {
				return mergeError(hcmerrors.ErrCodeCategoryConflict, def.Origin,
					"definition rooted at '%s' lies below '%s', which has category '%s' (set at %s)",
					def.Path, definition.JoinPath(parent.Path(), seg), s.Category, s.Origin)
			}
			return mergeError(hcmerrors.ErrCodeMissingParent, def.Origin,
				"definition rooted at '%s' cannot be merged: parent node '%s' does not exist",
				def.Path, definition.ParentPath(def.Path))
		}
		parent = next
	}

	return b.mergeChild(parent, def)
}

func (b *Builder) mergeChild(parent *Node, def *definition.Node) error {
	name, err := nodename.Normalize(def.Name)
	if err != nil {
		return mergeError(hcmerrors.ErrCodeInvalidSiblingIndex, def.Origin, "%v", err)
	}

	if def.Category != definition.CategoryUnset {
		done, err := b.applyNodeCategory(parent, name, def)
		if err != nil || done {
			return err
		}
	}

	if existing := parent.Node(name); existing != nil {
		return b.mergeNode(existing, def)
	}

	if def.Delete {
		return mergeError(hcmerrors.ErrCodeDeleteMissing, def.Origin,
			"trying to delete node '%s' that does not exist", def.Path)
	}

	if s, ok := parent.childNodeCategories[name]; ok && s.Category != definition.CategoryConfig {
		return mergeError(hcmerrors.ErrCodeCategoryConflict, def.Origin,
			"node '%s' has category '%s' (set at %s) and cannot be defined as config",
			def.Path, s.Category, s.Origin)
	}

	if def.Category == definition.CategoryConfig && !def.HasContent() && def.OrderBefore == nil {
		return nil
	}

	return b.createNode(parent, name, def)
}

// applyNodeCategory handles .meta:category on a node item. It reports done
// when nothing else is left to merge.
func (b *Builder) applyNodeCategory(parent *Node, name string, def *definition.Node) (bool, error) {
	if def.Category == definition.CategoryConfig {
		delete(parent.childNodeCategories, name)
		return false, nil
	}

	if def.HasContent() || def.Delete || def.OrderBefore != nil {
		return true, mergeError(hcmerrors.ErrCodeCategoryWithContent, def.Origin,
			"node '%s' sets .meta:category '%s' and must not define anything else",
			def.Path, def.Category)
	}

	if removed := parent.removeNode(name); removed != nil {
		b.forgetUUIDs(removed)
	}
	parent.childNodeCategories[name] = CategorySetting{Category: def.Category, Origin: def.Origin}
	return true, nil
}

func (b *Builder) createNode(parent *Node, name string, def *definition.Node) error {
	if pt := def.Property(definition.PrimaryType); pt == nil || pt.Operation == definition.OpDelete {
		return mergeError(hcmerrors.ErrCodeMissingPrimaryType, def.Origin,
			"node '%s' is new and must define %s", def.Path, definition.PrimaryType)
	}

	base, index, _ := nodename.SplitIndex(name)
	if index > 1 && parent.Node(nodename.WithIndex(base, index-1)) == nil {
		return mergeError(hcmerrors.ErrCodeInvalidSiblingIndex, def.Origin,
			"node '%s' cannot be created: '%s' does not exist",
			def.Path, definition.JoinPath(parent.Path(), nodename.WithIndex(base, index-1)))
	}

	node := newNode(name, parent)
	parent.addNode(node)
	return b.mergeNode(node, def)
}

func (b *Builder) mergeNode(node *Node, def *definition.Node) error {
	if def.Delete {
		if def.HasContent() || def.HasMeta() {
			return mergeError(hcmerrors.ErrCodeDeleteWithContent, def.Origin,
				"node '%s' is deleted and must not define anything else", def.Path)
		}
		if node.IsRoot() {
			return mergeError(hcmerrors.ErrCodeDeleteRoot, def.Origin, "the root node cannot be deleted")
		}
		node.parent.removeNode(node.name)
		b.forgetUUIDs(node)
		return nil
	}

	node.definitions = append(node.definitions, def)

	if def.OrderBefore != nil {
		if err := b.orderBefore(node, def); err != nil {
			return err
		}
	}

	if def.IgnoreReorderedChildren != nil {
		node.ignoreReorderedChildren = *def.IgnoreReorderedChildren
	}

	switch def.ResidualChildNodeCategory {
	case definition.CategoryUnset:
	case definition.CategoryConfig:
		node.residualChildNodeCategory = definition.CategoryUnset
	default:
		node.residualChildNodeCategory = def.ResidualChildNodeCategory
	}

	for _, p := range def.Properties {
		if err := b.mergeProperty(node, p); err != nil {
			return err
		}
	}

	for _, child := range def.Nodes {
		if err := b.mergeChild(node, child); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) orderBefore(node *Node, def *definition.Node) error {
	if node.IsRoot() {
		return mergeError(hcmerrors.ErrCodeInvalidOrderBefore, def.Origin,
			"the root node cannot be reordered")
	}

	target := *def.OrderBefore
	if target == "" {
		node.parent.orderBefore(node, nil)
		return nil
	}

	normalized, err := nodename.Normalize(target)
	if err != nil {
		return mergeError(hcmerrors.ErrCodeInvalidOrderBefore, def.Origin, "%v", err)
	}
	if normalized == node.name {
		return mergeError(hcmerrors.ErrCodeInvalidOrderBefore, def.Origin,
			"node '%s' cannot be ordered before itself", def.Path)
	}

	sibling := node.parent.Node(normalized)
	if sibling == nil {
		return mergeError(hcmerrors.ErrCodeInvalidOrderBefore, def.Origin,
			"invalid .meta:order-before '%s' for node '%s': no sibling with that name",
			target, def.Path)
	}

	node.parent.orderBefore(node, sibling)
	return nil
}

func (b *Builder) mergeProperty(node *Node, def *definition.Property) error {
	if def.Category != definition.CategoryUnset {
		done, err := b.applyPropertyCategory(node, def)
		if err != nil || done {
			return err
		}
	}

	existing := node.propIndex[def.Name]

	if def.Operation == definition.OpDelete {
		if len(def.Values) > 0 {
			return mergeError(hcmerrors.ErrCodePropertyConflict, def.Origin,
				"property '%s' uses operation 'delete' and must not specify values", def.Path)
		}
		if existing == nil {
			return mergeError(hcmerrors.ErrCodeDeleteMissing, def.Origin,
				"trying to delete property '%s' that does not exist", def.Path)
		}
		if def.Name == definition.PrimaryType {
			return mergeError(hcmerrors.ErrCodePropertyConflict, def.Origin,
				"property '%s' cannot be deleted", def.Path)
		}
		node.removeProperty(def.Name)
		b.forgetPropertyUUIDs(existing)
		return nil
	}

	if s, ok := node.childPropertyCategories[def.Name]; ok && def.Category == definition.CategoryUnset &&
		s.Category != definition.CategoryConfig && s.Category != definition.CategorySystem {
		return mergeError(hcmerrors.ErrCodeCategoryConflict, def.Origin,
			"property '%s' has category '%s' (set at %s) and cannot be defined as config",
			def.Path, s.Category, s.Origin)
	}

	if def.Name == definition.UUID {
		if err := b.checkUUIDs(node, def); err != nil {
			return err
		}
	}

	if existing == nil {
		p := &Property{
			name:        def.Name,
			parent:      node,
			valueType:   def.Type,
			multiple:    def.Multiple,
			values:      cloneValues(def.Values),
			definitions: []*definition.Property{def},
		}
		node.addProperty(p)
		b.rememberUUIDs(p)
		return nil
	}

	if err := b.mergeExistingProperty(existing, def); err != nil {
		return err
	}
	existing.definitions = append(existing.definitions, def)
	b.rememberUUIDs(existing)
	return nil
}

func (b *Builder) mergeExistingProperty(existing *Property, def *definition.Property) error {
	switch def.Operation {
	case definition.OpOverride:
		b.forgetPropertyUUIDs(existing)
		existing.valueType = def.Type
		existing.multiple = def.Multiple
		existing.values = cloneValues(def.Values)
		return nil

	case definition.OpAdd:
		if !existing.multiple || !def.Multiple {
			return mergeError(hcmerrors.ErrCodePropertyConflict, def.Origin,
				"property '%s' uses operation 'add', which requires both definitions to be multi-valued (existing definition at %s)",
				def.Path, lastOrigin(existing))
		}
		if existing.valueType != def.Type {
			return mergeError(hcmerrors.ErrCodePropertyConflict, def.Origin,
				"property '%s' already exists with type '%s' (defined at %s), but type '%s' is requested",
				def.Path, existing.valueType, lastOrigin(existing), def.Type)
		}
		if def.Name == definition.MixinTypes {
			for _, v := range def.Values {
				if !containsValue(existing.values, v) {
					existing.values = append(existing.values, v)
				}
			}
			return nil
		}
		existing.values = append(existing.values, def.Values...)
		return nil
	}

	if def.Name == definition.PrimaryType {
		if !equalValues(existing.values, def.Values) {
			return mergeError(hcmerrors.ErrCodePrimaryTypeChange, def.Origin,
				"redefining node type of '%s' from '%s' to '%s' requires 'operation: override'",
				existing.parent.Path(), rawValues(existing.values), rawValues(def.Values))
		}
		b.warn(def.Origin, "property '%s' specifies value equivalent to existing property, defined at %s",
			def.Path, lastOrigin(existing))
		return nil
	}

	if existing.valueType != def.Type {
		return mergeError(hcmerrors.ErrCodePropertyConflict, def.Origin,
			"property '%s' already exists with type '%s' (defined at %s), but type '%s' is requested",
			def.Path, existing.valueType, lastOrigin(existing), def.Type)
	}
	if existing.multiple != def.Multiple {
		return mergeError(hcmerrors.ErrCodePropertyConflict, def.Origin,
			"property '%s' already exists with %s (defined at %s), but %s is requested",
			def.Path, multiplicity(existing.multiple), lastOrigin(existing), multiplicity(def.Multiple))
	}

	if def.Name == definition.MixinTypes {
		for _, v := range existing.values {
			if !containsValue(def.Values, v) {
				return mergeError(hcmerrors.ErrCodeMixinRemoval, def.Origin,
					"property '%s' drops mixin '%s' (defined at %s), which requires 'operation: override'",
					def.Path, v.Raw, lastOrigin(existing))
			}
		}
	}

	if equalValues(existing.values, def.Values) {
		b.warn(def.Origin, "property '%s' specifies value equivalent to existing property, defined at %s",
			def.Path, lastOrigin(existing))
		return nil
	}

	b.forgetPropertyUUIDs(existing)
	existing.values = cloneValues(def.Values)
	return nil
}

// applyPropertyCategory handles .meta:category on a property item.
func (b *Builder) applyPropertyCategory(node *Node, def *definition.Property) (bool, error) {
	switch def.Category {
	case definition.CategoryConfig:
		delete(node.childPropertyCategories, def.Name)
		return len(def.Values) == 0 && def.Operation != definition.OpDelete, nil

	case definition.CategorySystem:
		node.childPropertyCategories[def.Name] = CategorySetting{Category: def.Category, Origin: def.Origin}
		if len(def.Values) > 0 {
			return false, nil
		}

	default:
		if len(def.Values) > 0 {
			return true, mergeError(hcmerrors.ErrCodeCategoryWithContent, def.Origin,
				"property '%s' sets .meta:category '%s' and must not specify values", def.Path, def.Category)
		}
		node.childPropertyCategories[def.Name] = CategorySetting{Category: def.Category, Origin: def.Origin}
	}

	if removed := node.removeProperty(def.Name); removed != nil {
		b.forgetPropertyUUIDs(removed)
	}
	return true, nil
}

func (b *Builder) checkUUIDs(node *Node, def *definition.Property) error {
	path := definition.JoinPath(node.Path(), def.Name)
	for _, v := range def.Values {
		if _, err := uuid.Parse(v.Raw); err != nil {
			return mergeError(hcmerrors.ErrCodeInvalidUUID, def.Origin,
				"property '%s' holds '%s', which is not a valid UUID", path, v.Raw)
		}
		if owner, taken := b.uuids[strings.ToLower(v.Raw)]; taken && owner != path {
			return mergeError(hcmerrors.ErrCodeDuplicateUUID, def.Origin,
				"property '%s' reuses UUID '%s' already held by '%s'", path, v.Raw, owner)
		}
	}
	return nil
}

func (b *Builder) rememberUUIDs(p *Property) {
	if p.name != definition.UUID {
		return
	}
	for _, v := range p.values {
		b.uuids[strings.ToLower(v.Raw)] = p.Path()
	}
}

func (b *Builder) forgetPropertyUUIDs(p *Property) {
	if p.name != definition.UUID {
		return
	}
	for _, v := range p.values {
		delete(b.uuids, strings.ToLower(v.Raw))
	}
}

func (b *Builder) forgetUUIDs(n *Node) {
	_ = n.Walk(func(node *Node) error {
		if p := node.propIndex[definition.UUID]; p != nil {
			b.forgetPropertyUUIDs(p)
		}
		return nil
	})
}

func lastOrigin(p *Property) definition.Origin {
	if len(p.definitions) == 0 {
		return definition.Origin{Source: "<builtin>"}
	}
	return p.definitions[len(p.definitions)-1].Origin
}

func multiplicity(multiple bool) string {
	if multiple {
		return "multiple values"
	}
	return "a single value"
}

func cloneValues(in []definition.Value) []definition.Value {
	out := make([]definition.Value, len(in))
	copy(out, in)
	return out
}

func equalValues(a, b []definition.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func containsValue(values []definition.Value, v definition.Value) bool {
	for _, existing := range values {
		if existing.Raw == v.Raw {
			return true
		}
	}
	return false
}

func rawValues(values []definition.Value) string {
	raw := make([]string, len(values))
	for i, v := range values {
		raw[i] = v.Raw
	}
	return strings.Join(raw, ", ")
}
