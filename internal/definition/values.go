package definition

import (
	"fmt"
	"strings"
)

// Category classifies who owns a node or property.
type Category string

const (
	CategoryUnset   Category = ""
	CategoryConfig  Category = "config"
	CategoryContent Category = "content"
	CategorySystem  Category = "system"
	CategoryRuntime Category = "runtime"
)

// ParseCategory parses the value of a .meta:category directive.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryConfig, CategoryContent, CategorySystem, CategoryRuntime:
		return c, nil
	default:
		return CategoryUnset, fmt.Errorf("unrecognized category '%s' (expected config, content, system or runtime)", s)
	}
}

// ValueType is the JCR property type of a value.
type ValueType string

const (
	TypeString        ValueType = "string"
	TypeBinary        ValueType = "binary"
	TypeLong          ValueType = "long"
	TypeDouble        ValueType = "double"
	TypeDate          ValueType = "date"
	TypeBoolean       ValueType = "boolean"
	TypeName          ValueType = "name"
	TypePath          ValueType = "path"
	TypeReference     ValueType = "reference"
	TypeWeakReference ValueType = "weakreference"
	TypeURI           ValueType = "uri"
	TypeDecimal       ValueType = "decimal"
)

var valueTypes = map[string]ValueType{
	"string":        TypeString,
	"binary":        TypeBinary,
	"long":          TypeLong,
	"double":        TypeDouble,
	"date":          TypeDate,
	"boolean":       TypeBoolean,
	"name":          TypeName,
	"path":          TypePath,
	"reference":     TypeReference,
	"weakreference": TypeWeakReference,
	"uri":           TypeURI,
	"decimal":       TypeDecimal,
}

// ParseValueType parses the value of a property's "type" key.
func ParseValueType(s string) (ValueType, error) {
	if t, ok := valueTypes[strings.ToLower(s)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unrecognized value type '%s'", s)
}

// ValueKind describes how a value was written in the source.
type ValueKind int

const (
	// ValueLiteral is an inline value.
	ValueLiteral ValueKind = iota
	// ValueResource refers to a file next to the source.
	ValueResource
	// ValuePath refers to another node by path, resolved to its identifier on apply.
	ValuePath
)

// String returns the key used for the value kind in a property mapping.
func (k ValueKind) String() string {
	switch k {
	case ValueResource:
		return "resource"
	case ValuePath:
		return "path"
	default:
		return "value"
	}
}

// Value is a single property value in canonical string form.
type Value struct {
	Raw  string
	Type ValueType
	Kind ValueKind
}

// Equal reports whether two values are the same, including type and kind.
func (v Value) Equal(o Value) bool {
	return v.Raw == o.Raw && v.Type == o.Type && v.Kind == o.Kind
}

// PropertyOperation tells the tree builder how to merge a property.
type PropertyOperation string

const (
	OpReplace  PropertyOperation = "replace"
	OpAdd      PropertyOperation = "add"
	OpDelete   PropertyOperation = "delete"
	OpOverride PropertyOperation = "override"
)

// ParseOperation parses the value of a property's "operation" key.
func ParseOperation(s string) (PropertyOperation, error) {
	switch op := PropertyOperation(s); op {
	case OpReplace, OpAdd, OpDelete, OpOverride:
		return op, nil
	default:
		return "", fmt.Errorf("unrecognized operation '%s' (expected replace, add, delete or override)", s)
	}
}
