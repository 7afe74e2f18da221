package nodename

import "fmt"

// CopyNameHelper picks display names for copies of a node such that the
// encoded node name does not collide with an existing sibling.
type CopyNameHelper struct {
	// Prefix is the localized "Copy of" text.
	Prefix string
	// Codec turns a display name into a node name. Defaults to URIName.
	Codec func(string) string
}

// NewCopyNameHelper creates a helper using URIName as codec.
func NewCopyNameHelper(prefix string) *CopyNameHelper {
	return &CopyNameHelper{Prefix: prefix, Codec: URIName}
}

// CopyName returns "<prefix> <name>", or "<prefix> <name> (n)" with the
// smallest n >= 2 whose encoded form is not taken according to exists.
func (h *CopyNameHelper) CopyName(name string, exists func(nodeName string) bool) string {
	codec := h.Codec
	if codec == nil {
		codec = URIName
	}

	candidate := name
	if h.Prefix != "" {
		candidate = h.Prefix + " " + name
	}
	if !exists(codec(candidate)) {
		return candidate
	}

	for i := 2; ; i++ {
		numbered := fmt.Sprintf("%s (%d)", candidate, i)
		if !exists(codec(numbered)) {
			return numbered
		}
	}
}
