// Package nodename encodes and validates repository node names.
//
// Encode/Decode escape characters that are illegal in node names as
// _xHHHH_ sequences. URIName turns a display name into a lower-case,
// URL-friendly node name, and CopyNameHelper picks a free name for a
// copied node.
package nodename

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const illegalChars = "/:[]*|'\""

var (
	escapePattern = regexp.MustCompile(`_x([0-9a-fA-F]{4})_`)
	escapePrefix  = regexp.MustCompile(`^_x[0-9a-fA-F]{4}_`)
)

func needsEscape(r rune) bool {
	return strings.ContainsRune(illegalChars, r) || r < 0x20 || r == 0x7f
}

func writeEscaped(b *strings.Builder, r rune) {
	fmt.Fprintf(b, "_x%04x_", r)
}

// Encode escapes every character that may not appear in a node name.
// An underscore that would otherwise start an escape sequence is escaped
// as well, so Decode(Encode(s)) == s.
func Encode(name string) string {
	if name == "." || name == ".." {
		var b strings.Builder
		for _, r := range name {
			writeEscaped(&b, r)
		}
		return b.String()
	}

	var b strings.Builder
	for i, r := range name {
		switch {
		case needsEscape(r):
			writeEscaped(&b, r)
		case r == '_' && escapePrefix.MatchString(name[i:]):
			writeEscaped(&b, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Decode reverses Encode.
func Decode(name string) string {
	return escapePattern.ReplaceAllStringFunc(name, func(m string) string {
		code, err := strconv.ParseUint(m[2:6], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
}

// SplitIndex splits a same-name-sibling index off a name: "foo[2]" yields
// ("foo", 2). Names without an index have index 1.
func SplitIndex(name string) (string, int, error) {
	if !strings.HasSuffix(name, "]") {
		return name, 1, nil
	}
	open := strings.LastIndex(name, "[")
	if open <= 0 {
		return "", 0, fmt.Errorf("invalid same-name-sibling index in '%s'", name)
	}
	index, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil || index < 1 {
		return "", 0, fmt.Errorf("invalid same-name-sibling index in '%s'", name)
	}
	return name[:open], index, nil
}

// Normalize drops a redundant [1] index: "foo[1]" becomes "foo".
func Normalize(name string) (string, error) {
	base, index, err := SplitIndex(name)
	if err != nil {
		return "", err
	}
	return WithIndex(base, index), nil
}

// WithIndex formats a base name and same-name-sibling index.
func WithIndex(base string, index int) string {
	if index <= 1 {
		return base
	}
	return fmt.Sprintf("%s[%d]", base, index)
}

// Validate checks a (possibly prefixed and indexed) node or property name.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	base, _, err := SplitIndex(name)
	if err != nil {
		return err
	}

	local := base
	if i := strings.Index(base, ":"); i >= 0 {
		prefix := base[:i]
		local = base[i+1:]
		if prefix == "" || strings.ContainsAny(prefix, illegalChars) {
			return fmt.Errorf("invalid namespace prefix in '%s'", name)
		}
	}

	if local == "" {
		return fmt.Errorf("local name of '%s' must not be empty", name)
	}
	if local == "." || local == ".." {
		return fmt.Errorf("'%s' is not a valid name", name)
	}
	if strings.TrimSpace(local) != local {
		return fmt.Errorf("name '%s' must not start or end with whitespace", name)
	}
	for _, r := range local {
		if needsEscape(r) {
			return fmt.Errorf("name '%s' contains illegal character %q", name, r)
		}
	}
	return nil
}

// URIName converts a display name into a lower-case node name made of
// letters, digits, '.', '_' and '-'. Diacritics are stripped.
func URIName(display string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, display)
	if err != nil {
		folded = display
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
