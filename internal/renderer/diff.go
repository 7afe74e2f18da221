package renderer

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/conneroisu/hcm/internal/tree"
)

// DiffContext is the number of unchanged lines shown around a change.
const DiffContext = 3

type lineOp struct {
	kind byte // ' ', '-' or '+'
	text string
}

// Diff renders a and b as YAML and returns a unified line diff, or "" when
// both render the same.
func Diff(a, b *tree.Node) (string, error) {
	left, err := RenderYAML(a)
	if err != nil {
		return "", err
	}
	right, err := RenderYAML(b)
	if err != nil {
		return "", err
	}
	return DiffText("a"+a.Path(), "b"+b.Path(), string(left), string(right)), nil
}

// DiffText returns a unified diff of two texts, or "" when they are equal.
func DiffText(leftName, rightName, left, right string) string {
	if left == right {
		return ""
	}

	ops := lineOps(left, right)

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", leftName, rightName)
	for _, h := range hunks(ops) {
		writeHunk(&b, ops, h)
	}
	return b.String()
}

func lineOps(left, right string) []lineOp {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	a, b, lines := dmp.DiffLinesToChars(left, right)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []lineOp
	for _, d := range diffs {
		kind := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line != "" {
				ops = append(ops, lineOp{kind: kind, text: line})
			}
		}
	}
	return ops
}

type hunk struct{ start, end int }

// hunks groups changed lines that are at most 2*DiffContext lines apart.
func hunks(ops []lineOp) []hunk {
	var out []hunk
	for i := 0; i < len(ops); i++ {
		if ops[i].kind == ' ' {
			continue
		}
		start := max(0, i-DiffContext)
		last := i
		for j := i + 1; j < len(ops) && j <= last+2*DiffContext; j++ {
			if ops[j].kind != ' ' {
				last = j
			}
		}
		end := min(len(ops), last+DiffContext+1)
		out = append(out, hunk{start: start, end: end})
		i = end - 1
	}
	return out
}

func writeHunk(b *strings.Builder, ops []lineOp, h hunk) {
	oldStart, newStart := 1, 1
	for _, op := range ops[:h.start] {
		if op.kind != '+' {
			oldStart++
		}
		if op.kind != '-' {
			newStart++
		}
	}

	oldCount, newCount := 0, 0
	for _, op := range ops[h.start:h.end] {
		if op.kind != '+' {
			oldCount++
		}
		if op.kind != '-' {
			newCount++
		}
	}
	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}

	fmt.Fprintf(b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
	for _, op := range ops[h.start:h.end] {
		b.WriteByte(op.kind)
		b.WriteString(op.text)
		if !strings.HasSuffix(op.text, "\n") {
			b.WriteString("\n\\ No newline at end of file\n")
		}
	}
}
