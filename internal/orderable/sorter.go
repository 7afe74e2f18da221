// Package orderable sorts named items that declare "after" dependencies on
// each other, such as configuration groups, projects and modules.
//
// Sorting is deterministic: items are first ordered by name, then emitted
// depth-first so that every dependency precedes the items naming it.
// Duplicate names, cycles and dependencies on unknown names are reported
// as typed errors that also carry an ordering error code.
package orderable

import (
	"fmt"
	"sort"
	"strings"

	hcmerrors "github.com/conneroisu/hcm/internal/errors"
)

// Orderable is an item that can be ordered by Sorter.
type Orderable interface {
	Name() string
	After() []string
}

// DuplicateNameError reports two items with the same name.
type DuplicateNameError struct {
	Kind string
	Name string
	err  *hcmerrors.HcmError
}

func (e *DuplicateNameError) Error() string { return e.err.Error() }
func (e *DuplicateNameError) Unwrap() error { return e.err }

// CircularDependencyError reports a dependency cycle. Cycle starts and ends
// with the same name.
type CircularDependencyError struct {
	Kind  string
	Cycle []string
	err   *hcmerrors.HcmError
}

func (e *CircularDependencyError) Error() string { return e.err.Error() }
func (e *CircularDependencyError) Unwrap() error { return e.err }

// MissingDependencyError reports a dependency on a name absent from the list.
type MissingDependencyError struct {
	Kind       string
	Name       string
	Dependency string
	err        *hcmerrors.HcmError
}

func (e *MissingDependencyError) Error() string { return e.err.Error() }
func (e *MissingDependencyError) Unwrap() error { return e.err }

func newDuplicateNameError(kind, name string) *DuplicateNameError {
	return &DuplicateNameError{
		Kind: kind,
		Name: name,
		err: hcmerrors.NewOrderingError(hcmerrors.ErrCodeDuplicateName,
			fmt.Sprintf("%s '%s' is defined more than once", kind, name)).
			WithContext("kind", kind),
	}
}

func newCircularDependencyError(kind string, cycle []string) *CircularDependencyError {
	return &CircularDependencyError{
		Kind:  kind,
		Cycle: cycle,
		err: hcmerrors.NewOrderingError(hcmerrors.ErrCodeCircularDependency,
			fmt.Sprintf("%s '%s' has a circular dependency: [%s]", kind, cycle[0], strings.Join(cycle, " -> "))).
			WithContext("kind", kind),
	}
}

func newMissingDependencyError(kind, name, dep string) *MissingDependencyError {
	return &MissingDependencyError{
		Kind:       kind,
		Name:       name,
		Dependency: dep,
		err: hcmerrors.NewOrderingError(hcmerrors.ErrCodeMissingDependency,
			fmt.Sprintf("%s '%s' has a missing dependency '%s'", kind, name, dep)).
			WithContext("kind", kind),
	}
}

type options struct {
	allowMissing bool
}

// Option configures a Sorter.
type Option func(*options)

// AllowMissing makes the sorter ignore dependencies on unknown names.
func AllowMissing() Option {
	return func(o *options) { o.allowMissing = true }
}

// Sorter orders items of one kind ("group", "project", "module").
type Sorter[T Orderable] struct {
	kind string
	opts options
}

// NewSorter creates a sorter; kind is used in error messages.
func NewSorter[T Orderable](kind string, opts ...Option) *Sorter[T] {
	s := &Sorter[T]{kind: kind}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

const (
	unvisited = iota
	visiting
	visited
)

// Sort returns the items in dependency order. The input slice is not modified.
func (s *Sorter[T]) Sort(items []T) ([]T, error) {
	byName := make(map[string]T, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		name := item.Name()
		if _, exists := byName[name]; exists {
			return nil, newDuplicateNameError(s.kind, name)
		}
		byName[name] = item
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]T, 0, len(items))
	state := make(map[string]int, len(items))
	path := make([]string, 0, len(items))

	var visit func(name string) error
	visit = func(name string) error {
		state[name] = visiting
		path = append(path, name)

		for _, dep := range sortedUnique(byName[name].After()) {
			if _, known := byName[dep]; !known {
				if s.opts.allowMissing {
					continue
				}
				return newMissingDependencyError(s.kind, name, dep)
			}

			switch state[dep] {
			case visiting:
				return newCircularDependencyError(s.kind, cycleFrom(path, dep))
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		state[name] = visited
		result = append(result, byName[name])
		return nil
	}

	for _, name := range names {
		if state[name] == unvisited {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

// cycleFrom extracts the cycle closing at dep from the current DFS path.
func cycleFrom(path []string, dep string) []string {
	start := 0
	for i, p := range path {
		if p == dep {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	return append(cycle, dep)
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
