//go:build property
// +build property

package orderable

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// acyclic builds items n0..n(k-1) where item i may only depend on items with
// a lower index, which guarantees a valid order exists.
func acyclic(edges []int) []item {
	items := make([]item, len(edges))
	for i := range edges {
		var after []string
		if i > 0 {
			for j := 0; j < i; j++ {
				if (edges[i]>>uint(j%16))&1 == 1 {
					after = append(after, fmt.Sprintf("n%02d", j))
				}
			}
		}
		items[i] = item{name: fmt.Sprintf("n%02d", i), after: after}
	}
	return items
}

func TestSorterProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every dependency precedes its dependent", prop.ForAll(
		func(edges []int) bool {
			items := acyclic(edges)
			sorted, err := NewSorter[item]("module").Sort(items)
			if err != nil {
				return false
			}

			pos := make(map[string]int, len(sorted))
			for i, s := range sorted {
				pos[s.name] = i
			}
			for _, s := range sorted {
				for _, dep := range s.after {
					if pos[dep] >= pos[s.name] {
						return false
					}
				}
			}
			return len(sorted) == len(items)
		},
		gen.SliceOfN(12, gen.IntRange(0, 1<<12)),
	))

	properties.Property("order is independent of input order", prop.ForAll(
		func(edges []int) bool {
			items := acyclic(edges)
			reversed := make([]item, len(items))
			for i := range items {
				reversed[len(items)-1-i] = items[i]
			}

			a, errA := NewSorter[item]("module").Sort(items)
			b, errB := NewSorter[item]("module").Sort(reversed)
			if errA != nil || errB != nil {
				return false
			}
			for i := range a {
				if a[i].name != b[i].name {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(10, gen.IntRange(0, 1<<10)),
	))

	properties.Property("closing a chain into a ring is always rejected", prop.ForAll(
		func(n int) bool {
			items := make([]item, n)
			for i := 0; i < n; i++ {
				items[i] = item{name: fmt.Sprintf("n%02d", i), after: []string{fmt.Sprintf("n%02d", (i+1)%n)}}
			}
			_, err := NewSorter[item]("group").Sort(items)
			_, isCycle := err.(*CircularDependencyError)
			return isCycle
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
