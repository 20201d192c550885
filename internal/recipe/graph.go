package recipe

import (
	"fmt"

	"github.com/chariot-build/chariot/internal/errs"
)

// Graph is the recipe arena plus an index for (namespace, name)
// lookups. It is the resolution pass's output and the build engine's
// input.
type Graph struct {
	arena []*Recipe
	index map[RecipeRef]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[RecipeRef]int)}
}

// Add inserts r into the arena. Duplicate (namespace, name) pairs are
// rejected, satisfying the graph's uniqueness invariant at load time.
func (g *Graph) Add(r *Recipe) error {
	ref := r.Ref()
	if _, exists := g.index[ref]; exists {
		return errs.New(errs.ConfigParse, ref.String(), fmt.Errorf("duplicate recipe %s", ref))
	}
	g.index[ref] = len(g.arena)
	g.arena = append(g.arena, r)
	return nil
}

// Lookup returns the recipe for ref, if present.
func (g *Graph) Lookup(ref RecipeRef) (*Recipe, bool) {
	idx, ok := g.index[ref]
	if !ok {
		return nil, false
	}
	return g.arena[idx], true
}

// All returns every recipe in the graph, in insertion order.
func (g *Graph) All() []*Recipe {
	out := make([]*Recipe, len(g.arena))
	copy(out, g.arena)
	return out
}

// Resolve binds every Dependency.Resolved and HostTarget.Source.Resolved
// pointer across the arena. An edge naming a recipe absent from the
// graph is a fatal ConfigResolve error.
func (g *Graph) Resolve() error {
	for _, r := range g.arena {
		for _, dep := range r.Dependencies {
			target, ok := g.Lookup(dep.Ref())
			if !ok {
				return errs.New(errs.ConfigResolve, r.Ref().String(),
					fmt.Errorf("unresolved dependency %s", dep.Ref()))
			}
			dep.Resolved = target
		}

		if r.Namespace == Host || r.Namespace == Target {
			if src := r.HostTarget.Source; src != nil && src.Name != "" {
				ref := RecipeRef{Namespace: Source, Name: src.Name}
				target, ok := g.Lookup(ref)
				if !ok {
					return errs.New(errs.ConfigResolve, r.Ref().String(),
						fmt.Errorf("unresolved source %s", ref))
				}
				src.Resolved = target
			}
		}
	}
	return nil
}
