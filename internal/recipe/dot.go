package recipe

import (
	"fmt"
	"sort"
	"strings"
)

// namespaceColor gives each namespace a distinct fill color in the DOT
// export so `chariot graph --dot | dot -Tpng` reads at a glance.
var namespaceColor = map[Namespace]string{
	Source: "lightyellow",
	Host:   "lightblue",
	Target: "lightgreen",
}

// DOT renders the graph as Graphviz DOT source: one node per recipe,
// solid edges for ordinary dependencies, dashed edges for runtime
// dependencies. Purely a read-only diagnostic projection; it does not
// participate in build ordering.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph chariot {\n")
	b.WriteString("  rankdir=LR;\n")

	refs := make([]RecipeRef, 0, len(g.arena))
	for _, r := range g.arena {
		refs = append(refs, r.Ref())
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Namespace != refs[j].Namespace {
			return refs[i].Namespace < refs[j].Namespace
		}
		return refs[i].Name < refs[j].Name
	})

	for _, ref := range refs {
		fmt.Fprintf(&b, "  %q [label=%q style=filled fillcolor=%q];\n",
			ref.String(), ref.String(), namespaceColor[ref.Namespace])
	}

	for _, ref := range refs {
		r, _ := g.Lookup(ref)
		if r.Namespace != Source {
			if src := r.HostTarget.Source; src != nil && src.Resolved != nil {
				fmt.Fprintf(&b, "  %q -> %q [style=dotted];\n", ref.String(), src.Resolved.Ref().String())
			}
		}
		for _, dep := range r.Dependencies {
			style := "solid"
			if dep.Runtime {
				style = "dashed"
			}
			target := dep.Ref().String()
			if dep.Resolved != nil {
				target = dep.Resolved.Ref().String()
			}
			fmt.Fprintf(&b, "  %q -> %q [style=%s];\n", ref.String(), target, style)
		}
	}

	b.WriteString("}\n")
	return b.String()
}
