package recipe

// List is an ordered set of recipe references with unique membership,
// used by the build engine to avoid re-staging dependencies and to
// hold the CLI's force-list.
type List struct {
	order []RecipeRef
	seen  map[RecipeRef]bool
}

// NewList returns an empty List.
func NewList() *List {
	return &List{seen: make(map[RecipeRef]bool)}
}

// Add appends ref if not already present, returning true when it was
// newly added.
func (l *List) Add(ref RecipeRef) bool {
	if l.seen[ref] {
		return false
	}
	l.seen[ref] = true
	l.order = append(l.order, ref)
	return true
}

// Contains reports whether ref has already been added.
func (l *List) Contains(ref RecipeRef) bool {
	return l.seen[ref]
}

// Refs returns the references in insertion order.
func (l *List) Refs() []RecipeRef {
	out := make([]RecipeRef, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of distinct references held.
func (l *List) Len() int { return len(l.order) }
