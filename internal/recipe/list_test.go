package recipe

import "testing"

func TestListAddDeduplicates(t *testing.T) {
	l := NewList()
	ref := RecipeRef{Namespace: Host, Name: "gcc"}

	if !l.Add(ref) {
		t.Error("expected first Add to report newly added")
	}
	if l.Add(ref) {
		t.Error("expected second Add of the same ref to report false")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
	if !l.Contains(ref) {
		t.Error("expected Contains(ref) to be true")
	}
}

func TestListRefsPreservesInsertionOrder(t *testing.T) {
	l := NewList()
	a := RecipeRef{Namespace: Source, Name: "a"}
	b := RecipeRef{Namespace: Source, Name: "b"}
	l.Add(b)
	l.Add(a)

	refs := l.Refs()
	if len(refs) != 2 || refs[0] != b || refs[1] != a {
		t.Errorf("Refs() = %v, want [b, a]", refs)
	}
}
