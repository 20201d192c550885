package recipe

import (
	"strings"
	"testing"

	"github.com/chariot-build/chariot/internal/errs"
)

func TestGraphAddRejectsDuplicate(t *testing.T) {
	g := NewGraph()
	r1 := &Recipe{Namespace: Source, Name: "libc"}
	r2 := &Recipe{Namespace: Source, Name: "libc"}

	if err := g.Add(r1); err != nil {
		t.Fatalf("unexpected error adding first recipe: %v", err)
	}
	err := g.Add(r2)
	if err == nil {
		t.Fatal("expected error adding duplicate recipe, got nil")
	}
	if !errs.Is(err, errs.ConfigParse) {
		t.Errorf("expected ConfigParse error kind, got %v", err)
	}
}

func TestGraphResolveBindsDependencies(t *testing.T) {
	g := NewGraph()
	libc := &Recipe{Namespace: Source, Name: "libc"}
	gcc := &Recipe{
		Namespace:    Host,
		Name:         "gcc",
		Dependencies: []*Dependency{{Namespace: Source, Name: "libc"}},
		HostTarget:   HostTargetFields{Source: &SourceRef{Name: "libc"}},
	}
	if err := g.Add(libc); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(gcc); err != nil {
		t.Fatal(err)
	}

	if err := g.Resolve(); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if gcc.Dependencies[0].Resolved != libc {
		t.Error("dependency not resolved to libc recipe")
	}
	if gcc.HostTarget.Source.Resolved != libc {
		t.Error("source reference not resolved to libc recipe")
	}
}

func TestGraphResolveUnresolvedDependencyIsFatal(t *testing.T) {
	g := NewGraph()
	gcc := &Recipe{
		Namespace:    Host,
		Name:         "gcc",
		Dependencies: []*Dependency{{Namespace: Source, Name: "missing"}},
	}
	if err := g.Add(gcc); err != nil {
		t.Fatal(err)
	}

	err := g.Resolve()
	if err == nil {
		t.Fatal("expected unresolved dependency error, got nil")
	}
	if !errs.Is(err, errs.ConfigResolve) {
		t.Errorf("expected ConfigResolve error kind, got %v", err)
	}
}

func TestGraphResolveUnresolvedSourceIsFatal(t *testing.T) {
	g := NewGraph()
	gcc := &Recipe{
		Namespace:  Host,
		Name:       "gcc",
		HostTarget: HostTargetFields{Source: &SourceRef{Name: "missing"}},
	}
	if err := g.Add(gcc); err != nil {
		t.Fatal(err)
	}

	err := g.Resolve()
	if err == nil || !errs.Is(err, errs.ConfigResolve) {
		t.Fatalf("expected ConfigResolve error, got %v", err)
	}
}

func TestDOTIncludesNamespaceAndEdges(t *testing.T) {
	g := NewGraph()
	libc := &Recipe{Namespace: Source, Name: "libc"}
	gcc := &Recipe{
		Namespace:    Host,
		Name:         "gcc",
		Dependencies: []*Dependency{{Namespace: Host, Name: "binutils", Runtime: true}},
	}
	binutils := &Recipe{Namespace: Host, Name: "binutils"}
	for _, r := range []*Recipe{libc, gcc, binutils} {
		if err := g.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.Resolve(); err != nil {
		t.Fatal(err)
	}

	dot := g.DOT()
	if !strings.Contains(dot, "digraph chariot") {
		t.Error("missing digraph header")
	}
	if !strings.Contains(dot, `"host/gcc" -> "host/binutils" [style=dashed]`) {
		t.Errorf("missing runtime dependency edge:\n%s", dot)
	}
}
