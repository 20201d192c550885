// Package recipe defines chariot's declarative unit of work — the
// recipe — and the dependency graph that binds recipes together.
//
// Recipes are stored in an arena (Graph.arena) and looked up by
// RecipeRef through an index rather than linked via raw pointers into
// a mutable map. A Dependency's Resolved field is a plain *Recipe
// obtained by arena lookup once, at resolution time; a cyclic
// dependency declaration in the input therefore yields cyclic Resolved
// pointers, which the build engine detects during its walk.
package recipe

// Namespace is the class of a recipe.
type Namespace string

const (
	Source Namespace = "source"
	Host   Namespace = "host"
	Target Namespace = "target"
)

func (n Namespace) String() string { return string(n) }

// Valid reports whether n is one of the three defined namespaces.
func (n Namespace) Valid() bool {
	switch n {
	case Source, Host, Target:
		return true
	default:
		return false
	}
}

// RecipeRef identifies a recipe by its (namespace, name) pair, which
// is unique within a loaded configuration.
type RecipeRef struct {
	Namespace Namespace
	Name      string
}

func (r RecipeRef) String() string { return string(r.Namespace) + "/" + r.Name }

// Dependency is an edge from a recipe to another recipe it depends on.
// Resolved is bound during Graph.Resolve and nil beforehand.
type Dependency struct {
	Namespace Namespace
	Name      string
	Runtime   bool
	Resolved  *Recipe
}

func (d *Dependency) Ref() RecipeRef { return RecipeRef{Namespace: d.Namespace, Name: d.Name} }

// SourceFields holds the fields meaningful only to a source-namespace
// recipe.
type SourceFields struct {
	URL   string
	Type  string // "tar.gz", "tar.xz", or "local"
	B2Sum string
	Patch string
	Strap string
}

// SourceRef is the optional reference from a host/target recipe to the
// source recipe providing its build tree.
type SourceRef struct {
	Name     string
	Resolved *Recipe
}

// HostTargetFields holds the fields meaningful only to a host- or
// target-namespace recipe.
type HostTargetFields struct {
	Source    *SourceRef
	Configure string
	Build     string
	Install   string
}

// Status is the mutable, per-process state of a recipe. Both flags
// start false; they are never persisted across process invocations.
type Status struct {
	Built       bool
	Invalidated bool
}

// Recipe is a single arena-resident record. Exactly one of Source or
// HostTarget is meaningful, selected by Namespace.
type Recipe struct {
	Namespace    Namespace
	Name         string
	Description  string
	Dependencies []*Dependency

	Source     SourceFields
	HostTarget HostTargetFields

	Status Status
}

// Ref returns the recipe's identifying reference.
func (r *Recipe) Ref() RecipeRef { return RecipeRef{Namespace: r.Namespace, Name: r.Name} }

// RequiresB2Sum reports whether the recipe's archive type requires a
// checksum to be present.
func (r *Recipe) RequiresB2Sum() bool {
	return r.Source.Type == "tar.gz" || r.Source.Type == "tar.xz"
}
