package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chariot-build/chariot/internal/cache"
	"github.com/chariot-build/chariot/internal/container"
	"github.com/chariot-build/chariot/internal/progress"
	"github.com/chariot-build/chariot/internal/recipe"
)

// fakeRunner records every container.Context it was asked to run and
// always reports success, so materialisation tests never need a real
// namespace sandbox.
type fakeRunner struct {
	calls []*container.Context
	ctxs  []context.Context
}

func (f *fakeRunner) run(ctx context.Context, c *container.Context) (int, error) {
	f.calls = append(f.calls, c)
	f.ctxs = append(f.ctxs, ctx)
	for _, m := range c.Mounts {
		// Simulate the container populating /chariot/install so
		// dependency staging has something to find in later tests.
		if m.Dest == "/chariot/install" {
			os.MkdirAll(filepath.Join(m.Src, "usr", "local"), 0o755)
			os.WriteFile(filepath.Join(m.Src, "usr", "local", "marker"), []byte("x"), 0o644)
		}
	}
	return 0, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeRunner) {
	t.Helper()
	root := t.TempDir()
	c := cache.New(root)
	e := New(c, nil, progress.Noop(), 4)
	fr := &fakeRunner{}
	runContainer = fr.run
	t.Cleanup(func() { runContainer = container.Run })
	return e, fr
}

func sourceRecipe(name string) *recipe.Recipe {
	return &recipe.Recipe{
		Namespace: recipe.Source,
		Name:      name,
		Source: recipe.SourceFields{
			URL:  "/tmp/" + name,
			Type: "local",
		},
	}
}

func TestProcessRecipeSkipsAlreadyBuilt(t *testing.T) {
	e, fr := newTestEngine(t)
	r := sourceRecipe("a")
	r.Status.Built = true

	if err := e.ProcessRecipe(context.Background(), r, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fr.calls) != 0 {
		t.Errorf("expected no container invocations for an already-built recipe, got %d", len(fr.calls))
	}
}

func TestProcessRecipeSkipsWhenCacheDirExistsAndNotInvalidated(t *testing.T) {
	e, fr := newTestEngine(t)
	r := sourceRecipe("a")
	if err := os.MkdirAll(e.Cache.RecipeDir("source", "a"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := e.ProcessRecipe(context.Background(), r, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fr.calls) != 0 {
		t.Errorf("expected cache gate to skip materialisation, got %d container calls", len(fr.calls))
	}
	if r.Status.Built {
		t.Error("cache-gate skip must not itself set built = true")
	}
}

func TestProcessRecipeRebuildsWhenInvalidated(t *testing.T) {
	e, fr := newTestEngine(t)
	r := sourceRecipe("a")
	if err := os.MkdirAll(e.Cache.RecipeDir("source", "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(r.Source.URL, 0o755); err == nil {
		defer os.RemoveAll(r.Source.URL)
	}
	r.Status.Invalidated = true

	if err := e.ProcessRecipe(context.Background(), r, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fr.calls) != 0 {
		t.Errorf("local source materialisation does not use the container layer, got %d calls", len(fr.calls))
	}
	if !r.Status.Built {
		t.Error("expected invalidated recipe to rebuild and set built = true")
	}
}

func TestProcessRecipeDryRunSkipsMaterialisation(t *testing.T) {
	e, fr := newTestEngine(t)
	e.DryRun = true
	r := sourceRecipe("a")
	os.MkdirAll(r.Source.URL, 0o755)
	defer os.RemoveAll(r.Source.URL)

	if err := e.ProcessRecipe(context.Background(), r, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fr.calls) != 0 {
		t.Error("dry run must not invoke the container layer")
	}
	if r.Status.Built {
		t.Error("dry run must not set built = true")
	}
}

func TestContainerTimeoutBoundsStageInvocations(t *testing.T) {
	e, fr := newTestEngine(t)
	e.ContainerTimeout = time.Minute

	r := &recipe.Recipe{
		Namespace:  recipe.Host,
		Name:       "a",
		HostTarget: recipe.HostTargetFields{Configure: "true"},
	}

	require.NoError(t, e.ProcessRecipe(context.Background(), r, false))
	require.Len(t, fr.ctxs, 1)

	deadline, ok := fr.ctxs[0].Deadline()
	require.True(t, ok, "expected runStage to attach a deadline when ContainerTimeout is set")
	require.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestZeroContainerTimeoutLeavesContextUnbounded(t *testing.T) {
	e, fr := newTestEngine(t)

	r := &recipe.Recipe{
		Namespace:  recipe.Host,
		Name:       "a",
		HostTarget: recipe.HostTargetFields{Configure: "true"},
	}

	require.NoError(t, e.ProcessRecipe(context.Background(), r, false))
	require.Len(t, fr.ctxs, 1)

	_, ok := fr.ctxs[0].Deadline()
	require.False(t, ok, "expected no deadline when ContainerTimeout is zero")
}

func TestProcessRecipeDetectsCycle(t *testing.T) {
	e, _ := newTestEngine(t)
	a := &recipe.Recipe{Namespace: recipe.Host, Name: "a"}
	b := &recipe.Recipe{Namespace: recipe.Host, Name: "b"}
	a.Dependencies = []*recipe.Dependency{{Namespace: recipe.Host, Name: "b", Resolved: b}}
	b.Dependencies = []*recipe.Dependency{{Namespace: recipe.Host, Name: "a", Resolved: a}}

	if err := e.ProcessRecipe(context.Background(), a, false); err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestStageDependenciesHonoursRuntimeFlagTransitively(t *testing.T) {
	e, _ := newTestEngine(t)

	grand := &recipe.Recipe{Namespace: recipe.Host, Name: "grand"}
	mid := &recipe.Recipe{
		Namespace:    recipe.Host,
		Name:         "mid",
		Dependencies: []*recipe.Dependency{{Namespace: recipe.Host, Name: "grand", Runtime: true, Resolved: grand}},
	}
	top := &recipe.Recipe{
		Namespace:    recipe.Host,
		Name:         "top",
		Dependencies: []*recipe.Dependency{{Namespace: recipe.Host, Name: "mid", Runtime: false, Resolved: mid}},
	}

	// Pre-populate install dirs as if grand/mid were already built.
	os.MkdirAll(filepath.Join(e.Cache.InstallDir("host", "mid"), "usr", "local"), 0o755)
	os.WriteFile(filepath.Join(e.Cache.InstallDir("host", "mid"), "usr", "local", "mid-file"), []byte("x"), 0o644)
	os.MkdirAll(filepath.Join(e.Cache.InstallDir("host", "grand"), "usr", "local"), 0o755)
	os.WriteFile(filepath.Join(e.Cache.InstallDir("host", "grand"), "usr", "local", "grand-file"), []byte("x"), 0o644)

	require.NoError(t, e.stageDependencies(top), "stageDependencies failed")

	_, err := os.Stat(filepath.Join(e.Cache.DepsDir("host"), "mid-file"))
	require.NoError(t, err, "direct dependency 'mid' must always be staged")

	_, err = os.Stat(filepath.Join(e.Cache.DepsDir("host"), "grand-file"))
	require.NoError(t, err, "transitive dependency 'grand' reached via a runtime edge must be staged")
}

func TestStageDependenciesExcludesNonRuntimeTransitiveEdge(t *testing.T) {
	e, _ := newTestEngine(t)

	grand := &recipe.Recipe{Namespace: recipe.Host, Name: "grand"}
	mid := &recipe.Recipe{
		Namespace:    recipe.Host,
		Name:         "mid",
		Dependencies: []*recipe.Dependency{{Namespace: recipe.Host, Name: "grand", Runtime: false, Resolved: grand}},
	}
	top := &recipe.Recipe{
		Namespace:    recipe.Host,
		Name:         "top",
		Dependencies: []*recipe.Dependency{{Namespace: recipe.Host, Name: "mid", Runtime: false, Resolved: mid}},
	}

	os.MkdirAll(filepath.Join(e.Cache.InstallDir("host", "grand"), "usr", "local"), 0o755)
	os.WriteFile(filepath.Join(e.Cache.InstallDir("host", "grand"), "usr", "local", "grand-file"), []byte("x"), 0o644)

	require.NoError(t, e.stageDependencies(top), "stageDependencies failed")

	_, err := os.Stat(filepath.Join(e.Cache.DepsDir("host"), "grand-file"))
	require.Error(t, err, "non-runtime transitive edge must not be staged")
}
