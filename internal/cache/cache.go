// Package cache models the on-disk cache layout that is chariot's only
// persistent, shared mutable state. It is constructed once in main()
// from the resolved cache root and threaded explicitly through the
// build engine and container layer — never hidden behind package-level
// statics.
package cache

import "path/filepath"

// Cache is an explicit handle on the process-wide cache root.
type Cache struct {
	root string
}

// New returns a Cache rooted at root. root should already be an
// absolute, cleaned path (internal/config resolves it that way).
func New(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// RootfsDir is the base filesystem populated once by internal/rootfs.
func (c *Cache) RootfsDir() string { return filepath.Join(c.root, "rootfs") }

// PatchesDir holds user-supplied patch files.
func (c *Cache) PatchesDir() string { return filepath.Join(c.root, "patches") }

// PatchPath resolves a patch basename against PatchesDir.
func (c *Cache) PatchPath(name string) string { return filepath.Join(c.PatchesDir(), name) }

// RecipeDir returns <cache>/<namespace>/<name>, the per-recipe cache
// directory gating re-materialisation.
func (c *Cache) RecipeDir(namespace, name string) string {
	return filepath.Join(c.root, namespace, name)
}

// SourceDir returns the extracted+patched tree for a source recipe.
func (c *Cache) SourceDir(name string) string {
	return filepath.Join(c.RecipeDir("source", name), "src")
}

// ArchivePath returns the downloaded archive path for a source recipe.
func (c *Cache) ArchivePath(name string) string {
	return filepath.Join(c.RecipeDir("source", name), "archive")
}

// B2SumsPath returns the b2sum checksum manifest path for a source recipe.
func (c *Cache) B2SumsPath(name string) string {
	return filepath.Join(c.RecipeDir("source", name), "b2sums.txt")
}

// BuildDir returns the out-of-tree build directory for a host/target recipe.
func (c *Cache) BuildDir(namespace, name string) string {
	return filepath.Join(c.RecipeDir(namespace, name), "build")
}

// InstallDir returns the DESTDIR output directory for a host/target recipe.
func (c *Cache) InstallDir(namespace, name string) string {
	return filepath.Join(c.RecipeDir(namespace, name), "install")
}

// DepsDir returns the transient staging root for a given namespace
// (source, host, or target), cleaned before every recipe.
func (c *Cache) DepsDir(namespace string) string {
	return filepath.Join(c.root, "deps", namespace)
}

// DepsRoot returns <cache>/deps, the parent of the three per-namespace
// staging directories.
func (c *Cache) DepsRoot() string { return filepath.Join(c.root, "deps") }
