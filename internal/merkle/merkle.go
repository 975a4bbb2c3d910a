// Package merkle computes per-file content hashes and aggregates them
// into a directory hash tree, giving O(changed files) change detection
// for incremental updates.
package merkle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Tree maps repository-relative file paths (slash-separated) to
// SHA-256 content hashes, with a derived cache of interior directory
// hashes invalidated along ancestor paths on leaf change.
type Tree struct {
	Leaves map[string]string

	interiors map[string]string // dir path ("" = repo root) → hash
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{Leaves: make(map[string]string)}
}

// HashBytes returns the hex SHA-256 of a byte slice.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex SHA-256 of a file's raw bytes, read in
// chunks so large files do not load fully into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFiles hashes a set of files (relative path → absolute path) in
// parallel and returns the resulting tree.
func HashFiles(ctx context.Context, files map[string]string) (*Tree, error) {
	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	hashes := make([]string, len(rels))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, rel := range rels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := HashFile(files[rel])
			if err != nil {
				return err
			}
			hashes[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := NewTree()
	for i, rel := range rels {
		t.Leaves[rel] = hashes[i]
	}
	return t, nil
}

// Set inserts or updates a leaf and invalidates interior hashes on the
// path from the leaf to the root.
func (t *Tree) Set(relPath, hash string) {
	t.Leaves[relPath] = hash
	t.invalidate(relPath)
}

// Remove deletes a leaf and invalidates its ancestor path.
func (t *Tree) Remove(relPath string) {
	delete(t.Leaves, relPath)
	t.invalidate(relPath)
}

func (t *Tree) invalidate(relPath string) {
	if t.interiors == nil {
		return
	}
	dir := path.Dir(relPath)
	for {
		if dir == "." || dir == "/" {
			dir = ""
		}
		delete(t.interiors, dir)
		if dir == "" {
			return
		}
		dir = path.Dir(dir)
	}
}

// Root returns the root hash over the whole tree. An empty tree has a
// stable root (hash of no entries).
func (t *Tree) Root() string {
	return t.dirHash("")
}

// InteriorHash returns the hash of one directory ("" for the root) and
// whether that directory has any leaves beneath it.
func (t *Tree) InteriorHash(dir string) (string, bool) {
	if dir != "" && !t.hasLeavesUnder(dir) {
		return "", false
	}
	return t.dirHash(dir), true
}

func (t *Tree) hasLeavesUnder(dir string) bool {
	prefix := dir + "/"
	for p := range t.Leaves {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// dirHash computes (and caches) the interior hash of a directory:
// SHA-256 over the sorted (name, hash) pairs of its direct children,
// where a file child contributes its leaf hash and a directory child
// its own interior hash.
func (t *Tree) dirHash(dir string) string {
	if t.interiors == nil {
		t.interiors = make(map[string]string)
	}
	if h, ok := t.interiors[dir]; ok {
		return h
	}

	type entry struct {
		name  string
		isDir bool
	}
	children := make(map[string]bool) // name → isDir
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	for p := range t.Leaves {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			children[rest[:i]] = true
		} else if rest != "" {
			children[rest] = false
		}
	}

	entries := make([]entry, 0, len(children))
	for name, isDir := range children {
		entries = append(entries, entry{name, isDir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	h := sha256.New()
	for _, e := range entries {
		var childHash string
		if e.isDir {
			childDir := e.name
			if dir != "" {
				childDir = prefix + e.name
			}
			childHash = t.dirHash(childDir)
		} else {
			childHash = t.Leaves[prefix+e.name]
		}
		io.WriteString(h, e.name)
		io.WriteString(h, "\x00")
		io.WriteString(h, childHash)
		io.WriteString(h, "\x00")
	}
	sum := hex.EncodeToString(h.Sum(nil))
	t.interiors[dir] = sum
	return sum
}

// ChangeSet is the outcome of diffing two trees.
type ChangeSet struct {
	Modified []string
	Added    []string
	Deleted  []string
}

// Empty reports whether no file changed.
func (c ChangeSet) Empty() bool {
	return len(c.Modified) == 0 && len(c.Added) == 0 && len(c.Deleted) == 0
}

// Total returns the number of affected files.
func (c ChangeSet) Total() int {
	return len(c.Modified) + len(c.Added) + len(c.Deleted)
}

// Diff compares a stored tree against the current one. Slices come back
// sorted so downstream processing is deterministic.
func Diff(old, current *Tree) ChangeSet {
	var cs ChangeSet
	for p, h := range current.Leaves {
		oldHash, ok := old.Leaves[p]
		switch {
		case !ok:
			cs.Added = append(cs.Added, p)
		case oldHash != h:
			cs.Modified = append(cs.Modified, p)
		}
	}
	for p := range old.Leaves {
		if _, ok := current.Leaves[p]; !ok {
			cs.Deleted = append(cs.Deleted, p)
		}
	}
	sort.Strings(cs.Modified)
	sort.Strings(cs.Added)
	sort.Strings(cs.Deleted)
	return cs
}

// FromLeaves builds a tree from an existing path → hash map.
func FromLeaves(leaves map[string]string) *Tree {
	t := NewTree()
	for p, h := range leaves {
		t.Leaves[p] = h
	}
	return t
}
