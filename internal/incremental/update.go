// Package incremental patches an existing graph store from a hash diff
// instead of rebuilding it, falling back to a full rebuild when the
// store is missing or the change is structural.
package incremental

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codeatlas/codeatlas/internal/build"
	"github.com/codeatlas/codeatlas/internal/catalog"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/merkle"
	"github.com/codeatlas/codeatlas/internal/store"
	"github.com/codeatlas/codeatlas/internal/tag"
)

// loadCatalog is a seam for catalog failure injection in tests.
var loadCatalog = catalog.Load

// Options configures an update run.
type Options struct {
	RepoPath string
	GraphDir string
	// Force skips the diff and rebuilds the whole store.
	Force bool
}

// Report summarizes an update.
type Report struct {
	FilesChanged int
	FilesAdded   int
	FilesDeleted int
	NodesTouched int
	FullRebuild  bool
	Failures     []build.Failure
	Duration     time.Duration
}

// Update brings the graph store in line with the working tree. Only the
// files whose content hash changed are re-extracted; their partitions
// and the cross refs are rewritten, everything else is untouched. A
// file that fails extraction keeps its previous state in the store and
// is reported as a failure.
func Update(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()

	repoPath, err := filepath.Abs(opts.RepoPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(repoPath)
	if err != nil {
		return nil, err
	}
	graphDir := opts.GraphDir
	if graphDir == "" {
		graphDir = filepath.Join(repoPath, cfg.OutputDir)
	}

	manifest, err := store.LoadManifest(graphDir)
	if os.IsNotExist(err) || opts.Force {
		return fullRebuild(ctx, repoPath, graphDir, start, opts.Force)
	}
	if err != nil {
		return nil, err
	}

	filter := merkle.NewExclusionFilter(cfg.Exclude)
	files, manifestFiles, err := build.Discover(ctx, repoPath, filter)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	kept := files[:0]
	for _, f := range files {
		if cfg.LanguageEnabled(f.Language) {
			kept = append(kept, f)
		}
	}
	files = kept

	current, err := hashWorkingTree(ctx, files, manifestFiles)
	if err != nil {
		return nil, err
	}

	stored := merkle.FromLeaves(manifest.LeafHashes())
	cs := merkle.Diff(stored, current)
	if cs.Empty() {
		slog.Info("update.noop", "files", len(manifest.Files))
		return &Report{Duration: time.Since(start)}, nil
	}
	slog.Info("update.diff",
		"modified", len(cs.Modified), "added", len(cs.Added), "deleted", len(cs.Deleted))

	// Manifest edits change components and workspace membership, which
	// are global; take the rebuild path rather than patching.
	for _, p := range append(append(append([]string{}, cs.Modified...), cs.Added...), cs.Deleted...) {
		if _, ok := lang.ManifestForPath(p); ok {
			slog.Info("update.rebuild", "reason", "manifest_changed", "path", p)
			return fullRebuild(ctx, repoPath, graphDir, start, false)
		}
	}

	st, err := store.Open(graphDir)
	if err != nil {
		return nil, err
	}
	g, err := st.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(manifest.Roots) == 0 {
		return nil, fmt.Errorf("manifest has no roots")
	}
	root := manifest.Roots[0]

	byRel := make(map[string]build.FileInfo, len(files))
	for _, f := range files {
		byRel[f.RelPath] = f
	}

	report := &Report{}
	newTree := merkle.FromLeaves(manifest.LeafHashes())
	affected := map[string]bool{root.Name + "_root": true}

	for _, p := range cs.Deleted {
		report.NodesTouched += g.RemoveFile(p)
		newTree.Remove(p)
		affected[store.PartitionID(root.Name, p)] = true
		report.FilesDeleted++
	}

	catalogs := make(map[lang.Language]*catalog.Catalog)
	catalogErrs := make(map[lang.Language]error)
	var patched []*build.FileResult
	for _, group := range [2][]string{cs.Modified, cs.Added} {
		for _, p := range group {
			fi, ok := byRel[p]
			if !ok {
				continue
			}
			cat, ok := catalogs[fi.Language]
			if !ok {
				// A broken catalog disables its language for this run;
				// affected files keep their prior state and old leaf
				// hash, so they stay dirty and are retried later.
				if lerr, ok := catalogErrs[fi.Language]; ok {
					report.Failures = append(report.Failures, build.Failure{Path: p, Err: lerr.Error()})
					continue
				}
				cat, err = loadCatalog(fi.Language)
				if err != nil {
					slog.Error("update.catalog.failed", "language", fi.Language, "err", err)
					catalogErrs[fi.Language] = err
					report.Failures = append(report.Failures, build.Failure{Path: p, Err: err.Error()})
					continue
				}
				catalogs[fi.Language] = cat
			}

			fr := build.ProcessFile(fi, cat, cfg)
			if fr.Err != nil {
				// Prior state stays in place; the old leaf hash keeps
				// the file marked dirty so the next run retries it.
				report.Failures = append(report.Failures, build.Failure{Path: p, Err: fr.Err.Error()})
				slog.Warn("update.file.failed", "file", p, "err", fr.Err)
				continue
			}

			report.NodesTouched += patchFile(g, root.Name, fr)
			newTree.Set(p, fr.ContentHash)
			affected[store.PartitionID(root.Name, p)] = true
			patched = append(patched, fr)
		}
	}
	report.FilesChanged = countIn(cs.Modified, patched)
	report.FilesAdded = countIn(cs.Added, patched)

	resolvePatched(g, patched)

	if _, err := store.SavePartial(graphDir, g, newTree, root, affected); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	slog.Info("update.done",
		"changed", report.FilesChanged,
		"added", report.FilesAdded,
		"deleted", report.FilesDeleted,
		"nodes_touched", report.NodesTouched,
		"failures", len(report.Failures),
		"elapsed", report.Duration)
	return report, nil
}

func fullRebuild(ctx context.Context, repoPath, graphDir string, start time.Time, forced bool) (*Report, error) {
	br, err := build.Build(ctx, build.Options{RepoPath: repoPath, GraphDir: graphDir})
	if err != nil {
		return nil, err
	}
	reason := "no_manifest"
	if forced {
		reason = "forced"
	}
	slog.Info("update.rebuilt", "reason", reason, "files", br.Files)
	return &Report{
		FilesAdded:   br.Files,
		NodesTouched: br.Nodes,
		FullRebuild:  true,
		Failures:     br.Failures,
		Duration:     time.Since(start),
	}, nil
}

// hashWorkingTree hashes the current content of every indexable file.
func hashWorkingTree(ctx context.Context, files []build.FileInfo, manifests []build.ManifestFile) (*merkle.Tree, error) {
	paths := make(map[string]string, len(files)+len(manifests))
	for _, f := range files {
		paths[f.RelPath] = f.Path
	}
	for _, m := range manifests {
		paths[m.RelPath] = m.Path
	}
	return merkle.HashFiles(ctx, paths)
}

// patchFile replaces one file's subgraph: the old nodes and edges go,
// the fresh extraction comes in, and USES edges from other files into
// surviving node IDs are restored. Incoming edges whose target
// disappeared are retargeted to a placeholder so the referencing side
// keeps its dangling edge.
func patchFile(g *graph.Graph, repoID string, fr *build.FileResult) int {
	oldNames := make(map[string]string) // node ID -> name, for retargeting
	var incoming []graph.Edge
	for _, e := range g.Edges() {
		tn := g.Node(e.Target)
		sn := g.Node(e.Source)
		if tn != nil && tn.FilePath == fr.RelPath && (sn == nil || sn.FilePath != fr.RelPath) {
			incoming = append(incoming, e)
			oldNames[e.Target] = tn.Name
		}
	}

	touched := g.RemoveFile(fr.RelPath)
	for _, n := range fr.Nodes {
		g.AddNode(n)
	}
	touched += len(fr.Nodes)
	g.AddEdge(graph.Edge{Source: repoID, Target: fr.RelPath, Type: graph.EdgeContains})
	for _, e := range fr.Edges {
		g.AddEdge(e)
	}

	for _, e := range incoming {
		if g.Node(e.Target) != nil {
			g.AddEdge(e)
			continue
		}
		if e.Type != graph.EdgeUses {
			continue
		}
		name := oldNames[e.Target]
		pid := graph.PlaceholderID(name)
		if g.Node(pid) == nil {
			g.AddNode(graph.NewPlaceholderNode(name))
		}
		g.AddEdge(graph.Edge{Source: e.Source, Target: pid, Type: graph.EdgeUses})
	}
	return touched
}

// resolvePatched resolves the re-extracted files' references against
// the full patched graph: same-file definitions first, then a global
// name index over every stored node. The index mirrors the full-build
// pass exactly (files in sorted path order, byte order within a file,
// first writer wins, no file/component/placeholder entries), so an
// update resolves a name to the same definition a fresh build would.
func resolvePatched(g *graph.Graph, patched []*build.FileResult) {
	if len(patched) == 0 {
		return
	}
	indexable := make([]*graph.Node, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		if n.FilePath == "" || n.Kind == tag.KindFile || n.Kind == tag.KindComponent {
			continue
		}
		indexable = append(indexable, n)
	}
	sort.SliceStable(indexable, func(i, j int) bool {
		a, b := indexable[i], indexable[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.StartByte != b.StartByte {
			return a.StartByte < b.StartByte
		}
		return a.EndByte > b.EndByte
	})
	global := make(map[string]string, len(indexable))
	for _, n := range indexable {
		if _, ok := global[n.Name]; !ok {
			global[n.Name] = n.ID
		}
	}

	for _, fr := range patched {
		local := make(map[string]string)
		for _, n := range fr.Nodes {
			if n.Kind == tag.KindFile {
				continue
			}
			if _, ok := local[n.Name]; !ok {
				local[n.Name] = n.ID
			}
		}
		for _, ref := range fr.Refs {
			target, ok := local[ref.Name]
			if !ok {
				target, ok = global[ref.Name]
			}
			if ok {
				if target != ref.FromID {
					g.AddEdge(graph.Edge{Source: ref.FromID, Target: target, Type: graph.EdgeUses})
				}
				continue
			}
			pid := graph.PlaceholderID(ref.Name)
			if g.Node(pid) == nil {
				g.AddNode(graph.NewPlaceholderNode(ref.Name))
			}
			g.AddEdge(graph.Edge{Source: ref.FromID, Target: pid, Type: graph.EdgeUses})
		}
	}
}

func countIn(paths []string, patched []*build.FileResult) int {
	set := make(map[string]bool, len(patched))
	for _, fr := range patched {
		set[fr.RelPath] = true
	}
	n := 0
	for _, p := range paths {
		if set[p] {
			n++
		}
	}
	return n
}
