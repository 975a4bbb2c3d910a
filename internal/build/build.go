// Package build orchestrates graph construction: discovery, parallel
// extraction, entity building, manifest components, reference
// resolution, and the final store save.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/codeatlas/codeatlas/internal/catalog"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/extract"
	"github.com/codeatlas/codeatlas/internal/gitmeta"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/merkle"
	"github.com/codeatlas/codeatlas/internal/parser"
	"github.com/codeatlas/codeatlas/internal/store"
)

// Options configures a full build.
type Options struct {
	// RepoPath is the repository root to index.
	RepoPath string
	// GraphDir is where the store is written. Empty means the config's
	// output dir under the repository root.
	GraphDir string
}

// loadCatalog is a seam for catalog failure injection in tests.
var loadCatalog = catalog.Load

// Failure records one file that could not be processed.
type Failure struct {
	Path string
	Err  string
}

// Report summarizes a completed build.
type Report struct {
	GraphDir       string
	Files          int
	ManifestFiles  int
	Nodes          int
	Edges          int
	ResolvedRefs   int
	UnresolvedRefs int
	Partitions     int
	Failures       []Failure
	Duration       time.Duration
}

// Build indexes a repository from scratch and writes the graph store.
// Per-file errors are collected in the report; only repository-level
// problems (unreadable root, invalid config or catalog, store write
// failure) abort the run.
func Build(ctx context.Context, opts Options) (*Report, error) {
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

	filter := merkle.NewExclusionFilter(cfg.Exclude)
	files, manifests, err := Discover(ctx, repoPath, filter)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	files = filterLanguages(files, cfg)
	slog.Info("build.discovered", "files", len(files), "manifests", len(manifests))

	report := &Report{GraphDir: graphDir}

	// A catalog that fails validation takes its language out of the run;
	// the other languages still build. Affected files are reported as
	// failures and get no Merkle leaf, so a later update retries them.
	catalogs := make(map[lang.Language]*catalog.Catalog)
	catalogErrs := make(map[lang.Language]error)
	for _, f := range files {
		if _, ok := catalogs[f.Language]; ok {
			continue
		}
		if _, ok := catalogErrs[f.Language]; ok {
			continue
		}
		cat, err := loadCatalog(f.Language)
		if err != nil {
			slog.Error("build.catalog.failed", "language", f.Language, "err", err)
			catalogErrs[f.Language] = err
			continue
		}
		catalogs[f.Language] = cat
	}
	if len(catalogErrs) > 0 {
		usable := files[:0]
		for _, f := range files {
			if lerr, ok := catalogErrs[f.Language]; ok {
				report.Failures = append(report.Failures, Failure{Path: f.RelPath, Err: lerr.Error()})
				continue
			}
			usable = append(usable, f)
		}
		files = usable
	}

	results, err := extractFiles(ctx, files, catalogs, cfg)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	repoName := filepath.Base(repoPath)
	g.AddNode(graph.NewRepositoryNode(repoName))
	leaves := make(map[string]string, len(files))
	for _, fr := range results {
		if fr.Err != nil {
			report.Failures = append(report.Failures, Failure{Path: fr.RelPath, Err: fr.Err.Error()})
			slog.Warn("build.file.failed", "file", fr.RelPath, "err", fr.Err)
			continue
		}
		report.Files++
		leaves[fr.RelPath] = fr.ContentHash
		for _, n := range fr.Nodes {
			g.AddNode(n)
		}
		g.AddEdge(graph.Edge{Source: repoName, Target: fr.RelPath, Type: graph.EdgeContains})
		for _, e := range fr.Edges {
			g.AddEdge(e)
		}
	}

	comps := processManifests(g, repoName, manifests, leaves)
	report.ManifestFiles = len(comps)

	report.ResolvedRefs, report.UnresolvedRefs = ResolveReferences(g, results)

	tree := merkle.FromLeaves(leaves)

	vcs := gitmeta.Read(repoPath)
	root := store.RootInfo{
		Name:         repoName,
		RootType:     "repository",
		RelativePath: ".",
		RemoteURL:    vcs.RemoteURL,
		Branch:       vcs.Branch,
		Commit:       vcs.Commit,
	}
	saveStats, err := store.Save(graphDir, g, tree, root)
	if err != nil {
		return nil, fmt.Errorf("save graph: %w", err)
	}

	report.Nodes = g.NodeCount()
	report.Edges = g.EdgeCount()
	report.Partitions = saveStats.Partitions
	report.Duration = time.Since(start)
	slog.Info("build.done",
		"files", report.Files,
		"nodes", report.Nodes,
		"edges", report.Edges,
		"unresolved", report.UnresolvedRefs,
		"failures", len(report.Failures),
		"elapsed", report.Duration)
	return report, nil
}

func filterLanguages(files []FileInfo, cfg *config.Config) []FileInfo {
	if len(cfg.Languages) == 0 {
		return files
	}
	kept := files[:0]
	for _, f := range files {
		if cfg.LanguageEnabled(f.Language) {
			kept = append(kept, f)
		}
	}
	return kept
}

// extractFiles runs parse+extract+entity-build for every file in
// parallel, writing into a pre-sized slice so output order matches the
// sorted input order regardless of scheduling.
func extractFiles(ctx context.Context, files []FileInfo, catalogs map[lang.Language]*catalog.Catalog, cfg *config.Config) ([]*FileResult, error) {
	results := make([]*FileResult, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())

	for i, f := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ProcessFile(f, catalogs[f.Language], cfg)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ProcessFile reads, parses, and extracts one source file. Errors are
// carried in the result's Err field so callers can treat them as
// file-scoped diagnostics.
func ProcessFile(f FileInfo, cat *catalog.Catalog, cfg *config.Config) *FileResult {
	source, err := os.ReadFile(f.Path)
	if err != nil {
		return &FileResult{RelPath: f.RelPath, Err: fmt.Errorf("read: %w", err)}
	}
	tree, err := parser.Parse(f.Language, source)
	if err != nil {
		return &FileResult{RelPath: f.RelPath, Err: fmt.Errorf("parse: %w", err)}
	}
	defer tree.Close()
	if root := tree.RootNode(); root.HasError() {
		// Error recovery gives a partial tree; extract what parsed.
		slog.Warn("build.parse.partial", "file", f.RelPath, "line", firstErrorLine(root))
	}

	captures := extract.Extract(cat, tree, source)
	return buildFileEntities(f.RelPath, merkle.HashBytes(source), source, captures, entityOptions{
		maxDepth: cfg.MaxDepth,
		skipData: cfg.SkipData,
	})
}

// firstErrorLine finds the first error or missing node in a recovered
// tree, descending only into subtrees that contain one.
func firstErrorLine(root *tree_sitter.Node) int {
	line := 0
	parser.Walk(root, func(n *tree_sitter.Node) bool {
		if line != 0 {
			return false
		}
		if n.IsError() || n.IsMissing() {
			line = int(n.StartPosition().Row) + 1
			return false
		}
		return n.HasError()
	})
	return line
}
