package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeatlas/codeatlas/internal/catalog"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/lang"
	"github.com/codeatlas/codeatlas/internal/merkle"
	"github.com/codeatlas/codeatlas/internal/store"
	"github.com/codeatlas/codeatlas/internal/tag"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func pythonRepo(t *testing.T) string {
	return writeRepo(t, map[string]string{
		"app/main.py": "from lib.util import helper\n\n\ndef run():\n    return helper()\n",
		"lib/util.py": "def helper():\n    return 42\n",
		"package.json": `{
  "name": "demo-app",
  "version": "1.0.0",
  "dependencies": {"express": "^4.18.0"},
  "devDependencies": {"jest": "^29.0.0"}
}`,
	})
}

func TestBuildEndToEnd(t *testing.T) {
	repo := pythonRepo(t)
	graphDir := filepath.Join(t.TempDir(), "graph")

	report, err := Build(context.Background(), Options{RepoPath: repo, GraphDir: graphDir})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Files != 2 {
		t.Errorf("Files = %d, want 2", report.Files)
	}
	if report.ManifestFiles != 1 {
		t.Errorf("ManifestFiles = %d, want 1", report.ManifestFiles)
	}
	if len(report.Failures) != 0 {
		t.Errorf("Failures = %v", report.Failures)
	}

	st, err := store.Open(graphDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	run, err := st.GetNode("app/main.py:run")
	if err != nil {
		t.Fatalf("GetNode run: %v", err)
	}
	if run.NodeType != tag.Callable || run.Kind != tag.KindFunction {
		t.Errorf("run = %s/%s", run.NodeType, run.Kind)
	}

	// Cross-file call resolves to the real definition, not a placeholder.
	out, err := st.GetEdges("app/main.py:run", store.DirOut, graph.EdgeUses)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range out {
		if e.Target == "lib/util.py:helper" {
			found = true
		}
	}
	if !found {
		t.Errorf("run USES helper not found in %v", out)
	}

	// Component extraction from package.json.
	comp, err := st.GetNode("component:demo-app")
	if err != nil {
		t.Fatalf("component node: %v", err)
	}
	if comp.Metadata.Version != "1.0.0" {
		t.Errorf("component version = %q", comp.Metadata.Version)
	}
	deps, err := st.GetEdges("component:demo-app", store.DirOut, graph.EdgeDependsOn)
	if err != nil {
		t.Fatal(err)
	}
	scopes := make(map[string]string)
	for _, e := range deps {
		scopes[e.Target] = e.Scope
	}
	if scopes["component:express"] != "" {
		t.Errorf("express scope = %q, want runtime (empty)", scopes["component:express"])
	}
	if scopes["component:jest"] != "dev" {
		t.Errorf("jest scope = %q, want dev", scopes["component:jest"])
	}
}

func TestBuildDeterministic(t *testing.T) {
	repo := pythonRepo(t)

	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	if _, err := Build(context.Background(), Options{RepoPath: repo, GraphDir: dirA}); err != nil {
		t.Fatal(err)
	}
	if _, err := Build(context.Background(), Options{RepoPath: repo, GraphDir: dirB}); err != nil {
		t.Fatal(err)
	}

	ma, err := store.LoadManifest(dirA)
	if err != nil {
		t.Fatal(err)
	}
	mb, err := store.LoadManifest(dirB)
	if err != nil {
		t.Fatal(err)
	}
	if ma.MerkleRoot != mb.MerkleRoot {
		t.Error("merkle roots differ across identical builds")
	}

	sa, _ := store.Open(dirA)
	sb, _ := store.Open(dirB)
	ga, err := sa.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	gb, err := sb.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if ga.NodeCount() != gb.NodeCount() || ga.EdgeCount() != gb.EdgeCount() {
		t.Fatalf("graphs differ: %d/%d nodes, %d/%d edges",
			ga.NodeCount(), gb.NodeCount(), ga.EdgeCount(), gb.EdgeCount())
	}
	for _, n := range ga.Nodes() {
		if gb.Node(n.ID) == nil {
			t.Errorf("node %q missing from second build", n.ID)
		}
	}
}

func TestBuildContinuesPastCatalogFailure(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"main.py":    "def entry():\n    pass\n",
		"web/app.js": "function render() {}\n",
	})
	graphDir := filepath.Join(t.TempDir(), "graph")

	orig := loadCatalog
	loadCatalog = func(l lang.Language) (*catalog.Catalog, error) {
		if l == lang.JavaScript {
			return nil, &catalog.ValidationError{Language: l, Err: errors.New("bad capture")}
		}
		return orig(l)
	}
	defer func() { loadCatalog = orig }()

	report, err := Build(context.Background(), Options{RepoPath: repo, GraphDir: graphDir})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Files != 1 {
		t.Errorf("Files = %d, want 1", report.Files)
	}
	if len(report.Failures) != 1 || report.Failures[0].Path != "web/app.js" {
		t.Errorf("Failures = %+v", report.Failures)
	}

	st, err := store.Open(graphDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetNode("main.py:entry"); err != nil {
		t.Errorf("python file lost to a javascript catalog failure: %v", err)
	}

	// No leaf for the failed file, so a later update retries it.
	m, err := store.LoadManifest(graphDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Files["web/app.js"]; ok {
		t.Error("failed file must not get a manifest entry")
	}
}

func TestBuildUnresolvedImportKeepsPlaceholder(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"main.py": "import requests\n\n\ndef fetch():\n    return requests.get('x')\n",
	})
	graphDir := filepath.Join(t.TempDir(), "graph")

	report, err := Build(context.Background(), Options{RepoPath: repo, GraphDir: graphDir})
	if err != nil {
		t.Fatal(err)
	}
	if report.UnresolvedRefs == 0 {
		t.Fatal("expected at least one unresolved Ref")
	}

	st, err := store.Open(graphDir)
	if err != nil {
		t.Fatal(err)
	}
	p, err := st.GetNode("unresolved:requests")
	if err != nil {
		t.Fatalf("placeholder retained: %v", err)
	}
	if p.Subtype != "unresolved" {
		t.Errorf("subtype = %q", p.Subtype)
	}
}

func TestBuildHonorsConfigExcludes(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		".codeatlas.yml": "exclude:\n  - generated/\n",
		"main.py":        "def entry():\n    pass\n",
		"generated/g.py": "def machine_made():\n    pass\n",
	})
	graphDir := filepath.Join(t.TempDir(), "graph")

	report, err := Build(context.Background(), Options{RepoPath: repo, GraphDir: graphDir})
	if err != nil {
		t.Fatal(err)
	}
	if report.Files != 1 {
		t.Errorf("Files = %d, want 1 (generated/ excluded)", report.Files)
	}
}

func TestDiscoverSorted(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"z.py":        "pass\n",
		"a/b.py":      "pass\n",
		"m.go":        "package m\n",
		"Cargo.toml":  "[package]\nname = \"x\"\n",
		"README.md":   "docs",
		"img.png":     "bin",
	})

	files, manifests, err := Discover(context.Background(), repo, merkle.NewExclusionFilter(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %v", files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1].RelPath >= files[i].RelPath {
			t.Errorf("files not sorted: %q before %q", files[i-1].RelPath, files[i].RelPath)
		}
	}
	if len(manifests) != 1 || manifests[0].RelPath != "Cargo.toml" {
		t.Errorf("manifests = %v", manifests)
	}
}
