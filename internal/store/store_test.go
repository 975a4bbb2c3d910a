package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/merkle"
	"github.com/codeatlas/codeatlas/internal/tag"
)

func testRoot() RootInfo {
	return RootInfo{Name: "myrepo", RootType: "repository"}
}

// testGraph builds a small two-directory graph:
//
//	src/app.py  -> class App -> method run
//	lib/util.py -> function helper
//	app.run USES lib helper (cross-partition)
func testGraph() (*graph.Graph, *merkle.Tree) {
	g := graph.New()
	g.AddNode(graph.NewRepositoryNode("myrepo"))

	g.AddNode(graph.NewFileNode("src/app.py", "hash-app", 200, 20))
	g.AddNode(&graph.Node{
		ID: "src/app.py:App", NodeType: tag.Container, Kind: tag.KindType,
		Name: "App", FilePath: "src/app.py", StartByte: 0, EndByte: 180,
	})
	g.AddNode(&graph.Node{
		ID: "src/app.py:App:run", NodeType: tag.Callable, Kind: tag.KindMethod,
		Name: "run", FilePath: "src/app.py", StartByte: 20, EndByte: 170,
		Metadata: graph.Metadata{Visibility: "public"},
	})

	g.AddNode(graph.NewFileNode("lib/util.py", "hash-util", 90, 8))
	g.AddNode(&graph.Node{
		ID: "lib/util.py:helper", NodeType: tag.Callable, Kind: tag.KindFunction,
		Name: "helper", FilePath: "lib/util.py", StartByte: 0, EndByte: 80,
	})

	g.AddEdge(graph.Edge{Source: "myrepo", Target: "src/app.py", Type: graph.EdgeContains})
	g.AddEdge(graph.Edge{Source: "myrepo", Target: "lib/util.py", Type: graph.EdgeContains})
	g.AddEdge(graph.Edge{Source: "src/app.py", Target: "src/app.py:App", Type: graph.EdgeContains})
	g.AddEdge(graph.Edge{Source: "src/app.py:App", Target: "src/app.py:App:run", Type: graph.EdgeContains})
	g.AddEdge(graph.Edge{Source: "lib/util.py", Target: "lib/util.py:helper", Type: graph.EdgeContains})
	g.AddEdge(graph.Edge{Source: "src/app.py:App:run", Target: "lib/util.py:helper", Type: graph.EdgeUses})

	tree := merkle.FromLeaves(map[string]string{
		"src/app.py":  "hash-app",
		"lib/util.py": "hash-util",
	})
	return g, tree
}

func TestPartitionID(t *testing.T) {
	assert.Equal(t, "r_src", PartitionID("r", "src/app.py"))
	assert.Equal(t, "r_src", PartitionID("r", "src/deep/nested.py"))
	assert.Equal(t, "r_root", PartitionID("r", "main.py"))
	assert.Equal(t, "r_root", PartitionID("r", ""))
}

func TestSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()

	stats, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Partitions) // myrepo_src, myrepo_lib, myrepo_root
	assert.Equal(t, 6, stats.NodesWritten)
	assert.Equal(t, 1, stats.CrossEdges, "USES across top-level dirs is a cross ref")

	// manifest.json is the commit point.
	_, err = os.Stat(filepath.Join(dir, ManifestName))
	require.NoError(t, err)

	st, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Stats().LoadedPartitions, "open reads only the manifest")
}

func TestGetNode(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	st, err := Open(dir)
	require.NoError(t, err)

	n, err := st.GetNode("src/app.py:App:run")
	require.NoError(t, err)
	assert.Equal(t, "run", n.Name)
	assert.Equal(t, tag.KindMethod, n.Kind)
	assert.Equal(t, "public", n.Metadata.Visibility)
	assert.Equal(t, 1, st.Stats().LoadedPartitions, "one partition loaded")

	// Pathless node lands in the root partition.
	repo, err := st.GetNode("myrepo")
	require.NoError(t, err)
	assert.Equal(t, tag.KindRepository, repo.Kind)

	_, err = st.GetNode("src/app.py:Nope")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestListNodes(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	st, err := Open(dir)
	require.NoError(t, err)

	callables, err := st.ListNodes(NodeFilter{NodeType: string(tag.Callable)})
	require.NoError(t, err)
	require.Len(t, callables, 2)
	assert.Equal(t, "lib/util.py:helper", callables[0].ID)
	assert.Equal(t, "src/app.py:App:run", callables[1].ID)

	srcOnly, err := st.ListNodes(NodeFilter{PathPrefix: "src/"})
	require.NoError(t, err)
	require.Len(t, srcOnly, 3)
	for _, n := range srcOnly {
		assert.Equal(t, "src/app.py", n.FilePath)
	}
}

func TestGetEdges(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	st, err := Open(dir)
	require.NoError(t, err)

	out, err := st.GetEdges("src/app.py:App:run", DirOut, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, graph.EdgeUses, out[0].Type)
	assert.Equal(t, "lib/util.py:helper", out[0].Target)

	in, err := st.GetEdges("lib/util.py:helper", DirIn, graph.EdgeUses)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "src/app.py:App:run", in[0].Source)

	contains, err := st.GetEdges("src/app.py:App", DirBoth, graph.EdgeContains)
	require.NoError(t, err)
	assert.Len(t, contains, 2)
}

func TestGetSubtree(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	st, err := Open(dir)
	require.NoError(t, err)

	nodes, err := st.GetSubtree("src/app.py")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "src/app.py", nodes[0].ID)
	assert.Equal(t, "src/app.py:App", nodes[1].ID)
	assert.Equal(t, "src/app.py:App:run", nodes[2].ID)

	_, err = st.GetSubtree("missing.py")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestStatsFromManifestOnly(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	st, err := Open(dir)
	require.NoError(t, err)

	stats := st.Stats()
	assert.Equal(t, 6, stats.Nodes)
	assert.Equal(t, 6, stats.Edges)
	assert.Equal(t, 3, stats.Partitions)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.NodeCountsByKind["container/file"])
	assert.Equal(t, 1, stats.NodeCountsByKind["callable/method"])
	assert.Equal(t, 5, stats.EdgeCountsByType["CONTAINS"])
	assert.Equal(t, 1, stats.EdgeCountsByType["USES"])
	assert.Equal(t, 0, stats.LoadedPartitions, "stats must not load partitions")
}

func TestLoadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	st, err := Open(dir)
	require.NoError(t, err)

	loaded, err := st.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, g.NodeCount(), loaded.NodeCount())
	assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())

	orig := g.Node("src/app.py:App:run")
	got := loaded.Node("src/app.py:App:run")
	require.NotNil(t, got)
	assert.Equal(t, *orig, *got)
}

func TestOpenDetectsManifestTamper(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	fe := m.Files["src/app.py"]
	fe.ContentHash = "tampered"
	m.Files["src/app.py"] = fe
	require.NoError(t, m.Save(dir))

	_, err = Open(dir)
	assert.ErrorIs(t, err, ErrMerkleRootMismatch)
}

func TestLazyLoadDetectsCorruptPartition(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	// Corrupt the src partition on disk after the manifest was written.
	p := filepath.Join(dir, partitionsDir, "myrepo_src.db")
	require.NoError(t, os.WriteFile(p, []byte("garbage"), 0o644))

	st, err := Open(dir)
	require.NoError(t, err, "open succeeds, corruption surfaces lazily")

	_, err = st.GetNode("src/app.py:App")
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// Untouched partitions still load.
	n, err := st.GetNode("lib/util.py:helper")
	require.NoError(t, err)
	assert.Equal(t, "helper", n.Name)
}

func TestSavePartialRewritesOnlyAffected(t *testing.T) {
	dir := t.TempDir()
	g, tree := testGraph()
	_, err := Save(dir, g, tree, testRoot())
	require.NoError(t, err)

	libPath := filepath.Join(dir, partitionsDir, "myrepo_lib.db")
	before, err := os.Stat(libPath)
	require.NoError(t, err)

	// Change only src: rename the method.
	g.RemoveFile("src/app.py")
	g.AddNode(graph.NewFileNode("src/app.py", "hash-app-2", 210, 21))
	g.AddNode(&graph.Node{
		ID: "src/app.py:App", NodeType: tag.Container, Kind: tag.KindType,
		Name: "App", FilePath: "src/app.py", StartByte: 0, EndByte: 190,
	})
	g.AddEdge(graph.Edge{Source: "src/app.py", Target: "src/app.py:App", Type: graph.EdgeContains})
	tree.Set("src/app.py", "hash-app-2")

	_, err = SavePartial(dir, g, tree, testRoot(), map[string]bool{"myrepo_src": true})
	require.NoError(t, err)

	after, err := os.Stat(libPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "unaffected partition untouched")

	st, err := Open(dir)
	require.NoError(t, err)
	_, err = st.GetNode("src/app.py:App")
	require.NoError(t, err)
	_, err = st.GetNode("src/app.py:App:run")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	n, err := st.GetNode("lib/util.py:helper")
	require.NoError(t, err)
	assert.Equal(t, "helper", n.Name)
}
