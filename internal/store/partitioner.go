package store

import (
	"encoding/hex"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/merkle"
)

// PartitionID groups files by top-level directory: "{root}_{dir}" for
// files under a directory, "{root}_root" for files directly in the
// repository root. Nodes without a file path (repository, components,
// unresolved placeholders) live in the root partition.
func PartitionID(rootName, relPath string) string {
	if relPath == "" {
		return rootName + "_root"
	}
	if i := strings.IndexByte(relPath, '/'); i > 0 {
		return rootName + "_" + relPath[:i]
	}
	return rootName + "_root"
}

// safeFileName sanitizes a partition ID into a filename.
func safeFileName(partitionID string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(partitionID) + ".db"
}

// SaveStats reports what a save wrote.
type SaveStats struct {
	Partitions      int
	NodesWritten    int
	IntraEdges      int
	CrossEdges      int
}

// Save persists a full graph: every partition is rewritten, then
// cross-partition edges, then the manifest last so a crash mid-write
// never leaves the manifest pointing at partial data.
func Save(dir string, g *graph.Graph, tree *merkle.Tree, root RootInfo) (*SaveStats, error) {
	return save(dir, g, tree, root, nil)
}

// SavePartial rewrites only the named partitions (plus cross refs and
// the manifest). Used by incremental updates to bound write cost.
func SavePartial(dir string, g *graph.Graph, tree *merkle.Tree, root RootInfo, affected map[string]bool) (*SaveStats, error) {
	return save(dir, g, tree, root, affected)
}

func save(dir string, g *graph.Graph, tree *merkle.Tree, root RootInfo, affected map[string]bool) (*SaveStats, error) {
	pdir := filepath.Join(dir, partitionsDir)
	if err := os.MkdirAll(pdir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir partitions: %w", err)
	}

	// Group nodes by partition.
	nodePartition := make(map[string]string, g.NodeCount())
	byPartition := make(map[string][]*graph.Node)
	for _, n := range g.Nodes() {
		pid := PartitionID(root.Name, n.FilePath)
		nodePartition[n.ID] = pid
		byPartition[pid] = append(byPartition[pid], n)
	}

	// Classify edges: intra-partition edges live beside their nodes,
	// everything else goes to the shared cross-reference database.
	intraEdges := make(map[string][]graph.Edge)
	var crossEdges []graph.Edge
	for _, e := range g.Edges() {
		sp, sok := nodePartition[e.Source]
		tp, tok := nodePartition[e.Target]
		if sok && tok && sp == tp {
			intraEdges[sp] = append(intraEdges[sp], e)
		} else {
			crossEdges = append(crossEdges, e)
		}
	}

	manifest := NewManifest()
	manifest.Roots = []RootInfo{root}
	manifest.MerkleRoot = tree.Root()

	stats := &SaveStats{CrossEdges: len(crossEdges)}

	pids := make([]string, 0, len(byPartition))
	for pid := range byPartition {
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	for _, pid := range pids {
		nodes := byPartition[pid]
		fileName := safeFileName(pid)
		path := filepath.Join(pdir, fileName)

		if affected == nil || affected[pid] {
			if err := writePartitionFile(path, nodes, intraEdges[pid]); err != nil {
				return nil, fmt.Errorf("write partition %s: %w", pid, err)
			}
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return nil, err
		}
		manifest.Partitions[pid] = PartitionEntry{
			File:      fileName,
			Checksum:  checksum,
			NodeCount: len(nodes),
			EdgeCount: len(intraEdges[pid]),
		}
		stats.Partitions++
		stats.NodesWritten += len(nodes)
		stats.IntraEdges += len(intraEdges[pid])

		for _, n := range nodes {
			manifest.NodeCountsByKind[countKey(n)]++
		}
		for _, e := range intraEdges[pid] {
			manifest.EdgeCountsByType[string(e.Type)]++
		}
	}
	for _, e := range crossEdges {
		manifest.EdgeCountsByType[string(e.Type)]++
	}

	// Stale partition files from removed top-level directories.
	if affected != nil {
		old, err := LoadManifest(dir)
		if err == nil {
			for pid, pe := range old.Partitions {
				if _, live := byPartition[pid]; !live {
					os.Remove(filepath.Join(pdir, pe.File))
				}
			}
		}
	}

	crossPath := filepath.Join(pdir, crossRefsFile)
	if err := writePartitionFile(crossPath, nil, crossEdges); err != nil {
		return nil, fmt.Errorf("write cross refs: %w", err)
	}

	for relPath, hash := range tree.Leaves {
		manifest.Files[relPath] = FileEntry{
			PartitionID: PartitionID(root.Name, relPath),
			ContentHash: hash,
		}
	}

	// Manifest commit is the last step.
	if err := manifest.Save(dir); err != nil {
		return nil, err
	}

	slog.Info("store.save.done",
		"partitions", stats.Partitions,
		"nodes", stats.NodesWritten,
		"intra_edges", stats.IntraEdges,
		"cross_edges", stats.CrossEdges)
	return stats, nil
}

// fileChecksum returns the xxh3 checksum of a file's bytes, recorded in
// the manifest and verified on lazy load.
func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxh3.Hash(data))
	return hex.EncodeToString(buf[:]), nil
}

func countKey(n *graph.Node) string {
	if n.Kind == "" {
		return string(n.NodeType)
	}
	return string(n.NodeType) + "/" + n.Kind
}
