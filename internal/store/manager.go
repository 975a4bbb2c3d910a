package store

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/merkle"
)

var (
	// ErrMerkleRootMismatch means the manifest's recorded root does not
	// match the root recomputed from its own file hashes. The store is
	// internally inconsistent and needs a rebuild.
	ErrMerkleRootMismatch = errors.New("merkle root mismatch")

	// ErrChecksumMismatch means a partition file's bytes do not match
	// the checksum recorded in the manifest.
	ErrChecksumMismatch = errors.New("partition checksum mismatch")

	ErrNodeNotFound      = errors.New("node not found")
	ErrPartitionNotFound = errors.New("partition not found")
)

// Direction selects which edges GetEdges returns relative to a node.
type Direction int

const (
	DirOut Direction = iota
	DirIn
	DirBoth
)

// Manager reads a stored graph lazily: opening it loads only the
// manifest, and partitions are promoted into memory on first touch.
type Manager struct {
	dir      string
	manifest *Manifest

	mu          sync.RWMutex
	partitions  map[string]*partitionData
	cross       []graph.Edge
	crossLoaded bool
}

// Open loads the manifest of a stored graph and verifies its internal
// consistency. No partition data is read.
func Open(dir string) (*Manager, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dir, err)
	}
	if got := merkle.FromLeaves(m.LeafHashes()).Root(); got != m.MerkleRoot {
		return nil, fmt.Errorf("%w: manifest says %s, file hashes give %s",
			ErrMerkleRootMismatch, m.MerkleRoot, got)
	}
	return &Manager{
		dir:        dir,
		manifest:   m,
		partitions: make(map[string]*partitionData),
	}, nil
}

// Manifest returns the loaded manifest.
func (s *Manager) Manifest() *Manifest { return s.manifest }

// partition returns a partition's data, reading and checksum-verifying
// the file on first access.
func (s *Manager) partition(id string) (*partitionData, error) {
	s.mu.RLock()
	pd, ok := s.partitions[id]
	s.mu.RUnlock()
	if ok {
		return pd, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pd, ok := s.partitions[id]; ok {
		return pd, nil
	}

	entry, ok := s.manifest.Partitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
	}
	path := filepath.Join(s.dir, partitionsDir, entry.File)
	checksum, err := fileChecksum(path)
	if err != nil {
		return nil, err
	}
	if checksum != entry.Checksum {
		return nil, fmt.Errorf("%w: %s (manifest %s, file %s)",
			ErrChecksumMismatch, id, entry.Checksum, checksum)
	}
	pd, err = readPartitionFile(path)
	if err != nil {
		return nil, fmt.Errorf("load partition %s: %w", id, err)
	}
	s.partitions[id] = pd
	slog.Debug("store.partition.loaded", "partition", id, "nodes", len(pd.nodes))
	return pd, nil
}

// crossRefs returns the cross-partition edges, loading them on first
// access.
func (s *Manager) crossRefs() ([]graph.Edge, error) {
	s.mu.RLock()
	if s.crossLoaded {
		defer s.mu.RUnlock()
		return s.cross, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crossLoaded {
		return s.cross, nil
	}
	pd, err := readPartitionFile(filepath.Join(s.dir, partitionsDir, crossRefsFile))
	if err != nil {
		return nil, fmt.Errorf("load cross refs: %w", err)
	}
	s.cross = pd.edges
	s.crossLoaded = true
	return s.cross, nil
}

// locate maps a node ID to the partition expected to hold it. Entity
// IDs lead with their file path; IDs without a known file (repository,
// components, unresolved placeholders) default to the root partition.
func (s *Manager) locate(nodeID string) string {
	filePath, _ := graph.SplitNodeID(nodeID)
	if fe, ok := s.manifest.Files[filePath]; ok {
		return fe.PartitionID
	}
	if len(s.manifest.Roots) > 0 {
		return s.manifest.Roots[0].Name + "_root"
	}
	return ""
}

// GetNode fetches a single node by ID, loading at most one partition in
// the common case.
func (s *Manager) GetNode(nodeID string) (*graph.Node, error) {
	if pid := s.locate(nodeID); pid != "" {
		if pd, err := s.partition(pid); err == nil {
			if n, ok := pd.nodes[nodeID]; ok {
				return n, nil
			}
		} else if !errors.Is(err, ErrPartitionNotFound) {
			return nil, err
		}
	}
	// Nodes whose ID does not encode their file (components declared in
	// a nested manifest) can live elsewhere; fall back to a scan.
	for _, pid := range s.partitionIDs() {
		pd, err := s.partition(pid)
		if err != nil {
			return nil, err
		}
		if n, ok := pd.nodes[nodeID]; ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
}

func (s *Manager) partitionIDs() []string {
	ids := make([]string, 0, len(s.manifest.Partitions))
	for id := range s.manifest.Partitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeFilter narrows a ListNodes scan. Zero values match everything.
type NodeFilter struct {
	NodeType   string
	Kind       string
	Subtype    string
	PathPrefix string
}

func (f NodeFilter) matches(n *graph.Node) bool {
	if f.NodeType != "" && string(n.NodeType) != f.NodeType {
		return false
	}
	if f.Kind != "" && n.Kind != f.Kind {
		return false
	}
	if f.Subtype != "" && n.Subtype != f.Subtype {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(n.FilePath, f.PathPrefix) {
		return false
	}
	return true
}

// ListNodes returns all nodes matching the filter, sorted by ID. A
// path prefix restricts the scan to the partitions that can hold
// matching files.
func (s *Manager) ListNodes(f NodeFilter) ([]*graph.Node, error) {
	pids := s.partitionIDs()
	if f.PathPrefix != "" {
		seen := make(map[string]bool)
		pids = pids[:0]
		for path, fe := range s.manifest.Files {
			if strings.HasPrefix(path, f.PathPrefix) && !seen[fe.PartitionID] {
				seen[fe.PartitionID] = true
				pids = append(pids, fe.PartitionID)
			}
		}
		sort.Strings(pids)
	}

	var out []*graph.Node
	for _, pid := range pids {
		pd, err := s.partition(pid)
		if err != nil {
			return nil, err
		}
		for _, n := range pd.nodes {
			if f.matches(n) {
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetEdges returns the edges touching a node in the given direction,
// optionally filtered by type. Both the node's own partition and the
// cross-partition refs are consulted.
func (s *Manager) GetEdges(nodeID string, dir Direction, edgeType graph.EdgeType) ([]graph.Edge, error) {
	var out []graph.Edge
	appendMatching := func(edges []graph.Edge) {
		for _, e := range edges {
			if edgeType != "" && e.Type != edgeType {
				continue
			}
			switch dir {
			case DirOut:
				if e.Source != nodeID {
					continue
				}
			case DirIn:
				if e.Target != nodeID {
					continue
				}
			default:
				if e.Source != nodeID && e.Target != nodeID {
					continue
				}
			}
			out = append(out, e)
		}
	}

	if pid := s.locate(nodeID); pid != "" {
		pd, err := s.partition(pid)
		if err != nil && !errors.Is(err, ErrPartitionNotFound) {
			return nil, err
		}
		if pd != nil {
			appendMatching(pd.edges)
		}
	}
	cross, err := s.crossRefs()
	if err != nil {
		return nil, err
	}
	appendMatching(cross)
	return out, nil
}

// GetSubtree returns a file's node and everything transitively
// contained in it, sorted by start byte. File containment never
// crosses a partition, so one partition read suffices.
func (s *Manager) GetSubtree(filePath string) ([]*graph.Node, error) {
	fe, ok := s.manifest.Files[filePath]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", ErrNodeNotFound, filePath)
	}
	pd, err := s.partition(fe.PartitionID)
	if err != nil {
		return nil, err
	}

	children := make(map[string][]string)
	for _, e := range pd.edges {
		if e.Type == graph.EdgeContains {
			children[e.Source] = append(children[e.Source], e.Target)
		}
	}

	var out []*graph.Node
	seen := make(map[string]bool)
	queue := []string{filePath}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		if n, ok := pd.nodes[id]; ok {
			out = append(out, n)
		}
		queue = append(queue, children[id]...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartByte != out[j].StartByte {
			return out[i].StartByte < out[j].StartByte
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Stats summarizes a stored graph from the manifest alone, without
// touching partition data.
type Stats struct {
	Roots            []RootInfo
	Partitions       int
	Files            int
	Nodes            int
	Edges            int
	NodeCountsByKind map[string]int
	EdgeCountsByType map[string]int
	MerkleRoot       string
	LoadedPartitions int
}

// Stats returns aggregate statistics in O(manifest) time.
func (s *Manager) Stats() Stats {
	var nodes, edges int
	for _, c := range s.manifest.NodeCountsByKind {
		nodes += c
	}
	for _, c := range s.manifest.EdgeCountsByType {
		edges += c
	}
	s.mu.RLock()
	loaded := len(s.partitions)
	s.mu.RUnlock()
	return Stats{
		Roots:            s.manifest.Roots,
		Partitions:       len(s.manifest.Partitions),
		Files:            len(s.manifest.Files),
		Nodes:            nodes,
		Edges:            edges,
		NodeCountsByKind: s.manifest.NodeCountsByKind,
		EdgeCountsByType: s.manifest.EdgeCountsByType,
		MerkleRoot:       s.manifest.MerkleRoot,
		LoadedPartitions: loaded,
	}
}

// LoadAll materializes the whole stored graph in memory. Used by the
// incremental updater, which needs the full node set to patch.
func (s *Manager) LoadAll() (*graph.Graph, error) {
	g := graph.New()
	for _, pid := range s.partitionIDs() {
		pd, err := s.partition(pid)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(pd.nodes))
		for id := range pd.nodes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			g.AddNode(pd.nodes[id])
		}
		for _, e := range pd.edges {
			g.AddEdge(e)
		}
	}
	cross, err := s.crossRefs()
	if err != nil {
		return nil, err
	}
	for _, e := range cross {
		g.AddEdge(e)
	}
	return g, nil
}
