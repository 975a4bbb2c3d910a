// Package graph defines the in-memory knowledge-graph model: typed
// nodes, edges, and the containment machinery used while building.
package graph

import (
	"github.com/codeatlas/codeatlas/internal/tag"
)

// EdgeType is a directed relationship kind.
type EdgeType string

const (
	EdgeContains  EdgeType = "CONTAINS"
	EdgeUses      EdgeType = "USES"
	EdgeDefines   EdgeType = "DEFINES"
	EdgeDependsOn EdgeType = "DEPENDS_ON"
)

// Metadata carries optional semantic flags on a node.
type Metadata struct {
	Visibility string   `json:"visibility,omitempty"` // "public" or "private"
	IsAsync    bool     `json:"is_async,omitempty"`
	IsStatic   bool     `json:"is_static,omitempty"`
	IsAbstract bool     `json:"is_abstract,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	Scope      string   `json:"scope,omitempty"` // overlay annotation: "test", "fixture", ...
	Version    string   `json:"version,omitempty"` // components only
}

// IsZero reports whether no metadata field is set.
func (m Metadata) IsZero() bool {
	return m.Visibility == "" && !m.IsAsync && !m.IsStatic && !m.IsAbstract &&
		len(m.Decorators) == 0 && m.Scope == "" && m.Version == ""
}

// Node is a graph entity.
type Node struct {
	ID          string       `json:"id"`
	NodeType    tag.NodeType `json:"node_type"`
	Kind        string       `json:"kind"`
	Subtype     string       `json:"subtype,omitempty"`
	Name        string       `json:"name"`
	FilePath    string       `json:"file_path,omitempty"` // empty for the repository root
	StartByte   uint         `json:"start_byte"`
	EndByte     uint         `json:"end_byte"`
	StartLine   int          `json:"start_line"`
	EndLine     int          `json:"end_line"`
	ContentHash string       `json:"content_hash,omitempty"` // file nodes only
	Metadata    Metadata     `json:"metadata,omitempty"`
}

// Edge is a directed relationship between two node IDs.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
	Scope  string   `json:"scope,omitempty"` // DEPENDS_ON dependency scope
}

// NewRepositoryNode builds the synthetic repository root node.
func NewRepositoryNode(name string) *Node {
	return &Node{
		ID:       name,
		NodeType: tag.Container,
		Kind:     tag.KindRepository,
		Name:     name,
	}
}

// NewFileNode builds the Container/file node for a source file.
func NewFileNode(relPath, contentHash string, size uint, endLine int) *Node {
	return &Node{
		ID:          relPath,
		NodeType:    tag.Container,
		Kind:        tag.KindFile,
		Name:        relPath,
		FilePath:    relPath,
		StartByte:   0,
		EndByte:     size,
		StartLine:   1,
		EndLine:     endLine,
		ContentHash: contentHash,
	}
}

// NewComponentNode builds a Container/component node from a manifest.
func NewComponentNode(name, version, manifestPath string) *Node {
	return &Node{
		ID:       "component:" + name,
		NodeType: tag.Container,
		Kind:     tag.KindComponent,
		Name:     name,
		FilePath: manifestPath,
		Metadata: Metadata{Version: version},
	}
}

// PlaceholderID is the node ID used for an unresolved reference target.
func PlaceholderID(name string) string {
	return "unresolved:" + name
}

// NewPlaceholderNode builds the synthetic target for a dangling USES
// edge. Unresolved names are retained, never dropped.
func NewPlaceholderNode(name string) *Node {
	return &Node{
		ID:       PlaceholderID(name),
		NodeType: tag.Container,
		Subtype:  "unresolved",
		Name:     name,
	}
}

// Graph is an in-memory node/edge set keyed by node ID, with
// (source, target, type) edge deduplication.
type Graph struct {
	nodes    map[string]*Node
	order    []string // insertion order, for deterministic iteration
	edges    []Edge
	edgeSeen map[Edge]bool
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edgeSeen: make(map[Edge]bool),
	}
}

// AddNode inserts or replaces a node. Replacement keeps the original
// insertion position so iteration order stays stable.
func (g *Graph) AddNode(n *Node) {
	if _, ok := g.nodes[n.ID]; !ok {
		g.order = append(g.order, n.ID)
	}
	g.nodes[n.ID] = n
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// AddEdge inserts an edge unless an identical one already exists.
func (g *Graph) AddEdge(e Edge) {
	key := Edge{Source: e.Source, Target: e.Target, Type: e.Type}
	if g.edgeSeen[key] {
		return
	}
	g.edgeSeen[key] = true
	g.edges = append(g.edges, e)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// RemoveFile drops every node belonging to relPath and every edge
// touching one of those nodes. Returns the number of nodes removed.
func (g *Graph) RemoveFile(relPath string) int {
	doomed := make(map[string]bool)
	for id, n := range g.nodes {
		if n.FilePath == relPath {
			doomed[id] = true
		}
	}
	if len(doomed) == 0 {
		return 0
	}
	for id := range doomed {
		delete(g.nodes, id)
	}
	keptOrder := g.order[:0]
	for _, id := range g.order {
		if !doomed[id] {
			keptOrder = append(keptOrder, id)
		}
	}
	g.order = keptOrder

	keptEdges := g.edges[:0]
	for _, e := range g.edges {
		if doomed[e.Source] || doomed[e.Target] {
			delete(g.edgeSeen, Edge{Source: e.Source, Target: e.Target, Type: e.Type})
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	g.edges = keptEdges
	return len(doomed)
}

// Merge copies every node and edge from other into g, replacing nodes
// with matching IDs.
func (g *Graph) Merge(other *Graph) {
	for _, n := range other.Nodes() {
		g.AddNode(n)
	}
	for _, e := range other.Edges() {
		g.AddEdge(e)
	}
}
