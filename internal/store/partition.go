package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/tag"
)

// SQLite caps bind variables at 999 per statement.
const (
	nodeCols       = 12
	nodesBatchSize = 999 / nodeCols
	edgeCols       = 4
	edgesBatchSize = 999 / edgeCols
)

// writeNodes replaces a batch of nodes using multi-row INSERTs inside
// the caller's transaction.
func writeNodes(tx *sql.Tx, nodes []*graph.Node) error {
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := i + nodesBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		if err := writeNodeChunk(tx, nodes[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func writeNodeChunk(tx *sql.Tx, batch []*graph.Node) error {
	var sb strings.Builder
	sb.WriteString(`INSERT OR REPLACE INTO nodes
		(id, node_type, kind, subtype, name, file_path, start_byte, end_byte, start_line, end_line, content_hash, metadata) VALUES `)

	args := make([]any, 0, len(batch)*nodeCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, n.ID, string(n.NodeType), n.Kind, n.Subtype, n.Name, n.FilePath,
			n.StartByte, n.EndByte, n.StartLine, n.EndLine, n.ContentHash, marshalMetadata(n.Metadata))
	}
	if _, err := tx.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("write nodes: %w", err)
	}
	return nil
}

func writeEdges(tx *sql.Tx, edges []graph.Edge) error {
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := i + edgesBatchSize
		if end > len(edges) {
			end = len(edges)
		}
		if err := writeEdgeChunk(tx, edges[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func writeEdgeChunk(tx *sql.Tx, batch []graph.Edge) error {
	var sb strings.Builder
	sb.WriteString(`INSERT OR REPLACE INTO edges (source, target, type, scope) VALUES `)

	args := make([]any, 0, len(batch)*edgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?)")
		args = append(args, e.Source, e.Target, string(e.Type), e.Scope)
	}
	if _, err := tx.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("write edges: %w", err)
	}
	return nil
}

// writePartitionFile writes one partition database from scratch:
// existing rows are cleared so a rewrite is a clean replacement.
func writePartitionFile(path string, nodes []*graph.Node, edges []graph.Edge) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM nodes"); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM edges"); err != nil {
		tx.Rollback()
		return err
	}
	if err := writeNodes(tx, nodes); err != nil {
		tx.Rollback()
		return err
	}
	if err := writeEdges(tx, edges); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// partitionData is a partition's contents promoted into memory.
type partitionData struct {
	nodes  map[string]*graph.Node
	byFile map[string][]*graph.Node
	edges  []graph.Edge
}

// readPartitionFile loads a partition database fully into memory.
func readPartitionFile(path string) (*partitionData, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	pd := &partitionData{
		nodes:  make(map[string]*graph.Node),
		byFile: make(map[string][]*graph.Node),
	}

	rows, err := db.Query(`SELECT id, node_type, kind, subtype, name, file_path,
		start_byte, end_byte, start_line, end_line, content_hash, metadata FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("read nodes %s: %w", path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var n graph.Node
		var nodeType, metadata string
		if err := rows.Scan(&n.ID, &nodeType, &n.Kind, &n.Subtype, &n.Name, &n.FilePath,
			&n.StartByte, &n.EndByte, &n.StartLine, &n.EndLine, &n.ContentHash, &metadata); err != nil {
			return nil, err
		}
		n.NodeType = tag.NodeType(nodeType)
		n.Metadata = unmarshalMetadata(metadata)
		pd.nodes[n.ID] = &n
		if n.FilePath != "" {
			pd.byFile[n.FilePath] = append(pd.byFile[n.FilePath], &n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := db.Query(`SELECT source, target, type, scope FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("read edges %s: %w", path, err)
	}
	defer erows.Close()
	for erows.Next() {
		var e graph.Edge
		var edgeType string
		if err := erows.Scan(&e.Source, &e.Target, &edgeType, &e.Scope); err != nil {
			return nil, err
		}
		e.Type = graph.EdgeType(edgeType)
		pd.edges = append(pd.edges, e)
	}
	return pd, erows.Err()
}
