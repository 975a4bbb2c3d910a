package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codeatlas/codeatlas/internal/graph"
)

// Each partition database is self-describing: it carries its own node
// and edge records and is independently loadable.
const partitionSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	node_type TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	subtype TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	file_path TEXT NOT NULL DEFAULT '',
	start_byte INTEGER NOT NULL DEFAULT 0,
	end_byte INTEGER NOT NULL DEFAULT 0,
	start_line INTEGER NOT NULL DEFAULT 0,
	end_line INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_path);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(node_type, kind);

CREATE TABLE IF NOT EXISTS edges (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	type TEXT NOT NULL,
	scope TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (source, target, type)
);

CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target, type);
`

// openDB opens (creating if needed) a partition database.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	if _, err := db.Exec(partitionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema %s: %w", path, err)
	}
	return db, nil
}

func marshalMetadata(m graph.Metadata) string {
	if m.IsZero() {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalMetadata(data string) graph.Metadata {
	var m graph.Metadata
	if data == "" || data == "{}" {
		return m
	}
	_ = json.Unmarshal([]byte(data), &m)
	return m
}
