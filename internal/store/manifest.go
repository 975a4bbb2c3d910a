package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ManifestName  = "manifest.json"
	partitionsDir = "partitions"
	crossRefsFile = "cross_refs.db"
)

// RootInfo describes one indexed workspace root.
type RootInfo struct {
	Name         string `json:"name"`
	RootType     string `json:"root_type"` // "repository" or "workspace"
	RelativePath string `json:"relative_path"`
	RemoteURL    string `json:"remote_url,omitempty"`
	Branch       string `json:"branch,omitempty"`
	Commit       string `json:"commit,omitempty"`
}

// PartitionEntry describes one partition file in the manifest.
type PartitionEntry struct {
	File      string `json:"file"`
	Checksum  string `json:"checksum"` // xxh3 of the partition file bytes
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// FileEntry ties a source file to its partition and content hash. The
// content hashes double as the Merkle leaves.
type FileEntry struct {
	PartitionID string `json:"partition_id"`
	ContentHash string `json:"content_hash"`
}

// Manifest is the top-level index of a stored graph. It alone must be
// loadable in O(1) relative to repository size.
type Manifest struct {
	Version          int                       `json:"version"`
	Roots            []RootInfo                `json:"roots"`
	Partitions       map[string]PartitionEntry `json:"partitions"`
	Files            map[string]FileEntry      `json:"files"`
	MerkleRoot       string                    `json:"merkle_root"`
	NodeCountsByKind map[string]int            `json:"node_counts_by_kind"`
	EdgeCountsByType map[string]int            `json:"edge_counts_by_type"`
}

const manifestVersion = 1

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version:          manifestVersion,
		Partitions:       make(map[string]PartitionEntry),
		Files:            make(map[string]FileEntry),
		NodeCountsByKind: make(map[string]int),
		EdgeCountsByType: make(map[string]int),
	}
}

// Save writes the manifest atomically (temp file + rename). Callers
// must write partition data first: committing the manifest is the last
// step of every save.
func (m *Manifest) Save(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := filepath.Join(dir, ManifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, ManifestName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest from a graph directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	m := NewManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Partitions == nil {
		m.Partitions = make(map[string]PartitionEntry)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileEntry)
	}
	return m, nil
}

// LeafHashes extracts the per-file content hashes, i.e. the stored
// Merkle leaves.
func (m *Manifest) LeafHashes() map[string]string {
	out := make(map[string]string, len(m.Files))
	for p, fe := range m.Files {
		out[p] = fe.ContentHash
	}
	return out
}
