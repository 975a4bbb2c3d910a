package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas/codeatlas/internal/build"
	"github.com/codeatlas/codeatlas/internal/incremental"
	"github.com/codeatlas/codeatlas/internal/store"
)

func (s *Server) handleBuildGraph(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	repoPath := getStringArg(args, "repo_path")
	if repoPath == "" {
		repoPath = s.repoPath
	}

	report, err := build.Build(ctx, build.Options{RepoPath: repoPath, GraphDir: s.graphDir})
	if err != nil {
		return errResult(fmt.Sprintf("build failed: %v", err)), nil
	}
	s.invalidate()

	return jsonResult(map[string]any{
		"files":           report.Files,
		"manifest_files":  report.ManifestFiles,
		"nodes":           report.Nodes,
		"edges":           report.Edges,
		"resolved_refs":   report.ResolvedRefs,
		"unresolved_refs": report.UnresolvedRefs,
		"partitions":      report.Partitions,
		"failures":        report.Failures,
		"elapsed":         report.Duration.String(),
	}), nil
}

func (s *Server) handleUpdateGraph(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	report, err := incremental.Update(ctx, incremental.Options{
		RepoPath: s.repoPath,
		GraphDir: s.graphDir,
		Force:    getBoolArg(args, "force"),
	})
	if err != nil {
		return errResult(fmt.Sprintf("update failed: %v", err)), nil
	}
	s.invalidate()

	return jsonResult(map[string]any{
		"files_changed": report.FilesChanged,
		"files_added":   report.FilesAdded,
		"files_deleted": report.FilesDeleted,
		"nodes_touched": report.NodesTouched,
		"full_rebuild":  report.FullRebuild,
		"failures":      report.Failures,
		"elapsed":       report.Duration.String(),
	}), nil
}

func (s *Server) handleGraphStats(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mgr, err := s.manager()
	if err != nil {
		return errResult(err.Error()), nil
	}
	stats := mgr.Stats()
	return jsonResult(map[string]any{
		"roots":               stats.Roots,
		"partitions":          stats.Partitions,
		"files":               stats.Files,
		"nodes":               stats.Nodes,
		"edges":               stats.Edges,
		"node_counts_by_kind": stats.NodeCountsByKind,
		"edge_counts_by_type": stats.EdgeCountsByType,
		"merkle_root":         stats.MerkleRoot,
	}), nil
}

func (s *Server) handleGetNode(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	nodeID := getStringArg(args, "node_id")
	if nodeID == "" {
		return errResult("node_id is required"), nil
	}

	mgr, err := s.manager()
	if err != nil {
		return errResult(err.Error()), nil
	}
	node, err := mgr.GetNode(nodeID)
	if err != nil {
		return errResult(err.Error()), nil
	}
	out, err := mgr.GetEdges(nodeID, store.DirOut, "")
	if err != nil {
		return errResult(err.Error()), nil
	}
	in, err := mgr.GetEdges(nodeID, store.DirIn, "")
	if err != nil {
		return errResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"node":     node,
		"outgoing": out,
		"incoming": in,
	}), nil
}

func (s *Server) handleListNodes(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	limit := getIntArg(args, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	mgr, err := s.manager()
	if err != nil {
		return errResult(err.Error()), nil
	}
	nodes, err := mgr.ListNodes(store.NodeFilter{
		NodeType:   getStringArg(args, "node_type"),
		Kind:       getStringArg(args, "kind"),
		Subtype:    getStringArg(args, "subtype"),
		PathPrefix: getStringArg(args, "path_prefix"),
	})
	if err != nil {
		return errResult(err.Error()), nil
	}

	total := len(nodes)
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return jsonResult(map[string]any{
		"total": total,
		"nodes": nodes,
	}), nil
}

func (s *Server) handleGetSubtree(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	filePath := getStringArg(args, "file_path")
	if filePath == "" {
		return errResult("file_path is required"), nil
	}

	mgr, err := s.manager()
	if err != nil {
		return errResult(err.Error()), nil
	}
	nodes, err := mgr.GetSubtree(filePath)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"file":  filePath,
		"nodes": nodes,
	}), nil
}

func (s *Server) handleListPartitions(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mgr, err := s.manager()
	if err != nil {
		return errResult(err.Error()), nil
	}
	m := mgr.Manifest()

	type partition struct {
		ID        string `json:"id"`
		File      string `json:"file"`
		Checksum  string `json:"checksum"`
		NodeCount int    `json:"node_count"`
		EdgeCount int    `json:"edge_count"`
	}
	parts := make([]partition, 0, len(m.Partitions))
	for id, pe := range m.Partitions {
		parts = append(parts, partition{
			ID: id, File: pe.File, Checksum: pe.Checksum,
			NodeCount: pe.NodeCount, EdgeCount: pe.EdgeCount,
		})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })

	return jsonResult(map[string]any{
		"graph_dir":  s.graphDir,
		"partitions": parts,
	}), nil
}
