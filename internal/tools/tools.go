// Package tools exposes the graph over MCP: build and update
// operations plus the read-only query surface.
package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeatlas/codeatlas/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp      *mcp.Server
	repoPath string
	graphDir string

	mu  sync.Mutex // serializes builds; guards mgr
	mgr *store.Manager
}

// NewServer creates an MCP server bound to one repository and its
// graph directory, with all tools registered.
func NewServer(repoPath, graphDir string) *Server {
	srv := &Server{
		repoPath: repoPath,
		graphDir: graphDir,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "codeatlas",
				Version: "0.1.0",
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// manager returns a cached store manager, opening the graph on first
// use. Build and update invalidate the cache so later reads see the
// new manifest.
func (s *Server) manager() (*store.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		return s.mgr, nil
	}
	mgr, err := store.Open(s.graphDir)
	if err != nil {
		return nil, fmt.Errorf("open graph at %s (run build_graph first?): %w", s.graphDir, err)
	}
	s.mgr = mgr
	return mgr, nil
}

func (s *Server) invalidate() {
	s.mu.Lock()
	s.mgr = nil
	s.mu.Unlock()
}

func (s *Server) registerTools() {
	// 1. build_graph
	s.mcp.AddTool(&mcp.Tool{
		Name:        "build_graph",
		Description: "Build the code knowledge graph from scratch. Parses every source file, extracts containers/callables/data entities, resolves references into USES edges, extracts components from package manifests, and writes the partitioned graph store.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_path": {
					"type": "string",
					"description": "Repository root to index. Defaults to the server's configured repository."
				}
			}
		}`),
	}, s.handleBuildGraph)

	// 2. update_graph
	s.mcp.AddTool(&mcp.Tool{
		Name:        "update_graph",
		Description: "Incrementally update the graph from file content hashes. Only changed files are re-extracted; deleted files' entities are removed, and references are re-resolved. Falls back to a full rebuild when the store is missing or a package manifest changed.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"force": {
					"type": "boolean",
					"description": "Treat every file as changed and rebuild the whole store."
				}
			}
		}`),
	}, s.handleUpdateGraph)

	// 3. graph_stats
	s.mcp.AddTool(&mcp.Tool{
		Name:        "graph_stats",
		Description: "Summarize the stored graph from the manifest alone: node counts by kind, edge counts by type, partition and file counts, and the Merkle root hash. Never loads partition data.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleGraphStats)

	// 4. get_node
	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_node",
		Description: "Fetch one graph node by ID (e.g. 'src/app.py:App:run') with its incoming and outgoing edges. Node IDs are file path plus the qualified name joined by ':'.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_id": {
					"type": "string",
					"description": "Node ID, e.g. 'src/app.py:App:run', 'component:express', or a file path for file nodes."
				}
			},
			"required": ["node_id"]
		}`),
	}, s.handleGetNode)

	// 5. list_nodes
	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_nodes",
		Description: "List graph nodes filtered by node type (container/callable/data), kind (function, method, type, ...), subtype, and/or file path prefix. Results are sorted by node ID.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_type": {
					"type": "string",
					"description": "Filter: 'container', 'callable', or 'data'."
				},
				"kind": {
					"type": "string",
					"description": "Filter by kind, e.g. 'function', 'method', 'type', 'component'."
				},
				"subtype": {
					"type": "string",
					"description": "Filter by subtype, e.g. 'struct', 'interface', 'unresolved'."
				},
				"path_prefix": {
					"type": "string",
					"description": "Restrict to files under this path prefix, e.g. 'src/'."
				},
				"limit": {
					"type": "integer",
					"description": "Max results (default 50, max 500)."
				}
			}
		}`),
	}, s.handleListNodes)

	// 6. get_subtree
	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_subtree",
		Description: "Return a file's node and everything transitively contained in it (classes, functions, fields), ordered by position in the file. Loads only the partition holding that file.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "Repository-relative file path, e.g. 'src/app.py'."
				}
			},
			"required": ["file_path"]
		}`),
	}, s.handleGetSubtree)

	// 7. list_partitions
	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_partitions",
		Description: "List graph partitions with their file names, checksums, and node/edge counts, from the manifest only.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListPartitions)
}

// jsonResult marshals data to JSON and returns it as a tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

func getStringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func getIntArg(args map[string]any, key string, defaultVal int) int {
	if f, ok := args[key].(float64); ok { // JSON numbers decode as float64
		return int(f)
	}
	return defaultVal
}

func getBoolArg(args map[string]any, key string) bool {
	b, ok := args[key].(bool)
	return ok && b
}
