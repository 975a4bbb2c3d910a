package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the graph over MCP on stdio",
	Long:  "Exposes build_graph, update_graph, graph_stats, get_node, list_nodes, get_subtree, and list_partitions as MCP tools for agent clients.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	repo, err := repoFromArgs(args)
	if err != nil {
		return err
	}
	graphDir, err := graphDirFor(repo)
	if err != nil {
		return err
	}

	srv := tools.NewServer(repo, graphDir)
	return srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{})
}
