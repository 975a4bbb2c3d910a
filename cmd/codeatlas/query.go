package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/store"
)

const timeUnit = time.Millisecond

var statsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Summarize the stored graph from the manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

var nodeCmd = &cobra.Command{
	Use:   "node <node-id>",
	Short: "Show one node and its edges",
	Long:  "Node IDs are the file path plus the qualified name joined by ':', e.g. 'src/app.py:App:run'.",
	Args:  cobra.ExactArgs(1),
	RunE:  runNode,
}

var subtreeCmd = &cobra.Command{
	Use:   "subtree <file-path>",
	Short: "Show a file's entities in containment order",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubtree,
}

var partitionsCmd = &cobra.Command{
	Use:   "partitions [path]",
	Short: "List graph partitions with their counts and checksums",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPartitions,
}

func openStore(args []string) (*store.Manager, error) {
	repo, err := repoFromArgs(args)
	if err != nil {
		return nil, err
	}
	graphDir, err := graphDirFor(repo)
	if err != nil {
		return nil, err
	}
	return store.Open(graphDir)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runStats(cmd *cobra.Command, args []string) error {
	mgr, err := openStore(args)
	if err != nil {
		return err
	}
	stats := mgr.Stats()

	fmt.Printf("%d nodes, %d edges in %d partitions (%d files)\n",
		stats.Nodes, stats.Edges, stats.Partitions, stats.Files)
	fmt.Printf("merkle root %s\n", stats.MerkleRoot)

	kinds := make([]string, 0, len(stats.NodeCountsByKind))
	for k := range stats.NodeCountsByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-24s %d\n", k, stats.NodeCountsByKind[k])
	}
	types := make([]string, 0, len(stats.EdgeCountsByType))
	for t := range stats.EdgeCountsByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-24s %d\n", t, stats.EdgeCountsByType[t])
	}
	return nil
}

func runNode(cmd *cobra.Command, args []string) error {
	mgr, err := openStore(args[1:])
	if err != nil {
		return err
	}
	nodeID := args[0]
	node, err := mgr.GetNode(nodeID)
	if err != nil {
		return err
	}
	out, err := mgr.GetEdges(nodeID, store.DirOut, "")
	if err != nil {
		return err
	}
	in, err := mgr.GetEdges(nodeID, store.DirIn, "")
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"node":     node,
		"outgoing": out,
		"incoming": in,
	})
}

func runSubtree(cmd *cobra.Command, args []string) error {
	mgr, err := openStore(args[1:])
	if err != nil {
		return err
	}
	nodes, err := mgr.GetSubtree(args[0])
	if err != nil {
		return err
	}
	return printJSON(nodes)
}

func runPartitions(cmd *cobra.Command, args []string) error {
	mgr, err := openStore(args)
	if err != nil {
		return err
	}
	m := mgr.Manifest()

	ids := make([]string, 0, len(m.Partitions))
	for id := range m.Partitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		pe := m.Partitions[id]
		fmt.Printf("%-32s %s  %6d nodes  %6d edges  xxh3=%s\n",
			id, pe.File, pe.NodeCount, pe.EdgeCount, pe.Checksum)
	}
	return nil
}
