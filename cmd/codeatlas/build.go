package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/build"
	"github.com/codeatlas/codeatlas/internal/incremental"
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build the knowledge graph from scratch",
	Long:  "Parses every source file, extracts entities and references, processes package manifests into components, and writes the partitioned graph store.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

var (
	flagForce bool
)

var updateCmd = &cobra.Command{
	Use:   "update [path]",
	Short: "Incrementally update the graph from changed files",
	Long:  "Diffs content hashes against the stored manifest and re-extracts only changed files. Deleted files' entities are removed; references are re-resolved.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&flagForce, "force", false, "treat every file as changed and rebuild")
}

func runBuild(cmd *cobra.Command, args []string) error {
	repo, err := repoFromArgs(args)
	if err != nil {
		return err
	}
	graphDir, err := graphDirFor(repo)
	if err != nil {
		return err
	}

	report, err := build.Build(cmd.Context(), build.Options{RepoPath: repo, GraphDir: graphDir})
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d files (%d manifests) in %s\n",
		report.Files, report.ManifestFiles, report.Duration.Round(timeUnit))
	fmt.Printf("  %d nodes, %d edges across %d partitions\n",
		report.Nodes, report.Edges, report.Partitions)
	fmt.Printf("  %d references resolved, %d unresolved\n",
		report.ResolvedRefs, report.UnresolvedRefs)
	printFailures(report.Failures)
	fmt.Printf("Graph written to %s\n", report.GraphDir)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	repo, err := repoFromArgs(args)
	if err != nil {
		return err
	}
	graphDir, err := graphDirFor(repo)
	if err != nil {
		return err
	}

	report, err := incremental.Update(cmd.Context(), incremental.Options{
		RepoPath: repo,
		GraphDir: graphDir,
		Force:    flagForce,
	})
	if err != nil {
		return err
	}

	if report.FullRebuild {
		fmt.Printf("Rebuilt: %d files, %d nodes in %s\n",
			report.FilesAdded, report.NodesTouched, report.Duration.Round(timeUnit))
	} else if report.FilesChanged+report.FilesAdded+report.FilesDeleted == 0 {
		fmt.Println("Up to date.")
	} else {
		fmt.Printf("Updated in %s: %d changed, %d added, %d deleted (%d nodes touched)\n",
			report.Duration.Round(timeUnit),
			report.FilesChanged, report.FilesAdded, report.FilesDeleted, report.NodesTouched)
	}
	printFailures(report.Failures)
	return nil
}

func printFailures(failures []build.Failure) {
	for _, f := range failures {
		fmt.Printf("  FAILED %s: %s\n", f.Path, f.Err)
	}
}
