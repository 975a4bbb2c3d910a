package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/config"
)

var version = "dev"

var (
	flagGraphDir string
	flagVerbose  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codeatlas",
	Short:         "Multi-language source-code knowledge graph",
	Long:          "codeatlas parses source code with tree-sitter query catalogs into a typed entity graph (containers, callables, data) stored in partitioned SQLite files with hash-based incremental updates.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagGraphDir, "graph-dir", "", "graph store directory (default: .codeatlas under the repo root)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(subtreeCmd)
	rootCmd.AddCommand(partitionsCmd)
	rootCmd.AddCommand(serveCmd)
}

// repoFromArgs resolves the repository root from the optional
// positional argument, defaulting to the working directory.
func repoFromArgs(args []string) (string, error) {
	repo := "."
	if len(args) > 0 {
		repo = args[0]
	}
	return filepath.Abs(repo)
}

// graphDirFor resolves the store directory for a repository, honoring
// the --graph-dir flag over the per-repo config.
func graphDirFor(repoPath string) (string, error) {
	if flagGraphDir != "" {
		return filepath.Abs(flagGraphDir)
	}
	cfg, err := config.Load(repoPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(repoPath, cfg.OutputDir), nil
}
