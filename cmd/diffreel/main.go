// Package main provides the entry point for the diffreel CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffreel/diffreel/cmd/diffreel/commands"
	"github.com/diffreel/diffreel/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "diffreel",
		Short: "Diffreel - render a commit range as a reviewable diff reel",
		Long: `Diffreel turns a branch's commits into a paginated set of
side-by-side diff images plus a markdown document that stitches
them into a reviewable narrative.

Commands:
  generate  Resolve a commit range and render its diff reel`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "diffreel %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
