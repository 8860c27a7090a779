// Package main provides the entry point for the branchstat CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/branchstat/cmd/branchstat/commands"
	"github.com/Sumatoshi-tech/branchstat/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "branchstat",
		Short: "Branch analytics for Git repositories",
		Long: `branchstat measures what each branch adds on top of its base:
commits, lines added and removed, files touched and contributing authors.

Commands:
  details   Per-branch statistics for virtual and real branches
  mcp       Serve branch details to AI agents over stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewDetailsCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "branchstat %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
