// Package main provides the entry point for the blockaudit CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockaudit/cmd/blockaudit/commands"
	"github.com/Sumatoshi-tech/blockaudit/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blockaudit",
		Short: "Block usage audit for stored documents",
		Long: `blockaudit counts which content blocks appear across a document store.

Commands:
  run       Audit documents added since the last run
  import    Load documents into the store
  mcp       Serve the audit as MCP tools over stdio
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
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
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
