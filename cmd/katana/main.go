package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "katana",
		Short: "Katana — game UI-test orchestration",
		Long:  "Katana drives automated game launches and test runs across remote systems under test.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newSUTCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newKillCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "katana %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
