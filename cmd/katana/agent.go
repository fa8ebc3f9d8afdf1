package main

import (
	"os/signal"
	"syscall"

	"github.com/YpS-YpS/katana/internal/agent"
	"github.com/YpS-YpS/katana/internal/steam"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	var (
		port      int
		steamRoot string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the SUT-resident launch agent",
		Long:  "Serves the launch endpoints on this machine so a controller can start games, verify their windows, and kill processes remotely.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, port, steamRoot)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	cmd.Flags().StringVar(&steamRoot, "steam-root", "", "Steam installation root (default: autodetect)")
	return cmd
}

func runAgent(cmd *cobra.Command, port int, steamRoot string) error {
	opts := agent.Options{}
	if steamRoot != "" {
		opts.Resolver = &steam.Resolver{Root: steamRoot}
	}
	engine := agent.NewEngine(opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return agent.Start(ctx, agent.StartOpts{
		Engine:  engine,
		Port:    port,
		Version: Version,
		Out:     cmd.OutOrStdout(),
	})
}
