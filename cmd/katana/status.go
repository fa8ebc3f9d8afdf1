package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/YpS-YpS/katana/internal/config"
	"github.com/YpS-YpS/katana/internal/fleet"
	"github.com/YpS-YpS/katana/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ANSI colors, used only when stdout is a terminal.
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe every registered SUT agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatusProbe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "katana.yaml", "path to Katana config file")
	return cmd
}

func runStatusProbe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := fleet.Load(cfg.StateFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(st.SUTs) == 0 {
		fmt.Fprintln(out, "No SUTs registered.")
		return nil
	}

	color := term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Fprintf(out, "%-20s %-22s %-10s %-12s %s\n", "NAME", "ADDR", "AGENT", "VERSION", "GAME PROCESS")

	for _, s := range st.SUTs {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		status, err := transport.New(s.Addr).Status(ctx)
		cancel()

		if err != nil {
			fmt.Fprintf(out, "%-20s %-22s %-10s\n", s.Name, s.Addr, paint("down", colorRed, color))
			continue
		}
		fmt.Fprintf(out, "%-20s %-22s %-10s %-12s %s\n",
			s.Name, s.Addr, paint("up", colorGreen, color), status.Version, status.GameProcess)
	}
	return nil
}

func paint(s, code string, enabled bool) string {
	if !enabled {
		return s
	}
	return code + s + colorReset
}
