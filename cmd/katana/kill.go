package main

import (
	"context"
	"fmt"
	"time"

	"github.com/YpS-YpS/katana/internal/config"
	"github.com/YpS-YpS/katana/internal/fleet"
	"github.com/YpS-YpS/katana/internal/transport"
	"github.com/spf13/cobra"
)

func newKillCmd() *cobra.Command {
	var (
		configPath string
		sutName    string
		process    string
	)

	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Kill a process on a SUT",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKill(cmd, configPath, sutName, process)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "katana.yaml", "path to Katana config file")
	cmd.Flags().StringVar(&sutName, "sut", "", "SUT name")
	cmd.Flags().StringVar(&process, "process", "", "process name to kill")
	cmd.MarkFlagRequired("sut")
	cmd.MarkFlagRequired("process")
	return cmd
}

func runKill(cmd *cobra.Command, configPath, sutName, process string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := fleet.Load(cfg.StateFile)
	if err != nil {
		return err
	}

	sut := st.Find(sutName)
	if sut == nil {
		return fmt.Errorf("no SUT named %q", sutName)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	killed, err := transport.New(sut.Addr).KillProcess(ctx, process)
	if err != nil {
		return fmt.Errorf("kill %s on %s: %w", process, sutName, err)
	}

	if killed {
		fmt.Fprintf(cmd.OutOrStdout(), "Killed %s on %s\n", process, sutName)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s was not running on %s\n", process, sutName)
	}
	return nil
}
