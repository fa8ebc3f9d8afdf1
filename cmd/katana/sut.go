package main

import (
	"fmt"
	"strings"

	"github.com/YpS-YpS/katana/internal/config"
	"github.com/YpS-YpS/katana/internal/fleet"
	"github.com/spf13/cobra"
)

func newSUTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sut",
		Short: "Manage registered SUTs",
	}

	cmd.AddCommand(newSUTAddCmd())
	cmd.AddCommand(newSUTListCmd())
	cmd.AddCommand(newSUTRemoveCmd())
	return cmd
}

func newSUTAddCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a SUT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSUTAdd(cmd, configPath, args[0], addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "katana.yaml", "path to Katana config file")
	cmd.Flags().StringVar(&addr, "addr", "", "agent address (host or host:port)")
	cmd.MarkFlagRequired("addr")
	return cmd
}

func runSUTAdd(cmd *cobra.Command, configPath, name, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := fleet.Load(cfg.StateFile)
	if err != nil {
		return err
	}

	if st.Find(name) != nil {
		return fmt.Errorf("SUT %q already registered", name)
	}
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, cfg.Agent.Port)
	}

	st.SUTs = append(st.SUTs, fleet.SUT{
		Name: name,
		Addr: addr,
		Single: fleet.SingleSettings{
			RunCount: fleet.DefaultRunCount,
			RunDelay: fleet.DefaultRunDelay,
		},
		Campaign: fleet.CampaignSettings{
			Name:              "Default",
			DelayBetweenGames: fleet.DefaultGameDelay,
			ContinueOnFailure: fleet.DefaultContinueOnFailure,
		},
	})
	if err := fleet.Save(cfg.StateFile, st); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", name, addr)
	return nil
}

func newSUTListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered SUTs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSUTList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "katana.yaml", "path to Katana config file")
	return cmd
}

func runSUTList(cmd *cobra.Command, configPath string) error {
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

	fmt.Fprintf(out, "%-20s %-22s %-20s %s\n", "NAME", "ADDR", "CAMPAIGN", "GAMES")
	for _, s := range st.SUTs {
		fmt.Fprintf(out, "%-20s %-22s %-20s %d\n", s.Name, s.Addr, s.Campaign.Name, len(s.Campaign.Games))
	}
	return nil
}

func newSUTRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a registered SUT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSUTRemove(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "katana.yaml", "path to Katana config file")
	return cmd
}

func runSUTRemove(cmd *cobra.Command, configPath, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := fleet.Load(cfg.StateFile)
	if err != nil {
		return err
	}

	if !st.Remove(name) {
		return fmt.Errorf("no SUT named %q", name)
	}
	if err := fleet.Save(cfg.StateFile, st); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
	return nil
}
