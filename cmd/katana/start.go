package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/YpS-YpS/katana/internal/config"
	"github.com/YpS-YpS/katana/internal/controller"
	"github.com/YpS-YpS/katana/internal/dashboard"
	"github.com/YpS-YpS/katana/internal/db"
	"github.com/YpS-YpS/katana/internal/fleet"
	"github.com/YpS-YpS/katana/internal/logstream"
	"github.com/YpS-YpS/katana/internal/notify"
	"github.com/YpS-YpS/katana/internal/schedule"
	"github.com/YpS-YpS/katana/internal/transport"
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	var (
		configPath string
		sutFilter  string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Katana controller daemon",
		Long:  "Loads the fleet, starts one controller per SUT, and serves the dashboard API until interrupted. Schedules from the config fire automatically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath, sutFilter)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "katana.yaml", "path to Katana config file")
	cmd.Flags().StringVar(&sutFilter, "sut", "", "only manage the named SUT")
	return cmd
}

func runStart(cmd *cobra.Command, configPath, sutFilter string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := fleet.Load(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("load fleet: %w", err)
	}
	if len(st.SUTs) == 0 {
		return fmt.Errorf("no SUTs registered; add one with 'katana sut add'")
	}

	gormDB, err := db.Connect(cfg.History)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg.Notifications)
	if err != nil {
		return err
	}

	logs := logstream.NewRouter(gormDB)
	manager := controller.NewManager()

	matched := false
	for _, sut := range st.SUTs {
		if sutFilter != "" && sut.Name != sutFilter {
			continue
		}
		matched = true
		manager.Add(controller.New(controller.Opts{
			SUT:               sut,
			Agent:             transport.New(sut.Addr),
			Logs:              logs,
			DB:                gormDB,
			Notifier:          notifier,
			RequireForeground: cfg.RequiresForeground(),
		}))
	}
	if !matched {
		return fmt.Errorf("no SUT named %q in %s", sutFilter, cfg.StateFile)
	}
	defer manager.StopAll()

	startJob := func(name, mode string) error {
		ctl, ok := manager.Get(name)
		if !ok {
			return fmt.Errorf("unknown SUT %q", name)
		}
		sut := ctl.SUT()
		var job controller.Job
		if mode == "single" {
			job = controller.SingleJob(sut.Single)
		} else {
			job = controller.CampaignJob(sut.Campaign)
		}
		return ctl.Start(job)
	}

	sched := schedule.New(startJob)
	for _, sc := range cfg.Schedules {
		if err := sched.Add(sc); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Managing %d SUT(s), %d schedule(s)\n", len(manager.Snapshots()), len(cfg.Schedules))

	return dashboard.Start(ctx, dashboard.StartOpts{
		Manager:  manager,
		Logs:     logs,
		StartJob: startJob,
		Port:     cfg.Dashboard.Port,
		Out:      cmd.OutOrStdout(),
	})
}

// buildNotifier assembles the configured notification channels. No
// configured channel means no notifier at all.
func buildNotifier(nc config.NotifyConfig) (notify.Notifier, error) {
	var multi notify.Multi
	if nc.SlackToken != "" {
		s, err := notify.NewSlack(notify.SlackOpts{Token: nc.SlackToken, ChannelID: nc.SlackChannel})
		if err != nil {
			return nil, err
		}
		multi = append(multi, s)
	}
	if nc.DiscordToken != "" {
		d, err := notify.NewDiscord(notify.DiscordOpts{Token: nc.DiscordToken, ChannelID: nc.DiscordChannel})
		if err != nil {
			return nil, err
		}
		multi = append(multi, d)
	}
	if len(multi) == 0 {
		return nil, nil
	}
	return multi, nil
}
