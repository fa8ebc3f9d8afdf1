// Package config provides YAML-based configuration loading for Katana.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Katana configuration, loaded from katana.yaml.
type Config struct {
	StateFile         string           `yaml:"state_file"`
	LogDir            string           `yaml:"log_dir"`
	RequireForeground *bool            `yaml:"require_foreground"`
	History           HistoryConfig    `yaml:"history"`
	Dashboard         DashboardConfig  `yaml:"dashboard"`
	Agent             AgentConfig      `yaml:"agent"`
	Notifications     NotifyConfig     `yaml:"notifications"`
	Schedules         []ScheduleConfig `yaml:"schedules"`
}

// HistoryConfig selects the run-history database backend.
type HistoryConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`   // mysql
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Name   string `yaml:"database"`
}

// DashboardConfig holds the controller-side HTTP API settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// AgentConfig holds defaults applied to every launch request.
type AgentConfig struct {
	Port        int `yaml:"port"`         // default agent port for new SUTs
	StartupWait int `yaml:"startup_wait"` // default max seconds to wait for the game process
}

// NotifyConfig holds credentials for terminal-state notifications.
// Empty tokens disable the corresponding channel.
type NotifyConfig struct {
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// ScheduleConfig starts a job on a SUT from a cron expression.
type ScheduleConfig struct {
	SUT  string `yaml:"sut"`
	Cron string `yaml:"cron"`
	Mode string `yaml:"mode"` // "single" or "campaign"
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.StateFile == "" {
		c.StateFile = "katana_suts.json"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.History.Driver == "" {
		c.History.Driver = "sqlite"
	}
	if c.History.Driver == "sqlite" && c.History.Path == "" {
		c.History.Path = "katana_history.db"
	}
	if c.History.Driver == "mysql" {
		if c.History.Host == "" {
			c.History.Host = "127.0.0.1"
		}
		if c.History.Port == 0 {
			c.History.Port = 3306
		}
		if c.History.User == "" {
			c.History.User = "root"
		}
		if c.History.Name == "" {
			c.History.Name = "katana"
		}
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8090
	}
	if c.Agent.Port == 0 {
		c.Agent.Port = 8080
	}
	if c.Agent.StartupWait == 0 {
		c.Agent.StartupWait = 30
	}
	for i := range c.Schedules {
		if c.Schedules[i].Mode == "" {
			c.Schedules[i].Mode = "campaign"
		}
	}
}

// RequiresForeground reports the launch policy: whether a warning-grade
// launch (process up, foreground unconfirmed) fails the run. Defaults true.
func (c *Config) RequiresForeground() bool {
	if c.RequireForeground == nil {
		return true
	}
	return *c.RequireForeground
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.History.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("history.driver %q is not supported (sqlite or mysql)", c.History.Driver))
	}
	if (c.Notifications.SlackToken == "") != (c.Notifications.SlackChannel == "") {
		errs = append(errs, "notifications: slack_token and slack_channel must be set together")
	}
	if (c.Notifications.DiscordToken == "") != (c.Notifications.DiscordChannel == "") {
		errs = append(errs, "notifications: discord_token and discord_channel must be set together")
	}
	for i, s := range c.Schedules {
		if s.SUT == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d].sut is required", i))
		}
		if s.Cron == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d].cron is required", i))
		} else if _, err := cron.ParseStandard(s.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("schedules[%d].cron %q: %v", i, s.Cron, err))
		}
		if s.Mode != "single" && s.Mode != "campaign" {
			errs = append(errs, fmt.Sprintf("schedules[%d].mode %q is not supported (single or campaign)", i, s.Mode))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
