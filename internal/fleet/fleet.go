// Package fleet defines the SUT registry and its persisted JSON state.
package fleet

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Defaults applied when the persisted state omits optional fields.
const (
	DefaultRunCount          = 3
	DefaultRunDelay          = 30  // seconds between runs of one game
	DefaultGameDelay         = 120 // seconds between games in a campaign
	DefaultContinueOnFailure = true
)

// GameEntry is a single game in a campaign (or the single-game target).
type GameEntry struct {
	GameName   string `json:"game_name"`
	ConfigPath string `json:"config_path"`
	GamePath   string `json:"game_path"`
	RunCount   int    `json:"run_count"`
	RunDelay   int    `json:"run_delay"`
}

// SingleSettings holds the single-game mode target and iteration settings.
type SingleSettings struct {
	ConfigPath string `json:"config_path"`
	GamePath   string `json:"game_path"`
	RunCount   int    `json:"run_count"`
	RunDelay   int    `json:"run_delay"`
}

// CampaignSettings holds the ordered game list and campaign-level policy.
type CampaignSettings struct {
	Name              string      `json:"campaign_name"`
	DelayBetweenGames int         `json:"delay_between_games"`
	ContinueOnFailure bool        `json:"continue_on_failure"`
	Games             []GameEntry `json:"campaign"`
}

// SUT identifies one target machine and its saved automation settings.
type SUT struct {
	Name     string           `json:"name"`
	Addr     string           `json:"addr"`
	Single   SingleSettings   `json:"single"`
	Campaign CampaignSettings `json:"campaign_settings"`
}

// State is the whole persisted fleet: every registered SUT in order.
type State struct {
	SUTs []SUT `json:"suts"`
}

// sutWire mirrors SUT for JSON decoding. Pointer fields distinguish
// "absent" from zero so absent optional fields get the documented defaults.
type sutWire struct {
	Name     string `json:"name"`
	Addr     string `json:"addr"`
	Single   struct {
		ConfigPath string `json:"config_path"`
		GamePath   string `json:"game_path"`
		RunCount   *int   `json:"run_count"`
		RunDelay   *int   `json:"run_delay"`
	} `json:"single"`
	Campaign struct {
		Name              string `json:"campaign_name"`
		DelayBetweenGames *int   `json:"delay_between_games"`
		ContinueOnFailure *bool  `json:"continue_on_failure"`
		Games             []struct {
			GameName   string `json:"game_name"`
			ConfigPath string `json:"config_path"`
			GamePath   string `json:"game_path"`
			RunCount   *int   `json:"run_count"`
			RunDelay   *int   `json:"run_delay"`
		} `json:"campaign"`
	} `json:"campaign_settings"`
}

// UnmarshalJSON decodes a SUT, substituting defaults for absent fields.
func (s *SUT) UnmarshalJSON(data []byte) error {
	var w sutWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.Name = w.Name
	s.Addr = w.Addr

	s.Single = SingleSettings{
		ConfigPath: w.Single.ConfigPath,
		GamePath:   w.Single.GamePath,
		RunCount:   intOr(w.Single.RunCount, DefaultRunCount),
		RunDelay:   intOr(w.Single.RunDelay, DefaultRunDelay),
	}

	s.Campaign = CampaignSettings{
		Name:              w.Campaign.Name,
		DelayBetweenGames: intOr(w.Campaign.DelayBetweenGames, DefaultGameDelay),
		ContinueOnFailure: boolOr(w.Campaign.ContinueOnFailure, DefaultContinueOnFailure),
	}
	if s.Campaign.Name == "" {
		s.Campaign.Name = "Default"
	}
	for _, g := range w.Campaign.Games {
		name := g.GameName
		if name == "" {
			name = "Unknown Game"
		}
		s.Campaign.Games = append(s.Campaign.Games, GameEntry{
			GameName:   name,
			ConfigPath: g.ConfigPath,
			GamePath:   g.GamePath,
			RunCount:   intOr(g.RunCount, DefaultRunCount),
			RunDelay:   intOr(g.RunDelay, DefaultRunDelay),
		})
	}

	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Load reads the fleet state file. A missing file is an empty fleet, not an
// error, so a fresh install starts clean.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("fleet: read %s: %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("fleet: parse %s: %w", path, err)
	}
	if err := st.validate(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Save writes the fleet state to path.
func Save(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("fleet: marshal state: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("fleet: write %s: %w", path, err)
	}
	return nil
}

// validate checks that SUT names are present and unique.
func (st *State) validate() error {
	var errs []string
	seen := make(map[string]bool, len(st.SUTs))
	for i, s := range st.SUTs {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("suts[%d].name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("duplicate SUT name %q", s.Name))
		}
		seen[s.Name] = true
		if s.Addr == "" {
			errs = append(errs, fmt.Sprintf("suts[%d].addr is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("fleet: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Find returns the SUT with the given name, or nil.
func (st *State) Find(name string) *SUT {
	for i := range st.SUTs {
		if st.SUTs[i].Name == name {
			return &st.SUTs[i]
		}
	}
	return nil
}

// Remove deletes the named SUT from the state. Returns false if not present.
func (st *State) Remove(name string) bool {
	for i := range st.SUTs {
		if st.SUTs[i].Name == name {
			st.SUTs = append(st.SUTs[:i], st.SUTs[i+1:]...)
			return true
		}
	}
	return false
}
