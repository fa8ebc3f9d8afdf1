package controller

import (
	"path/filepath"
	"strings"

	"github.com/YpS-YpS/katana/internal/fleet"
)

// JobKind tags the job variant. It is fixed at Start and never re-checked
// per call.
type JobKind int

const (
	JobSingle JobKind = iota
	JobCampaign
)

// Job is what a controller runs: either one game repeated, or an ordered
// campaign of games.
type Job struct {
	Kind     JobKind
	Single   fleet.SingleSettings
	Campaign fleet.CampaignSettings
}

// SingleJob builds a single-game job.
func SingleJob(s fleet.SingleSettings) Job {
	return Job{Kind: JobSingle, Single: s}
}

// CampaignJob builds a campaign job.
func CampaignJob(c fleet.CampaignSettings) Job {
	return Job{Kind: JobCampaign, Campaign: c}
}

// empty reports whether the job has no work at all.
func (j Job) empty() bool {
	switch j.Kind {
	case JobSingle:
		return j.Single.GamePath == ""
	default:
		return len(j.Campaign.Games) == 0
	}
}

// plan is the normalized execution form of a job: an ordered entry list
// plus the campaign-level policy. Single-game jobs get the strict policy
// (no inter-game delay, abort on failure), which matches their semantics
// without a second code path.
type plan struct {
	games             []fleet.GameEntry
	delayBetweenGames int
	continueOnFailure bool
	label             string
	campaign          string // empty for single-game jobs
}

func (j Job) plan() plan {
	if j.Kind == JobSingle {
		entry := fleet.GameEntry{
			GameName:   gameLabel(j.Single.GamePath),
			ConfigPath: j.Single.ConfigPath,
			GamePath:   j.Single.GamePath,
			RunCount:   countOrDefault(j.Single.RunCount),
			RunDelay:   j.Single.RunDelay,
		}
		return plan{
			games: []fleet.GameEntry{entry},
			label: entry.GameName,
		}
	}

	games := make([]fleet.GameEntry, len(j.Campaign.Games))
	for i, g := range j.Campaign.Games {
		g.RunCount = countOrDefault(g.RunCount)
		games[i] = g
	}
	return plan{
		games:             games,
		delayBetweenGames: j.Campaign.DelayBetweenGames,
		continueOnFailure: j.Campaign.ContinueOnFailure,
		label:             j.Campaign.Name,
		campaign:          j.Campaign.Name,
	}
}

func (p plan) totalRuns() int {
	total := 0
	for _, g := range p.games {
		total += g.RunCount
	}
	return total
}

func countOrDefault(n int) int {
	if n <= 0 {
		return fleet.DefaultRunCount
	}
	return n
}

// gameLabel derives a display name from a launch target.
func gameLabel(target string) string {
	base := filepath.Base(strings.ReplaceAll(target, `\`, `/`))
	if base == "." || base == "/" || base == "" {
		return "Unknown Game"
	}
	return base
}

// fallbackProcess guesses the kill target for a game whose launch never
// reported a detected process. Only plausible for direct executable paths.
func fallbackProcess(game fleet.GameEntry) string {
	if !strings.HasSuffix(strings.ToLower(game.GamePath), ".exe") {
		return ""
	}
	return gameLabel(game.GamePath)
}
