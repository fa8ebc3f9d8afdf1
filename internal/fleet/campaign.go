package fleet

// Campaign edit operations. These mutate the saved settings only; entries
// already picked up by a running job are unaffected until the next start.

// AddGame appends a game to the campaign, applying entry defaults.
func (c *CampaignSettings) AddGame(g GameEntry) {
	if g.RunCount < 1 {
		g.RunCount = DefaultRunCount
	}
	if g.RunDelay < 0 {
		g.RunDelay = DefaultRunDelay
	}
	c.Games = append(c.Games, g)
}

// RemoveGame deletes the game at index. Out-of-range indexes are ignored.
func (c *CampaignSettings) RemoveGame(index int) {
	if index < 0 || index >= len(c.Games) {
		return
	}
	c.Games = append(c.Games[:index], c.Games[index+1:]...)
}

// MoveGameUp swaps the game at index with its predecessor.
func (c *CampaignSettings) MoveGameUp(index int) {
	if index <= 0 || index >= len(c.Games) {
		return
	}
	c.Games[index], c.Games[index-1] = c.Games[index-1], c.Games[index]
}

// MoveGameDown swaps the game at index with its successor.
func (c *CampaignSettings) MoveGameDown(index int) {
	if index < 0 || index >= len(c.Games)-1 {
		return
	}
	c.Games[index], c.Games[index+1] = c.Games[index+1], c.Games[index]
}

// Clear removes all games from the campaign.
func (c *CampaignSettings) Clear() {
	c.Games = nil
}

// TotalRuns sums the run counts of every game in the campaign.
func (c *CampaignSettings) TotalRuns() int {
	total := 0
	for _, g := range c.Games {
		total += g.RunCount
	}
	return total
}
