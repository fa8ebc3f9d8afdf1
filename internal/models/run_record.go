package models

import "time"

// RunRecord is one automation run of one game on one SUT.
type RunRecord struct {
	ID         uint   `gorm:"primaryKey"`
	SUTName    string `gorm:"size:64;index"`
	GameName   string `gorm:"size:128"`
	RunNumber  int
	TotalRuns  int
	Campaign   string `gorm:"size:128"` // empty for single-game runs
	Status     string `gorm:"size:16;index"`
	FailReason string `gorm:"size:512"`
	StartedAt  time.Time
	FinishedAt time.Time
}
