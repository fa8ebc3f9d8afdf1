package models

import "time"

// LaunchRecord is the outcome of one remote launch request.
type LaunchRecord struct {
	ID                  uint   `gorm:"primaryKey"`
	SUTName             string `gorm:"size:64;index"`
	Target              string `gorm:"size:512"` // path or store app ID as requested
	Status              string `gorm:"size:16"`  // success / warning / error / cancelled
	LaunchMethod        string `gorm:"size:16"`
	ResolvedPath        string `gorm:"size:512"`
	GameProcessPID      int32
	GameProcessName     string `gorm:"size:128"`
	ForegroundConfirmed bool
	Detail              string `gorm:"size:512"` // warning or error text
	DurationMS          int64
	CreatedAt           time.Time
}
