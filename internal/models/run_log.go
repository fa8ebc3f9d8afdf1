package models

import "time"

// RunLog is a chunk of worker log output, flushed periodically per SUT.
type RunLog struct {
	ID        uint   `gorm:"primaryKey"`
	SUTName   string `gorm:"size:64;index"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}
