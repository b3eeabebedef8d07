package model

import "time"

// RestoreLease marks one reforecast in flight for a territory and
// scenario. Its primary key is the mutual-exclusion token: a second
// restore for the same pair fails on insert.
type RestoreLease struct {
	TerritoryID int64     `gorm:"column:territory_id;primaryKey"`
	Scenario    string    `gorm:"column:scenario;primaryKey"`
	JobID       int64     `gorm:"column:job_id"`
	AcquiredAt  time.Time `gorm:"column:acquired_at"`
}

func (RestoreLease) TableName() string {
	return "restore_leases"
}
