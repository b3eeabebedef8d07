package restorator

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dividedRow is one per-building per-age assignment in the divide
// working database.
type dividedRow struct {
	ID          int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TerritoryID int64 `gorm:"column:territory_id;index"`
	HouseID     int64 `gorm:"column:house_id;index"`
	Age         int   `gorm:"column:age"`
	Men         int64 `gorm:"column:men"`
	Women       int64 `gorm:"column:women"`
}

func (dividedRow) TableName() string { return "divided" }

// forecastedRow is one per-building per-age projection in a per-year
// forecast database.
type forecastedRow struct {
	ID          int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TerritoryID int64 `gorm:"column:territory_id;index"`
	HouseID     int64 `gorm:"column:house_id;index"`
	Age         int   `gorm:"column:age"`
	Men         int64 `gorm:"column:men"`
	Women       int64 `gorm:"column:women"`
}

func (forecastedRow) TableName() string { return "forecasted" }

func openSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func closeSQLite(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
