package restorator

import (
	"context"
)

// ExportYearAgeValues reads one per-year forecast database back as flat
// house/age rows. An empty result means the database holds nothing for
// this territory; the caller decides whether that is an error.
func (e *DefaultEngine) ExportYearAgeValues(ctx context.Context, dbPath string, territoryID int64) ([]YearAgeValue, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	defer closeSQLite(db)

	var rows []forecastedRow
	if err := db.WithContext(ctx).
		Where("territory_id = ?", territoryID).
		Order("house_id, age").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	values := make([]YearAgeValue, len(rows))
	for i, row := range rows {
		values[i] = YearAgeValue{
			HouseID: row.HouseID,
			Age:     row.Age,
			Men:     row.Men,
			Women:   row.Women,
		}
	}
	return values, nil
}
