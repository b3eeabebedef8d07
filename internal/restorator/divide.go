package restorator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/urbanlab/popforecast/internal/models"
)

// Divide splits every house's balanced population into per-age per-sex
// counts following the primary social group's probability distributions
// and persists the assignments at dbPath. Any previous division at that
// path is discarded first.
func (e *DefaultEngine) Divide(ctx context.Context, territoryID int64, houses []models.BalancedHouse, distribution SocialGroupsDistribution, year *int, dbPath string) (*DivideResult, error) {
	if len(distribution.Primary) == 0 {
		return nil, fmt.Errorf("divide: distribution has no primary social groups")
	}
	group := distribution.Primary[0]
	if len(group.Men) == 0 || len(group.Women) == 0 {
		return nil, fmt.Errorf("divide: social group %q has empty probability distributions", group.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	defer closeSQLite(db)

	if err := db.WithContext(ctx).AutoMigrate(&dividedRow{}); err != nil {
		return nil, err
	}

	ages := len(group.Men)
	if len(group.Women) > ages {
		ages = len(group.Women)
	}

	rows := make([]dividedRow, 0, len(houses)*ages)
	for _, house := range houses {
		// Each sex receives half of the house population, spread over
		// ages by that sex's probability distribution.
		menTotal := house.Population / 2
		womenTotal := house.Population - menTotal

		men := apportion(menTotal, group.Men)
		women := apportion(womenTotal, group.Women)

		for age := 0; age < ages; age++ {
			row := dividedRow{
				TerritoryID: territoryID,
				HouseID:     house.HouseID,
				Age:         age,
			}
			if age < len(men) {
				row.Men = men[age]
			}
			if age < len(women) {
				row.Women = women[age]
			}
			rows = append(rows, row)
		}
	}

	if len(rows) > 0 {
		if err := db.WithContext(ctx).CreateInBatches(rows, 1000).Error; err != nil {
			return nil, err
		}
	}

	zap.S().Named("restorator").Infow("divided houses persisted",
		"territory_id", territoryID,
		"houses", len(houses),
		"db_path", dbPath,
		"year", year)

	return &DivideResult{Houses: houses, Distribution: distribution}, nil
}
