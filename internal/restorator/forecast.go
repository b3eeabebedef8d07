package restorator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/urbanlab/popforecast/internal/models"
)

// Forecast projects the divided year-begin state forward one year at a
// time: each age bracket is multiplied by its survivability coefficient
// and shifted up, and the age-0 bracket is refilled from births derived
// from the fertility parameters. One database per projected year is
// written into the working directory, named for territory, year and
// scenario.
func (e *DefaultEngine) Forecast(ctx context.Context, params ForecastParams) error {
	if params.Years < 1 {
		return fmt.Errorf("forecast: years must be at least 1, got %d", params.Years)
	}
	if params.Coefficients == nil {
		return fmt.Errorf("forecast: survivability coefficients are required")
	}
	if len(params.Coefficients.Men) != models.PyramidAges-1 || len(params.Coefficients.Women) != models.PyramidAges-1 {
		return fmt.Errorf("forecast: expected %d survivability coefficients per sex, got %d/%d",
			models.PyramidAges-1, len(params.Coefficients.Men), len(params.Coefficients.Women))
	}

	state, err := e.readDividedState(ctx, params.HousesDBPath, params.TerritoryID)
	if err != nil {
		return err
	}
	if len(state) == 0 {
		return fmt.Errorf("forecast: no divided state for territory %d at %s", params.TerritoryID, params.HousesDBPath)
	}

	if err := os.MkdirAll(params.WorkingDir, 0o755); err != nil {
		return err
	}

	for step := 1; step <= params.Years; step++ {
		year := params.YearBegin + step
		state = projectYear(state, params)

		dbPath := ForecastDBPath(params.WorkingDir, year, params.TerritoryID, params.Scenario)
		if err := e.writeForecastDB(ctx, dbPath, params.TerritoryID, state); err != nil {
			return err
		}

		zap.S().Named("restorator").Infow("forecast year written",
			"territory_id", params.TerritoryID,
			"year", year,
			"scenario", params.Scenario,
			"db_path", dbPath)
	}

	return nil
}

// houseState is the per-age population of one building during the
// projection, indexed by age 0..99.
type houseState struct {
	houseID int64
	men     []int64
	women   []int64
}

func (e *DefaultEngine) readDividedState(ctx context.Context, dbPath string, territoryID int64) ([]houseState, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("forecast: divide database %s does not exist", dbPath)
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	defer closeSQLite(db)

	var rows []dividedRow
	if err := db.WithContext(ctx).
		Where("territory_id = ?", territoryID).
		Order("house_id, age").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	byHouse := make(map[int64]*houseState)
	order := make([]int64, 0)
	for _, row := range rows {
		hs, ok := byHouse[row.HouseID]
		if !ok {
			hs = &houseState{
				houseID: row.HouseID,
				men:     make([]int64, models.PyramidAges),
				women:   make([]int64, models.PyramidAges),
			}
			byHouse[row.HouseID] = hs
			order = append(order, row.HouseID)
		}
		if row.Age >= 0 && row.Age < models.PyramidAges {
			hs.men[row.Age] = row.Men
			hs.women[row.Age] = row.Women
		}
	}

	state := make([]houseState, 0, len(order))
	for _, id := range order {
		state = append(state, *byHouse[id])
	}
	return state, nil
}

// projectYear advances every house by one year.
func projectYear(state []houseState, params ForecastParams) []houseState {
	coeffs := params.Coefficients
	next := make([]houseState, len(state))

	for i, house := range state {
		men := make([]int64, models.PyramidAges)
		women := make([]int64, models.PyramidAges)

		// Coefficient index age-1 holds the multiplier from age-1 to age.
		for age := 1; age < models.PyramidAges; age++ {
			men[age] = int64(math.Round(float64(house.men[age-1]) * coeffs.Men[age-1]))
			women[age] = int64(math.Round(float64(house.women[age-1]) * coeffs.Women[age-1]))
		}

		var fertileWomen int64
		for age := params.FertilityBegin; age <= params.FertilityEnd && age < models.PyramidAges; age++ {
			if age >= 0 {
				fertileWomen += house.women[age]
			}
		}
		births := int64(math.Round(float64(fertileWomen) * params.FertilityCoefficient))
		boys := int64(math.Round(float64(births) * params.BoysToGirls / (1 + params.BoysToGirls)))
		men[0] = boys
		women[0] = births - boys

		next[i] = houseState{houseID: house.houseID, men: men, women: women}
	}

	return next
}

func (e *DefaultEngine) writeForecastDB(ctx context.Context, dbPath string, territoryID int64, state []houseState) error {
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return err
	}
	defer closeSQLite(db)

	if err := db.WithContext(ctx).AutoMigrate(&forecastedRow{}); err != nil {
		return err
	}

	rows := make([]forecastedRow, 0, len(state)*models.PyramidAges)
	for _, house := range state {
		for age := 0; age < models.PyramidAges; age++ {
			if house.men[age] == 0 && house.women[age] == 0 {
				continue
			}
			rows = append(rows, forecastedRow{
				TerritoryID: territoryID,
				HouseID:     house.houseID,
				Age:         age,
				Men:         house.men[age],
				Women:       house.women[age],
			})
		}
	}

	if len(rows) > 0 {
		if err := db.WithContext(ctx).CreateInBatches(rows, 1000).Error; err != nil {
			return err
		}
	}
	return nil
}
