package restorator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urbanlab/popforecast/internal/models"
)

// concentratedDistribution puts the whole probability mass on one age.
func concentratedDistribution(age int) []float64 {
	probs := make([]float64, models.PyramidAges)
	probs[age] = 1
	return probs
}

func flatCoefficients() *models.SurvivabilityCoefficients {
	men := make([]float64, models.PyramidAges-1)
	women := make([]float64, models.PyramidAges-1)
	for i := range men {
		men[i] = 1
		women[i] = 1
	}
	return &models.SurvivabilityCoefficients{Men: men, Women: women}
}

func TestDivideForecastExportRoundtrip(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()
	divideDB := filepath.Join(workDir, "divided.sqlite")

	engine := NewEngine()
	houses := []models.BalancedHouse{{HouseID: 10, TerritoryID: 5, LivingArea: 1000, Population: 100}}
	distribution := SocialGroupsDistribution{
		Primary: []SocialGroup{{
			Name:        "population",
			Probability: 1,
			Men:         concentratedDistribution(30),
			Women:       concentratedDistribution(30),
		}},
	}

	divided, err := engine.Divide(ctx, 5, houses, distribution, nil, divideDB)
	require.NoError(t, err)
	require.Len(t, divided.Houses, 1)
	require.FileExists(t, divideDB)

	err = engine.Forecast(ctx, ForecastParams{
		HousesDBPath:         divideDB,
		WorkingDir:           workDir,
		TerritoryID:          5,
		Coefficients:         flatCoefficients(),
		YearBegin:            2024,
		Years:                2,
		BoysToGirls:          1,
		FertilityCoefficient: 0.1,
		FertilityBegin:       18,
		FertilityEnd:         40,
		Scenario:             models.ScenarioNeutral,
	})
	require.NoError(t, err)

	firstYear := ForecastDBPath(workDir, 2025, 5, models.ScenarioNeutral)
	secondYear := ForecastDBPath(workDir, 2026, 5, models.ScenarioNeutral)
	require.FileExists(t, firstYear)
	require.FileExists(t, secondYear)
	require.Equal(t, filepath.Join(workDir, "year_2025_terr_5_scen_NEUTRAL.sqlite"), firstYear)

	values, err := engine.ExportYearAgeValues(ctx, firstYear, 5)
	require.NoError(t, err)

	byAge := make(map[int]YearAgeValue)
	for _, v := range values {
		require.Equal(t, int64(10), v.HouseID)
		byAge[v.Age] = v
	}

	// The whole cohort moved from 30 to 31 intact under coefficient 1.
	require.Equal(t, int64(50), byAge[31].Men)
	require.Equal(t, int64(50), byAge[31].Women)
	// 50 fertile women at coefficient 0.1 give 5 newborns.
	require.Equal(t, int64(5), byAge[0].Men+byAge[0].Women)

	secondValues, err := engine.ExportYearAgeValues(ctx, secondYear, 5)
	require.NoError(t, err)
	secondByAge := make(map[int]YearAgeValue)
	for _, v := range secondValues {
		secondByAge[v.Age] = v
	}
	require.Equal(t, int64(50), secondByAge[32].Men)
	require.Equal(t, int64(50), secondByAge[32].Women)
}

func TestForecastValidation(t *testing.T) {
	engine := NewEngine()
	err := engine.Forecast(context.Background(), ForecastParams{Years: 0, Coefficients: flatCoefficients()})
	require.Error(t, err)

	err = engine.Forecast(context.Background(), ForecastParams{
		Years:        1,
		Coefficients: &models.SurvivabilityCoefficients{Men: []float64{1}, Women: []float64{1}},
	})
	require.Error(t, err)
}

func TestForecastRequiresDividedState(t *testing.T) {
	workDir := t.TempDir()
	engine := NewEngine()

	err := engine.Forecast(context.Background(), ForecastParams{
		HousesDBPath: filepath.Join(workDir, "missing.sqlite"),
		WorkingDir:   workDir,
		TerritoryID:  5,
		Coefficients: flatCoefficients(),
		YearBegin:    2024,
		Years:        1,
		Scenario:     models.ScenarioNeutral,
	})
	require.Error(t, err)
}

func TestDivideReplacesPreviousDatabase(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()
	divideDB := filepath.Join(workDir, "divided.sqlite")

	engine := NewEngine()
	distribution := SocialGroupsDistribution{
		Primary: []SocialGroup{{
			Name:        "population",
			Probability: 1,
			Men:         concentratedDistribution(20),
			Women:       concentratedDistribution(20),
		}},
	}

	_, err := engine.Divide(ctx, 5, []models.BalancedHouse{{HouseID: 10, Population: 100}}, distribution, nil, divideDB)
	require.NoError(t, err)
	_, err = engine.Divide(ctx, 5, []models.BalancedHouse{{HouseID: 11, Population: 40}}, distribution, nil, divideDB)
	require.NoError(t, err)

	state, err := engine.readDividedState(ctx, divideDB, 5)
	require.NoError(t, err)
	require.Len(t, state, 1)
	require.Equal(t, int64(11), state[0].houseID)

	info, err := os.Stat(divideDB)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
