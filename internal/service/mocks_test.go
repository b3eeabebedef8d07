package service_test

import (
	"context"
	"os"
	"time"

	"github.com/urbanlab/popforecast/internal/models"
	"github.com/urbanlab/popforecast/internal/restorator"
)

// urbanMock counts calls so chaining tests can assert the balance
// fetches never ran.
type urbanMock struct {
	territory   *models.Territory
	territories []models.Territory
	houses      []models.House
	population  int64
	populations map[int64]int64

	getTerritoryCalls        int
	getInternalCalls         int
	getHousesCalls           int
	getPopulationCalls       int
	getChildPopulationsCalls int
	bindPopulationCalls      int
}

func (m *urbanMock) GetInternalTerritories(ctx context.Context, parentID int64) ([]models.Territory, error) {
	m.getInternalCalls++
	return m.territories, nil
}

func (m *urbanMock) GetTerritory(ctx context.Context, territoryID int64) (*models.Territory, error) {
	m.getTerritoryCalls++
	return m.territory, nil
}

func (m *urbanMock) GetOktmoCode(ctx context.Context, territoryID int64) (*int64, error) {
	if m.territory == nil {
		return nil, nil
	}
	return m.territory.OktmoCode, nil
}

func (m *urbanMock) GetHousesFromTerritories(ctx context.Context, territoryID int64) ([]models.House, error) {
	m.getHousesCalls++
	return m.houses, nil
}

func (m *urbanMock) GetPopulationFromTerritory(ctx context.Context, territoryID int64, startDate *time.Time) (int64, error) {
	m.getPopulationCalls++
	return m.population, nil
}

func (m *urbanMock) GetPopulationForChildTerritories(ctx context.Context, parentID int64) (map[int64]int64, error) {
	m.getChildPopulationsCalls++
	return m.populations, nil
}

func (m *urbanMock) BindPopulationToTerritories(ctx context.Context, territories []models.Territory) ([]models.Territory, error) {
	m.bindPopulationCalls++
	return territories, nil
}

type socdemoMock struct {
	pyramid      *models.PopulationPyramid
	coefficients *models.SurvivabilityCoefficients
	birthStats   models.BirthStats

	pyramidCalls int
}

func (m *socdemoMock) GetPopulationPyramid(ctx context.Context, territoryID int64, oktmoCode *int64, year *int) (*models.PopulationPyramid, error) {
	m.pyramidCalls++
	return m.pyramid, nil
}

func (m *socdemoMock) GetSurvivabilityCoefficients(ctx context.Context, territoryID int64, oktmoCode *int64, year *int) (*models.SurvivabilityCoefficients, error) {
	return m.coefficients, nil
}

func (m *socdemoMock) GetBirthStats(ctx context.Context, territoryID int64, interval models.FertilityInterval, oktmoCode *int64, year *int) (*models.BirthStats, error) {
	stats := m.birthStats
	stats.FertilityInterval = interval
	return &stats, nil
}

type savingMock struct {
	posted  [][]models.UrbanSocialDistribution
	deleted [][]models.UrbanSocialDistribution
}

func (m *savingMock) PostForecastedData(ctx context.Context, facts []models.UrbanSocialDistribution) error {
	m.posted = append(m.posted, facts)
	return nil
}

func (m *savingMock) DeleteForecastedData(ctx context.Context, facts []models.UrbanSocialDistribution) error {
	m.deleted = append(m.deleted, facts)
	return nil
}

// engineMock records invocations and materializes empty per-year files
// the way the real forecast step does.
type engineMock struct {
	balanceResult *restorator.BalanceResult
	exported      []restorator.YearAgeValue

	balanceCalls  int
	divideCalls   int
	forecastCalls int
	exportCalls   int

	dividedHouses []models.BalancedHouse
}

func (m *engineMock) Balance(ctx context.Context, population int64, territories []models.Territory, houses []models.House, main *models.Territory) (*restorator.BalanceResult, error) {
	m.balanceCalls++
	return m.balanceResult, nil
}

func (m *engineMock) Divide(ctx context.Context, territoryID int64, houses []models.BalancedHouse, distribution restorator.SocialGroupsDistribution, year *int, dbPath string) (*restorator.DivideResult, error) {
	m.divideCalls++
	m.dividedHouses = houses
	return &restorator.DivideResult{Houses: houses, Distribution: distribution}, nil
}

func (m *engineMock) Forecast(ctx context.Context, params restorator.ForecastParams) error {
	m.forecastCalls++
	for step := 1; step <= params.Years; step++ {
		path := restorator.ForecastDBPath(params.WorkingDir, params.YearBegin+step, params.TerritoryID, params.Scenario)
		if err := os.WriteFile(path, []byte("db"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *engineMock) ExportYearAgeValues(ctx context.Context, dbPath string, territoryID int64) ([]restorator.YearAgeValue, error) {
	m.exportCalls++
	return m.exported, nil
}

type leaseMock struct {
	acquireErr   error
	acquireCalls int
	releaseCalls int
}

func (m *leaseMock) Acquire(ctx context.Context, territoryID int64, scenario string, jobID int64) error {
	m.acquireCalls++
	return m.acquireErr
}

func (m *leaseMock) Release(ctx context.Context, territoryID int64, scenario string) error {
	m.releaseCalls++
	return nil
}
