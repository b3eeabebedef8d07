// Package restorator holds the population-distribution mathematics:
// balancing population down a territory hierarchy, dividing building
// populations into per-age per-sex counts, and projecting them forward
// year over year. The orchestration layer talks to it exclusively
// through the Engine interface.
package restorator

import (
	"context"

	"github.com/urbanlab/popforecast/internal/models"
)

// SocialGroup is one population group with per-age probability
// distributions for each sex.
type SocialGroup struct {
	Name        string
	Probability float64
	Men         []float64
	Women       []float64
}

// SocialGroupsDistribution describes how building populations split
// into social groups.
type SocialGroupsDistribution struct {
	Primary    []SocialGroup
	Additional []SocialGroup
}

// BalanceResult are the two tables produced by balancing: territories
// and houses with assigned populations whose sums are consistent
// recursively up to the hierarchy root.
type BalanceResult struct {
	Territories []models.BalancedTerritory
	Houses      []models.BalancedHouse
}

// DivideResult is the outcome of the division step. The per-building
// per-age-per-sex assignments themselves are persisted to the working
// database, not returned.
type DivideResult struct {
	Houses       []models.BalancedHouse
	Distribution SocialGroupsDistribution
}

// ForecastParams parameterize one forecast run.
type ForecastParams struct {
	HousesDBPath         string
	WorkingDir           string
	TerritoryID          int64
	Coefficients         *models.SurvivabilityCoefficients
	YearBegin            int
	Years                int
	BoysToGirls          float64
	FertilityCoefficient float64
	FertilityBegin       int
	FertilityEnd         int
	Scenario             models.Scenario
}

// YearAgeValue is one row read back from a per-year forecast database:
// the number of men and women of one age in one building.
type YearAgeValue struct {
	HouseID int64
	Age     int
	Men     int64
	Women   int64
}

// Engine is the computation contract the orchestration pipeline depends
// on.
type Engine interface {
	// Balance distributes the root population over the territory
	// subtree and its buildings.
	Balance(ctx context.Context, population int64, territories []models.Territory, houses []models.House, main *models.Territory) (*BalanceResult, error)

	// Divide splits each house's balanced population into per-age
	// per-sex counts and persists them to the working database at
	// dbPath, replacing any previous division.
	Divide(ctx context.Context, territoryID int64, houses []models.BalancedHouse, distribution SocialGroupsDistribution, year *int, dbPath string) (*DivideResult, error)

	// Forecast projects the divided population forward, writing one
	// database per projected year into the working directory.
	Forecast(ctx context.Context, params ForecastParams) error

	// ExportYearAgeValues reads one per-year forecast database back.
	ExportYearAgeValues(ctx context.Context, dbPath string, territoryID int64) ([]YearAgeValue, error)
}
