package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanlab/popforecast/internal/client"
	"github.com/urbanlab/popforecast/internal/jobs"
	"github.com/urbanlab/popforecast/internal/models"
	"github.com/urbanlab/popforecast/internal/restorator"
	"github.com/urbanlab/popforecast/internal/store"
)

// PopulationConfig are the pipeline knobs the service needs beyond its
// upstream clients.
type PopulationConfig struct {
	DivideDBPath       string
	ForecastWorkingDir string
	FertilityBegin     int
	FertilityEnd       int
}

// PopulationService runs the three pipeline stages against the upstream
// APIs and the computation engine. It is the workers' Pipeline
// implementation.
type PopulationService struct {
	urban   client.Urban
	socdemo client.SocDemo
	saving  client.Saving
	engine  restorator.Engine
	leases  store.Lease
	cfg     PopulationConfig
}

var _ jobs.Pipeline = (*PopulationService)(nil)

func NewPopulationService(
	urban client.Urban,
	socdemo client.SocDemo,
	saving client.Saving,
	engine restorator.Engine,
	leases store.Lease,
	cfg PopulationConfig,
) *PopulationService {
	return &PopulationService{
		urban:   urban,
		socdemo: socdemo,
		saving:  saving,
		engine:  engine,
		leases:  leases,
		cfg:     cfg,
	}
}

// Balance fetches the territory, its subtree, its buildings and its
// population concurrently, then distributes the population down the
// hierarchy.
func (s *PopulationService) Balance(ctx context.Context, territoryID int64, startDate *time.Time) (*restorator.BalanceResult, error) {
	var (
		main        *models.Territory
		territories []models.Territory
		houses      []models.House
		population  int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		main, err = s.urban.GetTerritory(gctx, territoryID)
		return err
	})
	g.Go(func() error {
		var err error
		territories, err = s.urban.GetInternalTerritories(gctx, territoryID)
		return err
	})
	g.Go(func() error {
		var err error
		houses, err = s.urban.GetHousesFromTerritories(gctx, territoryID)
		return err
	})
	g.Go(func() error {
		var err error
		population, err = s.urban.GetPopulationFromTerritory(gctx, territoryID, startDate)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Every building must sit in a territory of the fetched subtree,
	// otherwise its population could not be attributed anywhere.
	known := make(map[int64]struct{}, len(territories)+1)
	known[territoryID] = struct{}{}
	for _, t := range territories {
		known[t.TerritoryID] = struct{}{}
	}
	for _, h := range houses {
		if _, ok := known[h.TerritoryID]; !ok {
			return nil, client.NewObjectNotFoundError(
				"house %d references territory %d outside the subtree of %d", h.HouseID, h.TerritoryID, territoryID)
		}
	}

	territories, err := s.urban.BindPopulationToTerritories(ctx, territories)
	if err != nil {
		return nil, err
	}

	zap.S().Debugw("balancing territory", "territory_id", territoryID,
		"population", population, "territories", len(territories), "houses", len(houses))
	return s.engine.Balance(ctx, population, territories, houses, main)
}

// Divide splits the balanced building populations into per-age per-sex
// counts using the territory's demographic pyramid. A non-empty houses
// slice skips the balance stage entirely and reuses the given
// inventory.
func (s *PopulationService) Divide(ctx context.Context, territoryID int64, houses []models.BalancedHouse, startDate *time.Time) (*restorator.DivideResult, error) {
	if len(houses) == 0 {
		balanced, err := s.Balance(ctx, territoryID, startDate)
		if err != nil {
			return nil, err
		}
		houses = balanced.Houses
	}

	var year *int
	if startDate != nil {
		y := startDate.Year()
		year = &y
	}

	oktmoCode, err := s.urban.GetOktmoCode(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	pyramid, err := s.socdemo.GetPopulationPyramid(ctx, territoryID, oktmoCode, year)
	if err != nil {
		return nil, err
	}

	distribution := distributionFromPyramid(pyramid)
	return s.engine.Divide(ctx, territoryID, houses, distribution, year, s.cfg.DivideDBPath)
}

// Restore forecasts the divided population over the requested years and
// replaces the previously published facts downstream. At most one
// restore per territory and scenario runs at a time; the lease is tied
// to the driving job.
func (s *PopulationService) Restore(ctx context.Context, territoryID int64, yearBegin int, years int, scenario models.Scenario, fromScratch bool, jobID int64) error {
	if err := s.leases.Acquire(ctx, territoryID, string(scenario), jobID); err != nil {
		return err
	}
	defer func() {
		// Release must survive a cancelled job context.
		if err := s.leases.Release(context.WithoutCancel(ctx), territoryID, string(scenario)); err != nil {
			zap.S().Warnw("failed to release restore lease",
				"territory_id", territoryID, "scenario", scenario, "error", err)
		}
	}()

	oktmoCode, err := s.urban.GetOktmoCode(ctx, territoryID)
	if err != nil {
		return err
	}
	coefficients, err := s.socdemo.GetSurvivabilityCoefficients(ctx, territoryID, oktmoCode, &yearBegin)
	if err != nil {
		return err
	}
	interval := models.FertilityInterval{Start: s.cfg.FertilityBegin, End: s.cfg.FertilityEnd}
	birthStats, err := s.socdemo.GetBirthStats(ctx, territoryID, interval, oktmoCode, &yearBegin)
	if err != nil {
		return err
	}
	birthStats.AdaptToScenario(scenario)

	if fromScratch {
		start := time.Date(yearBegin, time.January, 1, 0, 0, 0, 0, time.UTC)
		if _, err := s.Divide(ctx, territoryID, nil, &start); err != nil {
			return err
		}
	}

	if err := s.deletePreviousFacts(ctx, territoryID, yearBegin, years, scenario); err != nil {
		return err
	}

	err = s.engine.Forecast(ctx, restorator.ForecastParams{
		HousesDBPath:         s.cfg.DivideDBPath,
		WorkingDir:           s.cfg.ForecastWorkingDir,
		TerritoryID:          territoryID,
		Coefficients:         coefficients,
		YearBegin:            yearBegin,
		Years:                years,
		BoysToGirls:          birthStats.BoysToGirls,
		FertilityCoefficient: birthStats.FertilityCoefficient,
		FertilityBegin:       birthStats.FertilityInterval.Start,
		FertilityEnd:         birthStats.FertilityInterval.End,
		Scenario:             scenario,
	})
	if err != nil {
		return err
	}

	return s.publishForecastedFacts(ctx, territoryID, yearBegin, years, scenario)
}

// deletePreviousFacts takes the facts of a previous run off the
// downstream API and removes their working files. The new facts must go
// after the old ones are gone, or downstream would hold both sets. The
// per-year databases of the previous run are the record of what was
// published; a missing database simply means the year was never
// published.
func (s *PopulationService) deletePreviousFacts(ctx context.Context, territoryID int64, yearBegin int, years int, scenario models.Scenario) error {
	var previous []models.UrbanSocialDistribution
	for year := yearBegin + 1; year <= yearBegin+years; year++ {
		dbPath := restorator.ForecastDBPath(s.cfg.ForecastWorkingDir, year, territoryID, scenario)
		if _, err := os.Stat(dbPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", dbPath, err)
		}
		values, err := s.engine.ExportYearAgeValues(ctx, dbPath, territoryID)
		if err != nil {
			return err
		}
		previous = append(previous, factsFromValues(values, year, scenario)...)
	}
	if len(previous) > 0 {
		if err := s.saving.DeleteForecastedData(ctx, previous); err != nil {
			return err
		}
	}

	for year := yearBegin + 1; year <= yearBegin+years; year++ {
		dbPath := restorator.ForecastDBPath(s.cfg.ForecastWorkingDir, year, territoryID, scenario)
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			zap.S().Warnw("failed to remove forecast database", "path", dbPath, "error", err)
		}
	}
	return nil
}

// publishForecastedFacts reads each newly forecast per-year database
// back and publishes it in its own downstream call. The databases stay
// in place afterwards so the next run can delete what this one
// published.
func (s *PopulationService) publishForecastedFacts(ctx context.Context, territoryID int64, yearBegin int, years int, scenario models.Scenario) error {
	for year := yearBegin + 1; year <= yearBegin+years; year++ {
		dbPath := restorator.ForecastDBPath(s.cfg.ForecastWorkingDir, year, territoryID, scenario)
		if _, err := os.Stat(dbPath); err != nil {
			if os.IsNotExist(err) {
				return client.NewObjectNotFoundError("forecast data for year %d is missing", year)
			}
			return fmt.Errorf("stat %s: %w", dbPath, err)
		}
		values, err := s.engine.ExportYearAgeValues(ctx, dbPath, territoryID)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			return client.NewObjectNotFoundError(
				"forecast database for year %d holds no data for territory %d", year, territoryID)
		}
		if err := s.saving.PostForecastedData(ctx, factsFromValues(values, year, scenario)); err != nil {
			return err
		}
	}
	return nil
}

func factsFromValues(values []restorator.YearAgeValue, year int, scenario models.Scenario) []models.UrbanSocialDistribution {
	facts := make([]models.UrbanSocialDistribution, 0, 2*len(values))
	for _, v := range values {
		facts = append(facts,
			models.UrbanSocialDistribution{
				BuildingID: v.HouseID,
				Scenario:   scenario,
				Year:       year,
				Sex:        models.SexMale,
				Age:        v.Age,
				Value:      v.Men,
			},
			models.UrbanSocialDistribution{
				BuildingID: v.HouseID,
				Scenario:   scenario,
				Year:       year,
				Sex:        models.SexFemale,
				Age:        v.Age,
				Value:      v.Women,
			})
	}
	return facts
}

// distributionFromPyramid turns a population pyramid into the single
// primary social group used for division, with per-sex age counts
// normalized into probabilities.
func distributionFromPyramid(pyramid *models.PopulationPyramid) restorator.SocialGroupsDistribution {
	return restorator.SocialGroupsDistribution{
		Primary: []restorator.SocialGroup{{
			Name:        "population",
			Probability: 1,
			Men:         normalize(pyramid.Men),
			Women:       normalize(pyramid.Women),
		}},
	}
}

func normalize(counts []int64) []float64 {
	var total int64
	for _, c := range counts {
		total += c
	}
	probabilities := make([]float64, len(counts))
	if total == 0 {
		return probabilities
	}
	for i, c := range counts {
		probabilities[i] = float64(c) / float64(total)
	}
	return probabilities
}
