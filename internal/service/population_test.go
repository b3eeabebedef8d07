package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/urbanlab/popforecast/internal/client"
	"github.com/urbanlab/popforecast/internal/models"
	"github.com/urbanlab/popforecast/internal/restorator"
	"github.com/urbanlab/popforecast/internal/service"
	"github.com/urbanlab/popforecast/internal/store"
)

func fullPyramid(value int64) *models.PopulationPyramid {
	men := make([]int64, models.PyramidAges)
	women := make([]int64, models.PyramidAges)
	for i := range men {
		men[i] = value
		women[i] = value
	}
	return &models.PopulationPyramid{Men: men, Women: women, Year: 2024}
}

var _ = Describe("PopulationService", func() {
	var (
		urban   *urbanMock
		socdemo *socdemoMock
		saving  *savingMock
		engine  *engineMock
		lease   *leaseMock
		workDir string
		svc     *service.PopulationService
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		workDir = GinkgoT().TempDir()

		parentID := int64(1)
		urban = &urbanMock{
			territory: &models.Territory{TerritoryID: 1, Name: "city"},
			territories: []models.Territory{
				{TerritoryID: 2, ParentID: &parentID},
			},
			houses: []models.House{
				{HouseID: 10, TerritoryID: 2, LivingArea: 1000},
			},
			population: 500,
		}
		socdemo = &socdemoMock{
			pyramid: fullPyramid(10),
			coefficients: &models.SurvivabilityCoefficients{
				Men:   make([]float64, models.PyramidAges-1),
				Women: make([]float64, models.PyramidAges-1),
			},
			birthStats: models.BirthStats{BoysToGirls: 1.05, FertilityCoefficient: 0.4},
		}
		saving = &savingMock{}
		engine = &engineMock{
			balanceResult: &restorator.BalanceResult{
				Houses: []models.BalancedHouse{{HouseID: 10, TerritoryID: 2, Population: 500}},
			},
			exported: []restorator.YearAgeValue{{HouseID: 10, Age: 30, Men: 5, Women: 7}},
		}
		lease = &leaseMock{}

		svc = service.NewPopulationService(urban, socdemo, saving, engine, lease, service.PopulationConfig{
			DivideDBPath:       filepath.Join(workDir, "divided.sqlite"),
			ForecastWorkingDir: workDir,
			FertilityBegin:     18,
			FertilityEnd:       40,
		})
	})

	Context("Balance", func() {
		It("fetches the subtree and delegates to the engine", func() {
			result, err := svc.Balance(ctx, 1, nil)
			Expect(err).To(BeNil())
			Expect(result.Houses).To(HaveLen(1))
			Expect(urban.getTerritoryCalls).To(Equal(1))
			Expect(urban.getInternalCalls).To(Equal(1))
			Expect(urban.getHousesCalls).To(Equal(1))
			Expect(urban.getPopulationCalls).To(Equal(1))
			Expect(urban.bindPopulationCalls).To(Equal(1))
			Expect(engine.balanceCalls).To(Equal(1))
		})

		It("rejects houses referencing territories outside the subtree", func() {
			urban.houses = []models.House{{HouseID: 10, TerritoryID: 99}}

			_, err := svc.Balance(ctx, 1, nil)
			Expect(err).ToNot(BeNil())
			var notFound *client.ObjectNotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Context("Divide", func() {
		It("balances first when no houses are supplied", func() {
			result, err := svc.Divide(ctx, 1, nil, nil)
			Expect(err).To(BeNil())
			Expect(result.Houses).To(HaveLen(1))
			Expect(engine.balanceCalls).To(Equal(1))
			Expect(engine.divideCalls).To(Equal(1))
		})

		It("skips every balance fetch when houses are supplied", func() {
			houses := []models.BalancedHouse{{HouseID: 42, TerritoryID: 2, Population: 100}}

			_, err := svc.Divide(ctx, 1, houses, nil)
			Expect(err).To(BeNil())
			Expect(engine.balanceCalls).To(Equal(0))
			Expect(urban.getTerritoryCalls).To(Equal(0))
			Expect(urban.getInternalCalls).To(Equal(0))
			Expect(urban.getHousesCalls).To(Equal(0))
			Expect(urban.getPopulationCalls).To(Equal(0))
			Expect(engine.dividedHouses).To(Equal(houses))
		})
	})

	Context("Restore", func() {
		It("forecasts and publishes each projected year in its own call", func() {
			err := svc.Restore(ctx, 1, 2024, 2, models.ScenarioNeutral, true, 7)
			Expect(err).To(BeNil())

			Expect(lease.acquireCalls).To(Equal(1))
			Expect(lease.releaseCalls).To(Equal(1))
			Expect(engine.divideCalls).To(Equal(1))
			Expect(engine.forecastCalls).To(Equal(1))

			// One publish call per projected year, a male and a female
			// fact per exported row.
			Expect(saving.posted).To(HaveLen(2))
			years := map[int]int{}
			for _, call := range saving.posted {
				Expect(call).To(HaveLen(2))
				for _, fact := range call {
					years[fact.Year]++
					Expect(fact.BuildingID).To(Equal(int64(10)))
					Expect(fact.Scenario).To(Equal(models.ScenarioNeutral))
				}
			}
			Expect(years).To(Equal(map[int]int{2025: 2, 2026: 2}))

			// The per-year databases survive publishing so the next run
			// can read back what was published.
			for _, year := range []int{2025, 2026} {
				path := restorator.ForecastDBPath(workDir, year, 1, models.ScenarioNeutral)
				_, statErr := os.Stat(path)
				Expect(statErr).To(BeNil())
			}
		})

		It("deletes the first run's facts before publishing again", func() {
			Expect(svc.Restore(ctx, 1, 2024, 1, models.ScenarioNeutral, true, 7)).To(BeNil())
			Expect(saving.deleted).To(BeEmpty())

			Expect(svc.Restore(ctx, 1, 2024, 1, models.ScenarioNeutral, true, 8)).To(BeNil())
			Expect(saving.posted).To(HaveLen(2))
			Expect(saving.deleted).To(HaveLen(1))
			Expect(saving.deleted[0]).To(Equal(saving.posted[0]))
		})

		It("fails when a forecast database holds no rows for the territory", func() {
			engine.exported = nil

			err := svc.Restore(ctx, 1, 2024, 1, models.ScenarioNeutral, true, 7)
			Expect(err).ToNot(BeNil())
			var notFound *client.ObjectNotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(saving.posted).To(BeEmpty())
		})

		It("skips the divide stage when not starting from scratch", func() {
			err := svc.Restore(ctx, 1, 2024, 1, models.ScenarioNeutral, false, 7)
			Expect(err).To(BeNil())
			Expect(engine.divideCalls).To(Equal(0))
			Expect(engine.forecastCalls).To(Equal(1))
		})

		It("propagates a held lease and does not run the pipeline", func() {
			lease.acquireErr = store.ErrLeaseHeld

			err := svc.Restore(ctx, 1, 2024, 1, models.ScenarioNeutral, true, 7)
			Expect(errors.Is(err, store.ErrLeaseHeld)).To(BeTrue())
			Expect(engine.forecastCalls).To(Equal(0))
			Expect(lease.releaseCalls).To(Equal(0))
		})
	})
})
