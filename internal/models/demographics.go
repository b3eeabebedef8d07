package models

import "math"

// PyramidAges is the number of single-year age buckets in a population
// pyramid, ages 0 through 99.
const PyramidAges = 100

// PopulationPyramid is a census-style snapshot of population counts by
// single year of age and sex for one territory and one year.
type PopulationPyramid struct {
	Men   []int64 `json:"men"`
	Women []int64 `json:"women"`
	Year  int     `json:"year"`
}

// SurvivabilityCoefficients hold, for ages 1..99, the empirical ratio
// "people of age A this year" / "people of age A-1 last year", separately
// per sex. Derived from two pyramids of consecutive years, never fetched
// directly.
type SurvivabilityCoefficients struct {
	Men   []float64 `json:"men"`
	Women []float64 `json:"women"`
	Year  int       `json:"year"`
}

// FertilityInterval bounds the ages at which women are counted as
// fertile.
type FertilityInterval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// BirthStats are the fertility parameters fed into forecasting.
type BirthStats struct {
	FertilityInterval    FertilityInterval `json:"fertility_interval"`
	BoysToGirls          float64           `json:"boys_to_girls"`
	FertilityCoefficient float64           `json:"fertility_coefficient"`
}

// AdaptToScenario deterministically skews the fertility parameters.
// NEGATIVE narrows the fertility interval by 5% at each end and reduces
// the coefficient by 5%, POSITIVE widens and increases by the same
// amount, NEUTRAL leaves everything unchanged.
func (b *BirthStats) AdaptToScenario(scenario Scenario) {
	switch scenario {
	case ScenarioNegative:
		b.FertilityInterval.Start = int(math.Round(float64(b.FertilityInterval.Start) * 1.05))
		b.FertilityInterval.End = int(math.Round(float64(b.FertilityInterval.End) * 0.95))
		b.FertilityCoefficient *= 0.95
	case ScenarioPositive:
		b.FertilityInterval.Start = int(math.Round(float64(b.FertilityInterval.Start) * 0.95))
		b.FertilityInterval.End = int(math.Round(float64(b.FertilityInterval.End) * 1.05))
		b.FertilityCoefficient *= 1.05
	}
}
