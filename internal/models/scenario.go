package models

import "fmt"

// Scenario is the deterministic skew applied to fertility parameters
// before forecasting.
type Scenario string

const (
	ScenarioNegative Scenario = "NEGATIVE"
	ScenarioNeutral  Scenario = "NEUTRAL"
	ScenarioPositive Scenario = "POSITIVE"
)

// Validate returns an error when the scenario is not one of the three
// known values.
func (s Scenario) Validate() error {
	switch s {
	case ScenarioNegative, ScenarioNeutral, ScenarioPositive:
		return nil
	default:
		return fmt.Errorf("unknown scenario %q", string(s))
	}
}

// Sex of one forecasted distribution fact.
type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)
