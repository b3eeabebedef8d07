package models

// UrbanSocialDistribution is one forecasted fact: the number of people
// of one sex and single age living in one building in one projected
// year under one scenario. Immutable once constructed.
type UrbanSocialDistribution struct {
	BuildingID int64    `json:"building_id"`
	Scenario   Scenario `json:"scenario"`
	Year       int      `json:"year"`
	Sex        Sex      `json:"sex"`
	Age        int      `json:"age"`
	Value      int64    `json:"value"`
}
