package models

import "encoding/json"

// Territory is one administrative area of the upstream territory
// hierarchy. ParentID is nil for the hierarchy root.
type Territory struct {
	TerritoryID int64           `json:"territory_id"`
	Name        string          `json:"name"`
	ParentID    *int64          `json:"parent_id"`
	Level       int             `json:"level"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
	OktmoCode   *int64          `json:"oktmo_code,omitempty"`
	Population  int64           `json:"population"`
}

// House is one residential building belonging to a territory. LivingArea
// prefers the modeled value over the official one and defaults to zero
// when both are missing.
type House struct {
	HouseID     int64   `json:"house_id"`
	TerritoryID int64   `json:"territory_id"`
	LivingArea  float64 `json:"living_area"`
}

// BalancedTerritory is a territory enriched with the population assigned
// by the balancing step together with aggregate statistics over its
// houses and inner territories.
type BalancedTerritory struct {
	TerritoryID                int64   `json:"territory_id"`
	Name                       string  `json:"name"`
	ParentID                   *int64  `json:"parent_id"`
	Level                      int     `json:"level"`
	Population                 int64   `json:"population"`
	InnerTerritoriesPopulation int64   `json:"inner_territories_population"`
	HousesNumber               int     `json:"houses_number"`
	HousesPopulation           int64   `json:"houses_population"`
	TotalLivingArea            float64 `json:"total_living_area"`
}

// BalancedHouse is a house enriched with the population assigned by the
// balancing step.
type BalancedHouse struct {
	HouseID     int64   `json:"house_id"`
	TerritoryID int64   `json:"territory_id"`
	LivingArea  float64 `json:"living_area"`
	Population  int64   `json:"population"`
}
