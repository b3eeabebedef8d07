package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/urbanlab/popforecast/internal/models"
)

// Urban fetches territory hierarchies, building inventories and
// population counts from the upstream city-data API.
type Urban interface {
	GetInternalTerritories(ctx context.Context, parentID int64) ([]models.Territory, error)
	GetTerritory(ctx context.Context, territoryID int64) (*models.Territory, error)
	GetOktmoCode(ctx context.Context, territoryID int64) (*int64, error)
	GetHousesFromTerritories(ctx context.Context, territoryID int64) ([]models.House, error)
	GetPopulationFromTerritory(ctx context.Context, territoryID int64, startDate *time.Time) (int64, error)
	GetPopulationForChildTerritories(ctx context.Context, parentID int64) (map[int64]int64, error)
	BindPopulationToTerritories(ctx context.Context, territories []models.Territory) ([]models.Territory, error)
}

type UrbanConfig struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	PopulationIndicator int
	PopulationValueType string
	HouseTypeID         int
	BindConcurrency     int
}

// UrbanClient is the HTTP implementation of Urban.
type UrbanClient struct {
	cfg        UrbanConfig
	httpClient *http.Client
}

var _ Urban = (*UrbanClient)(nil)

func NewUrbanClient(cfg UrbanConfig) *UrbanClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BindConcurrency <= 0 {
		cfg.BindConcurrency = 5
	}
	return &UrbanClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Upstream wire types. The city-data API talks GeoJSON feature
// collections.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   json.RawMessage    `json:"geometry"`
	Properties *featureProperties `json:"properties"`
}

type featureProperties struct {
	TerritoryID int64            `json:"territory_id"`
	Name        string           `json:"name"`
	Level       int              `json:"level"`
	OktmoCode   *int64           `json:"oktmo_code"`
	Parent      *parentRef       `json:"parent"`
	Building    *buildingRef     `json:"building"`
	Territories []territoryRef   `json:"territories"`
	Indicators  []indicatorValue `json:"indicators"`
}

type parentRef struct {
	ID int64 `json:"id"`
}

type territoryRef struct {
	ID int64 `json:"id"`
}

type buildingRef struct {
	ID         int64              `json:"id"`
	Properties buildingProperties `json:"properties"`
}

type buildingProperties struct {
	LivingAreaModeled  *float64 `json:"living_area_modeled"`
	LivingAreaOfficial *float64 `json:"living_area_official"`
}

type indicatorValue struct {
	Value     float64 `json:"value"`
	DateValue string  `json:"date_value"`
}

// GetInternalTerritories fetches the full territory subtree rooted at
// parentID, all descendant levels included. The root itself is not part
// of the result.
func (c *UrbanClient) GetInternalTerritories(ctx context.Context, parentID int64) ([]models.Territory, error) {
	params := url.Values{}
	params.Set("parent_id", strconv.FormatInt(parentID, 10))
	params.Set("get_all_levels", "true")

	data, err := doGet(ctx, c.httpClient, c.cfg.BaseURL+"/api/v1/all_territories", params, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, NewObjectNotFoundError("no territories under parent %d", parentID)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decoding territories response: %w", err)
	}

	territories := make([]models.Territory, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Properties == nil {
			continue
		}
		t := models.Territory{
			TerritoryID: f.Properties.TerritoryID,
			Name:        f.Properties.Name,
			Level:       f.Properties.Level,
			Geometry:    f.Geometry,
		}
		if f.Properties.Parent != nil {
			pid := f.Properties.Parent.ID
			t.ParentID = &pid
		}
		territories = append(territories, t)
	}
	return territories, nil
}

// GetTerritory fetches one territory by id, including its OKTMO code.
func (c *UrbanClient) GetTerritory(ctx context.Context, territoryID int64) (*models.Territory, error) {
	params := url.Values{}
	params.Set("centers_only", "true")

	data, err := doGet(ctx, c.httpClient, fmt.Sprintf("%s/api/v1/territories/%d", c.cfg.BaseURL, territoryID), params, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, NewObjectNotFoundError("territory %d not found", territoryID)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decoding territory response: %w", err)
	}
	if len(fc.Features) == 0 || fc.Features[0].Properties == nil {
		return nil, NewObjectNotFoundError("territory %d not found", territoryID)
	}

	f := fc.Features[0]
	t := &models.Territory{
		TerritoryID: territoryID,
		Name:        f.Properties.Name,
		Level:       f.Properties.Level,
		Geometry:    f.Geometry,
		OktmoCode:   f.Properties.OktmoCode,
	}
	if f.Properties.Parent != nil {
		pid := f.Properties.Parent.ID
		t.ParentID = &pid
	}
	return t, nil
}

// GetOktmoCode resolves the geographic classification code of a
// territory. Territories without a code yield nil, which the socdemo
// queries accept.
func (c *UrbanClient) GetOktmoCode(ctx context.Context, territoryID int64) (*int64, error) {
	territory, err := c.GetTerritory(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	return territory.OktmoCode, nil
}

// GetHousesFromTerritories fetches all residential buildings in the
// subtree of territoryID. Buildings without any living area property are
// kept with area zero; modeled area wins over the official one.
func (c *UrbanClient) GetHousesFromTerritories(ctx context.Context, territoryID int64) ([]models.House, error) {
	params := url.Values{}
	params.Set("include_child_territories", "true")
	params.Set("cities_only", "true")
	params.Set("centers_only", "true")
	params.Set("physical_object_type_id", strconv.Itoa(c.cfg.HouseTypeID))

	data, err := doGet(ctx, c.httpClient, fmt.Sprintf("%s/api/v1/territory/%d/physical_objects_geojson", c.cfg.BaseURL, territoryID), params, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, NewObjectNotFoundError("no houses in territory %d", territoryID)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decoding houses response: %w", err)
	}

	houses := make([]models.House, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Properties == nil || f.Properties.Building == nil || len(f.Properties.Territories) == 0 {
			continue
		}
		livingArea := 0.0
		switch {
		case f.Properties.Building.Properties.LivingAreaModeled != nil:
			livingArea = *f.Properties.Building.Properties.LivingAreaModeled
		case f.Properties.Building.Properties.LivingAreaOfficial != nil:
			livingArea = *f.Properties.Building.Properties.LivingAreaOfficial
		}
		houses = append(houses, models.House{
			HouseID:     f.Properties.Building.ID,
			TerritoryID: f.Properties.Territories[0].ID,
			LivingArea:  livingArea,
		})
	}
	return houses, nil
}

// GetPopulationFromTerritory fetches the territory's own population
// count, the latest one or the earliest at or after startDate.
func (c *UrbanClient) GetPopulationFromTerritory(ctx context.Context, territoryID int64, startDate *time.Time) (int64, error) {
	params := url.Values{}
	params.Set("indicator_ids", strconv.Itoa(c.cfg.PopulationIndicator))
	params.Set("value_type", c.cfg.PopulationValueType)
	params.Set("include_child_territories", "false")
	params.Set("cities_only", "false")
	if startDate == nil {
		params.Set("last_only", "true")
	} else {
		params.Set("last_only", "false")
		params.Set("start_date", startDate.Format("2006-01-02"))
	}

	data, err := doGet(ctx, c.httpClient, fmt.Sprintf("%s/api/v1/territory/%d/indicator_values", c.cfg.BaseURL, territoryID), params, c.cfg.APIKey)
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, NewObjectNotFoundError("no population for territory %d", territoryID)
	}

	var values []indicatorValue
	if err := json.Unmarshal(data, &values); err != nil {
		return 0, fmt.Errorf("decoding population response: %w", err)
	}
	if len(values) == 0 {
		return 0, NewObjectNotFoundError("no population for territory %d", territoryID)
	}

	if startDate == nil {
		return int64(values[0].Value), nil
	}

	// Earliest value dated at or after startDate.
	wanted := startDate.Format("2006-01-02")
	var saved *indicatorValue
	for i := range values {
		v := values[i]
		if v.DateValue < wanted {
			continue
		}
		if saved == nil || v.DateValue < saved.DateValue {
			saved = &values[i]
		}
	}
	if saved == nil {
		return 0, NewObjectNotFoundError("no population for territory %d at or after %s", territoryID, wanted)
	}
	return int64(saved.Value), nil
}

// GetPopulationForChildTerritories fetches the latest population count
// for every direct child of parentID.
func (c *UrbanClient) GetPopulationForChildTerritories(ctx context.Context, parentID int64) (map[int64]int64, error) {
	params := url.Values{}
	params.Set("parent_id", strconv.FormatInt(parentID, 10))
	params.Set("indicator_ids", strconv.Itoa(c.cfg.PopulationIndicator))
	params.Set("last_only", "true")
	params.Set("value_type", c.cfg.PopulationValueType)

	data, err := doGet(ctx, c.httpClient, c.cfg.BaseURL+"/api/v1/territory/indicator_values", params, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, NewObjectNotFoundError("no child populations for territory %d", parentID)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decoding child populations response: %w", err)
	}

	populations := make(map[int64]int64, len(fc.Features))
	for _, f := range fc.Features {
		if f.Properties == nil || len(f.Properties.Indicators) == 0 {
			continue
		}
		populations[f.Properties.TerritoryID] = int64(f.Properties.Indicators[0].Value)
	}
	return populations, nil
}

// BindPopulationToTerritories fetches the child population counts for
// every distinct parent in the given set, a bounded number of calls in
// flight at a time, and returns the territories with populations
// assigned.
func (c *UrbanClient) BindPopulationToTerritories(ctx context.Context, territories []models.Territory) ([]models.Territory, error) {
	parentIDs := make(map[int64]struct{})
	for _, t := range territories {
		if t.ParentID != nil {
			parentIDs[*t.ParentID] = struct{}{}
		}
	}

	var mu sync.Mutex
	merged := make(map[int64]int64)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.BindConcurrency)
	for parentID := range parentIDs {
		g.Go(func() error {
			populations, err := c.GetPopulationForChildTerritories(gctx, parentID)
			if err != nil {
				return err
			}
			mu.Lock()
			for id, population := range populations {
				merged[id] = population
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bound := make([]models.Territory, len(territories))
	for i, t := range territories {
		t.Population = merged[t.TerritoryID]
		bound[i] = t
	}
	return bound, nil
}
