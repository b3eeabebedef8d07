package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/urbanlab/popforecast/internal/models"
	"github.com/urbanlab/popforecast/pkg/metrics"
)

// Saving pushes computed distribution facts to the downstream
// persistence API and deletes previously published ones.
type Saving interface {
	PostForecastedData(ctx context.Context, facts []models.UrbanSocialDistribution) error
	DeleteForecastedData(ctx context.Context, facts []models.UrbanSocialDistribution) error
}

type SavingConfig struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	PublishChunkSize   int
	PublishConcurrency int
	DeleteConcurrency  int
}

// SavingClient is the HTTP implementation of Saving.
type SavingClient struct {
	cfg        SavingConfig
	httpClient *http.Client
}

var _ Saving = (*SavingClient)(nil)

func NewSavingClient(cfg SavingConfig) *SavingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PublishChunkSize <= 0 {
		cfg.PublishChunkSize = 1000
	}
	if cfg.PublishConcurrency <= 0 {
		cfg.PublishConcurrency = 10
	}
	if cfg.DeleteConcurrency <= 0 {
		cfg.DeleteConcurrency = 10
	}
	return &SavingClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type distributionDTO struct {
	BuildingID int64  `json:"building_id"`
	Scenario   string `json:"scenario"`
	Year       int    `json:"year"`
	Sex        string `json:"sex"`
	Age        int    `json:"age"`
	Value      int64  `json:"value"`
}

type createManyRequest struct {
	DTOs []distributionDTO `json:"dtos"`
}

// PostForecastedData publishes the facts in size-bounded chunks with a
// bounded number of chunks in flight. The fact volume for one forecast
// call can reach tens of thousands of rows per territory.
func (c *SavingClient) PostForecastedData(ctx context.Context, facts []models.UrbanSocialDistribution) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.PublishConcurrency)

	for start := 0; start < len(facts); start += c.cfg.PublishChunkSize {
		end := start + c.cfg.PublishChunkSize
		if end > len(facts) {
			end = len(facts)
		}
		chunk := facts[start:end]

		g.Go(func() error {
			dtos := make([]distributionDTO, len(chunk))
			for i, fact := range chunk {
				dtos[i] = distributionDTO{
					BuildingID: fact.BuildingID,
					Scenario:   string(fact.Scenario),
					Year:       fact.Year,
					Sex:        string(fact.Sex),
					Age:        fact.Age,
					Value:      fact.Value,
				}
			}
			_, err := doPost(gctx, c.httpClient, c.cfg.BaseURL+"/api/v1/distribution/create-many", c.cfg.APIKey, createManyRequest{DTOs: dtos})
			if err != nil {
				return err
			}
			metrics.AddFactsPublishedTotal(len(chunk))
			return nil
		})
	}

	return g.Wait()
}

// DeleteForecastedData removes previously published facts. Deletions are
// keyed by building, scenario and year, so the per-age rows of one fact
// set collapse into a single call per building and year.
func (c *SavingClient) DeleteForecastedData(ctx context.Context, facts []models.UrbanSocialDistribution) error {
	type deletionKey struct {
		buildingID int64
		scenario   models.Scenario
		year       int
	}

	keys := make(map[deletionKey]struct{}, len(facts))
	for _, fact := range facts {
		keys[deletionKey{fact.BuildingID, fact.Scenario, fact.Year}] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.DeleteConcurrency)

	for key := range keys {
		g.Go(func() error {
			params := url.Values{}
			params.Set("scenario", string(key.scenario))
			params.Set("year", strconv.Itoa(key.year))

			rawURL := fmt.Sprintf("%s/api/v1/distribution/%d", c.cfg.BaseURL, key.buildingID)
			_, err := doDelete(gctx, c.httpClient, rawURL, params, c.cfg.APIKey)
			return err
		})
	}

	return g.Wait()
}
