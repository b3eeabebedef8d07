package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urbanlab/popforecast/internal/models"
)

func makeFacts(n int, buildingID int64, year int) []models.UrbanSocialDistribution {
	facts := make([]models.UrbanSocialDistribution, n)
	for i := range facts {
		facts[i] = models.UrbanSocialDistribution{
			BuildingID: buildingID,
			Scenario:   models.ScenarioNeutral,
			Year:       year,
			Sex:        models.SexMale,
			Age:        i % 100,
			Value:      1,
		}
	}
	return facts
}

func TestPostForecastedDataChunks(t *testing.T) {
	var mu sync.Mutex
	var requests int
	var totalDTOs int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/distribution/create-many", r.URL.Path)

		var body createManyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		requests++
		totalDTOs += len(body.DTOs)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewSavingClient(SavingConfig{BaseURL: server.URL, PublishChunkSize: 1000, PublishConcurrency: 10})
	err := c.PostForecastedData(context.Background(), makeFacts(2500, 10, 2025))
	require.NoError(t, err)
	require.Equal(t, 3, requests)
	require.Equal(t, 2500, totalDTOs)
}

func TestDeleteForecastedDataDeduplicates(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		mu.Lock()
		seen[r.URL.Path+"?"+r.URL.RawQuery]++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	facts := append(makeFacts(200, 10, 2025), makeFacts(200, 11, 2025)...)
	facts = append(facts, makeFacts(200, 10, 2026)...)

	c := NewSavingClient(SavingConfig{BaseURL: server.URL})
	err := c.DeleteForecastedData(context.Background(), facts)
	require.NoError(t, err)

	// One deletion per (building, scenario, year), not per fact.
	require.Len(t, seen, 3)
	for path, count := range seen {
		require.Equal(t, 1, count, path)
	}
}

func TestPostForecastedDataPropagatesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "full", http.StatusInsufficientStorage)
	}))
	defer server.Close()

	c := NewSavingClient(SavingConfig{BaseURL: server.URL})
	err := c.PostForecastedData(context.Background(), makeFacts(10, 10, 2025))
	require.Error(t, err)
	var status *InvalidStatusCodeError
	require.ErrorAs(t, err, &status)
}
