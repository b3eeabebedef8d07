package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urbanlab/popforecast/internal/models"
)

func fullPyramid(year int, male, female int64) pyramidResponse {
	resp := pyramidResponse{Year: year}
	for age := 0; age < models.PyramidAges; age++ {
		m, f := male, female
		resp.Data = append(resp.Data, pyramidBucket{AgeStart: age, Male: &m, Female: &f})
	}
	return resp
}

func pyramidServer(t *testing.T, pyramids []pyramidResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(pyramids))
	}))
}

func TestGetPopulationPyramidSelectsLatestYear(t *testing.T) {
	server := pyramidServer(t, []pyramidResponse{
		fullPyramid(2022, 10, 10),
		fullPyramid(2024, 30, 30),
		fullPyramid(2023, 20, 20),
	})
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	pyramid, err := c.GetPopulationPyramid(context.Background(), 5, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2024, pyramid.Year)
	require.Len(t, pyramid.Men, models.PyramidAges)
	require.Equal(t, int64(30), pyramid.Men[50])
}

func TestGetPopulationPyramidSplitsRangedBuckets(t *testing.T) {
	male, female := int64(30), int64(60)
	ageEnd := 2
	server := pyramidServer(t, []pyramidResponse{{
		Year: 2024,
		Data: []pyramidBucket{{AgeStart: 0, AgeEnd: &ageEnd, Male: &male, Female: &female}},
	}})
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	pyramid, err := c.GetPopulationPyramid(context.Background(), 5, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 10, 10}, pyramid.Men)
	require.Equal(t, []int64{20, 20, 20}, pyramid.Women)
}

func TestGetPopulationPyramidUnknownYear(t *testing.T) {
	server := pyramidServer(t, []pyramidResponse{fullPyramid(2024, 10, 10)})
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	year := 1999
	_, err := c.GetPopulationPyramid(context.Background(), 5, nil, &year)
	require.Error(t, err)
	var notFound *ObjectNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetSurvivabilityCoefficients(t *testing.T) {
	after := fullPyramid(2024, 90, 150)
	// The oldest bracket shrinks harder than the rest.
	oldMen, oldWomen := int64(45), int64(50)
	after.Data[models.PyramidAges-1] = pyramidBucket{AgeStart: models.PyramidAges - 1, Male: &oldMen, Female: &oldWomen}
	server := pyramidServer(t, []pyramidResponse{
		fullPyramid(2023, 100, 200),
		after,
	})
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	year := 2024
	coeffs, err := c.GetSurvivabilityCoefficients(context.Background(), 5, nil, &year)
	require.NoError(t, err)
	require.Equal(t, 2024, coeffs.Year)
	require.Len(t, coeffs.Men, models.PyramidAges-1)
	require.Len(t, coeffs.Women, models.PyramidAges-1)
	for i := 0; i < len(coeffs.Men)-1; i++ {
		require.InDelta(t, 0.9, coeffs.Men[i], 1e-9)
		require.InDelta(t, 0.75, coeffs.Women[i], 1e-9)
	}
	// The oldest-age coefficient comes from the real age-99 over age-98
	// ratio, not from a copy of its neighbor.
	require.InDelta(t, 0.45, coeffs.Men[len(coeffs.Men)-1], 1e-9)
	require.InDelta(t, 0.25, coeffs.Women[len(coeffs.Women)-1], 1e-9)
}

func TestGetSurvivabilityCoefficientsRejectsShortPyramid(t *testing.T) {
	short := pyramidResponse{Year: 2023}
	for age := 0; age < 50; age++ {
		m := int64(10)
		short.Data = append(short.Data, pyramidBucket{AgeStart: age, Male: &m, Female: &m})
	}
	server := pyramidServer(t, []pyramidResponse{short, fullPyramid(2024, 10, 10)})
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	year := 2024
	_, err := c.GetSurvivabilityCoefficients(context.Background(), 5, nil, &year)
	require.Error(t, err)
	var notFound *ObjectNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetBirthStats(t *testing.T) {
	pyramid := fullPyramid(2024, 0, 0)
	boys, girls, women := int64(55), int64(45), int64(40)
	pyramid.Data[0] = pyramidBucket{AgeStart: 0, Male: &boys, Female: &girls}
	for age := 20; age <= 29; age++ {
		m := int64(0)
		w := women
		pyramid.Data[age] = pyramidBucket{AgeStart: age, Male: &m, Female: &w}
	}
	server := pyramidServer(t, []pyramidResponse{pyramid})
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	stats, err := c.GetBirthStats(context.Background(), 5, models.FertilityInterval{Start: 20, End: 29}, nil, nil)
	require.NoError(t, err)
	require.InDelta(t, 55.0/45.0, stats.BoysToGirls, 1e-9)
	// 100 births against 10 ages of 40 fertile women each.
	require.InDelta(t, 100.0/400.0, stats.FertilityCoefficient, 1e-9)
}

func TestGetPopulationPyramidUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	_, err := c.GetPopulationPyramid(context.Background(), 5, nil, nil)
	require.Error(t, err)
	var status *InvalidStatusCodeError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusInternalServerError, status.StatusCode)
}

func TestGetPopulationPyramidNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewSocDemoClient(SocDemoConfig{BaseURL: server.URL, PyramidIndicator: 2})
	_, err := c.GetPopulationPyramid(context.Background(), 5, nil, nil)
	require.Error(t, err)
	var notFound *ObjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Contains(t, err.Error(), fmt.Sprintf("territory %d", 5))
}
