package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/urbanlab/popforecast/internal/models"
)

// SocDemo fetches demographic pyramids and derives survivability and
// birth statistics from them.
type SocDemo interface {
	GetPopulationPyramid(ctx context.Context, territoryID int64, oktmoCode *int64, year *int) (*models.PopulationPyramid, error)
	GetSurvivabilityCoefficients(ctx context.Context, territoryID int64, oktmoCode *int64, year *int) (*models.SurvivabilityCoefficients, error)
	GetBirthStats(ctx context.Context, territoryID int64, interval models.FertilityInterval, oktmoCode *int64, year *int) (*models.BirthStats, error)
}

type SocDemoConfig struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	PyramidIndicator int
}

// SocDemoClient is the HTTP implementation of SocDemo.
type SocDemoClient struct {
	cfg        SocDemoConfig
	httpClient *http.Client
}

var _ SocDemo = (*SocDemoClient)(nil)

func NewSocDemoClient(cfg SocDemoConfig) *SocDemoClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &SocDemoClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type pyramidResponse struct {
	Year int             `json:"year"`
	Data []pyramidBucket `json:"data"`
}

type pyramidBucket struct {
	AgeStart int    `json:"age_start"`
	AgeEnd   *int   `json:"age_end"`
	Male     *int64 `json:"male"`
	Female   *int64 `json:"female"`
}

// GetPopulationPyramid fetches the pyramid for the requested year, or
// the latest available one when year is nil. Buckets covering an age
// range are split evenly into single-year buckets; ages of 100 and
// above are dropped.
func (c *SocDemoClient) GetPopulationPyramid(ctx context.Context, territoryID int64, oktmoCode *int64, year *int) (*models.PopulationPyramid, error) {
	params := url.Values{}
	params.Set("territory_id", strconv.FormatInt(territoryID, 10))
	params.Set("indicator_id", strconv.Itoa(c.cfg.PyramidIndicator))
	if oktmoCode != nil {
		params.Set("oktmo_code", strconv.FormatInt(*oktmoCode, 10))
	}
	if year != nil {
		params.Set("year", strconv.Itoa(*year))
	}

	rawURL := fmt.Sprintf("%s/indicators/%d/%d/detailed", c.cfg.BaseURL, c.cfg.PyramidIndicator, territoryID)
	data, err := doGet(ctx, c.httpClient, rawURL, params, c.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, NewObjectNotFoundError(
			"no population pyramids for territory %d (oktmo %v, year %v)", territoryID, oktmoCode, year)
	}

	var pyramids []pyramidResponse
	if err := json.Unmarshal(data, &pyramids); err != nil {
		return nil, fmt.Errorf("decoding pyramid response: %w", err)
	}
	if len(pyramids) == 0 {
		return nil, NewObjectNotFoundError(
			"no population pyramids for territory %d (oktmo %v, year %v)", territoryID, oktmoCode, year)
	}

	selected := pyramids[0]
	if year != nil {
		found := false
		for _, p := range pyramids {
			if p.Year == *year {
				selected = p
				found = true
				break
			}
		}
		if !found {
			return nil, NewObjectNotFoundError(
				"no population pyramid for territory %d in year %d", territoryID, *year)
		}
	} else {
		for _, p := range pyramids {
			if p.Year > selected.Year {
				selected = p
			}
		}
	}

	var men, women []int64
	for _, bucket := range selected.Data {
		ageEnd := bucket.AgeStart
		if bucket.AgeEnd != nil {
			ageEnd = *bucket.AgeEnd
		}
		if bucket.AgeStart >= models.PyramidAges {
			continue
		}
		var male, female int64
		if bucket.Male != nil {
			male = *bucket.Male
		}
		if bucket.Female != nil {
			female = *bucket.Female
		}
		if bucket.AgeStart == ageEnd {
			men = append(men, male)
			women = append(women, female)
			continue
		}
		span := int64(ageEnd + 1 - bucket.AgeStart)
		for age := bucket.AgeStart; age <= ageEnd; age++ {
			men = append(men, male/span)
			women = append(women, female/span)
		}
	}

	return &models.PopulationPyramid{Men: men, Women: women, Year: selected.Year}, nil
}

// GetSurvivabilityCoefficients derives the one-year survival multipliers
// from the two pyramids bracketing the requested year: the coefficient
// for age A is the ratio of this year's age-A bracket to last year's
// age-(A-1) bracket, for every age but the newborn one.
func (c *SocDemoClient) GetSurvivabilityCoefficients(ctx context.Context, territoryID int64, oktmoCode *int64, year *int) (*models.SurvivabilityCoefficients, error) {
	after, err := c.GetPopulationPyramid(ctx, territoryID, oktmoCode, year)
	if err != nil {
		return nil, err
	}
	beforeYear := after.Year - 1
	before, err := c.GetPopulationPyramid(ctx, territoryID, oktmoCode, &beforeYear)
	if err != nil {
		return nil, err
	}

	if len(after.Men) != models.PyramidAges || len(after.Women) != models.PyramidAges ||
		len(before.Men) != models.PyramidAges || len(before.Women) != models.PyramidAges {
		return nil, NewObjectNotFoundError(
			"pyramids for territory %d around year %d do not cover exactly %d ages", territoryID, after.Year, models.PyramidAges)
	}

	men := make([]float64, 0, models.PyramidAges-1)
	women := make([]float64, 0, models.PyramidAges-1)
	for age := 1; age < models.PyramidAges; age++ {
		men = append(men, ratio(after.Men[age], before.Men[age-1]))
		women = append(women, ratio(after.Women[age], before.Women[age-1]))
	}

	return &models.SurvivabilityCoefficients{Men: men, Women: women, Year: after.Year}, nil
}

// GetBirthStats derives the fertility parameters from the pyramid of
// the requested year: births are the age-0 bracket, the fertility
// coefficient is births per fertile-age woman.
func (c *SocDemoClient) GetBirthStats(ctx context.Context, territoryID int64, interval models.FertilityInterval, oktmoCode *int64, year *int) (*models.BirthStats, error) {
	pyramid, err := c.GetPopulationPyramid(ctx, territoryID, oktmoCode, year)
	if err != nil {
		return nil, err
	}
	if len(pyramid.Men) == 0 || len(pyramid.Women) == 0 {
		return nil, NewObjectNotFoundError("pyramid for territory %d has no age brackets", territoryID)
	}

	births := pyramid.Men[0] + pyramid.Women[0]

	var fertileWomen int64
	for age := interval.Start; age <= interval.End && age < len(pyramid.Women); age++ {
		fertileWomen += pyramid.Women[age]
	}
	if fertileWomen == 0 || pyramid.Women[0] == 0 {
		return nil, NewObjectNotFoundError(
			"pyramid for territory %d has no fertile-age population to derive birth stats from", territoryID)
	}

	return &models.BirthStats{
		FertilityInterval:    interval,
		BoysToGirls:          float64(pyramid.Men[0]) / float64(pyramid.Women[0]),
		FertilityCoefficient: float64(births) / float64(fertileWomen),
	}, nil
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
