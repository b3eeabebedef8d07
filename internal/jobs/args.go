package jobs

import (
	"time"

	"github.com/riverqueue/river"

	"github.com/urbanlab/popforecast/internal/models"
)

const (
	BalanceJobKind = "territory_balance"
	DivideJobKind  = "territory_divide"
	RestoreJobKind = "territory_restore"
)

// Jobs are never retried: a second attempt would repeat upstream writes
// and the caller is expected to resubmit explicitly after a failure.
func insertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

type BalanceArgs struct {
	TerritoryID int64      `json:"territory_id"`
	StartDate   *time.Time `json:"start_date,omitempty"`
}

func (BalanceArgs) Kind() string { return BalanceJobKind }

func (BalanceArgs) InsertOpts() river.InsertOpts { return insertOpts() }

type DivideArgs struct {
	TerritoryID int64      `json:"territory_id"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	// Houses carries the balanced inventory of a previously finished
	// balance job. When set the worker reuses it instead of balancing
	// the territory again.
	Houses    []models.BalancedHouse `json:"houses,omitempty"`
	FromJobID *int64                 `json:"from_job_id,omitempty"`
}

func (DivideArgs) Kind() string { return DivideJobKind }

func (DivideArgs) InsertOpts() river.InsertOpts { return insertOpts() }

type RestoreArgs struct {
	TerritoryID int64           `json:"territory_id"`
	YearBegin   int             `json:"year_begin"`
	Years       int             `json:"years"`
	Scenario    models.Scenario `json:"scenario"`
	FromScratch bool            `json:"from_scratch"`
}

func (RestoreArgs) Kind() string { return RestoreJobKind }

func (RestoreArgs) InsertOpts() river.InsertOpts { return insertOpts() }

// BalanceOutput is recorded on a finished balance job so later divide
// jobs can chain off it without repeating the upstream fetches.
type BalanceOutput struct {
	TerritoryID int64                      `json:"territory_id"`
	Territories []models.BalancedTerritory `json:"territories"`
	Houses      []models.BalancedHouse     `json:"houses"`
}
