package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"github.com/urbanlab/popforecast/internal/jobs"
	"github.com/urbanlab/popforecast/internal/models"
)

// JobState is the coarse pipeline-facing view of a queued job.
type JobState string

const (
	JobStateQueued   JobState = "queued"
	JobStateStarted  JobState = "started"
	JobStateFinished JobState = "finished"
	JobStateFailed   JobState = "failed"
)

// JobStatus is what the status endpoint reports about one job. Failure
// is set only for failed jobs and carries the diagnostics captured in
// the worker process.
type JobStatus struct {
	ID         string
	Kind       string
	State      JobState
	EnqueuedAt time.Time
	FinishedAt *time.Time
	Failure    *jobs.Failure
}

// JobService enqueues pipeline jobs and reports on them. It never
// executes pipeline work itself; the worker process does.
type JobService struct {
	queue *jobs.Client
}

func NewJobService(queue *jobs.Client) *JobService {
	return &JobService{queue: queue}
}

func (s *JobService) EnqueueBalance(ctx context.Context, territoryID int64, startDate *time.Time) (string, error) {
	jobID, err := s.queue.InsertBalanceJob(ctx, jobs.BalanceArgs{
		TerritoryID: territoryID,
		StartDate:   startDate,
	})
	if err != nil {
		return "", err
	}
	zap.S().Infow("balance job enqueued", "job_id", jobID, "territory_id", territoryID)
	return strconv.FormatInt(jobID, 10), nil
}

// EnqueueDivide queues a division. When fromPrevious names a finished
// balance job for the same territory, its balanced inventory is embedded
// into the new job's arguments so the worker skips balancing.
func (s *JobService) EnqueueDivide(ctx context.Context, territoryID int64, startDate *time.Time, fromPrevious *string) (string, error) {
	args := jobs.DivideArgs{
		TerritoryID: territoryID,
		StartDate:   startDate,
	}
	if fromPrevious != nil {
		houses, prevID, err := s.resolveBalancedHouses(ctx, territoryID, *fromPrevious)
		if err != nil {
			return "", err
		}
		args.Houses = houses
		args.FromJobID = &prevID
	}

	jobID, err := s.queue.InsertDivideJob(ctx, args)
	if err != nil {
		return "", err
	}
	zap.S().Infow("divide job enqueued", "job_id", jobID, "territory_id", territoryID,
		"chained", fromPrevious != nil)
	return strconv.FormatInt(jobID, 10), nil
}

func (s *JobService) EnqueueRestore(ctx context.Context, territoryID int64, yearBegin int, years int, scenario models.Scenario, fromScratch bool) (string, error) {
	jobID, err := s.queue.InsertRestoreJob(ctx, jobs.RestoreArgs{
		TerritoryID: territoryID,
		YearBegin:   yearBegin,
		Years:       years,
		Scenario:    scenario,
		FromScratch: fromScratch,
	})
	if err != nil {
		return "", err
	}
	zap.S().Infow("restore job enqueued", "job_id", jobID, "territory_id", territoryID,
		"year_begin", yearBegin, "years", years, "scenario", scenario)
	return strconv.FormatInt(jobID, 10), nil
}

// Status reports the state of one job. For failed jobs the failure
// recorded by the worker is decoded back into its original category.
func (s *JobService) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	row, err := s.fetchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := &JobStatus{
		ID:         jobID,
		Kind:       row.Kind,
		EnqueuedAt: row.CreatedAt,
	}
	switch row.State {
	case rivertype.JobStateRunning:
		status.State = JobStateStarted
	case rivertype.JobStateCompleted:
		status.State = JobStateFinished
		status.FinishedAt = row.FinalizedAt
	case rivertype.JobStateCancelled, rivertype.JobStateDiscarded:
		status.State = JobStateFailed
		status.FinishedAt = row.FinalizedAt
		failure := decodeJobFailure(row)
		status.Failure = &failure
	default:
		status.State = JobStateQueued
	}
	return status, nil
}

// resolveBalancedHouses loads the output of a finished balance job. The
// referenced job must be a balance over the same territory.
func (s *JobService) resolveBalancedHouses(ctx context.Context, territoryID int64, fromPrevious string) ([]models.BalancedHouse, int64, error) {
	row, err := s.fetchJob(ctx, fromPrevious)
	if err != nil {
		return nil, 0, err
	}
	if row.Kind != jobs.BalanceJobKind {
		return nil, 0, NewErrPreviousJobInvalid(fromPrevious, fmt.Sprintf("kind %s is not a balance job", row.Kind))
	}
	var prevArgs jobs.BalanceArgs
	if err := json.Unmarshal(row.EncodedArgs, &prevArgs); err != nil {
		return nil, 0, fmt.Errorf("decoding arguments of job %s: %w", fromPrevious, err)
	}
	if prevArgs.TerritoryID != territoryID {
		return nil, 0, NewErrPreviousJobInvalid(fromPrevious,
			fmt.Sprintf("balanced territory %d, not %d", prevArgs.TerritoryID, territoryID))
	}
	if row.State != rivertype.JobStateCompleted {
		return nil, 0, NewErrPreviousJobNotFinished(fromPrevious)
	}

	var output jobs.BalanceOutput
	if err := json.Unmarshal(row.Output(), &output); err != nil {
		return nil, 0, fmt.Errorf("decoding output of job %s: %w", fromPrevious, err)
	}
	return output.Houses, row.ID, nil
}

func (s *JobService) fetchJob(ctx context.Context, jobID string) (*rivertype.JobRow, error) {
	id, err := strconv.ParseInt(jobID, 10, 64)
	if err != nil {
		return nil, NewErrJobNotFound(jobID)
	}
	row, err := s.queue.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, NewErrJobNotFound(jobID)
	}
	return row, nil
}

func decodeJobFailure(row *rivertype.JobRow) jobs.Failure {
	if len(row.Errors) == 0 {
		return jobs.Failure{Kind: jobs.FailureInternal, Message: "job failed without a recorded error"}
	}
	return jobs.DecodeFailure(row.Errors[len(row.Errors)-1].Error)
}
