package jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/urbanlab/popforecast/internal/models"
	"github.com/urbanlab/popforecast/internal/restorator"
	"github.com/urbanlab/popforecast/pkg/metrics"
)

// Pipeline is the population pipeline the workers drive. It is
// implemented by the service layer; declaring it here keeps the queue
// package free of a dependency on it.
type Pipeline interface {
	Balance(ctx context.Context, territoryID int64, startDate *time.Time) (*restorator.BalanceResult, error)
	Divide(ctx context.Context, territoryID int64, houses []models.BalancedHouse, startDate *time.Time) (*restorator.DivideResult, error)
	Restore(ctx context.Context, territoryID int64, yearBegin int, years int, scenario models.Scenario, fromScratch bool, jobID int64) error
}

type BalanceWorker struct {
	river.WorkerDefaults[BalanceArgs]
	pipeline Pipeline
	timeout  time.Duration
}

func NewBalanceWorker(pipeline Pipeline, timeout time.Duration) *BalanceWorker {
	return &BalanceWorker{pipeline: pipeline, timeout: timeout}
}

func (w *BalanceWorker) Timeout(job *river.Job[BalanceArgs]) time.Duration {
	return w.timeout
}

func (w *BalanceWorker) Work(ctx context.Context, job *river.Job[BalanceArgs]) error {
	zap.S().Infow("balance job started", "job_id", job.ID, "territory_id", job.Args.TerritoryID)

	result, err := w.pipeline.Balance(ctx, job.Args.TerritoryID, job.Args.StartDate)
	if err != nil {
		return failJob(job.ID, job.Kind, err)
	}
	output := BalanceOutput{
		TerritoryID: job.Args.TerritoryID,
		Territories: result.Territories,
		Houses:      result.Houses,
	}
	if err := river.RecordOutput(ctx, output); err != nil {
		return failJob(job.ID, job.Kind, err)
	}

	zap.S().Infow("balance job finished", "job_id", job.ID, "territory_id", job.Args.TerritoryID,
		"territories", len(result.Territories), "houses", len(result.Houses))
	return nil
}

type DivideWorker struct {
	river.WorkerDefaults[DivideArgs]
	pipeline Pipeline
	timeout  time.Duration
}

func NewDivideWorker(pipeline Pipeline, timeout time.Duration) *DivideWorker {
	return &DivideWorker{pipeline: pipeline, timeout: timeout}
}

func (w *DivideWorker) Timeout(job *river.Job[DivideArgs]) time.Duration {
	return w.timeout
}

func (w *DivideWorker) Work(ctx context.Context, job *river.Job[DivideArgs]) error {
	zap.S().Infow("divide job started", "job_id", job.ID, "territory_id", job.Args.TerritoryID,
		"chained", job.Args.FromJobID != nil)

	result, err := w.pipeline.Divide(ctx, job.Args.TerritoryID, job.Args.Houses, job.Args.StartDate)
	if err != nil {
		return failJob(job.ID, job.Kind, err)
	}

	zap.S().Infow("divide job finished", "job_id", job.ID, "territory_id", job.Args.TerritoryID,
		"houses", result.Houses)
	return nil
}

type RestoreWorker struct {
	river.WorkerDefaults[RestoreArgs]
	pipeline Pipeline
	timeout  time.Duration
}

func NewRestoreWorker(pipeline Pipeline, timeout time.Duration) *RestoreWorker {
	return &RestoreWorker{pipeline: pipeline, timeout: timeout}
}

func (w *RestoreWorker) Timeout(job *river.Job[RestoreArgs]) time.Duration {
	return w.timeout
}

func (w *RestoreWorker) Work(ctx context.Context, job *river.Job[RestoreArgs]) error {
	zap.S().Infow("restore job started", "job_id", job.ID, "territory_id", job.Args.TerritoryID,
		"year_begin", job.Args.YearBegin, "years", job.Args.Years, "scenario", job.Args.Scenario)

	err := w.pipeline.Restore(ctx, job.Args.TerritoryID, job.Args.YearBegin, job.Args.Years,
		job.Args.Scenario, job.Args.FromScratch, job.ID)
	if err != nil {
		return failJob(job.ID, job.Kind, err)
	}

	zap.S().Infow("restore job finished", "job_id", job.ID, "territory_id", job.Args.TerritoryID)
	return nil
}

// failJob records the failure metric and re-packages the error so its
// classification and trace survive on the job row.
func failJob(jobID int64, kind string, err error) error {
	failureKind := Classify(err)
	metrics.IncreaseJobsFailedTotal(kind, string(failureKind))
	zap.S().Errorw("job failed", "job_id", jobID, "kind", kind, "failure", failureKind, "error", err)
	return CaptureFailure(err)
}
