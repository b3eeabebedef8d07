package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"

	"github.com/urbanlab/popforecast/pkg/metrics"
)

type Client struct {
	*river.Client[pgx.Tx]
}

// NewInsertClient builds a client that only enqueues and inspects jobs.
// The API process uses it; it is never started, so no jobs are worked
// in-process.
func NewInsertClient(pool *pgxpool.Pool) (*Client, error) {
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}
	return &Client{Client: riverClient}, nil
}

// NewWorkerClient builds a client with the pipeline workers registered.
// The caller owns its lifecycle via Start and Stop.
func NewWorkerClient(pool *pgxpool.Pool, pipeline Pipeline, maxWorkers int, timeout time.Duration) (*Client, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewBalanceWorker(pipeline, timeout))
	river.AddWorker(workers, NewDivideWorker(pipeline, timeout))
	river.AddWorker(workers, NewRestoreWorker(pipeline, timeout))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,

		FetchCooldown:     50 * time.Millisecond,
		FetchPollInterval: 100 * time.Millisecond,

		CompletedJobRetentionPeriod: 7 * 24 * time.Hour,
		DiscardedJobRetentionPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}
	return &Client{Client: riverClient}, nil
}

func (c *Client) InsertBalanceJob(ctx context.Context, args BalanceArgs) (int64, error) {
	return c.insert(ctx, args)
}

func (c *Client) InsertDivideJob(ctx context.Context, args DivideArgs) (int64, error) {
	return c.insert(ctx, args)
}

func (c *Client) InsertRestoreJob(ctx context.Context, args RestoreArgs) (int64, error) {
	return c.insert(ctx, args)
}

func (c *Client) insert(ctx context.Context, args river.JobArgs) (int64, error) {
	result, err := c.Insert(ctx, args, nil)
	if err != nil {
		return 0, err
	}
	metrics.IncreaseJobsEnqueuedTotal(args.Kind())
	return result.Job.ID, nil
}

// GetJob fetches the job row, or nil when no job has that id.
func (c *Client) GetJob(ctx context.Context, jobID int64) (*rivertype.JobRow, error) {
	row, err := c.JobGet(ctx, jobID)
	if err != nil {
		if err == river.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}
