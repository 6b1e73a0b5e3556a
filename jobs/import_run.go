package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/partsdesk/partsdesk/internal/jobs"
	"github.com/partsdesk/partsdesk/internal/poimport"
)

// ImportJob runs queued purchase-order batches through the import service
// and records their status in the report store.
type ImportJob struct {
	Importer poimport.Importer
	Store    *ReportStore
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
	attempts func(ctx context.Context) (retried, maxRetry int, ok bool)
}

// NewImportJob wires dependencies for the import handler.
func NewImportJob(importer poimport.Importer, store *ReportStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImportJob {
	return &ImportJob{
		Importer: importer,
		Store:    store,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		attempts: asynqAttempts,
	}
}

func asynqAttempts(ctx context.Context) (int, int, bool) {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return 0, 0, false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return retried, maxRetry, ok
}

// Handle processes TaskImportRun tasks. A busy import lock hands the task
// back to asynq for a later retry until the last attempt; any other failure
// is final.
func (j *ImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Importer == nil || j.Store == nil {
		return errors.New("poimport job: handler not configured")
	}
	var payload ImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskImportRun)
	logger := j.logger().With(slog.String("job_id", payload.JobID))

	if err := j.put(ctx, payload.JobID, poimport.JobRunning, nil, ""); err != nil {
		logger.Warn("store running status", slog.Any("error", err))
	}

	report, err := j.Importer.Import(ctx, payload.Rows, payload.Options)
	switch {
	case errors.Is(err, poimport.ErrImportRunning) && j.lastAttempt(ctx):
		logger.Error("import lock still busy, giving up", slog.Any("error", err))
		if perr := j.put(ctx, payload.JobID, poimport.JobFailed, nil, err.Error()); perr != nil {
			logger.Warn("store failed status", slog.Any("error", perr))
		}
		return tracker.End(fmt.Errorf("%v: %w", err, asynq.SkipRetry))
	case errors.Is(err, poimport.ErrImportRunning):
		tracker.Retry()
		logger.Info("import lock busy, retrying later")
		if perr := j.put(ctx, payload.JobID, poimport.JobQueued, nil, ""); perr != nil {
			logger.Warn("store queued status", slog.Any("error", perr))
		}
		return err
	case err != nil:
		logger.Error("import job failed", slog.Any("error", err))
		if perr := j.put(ctx, payload.JobID, poimport.JobFailed, nil, err.Error()); perr != nil {
			logger.Warn("store failed status", slog.Any("error", perr))
		}
		return tracker.End(fmt.Errorf("%v: %w", err, asynq.SkipRetry))
	}

	if err := j.put(ctx, payload.JobID, poimport.JobDone, &report, ""); err != nil {
		logger.Error("store import report", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("import job done",
		slog.String("batch_id", report.BatchID),
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped))
	return tracker.End(nil)
}

func (j *ImportJob) put(ctx context.Context, jobID string, state poimport.JobState, report *poimport.Report, msg string) error {
	return j.Store.Put(context.WithoutCancel(ctx), poimport.JobStatus{
		JobID:     jobID,
		State:     state,
		Report:    report,
		Error:     msg,
		UpdatedAt: j.now(),
	})
}

func (j *ImportJob) lastAttempt(ctx context.Context) bool {
	if j.attempts == nil {
		return false
	}
	retried, maxRetry, ok := j.attempts(ctx)
	return ok && retried >= maxRetry
}

func (j *ImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ImportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
