package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/partsdesk/partsdesk/internal/poimport"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskImportRun is the task type for background purchase-order imports.
	TaskImportRun = "poimport:run"

	importMaxRetry = 5
)

// ImportPayload carries a parsed batch to the worker.
type ImportPayload struct {
	JobID   string            `json:"job_id"`
	Rows    []poimport.RawRow `json:"rows"`
	Options poimport.Options  `json:"options"`
}

// NewImportTask constructs an Asynq task whose id is the job id, so a batch
// is never queued twice.
func NewImportTask(payload ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportRun, data,
		asynq.Queue(QueueDefault),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(importMaxRetry),
	), nil
}
