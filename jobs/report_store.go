package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partsdesk/partsdesk/internal/poimport"
)

const reportKeyPrefix = "poimport:report:"

// ReportStore keeps async import status and reports in Redis.
type ReportStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewReportStore constructs a store whose entries expire after ttl.
func NewReportStore(client redis.UniversalClient, ttl time.Duration) *ReportStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportStore{client: client, ttl: ttl}
}

// ReportKey returns the Redis key for a job.
func ReportKey(jobID string) string {
	return reportKeyPrefix + jobID
}

// Put stores status, refreshing the expiry.
func (s *ReportStore) Put(ctx context.Context, status poimport.JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, ReportKey(status.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("jobs: store report %s: %w", status.JobID, err)
	}
	return nil
}

// Get loads the status for jobID, returning poimport.ErrNotFound when it is
// unknown or expired.
func (s *ReportStore) Get(ctx context.Context, jobID string) (poimport.JobStatus, error) {
	data, err := s.client.Get(ctx, ReportKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return poimport.JobStatus{}, poimport.ErrNotFound
		}
		return poimport.JobStatus{}, fmt.Errorf("jobs: load report %s: %w", jobID, err)
	}
	var status poimport.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return poimport.JobStatus{}, fmt.Errorf("jobs: decode report %s: %w", jobID, err)
	}
	return status, nil
}
