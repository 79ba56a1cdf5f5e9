package audit

import (
	"context"
	"log/slog"
	"time"
)

// RetentionJob deletes events older than the retention window.
type RetentionJob struct {
	repo      Repository
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

// NewRetentionJob creates a job that keeps events for retention.
func NewRetentionJob(repo Repository, retention time.Duration, logger *slog.Logger) *RetentionJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionJob{repo: repo, logger: logger, retention: retention, now: time.Now}
}

// RunOnce performs a single prune pass.
func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("auth event retention failed", "error", err)
		return 0, err
	}
	if deleted > 0 {
		j.logger.Info("pruned auth events", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Run prunes on every interval tick until ctx is cancelled.
func (j *RetentionJob) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.RunOnce(ctx)
		}
	}
}
