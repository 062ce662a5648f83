package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/imagetools/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultSchedule = "@every 10m"

type JobCleanupWorker struct {
	jobService service.JobService
	schedule   string
	ttl        time.Duration
}

func NewJobCleanupWorker(jobService service.JobService, schedule string, ttl time.Duration) *JobCleanupWorker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &JobCleanupWorker{
		jobService: jobService,
		schedule:   schedule,
		ttl:        ttl,
	}
}

// Start runs the cleanup on the cron schedule until ctx is canceled.
func (w *JobCleanupWorker) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.CleanupExpiredJobs(ctx) }); err != nil {
		return err
	}

	c.Start()
	logrus.WithField("schedule", w.schedule).Info("Job cleanup worker started")

	<-ctx.Done()
	<-c.Stop().Done()

	logrus.Info("Job cleanup worker stopped")
	return nil
}

// CleanupExpiredJobs deletes jobs untouched for longer than the TTL.
func (w *JobCleanupWorker) CleanupExpiredJobs(ctx context.Context) int {
	cutoff := time.Now().Add(-w.ttl)

	deleted, err := w.jobService.DeleteExpired(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("Failed to clean up expired jobs")
	}
	if deleted > 0 {
		logrus.WithField("deleted", deleted).Info("Expired jobs cleaned up")
	}
	return deleted
}
