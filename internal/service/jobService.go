package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ds124wfegd/imagetools/internal/database"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (s *jobService) Submit(ctx context.Context, tool entity.Tool, method entity.Method, data []byte) (*entity.Job, error) {
	if tool != entity.ToolWallpaper {
		method = ""
	}

	now := s.now()
	job := &entity.Job{
		ID:        uuid.New().String(),
		Tool:      tool,
		Method:    method,
		Status:    entity.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// the original goes first so a consumer never sees metadata without it
	if err := s.repo.SaveFile(job.ID, database.FileOriginal, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save original: %w", err)
	}
	if err := s.repo.Save(job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	task := entity.ProcessingTask{
		JobID:  job.ID,
		Tool:   job.Tool,
		Method: job.Method,
	}

	if err := s.producer.SendMessage(ctx, job.ID, task); err != nil {
		job.Status = entity.StatusFailed
		job.Error = "failed to enqueue job"
		job.UpdatedAt = s.now()
		if saveErr := s.repo.Save(job); saveErr != nil {
			logrus.WithError(saveErr).WithField("job_id", job.ID).Error("Failed to mark job as failed")
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	logrus.WithFields(logrus.Fields{"job_id": job.ID, "tool": tool, "method": method}).Info("Job queued")
	return job, nil
}

func (s *jobService) GetJob(id string) (*entity.Job, error) {
	return s.repo.FindByID(id)
}

func (s *jobService) OpenResult(id string) (io.ReadCloser, *entity.Job, error) {
	job, err := s.repo.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != entity.StatusCompleted {
		return nil, job, entity.ErrJobNotReady
	}

	reader, err := s.repo.OpenFile(id, database.FileResult)
	if err != nil {
		return nil, job, err
	}
	return reader, job, nil
}

func (s *jobService) DeleteJob(id string) error {
	return s.repo.Delete(id)
}

// AbandonedJobGrace is how much longer than finished jobs a queued or
// processing job is kept before it is treated as abandoned.
const AbandonedJobGrace = 24 * time.Hour

// DeleteExpired removes finished jobs last updated before the cutoff. Queued
// and processing jobs are kept until AbandonedJobGrace past the cutoff.
func (s *jobService) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	jobs, err := s.repo.List()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		cutoff := before
		if !job.Status.Terminal() {
			cutoff = before.Add(-AbandonedJobGrace)
		}
		if !job.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.repo.Delete(job.ID); err != nil && !errors.Is(err, entity.ErrJobNotFound) {
			logrus.WithError(err).WithField("job_id", job.ID).Error("Failed to delete expired job")
			continue
		}
		deleted++
	}
	return deleted, nil
}
