package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ds124wfegd/imagetools/internal/database"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/service"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type JobProcessor interface {
	Process(ctx context.Context, task entity.ProcessingTask) error
	HandleMessage(ctx context.Context, value []byte) error
}

type jobProcessor struct {
	repo  database.JobRepository
	tools service.ToolService
}

func NewJobProcessor(repo database.JobRepository, tools service.ToolService) JobProcessor {
	return &jobProcessor{repo: repo, tools: tools}
}

// HandleMessage decodes a queued task and processes it.
func (p *jobProcessor) HandleMessage(ctx context.Context, value []byte) error {
	var task entity.ProcessingTask
	if err := json.Unmarshal(value, &task); err != nil {
		return fmt.Errorf("failed to parse task: %w", err)
	}
	return p.Process(ctx, task)
}

// Process runs the job's tool over its stored original and records the
// outcome. A tool failure marks the job failed and is returned as well.
func (p *jobProcessor) Process(ctx context.Context, task entity.ProcessingTask) error {
	log := logrus.WithField("job_id", task.JobID)
	log.Info("Processing job")

	job, err := p.repo.FindByID(task.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	// redelivered messages must not run the tool twice
	switch job.Status {
	case entity.StatusCompleted, entity.StatusProcessing:
		log.WithField("status", job.Status).Info("Job already picked up, skipping")
		return nil
	}

	if err := p.updateStatus(job, entity.StatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	result, err := p.run(ctx, job)
	if err != nil {
		if statusErr := p.updateStatus(job, entity.StatusFailed, err.Error()); statusErr != nil {
			log.WithError(statusErr).Error("Failed to mark job as failed")
		}
		return err
	}

	if err := p.repo.SaveFile(job.ID, database.FileResult, bytes.NewReader(result.PNG)); err != nil {
		_ = p.updateStatus(job, entity.StatusFailed, "failed to store result")
		return fmt.Errorf("failed to save result: %w", err)
	}

	if err := p.updateStatus(job, entity.StatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	log.WithFields(logrus.Fields{"width": result.Width, "height": result.Height}).Info("Completed processing job")
	return nil
}

func (p *jobProcessor) run(ctx context.Context, job *entity.Job) (*entity.Result, error) {
	reader, err := p.repo.OpenFile(job.ID, database.FileOriginal)
	if err != nil {
		return nil, fmt.Errorf("failed to load original: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read original: %w", err)
	}

	return p.tools.Run(ctx, job.Tool, job.Method, data)
}

func (p *jobProcessor) updateStatus(job *entity.Job, status entity.JobStatus, message string) error {
	job.Status = status
	job.Error = message
	job.UpdatedAt = time.Now()
	return p.repo.Save(job)
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// StartImageProcessorConsumer reads tasks from Kafka until ctx is canceled,
// processing each on its own goroutine.
func StartImageProcessorConsumer(ctx context.Context, cfg ConsumerConfig, processor JobProcessor) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
	defer reader.Close()

	logrus.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
		"group":   cfg.GroupID,
	}).Info("Image processor consumer started")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logrus.Info("Image processor consumer stopped")
				return
			}
			logrus.WithError(err).Error("Error reading message from Kafka")
			continue
		}

		logrus.WithFields(logrus.Fields{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Debug("Received message")

		go func(value []byte) {
			if err := processor.HandleMessage(ctx, value); err != nil {
				logrus.WithError(err).Error("Processing failed")
			}
		}(msg.Value)
	}
}
