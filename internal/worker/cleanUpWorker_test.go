package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobService struct {
	cutoffs chan time.Time
}

func (f *fakeJobService) Submit(context.Context, entity.Tool, entity.Method, []byte) (*entity.Job, error) {
	return nil, nil
}
func (f *fakeJobService) GetJob(string) (*entity.Job, error) { return nil, nil }
func (f *fakeJobService) OpenResult(string) (io.ReadCloser, *entity.Job, error) {
	return nil, nil, nil
}
func (f *fakeJobService) DeleteJob(string) error { return nil }
func (f *fakeJobService) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	select {
	case f.cutoffs <- before:
	default:
	}
	return 3, nil
}

func TestCleanupExpiredJobs_UsesTTL(t *testing.T) {
	jobs := &fakeJobService{cutoffs: make(chan time.Time, 1)}
	w := NewJobCleanupWorker(jobs, "", time.Hour)

	deleted := w.CleanupExpiredJobs(context.Background())
	assert.Equal(t, 3, deleted)

	cutoff := <-jobs.cutoffs
	assert.WithinDuration(t, time.Now().Add(-time.Hour), cutoff, 5*time.Second)
	assert.Equal(t, DefaultSchedule, w.schedule)
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := NewJobCleanupWorker(&fakeJobService{}, "every tuesday-ish", time.Hour)

	assert.Error(t, w.Start(context.Background()))
}

func TestStart_StopsWithContext(t *testing.T) {
	jobs := &fakeJobService{cutoffs: make(chan time.Time, 10)}
	w := NewJobCleanupWorker(jobs, "@every 1s", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	select {
	case <-jobs.cutoffs:
	case <-time.After(3 * time.Second):
		t.Fatal("cleanup did not run on schedule")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
}
