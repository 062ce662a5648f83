package service

import (
	"context"
	"io"
	"time"

	"github.com/ds124wfegd/imagetools/internal/database"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/cache"
	"github.com/ds124wfegd/imagetools/internal/pkg/kafka"
	"github.com/ds124wfegd/imagetools/internal/pkg/rembg"
	"github.com/ds124wfegd/imagetools/internal/pkg/wallpaper"
)

// ToolService runs the image tools synchronously on uploaded bytes.
type ToolService interface {
	RemoveBackground(ctx context.Context, data []byte) (*entity.Result, error)
	ComposeWallpaper(ctx context.Context, data []byte, method entity.Method) (*entity.Result, error)
	Run(ctx context.Context, tool entity.Tool, method entity.Method, data []byte) (*entity.Result, error)
	Methods() entity.MethodsResponse
}

// JobService queues tool runs and serves their results later.
type JobService interface {
	Submit(ctx context.Context, tool entity.Tool, method entity.Method, data []byte) (*entity.Job, error)
	GetJob(id string) (*entity.Job, error)
	OpenResult(id string) (io.ReadCloser, *entity.Job, error)
	DeleteJob(id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

type toolService struct {
	remover       rembg.Remover
	composer      *wallpaper.Composer
	cache         cache.ResultCache
	defaultMethod entity.Method
}

func NewToolService(remover rembg.Remover, composer *wallpaper.Composer, resultCache cache.ResultCache, defaultMethod entity.Method) ToolService {
	if resultCache == nil {
		resultCache = cache.NewNoopCache()
	}
	if defaultMethod == "" {
		defaultMethod = entity.MethodBlurred
	}
	return &toolService{
		remover:       rembg.Checked(remover),
		composer:      composer,
		cache:         resultCache,
		defaultMethod: defaultMethod,
	}
}

type jobService struct {
	repo     database.JobRepository
	producer kafka.Producer
	now      func() time.Time
}

func NewJobService(repo database.JobRepository, producer kafka.Producer) JobService {
	return &jobService{
		repo:     repo,
		producer: producer,
		now:      time.Now,
	}
}
