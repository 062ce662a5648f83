package database

import (
	"io"

	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/storage"
)

const (
	FileOriginal = "original"
	FileResult   = "result"
)

type JobRepository interface {
	Save(job *entity.Job) error
	FindByID(id string) (*entity.Job, error)
	List() ([]*entity.Job, error)
	Delete(id string) error
	SaveFile(id string, kind string, file io.Reader) error
	OpenFile(id string, kind string) (io.ReadCloser, error)
}

type fileJobRepository struct {
	storage storage.FileStorage
}
