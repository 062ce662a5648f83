package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/storage"
	"github.com/sirupsen/logrus"
)

func NewJobRepository(storage storage.FileStorage) JobRepository {
	return &fileJobRepository{storage: storage}
}

func (r *fileJobRepository) Save(job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return r.storage.Save(r.getMetadataPath(job.ID), bytes.NewReader(data))
}

func (r *fileJobRepository) FindByID(id string) (*entity.Job, error) {
	if !isValidID(id) {
		return nil, entity.ErrJobNotFound
	}

	reader, err := r.storage.Get(r.getMetadataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, entity.ErrJobNotFound
		}
		return nil, err
	}
	defer reader.Close()

	var job entity.Job
	if err := json.NewDecoder(reader).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}

	return &job, nil
}

func (r *fileJobRepository) List() ([]*entity.Job, error) {
	names, err := r.storage.List("metadata")
	if err != nil {
		return nil, err
	}

	jobs := make([]*entity.Job, 0, len(names))
	for _, name := range names {
		id, ok := strings.CutSuffix(name, ".json")
		if !ok {
			continue
		}
		job, err := r.FindByID(id)
		if err != nil {
			logrus.WithError(err).WithField("job_id", id).Warn("Skipping unreadable job metadata")
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *fileJobRepository) Delete(id string) error {
	if !isValidID(id) {
		return entity.ErrJobNotFound
	}

	if err := r.storage.Delete(r.getMetadataPath(id)); err != nil {
		if os.IsNotExist(err) {
			return entity.ErrJobNotFound
		}
		return err
	}

	if err := r.storage.Delete(filepath.Join("files", id)); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (r *fileJobRepository) SaveFile(id string, kind string, file io.Reader) error {
	return r.storage.Save(r.getFilePath(id, kind), file)
}

func (r *fileJobRepository) OpenFile(id string, kind string) (io.ReadCloser, error) {
	if !isValidID(id) {
		return nil, entity.ErrJobNotFound
	}
	reader, err := r.storage.Get(r.getFilePath(id, kind))
	if err != nil && os.IsNotExist(err) {
		return nil, entity.ErrJobNotFound
	}
	return reader, err
}

func (r *fileJobRepository) getFilePath(id string, kind string) string {
	return filepath.Join("files", id, kind)
}

func (r *fileJobRepository) getMetadataPath(id string) string {
	return filepath.Join("metadata", id+".json")
}

// ids come from URLs, keep them inside the storage root
func isValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
