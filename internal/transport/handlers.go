package transport

import (
	"github.com/ds124wfegd/imagetools/internal/pkg/imageio"
	"github.com/ds124wfegd/imagetools/internal/service"
)

type ToolHandler struct {
	service   service.ToolService
	validator *imageio.Validator
}

func NewToolHandler(service service.ToolService, validator *imageio.Validator) *ToolHandler {
	return &ToolHandler{service: service, validator: validator}
}

type JobHandler struct {
	service   service.JobService
	validator *imageio.Validator
}

func NewJobHandler(service service.JobService, validator *imageio.Validator) *JobHandler {
	return &JobHandler{service: service, validator: validator}
}
