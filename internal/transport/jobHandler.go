package transport

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/imageio"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type jobForm struct {
	Tool   string `form:"tool" binding:"required,oneof=rembg wallpaper"`
	Method string `form:"method"`
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var form jobForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
		writeError(c, formError(err, entity.ErrUnknownTool))
		return
	}

	tool, err := entity.ParseTool(form.Tool)
	if err != nil {
		writeError(c, err)
		return
	}

	var method entity.Method
	if tool == entity.ToolWallpaper && form.Method != "" {
		if method, err = entity.ParseMethod(form.Method); err != nil {
			writeError(c, err)
			return
		}
	}

	data, err := readImage(c, h.validator)
	if err != nil {
		writeError(c, err)
		return
	}

	job, err := h.service.Submit(c.Request.Context(), tool, method, data)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", "/api/v1/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, entity.UploadResponse{
		ID:     job.ID,
		Status: job.Status,
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.service.GetJob(id)
	if err != nil {
		writeError(c, err)
		return
	}

	response := entity.JobResponse{
		ID:        job.ID,
		Tool:      job.Tool,
		Method:    job.Method,
		Status:    job.Status,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
	}

	if job.Status == entity.StatusCompleted {
		response.ResultURL = "/api/v1/jobs/" + job.ID + "/result"
	}

	c.JSON(http.StatusOK, response)
}

func (h *JobHandler) GetResult(c *gin.Context) {
	id := c.Param("id")

	reader, job, err := h.service.OpenResult(id)
	if err != nil {
		writeError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, job.Tool.ResultFilename()))
	c.Header("Content-Type", imageio.ContentTypePNG)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		_ = c.Error(err)
	}
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.DeleteJob(id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job deleted successfully"})
}
