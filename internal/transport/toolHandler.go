package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/imageio"
	"github.com/gin-gonic/gin"
)

// readImage pulls the "image" form file through the upload validator.
func readImage(c *gin.Context, validator *imageio.Validator) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, formError(err, entity.ErrNoImage)
	}
	return validator.ReadUpload(file)
}

// formError reports an oversized body as such and anything else as fallback.
func formError(err error, fallback error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Errorf("%w: %v", entity.ErrFileTooLarge, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}

func (h *ToolHandler) RemoveBackground(c *gin.Context) {
	data, err := readImage(c, h.validator)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.service.RemoveBackground(c.Request.Context(), data)
	if err != nil {
		writeError(c, err)
		return
	}

	writeResult(c, entity.ToolRemoveBackground, result)
}

func (h *ToolHandler) ComposeWallpaper(c *gin.Context) {
	data, err := readImage(c, h.validator)
	if err != nil {
		writeError(c, err)
		return
	}

	// empty selects the service's default method
	var method entity.Method
	if raw := c.PostForm("method"); raw != "" {
		if method, err = entity.ParseMethod(raw); err != nil {
			writeError(c, err)
			return
		}
	}

	result, err := h.service.ComposeWallpaper(c.Request.Context(), data, method)
	if err != nil {
		writeError(c, err)
		return
	}

	writeResult(c, entity.ToolWallpaper, result)
}

func (h *ToolHandler) Methods(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Methods())
}

func writeResult(c *gin.Context, tool entity.Tool, result *entity.Result) {
	cacheStatus := "MISS"
	if result.Cached {
		cacheStatus = "HIT"
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, tool.ResultFilename()))
	c.Header("X-Cache", cacheStatus)
	c.Header("X-Source-Width", strconv.Itoa(result.SourceWidth))
	c.Header("X-Source-Height", strconv.Itoa(result.SourceHeight))
	c.Header("X-Result-Width", strconv.Itoa(result.Width))
	c.Header("X-Result-Height", strconv.Itoa(result.Height))
	c.Data(http.StatusOK, imageio.ContentTypePNG, result.PNG)
}
