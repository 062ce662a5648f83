package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/transport/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return middleware.StatusClientClosedRequest
	case errors.Is(err, entity.ErrNoImage),
		errors.Is(err, entity.ErrUnsupportedType),
		errors.Is(err, entity.ErrDecode),
		errors.Is(err, entity.ErrEmptyImage),
		errors.Is(err, entity.ErrUnknownMethod),
		errors.Is(err, entity.ErrUnknownTool):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrFileTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, entity.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrJobNotReady):
		return http.StatusConflict
	case errors.Is(err, entity.ErrModelUnavailable), errors.Is(err, entity.ErrDimensionMismatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	message := err.Error()
	switch status {
	case middleware.StatusClientClosedRequest:
		logrus.WithField("path", c.Request.URL.Path).Debug("Client closed request")
	case http.StatusInternalServerError:
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Internal error")
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
