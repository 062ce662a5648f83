package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/imageio"
	"github.com/sirupsen/logrus"
)

const (
	DefaultFormField = "file"
	DefaultTimeout   = 60 * time.Second
)

// HTTPRemover sends the image as a multipart PNG upload to an inference
// server (rembg, BiRefNet and similar) and decodes the PNG it answers with.
type HTTPRemover struct {
	url       string
	formField string
	client    *http.Client
}

func NewHTTPRemover(url, formField string, timeout time.Duration) *HTTPRemover {
	if formField == "" {
		formField = DefaultFormField
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRemover{
		url:       url,
		formField: formField,
		client:    &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(r.formField, "input.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("copy form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", imageio.ContentTypePNG)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		// keep the caller's deadline or cancellation visible to errors.Is
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", entity.ErrModelUnavailable, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	logrus.WithFields(logrus.Fields{
		"url":      r.url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Background removal model responded")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", entity.ErrModelUnavailable, resp.StatusCode, bytes.TrimSpace(excerpt))
	}

	out, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode model response: %v", entity.ErrModelUnavailable, err)
	}
	return out, nil
}
