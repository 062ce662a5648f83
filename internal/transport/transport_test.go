package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagetools/internal/database"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/cache"
	"github.com/ds124wfegd/imagetools/internal/pkg/imageio"
	"github.com/ds124wfegd/imagetools/internal/pkg/rembg"
	"github.com/ds124wfegd/imagetools/internal/pkg/storage"
	"github.com/ds124wfegd/imagetools/internal/pkg/wallpaper"
	"github.com/ds124wfegd/imagetools/internal/service"
	"github.com/ds124wfegd/imagetools/internal/transport/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopProducer struct{}

func (nopProducer) SendMessage(context.Context, string, interface{}) error { return nil }
func (nopProducer) Close() error                                            { return nil }

type failingTools struct {
	service.ToolService
	err error
}

func (f failingTools) RemoveBackground(context.Context, []byte) (*entity.Result, error) {
	return nil, f.err
}

type testServer struct {
	router *gin.Engine
	repo   database.JobRepository
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	tools := service.NewToolService(
		rembg.NewThresholdRemover(rembg.DefaultThreshold, 0),
		wallpaper.NewComposer(60, 130, 2),
		cache.NewNoopCache(),
		entity.MethodBlurred,
	)
	repo := database.NewJobRepository(storage.NewFileStorage(t.TempDir()))
	jobs := service.NewJobService(repo, nopProducer{})
	validator := imageio.NewValidator(maxUpload, nil)

	router := InitRoutes(
		RouterConfig{MaxUploadSize: maxUpload, RequestTimeout: 10 * time.Second, Version: "test"},
		NewToolHandler(tools, validator),
		NewJobHandler(jobs, validator),
	)
	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imageio.EncodePNG(imaging.New(w, h, color.White))
	require.NoError(t, err)
	return data
}

// uploadRequest собирает multipart-запрос с файлом и полями формы
func uploadRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(httptest.NewRequest(http.MethodOptions, "/api/v1/wallpaper", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestComposeWallpaper(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{name: "default method", fields: nil},
		{name: "blurred value", fields: map[string]string{"method": "blurred"}},
		{name: "solid label", fields: map[string]string{"method": "Solid color (extract from original)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 0)

			w := s.do(uploadRequest(t, "/api/v1/wallpaper", "photo.png", samplePNG(t, 20, 10), tt.fields))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="wallpaper_1200x2600.png"`, w.Header().Get("Content-Disposition"))
			assert.Equal(t, "20", w.Header().Get("X-Source-Width"))
			assert.Equal(t, "60", w.Header().Get("X-Result-Width"))
			assert.Equal(t, "130", w.Header().Get("X-Result-Height"))
			assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

			img, err := imageio.Decode(w.Body.Bytes())
			require.NoError(t, err)
			assert.Equal(t, 60, img.Bounds().Dx())
			assert.Equal(t, 130, img.Bounds().Dy())
		})
	}
}

func TestRemoveBackground(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(uploadRequest(t, "/api/v1/background/remove", "photo.png", samplePNG(t, 9, 7), nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="output_no_bg.png"`, w.Header().Get("Content-Disposition"))

	img, err := imageio.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 9, img.Bounds().Dx())
	assert.Equal(t, 7, img.Bounds().Dy())
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		filename string
		data     []byte
		fields   map[string]string
		maxSize  int64
		want     int
	}{
		{
			name: "missing file",
			path: "/api/v1/background/remove",
			want: http.StatusBadRequest,
		},
		{
			name:     "unsupported extension",
			path:     "/api/v1/wallpaper",
			filename: "photo.gif",
			data:     []byte("GIF89a"),
			want:     http.StatusBadRequest,
		},
		{
			name:     "text disguised as png",
			path:     "/api/v1/wallpaper",
			filename: "photo.png",
			data:     []byte("hello there"),
			want:     http.StatusBadRequest,
		},
		{
			name:     "unknown method",
			path:     "/api/v1/wallpaper",
			filename: "photo.png",
			data:     nil,
			fields:   map[string]string{"method": "mirror"},
			want:     http.StatusBadRequest,
		},
		{
			name:     "file too large",
			path:     "/api/v1/wallpaper",
			filename: "photo.png",
			data:     bytes.Repeat([]byte{0}, 5000),
			maxSize:  1000,
			want:     http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.maxSize)
			data := tt.data
			if data == nil && tt.filename != "" {
				data = samplePNG(t, 4, 4)
			}

			w := s.do(uploadRequest(t, tt.path, tt.filename, data, tt.fields))

			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, errorMessage(t, w))
		})
	}
}

func TestModelFailureMapsToBadGateway(t *testing.T) {
	tools := failingTools{err: fmt.Errorf("%w: status 503", entity.ErrModelUnavailable)}
	router := InitRoutes(RouterConfig{}, NewToolHandler(tools, imageio.NewValidator(0, nil)), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/background/remove", "photo.png", samplePNG(t, 4, 4), nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, errorMessage(t, w), "model unavailable")
}

func TestSlowModelTimesOut(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer model.Close()

	tools := service.NewToolService(
		rembg.NewHTTPRemover(model.URL, "", time.Minute),
		wallpaper.NewComposer(60, 130, 2),
		cache.NewNoopCache(),
		entity.MethodBlurred,
	)
	router := InitRoutes(
		RouterConfig{RequestTimeout: 50 * time.Millisecond},
		NewToolHandler(tools, imageio.NewValidator(0, nil)),
		nil,
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/background/remove", "photo.png", samplePNG(t, 4, 4), nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestClientGoneIsNotInternalError(t *testing.T) {
	tools := failingTools{err: context.Canceled}
	router := InitRoutes(RouterConfig{}, NewToolHandler(tools, imageio.NewValidator(0, nil)), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/background/remove", "photo.png", samplePNG(t, 4, 4), nil))

	assert.Equal(t, middleware.StatusClientClosedRequest, w.Code)
	assert.NotEqual(t, "internal server error", errorMessage(t, w))
}

func TestMethods(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/wallpaper/methods", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp entity.MethodsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, entity.MethodBlurred, resp.Default)
	assert.Len(t, resp.Methods, 2)
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(uploadRequest(t, "/api/v1/jobs", "photo.png", samplePNG(t, 5, 5), map[string]string{
		"tool":   "wallpaper",
		"method": "solid",
	}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var created entity.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, entity.StatusQueued, created.Status)
	assert.Equal(t, "/api/v1/jobs/"+created.ID, w.Header().Get("Location"))

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var job entity.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, entity.MethodSolid, job.Method)
	assert.Empty(t, job.ResultURL)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID+"/result", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	stored, err := s.repo.FindByID(created.ID)
	require.NoError(t, err)
	stored.Status = entity.StatusCompleted
	require.NoError(t, s.repo.Save(stored))
	require.NoError(t, s.repo.SaveFile(created.ID, database.FileResult, strings.NewReader("png bytes")))

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID, nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "/api/v1/jobs/"+created.ID+"/result", job.ResultURL)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID+"/result", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png bytes", w.Body.String())
	assert.Equal(t, `attachment; filename="wallpaper_1200x2600.png"`, w.Header().Get("Content-Disposition"))

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJob_Invalid(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(uploadRequest(t, "/api/v1/jobs", "photo.png", samplePNG(t, 5, 5), map[string]string{"tool": "upscale"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(uploadRequest(t, "/api/v1/jobs", "photo.png", samplePNG(t, 5, 5), map[string]string{"tool": "wallpaper", "method": "tiled"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(uploadRequest(t, "/api/v1/jobs", "", nil, map[string]string{"tool": "rembg"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{entity.ErrDecode, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", entity.ErrEmptyImage), http.StatusBadRequest},
		{entity.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{entity.ErrJobNotFound, http.StatusNotFound},
		{entity.ErrJobNotReady, http.StatusConflict},
		{entity.ErrDimensionMismatch, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: %w", entity.ErrModelUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, middleware.StatusClientClosedRequest},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
