package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/imagetools/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	MaxUploadSize  int64
	RequestTimeout time.Duration
	Version        string
}

func InitRoutes(cfg RouterConfig, toolHandler *ToolHandler, jobHandler *JobHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	if cfg.MaxUploadSize > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadSize
		// room for the multipart envelope around the file
		router.Use(middleware.BodyLimit(cfg.MaxUploadSize + 1<<20))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "imagetools",
			"version": cfg.Version,
		})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		api.POST("/background/remove", toolHandler.RemoveBackground)
		api.GET("/wallpaper/methods", toolHandler.Methods)
		api.POST("/wallpaper", toolHandler.ComposeWallpaper)

		if jobHandler != nil {
			api.POST("/jobs", jobHandler.CreateJob)
			api.GET("/jobs/:id", jobHandler.GetJob)
			api.GET("/jobs/:id/result", jobHandler.GetResult)
			api.DELETE("/jobs/:id", jobHandler.DeleteJob)
		}
	}

	return router
}
