// launching the server, storage, redis cache, kafka producer and cleanup worker
package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/imagetools/config"
	"github.com/ds124wfegd/imagetools/internal/database"
	"github.com/ds124wfegd/imagetools/internal/entity"
	"github.com/ds124wfegd/imagetools/internal/pkg/cache"
	"github.com/ds124wfegd/imagetools/internal/pkg/imageio"
	"github.com/ds124wfegd/imagetools/internal/pkg/kafka"
	"github.com/ds124wfegd/imagetools/internal/pkg/processor"
	"github.com/ds124wfegd/imagetools/internal/pkg/rembg"
	"github.com/ds124wfegd/imagetools/internal/pkg/storage"
	"github.com/ds124wfegd/imagetools/internal/pkg/wallpaper"
	"github.com/ds124wfegd/imagetools/internal/service"
	"github.com/ds124wfegd/imagetools/internal/transport"
	"github.com/ds124wfegd/imagetools/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetupLogger configures the global logrus logger from the config.
func SetupLogger(cfg *config.Config) {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.WithField("level", cfg.Log.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// NewRemover picks the HTTP model client when a URL is configured and the
// local luminance remover otherwise.
func NewRemover(cfg *config.Config) rembg.Remover {
	if cfg.Rembg.URL != "" {
		logrus.WithField("url", cfg.Rembg.URL).Info("Using rembg HTTP model")
		return rembg.NewHTTPRemover(cfg.Rembg.URL, cfg.Rembg.FormField, cfg.Rembg.Timeout)
	}
	logrus.Warn("rembg.url is empty, using threshold background remover")
	return rembg.NewThresholdRemover(cfg.Rembg.Threshold, cfg.Rembg.FeatherSigma)
}

// NewResultCache connects to Redis when enabled. An unreachable server
// degrades to a cache that never hits.
func NewResultCache(ctx context.Context, cfg *config.Config) cache.ResultCache {
	if !cfg.Redis.Enabled {
		return cache.NewNoopCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logrus.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unavailable, result cache disabled")
		_ = client.Close()
		return cache.NewNoopCache()
	}

	logrus.WithField("addr", cfg.Redis.Addr).Info("Connected to Redis")
	return cache.NewRedisCache(client, cfg.Redis.TTL)
}

// NewTools builds the tool service shared by the HTTP server and the processor.
func NewTools(ctx context.Context, cfg *config.Config) (service.ToolService, cache.ResultCache, error) {
	defaultMethod, err := entity.ParseMethod(cfg.Wallpaper.DefaultMethod)
	if err != nil {
		return nil, nil, err
	}

	resultCache := NewResultCache(ctx, cfg)
	composer := wallpaper.NewComposer(cfg.Wallpaper.Width, cfg.Wallpaper.Height, cfg.Wallpaper.BlurRadius)

	return service.NewToolService(NewRemover(cfg), composer, resultCache, defaultMethod), resultCache, nil
}

func NewServer(cfg *config.Config) {
	SetupLogger(cfg)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tools, resultCache, err := NewTools(ctx, cfg)
	if err != nil {
		logrus.Fatalf("invalid wallpaper configuration: %s", err.Error())
	}
	defer resultCache.Close()

	fileStorage := storage.NewFileStorage(cfg.Storage.Path)
	jobRepo := database.NewJobRepository(fileStorage)
	jobProcessor := processor.NewJobProcessor(jobRepo, tools)

	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, jobProcessor.HandleMessage)
	defer kafkaProducer.Close()

	jobService := service.NewJobService(jobRepo, kafkaProducer)

	cleanupWorker := worker.NewJobCleanupWorker(jobService, cfg.Jobs.CleanupSchedule, cfg.Jobs.TTL)
	go func() {
		if err := cleanupWorker.Start(ctx); err != nil {
			logrus.WithError(err).Error("Job cleanup worker failed to start")
		}
	}()

	validator := imageio.NewValidator(cfg.Upload.MaxSize, cfg.Upload.AllowedTypes)
	toolHandler := transport.NewToolHandler(tools, validator)
	jobHandler := transport.NewJobHandler(jobService, validator)

	router := transport.InitRoutes(transport.RouterConfig{
		MaxUploadSize:  validator.MaxSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		Version:        cfg.Server.AppVersion,
	}, toolHandler, jobHandler)

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, router); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"addr":    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		"version": cfg.Server.AppVersion,
		"env":     cfg.Server.Env,
	}).Info("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Info("App Shutting Down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
