package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ds124wfegd/imagetools/config"
	"github.com/ds124wfegd/imagetools/internal/appServer"
	"github.com/ds124wfegd/imagetools/internal/database"
	"github.com/ds124wfegd/imagetools/internal/pkg/processor"
	"github.com/ds124wfegd/imagetools/internal/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}
	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}
	appServer.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tools, resultCache, err := appServer.NewTools(ctx, cfg)
	if err != nil {
		logrus.Fatalf("invalid wallpaper configuration: %s", err.Error())
	}
	defer resultCache.Close()

	jobRepo := database.NewJobRepository(storage.NewFileStorage(cfg.Storage.Path))

	processor.StartImageProcessorConsumer(ctx, processor.ConsumerConfig{
		Brokers: strings.Split(config.GetEnv("KAFKA_BROKERS", strings.Join(cfg.Kafka.Brokers, ",")), ","),
		Topic:   config.GetEnv("KAFKA_TOPIC", cfg.Kafka.Topic),
		GroupID: config.GetEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID),
	}, processor.NewJobProcessor(jobRepo, tools))
}
