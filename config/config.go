// Ininicializing common application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Wallpaper WallpaperConfig `mapstructure:"wallpaper"`
	Rembg     RembgConfig     `mapstructure:"rembg"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

type ServerConfig struct {
	AppVersion     string        `mapstructure:"app_version"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Env            string        `mapstructure:"environment"`
	Mode           string        `mapstructure:"mode"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type WallpaperConfig struct {
	Width         int     `mapstructure:"width"`
	Height        int     `mapstructure:"height"`
	BlurRadius    float64 `mapstructure:"blur_radius"`
	DefaultMethod string  `mapstructure:"default_method"`
}

type RembgConfig struct {
	URL          string        `mapstructure:"url"`
	FormField    string        `mapstructure:"form_field"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Threshold    uint8         `mapstructure:"threshold"`
	FeatherSigma float64       `mapstructure:"feather_sigma"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type JobsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

// LoadConfig reads ./config/config.yaml. A missing file is not an error: the
// defaults and IMAGETOOLS_* environment variables still apply.
func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	viperInstance.SetEnvPrefix("imagetools")
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	err := viperInstance.ReadInConfig()

	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.app_version", "dev")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 2*time.Minute)
	v.SetDefault("server.idle_timeout", time.Minute)
	v.SetDefault("server.request_timeout", 90*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("log.level", "info")

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/png", "image/jpeg"})

	v.SetDefault("wallpaper.width", 1200)
	v.SetDefault("wallpaper.height", 2600)
	v.SetDefault("wallpaper.blur_radius", 50.0)
	v.SetDefault("wallpaper.default_method", "blurred")

	v.SetDefault("rembg.url", "")
	v.SetDefault("rembg.form_field", "file")
	v.SetDefault("rembg.timeout", time.Minute)
	v.SetDefault("rembg.threshold", 240)
	v.SetDefault("rembg.feather_sigma", 2.0)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.topic", "image-jobs")
	v.SetDefault("kafka.group_id", "imagetools-processor")

	v.SetDefault("storage.path", "./storage")

	v.SetDefault("jobs.ttl", 24*time.Hour)
	v.SetDefault("jobs.cleanup_schedule", "@every 10m")
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
