package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the subtitle service.
type Config struct {
	Server   ServerConfig
	Jobs     JobsConfig
	Whisper  WhisperConfig
	Storage  StorageConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Minio    MinioConfig
}

type ServerConfig struct {
	Port           int           `mapstructure:"API_PORT"`
	ReadTimeout    time.Duration `mapstructure:"API_READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"API_WRITE_TIMEOUT"`
	RateLimit      int           `mapstructure:"API_RATE_LIMIT"`
	GinMode        string        `mapstructure:"GIN_MODE"`
	MaxUploadBytes int64         `mapstructure:"MAX_UPLOAD_BYTES"`
}

type JobsConfig struct {
	MaxConcurrency int           `mapstructure:"MAX_CONCURRENCY"`
	QueueCapacity  int           `mapstructure:"QUEUE_CAPACITY"`
	Timeout        time.Duration `mapstructure:"JOB_TIMEOUT"`
	Retention      time.Duration `mapstructure:"JOB_RETENTION"`
}

type WhisperConfig struct {
	BinaryPath  string `mapstructure:"WHISPER_PATH"`
	FFProbePath string `mapstructure:"FFPROBE_PATH"`
}

type StorageConfig struct {
	Root string `mapstructure:"STORAGE_ROOT"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"DATABASE_URL"`
}

type RabbitMQConfig struct {
	URL string `mapstructure:"RABBITMQ_URL"`
}

type RedisConfig struct {
	URL string        `mapstructure:"REDIS_URL"`
	TTL time.Duration `mapstructure:"REDIS_RESULT_TTL"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"MINIO_ENDPOINT"`
	AccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	SecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	Bucket    string `mapstructure:"MINIO_BUCKET"`
	UseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
}

// Load reads configuration from environment variables and .env file.
// Optional backends (postgres, redis, rabbitmq, minio) default to off; the
// service runs self-contained on the in-memory store and local disk.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("API_PORT", 8080)
	viper.SetDefault("API_READ_TIMEOUT", "30s")
	viper.SetDefault("API_WRITE_TIMEOUT", "60s")
	viper.SetDefault("API_RATE_LIMIT", 100)
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("MAX_UPLOAD_BYTES", 512<<20)
	viper.SetDefault("MAX_CONCURRENCY", 2)
	viper.SetDefault("QUEUE_CAPACITY", 64)
	viper.SetDefault("JOB_TIMEOUT", "30m")
	viper.SetDefault("JOB_RETENTION", "24h")
	viper.SetDefault("WHISPER_PATH", "whisper")
	viper.SetDefault("FFPROBE_PATH", "ffprobe")
	viper.SetDefault("STORAGE_ROOT", "./data")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_RESULT_TTL", "168h")
	viper.SetDefault("MINIO_ENDPOINT", "")
	viper.SetDefault("MINIO_ACCESS_KEY", "")
	viper.SetDefault("MINIO_SECRET_KEY", "")
	viper.SetDefault("MINIO_BUCKET", "subtitles")
	viper.SetDefault("MINIO_USE_SSL", false)

	// Attempt to read .env file (non-fatal if missing)
	_ = viper.ReadInConfig()

	cfg := &Config{}
	cfg.Server.Port = viper.GetInt("API_PORT")
	cfg.Server.ReadTimeout = viper.GetDuration("API_READ_TIMEOUT")
	cfg.Server.WriteTimeout = viper.GetDuration("API_WRITE_TIMEOUT")
	cfg.Server.RateLimit = viper.GetInt("API_RATE_LIMIT")
	cfg.Server.GinMode = viper.GetString("GIN_MODE")
	cfg.Server.MaxUploadBytes = viper.GetInt64("MAX_UPLOAD_BYTES")
	cfg.Jobs.MaxConcurrency = viper.GetInt("MAX_CONCURRENCY")
	cfg.Jobs.QueueCapacity = viper.GetInt("QUEUE_CAPACITY")
	cfg.Jobs.Timeout = viper.GetDuration("JOB_TIMEOUT")
	cfg.Jobs.Retention = viper.GetDuration("JOB_RETENTION")
	cfg.Whisper.BinaryPath = viper.GetString("WHISPER_PATH")
	cfg.Whisper.FFProbePath = viper.GetString("FFPROBE_PATH")
	cfg.Storage.Root = viper.GetString("STORAGE_ROOT")
	cfg.Database.URL = viper.GetString("DATABASE_URL")
	cfg.RabbitMQ.URL = viper.GetString("RABBITMQ_URL")
	cfg.Redis.URL = viper.GetString("REDIS_URL")
	cfg.Redis.TTL = viper.GetDuration("REDIS_RESULT_TTL")
	cfg.Minio.Endpoint = viper.GetString("MINIO_ENDPOINT")
	cfg.Minio.AccessKey = viper.GetString("MINIO_ACCESS_KEY")
	cfg.Minio.SecretKey = viper.GetString("MINIO_SECRET_KEY")
	cfg.Minio.Bucket = viper.GetString("MINIO_BUCKET")
	cfg.Minio.UseSSL = viper.GetBool("MINIO_USE_SSL")

	return cfg, nil
}
