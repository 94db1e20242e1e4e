package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Quality  QualityConfig
	Training TrainingConfig
}

type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port pair for the Redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig controls encoder, level and the optional rotating file sink.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// QualityConfig governs the scoring engine and recommendation caching.
type QualityConfig struct {
	ModelDir     string
	ModelFile    string
	TopK         int
	CacheEnabled bool
	CacheTTL     time.Duration
}

// TrainingConfig holds optimiser hyperparameters and the background worker setup.
type TrainingConfig struct {
	Enabled          bool
	Epochs           int
	BatchSize        int
	LearningRate     float64
	L2               float64
	Dropout          float64
	Patience         int
	Seed             int64
	SyntheticSamples int
	DatasetLimit     int
	Workers          int
	Retries          int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("TRAINING_DB_ENABLED"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}

	cfg.Quality = QualityConfig{
		ModelDir:     v.GetString("QUALITY_MODEL_DIR"),
		ModelFile:    v.GetString("QUALITY_MODEL_FILE"),
		TopK:         v.GetInt("QUALITY_TOP_K"),
		CacheEnabled: v.GetBool("QUALITY_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("QUALITY_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Training = TrainingConfig{
		Enabled:          v.GetBool("TRAINING_ENABLED"),
		Epochs:           v.GetInt("TRAINING_EPOCHS"),
		BatchSize:        v.GetInt("TRAINING_BATCH_SIZE"),
		LearningRate:     v.GetFloat64("TRAINING_LEARNING_RATE"),
		L2:               v.GetFloat64("TRAINING_L2"),
		Dropout:          v.GetFloat64("TRAINING_DROPOUT"),
		Patience:         v.GetInt("TRAINING_PATIENCE"),
		Seed:             v.GetInt64("TRAINING_SEED"),
		SyntheticSamples: v.GetInt("TRAINING_SYNTHETIC_SAMPLES"),
		DatasetLimit:     v.GetInt("TRAINING_DATASET_LIMIT"),
		Workers:          v.GetInt("TRAINING_WORKERS"),
		Retries:          v.GetInt("TRAINING_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("TRAINING_DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)

	v.SetDefault("QUALITY_MODEL_DIR", "./models")
	v.SetDefault("QUALITY_MODEL_FILE", "schedule_quality.json")
	v.SetDefault("QUALITY_TOP_K", 5)
	v.SetDefault("QUALITY_CACHE_ENABLED", false)
	v.SetDefault("QUALITY_CACHE_TTL", "10m")

	v.SetDefault("TRAINING_ENABLED", false)
	v.SetDefault("TRAINING_EPOCHS", 50)
	v.SetDefault("TRAINING_BATCH_SIZE", 32)
	v.SetDefault("TRAINING_LEARNING_RATE", 0.001)
	v.SetDefault("TRAINING_L2", 0.0001)
	v.SetDefault("TRAINING_DROPOUT", 0.2)
	v.SetDefault("TRAINING_PATIENCE", 10)
	v.SetDefault("TRAINING_SEED", 42)
	v.SetDefault("TRAINING_SYNTHETIC_SAMPLES", 1000)
	v.SetDefault("TRAINING_DATASET_LIMIT", 10000)
	v.SetDefault("TRAINING_WORKERS", 1)
	v.SetDefault("TRAINING_RETRIES", 1)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
