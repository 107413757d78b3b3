package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"forum"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret  string        `envconfig:"JWT_SECRET" default:"secret"`
	JWTTTL     time.Duration `envconfig:"JWT_TTL" default:"72h"`
	ServerPort string        `envconfig:"SERVER_PORT" default:"8080"`

	// Redis serves two logical databases: the cache and the task broker.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisCacheDB  int    `envconfig:"REDIS_CACHE_DB" default:"0"`
	RedisBrokerDB int    `envconfig:"REDIS_BROKER_DB" default:"1"`

	MediaRoot       string `envconfig:"MEDIA_ROOT" default:"media"`
	MediaURL        string `envconfig:"MEDIA_URL" default:"/media/"`
	DefaultAvatar   string `envconfig:"DEFAULT_USER_AVATAR" default:"default-user-icon.jpg"`
	DefaultTimezone string `envconfig:"DEFAULT_USER_TIMEZONE" default:"UTC"`

	SettingsCacheTTL time.Duration `envconfig:"SETTINGS_CACHE_TTL" default:"1h"`
	StatsCacheTTL    time.Duration `envconfig:"STATS_CACHE_TTL" default:"1h"`
	StatsRefreshSpec string        `envconfig:"STATS_REFRESH_SPEC" default:"@every 30m"`

	CropWorkers      int  `envconfig:"CROP_WORKERS" default:"4"`
	CropWorkerInline bool `envconfig:"CROP_WORKER_INLINE" default:"true"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.CropWorkers <= 0 {
		return errors.New("CROP_WORKERS must be > 0")
	}
	if c.RedisCacheDB == c.RedisBrokerDB {
		return errors.New("REDIS_CACHE_DB and REDIS_BROKER_DB must differ")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_USER_TIMEZONE: %w", err)
	}
	return nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}
