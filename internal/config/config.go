package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AssetStoreLocal = "local"
	AssetStoreS3    = "s3"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Assets    AssetConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	BaseURL        string
	MetricsPort    string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AssetConfig struct {
	Store      string
	UploadsDir string
	S3         S3Config
}

type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	KeyPrefix     string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

// DSN returns the connection string, preferring DATABASE_URL over the individual settings.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// IsDevelopment reports whether the server runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

// RedisEnabled reports whether a redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func Load() *Config {
	// An explicit env file wins over the working-directory .env read by viper.
	if path := os.Getenv("ENV_PATH"); path != "" {
		if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load env file %s: %v", path, err)
		}
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return fromViper()
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("METRICS_PORT", "9090")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001,http://localhost:3002")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("ASSET_STORE", AssetStoreLocal)
	viper.SetDefault("UPLOADS_DIR", "uploads")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	viper.SetDefault("CACHE_TTL", 30*time.Second)
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			BaseURL:        strings.TrimRight(viper.GetString("BASE_URL"), "/"),
			MetricsPort:    viper.GetString("METRICS_PORT"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Assets: AssetConfig{
			Store:      strings.ToLower(viper.GetString("ASSET_STORE")),
			UploadsDir: viper.GetString("UPLOADS_DIR"),
			S3: S3Config{
				Bucket:        viper.GetString("S3_BUCKET"),
				Region:        viper.GetString("S3_REGION"),
				Endpoint:      viper.GetString("S3_ENDPOINT"),
				PublicBaseURL: strings.TrimRight(viper.GetString("S3_PUBLIC_BASE_URL"), "/"),
				KeyPrefix:     viper.GetString("S3_KEY_PREFIX"),
			},
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Cache: CacheConfig{
			TTL: viper.GetDuration("CACHE_TTL"),
		},
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Assets.Store {
	case AssetStoreLocal:
		if c.Assets.UploadsDir == "" {
			return fmt.Errorf("UPLOADS_DIR is required for the local asset store")
		}
	case AssetStoreS3:
		if c.Assets.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 asset store")
		}
	default:
		return fmt.Errorf("unknown ASSET_STORE %q", c.Assets.Store)
	}
	if c.Database.URL == "" && c.Database.Database == "" {
		return fmt.Errorf("DATABASE_URL or DB_DATABASE must be set")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must allow at least one request per window")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
