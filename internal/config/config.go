package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Sync      SyncConfig
	Agent     AgentConfig
}

type AppConfig struct {
	Name  string
	Env   string
	Port  string
	Debug bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Timezone string
}

type AuthConfig struct {
	Secret      string
	TokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

// SyncConfig controls the push ingestion pipeline on the server side.
// PostingMode is an operational rollout switch: "shadow" records posting
// failures without failing the accepted transaction, "enforce" propagates
// them.
type SyncConfig struct {
	PostingMode  string
	MaxBatchSize int
}

// AgentConfig configures the POS agent binary: where the local store lives,
// which scope it serves and how it reaches the server.
type AgentConfig struct {
	StorePath     string
	CompanyID     string
	OutletID      string
	ServerURL     string
	APIToken      string
	DrainInterval time.Duration
	PullInterval  time.Duration
	RetryBase     time.Duration
	RetryMax      time.Duration
	MaxAttempts   int
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	// Set defaults
	viper.SetDefault("APP_NAME", "kasirsync")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "kasirsync")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "Asia/Jakarta")
	viper.SetDefault("AUTH_SECRET", "change-this-secret-in-production")
	viper.SetDefault("AUTH_TOKEN_EXPIRY_HOURS", 720)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("SYNC_POSTING_MODE", "shadow")
	viper.SetDefault("SYNC_MAX_BATCH_SIZE", 50)
	viper.SetDefault("AGENT_STORE_PATH", "./kasirsync.db")
	viper.SetDefault("AGENT_SERVER_URL", "http://localhost:8080")
	viper.SetDefault("AGENT_DRAIN_INTERVAL_SECONDS", 5)
	viper.SetDefault("AGENT_PULL_INTERVAL_SECONDS", 300)
	viper.SetDefault("AGENT_RETRY_BASE_SECONDS", 2)
	viper.SetDefault("AGENT_RETRY_MAX_SECONDS", 300)
	viper.SetDefault("AGENT_MAX_ATTEMPTS", 10)

	return &Config{
		App: AppConfig{
			Name:  viper.GetString("APP_NAME"),
			Env:   viper.GetString("APP_ENV"),
			Port:  viper.GetString("APP_PORT"),
			Debug: viper.GetBool("APP_DEBUG"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
			Timezone: viper.GetString("DB_TIMEZONE"),
		},
		Auth: AuthConfig{
			Secret:      viper.GetString("AUTH_SECRET"),
			TokenExpiry: time.Duration(viper.GetInt("AUTH_TOKEN_EXPIRY_HOURS")) * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
		Sync: SyncConfig{
			PostingMode:  viper.GetString("SYNC_POSTING_MODE"),
			MaxBatchSize: viper.GetInt("SYNC_MAX_BATCH_SIZE"),
		},
		Agent: AgentConfig{
			StorePath:     viper.GetString("AGENT_STORE_PATH"),
			CompanyID:     viper.GetString("AGENT_COMPANY_ID"),
			OutletID:      viper.GetString("AGENT_OUTLET_ID"),
			ServerURL:     viper.GetString("AGENT_SERVER_URL"),
			APIToken:      viper.GetString("AGENT_API_TOKEN"),
			DrainInterval: time.Duration(viper.GetInt("AGENT_DRAIN_INTERVAL_SECONDS")) * time.Second,
			PullInterval:  time.Duration(viper.GetInt("AGENT_PULL_INTERVAL_SECONDS")) * time.Second,
			RetryBase:     time.Duration(viper.GetInt("AGENT_RETRY_BASE_SECONDS")) * time.Second,
			RetryMax:      time.Duration(viper.GetInt("AGENT_RETRY_MAX_SECONDS")) * time.Second,
			MaxAttempts:   viper.GetInt("AGENT_MAX_ATTEMPTS"),
		},
	}
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}
