package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	Environment        string
	Version            string
	ServiceName        string
	Timezone           string
	JWTSecret          string
	APIAuthSecret      string
	SessionTTLHours    int
	RateLimitPerMinute int
	AllowedOrigins     []string
	ShutdownTimeoutSec int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: mysql (default), postgres or sqlite
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPath      string
	// Redis is optional; an empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// External platform
	PlatformAPIBaseURL    string
	PlatformAPIAuthToken  string
	PlatformWebURL        string
	PlatformEventsURL     string
	PlatformTimeoutSec    int
	RequestCodeTTLMinutes int
	// Outbox dispatcher
	OutboxPollIntervalSec int
	OutboxBatchSize       int
	OutboxMaxRetries      int
	OutboxBaseBackoffSec  int
	OutboxMaxBackoffSec   int
	OutboxRatePerSecond   int
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort            string
		Environment        string
		Version            string
		ServiceName        string
		Timezone           string
		JWTSecret          string
		APIAuthSecret      string
		SessionTTLHours    int
		RateLimitPerMinute int
		AllowedOrigins     []string
		ShutdownTimeoutSec int
	} `json:"app"`
	Gin struct {
		Mode    string
		LogPath string
	} `json:"gin"`
	Database struct {
		Driver      string
		DatabaseURI string
		DBHost      string
		DBPort      string
		DBUser      string
		DBPassword  string
		DBName      string
		DBPath      string
	} `json:"database"`
	Redis struct {
		RedisHost     string
		RedisPort     int
		RedisDB       int
		RedisPassword string
	} `json:"redis"`
	Log struct {
		Level      string
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	} `json:"log"`
	Platform struct {
		APIBaseURL            string
		APIAuthToken          string
		WebURL                string
		EventsURL             string
		TimeoutSec            int
		RequestCodeTTLMinutes int
	} `json:"platform"`
	Outbox struct {
		PollIntervalSec int
		BatchSize       int
		MaxRetries      int
		BaseBackoffSec  int
		MaxBackoffSec   int
		RatePerSecond   int
	} `json:"outbox"`
}

var (
	cfg    AppConfig
	loaded bool

	// ErrMissingSecret is returned when a required secret is not configured.
	ErrMissingSecret = errors.New("JWT_SECRET and API_AUTH_SECRET must be set")
)

// Load loads the application configuration. It should be called once during boot.
func Load() (AppConfig, error) {
	if loaded {
		return cfg, nil
	}

	// Precedence: config/config.json -> defaults -> .env -> environment variable overrides
	var c AppConfig
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &c); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&c)

	// .env never overrides variables already present in the process environment
	_ = godotenv.Load()
	applyEnvOverrides(&c)

	if c.JWTSecret == "" || c.APIAuthSecret == "" {
		return AppConfig{}, ErrMissingSecret
	}

	cfg = c
	loaded = true
	return cfg, nil
}

// Get returns the cached configuration. Load must have succeeded first.
func Get() AppConfig {
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads the grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw fileConfig
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	out.AppPort = raw.App.AppPort
	out.Environment = raw.App.Environment
	out.Version = raw.App.Version
	out.ServiceName = raw.App.ServiceName
	out.Timezone = raw.App.Timezone
	out.JWTSecret = raw.App.JWTSecret
	out.APIAuthSecret = raw.App.APIAuthSecret
	out.SessionTTLHours = raw.App.SessionTTLHours
	out.RateLimitPerMinute = raw.App.RateLimitPerMinute
	out.AllowedOrigins = raw.App.AllowedOrigins
	out.ShutdownTimeoutSec = raw.App.ShutdownTimeoutSec

	out.GinMode = raw.Gin.Mode
	out.GinPath = raw.Gin.LogPath

	out.DBDriver = raw.Database.Driver
	out.DatabaseURI = raw.Database.DatabaseURI
	out.DBHost = raw.Database.DBHost
	out.DBPort = raw.Database.DBPort
	out.DBUser = raw.Database.DBUser
	out.DBPassword = raw.Database.DBPassword
	out.DBName = raw.Database.DBName
	out.DBPath = raw.Database.DBPath

	out.RedisHost = raw.Redis.RedisHost
	out.RedisPort = raw.Redis.RedisPort
	out.RedisDB = raw.Redis.RedisDB
	out.RedisPassword = raw.Redis.RedisPassword

	out.LogLevel = raw.Log.Level
	out.LogPath = raw.Log.Path
	out.LogMaxSizeMB = raw.Log.MaxSizeMB
	out.LogMaxBackups = raw.Log.MaxBackups
	out.LogMaxAgeDays = raw.Log.MaxAgeDays
	out.LogCompress = raw.Log.Compress

	out.PlatformAPIBaseURL = raw.Platform.APIBaseURL
	out.PlatformAPIAuthToken = raw.Platform.APIAuthToken
	out.PlatformWebURL = raw.Platform.WebURL
	out.PlatformEventsURL = raw.Platform.EventsURL
	out.PlatformTimeoutSec = raw.Platform.TimeoutSec
	out.RequestCodeTTLMinutes = raw.Platform.RequestCodeTTLMinutes

	out.OutboxPollIntervalSec = raw.Outbox.PollIntervalSec
	out.OutboxBatchSize = raw.Outbox.BatchSize
	out.OutboxMaxRetries = raw.Outbox.MaxRetries
	out.OutboxBaseBackoffSec = raw.Outbox.BaseBackoffSec
	out.OutboxMaxBackoffSec = raw.Outbox.MaxBackoffSec
	out.OutboxRatePerSecond = raw.Outbox.RatePerSecond
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.ServiceName == "" {
		c.ServiceName = "quest-mock-game"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 24
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.ShutdownTimeoutSec == 0 {
		c.ShutdownTimeoutSec = 30
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBPath == "" {
		c.DBPath = "data/questmock.db"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.PlatformWebURL == "" {
		c.PlatformWebURL = "http://localhost:3000"
	}
	if c.PlatformTimeoutSec == 0 {
		c.PlatformTimeoutSec = 10
	}
	if c.RequestCodeTTLMinutes == 0 {
		c.RequestCodeTTLMinutes = 15
	}
	if c.OutboxPollIntervalSec == 0 {
		c.OutboxPollIntervalSec = 2
	}
	if c.OutboxBatchSize == 0 {
		c.OutboxBatchSize = 50
	}
	if c.OutboxMaxRetries == 0 {
		c.OutboxMaxRetries = 3
	}
	if c.OutboxBaseBackoffSec == 0 {
		c.OutboxBaseBackoffSec = 5
	}
	if c.OutboxMaxBackoffSec == 0 {
		c.OutboxMaxBackoffSec = 300
	}
	if c.OutboxRatePerSecond == 0 {
		c.OutboxRatePerSecond = 10
	}
}

// applyEnvOverrides overrides config from environment variables when provided.
func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("APP_PORT", getEnv("PORT", c.AppPort))
	c.Environment = getEnv("APP_ENV", getEnv("NODE_ENV", c.Environment))
	c.Version = getEnv("APP_VERSION", c.Version)
	c.Timezone = getEnv("APP_TIMEZONE", c.Timezone)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.APIAuthSecret = getEnv("API_AUTH_SECRET", c.APIAuthSecret)
	c.SessionTTLHours = mustParseInt(getEnv("SESSION_TTL_HOURS", ""), c.SessionTTLHours)
	c.RateLimitPerMinute = mustParseInt(getEnv("RATE_LIMIT_PER_MINUTE", ""), c.RateLimitPerMinute)
	c.AllowedOrigins = readListEnv("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.ShutdownTimeoutSec = mustParseInt(getEnv("SHUTDOWN_TIMEOUT_SEC", ""), c.ShutdownTimeoutSec)

	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.GinPath = getEnv("GIN_LOG_PATH", c.GinPath)

	c.DBDriver = strings.ToLower(getEnv("DB_DRIVER", c.DBDriver))
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBPath = getEnv("DB_PATH", c.DBPath)

	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = mustParseInt(getEnv("REDIS_PORT", ""), c.RedisPort)
	c.RedisDB = mustParseInt(getEnv("REDIS_DB", ""), c.RedisDB)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.LogMaxSizeMB = mustParseInt(getEnv("LOG_MAX_SIZE_MB", ""), c.LogMaxSizeMB)
	c.LogMaxBackups = mustParseInt(getEnv("LOG_MAX_BACKUPS", ""), c.LogMaxBackups)
	c.LogMaxAgeDays = mustParseInt(getEnv("LOG_MAX_AGE_DAYS", ""), c.LogMaxAgeDays)
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "1" || strings.EqualFold(v, "true")
	}

	c.PlatformAPIBaseURL = getEnv("PLATFORM_API_BASE_URL", c.PlatformAPIBaseURL)
	c.PlatformAPIAuthToken = getEnv("PLATFORM_API_AUTH_TOKEN", c.PlatformAPIAuthToken)
	c.PlatformWebURL = getEnv("PLATFORM_WEB_URL", c.PlatformWebURL)
	c.PlatformEventsURL = getEnv("PLATFORM_EVENTS_URL", c.PlatformEventsURL)
	c.PlatformTimeoutSec = mustParseInt(getEnv("PLATFORM_TIMEOUT_SEC", ""), c.PlatformTimeoutSec)
	c.RequestCodeTTLMinutes = mustParseInt(getEnv("REQUEST_CODE_TTL_MINUTES", ""), c.RequestCodeTTLMinutes)

	c.OutboxPollIntervalSec = mustParseInt(getEnv("OUTBOX_POLL_INTERVAL_SEC", ""), c.OutboxPollIntervalSec)
	c.OutboxBatchSize = mustParseInt(getEnv("OUTBOX_BATCH_SIZE", ""), c.OutboxBatchSize)
	c.OutboxMaxRetries = mustParseInt(getEnv("OUTBOX_MAX_RETRIES", ""), c.OutboxMaxRetries)
	c.OutboxBaseBackoffSec = mustParseInt(getEnv("OUTBOX_BASE_BACKOFF_SEC", ""), c.OutboxBaseBackoffSec)
	c.OutboxMaxBackoffSec = mustParseInt(getEnv("OUTBOX_MAX_BACKOFF_SEC", ""), c.OutboxMaxBackoffSec)
	c.OutboxRatePerSecond = mustParseInt(getEnv("OUTBOX_RATE_PER_SECOND", ""), c.OutboxRatePerSecond)
}

func mustParseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return v
}

func readListEnv(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			res = append(res, s)
		}
	}
	if len(res) == 0 {
		return fallback
	}
	return res
}
