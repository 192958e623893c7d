package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	BackendBaaS     = "baas"
	BackendPostgres = "postgres"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	LogLevel string
	Backend  string

	BaaSEndpoint        string
	BaaSProjectID       string
	BaaSAPIKey          string
	BaaSDatabaseID      string
	BaaSPhotoBucketID   string
	BaaSPhotoFunctionID string
	BaaSTimeoutSecs     int

	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	SubmitTimeoutSecs int

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	MarketCacheTTLSecs int

	KafkaBrokers []string
	KafkaTopic   string

	SessionFile   string
	SessionSecret string

	OpsPort           string
	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	RefreshSchedule   string
	PhotoPollSchedule string
}

// LoadDotEnv loads the given files into the environment, skipping files
// that do not exist. Variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Backend:  strings.ToLower(getEnv("PERSISTENCE_BACKEND", BackendBaaS)),

		BaaSEndpoint:        os.Getenv("BAAS_ENDPOINT"),
		BaaSProjectID:       os.Getenv("BAAS_PROJECT_ID"),
		BaaSAPIKey:          os.Getenv("BAAS_API_KEY"),
		BaaSDatabaseID:      getEnv("BAAS_DATABASE_ID", "lopperater"),
		BaaSPhotoBucketID:   getEnv("BAAS_PHOTO_BUCKET_ID", "photos"),
		BaaSPhotoFunctionID: getEnv("BAAS_PHOTO_FUNCTION_ID", "faceBlur"),
		BaaSTimeoutSecs:     getEnvInt("BAAS_TIMEOUT_SECS", 10),

		DBURL:             os.Getenv("DB_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 1),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),

		SubmitTimeoutSecs: getEnvInt("SUBMIT_TIMEOUT_SECS", 10),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		MarketCacheTTLSecs: getEnvInt("MARKET_CACHE_TTL_SECS", 300),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "lopperater.ratings"),

		SessionFile:   getEnv("SESSION_FILE", defaultSessionFile()),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		OpsPort:           getEnv("OPS_PORT", "9090"),
		ReadTimeoutSecs:   getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:  getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:   getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		RefreshSchedule:   getEnv("REFRESH_SCHEDULE", "@every 5m"),
		PhotoPollSchedule: getEnv("PHOTO_POLL_SCHEDULE", "@every 30s"),
	}

	switch cfg.Backend {
	case BackendBaaS:
		if cfg.BaaSEndpoint == "" {
			return Config{}, fmt.Errorf("BAAS_ENDPOINT is required")
		}
		if cfg.BaaSProjectID == "" {
			return Config{}, fmt.Errorf("BAAS_PROJECT_ID is required")
		}
		if cfg.BaaSTimeoutSecs <= 0 {
			return Config{}, fmt.Errorf("BAAS_TIMEOUT_SECS must be positive")
		}
	case BackendPostgres:
		if cfg.DBURL == "" {
			return Config{}, fmt.Errorf("DB_URL is required")
		}
		if cfg.DBMaxConns <= 0 {
			return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
		}
		if cfg.DBMinConns < 0 {
			return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
		}
		if cfg.DBMinConns > cfg.DBMaxConns {
			return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
		}
		if cfg.DBStatementCache < 0 {
			return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
		}
	default:
		return Config{}, fmt.Errorf("PERSISTENCE_BACKEND must be %q or %q, got %q", BackendBaaS, BackendPostgres, cfg.Backend)
	}

	if cfg.SubmitTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("SUBMIT_TIMEOUT_SECS must be positive")
	}
	if cfg.RedisAddr != "" && cfg.MarketCacheTTLSecs <= 0 {
		return Config{}, fmt.Errorf("MARKET_CACHE_TTL_SECS must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return Config{}, fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.SessionFile == "" {
		return Config{}, fmt.Errorf("SESSION_FILE is required")
	}
	if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
		return Config{}, fmt.Errorf("REFRESH_SCHEDULE is invalid: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.PhotoPollSchedule); err != nil {
		return Config{}, fmt.Errorf("PHOTO_POLL_SCHEDULE is invalid: %w", err)
	}

	return cfg, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lopperater", "session.json")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
