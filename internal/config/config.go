package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sequence backends understood by the ticket number allocator.
const (
	SequenceBackendPostgres = "postgres"
	SequenceBackendRedis    = "redis"
	SequenceBackendFile     = "file"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Catalog      CatalogConfig
	AI           AIConfig
	Similarity   SimilarityConfig
	Sequence     SequenceConfig
	Assignment   AssignmentConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	ConnectRetries int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level       string
	Format      string
	Output      string
	Service     string
	Development bool
}

// CatalogConfig points at the reference data file and the optional seed
// files used when Postgres is not configured.
type CatalogConfig struct {
	Path            string
	CorpusPath      string
	TechniciansPath string
}

// AIConfig configures the text-understanding backend.
type AIConfig struct {
	BaseURL         string
	APIKey          string
	ExtractModel    string
	ClassifyModel   string
	ResolutionModel string
	MaxTokens       int
	TimeoutSeconds  int
	MaxRetries      int
}

// SimilarityConfig tunes the similarity search cascade.
type SimilarityConfig struct {
	Threshold          float64
	TopN               int
	TierTimeoutSeconds int
	CacheTTLSeconds    int
}

// SequenceConfig selects where per-day ticket counters live.
type SequenceConfig struct {
	Backend  string
	FilePath string
}

// AssignmentConfig holds the escalation target used when no technician fits.
type AssignmentConfig struct {
	FallbackName  string
	FallbackEmail string
}

// NotificationConfig holds notification endpoints and the delivery queue.
type NotificationConfig struct {
	EmailFrom      string
	WebhookURL     string
	WebhookSecret  string
	ManagerEmail   string
	QueueSize      int
	Workers        int
	TimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("SIMILARITY_THRESHOLD", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SIMILARITY_THRESHOLD: %w", err)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be within [0,1], got %v", threshold)
	}

	backend := strings.ToLower(getEnv("SEQUENCE_BACKEND", SequenceBackendPostgres))
	switch backend {
	case SequenceBackendPostgres, SequenceBackendRedis, SequenceBackendFile:
	default:
		return nil, fmt.Errorf("invalid SEQUENCE_BACKEND %q", backend)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-intake-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 120),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectRetries: getEnvAsInt("POSTGRES_CONNECT_RETRIES", 3),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Catalog: CatalogConfig{
			Path:            getEnv("CATALOG_PATH", "data/reference_data.json"),
			CorpusPath:      os.Getenv("CORPUS_SEED_PATH"),
			TechniciansPath: os.Getenv("TECHNICIANS_SEED_PATH"),
		},
		AI: AIConfig{
			BaseURL:         getEnv("AI_BASE_URL", "https://api.anthropic.com/v1/messages"),
			APIKey:          os.Getenv("AI_API_KEY"),
			ExtractModel:    getEnv("AI_EXTRACT_MODEL", "claude-3-5-haiku-latest"),
			ClassifyModel:   getEnv("AI_CLASSIFY_MODEL", "claude-3-5-haiku-latest"),
			ResolutionModel: getEnv("AI_RESOLUTION_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens:       getEnvAsInt("AI_MAX_TOKENS", 2048),
			TimeoutSeconds:  getEnvAsInt("AI_TIMEOUT_SECONDS", 30),
			MaxRetries:      getEnvAsInt("AI_MAX_RETRIES", 2),
		},
		Similarity: SimilarityConfig{
			Threshold:          threshold,
			TopN:               getEnvAsInt("SIMILARITY_TOP_N", 10),
			TierTimeoutSeconds: getEnvAsInt("SIMILARITY_TIER_TIMEOUT_SECONDS", 15),
			CacheTTLSeconds:    getEnvAsInt("SIMILARITY_CACHE_TTL_SECONDS", 0),
		},
		Sequence: SequenceConfig{
			Backend:  backend,
			FilePath: getEnv("SEQUENCE_FILE", "data/ticket_sequence.json"),
		},
		Assignment: AssignmentConfig{
			FallbackName:  getEnv("ASSIGNMENT_FALLBACK_NAME", "IT Manager"),
			FallbackEmail: getEnv("ASSIGNMENT_FALLBACK_EMAIL", "itmanager@company.com"),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret:  os.Getenv("NOTIFY_WEBHOOK_SECRET"),
			ManagerEmail:   getEnv("NOTIFY_MANAGER_EMAIL", "itmanager@company.com"),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 100),
			Workers:        getEnvAsInt("NOTIFY_WORKERS", 2),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
		},
	}

	cfg.Logger.Service = cfg.App.Name
	cfg.Logger.Development = cfg.App.Env == "development"
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// Timeout returns the deadline for one notification delivery.
func (n NotificationConfig) Timeout() time.Duration {
	return seconds(n.TimeoutSeconds)
}

// Timeout returns the per-call deadline for completion requests.
func (a AIConfig) Timeout() time.Duration {
	return seconds(a.TimeoutSeconds)
}

// TierTimeout returns the deadline applied to each cascade tier.
func (s SimilarityConfig) TierTimeout() time.Duration {
	return seconds(s.TierTimeoutSeconds)
}

// CacheTTL returns how long cascade results may be reused; zero disables caching.
func (s SimilarityConfig) CacheTTL() time.Duration {
	return seconds(s.CacheTTLSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
