package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Trust modes for the credential service.
const (
	TrustModeStrict = "strict"
	TrustModeMock   = "mock"
)

// Session backends.
const (
	SessionBackendRedis  = "redis"
	SessionBackendFile   = "file"
	SessionBackendMemory = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Session      SessionConfig
	Storage      StorageConfig
	Links        LinkConfig
	Upload       UploadConfig
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
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	VerificationTTLMinutes int
	BcryptCost             int
	TrustMode              string
	BootstrapOpsEmail      string
	BootstrapOpsPassword   string
	BootstrapOpsName       string
}

// SessionConfig selects where identities are persisted between requests.
type SessionConfig struct {
	Backend    string
	Dir        string
	TTLMinutes int
}

// StorageConfig points at the S3-compatible bucket holding file content.
// An empty Endpoint selects the in-memory store.
type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	CreateBucket bool
}

// LinkConfig controls download grant issuance.
type LinkConfig struct {
	TTLMinutes       int
	RetentionMinutes int
	PublicBaseURL    string
	RequireVerified  bool
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes        int64
	MaxRequestBytes int64
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom             string
	ResendAPIKey          string
	WebhookURL            string
	WebhookSecret         string
	WebhookTimeoutSeconds int
}

// WebhookTimeout bounds a single webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "secureshare"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			VerificationTTLMinutes: getEnvAsInt("AUTH_VERIFICATION_TTL_MINUTES", 24*60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			TrustMode:              strings.ToLower(getEnv("AUTH_TRUST_MODE", TrustModeStrict)),
			BootstrapOpsEmail:      os.Getenv("AUTH_BOOTSTRAP_OPS_EMAIL"),
			BootstrapOpsPassword:   os.Getenv("AUTH_BOOTSTRAP_OPS_PASSWORD"),
			BootstrapOpsName:       getEnv("AUTH_BOOTSTRAP_OPS_NAME", "Operations"),
		},
		Session: SessionConfig{
			Backend:    strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendRedis)),
			Dir:        getEnv("SESSION_DIR", ".sessions"),
			TTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 0),
		},
		Storage: StorageConfig{
			Endpoint:     os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:    os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:    os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:       getEnv("STORAGE_BUCKET", "secureshare"),
			CreateBucket: getEnvAsBool("STORAGE_CREATE_BUCKET", true),
		},
		Links: LinkConfig{
			TTLMinutes:       getEnvAsInt("LINK_TTL_MINUTES", 60),
			RetentionMinutes: getEnvAsInt("LINK_RETENTION_MINUTES", 24*60),
			PublicBaseURL:    strings.TrimRight(getEnv("LINK_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			RequireVerified:  getEnvAsBool("LINK_REQUIRE_VERIFIED", false),
		},
		Upload: UploadConfig{
			MaxBytes:        int64(getEnvAsInt("UPLOAD_MAX_BYTES", 100<<20)),
			MaxRequestBytes: int64(getEnvAsInt("UPLOAD_MAX_REQUEST_BYTES", 512<<20)),
		},
		Notification: NotificationConfig{
			EmailFrom:             getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			ResendAPIKey:          os.Getenv("NOTIFY_RESEND_API_KEY"),
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret:         os.Getenv("NOTIFY_WEBHOOK_SECRET"),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.TrustMode {
	case TrustModeStrict, TrustModeMock:
	default:
		return fmt.Errorf("invalid AUTH_TRUST_MODE %q", c.Auth.TrustMode)
	}
	switch c.Session.Backend {
	case SessionBackendRedis, SessionBackendFile, SessionBackendMemory:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q", c.Session.Backend)
	}
	if c.Links.TTLMinutes <= 0 {
		return fmt.Errorf("LINK_TTL_MINUTES must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the JWT lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// VerificationTTL returns how long an email verification token stays valid.
func (a AuthConfig) VerificationTTL() time.Duration {
	return time.Duration(a.VerificationTTLMinutes) * time.Minute
}

// MockTrust reports whether credentials are accepted without verification.
func (a AuthConfig) MockTrust() bool {
	return a.TrustMode == TrustModeMock
}

// TTL returns the session record lifetime; zero means no expiry.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return 0
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

// TTL returns the lifetime of a download grant.
func (l LinkConfig) TTL() time.Duration {
	return time.Duration(l.TTLMinutes) * time.Minute
}

// Retention returns how long a grant record is kept after it expires.
func (l LinkConfig) Retention() time.Duration {
	if l.RetentionMinutes <= 0 {
		return 0
	}
	return time.Duration(l.RetentionMinutes) * time.Minute
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
