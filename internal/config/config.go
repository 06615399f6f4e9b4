package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevelopmentJWTSecret is the fallback signing secret; it is rejected in production.
const DevelopmentJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
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
	ProxyHeader           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	RunMigrations     bool
	ConnMaxIdleSec    int32
	ConnMaxLifeSec    int32
	ConnectTimeoutSec int32
	// ApplicationName is reported to the server as application_name.
	ApplicationName string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret string
	// ResetSecret salts reset-token hashes; empty means JWTSecret is reused.
	ResetSecret         string
	StoreTimeoutSeconds int
	MaxConcurrentHashes int
}

// LimitPolicy is the env representation of one named limiter.
type LimitPolicy struct {
	Points        int
	WindowSeconds int
	BlockSeconds  int
}

// RateLimitConfig selects the counter store and limiter budgets.
type RateLimitConfig struct {
	// Store is "redis" or "memory".
	Store   string
	Login   LimitPolicy
	General LimitPolicy
}

// NotificationConfig controls how reset notifications leave the service.
type NotificationConfig struct {
	EmailFrom    string
	ResetURL     string
	KafkaBrokers []string
	KafkaTopic   string
	// QueueSize bounds notifications waiting for delivery.
	QueueSize int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "4001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ProxyHeader:           os.Getenv("HTTP_PROXY_HEADER"),
		},
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			MaxConns:          int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:     getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:    int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:    int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectTimeoutSec: int32(getEnvAsInt("POSTGRES_CONNECT_TIMEOUT_SECONDS", 5)),
			ApplicationName:   getEnv("APP_NAME", "auth-service"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("AUTH_JWT_SECRET", DevelopmentJWTSecret),
			ResetSecret:         os.Getenv("AUTH_RESET_SECRET"),
			StoreTimeoutSeconds: getEnvAsInt("AUTH_STORE_TIMEOUT_SECONDS", 5),
			MaxConcurrentHashes: getEnvAsInt("AUTH_MAX_CONCURRENT_HASHES", 8),
		},
		RateLimit: RateLimitConfig{
			Store: strings.ToLower(getEnv("RATE_LIMIT_STORE", "redis")),
			Login: LimitPolicy{
				Points:        getEnvAsInt("RATE_LIMIT_LOGIN_POINTS", 5),
				WindowSeconds: getEnvAsInt("RATE_LIMIT_LOGIN_WINDOW_SECONDS", 60),
				BlockSeconds:  getEnvAsInt("RATE_LIMIT_LOGIN_BLOCK_SECONDS", 900),
			},
			General: LimitPolicy{
				Points:        getEnvAsInt("RATE_LIMIT_GENERAL_POINTS", 100),
				WindowSeconds: getEnvAsInt("RATE_LIMIT_GENERAL_WINDOW_SECONDS", 60),
				BlockSeconds:  getEnvAsInt("RATE_LIMIT_GENERAL_BLOCK_SECONDS", 0),
			},
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			ResetURL:     getEnv("NOTIFY_RESET_URL", "http://localhost:3000/reset-password"),
			KafkaBrokers: getEnvAsList("NOTIFY_KAFKA_BROKERS"),
			KafkaTopic:   getEnv("NOTIFY_KAFKA_TOPIC", "auth.notifications"),
			QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would weaken the credential guarantees.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if c.IsProduction() && c.Auth.JWTSecret == DevelopmentJWTSecret {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	switch c.RateLimit.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE %q", c.RateLimit.Store)
	}
	for name, p := range map[string]LimitPolicy{"login": c.RateLimit.Login, "general": c.RateLimit.General} {
		if p.Points <= 0 || p.WindowSeconds <= 0 || p.BlockSeconds < 0 {
			return fmt.Errorf("invalid %s rate limit policy", name)
		}
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
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

// StoreTimeout bounds every database, counter-store and notifier call.
func (a AuthConfig) StoreTimeout() time.Duration {
	if a.StoreTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.StoreTimeoutSeconds) * time.Second
}

// ResetHashSecret returns the secret used for reset-token hashing.
func (a AuthConfig) ResetHashSecret() string {
	if a.ResetSecret != "" {
		return a.ResetSecret
	}
	return a.JWTSecret
}

// Window returns the policy window as a duration.
func (p LimitPolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Block returns the policy block duration; zero means no extended block.
func (p LimitPolicy) Block() time.Duration {
	return time.Duration(p.BlockSeconds) * time.Second
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
