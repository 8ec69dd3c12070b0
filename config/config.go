package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Log      LogConfig
	Yoco     YocoConfig
	Checkout CheckoutConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional: an empty Addr disables the idempotency cache and
// the service falls back to database constraints alone.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

type LogConfig struct {
	Level string
}

type YocoConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURLs      []string
	HTTPTimeout   time.Duration
}

type CheckoutConfig struct {
	OrderNumberPrefix   string
	DefaultSuccessURL   string
	DefaultCancelURL    string
	DefaultFailureURL   string
	ReconcileStaleAfter time.Duration
	ReconcileBatchSize  int32
}

// Load reads the environment (optionally seeded from .env) into a Config.
// Required settings are validated here so a misconfigured deployment fails
// at startup rather than on the first checkout.
func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	yocoSecretKey := os.Getenv("YOCO_SECRET_KEY")
	if yocoSecretKey == "" {
		return nil, errors.New("YOCO_SECRET_KEY environment variable is required")
	}

	yocoWebhookSecret := os.Getenv("YOCO_WEBHOOK_SECRET")
	if yocoWebhookSecret == "" {
		return nil, errors.New("YOCO_WEBHOOK_SECRET environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "checkout-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getIntEnv("REDIS_DB", 0),
			IdempotencyTTL: getMinutesEnv("REDIS_IDEMPOTENCY_TTL_MINUTES", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Yoco: YocoConfig{
			SecretKey:     yocoSecretKey,
			WebhookSecret: yocoWebhookSecret,
			BaseURLs:      getListEnv("YOCO_API_BASE_URLS"),
			HTTPTimeout:   getSecondsEnv("YOCO_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Checkout: CheckoutConfig{
			OrderNumberPrefix:   getEnv("CHECKOUT_ORDER_NUMBER_PREFIX", "ORD"),
			DefaultSuccessURL:   getEnv("CHECKOUT_DEFAULT_SUCCESS_URL", ""),
			DefaultCancelURL:    getEnv("CHECKOUT_DEFAULT_CANCEL_URL", ""),
			DefaultFailureURL:   getEnv("CHECKOUT_DEFAULT_FAILURE_URL", ""),
			ReconcileStaleAfter: getMinutesEnv("CHECKOUT_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			ReconcileBatchSize:  int32(getIntEnv("CHECKOUT_RECONCILE_BATCH_SIZE", 100)),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
