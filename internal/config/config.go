package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Metrics   MetricsConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// MetricsConfig holds the standalone metrics listener configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// TelegramConfig holds the outbound notification channel configuration.
// An empty BotToken disables sends; messages are logged and dropped.
type TelegramConfig struct {
	BotToken    string
	AdminChatID string
	SendTimeout time.Duration
	Workers     int
}

// SchedulerConfig holds the periodic job configuration. Times of day are
// "HH:MM" in server-local time.
type SchedulerConfig struct {
	DailyResetAt   string
	ExpirySweepAt  string
	HighUsageEvery time.Duration
	JobTimeout     time.Duration
	ExpiryWarnDays int
}

// AuthConfig holds admin-surface authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// RateLimitConfig holds request throttling configuration
type RateLimitConfig struct {
	RPS             int
	Burst           int
	RegisterPerHour int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "mirai")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Telegram defaults
	viper.SetDefault("telegram.botToken", "")
	viper.SetDefault("telegram.adminChatID", "")
	viper.SetDefault("telegram.sendTimeout", "10s")
	viper.SetDefault("telegram.workers", 4)

	// Scheduler defaults
	viper.SetDefault("scheduler.dailyResetAt", "00:00")
	viper.SetDefault("scheduler.expirySweepAt", "09:00")
	viper.SetDefault("scheduler.highUsageEvery", "6h")
	viper.SetDefault("scheduler.jobTimeout", "10m")
	viper.SetDefault("scheduler.expiryWarnDays", 3)

	// Auth defaults
	viper.SetDefault("auth.jwtSecret", "")

	// Rate limit defaults
	viper.SetDefault("ratelimit.rps", 10)
	viper.SetDefault("ratelimit.burst", 20)
	viper.SetDefault("ratelimit.registerPerHour", 5)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "mirai-gateway")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")
}
