package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration for the relay.
type Config struct {
	// Required
	Port string

	// Optional, defaulted
	GoEnv         string
	LogLevel      string
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Auth - AuthMode "mock" trusts the client-supplied user_id outright,
	// AuthMode "jwt" requires a bearer token validated against AUTH0_DOMAIN's JWKS.
	AuthMode       string
	Auth0Domain    string
	Auth0Audience  string
	AllowedOrigins string

	// Rate limits
	RateLimitApiGlobal   string
	RateLimitApiPublic   string
	RateLimitApiRooms    string
	RateLimitApiMessages string
	RateLimitWsIp        string
	RateLimitWsUser      string

	// Room behavior
	TypingExpiry        int // seconds
	WaitingPoolTimeout  int // seconds
	ClientSendQueueSize int
	KeepaliveInterval   int // seconds
	CodeLength          int
	CodeAlphabet        string

	// Tracing - empty OtelCollectorAddr disables tracing entirely.
	OtelCollectorAddr string
	OtelServiceName   string
}

// ValidateEnv validates environment variables and returns a Config.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.AuthMode = getEnvOrDefault("AUTH_MODE", "mock")
	cfg.Auth0Domain = os.Getenv("AUTH0_DOMAIN")
	cfg.Auth0Audience = os.Getenv("AUTH0_AUDIENCE")
	if cfg.AuthMode == "jwt" {
		if cfg.Auth0Domain == "" {
			errs = append(errs, "AUTH0_DOMAIN is required when AUTH_MODE=jwt")
		}
		if cfg.Auth0Audience == "" {
			errs = append(errs, "AUTH0_AUDIENCE is required when AUTH_MODE=jwt")
		}
	} else if cfg.AuthMode != "mock" {
		errs = append(errs, fmt.Sprintf("AUTH_MODE must be 'mock' or 'jwt' (got '%s')", cfg.AuthMode))
	}
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.RateLimitApiGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitApiPublic = getEnvOrDefault("RATE_LIMIT_API_PUBLIC", "100-M")
	cfg.RateLimitApiRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitApiMessages = getEnvOrDefault("RATE_LIMIT_API_MESSAGES", "500-M")
	cfg.RateLimitWsIp = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	cfg.TypingExpiry = getEnvIntOrDefault("TYPING_EXPIRY_SECONDS", 5)
	cfg.WaitingPoolTimeout = getEnvIntOrDefault("WAITING_POOL_TIMEOUT_SECONDS", 60)
	cfg.ClientSendQueueSize = getEnvIntOrDefault("CLIENT_SEND_QUEUE_SIZE", 256)
	cfg.KeepaliveInterval = getEnvIntOrDefault("KEEPALIVE_INTERVAL_SECONDS", 30)
	cfg.CodeLength = getEnvIntOrDefault("GROUP_CODE_LENGTH", 6)
	cfg.CodeAlphabet = getEnvOrDefault("GROUP_CODE_ALPHABET", "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

	cfg.OtelCollectorAddr = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OtelServiceName = getEnvOrDefault("OTEL_SERVICE_NAME", "yaps-relay")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"auth_mode", cfg.AuthMode,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"typing_expiry_seconds", cfg.TypingExpiry,
		"waiting_pool_timeout_seconds", cfg.WaitingPoolTimeout,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}
