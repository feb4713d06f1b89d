package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the counseling service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	MaxRounds       int
	ClarifyDepth    int
	PolicyMode      string
	ReceiveTimeout  time.Duration
	DefaultLanguage string

	OracleMode    string
	OracleHTTPURL string

	ProviderLookupURL string
	ProviderCacheMode string
	ProviderCacheTTL  time.Duration
	RedisAddr         string

	DatabaseURL     string
	SupabaseURL     string
	SupabaseAnonKey string

	SMTPAddr     string
	SMTPFrom     string
	SMTPPassword string
	SupportEmail string

	LogFile           string
	SweepInterval     time.Duration
	SupportInactivity time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "chia"),
		AllowAnyOrigin:           false,
		MaxRounds:                12,
		ClarifyDepth:             3,
		PolicyMode:               envOrDefault("APP_POLICY", "linear"),
		DefaultLanguage:          envOrDefault("APP_DEFAULT_LANGUAGE", "English"),
		OracleMode:               envOrDefault("ORACLE_MODE", "auto"),
		OracleHTTPURL:            envTrimmed("ORACLE_HTTP_URL"),
		ProviderLookupURL:        envTrimmed("PROVIDER_LOOKUP_URL"),
		ProviderCacheMode:        envOrDefault("PROVIDER_CACHE", "auto"),
		ProviderCacheTTL:         24 * time.Hour,
		RedisAddr:                envTrimmed("REDIS_ADDR"),
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		SupabaseURL:              envTrimmed("SUPABASE_URL"),
		SupabaseAnonKey:          envTrimmed("SUPABASE_ANON_KEY"),
		SMTPAddr:                 envOrDefault("SMTP_ADDR", "smtp.gmail.com:465"),
		SMTPFrom:                 envTrimmed("SMTP_FROM"),
		SMTPPassword:             envTrimmed("SMTP_PASSWORD"),
		SupportEmail:             envTrimmed("SUPPORT_EMAIL"),
		LogFile:                  envTrimmed("APP_LOG_FILE"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		ReceiveTimeout:           0,
		SweepInterval:            5 * time.Minute,
		SupportInactivity:        5 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReceiveTimeout, err = durationFromEnv("APP_RECEIVE_TIMEOUT", cfg.ReceiveTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProviderCacheTTL, err = durationFromEnv("PROVIDER_CACHE_TTL", cfg.ProviderCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("APP_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SupportInactivity, err = durationFromEnv("APP_SUPPORT_INACTIVITY", cfg.SupportInactivity)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRounds, err = intFromEnv("APP_MAX_ROUNDS", cfg.MaxRounds)
	if err != nil {
		return Config{}, err
	}
	cfg.ClarifyDepth, err = intFromEnv("APP_CLARIFY_DEPTH", cfg.ClarifyDepth)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.MaxRounds < 3 {
		return Config{}, fmt.Errorf("APP_MAX_ROUNDS must be at least 3 (patient, assistant, counselor)")
	}
	if cfg.ClarifyDepth < 1 {
		return Config{}, fmt.Errorf("APP_CLARIFY_DEPTH must be positive")
	}
	switch cfg.PolicyMode {
	case "linear", "mesh":
	default:
		return Config{}, fmt.Errorf("APP_POLICY must be linear or mesh, got %q", cfg.PolicyMode)
	}
	switch cfg.ProviderCacheMode {
	case "auto", "redis", "memory":
	default:
		return Config{}, fmt.Errorf("PROVIDER_CACHE must be auto, redis or memory, got %q", cfg.ProviderCacheMode)
	}
	if cfg.ProviderCacheMode == "redis" && cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("PROVIDER_CACHE=redis requires REDIS_ADDR")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
