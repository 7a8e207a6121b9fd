package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthCodeTTL     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	TokenBytes      int
	CleanupInterval time.Duration

	SessionTokenTTL time.Duration

	MenuCacheTTL   time.Duration
	MenuLocales    []string
	MenuConfigPath string

	DefaultClientID     string
	DefaultClientSecret string
	DefaultRedirectURI  string
	AdminEmail          string
	AdminPassword       string

	ServiceName       string
	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		AuthCodeTTL:          getDuration("AUTH_CODE_TTL", 10*time.Minute),
		AccessTokenTTL:       getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:      getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		TokenBytes:           getInt("TOKEN_BYTES", 32),
		CleanupInterval:      getDuration("CLEANUP_INTERVAL", time.Hour),
		SessionTokenTTL:      getDuration("SESSION_TOKEN_TTL", time.Hour),
		MenuCacheTTL:         getDuration("MENU_CACHE_TTL", 53*time.Minute),
		MenuLocales:          getList("MENU_LOCALES", []string{"uz", "oz", "ru", "en"}),
		MenuConfigPath:       os.Getenv("MENU_CONFIG_PATH"),
		DefaultClientID:      os.Getenv("DEFAULT_CLIENT_ID"),
		DefaultClientSecret:  os.Getenv("DEFAULT_CLIENT_SECRET"),
		DefaultRedirectURI:   os.Getenv("DEFAULT_REDIRECT_URI"),
		AdminEmail:           strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:        strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		ServiceName:          getEnv("SERVICE_NAME", "univer-auth"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	// 20 random bytes hex-encode to a 40 character credential, the floor
	// for opaque codes and tokens.
	if cfg.TokenBytes < 20 {
		cfg.TokenBytes = 20
	}
	if len(cfg.MenuLocales) == 0 {
		return Config{}, fmt.Errorf("MENU_LOCALES must name at least one locale")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
