package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL   string // empty selects in-memory repositories
	Port          string
	DBIdleTimeout time.Duration

	JWTSecret      string
	AccessTokenTTL time.Duration
	OTPSalt        string
	OTPTTL         time.Duration
	OTPInResponse  bool

	DefaultPassword        string
	AllowPlaintextFallback bool
	DataRequireAuth        bool

	OTPRequestLimit int
	OTPVerifyLimit  int
	RateLimitWindow time.Duration

	CORSOrigins []string
	LogLevel    slog.Level
	LogFormat   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		OTPSalt:         os.Getenv("OTP_SALT"),
		DefaultPassword: os.Getenv("DEFAULT_PASSWORD"),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CORSOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	var err error
	if cfg.DBIdleTimeout, err = getDuration("DB_IDLE_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getDuration("OTP_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OTPInResponse, err = getBool("OTP_IN_RESPONSE", true); err != nil {
		return nil, err
	}
	if cfg.AllowPlaintextFallback, err = getBool("ALLOW_PLAINTEXT_FALLBACK", false); err != nil {
		return nil, err
	}
	if cfg.DataRequireAuth, err = getBool("DATA_REQUIRE_AUTH", false); err != nil {
		return nil, err
	}
	if cfg.OTPRequestLimit, err = getInt("OTP_REQUEST_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.OTPVerifyLimit, err = getInt("OTP_VERIFY_LIMIT", 20); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	// Load JWT_SECRET (required)
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	// Load OTP_SALT (required)
	if cfg.OTPSalt == "" {
		return nil, fmt.Errorf("OTP_SALT environment variable is required")
	}
	if cfg.DefaultPassword == "" {
		return nil, fmt.Errorf("DEFAULT_PASSWORD environment variable is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
