package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultPort            = "8080"
	defaultJWTTTL          = "24h"
	defaultAnalyzerURL     = "http://localhost:5001/api/analyze-medicine"
	defaultAnalyzerTimeout = "30s"
	defaultUploadDir       = "./uploads"
	defaultUploadBaseURL   = "/uploads"
)

// Config holds the runtime configuration, loaded from environment variables.
type Config struct {
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTTTL          time.Duration
	AnalyzerURL     string
	AnalyzerTimeout time.Duration
	UploadDir       string
	UploadBaseURL   string
	CORSOrigins     []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", defaultPort),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AnalyzerURL:   getEnv("ANALYZER_URL", defaultAnalyzerURL),
		UploadDir:     getEnv("UPLOAD_DIR", defaultUploadDir),
		UploadBaseURL: getEnv("UPLOAD_BASE_URL", defaultUploadBaseURL),
		CORSOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is empty")
	}

	var err error
	if cfg.JWTTTL, err = parseDuration("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.AnalyzerTimeout, err = parseDuration("ANALYZER_TIMEOUT", defaultAnalyzerTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList parses a comma-separated env value, e.g.
// CORS_ALLOWED_ORIGINS=https://app.com,https://admin.app.com
func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, raw)
	}
	return d, nil
}
