package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the local climate API started by the backend project.
const DefaultAPIURL = "http://127.0.0.1:5000/api/v1"

type AppConfig struct {
	// APIURL is the base URL of the climate API, including the /api/v1 prefix.
	APIURL string

	// HTTPTimeout bounds each API request (0 = no client-side timeout).
	HTTPTimeout time.Duration

	// Circuit breaker in front of the API (0 failures = disabled).
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// RefreshInterval re-applies the current filters periodically (0 = off).
	RefreshInterval time.Duration

	// Port for the HTTP view server.
	Port string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration from a .env file (if any) and the environment.
func Load() (*AppConfig, error) {
	// A missing .env file is normal; the environment still applies.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.APIURL = strings.TrimRight(getenvDefault("ECOVISION_API_URL", DefaultAPIURL), "/")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("ECOVISION_HTTP_TIMEOUT", "0"); err != nil {
		return nil, err
	}

	failures := getenvInt("ECOVISION_BREAKER_FAILURES", 0)
	if failures < 0 {
		return nil, fmt.Errorf("invalid ECOVISION_BREAKER_FAILURES: %d", failures)
	}
	cfg.BreakerFailures = uint32(failures)

	if cfg.BreakerCooldown, err = getenvDuration("ECOVISION_BREAKER_COOLDOWN", "30s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("ECOVISION_REFRESH_INTERVAL", "0"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration %s", key, d)
	}
	return d, nil
}
