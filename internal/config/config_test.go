package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"ECOVISION_API_URL", "ECOVISION_HTTP_TIMEOUT", "ECOVISION_BREAKER_FAILURES",
		"ECOVISION_BREAKER_COOLDOWN", "ECOVISION_REFRESH_INTERVAL", "PORT",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.HTTPTimeout != 0 || cfg.RefreshInterval != 0 || cfg.BreakerFailures != 0 {
		t.Errorf("expected timeouts and breaker off by default: %+v", cfg)
	}
	if cfg.BreakerCooldown != 30*time.Second || cfg.Port != "8080" || cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ECOVISION_API_URL", "http://climate.internal:9000/api/v1/")
	t.Setenv("ECOVISION_HTTP_TIMEOUT", "15s")
	t.Setenv("ECOVISION_BREAKER_FAILURES", "3")
	t.Setenv("ECOVISION_REFRESH_INTERVAL", "5m")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "http://climate.internal:9000/api/v1" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.HTTPTimeout != 15*time.Second || cfg.BreakerFailures != 3 || cfg.RefreshInterval != 5*time.Minute || cfg.Port != "9090" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("ECOVISION_REFRESH_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}

	t.Setenv("ECOVISION_REFRESH_INTERVAL", "-1m")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestLoadRejectsNegativeBreaker(t *testing.T) {
	t.Setenv("ECOVISION_BREAKER_FAILURES", "-2")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative breaker threshold")
	}
}
