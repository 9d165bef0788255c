package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != "8081" {
		t.Errorf("Expected default port 8081, got %s", cfg.Server.Port)
	}

	if cfg.Scanner.Mode != "polling" {
		t.Errorf("Expected default scan mode polling, got %s", cfg.Scanner.Mode)
	}

	if cfg.Scanner.Interval != time.Second {
		t.Errorf("Expected default scan interval 1s, got %v", cfg.Scanner.Interval)
	}

	if cfg.Scanner.FallbackInterval != 5*time.Second {
		t.Errorf("Expected default fallback interval 5s, got %v", cfg.Scanner.FallbackInterval)
	}

	if cfg.Colly.Enabled {
		t.Error("Expected colly backend disabled by default")
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SCAN_MODE", "mutation")
	t.Setenv("SCAN_INTERVAL", "250ms")
	t.Setenv("COLLY_ENABLED", "true")
	t.Setenv("SETTINGS_PATH", "/tmp/album.json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.Server.Port != "9000" {
		t.Errorf("Expected port 9000 from env, got %s", cfg.Server.Port)
	}

	if cfg.Scanner.Mode != "mutation" {
		t.Errorf("Expected scan mode mutation from env, got %s", cfg.Scanner.Mode)
	}

	if cfg.Scanner.Interval != 250*time.Millisecond {
		t.Errorf("Expected scan interval 250ms from env, got %v", cfg.Scanner.Interval)
	}

	if !cfg.Colly.Enabled {
		t.Error("Expected colly backend enabled from env")
	}

	if cfg.Export.SettingsPath != "/tmp/album.json" {
		t.Errorf("Expected settings path from env, got %s", cfg.Export.SettingsPath)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug from env, got %s", cfg.Log.Level)
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("TEST_DURATION", "5s")
	if duration := getDurationEnv("TEST_DURATION", 10*time.Second); duration != 5*time.Second {
		t.Errorf("Expected 5s, got %v", duration)
	}

	t.Setenv("TEST_DURATION", "invalid")
	if duration := getDurationEnv("TEST_DURATION", 10*time.Second); duration != 10*time.Second {
		t.Errorf("Expected default 10s for invalid duration, got %v", duration)
	}

	if duration := getDurationEnv("TEST_DURATION_MISSING", 15*time.Second); duration != 15*time.Second {
		t.Errorf("Expected default 15s for missing env var, got %v", duration)
	}
}

func TestGetIntAndBoolEnv(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BOOL", "nope")

	if v := getIntEnv("TEST_INT", 1); v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}
	if v := getBoolEnv("TEST_BOOL", true); !v {
		t.Error("Expected default true for unparsable bool")
	}
}
