package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("EXPORT_S3_BUCKET", "dumps-bucket")
	t.Setenv("EXPORT_S3_PREFIX", "/admin/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, 30*time.Second)
	}
	if !cfg.Database.Redis.Enabled {
		t.Error("Database.Redis.Enabled = false, want true")
	}
	if cfg.Database.ClickHouse.Enabled {
		t.Error("Database.ClickHouse.Enabled should default to false")
	}
	if cfg.Refresh.Interval != 15*time.Minute {
		t.Errorf("Refresh.Interval = %v, want %v", cfg.Refresh.Interval, 15*time.Minute)
	}
	if cfg.Database.Postgres.ConnectAttempts != 5 {
		t.Errorf("Database.Postgres.ConnectAttempts = %d, want 5", cfg.Database.Postgres.ConnectAttempts)
	}
	if !cfg.Export.Enabled() || cfg.Export.Prefix != "admin" {
		t.Errorf("Export = %+v, want enabled with prefix admin", cfg.Export)
	}
}

func TestLoadConfig_InvalidRefreshInterval(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "-1m")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() should reject a negative refresh interval")
	}
}

func TestLoadConfig_InvalidConnectAttempts(t *testing.T) {
	t.Setenv("POSTGRES_CONNECT_ATTEMPTS", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() should reject zero connect attempts")
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     "5433",
		Database: "portfolio",
		User:     "u",
		Password: "p",
		SSLMode:  "disable",
	}

	want := "postgres://u:p@db:5433/portfolio?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{"returns integer when valid", "TEST_INT", 100, "200", 200},
		{"returns default when invalid", "TEST_INT_INVALID", 100, "invalid", 100},
		{"returns default when not set", "TEST_INT_NOTSET", 100, "", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			if got := getEnvAsInt(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBoolAndFloat(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BOOL_BAD", "maybe")
	t.Setenv("TEST_FLOAT", "2.5")

	if !getEnvAsBool("TEST_BOOL", false) {
		t.Error("getEnvAsBool(TEST_BOOL) = false, want true")
	}
	if !getEnvAsBool("TEST_BOOL_BAD", true) {
		t.Error("getEnvAsBool should fall back to the default on bad input")
	}
	if got := getEnvAsFloat("TEST_FLOAT", 1); got != 2.5 {
		t.Errorf("getEnvAsFloat() = %v, want 2.5", got)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{"returns duration when valid", "TEST_DURATION", 10 * time.Second, "30s", 30 * time.Second},
		{"returns default when invalid", "TEST_DURATION_INVALID", 10 * time.Second, "invalid", 10 * time.Second},
		{"returns default when not set", "TEST_DURATION_NOTSET", 10 * time.Second, "", 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			if got := getEnvAsDuration(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
