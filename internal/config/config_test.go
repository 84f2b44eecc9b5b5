package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Timezone != "Asia/Kolkata" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.Scheduler.TickInterval.Duration != time.Minute {
		t.Errorf("tick_interval = %s", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.CloseOffset.Duration != 10*time.Minute {
		t.Errorf("close_offset = %s", cfg.Scheduler.CloseOffset)
	}
	if cfg.Scheduler.DailyResetCron != "0 20 * * *" {
		t.Errorf("daily_reset_cron = %q", cfg.Scheduler.DailyResetCron)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Timezone = "Mars/Olympus"
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"unknown mode", "unknown log_level", "unknown timezone", "redis: addr"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Bucket = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled s3 should not be validated: %v", err)
	}

	cfg.S3.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty bucket with s3 enabled")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
timezone = "Asia/Kolkata"
mode = "scheduler"

[scheduler]
tick_interval = "30s"
daily_reset_cron = "0 21 * * *"

[server]
port = 9090
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "scheduler" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Scheduler.TickInterval.Duration != 30*time.Second {
		t.Errorf("tick_interval = %s", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.DailyResetCron != "0 21 * * *" {
		t.Errorf("daily_reset_cron = %q", cfg.Scheduler.DailyResetCron)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Port != 5432 {
		t.Errorf("database port = %d", cfg.Database.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MATKAD_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MATKAD_SERVER_API_KEY", "sekret")
	t.Setenv("MATKAD_SCHEDULER_TICK_INTERVAL", "45s")
	t.Setenv("MATKAD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Server.APIKey != "sekret" {
		t.Errorf("api key = %q", cfg.Server.APIKey)
	}
	if cfg.Scheduler.TickInterval.Duration != 45*time.Second {
		t.Errorf("tick_interval = %s", cfg.Scheduler.TickInterval)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.Server.APIKey = "sekret"
	cfg.S3.SecretKey = "aws-secret"

	red := RedactedConfig(&cfg)
	if red.Database.Password != "***" || red.Server.APIKey != "***" || red.S3.SecretKey != "***" {
		t.Error("secrets not redacted")
	}
	// Original must be untouched.
	if cfg.Database.Password != "hunter2" {
		t.Error("original mutated")
	}
}
