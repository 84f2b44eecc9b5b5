package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MATKAD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MATKAD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Scheduler ──
	setDuration(&cfg.Scheduler.TickInterval, "MATKAD_SCHEDULER_TICK_INTERVAL")
	setDuration(&cfg.Scheduler.CloseOffset, "MATKAD_SCHEDULER_CLOSE_OFFSET")
	setInt(&cfg.Scheduler.ReopenStartHour, "MATKAD_SCHEDULER_REOPEN_START_HOUR")
	setInt(&cfg.Scheduler.ReopenEndHour, "MATKAD_SCHEDULER_REOPEN_END_HOUR")
	setStr(&cfg.Scheduler.DailyResetCron, "MATKAD_SCHEDULER_DAILY_RESET_CRON")
	setBool(&cfg.Scheduler.OpenAllOnStart, "MATKAD_SCHEDULER_OPEN_ALL_ON_START")

	// ── Database ──
	setStr(&cfg.Database.DSN, "MATKAD_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "MATKAD_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "MATKAD_DATABASE_HOST")
	setInt(&cfg.Database.Port, "MATKAD_DATABASE_PORT")
	setStr(&cfg.Database.Database, "MATKAD_DATABASE_NAME")
	setStr(&cfg.Database.User, "MATKAD_DATABASE_USER")
	setStr(&cfg.Database.Password, "MATKAD_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "MATKAD_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "MATKAD_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "MATKAD_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "MATKAD_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MATKAD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MATKAD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MATKAD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MATKAD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MATKAD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MATKAD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MATKAD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MATKAD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MATKAD_S3_REGION")
	setStr(&cfg.S3.Bucket, "MATKAD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MATKAD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MATKAD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MATKAD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MATKAD_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "MATKAD_S3_RETENTION_DAYS")
	setStr(&cfg.S3.ArchiveCron, "MATKAD_S3_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MATKAD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MATKAD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MATKAD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MATKAD_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MATKAD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MATKAD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MATKAD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MATKAD_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Timezone, "MATKAD_TIMEZONE")
	setStr(&cfg.Mode, "MATKAD_MODE")
	setStr(&cfg.LogLevel, "MATKAD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
