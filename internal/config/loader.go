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
// built-in defaults, applies PREDMARKET_* environment variable overrides, and
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

// applyEnvOverrides reads well-known PREDMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt64(&cfg.Engine.FeeRateBasisPoints, "PREDMARKET_ENGINE_FEE_RATE_BASIS_POINTS")
	setDuration(&cfg.Engine.MinDuration, "PREDMARKET_ENGINE_MIN_DURATION")
	setDuration(&cfg.Engine.MaxDuration, "PREDMARKET_ENGINE_MAX_DURATION")
	setInt64(&cfg.Engine.MinLiquidityB, "PREDMARKET_ENGINE_MIN_LIQUIDITY_B")
	setInt64(&cfg.Engine.MaxLiquidityB, "PREDMARKET_ENGINE_MAX_LIQUIDITY_B")
	setInt64(&cfg.Engine.PayoutPerShare, "PREDMARKET_ENGINE_PAYOUT_PER_SHARE")
	setInt(&cfg.Engine.EventBuffer, "PREDMARKET_ENGINE_EVENT_BUFFER")

	// ── Access ──
	setStr(&cfg.Access.Custody, "PREDMARKET_ACCESS_CUSTODY")
	setStr(&cfg.Access.FeeCollector, "PREDMARKET_ACCESS_FEE_COLLECTOR")
	setStringSlice(&cfg.Access.Admins, "PREDMARKET_ACCESS_ADMINS")
	setStringSlice(&cfg.Access.Resolvers, "PREDMARKET_ACCESS_RESOLVERS")
	setStringSlice(&cfg.Access.Validators, "PREDMARKET_ACCESS_VALIDATORS")
	setStringSlice(&cfg.Access.Operators, "PREDMARKET_ACCESS_OPERATORS")
	setStringSlice(&cfg.Access.WhitelistedTokens, "PREDMARKET_ACCESS_WHITELISTED_TOKENS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PREDMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "PREDMARKET_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "PREDMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDMARKET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PREDMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDMARKET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PREDMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDMARKET_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PREDMARKET_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "PREDMARKET_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "PREDMARKET_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PREDMARKET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PREDMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PREDMARKET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "PREDMARKET_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PREDMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDMARKET_NOTIFY_EVENTS")

	// ── Operator ──
	setStr(&cfg.Operator.EncryptedKeyPath, "PREDMARKET_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "PREDMARKET_OPERATOR_KEY_PASSWORD")

	// ── Top-level ──
	setStr(&cfg.Mode, "PREDMARKET_MODE")
	setStr(&cfg.LogLevel, "PREDMARKET_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
