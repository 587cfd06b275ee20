package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRADE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYTRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.Signer, "POLYTRADE_WALLET_SIGNER")
	setStr(&cfg.Wallet.PrivateKey, "POLYTRADE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYTRADE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYTRADE_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.ExternalRPCURL, "POLYTRADE_WALLET_EXTERNAL_RPC_URL")
	setStr(&cfg.Wallet.Address, "POLYTRADE_WALLET_ADDRESS")
	setStr(&cfg.Wallet.FunderAddress, "POLYTRADE_WALLET_FUNDER_ADDRESS")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYTRADE_POLYMARKET_CLOB_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYTRADE_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYTRADE_POLYMARKET_SIGNATURE_TYPE")
	setDuration(&cfg.Polymarket.RequestTimeout, "POLYTRADE_POLYMARKET_REQUEST_TIMEOUT")

	// ── API credentials ──
	setStr(&cfg.API.Key, "POLYTRADE_API_KEY")
	setStr(&cfg.API.Secret, "POLYTRADE_API_SECRET")
	setStr(&cfg.API.Passphrase, "POLYTRADE_API_PASSPHRASE")

	// ── Builder ──
	setStr(&cfg.Builder.ApiKey, "POLYTRADE_BUILDER_API_KEY")
	setStr(&cfg.Builder.ApiSecret, "POLYTRADE_BUILDER_API_SECRET")
	setStr(&cfg.Builder.ApiPassphrase, "POLYTRADE_BUILDER_API_PASSPHRASE")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "POLYTRADE_CHAIN_RPC_URL")
	setDuration(&cfg.Chain.ConfirmTimeout, "POLYTRADE_CHAIN_CONFIRM_TIMEOUT")
	setDuration(&cfg.Chain.PollInterval, "POLYTRADE_CHAIN_POLL_INTERVAL")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "POLYTRADE_CACHE_BACKEND")
	setDuration(&cfg.Cache.TTL, "POLYTRADE_CACHE_TTL")
	setInt(&cfg.Cache.Capacity, "POLYTRADE_CACHE_CAPACITY")
	setDuration(&cfg.Cache.NonceTTL, "POLYTRADE_CACHE_NONCE_TTL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYTRADE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYTRADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRADE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "POLYTRADE_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POLYTRADE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYTRADE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYTRADE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYTRADE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYTRADE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYTRADE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYTRADE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYTRADE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYTRADE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYTRADE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYTRADE_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYTRADE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYTRADE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYTRADE_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYTRADE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYTRADE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYTRADE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYTRADE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYTRADE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "POLYTRADE_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "POLYTRADE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYTRADE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYTRADE_SERVER_API_KEY")
	setBool(&cfg.Server.AllowUnauthenticated, "POLYTRADE_SERVER_ALLOW_UNAUTHENTICATED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYTRADE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYTRADE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYTRADE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYTRADE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYTRADE_MODE")
	setStr(&cfg.LogLevel, "POLYTRADE_LOG_LEVEL")
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
