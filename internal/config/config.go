// Package config defines the top-level configuration for polytrade and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYTRADE_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	API        APIConfig        `toml:"api"`
	Builder    BuilderConfig    `toml:"builder"`
	Chain      ChainConfig      `toml:"chain"`
	Cache      CacheConfig      `toml:"cache"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// Signing capability kinds for WalletConfig.Signer.
const (
	SignerLocal    = "local"
	SignerExternal = "external"
)

// WalletConfig selects and configures the signing capability.
type WalletConfig struct {
	// Signer is "local" (private key in process) or "external" (JSON-RPC wallet).
	Signer           string `toml:"signer"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	ExternalRPCURL   string `toml:"external_rpc_url"`
	// Address is the account an external wallet signs with.
	Address string `toml:"address"`
	// FunderAddress is the proxy or Safe that holds funds. Empty means the
	// signer itself.
	FunderAddress string `toml:"funder_address"`
}

// NonceEndpoint is one entry of the nonce lookup chain.
type NonceEndpoint struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// PolymarketConfig holds CLOB API endpoints and order defaults.
type PolymarketConfig struct {
	ClobHost       string          `toml:"clob_host"`
	ChainID        int             `toml:"chain_id"`
	SignatureType  int             `toml:"signature_type"`
	NonceEndpoints []NonceEndpoint `toml:"nonce_endpoints"`
	RequestTimeout duration        `toml:"request_timeout"`
}

// APIConfig holds the L2 credentials minted by the exchange.
type APIConfig struct {
	Key        string `toml:"key"`
	Secret     string `toml:"secret"`
	Passphrase string `toml:"passphrase"`
}

// BuilderConfig holds builder-program API credentials.
type BuilderConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// ChainConfig holds the Polygon RPC endpoint, contract addresses and
// receipt polling knobs.
type ChainConfig struct {
	RPCURL                   string   `toml:"rpc_url"`
	CollateralAddress        string   `toml:"collateral_address"`
	ConditionalTokensAddress string   `toml:"conditional_tokens_address"`
	ExchangeAddress          string   `toml:"exchange_address"`
	NegRiskExchangeAddress   string   `toml:"neg_risk_exchange_address"`
	NegRiskAdapterAddress    string   `toml:"neg_risk_adapter_address"`
	ConfirmTimeout           duration `toml:"confirm_timeout"`
	PollInterval             duration `toml:"poll_interval"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig configures the response cache for market metadata and nonces.
type CacheConfig struct {
	Backend  string   `toml:"backend"`
	TTL      duration `toml:"ttl"`
	Capacity int      `toml:"capacity"`
	// NonceTTL of zero means nonces are always fetched.
	NonceTTL duration `toml:"nonce_ttl"`
}

// RedisConfig holds Redis connection parameters. Redis backs the shared
// response cache and the per-maker submission lock.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters for the order store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the order
// journal.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
	PartSizeMB     int    `toml:"part_size_mb"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards every route except /api/health. serve refuses to start
	// without one unless AllowUnauthenticated is set.
	APIKey               string `toml:"api_key"`
	AllowUnauthenticated bool   `toml:"allow_unauthenticated"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			Signer: SignerLocal,
		},
		Polymarket: PolymarketConfig{
			ClobHost:       "https://clob.polymarket.com",
			ChainID:        137,
			SignatureType:  0,
			RequestTimeout: duration{10 * time.Second},
		},
		Chain: ChainConfig{
			RPCURL:         "https://polygon-rpc.com",
			ConfirmTimeout: duration{2 * time.Minute},
			PollInterval:   duration{2 * time.Second},
		},
		Cache: CacheConfig{
			Backend:  CacheMemory,
			TTL:      duration{5 * time.Minute},
			Capacity: 4096,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "polytrade:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polytrade",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:     "us-east-1",
			Bucket:     "polytrade-orders",
			Prefix:     "journal",
			PartSizeMB: 5,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"order_rejected", "approval_submitted", "sync_failed"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":       true,
	"approve":     true,
	"derive-key":  true,
	"encrypt-key": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validCacheBackends = map[string]bool{
	CacheNone:   true,
	CacheMemory: true,
	CacheRedis:  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, approve, derive-key, encrypt-key)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	switch c.Wallet.Signer {
	case SignerLocal:
		if mode != "encrypt-key" && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for the local signer")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	case SignerExternal:
		if c.Wallet.ExternalRPCURL == "" {
			errs = append(errs, "wallet: external_rpc_url is required for the external signer")
		}
		if !common.IsHexAddress(c.Wallet.Address) {
			errs = append(errs, fmt.Sprintf("wallet: address must be a hex address for the external signer, got %q", c.Wallet.Address))
		}
	default:
		errs = append(errs, fmt.Sprintf("wallet: unknown signer %q (valid: local, external)", c.Wallet.Signer))
	}
	if mode == "encrypt-key" {
		if c.Wallet.PrivateKey == "" || c.Wallet.EncryptedKeyPath == "" || c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: encrypt-key needs private_key, encrypted_key_path and key_password")
		}
	}
	if c.Wallet.FunderAddress != "" && !common.IsHexAddress(c.Wallet.FunderAddress) {
		errs = append(errs, fmt.Sprintf("wallet: funder_address is not a hex address: %q", c.Wallet.FunderAddress))
	}

	// Polymarket
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}
	for i, ep := range c.Polymarket.NonceEndpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			errs = append(errs, fmt.Sprintf("polymarket: nonce_endpoints[%d].path must start with /", i))
		}
	}

	// API and builder credentials are all-or-nothing.
	if !allOrNone(c.API.Key, c.API.Secret, c.API.Passphrase) {
		errs = append(errs, "api: key, secret, and passphrase must all be set together")
	}
	if !allOrNone(c.Builder.ApiKey, c.Builder.ApiSecret, c.Builder.ApiPassphrase) {
		errs = append(errs, "builder: api_key, api_secret, and api_passphrase must all be set together")
	}

	// Chain
	if mode == "approve" && c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url is required for mode approve")
	}
	for name, addr := range map[string]string{
		"collateral_address":         c.Chain.CollateralAddress,
		"conditional_tokens_address": c.Chain.ConditionalTokensAddress,
		"exchange_address":           c.Chain.ExchangeAddress,
		"neg_risk_exchange_address":  c.Chain.NegRiskExchangeAddress,
		"neg_risk_adapter_address":   c.Chain.NegRiskAdapterAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("chain: %s is not a hex address: %q", name, addr))
		}
	}
	if c.Chain.PollInterval.Duration <= 0 {
		errs = append(errs, "chain: poll_interval must be > 0")
	}
	if c.Chain.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "chain: confirm_timeout must be > 0")
	}

	// Cache
	if !validCacheBackends[c.Cache.Backend] {
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: none, memory, redis)", c.Cache.Backend))
	}
	if c.Cache.Backend == CacheMemory && c.Cache.Capacity < 1 {
		errs = append(errs, "cache: capacity must be >= 1 for the memory backend")
	}
	if c.Cache.Backend == CacheRedis && !c.Redis.Enabled {
		errs = append(errs, "cache: backend redis requires redis.enabled")
	}
	if c.Cache.TTL.Duration < 0 || c.Cache.NonceTTL.Duration < 0 {
		errs = append(errs, "cache: ttl and nonce_ttl must not be negative")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if mode == "serve" && c.Server.APIKey == "" && !c.Server.AllowUnauthenticated {
		errs = append(errs, "server: api_key must be set in serve mode (or set allow_unauthenticated = true)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func allOrNone(vals ...string) bool {
	set := 0
	for _, v := range vals {
		if v != "" {
			set++
		}
	}
	return set == 0 || set == len(vals)
}
