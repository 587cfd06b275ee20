package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	s3blob "github.com/LTOFFICIALUK/PolyTrade-sub000/internal/blob/s3"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/cache/memory"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/cache/redis"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/chain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/config"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/notify"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/platform/polymarket"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/server/handler"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/service"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Signing
	Capability crypto.SigningCapability
	Signer     *crypto.TypedDataSigner
	Address    common.Address
	L2         *crypto.L2Signer // nil until API credentials are configured
	Contracts  chain.Contracts

	// Exchange
	Clob   *polymarket.ClobClient
	Nonces *polymarket.NonceResolver

	// Services
	Builder    *service.OrderBuilder
	Orders     *service.OrderService
	Allowances *service.AllowanceService // nil without chain.rpc_url

	// Health probes keyed by dependency name.
	Checks map[string]handler.Pinger

	Notifier *notify.Notifier
}

// needsChain returns true for modes that read or write on-chain state.
func needsChain(mode string) bool {
	switch mode {
	case "serve", "approve":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	mode := strings.ToLower(cfg.Mode)
	chainID := int64(cfg.Polymarket.ChainID)
	deps := &Dependencies{Checks: map[string]handler.Pinger{}}

	// --- Signing capability ---
	var (
		localKey  *crypto.LocalKey
		walletRPC *rpc.Client
	)
	switch cfg.Wallet.Signer {
	case config.SignerExternal:
		from := common.HexToAddress(cfg.Wallet.Address)
		w, rc, err := crypto.DialExternalWallet(ctx, cfg.Wallet.ExternalRPCURL, from)
		if err != nil {
			return fail("external wallet", err)
		}
		closers = append(closers, rc.Close)
		walletRPC = rc
		deps.Capability = w
		deps.Address = from
	default:
		key, err := crypto.LoadLocalKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		}, chainID)
		if err != nil {
			return fail("local key", err)
		}
		localKey = key
		deps.Capability = key
		deps.Address = key.Address()
	}
	deps.Signer = crypto.NewTypedDataSigner(deps.Capability, chainID, logger)

	contracts, err := contractsFor(cfg.Chain)
	if err != nil {
		return fail("contracts", err)
	}
	deps.Contracts = contracts

	// --- Redis (shared cache and submission lock) ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- Exchange client ---
	httpClient := &http.Client{Timeout: cfg.Polymarket.RequestTimeout.Duration}
	creds := domain.APICredentials{
		APIKey:     cfg.API.Key,
		Secret:     cfg.API.Secret,
		Passphrase: cfg.API.Passphrase,
	}
	if !creds.Empty() {
		deps.L2 = crypto.NewL2Signer(deps.Address, creds)
	}

	clobOpts := []polymarket.ClobOption{
		polymarket.WithHTTPClient(httpClient),
		polymarket.WithMetadataCache(newResponseCache(cfg.Cache, redisClient, "meta", cfg.Cache.TTL.Duration)),
	}
	if cfg.Builder.ApiKey != "" {
		clobOpts = append(clobOpts, polymarket.WithBuilder(crypto.NewBuilderSigner(domain.APICredentials{
			APIKey:     cfg.Builder.ApiKey,
			Secret:     cfg.Builder.ApiSecret,
			Passphrase: cfg.Builder.ApiPassphrase,
		})))
	}
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, deps.L2, logger, clobOpts...)

	deps.Nonces = polymarket.NewNonceResolver(
		cfg.Polymarket.ClobHost,
		httpClient,
		nonceEndpoints(cfg.Polymarket.NonceEndpoints),
		newResponseCache(cfg.Cache, redisClient, "nonce", cfg.Cache.NonceTTL.Duration),
		logger,
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Order pipeline ---
	deps.Builder = service.NewOrderBuilder(deps.Nonces, deps.Signer, nil, contracts, logger)
	deps.Orders = service.NewOrderService(deps.Builder, deps.Clob, logger).WithAlerter(deps.Notifier)
	if redisClient != nil {
		deps.Orders.WithLocks(redis.NewLockManager(redisClient, 0), 0)
	} else {
		deps.Orders.WithLocks(memory.NewLockManager(), 0)
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		pool := pgClient.Pool()
		deps.Orders.WithStore(postgres.NewOrderStore(pool), postgres.NewAuditStore(pool))
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- S3 order journal ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		writer := s3blob.NewWriter(s3Client, int64(cfg.S3.PartSizeMB)<<20)
		deps.Orders.WithJournal(s3blob.NewJournal(writer, cfg.S3.Prefix))
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Chain (allowance orchestration) ---
	if needsChain(mode) && cfg.Chain.RPCURL != "" {
		ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return fail("chain rpc", err)
		}
		closers = append(closers, ec.Close)

		var tx chain.Transactor
		switch {
		case localKey != nil:
			tx = chain.NewLocalTransactor(ec, localKey.PrivateKey(), chainID)
		case walletRPC != nil:
			tx = chain.NewWalletTransactor(walletRPC, deps.Address)
		}

		clob := deps.Clob
		deps.Allowances = service.NewAllowanceService(
			chain.NewReader(ec),
			tx,
			ec,
			contracts,
			func(l2 *crypto.L2Signer) service.BalanceSyncer { return clob.WithCredentials(l2) },
			service.AllowanceConfig{
				PollInterval:   cfg.Chain.PollInterval.Duration,
				ConfirmTimeout: cfg.Chain.ConfirmTimeout.Duration,
			},
			logger,
		).WithAlerter(deps.Notifier)
	}

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.String("signer", cfg.Wallet.Signer),
		slog.String("address", deps.Address.Hex()),
		slog.Bool("api_credentials", deps.L2 != nil),
		slog.Bool("postgres", cfg.Postgres.Enabled),
		slog.Bool("redis", redisClient != nil),
		slog.Bool("s3", cfg.S3.Enabled),
		slog.Bool("allowances", deps.Allowances != nil),
	)
	return deps, cleanup, nil
}

// newResponseCache picks the cache backend. A zero ttl or the "none"
// backend returns nil, which callers treat as always-fetch.
func newResponseCache(cfg config.CacheConfig, rc *redis.Client, namespace string, ttl time.Duration) domain.ResponseCache {
	if ttl <= 0 {
		return nil
	}
	switch cfg.Backend {
	case config.CacheMemory:
		return memory.NewResponseCache(cfg.Capacity, ttl)
	case config.CacheRedis:
		if rc != nil {
			return redis.NewResponseCache(rc, namespace, ttl)
		}
	}
	return nil
}

// contractsFor overlays configured addresses on the Polygon defaults.
func contractsFor(cfg config.ChainConfig) (chain.Contracts, error) {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return chain.ContractsFromHex(
		pick(cfg.CollateralAddress, chain.CollateralAddress),
		pick(cfg.ConditionalTokensAddress, chain.ConditionalTokensAddress),
		pick(cfg.ExchangeAddress, chain.ExchangeAddress),
		pick(cfg.NegRiskExchangeAddress, chain.NegRiskExchangeAddress),
		pick(cfg.NegRiskAdapterAddress, chain.NegRiskAdapterAddress),
	)
}

func nonceEndpoints(in []config.NonceEndpoint) []polymarket.NonceEndpoint {
	if len(in) == 0 {
		return nil
	}
	out := make([]polymarket.NonceEndpoint, len(in))
	for i, ep := range in {
		out[i] = polymarket.NonceEndpoint{Name: ep.Name, Path: ep.Path}
	}
	return out
}
