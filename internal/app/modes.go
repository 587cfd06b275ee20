package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/server"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/server/handler"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/service"
)

const shutdownTimeout = 10 * time.Second

// ServeMode runs the local HTTP API until ctx is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	if a.cfg.Server.APIKey == "" {
		if !a.cfg.Server.AllowUnauthenticated {
			return fmt.Errorf("app: serve: server.api_key is empty: %w", domain.ErrInvalidParameters)
		}
		a.logger.WarnContext(ctx, "app: serving without authentication", slog.Int("port", a.cfg.Server.Port))
	}
	a.logger.InfoContext(ctx, "app: starting serve mode")

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Orders: handler.NewOrderHandler(deps.Builder, deps.Orders, deps.Clob, a.logger),
		Nonce:  handler.NewNonceHandler(deps.Nonces, a.logger),
	}
	// A nil *L2Signer must not reach the handler as a non-nil interface.
	if deps.L2 != nil {
		handlers.Auth = handler.NewAuthHandler(deps.Signer, deps.L2, a.logger)
	} else {
		handlers.Auth = handler.NewAuthHandler(deps.Signer, nil, a.logger)
	}
	if deps.Allowances != nil {
		handlers.Allowance = handler.NewAllowanceHandler(deps.Allowances, a.creds(), a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

// ApproveMode checks and, unless check-only, approves the funding wallet
// for the exchange contracts, then prints the resulting status as JSON.
func (a *App) ApproveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Allowances == nil {
		return fmt.Errorf("app: approve: chain.rpc_url is not configured")
	}
	wallet := deps.Address
	if a.cfg.Wallet.FunderAddress != "" {
		wallet = common.HexToAddress(a.cfg.Wallet.FunderAddress)
	}
	a.logger.InfoContext(ctx, "app: starting approve mode",
		slog.String("wallet", wallet.Hex()),
		slog.String("token_id", a.approve.TokenID),
		slog.Bool("check_only", a.approve.CheckOnly),
	)

	status, err := deps.Allowances.EnsureAllowance(ctx, wallet, a.creds(), service.AllowanceOptions{
		TokenID:       a.approve.TokenID,
		SignatureType: domain.SignatureType(a.cfg.Polymarket.SignatureType),
		CheckOnly:     a.approve.CheckOnly,
	})
	if printErr := a.printJSON(status); printErr != nil && err == nil {
		err = printErr
	}
	if err != nil {
		return fmt.Errorf("app: approve %s: %w", wallet.Hex(), err)
	}
	return nil
}

// DeriveKeyMode signs an L1 auth assertion, creates or derives the API key
// and prints it as POLYTRADE_API_* lines for the operator's env file.
func (a *App) DeriveKeyMode(ctx context.Context, deps *Dependencies) error {
	assertion, err := deps.Signer.SignAuth(ctx, deps.Address)
	if err != nil {
		return fmt.Errorf("app: derive-key: %w", err)
	}
	creds, err := deps.Clob.CreateOrDeriveAPIKey(ctx, assertion)
	if err != nil {
		return fmt.Errorf("app: derive-key: %w", err)
	}
	a.logger.InfoContext(ctx, "app: api key ready",
		slog.String("address", deps.Address.Hex()),
		slog.String("credentials", creds.String()),
	)

	_, err = fmt.Fprintf(a.out, "POLYTRADE_API_KEY=%s\nPOLYTRADE_API_SECRET=%s\nPOLYTRADE_API_PASSPHRASE=%s\n",
		creds.APIKey, creds.Secret, creds.Passphrase)
	return err
}

// EncryptKeyMode writes wallet.private_key to wallet.encrypted_key_path,
// encrypted with wallet.key_password.
func (a *App) EncryptKeyMode(ctx context.Context) error {
	w := a.cfg.Wallet
	if w.PrivateKey == "" || w.EncryptedKeyPath == "" || w.KeyPassword == "" {
		return errors.New("app: encrypt-key: private_key, encrypted_key_path and key_password are required")
	}
	if err := crypto.WriteEncryptedKey(w.EncryptedKeyPath, w.PrivateKey, w.KeyPassword); err != nil {
		return fmt.Errorf("app: encrypt-key: %w", err)
	}
	a.logger.InfoContext(ctx, "app: encrypted key written", slog.String("path", w.EncryptedKeyPath))
	return nil
}

func (a *App) creds() domain.APICredentials {
	return domain.APICredentials{
		APIKey:     a.cfg.API.Key,
		Secret:     a.cfg.API.Secret,
		Passphrase: a.cfg.API.Passphrase,
	}
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
