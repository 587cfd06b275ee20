package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/chain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/notify"
)

// AllowanceReader is the read side of the chain used for allowance checks.
// *chain.Reader satisfies it.
type AllowanceReader interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	PositionBalance(ctx context.Context, ctf, owner common.Address, tokenID *big.Int) (*big.Int, error)
	IsApprovedForAll(ctx context.Context, ctf, owner, operator common.Address) (bool, error)
}

// BalanceSyncer asks the exchange to refresh its cached balance/allowance.
type BalanceSyncer interface {
	UpdateBalanceAllowance(ctx context.Context, assetType domain.AssetType, tokenID string, signatureType domain.SignatureType) error
}

// Alerter delivers operator notifications. *notify.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// AllowanceOptions narrows an EnsureAllowance run.
type AllowanceOptions struct {
	// TokenID enables the CONDITIONAL check for that position. Sellers
	// set it; buyers usually leave it empty.
	TokenID       string
	SignatureType domain.SignatureType
	// CheckOnly reads state and never sends approvals.
	CheckOnly bool
}

// AllowanceConfig holds the receipt polling knobs.
type AllowanceConfig struct {
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

// AllowanceService checks collateral and conditional-token approvals for
// the exchange contracts, approves what is missing and asks the exchange
// to resync.
type AllowanceService struct {
	reader    AllowanceReader
	tx        chain.Transactor
	receipts  chain.ReceiptSource
	contracts chain.Contracts
	syncFor   func(l2 *crypto.L2Signer) BalanceSyncer
	alert     Alerter
	cfg       AllowanceConfig
	logger    *slog.Logger
}

// NewAllowanceService wires the orchestrator. tx may be nil for read-only
// deployments; approvals then fail with domain.ErrSignerUnavailable.
func NewAllowanceService(
	reader AllowanceReader,
	tx chain.Transactor,
	receipts chain.ReceiptSource,
	contracts chain.Contracts,
	syncFor func(l2 *crypto.L2Signer) BalanceSyncer,
	cfg AllowanceConfig,
	logger *slog.Logger,
) *AllowanceService {
	return &AllowanceService{
		reader:    reader,
		tx:        tx,
		receipts:  receipts,
		contracts: contracts,
		syncFor:   syncFor,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "allowance_service")),
	}
}

// WithAlerter attaches a notifier for approval and sync events.
func (s *AllowanceService) WithAlerter(a Alerter) *AllowanceService {
	s.alert = a
	return s
}

// assetCheck is the raw read result for one asset class.
type assetCheck struct {
	allowance *domain.AssetAllowance
	// deficient lists spenders (or operators) that still need approval.
	deficient []common.Address
}

// EnsureAllowance drives each asset class through
// checked -> sufficient | approving -> approved -> synced.
// Sufficient is terminal: no transaction and no resync is issued.
func (s *AllowanceService) EnsureAllowance(ctx context.Context, wallet common.Address, creds domain.APICredentials, opts AllowanceOptions) (domain.AllowanceStatus, error) {
	var tokenID *big.Int
	if opts.TokenID != "" {
		id, ok := new(big.Int).SetString(opts.TokenID, 10)
		if !ok || id.Sign() < 0 {
			return domain.AllowanceStatus{}, domain.InvalidField("tokenId", "must be a non-negative base-10 integer, got %q", opts.TokenID)
		}
		tokenID = id
	}

	collateral, conditional, err := s.check(ctx, wallet, tokenID)
	if err != nil {
		return domain.AllowanceStatus{}, err
	}

	status := domain.AllowanceStatus{Wallet: wallet.Hex(), Collateral: collateral.allowance}
	if conditional != nil {
		status.Conditional = conditional.allowance
	}
	if opts.CheckOnly {
		for _, a := range []*domain.AssetAllowance{status.Collateral, status.Conditional} {
			if a != nil && !a.NeedsApproval {
				a.State = domain.AllowanceSufficient
			}
		}
		return status, nil
	}

	var syncer BalanceSyncer
	if !creds.Empty() && s.syncFor != nil {
		syncer = s.syncFor(crypto.NewL2Signer(wallet, creds))
	}

	if err := s.settle(ctx, wallet, collateral, syncer, "", opts.SignatureType); err != nil {
		return status, err
	}
	if conditional != nil {
		if err := s.settle(ctx, wallet, *conditional, syncer, opts.TokenID, opts.SignatureType); err != nil {
			return status, err
		}
	}
	return status, nil
}

// check reads every balance and approval concurrently.
func (s *AllowanceService) check(ctx context.Context, wallet common.Address, tokenID *big.Int) (assetCheck, *assetCheck, error) {
	spenders := s.contracts.Spenders()

	var (
		usdcBalance *big.Int
		allowances  = make([]*big.Int, len(spenders))
		ctfBalance  *big.Int
		approved    = make([]bool, len(spenders))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		usdcBalance, err = s.reader.TokenBalance(gctx, s.contracts.Collateral, wallet)
		return err
	})
	for i, sp := range spenders {
		g.Go(func() (err error) {
			allowances[i], err = s.reader.Allowance(gctx, s.contracts.Collateral, wallet, sp)
			return err
		})
	}
	if tokenID != nil {
		g.Go(func() (err error) {
			ctfBalance, err = s.reader.PositionBalance(gctx, s.contracts.ConditionalTokens, wallet, tokenID)
			return err
		})
		for i, op := range spenders {
			g.Go(func() (err error) {
				approved[i], err = s.reader.IsApprovedForAll(gctx, s.contracts.ConditionalTokens, wallet, op)
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return assetCheck{}, nil, fmt.Errorf("service/allowance: check %s: %w", wallet.Hex(), err)
	}

	collateral := assetCheck{allowance: &domain.AssetAllowance{
		AssetType: domain.AssetCollateral,
		Balance:   usdcBalance,
		State:     domain.AllowanceChecked,
	}}
	minAllowance := new(big.Int).Set(chain.MaxUint256)
	for i, a := range allowances {
		if a.Cmp(minAllowance) < 0 {
			minAllowance.Set(a)
		}
		if domain.NeedsApproval(usdcBalance, a) {
			collateral.deficient = append(collateral.deficient, spenders[i])
		}
	}
	collateral.allowance.Allowance = minAllowance
	collateral.allowance.NeedsApproval = len(collateral.deficient) > 0

	if tokenID == nil {
		return collateral, nil, nil
	}

	conditional := &assetCheck{allowance: &domain.AssetAllowance{
		AssetType: domain.AssetConditional,
		Balance:   ctfBalance,
		Allowance: new(big.Int).Set(chain.MaxUint256),
		State:     domain.AllowanceChecked,
	}}
	for i, ok := range approved {
		if !ok {
			conditional.allowance.Allowance = new(big.Int)
			if ctfBalance.Sign() > 0 {
				conditional.deficient = append(conditional.deficient, spenders[i])
			}
		}
	}
	conditional.allowance.NeedsApproval = len(conditional.deficient) > 0
	return collateral, conditional, nil
}

// settle approves and resyncs one asset class.
func (s *AllowanceService) settle(ctx context.Context, wallet common.Address, c assetCheck, syncer BalanceSyncer, tokenID string, sigType domain.SignatureType) error {
	a := c.allowance
	if !a.NeedsApproval {
		a.State = domain.AllowanceSufficient
		return nil
	}
	if s.tx == nil {
		return fmt.Errorf("service/allowance: approve %s: %w", a.AssetType, domain.ErrSignerUnavailable)
	}
	if s.tx.From() != wallet {
		return domain.InvalidField("wallet", "approvals are sent from %s, not %s", s.tx.From().Hex(), wallet.Hex())
	}

	a.State = domain.AllowanceApproving
	for _, spender := range c.deficient {
		hash, err := s.approve(ctx, a.AssetType, spender)
		if err != nil {
			return err
		}
		a.ApprovalTxs = append(a.ApprovalTxs, hash.Hex())
		s.notify(ctx, notify.EventApprovalSubmitted, "Approval submitted",
			fmt.Sprintf("%s approval for %s: %s", a.AssetType, spender.Hex(), hash.Hex()))

		if _, err := chain.WaitMined(ctx, s.receipts, hash, s.cfg.PollInterval, s.cfg.ConfirmTimeout); err != nil {
			return fmt.Errorf("service/allowance: %s approval %s: %w", a.AssetType, hash.Hex(), err)
		}
		s.logger.InfoContext(ctx, "allowance: approval mined",
			slog.String("asset", string(a.AssetType)),
			slog.String("spender", spender.Hex()),
			slog.String("tx", hash.Hex()),
		)
	}
	a.State = domain.AllowanceApproved
	a.NeedsApproval = false
	a.Allowance = new(big.Int).Set(chain.MaxUint256)

	s.sync(ctx, a, syncer, tokenID, sigType)
	return nil
}

func (s *AllowanceService) approve(ctx context.Context, asset domain.AssetType, spender common.Address) (common.Hash, error) {
	var (
		to   common.Address
		data []byte
		err  error
	)
	switch asset {
	case domain.AssetCollateral:
		to = s.contracts.Collateral
		data, err = chain.ApproveCalldata(spender)
	case domain.AssetConditional:
		to = s.contracts.ConditionalTokens
		data, err = chain.SetApprovalForAllCalldata(spender)
	default:
		return common.Hash{}, domain.InvalidField("assetType", "unknown asset %q", asset)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("service/allowance: encode approval: %w", err)
	}

	hash, err := s.tx.Send(ctx, to, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("service/allowance: approve %s for %s: %w", asset, spender.Hex(), err)
	}
	return hash, nil
}

// sync is advisory. A failure is recorded on the asset and reported but
// never undoes the approval.
func (s *AllowanceService) sync(ctx context.Context, a *domain.AssetAllowance, syncer BalanceSyncer, tokenID string, sigType domain.SignatureType) {
	if syncer == nil {
		a.SyncError = domain.ErrInvalidCredentials.Error()
	} else if err := syncer.UpdateBalanceAllowance(ctx, a.AssetType, tokenID, sigType); err != nil {
		a.SyncError = err.Error()
	} else {
		a.State = domain.AllowanceSynced
		a.Synced = true
		return
	}

	s.logger.WarnContext(ctx, "allowance: balance sync failed",
		slog.String("asset", string(a.AssetType)),
		slog.String("error", a.SyncError),
	)
	s.notify(ctx, notify.EventSyncFailed, "Allowance sync failed",
		fmt.Sprintf("%s approved on-chain but exchange resync failed: %s", a.AssetType, a.SyncError))
}

func (s *AllowanceService) notify(ctx context.Context, event, title, message string) {
	if s.alert == nil {
		return
	}
	if err := s.alert.Notify(ctx, event, title, message); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "allowance: notify failed", slog.String("error", err.Error()))
	}
}
