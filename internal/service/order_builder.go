package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/amount"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/chain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// NonceSource returns the exchange nonce for a maker. It never fails.
type NonceSource interface {
	ResolveNonce(ctx context.Context, maker common.Address) *big.Int
}

// OrderSigner produces the EIP-712 order signature.
type OrderSigner interface {
	SignOrder(ctx context.Context, m crypto.OrderMessage, verifyingContract common.Address) (apitypes.TypedData, []byte, error)
}

// SaltGenerator yields order salts.
type SaltGenerator interface {
	Next() *big.Int
}

var one = decimal.NewFromInt(1)

// OrderBuilder turns an OrderIntent into a SignedOrder:
// validate, compute amounts, resolve nonce, select domain, sign, verify.
type OrderBuilder struct {
	nonces    NonceSource
	signer    OrderSigner
	salts     SaltGenerator
	contracts chain.Contracts
	logger    *slog.Logger
}

// NewOrderBuilder wires an OrderBuilder. A nil salts uses crypto.NewSaltSource.
func NewOrderBuilder(nonces NonceSource, signer OrderSigner, salts SaltGenerator, contracts chain.Contracts, logger *slog.Logger) *OrderBuilder {
	if salts == nil {
		salts = crypto.NewSaltSource()
	}
	return &OrderBuilder{
		nonces:    nonces,
		signer:    signer,
		salts:     salts,
		contracts: contracts,
		logger:    logger.With(slog.String("component", "order_builder")),
	}
}

// validIntent is an OrderIntent after parsing.
type validIntent struct {
	tokenID   *big.Int
	side      domain.OrderSide
	maker     common.Address
	signer    common.Address
	orderType domain.OrderType
}

// validate checks every intent field without touching the network.
func validate(in domain.OrderIntent) (validIntent, error) {
	var v validIntent

	tokenID, ok := new(big.Int).SetString(in.TokenID, 10)
	if in.TokenID == "" || !ok || tokenID.Sign() < 0 {
		return v, domain.InvalidField("tokenId", "must be a non-negative base-10 integer, got %q", in.TokenID)
	}
	if tokenID.BitLen() > 256 {
		return v, domain.InvalidField("tokenId", "exceeds 256 bits")
	}
	v.tokenID = tokenID

	side, ok := domain.ParseOrderSide(string(in.Side))
	if !ok {
		return v, domain.InvalidField("side", "must be BUY or SELL, got %q", in.Side)
	}
	v.side = side
	if !in.Price.IsPositive() || in.Price.GreaterThan(one) {
		return v, domain.InvalidField("price", "must be in (0, 1], got %s", in.Price)
	}
	if !in.Size.IsPositive() {
		return v, domain.InvalidField("size", "must be positive, got %s", in.Size)
	}
	if err := amount.OnTick(in.Price, in.TickSize); err != nil {
		return v, domain.InvalidField("price", "%v", err)
	}

	if !common.IsHexAddress(in.Maker) {
		return v, domain.InvalidField("maker", "invalid address %q", in.Maker)
	}
	if !common.IsHexAddress(in.Signer) {
		return v, domain.InvalidField("signer", "invalid address %q", in.Signer)
	}
	v.maker = common.HexToAddress(in.Maker)
	v.signer = common.HexToAddress(in.Signer)

	if !in.SignatureType.Valid() {
		return v, domain.InvalidField("signatureType", "unknown signature type %d", in.SignatureType)
	}
	if in.SignatureType == domain.SignatureTypeEOA && v.maker != v.signer {
		return v, domain.InvalidField("maker", "EOA orders require maker == signer")
	}

	v.orderType = in.OrderType
	if v.orderType == "" {
		v.orderType = domain.OrderTypeGTC
	}
	if !v.orderType.Valid() {
		return v, domain.InvalidField("orderType", "unknown order type %q", in.OrderType)
	}
	if in.Expiration < 0 {
		return v, domain.InvalidField("expiration", "must not be negative")
	}
	if v.orderType == domain.OrderTypeGTD && in.Expiration == 0 {
		return v, domain.InvalidField("expiration", "GTD orders need an expiration")
	}
	if v.orderType != domain.OrderTypeGTD && in.Expiration != 0 {
		return v, domain.InvalidField("expiration", "must be 0 for %s orders", v.orderType)
	}
	return v, nil
}

// BuildSignedOrder runs the full pipeline. Validation failures return a
// *domain.FieldError before any nonce lookup or signature request.
func (b *OrderBuilder) BuildSignedOrder(ctx context.Context, in domain.OrderIntent) (domain.SignedOrder, error) {
	v, err := validate(in)
	if err != nil {
		return domain.SignedOrder{}, err
	}

	// Amounts are pure, so a size or price that truncates to zero is
	// rejected before the nonce lookup.
	amounts, err := amount.ComputeAmounts(v.side, in.Price, in.Size)
	if err != nil {
		return domain.SignedOrder{}, err
	}
	if err := checkLegs(v.side, amounts, in); err != nil {
		return domain.SignedOrder{}, err
	}

	nonce := b.nonces.ResolveNonce(ctx, v.maker)

	exchange := b.contracts.ExchangeFor(in.NegRisk)

	msg := crypto.OrderMessage{
		Salt:          b.salts.Next(),
		Maker:         v.maker,
		Signer:        v.signer,
		Taker:         common.Address{},
		TokenID:       v.tokenID,
		MakerAmount:   amounts.MakerAmount,
		TakerAmount:   amounts.TakerAmount,
		Expiration:    big.NewInt(in.Expiration),
		Nonce:         nonce,
		FeeRateBps:    new(big.Int).SetUint64(in.FeeRateBps),
		Side:          v.side.Uint8(),
		SignatureType: uint8(in.SignatureType),
	}

	td, sig, err := b.signer.SignOrder(ctx, msg, exchange)
	if err != nil {
		return domain.SignedOrder{}, fmt.Errorf("service/order_builder: %w", err)
	}
	if err := b.verify(td, sig, v.signer, exchange); err != nil {
		b.logger.ErrorContext(ctx, "order_builder: signature verification failed",
			slog.String("signer", v.signer.Hex()),
			slog.String("exchange", exchange.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.SignedOrder{}, err
	}

	b.logger.DebugContext(ctx, "order_builder: order signed",
		slog.String("maker", v.maker.Hex()),
		slog.String("side", string(v.side)),
		slog.String("nonce", nonce.String()),
		slog.Bool("neg_risk", in.NegRisk),
	)

	return domain.SignedOrder{
		Salt:              msg.Salt.String(),
		Maker:             v.maker.Hex(),
		Signer:            v.signer.Hex(),
		Taker:             msg.Taker.Hex(),
		TokenID:           v.tokenID.String(),
		MakerAmount:       msg.MakerAmount.String(),
		TakerAmount:       msg.TakerAmount.String(),
		Expiration:        msg.Expiration.String(),
		Nonce:             nonce.String(),
		FeeRateBps:        msg.FeeRateBps.String(),
		Side:              v.side,
		SignatureType:     in.SignatureType,
		Signature:         crypto.EncodeSignature(sig),
		VerifyingContract: exchange.Hex(),
		NegRisk:           in.NegRisk,
		OrderType:         v.orderType,
	}, nil
}

// checkLegs refuses orders whose quantity or notional floors to zero.
func checkLegs(side domain.OrderSide, a domain.ComputedAmounts, in domain.OrderIntent) error {
	qty, notional := a.TakerAmount, a.MakerAmount
	if side == domain.OrderSideSell {
		qty, notional = a.MakerAmount, a.TakerAmount
	}
	if qty.Sign() == 0 {
		return domain.InvalidField("size", "%s truncates to zero at 2 decimals", in.Size)
	}
	if notional.Sign() == 0 {
		return domain.InvalidField("price", "notional %s x %s truncates to zero", in.Size, in.Price)
	}
	return nil
}

// verify fails closed when the typed data was not bound to exchange or the
// signature does not recover to signer.
func (b *OrderBuilder) verify(td apitypes.TypedData, sig []byte, signer, exchange common.Address) error {
	if !common.IsHexAddress(td.Domain.VerifyingContract) || common.HexToAddress(td.Domain.VerifyingContract) != exchange {
		return fmt.Errorf("%w: signed domain %q, expected %s",
			domain.ErrProtocolMismatch, td.Domain.VerifyingContract, exchange.Hex())
	}
	if err := crypto.VerifyTypedData(td, sig, signer); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProtocolMismatch, err)
	}
	return nil
}
