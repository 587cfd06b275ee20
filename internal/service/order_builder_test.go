package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/chain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

const (
	testKeyHex  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubNonces struct {
	nonce *big.Int
	calls int
}

func (s *stubNonces) ResolveNonce(context.Context, common.Address) *big.Int {
	s.calls++
	return new(big.Int).Set(s.nonce)
}

// countingSigner records calls and optionally signs for a different
// contract than requested.
type countingSigner struct {
	inner    OrderSigner
	calls    int
	redirect *common.Address
}

func (c *countingSigner) SignOrder(ctx context.Context, m crypto.OrderMessage, vc common.Address) (apitypes.TypedData, []byte, error) {
	c.calls++
	if c.redirect != nil {
		vc = *c.redirect
	}
	return c.inner.SignOrder(ctx, m, vc)
}

func newTestBuilder(t *testing.T) (*OrderBuilder, *stubNonces, *countingSigner) {
	t.Helper()
	key, err := crypto.NewLocalKey(testKeyHex, crypto.PolygonChainID)
	require.NoError(t, err)

	nonces := &stubNonces{nonce: big.NewInt(7)}
	signer := &countingSigner{inner: crypto.NewTypedDataSigner(key, crypto.PolygonChainID, discardLogger())}
	salts := crypto.NewFixedSaltSource(
		func() float64 { return 0.5 },
		func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	)
	return NewOrderBuilder(nonces, signer, salts, chain.PolygonContracts(), discardLogger()), nonces, signer
}

func baseIntent() domain.OrderIntent {
	return domain.OrderIntent{
		TokenID: "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		Side:    domain.OrderSideBuy,
		Price:   decimal.RequireFromString("0.50"),
		Size:    decimal.RequireFromString("100"),
		Maker:   testAddress,
		Signer:  testAddress,
	}
}

func TestBuildSignedOrderBuyScenario(t *testing.T) {
	b, nonces, _ := newTestBuilder(t)

	order, err := b.BuildSignedOrder(context.Background(), baseIntent())
	require.NoError(t, err)

	assert.Equal(t, "50000000", order.MakerAmount)
	assert.Equal(t, "100000000", order.TakerAmount)
	assert.Equal(t, "850000000000", order.Salt)
	assert.Equal(t, "7", order.Nonce)
	assert.Equal(t, "0", order.Expiration)
	assert.Equal(t, "0", order.FeeRateBps)
	assert.Equal(t, common.Address{}.Hex(), order.Taker)
	assert.Equal(t, domain.OrderTypeGTC, order.OrderType)
	assert.Equal(t, common.HexToAddress(chain.ExchangeAddress).Hex(), order.VerifyingContract)
	assert.Equal(t, 1, nonces.calls)
	assert.Len(t, order.Signature, 132)
}

func TestBuildSignedOrderSellScenario(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	in := baseIntent()
	in.Side = domain.OrderSideSell
	in.Price = decimal.RequireFromString("0.33")
	in.Size = decimal.RequireFromString("10")

	order, err := b.BuildSignedOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "10000000", order.MakerAmount)
	assert.Equal(t, "3300000", order.TakerAmount)
	assert.Equal(t, domain.OrderSideSell, order.Side)
}

func TestBuildSignedOrderNegRiskSelectsExchange(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	in := baseIntent()
	in.NegRisk = true

	order, err := b.BuildSignedOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(chain.NegRiskExchangeAddress).Hex(), order.VerifyingContract)
	assert.True(t, order.NegRisk)
}

func TestBuildSignedOrderSignatureRecovers(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	order, err := b.BuildSignedOrder(context.Background(), baseIntent())
	require.NoError(t, err)

	parse := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok, s)
		return v
	}
	msg := crypto.OrderMessage{
		Salt:          parse(order.Salt),
		Maker:         common.HexToAddress(order.Maker),
		Signer:        common.HexToAddress(order.Signer),
		Taker:         common.HexToAddress(order.Taker),
		TokenID:       parse(order.TokenID),
		MakerAmount:   parse(order.MakerAmount),
		TakerAmount:   parse(order.TakerAmount),
		Expiration:    parse(order.Expiration),
		Nonce:         parse(order.Nonce),
		FeeRateBps:    parse(order.FeeRateBps),
		Side:          order.Side.Uint8(),
		SignatureType: uint8(order.SignatureType),
	}
	td := crypto.OrderTypedData(big.NewInt(crypto.PolygonChainID), common.HexToAddress(order.VerifyingContract), msg)
	sig, err := crypto.DecodeSignature(order.Signature)
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyTypedData(td, sig, common.HexToAddress(testAddress)))
}

func TestBuildSignedOrderDecimalStringsRoundTrip(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	in := baseIntent()
	in.FeeRateBps = 1000
	in.OrderType = domain.OrderTypeGTD
	in.Expiration = 1_900_000_000

	order, err := b.BuildSignedOrder(context.Background(), in)
	require.NoError(t, err)

	for name, s := range map[string]string{
		"salt": order.Salt, "makerAmount": order.MakerAmount, "takerAmount": order.TakerAmount,
		"nonce": order.Nonce, "feeRateBps": order.FeeRateBps, "expiration": order.Expiration,
	} {
		v, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok, name)
		assert.Equal(t, s, v.String(), name)
	}
	salt, err := strconv.ParseFloat(order.Salt, 64)
	require.NoError(t, err)
	assert.Equal(t, order.Salt, strconv.FormatFloat(salt, 'f', -1, 64))
}

func TestBuildSignedOrderValidation(t *testing.T) {
	other := "0x0000000000000000000000000000000000000001"
	cases := []struct {
		name  string
		field string
		edit  func(*domain.OrderIntent)
	}{
		{"empty token", "tokenId", func(in *domain.OrderIntent) { in.TokenID = "" }},
		{"hex token", "tokenId", func(in *domain.OrderIntent) { in.TokenID = "0xabc" }},
		{"negative token", "tokenId", func(in *domain.OrderIntent) { in.TokenID = "-1" }},
		{"bad side", "side", func(in *domain.OrderIntent) { in.Side = "HOLD" }},
		{"zero price", "price", func(in *domain.OrderIntent) { in.Price = decimal.Zero }},
		{"price above one", "price", func(in *domain.OrderIntent) { in.Price = decimal.RequireFromString("1.01") }},
		{"zero size", "size", func(in *domain.OrderIntent) { in.Size = decimal.Zero }},
		{"tiny size", "size", func(in *domain.OrderIntent) { in.Size = decimal.RequireFromString("0.001") }},
		{"tiny sell size", "size", func(in *domain.OrderIntent) {
			in.Side = domain.OrderSideSell
			in.Size = decimal.RequireFromString("0.004")
		}},
		{"tiny notional", "price", func(in *domain.OrderIntent) {
			in.Price = decimal.RequireFromString("0.001")
			in.Size = decimal.RequireFromString("0.05")
		}},
		{"off tick", "price", func(in *domain.OrderIntent) {
			in.TickSize = decimal.RequireFromString("0.01")
			in.Price = decimal.RequireFromString("0.505")
		}},
		{"bad maker", "maker", func(in *domain.OrderIntent) { in.Maker = "0x123" }},
		{"bad signer", "signer", func(in *domain.OrderIntent) { in.Signer = "nope" }},
		{"eoa maker differs", "maker", func(in *domain.OrderIntent) { in.Maker = other }},
		{"bad signature type", "signatureType", func(in *domain.OrderIntent) { in.SignatureType = 9 }},
		{"bad order type", "orderType", func(in *domain.OrderIntent) { in.OrderType = "IOC" }},
		{"expiration on gtc", "expiration", func(in *domain.OrderIntent) { in.Expiration = 1 }},
		{"gtd without expiration", "expiration", func(in *domain.OrderIntent) { in.OrderType = domain.OrderTypeGTD }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, nonces, signer := newTestBuilder(t)
			in := baseIntent()
			tc.edit(&in)

			_, err := b.BuildSignedOrder(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrInvalidParameters)
			var fe *domain.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.field, fe.Field)
			assert.Zero(t, nonces.calls, "nonce lookup before validation passed")
			assert.Zero(t, signer.calls, "signature requested before validation passed")
		})
	}
}

func TestBuildSignedOrderNormalisesSide(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	in := baseIntent()
	in.Side = "sell"
	in.Price = decimal.RequireFromString("0.33")
	in.Size = decimal.RequireFromString("10")

	order, err := b.BuildSignedOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSideSell, order.Side)
	assert.Equal(t, uint8(1), order.Side.Uint8())
	assert.Equal(t, "10000000", order.MakerAmount)
	assert.Equal(t, "3300000", order.TakerAmount)
}

func TestBuildSignedOrderProxyMakerAllowed(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	in := baseIntent()
	in.SignatureType = domain.SignatureTypeGnosisSafe
	in.Maker = "0x0000000000000000000000000000000000000abc"

	order, err := b.BuildSignedOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(in.Maker).Hex(), order.Maker)
	assert.Equal(t, common.HexToAddress(testAddress).Hex(), order.Signer)
}

func TestBuildSignedOrderAddressMismatch(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	in := baseIntent()
	in.SignatureType = domain.SignatureTypePolyProxy
	in.Signer = "0x0000000000000000000000000000000000000abc"

	_, err := b.BuildSignedOrder(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrAddressMismatch)
}

func TestBuildSignedOrderWrongDomainFailsClosed(t *testing.T) {
	b, _, signer := newTestBuilder(t)
	wrong := common.HexToAddress(chain.NegRiskExchangeAddress)
	signer.redirect = &wrong

	_, err := b.BuildSignedOrder(context.Background(), baseIntent())
	assert.ErrorIs(t, err, domain.ErrProtocolMismatch)
}
