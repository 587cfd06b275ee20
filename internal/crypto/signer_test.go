package crypto

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	ctfExchange     = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	negRiskExchange = common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a")
)

func testMessage(signer common.Address) OrderMessage {
	return OrderMessage{
		Salt:          big.NewInt(479249096354),
		Maker:         signer,
		Signer:        signer,
		Taker:         common.Address{},
		TokenID:       mustBig("71321045679252212594626385532706912750332728571942532289631379312455583992563"),
		MakerAmount:   big.NewInt(50_000_000),
		TakerAmount:   big.NewInt(100_000_000),
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		Side:          0,
		SignatureType: 0,
	}
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int " + s)
	}
	return n
}

// Hand-rolled EIP-712 encoding, used to pin the apitypes schema.
func word(b []byte) []byte        { return common.LeftPadBytes(b, 32) }
func u256(x *big.Int) []byte      { return math.U256Bytes(new(big.Int).Set(x)) }
func addr(a common.Address) []byte { return word(a.Bytes()) }
func kstr(s string) []byte        { return ethcrypto.Keccak256([]byte(s)) }

func manualOrderDigest(chainID *big.Int, contract common.Address, m OrderMessage) []byte {
	domainSep := ethcrypto.Keccak256(
		kstr("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
		kstr(OrderDomainName),
		kstr(OrderDomainVersion),
		u256(chainID),
		addr(contract),
	)
	structHash := ethcrypto.Keccak256(
		kstr("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
		u256(m.Salt),
		addr(m.Maker),
		addr(m.Signer),
		addr(m.Taker),
		u256(m.TokenID),
		u256(m.MakerAmount),
		u256(m.TakerAmount),
		u256(m.Expiration),
		u256(m.Nonce),
		u256(m.FeeRateBps),
		u256(big.NewInt(int64(m.Side))),
		u256(big.NewInt(int64(m.SignatureType))),
	)
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
}

func manualAuthDigest(chainID *big.Int, a common.Address, ts string) []byte {
	domainSep := ethcrypto.Keccak256(
		kstr("EIP712Domain(string name,string version,uint256 chainId)"),
		kstr(AuthDomainName),
		kstr(AuthDomainVersion),
		u256(chainID),
	)
	structHash := ethcrypto.Keccak256(
		kstr("ClobAuth(address address,string timestamp,uint256 nonce,string message)"),
		addr(a),
		kstr(ts),
		u256(big.NewInt(0)),
		kstr(AuthMessage),
	)
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
}

func TestOrderHashMatchesManualEncoding(t *testing.T) {
	key, err := NewLocalKey(testKeyHex, PolygonChainID)
	require.NoError(t, err)
	chain := big.NewInt(PolygonChainID)
	m := testMessage(key.Address())

	for _, contract := range []common.Address{ctfExchange, negRiskExchange} {
		got, err := HashTypedData(OrderTypedData(chain, contract, m))
		require.NoError(t, err)
		assert.Equal(t, manualOrderDigest(chain, contract, m), got, "contract %s", contract.Hex())
	}
}

func TestOrderHashDependsOnVerifyingContract(t *testing.T) {
	chain := big.NewInt(PolygonChainID)
	m := testMessage(common.HexToAddress("0x00000000000000000000000000000000000000aa"))

	a, err := HashTypedData(OrderTypedData(chain, ctfExchange, m))
	require.NoError(t, err)
	b, err := HashTypedData(OrderTypedData(chain, negRiskExchange, m))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAuthHashMatchesManualEncoding(t *testing.T) {
	a := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	chain := big.NewInt(PolygonChainID)

	got, err := HashTypedData(AuthTypedData(chain, a, "1700000000", 0))
	require.NoError(t, err)
	assert.Equal(t, manualAuthDigest(chain, a, "1700000000"), got)
}

func TestLocalKeySignatureRecovers(t *testing.T) {
	key, err := NewLocalKey("0x"+testKeyHex, PolygonChainID)
	require.NoError(t, err)
	td := OrderTypedData(big.NewInt(PolygonChainID), ctfExchange, testMessage(key.Address()))

	sig, err := key.SignTypedData(context.Background(), td)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])
	require.NoError(t, VerifyTypedData(td, sig, key.Address()))

	assert.Error(t, VerifyTypedData(td, sig, common.HexToAddress("0x01")))
}

type fakeCapability struct {
	address   common.Address
	chain     *big.Int
	switchErr error
	signer    *LocalKey
	signCalls int
	switches  int
}

func (f *fakeCapability) ActiveAddress(context.Context) (common.Address, error) { return f.address, nil }
func (f *fakeCapability) ChainID(context.Context) (*big.Int, error)           { return f.chain, nil }

func (f *fakeCapability) SwitchChain(_ context.Context, id *big.Int) error {
	f.switches++
	if f.switchErr != nil {
		return f.switchErr
	}
	f.chain = id
	return nil
}

func (f *fakeCapability) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	f.signCalls++
	return f.signer.SignTypedData(ctx, td)
}

func newFake(t *testing.T, chain int64) *fakeCapability {
	t.Helper()
	key, err := NewLocalKey(testKeyHex, PolygonChainID)
	require.NoError(t, err)
	return &fakeCapability{address: key.Address(), chain: big.NewInt(chain), signer: key}
}

func TestSignOrderAddressMismatchBeforeSigning(t *testing.T) {
	fake := newFake(t, PolygonChainID)
	s := NewTypedDataSigner(fake, PolygonChainID, nil)

	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	_, _, err := s.SignOrder(context.Background(), testMessage(other), ctfExchange)

	require.ErrorIs(t, err, domain.ErrAddressMismatch)
	assert.Zero(t, fake.signCalls)
	assert.Zero(t, fake.switches)
}

func TestSignOrderSwitchesChain(t *testing.T) {
	fake := newFake(t, 1)
	s := NewTypedDataSigner(fake, PolygonChainID, nil)

	td, sig, err := s.SignOrder(context.Background(), testMessage(fake.address), negRiskExchange)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.switches)
	assert.Equal(t, negRiskExchange.Hex(), td.Domain.VerifyingContract)
	require.NoError(t, VerifyTypedData(td, sig, fake.address))
}

func TestSignOrderWrongChain(t *testing.T) {
	tests := []struct {
		name      string
		switchErr error
		want      error
	}{
		{"switch unsupported", errors.New("method not found"), domain.ErrWrongChain},
		{"user declined switch", domain.ErrUserRejected, domain.ErrUserRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake(t, 1)
			fake.switchErr = tt.switchErr
			s := NewTypedDataSigner(fake, PolygonChainID, nil)

			_, _, err := s.SignOrder(context.Background(), testMessage(fake.address), ctfExchange)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, fake.signCalls)
		})
	}
}

func TestSignAuth(t *testing.T) {
	fake := newFake(t, PolygonChainID)
	s := NewTypedDataSigner(fake, PolygonChainID, nil)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	a, err := s.SignAuth(context.Background(), fake.address)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", a.Timestamp)
	assert.Equal(t, int64(0), a.Nonce)
	assert.Equal(t, fake.address.Hex(), a.Address)

	sig, err := DecodeSignature(a.Signature)
	require.NoError(t, err)
	got, err := RecoverAddress(manualAuthDigest(big.NewInt(PolygonChainID), fake.address, "1700000000"), sig)
	require.NoError(t, err)
	assert.Equal(t, fake.address, got)

	h := L1Headers(a)
	assert.Equal(t, "0", h["POLY_NONCE"])
	assert.Equal(t, a.Signature, h["POLY_SIGNATURE"])
}

func TestSignWithoutCapability(t *testing.T) {
	s := NewTypedDataSigner(nil, PolygonChainID, nil)
	_, err := s.SignAuth(context.Background(), common.HexToAddress("0x01"))
	assert.ErrorIs(t, err, domain.ErrSignerUnavailable)
}

func TestSaltSourceBounded(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := NewFixedSaltSource(func() float64 { return 0.5 }, func() time.Time { return now })
	assert.Equal(t, "850000000000", s.Next().String())

	live := NewSaltSource()
	limit := new(big.Int).Lsh(big.NewInt(1), 53)
	for i := 0; i < 100; i++ {
		v := live.Next()
		assert.True(t, v.Sign() >= 0)
		assert.True(t, v.Cmp(limit) < 0)
	}
}
