package crypto

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

const (
	AuthDomainName    = "ClobAuthDomain"
	AuthDomainVersion = "1"
	// AuthMessage is the fixed attestation text inside every ClobAuth struct.
	AuthMessage = "This message attests that I control the given wallet"

	OrderDomainName    = "Polymarket CTF Exchange"
	OrderDomainVersion = "1"

	// PolygonChainID is the only chain the exchange settles on.
	PolygonChainID = 137
)

var (
	authDomainType = []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	}

	orderDomainType = []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}

	clobAuthType = []apitypes.Type{
		{Name: "address", Type: "address"},
		{Name: "timestamp", Type: "string"},
		{Name: "nonce", Type: "uint256"},
		{Name: "message", Type: "string"},
	}

	orderType = []apitypes.Type{
		{Name: "salt", Type: "uint256"},
		{Name: "maker", Type: "address"},
		{Name: "signer", Type: "address"},
		{Name: "taker", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "makerAmount", Type: "uint256"},
		{Name: "takerAmount", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "feeRateBps", Type: "uint256"},
		{Name: "side", Type: "uint8"},
		{Name: "signatureType", Type: "uint8"},
	}
)

// OrderMessage holds the twelve signed fields of an exchange order.
type OrderMessage struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

// AuthTypedData builds the ClobAuth typed data for address.
func AuthTypedData(chainID *big.Int, address common.Address, timestamp string, nonce int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": authDomainType,
			"ClobAuth":     clobAuthType,
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    AuthDomainName,
			Version: AuthDomainVersion,
			ChainId: (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"address":   address.Hex(),
			"timestamp": timestamp,
			"nonce":     strconv.FormatInt(nonce, 10),
			"message":   AuthMessage,
		},
	}
}

// OrderTypedData builds the Order typed data bound to verifyingContract.
func OrderTypedData(chainID *big.Int, verifyingContract common.Address, m OrderMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": orderDomainType,
			"Order":        orderType,
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              OrderDomainName,
			Version:           OrderDomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          m.Salt.String(),
			"maker":         m.Maker.Hex(),
			"signer":        m.Signer.Hex(),
			"taker":         m.Taker.Hex(),
			"tokenId":       m.TokenID.String(),
			"makerAmount":   m.MakerAmount.String(),
			"takerAmount":   m.TakerAmount.String(),
			"expiration":    m.Expiration.String(),
			"nonce":         m.Nonce.String(),
			"feeRateBps":    m.FeeRateBps.String(),
			"side":          strconv.Itoa(int(m.Side)),
			"signatureType": strconv.Itoa(int(m.SignatureType)),
		},
	}
}

// HashTypedData returns the EIP-712 digest keccak256("\x19\x01" ||
// domainSeparator || hashStruct(message)).
func HashTypedData(td apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: hash typed data: %w", err)
	}
	return hash, nil
}

// RecoverAddress returns the address that produced sig over hash. sig may
// carry v as 0/1 or 27/28.
func RecoverAddress(hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: signature length %d, want 65", len(sig))
	}
	norm := make([]byte, 65)
	copy(norm, sig)
	if norm[64] >= 27 {
		norm[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(hash, norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyTypedData checks that sig over td recovers to want.
func VerifyTypedData(td apitypes.TypedData, sig []byte, want common.Address) error {
	hash, err := HashTypedData(td)
	if err != nil {
		return err
	}
	got, err := RecoverAddress(hash, sig)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("crypto/signer: signature recovers to %s, want %s", got.Hex(), want.Hex())
	}
	return nil
}

// EncodeSignature renders a 65-byte signature as 0x-prefixed hex.
func EncodeSignature(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}

// DecodeSignature parses a 0x-prefixed hex signature.
func DecodeSignature(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	return b, nil
}

// TypedDataSigner produces ClobAuth and Order signatures through a
// SigningCapability, making sure the capability is on the right chain
// and holds the expected address first.
type TypedDataSigner struct {
	capability SigningCapability
	chainID    *big.Int
	now        func() time.Time
	logger     *slog.Logger
}

// NewTypedDataSigner creates a signer for chainID. capability may be nil, in
// which case every signing call fails with domain.ErrSignerUnavailable.
func NewTypedDataSigner(capability SigningCapability, chainID int64, logger *slog.Logger) *TypedDataSigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &TypedDataSigner{
		capability: capability,
		chainID:    big.NewInt(chainID),
		now:        time.Now,
		logger:     logger.With(slog.String("component", "typed_data_signer")),
	}
}

// ChainID returns the chain every domain is bound to.
func (s *TypedDataSigner) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// SignAuth signs a ClobAuth assertion for address with nonce 0 and the
// current unix time.
func (s *TypedDataSigner) SignAuth(ctx context.Context, address common.Address) (domain.AuthAssertion, error) {
	if err := s.ready(ctx, address); err != nil {
		return domain.AuthAssertion{}, err
	}

	ts := strconv.FormatInt(s.now().Unix(), 10)
	td := AuthTypedData(s.chainID, address, ts, 0)
	sig, err := s.capability.SignTypedData(ctx, td)
	if err != nil {
		return domain.AuthAssertion{}, fmt.Errorf("crypto/signer: sign auth: %w", err)
	}
	if err := VerifyTypedData(td, sig, address); err != nil {
		return domain.AuthAssertion{}, fmt.Errorf("%w: %v", domain.ErrAddressMismatch, err)
	}

	return domain.AuthAssertion{
		Address:   address.Hex(),
		Timestamp: ts,
		Nonce:     0,
		Signature: EncodeSignature(sig),
	}, nil
}

// SignOrder signs m for verifyingContract. The capability's active address
// must equal m.Signer, checked before any signature request is issued.
func (s *TypedDataSigner) SignOrder(ctx context.Context, m OrderMessage, verifyingContract common.Address) (apitypes.TypedData, []byte, error) {
	if err := s.ready(ctx, m.Signer); err != nil {
		return apitypes.TypedData{}, nil, err
	}

	td := OrderTypedData(s.chainID, verifyingContract, m)
	sig, err := s.capability.SignTypedData(ctx, td)
	if err != nil {
		return apitypes.TypedData{}, nil, fmt.Errorf("crypto/signer: sign order: %w", err)
	}
	return td, sig, nil
}

// ready checks address then chain, switching the capability's chain when
// it is elsewhere.
func (s *TypedDataSigner) ready(ctx context.Context, expected common.Address) error {
	if s.capability == nil {
		return domain.ErrSignerUnavailable
	}

	active, err := s.capability.ActiveAddress(ctx)
	if err != nil {
		return fmt.Errorf("crypto/signer: active address: %w", err)
	}
	if active != expected {
		return fmt.Errorf("%w: capability holds %s, order names %s",
			domain.ErrAddressMismatch, active.Hex(), expected.Hex())
	}

	current, err := s.capability.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("crypto/signer: chain id: %w", err)
	}
	if current.Cmp(s.chainID) == 0 {
		return nil
	}

	s.logger.InfoContext(ctx, "signer: switching chain",
		slog.String("from", current.String()),
		slog.String("to", s.chainID.String()),
	)
	if err := s.capability.SwitchChain(ctx, s.chainID); err != nil {
		if errors.Is(err, domain.ErrUserRejected) || errors.Is(err, domain.ErrWrongChain) {
			return fmt.Errorf("crypto/signer: switch chain: %w", err)
		}
		return fmt.Errorf("%w: switch to %s: %v", domain.ErrWrongChain, s.chainID, err)
	}

	current, err = s.capability.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("crypto/signer: chain id: %w", err)
	}
	if current.Cmp(s.chainID) != 0 {
		return fmt.Errorf("%w: still on %s after switch", domain.ErrWrongChain, current)
	}
	return nil
}
