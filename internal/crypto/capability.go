package crypto

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SigningCapability is anything that can hold an address and sign EIP-712
// typed data on behalf of it: a local key or an external wallet.
type SigningCapability interface {
	ActiveAddress(ctx context.Context) (common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
}

// LocalKey signs with an in-process secp256k1 key. A local key is not tied
// to a chain, so SwitchChain only records the requested id.
type LocalKey struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu      sync.RWMutex
	chainID *big.Int
}

// NewLocalKey parses a hex-encoded private key (with or without 0x).
func NewLocalKey(privateKeyHex string, chainID int64) (*LocalKey, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/capability: invalid private key: %w", err)
	}
	return &LocalKey{
		key:     pk,
		address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

// Address returns the key's address without a context.
func (k *LocalKey) Address() common.Address { return k.address }

// PrivateKey exposes the key for transaction signing.
func (k *LocalKey) PrivateKey() *ecdsa.PrivateKey { return k.key }

func (k *LocalKey) ActiveAddress(context.Context) (common.Address, error) {
	return k.address, nil
}

func (k *LocalKey) ChainID(context.Context) (*big.Int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return new(big.Int).Set(k.chainID), nil
}

func (k *LocalKey) SwitchChain(_ context.Context, chainID *big.Int) error {
	k.mu.Lock()
	k.chainID = new(big.Int).Set(chainID)
	k.mu.Unlock()
	return nil
}

// SignTypedData hashes td and signs the digest. v is returned as 27 or 28.
func (k *LocalKey) SignTypedData(_ context.Context, td apitypes.TypedData) ([]byte, error) {
	hash, err := HashTypedData(td)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(hash, k.key)
	if err != nil {
		return nil, fmt.Errorf("crypto/capability: sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
