package crypto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// EIP-1193 provider error codes.
const (
	rpcCodeUserRejected    = 4001
	rpcCodeUnauthorized    = 4100
	rpcCodeUnsupported     = 4200
	rpcCodeDisconnected    = 4900
	rpcCodeChainDisconnect = 4901
	rpcCodeUnknownChain    = 4902
)

// RPCCaller is the part of *rpc.Client the wallet needs.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// ExternalWallet signs through a JSON-RPC wallet endpoint that speaks the
// standard eth_accounts / eth_signTypedData_v4 methods.
type ExternalWallet struct {
	rpc RPCCaller
	// from pins the account when the wallet exposes several.
	from common.Address
}

// NewExternalWallet wraps an RPC connection. from may be the zero address,
// in which case the wallet's first account is used.
func NewExternalWallet(c RPCCaller, from common.Address) *ExternalWallet {
	return &ExternalWallet{rpc: c, from: from}
}

// DialExternalWallet connects to a wallet RPC endpoint.
func DialExternalWallet(ctx context.Context, url string, from common.Address) (*ExternalWallet, *rpc.Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto/wallet: dial %s: %w: %v", url, domain.ErrSignerUnavailable, err)
	}
	return NewExternalWallet(c, from), c, nil
}

func (w *ExternalWallet) ActiveAddress(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := w.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, classifyRPCError("eth_accounts", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("crypto/wallet: %w: no unlocked accounts", domain.ErrSignerUnavailable)
	}
	if w.from == (common.Address{}) {
		return accounts[0], nil
	}
	for _, a := range accounts {
		if a == w.from {
			return a, nil
		}
	}
	return accounts[0], nil
}

func (w *ExternalWallet) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := w.rpc.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, classifyRPCError("eth_chainId", err)
	}
	return id.ToInt(), nil
}

func (w *ExternalWallet) SwitchChain(ctx context.Context, chainID *big.Int) error {
	param := map[string]string{"chainId": hexutil.EncodeBig(chainID)}
	if err := w.rpc.CallContext(ctx, nil, "wallet_switchEthereumChain", param); err != nil {
		return classifyRPCError("wallet_switchEthereumChain", err)
	}
	return nil
}

// SignTypedData sends td as JSON to eth_signTypedData_v4 and normalises v
// to 27/28.
func (w *ExternalWallet) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	from, err := w.ActiveAddress(ctx)
	if err != nil {
		return nil, err
	}
	// Domain.Map drops empty optional fields such as salt.
	payload, err := json.Marshal(map[string]any{
		"types":       td.Types,
		"primaryType": td.PrimaryType,
		"domain":      td.Domain.Map(),
		"message":     td.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("crypto/wallet: marshal typed data: %w", err)
	}

	var sig hexutil.Bytes
	if err := w.rpc.CallContext(ctx, &sig, "eth_signTypedData_v4", from, string(payload)); err != nil {
		return nil, classifyRPCError("eth_signTypedData_v4", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("crypto/wallet: %w: signature length %d", domain.ErrSignerRejected, len(sig))
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// classifyRPCError maps wallet errors onto the domain taxonomy. Errors that
// carry no JSON-RPC code are transport failures.
func classifyRPCError(method string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("crypto/wallet: %s: %w", method, err)
	}

	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return fmt.Errorf("crypto/wallet: %s: %w: %v", method, domain.ErrSignerUnavailable, err)
	}

	switch rpcErr.ErrorCode() {
	case rpcCodeUserRejected:
		return fmt.Errorf("crypto/wallet: %s: %w", method, domain.ErrUserRejected)
	case rpcCodeUnknownChain:
		return fmt.Errorf("crypto/wallet: %s: %w: %s", method, domain.ErrWrongChain, rpcErr.Error())
	case rpcCodeDisconnected, rpcCodeChainDisconnect:
		return fmt.Errorf("crypto/wallet: %s: %w: %s", method, domain.ErrSignerUnavailable, rpcErr.Error())
	case rpcCodeUnauthorized, rpcCodeUnsupported:
		return fmt.Errorf("crypto/wallet: %s: %w: %s", method, domain.ErrSignerRejected, rpcErr.Error())
	}
	if strings.Contains(strings.ToLower(rpcErr.Error()), "user denied") {
		return fmt.Errorf("crypto/wallet: %s: %w", method, domain.ErrUserRejected)
	}
	return fmt.Errorf("crypto/wallet: %s: %w: %s", method, domain.ErrSignerRejected, rpcErr.Error())
}
