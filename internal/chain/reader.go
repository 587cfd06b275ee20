package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

const erc20ABIJSON = `[
 {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function","stateMutability":"view"},
 {"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function","stateMutability":"view"},
 {"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function","stateMutability":"nonpayable"}
]`

const erc1155ABIJSON = `[
 {"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function","stateMutability":"view"},
 {"inputs":[{"name":"account","type":"address"},{"name":"operator","type":"address"}],"name":"isApprovedForAll","outputs":[{"name":"","type":"bool"}],"type":"function","stateMutability":"view"},
 {"inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"name":"setApprovalForAll","outputs":[],"type":"function","stateMutability":"nonpayable"}
]`

var (
	// ERC20ABI covers balanceOf, allowance and approve.
	ERC20ABI = mustABI(erc20ABIJSON)
	// ERC1155ABI covers balanceOf, isApprovedForAll and setApprovalForAll.
	ERC1155ABI = mustABI(erc1155ABIJSON)

	// MaxUint256 is the unlimited approval amount.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}

// Caller is the read side of an Ethereum client.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader performs view calls against token contracts.
type Reader struct {
	caller Caller
}

// NewReader wraps a contract caller such as *ethclient.Client.
func NewReader(caller Caller) *Reader {
	return &Reader{caller: caller}
}

func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain/reader: pack %s: %w", method, err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain/reader: %s on %s: %w: %v", method, to.Hex(), domain.ErrNetworkDegraded, err)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain/reader: unpack %s: %w: %v", method, domain.ErrProtocolMismatch, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("chain/reader: %s returned %d values: %w", method, len(values), domain.ErrProtocolMismatch)
	}
	return values, nil
}

func (r *Reader) callUint(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	values, err := r.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain/reader: %s: unexpected %T: %w", method, values[0], domain.ErrProtocolMismatch)
	}
	return n, nil
}

// TokenBalance returns the ERC-20 balance of owner.
func (r *Reader) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return r.callUint(ctx, ERC20ABI, token, "balanceOf", owner)
}

// Allowance returns how much spender may pull from owner.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return r.callUint(ctx, ERC20ABI, token, "allowance", owner, spender)
}

// PositionBalance returns the ERC-1155 balance of owner for tokenID.
func (r *Reader) PositionBalance(ctx context.Context, ctf, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	return r.callUint(ctx, ERC1155ABI, ctf, "balanceOf", owner, tokenID)
}

// IsApprovedForAll reports whether operator may move all of owner's
// ERC-1155 positions.
func (r *Reader) IsApprovedForAll(ctx context.Context, ctf, owner, operator common.Address) (bool, error) {
	values, err := r.call(ctx, ERC1155ABI, ctf, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	ok, isBool := values[0].(bool)
	if !isBool {
		return false, fmt.Errorf("chain/reader: isApprovedForAll: unexpected %T: %w", values[0], domain.ErrProtocolMismatch)
	}
	return ok, nil
}

// ApproveCalldata encodes approve(spender, MaxUint256).
func ApproveCalldata(spender common.Address) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, MaxUint256)
}

// SetApprovalForAllCalldata encodes setApprovalForAll(operator, true).
func SetApprovalForAllCalldata(operator common.Address) ([]byte, error) {
	return ERC1155ABI.Pack("setApprovalForAll", operator, true)
}
