package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// Transactor sends a contract call from a fixed account and returns the
// transaction hash.
type Transactor interface {
	From() common.Address
	Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// TxBackend is the write side of *ethclient.Client used by LocalTransactor.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// LocalTransactor signs EIP-1559 transactions with an in-process key.
type LocalTransactor struct {
	backend TxBackend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// NewLocalTransactor creates a transactor for key on chainID.
func NewLocalTransactor(backend TxBackend, key *ecdsa.PrivateKey, chainID int64) *LocalTransactor {
	return &LocalTransactor{
		backend: backend,
		key:     key,
		from:    ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}
}

func (t *LocalTransactor) From() common.Address { return t.from }

func (t *LocalTransactor) Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain/transactor: pending nonce: %w: %v", domain.ErrNetworkDegraded, err)
	}
	tip, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain/transactor: gas tip: %w: %v", domain.ErrNetworkDegraded, err)
	}
	head, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain/transactor: head: %w: %v", domain.ErrNetworkDegraded, err)
	}
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain/transactor: estimate gas: %w", err)
	}

	// feeCap = 2*baseFee + tip
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas + gas/5,
		To:        &to,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain/transactor: sign tx: %w: %v", domain.ErrSignerRejected, err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("chain/transactor: send: %w: %v", domain.ErrNetworkDegraded, err)
	}
	return signed.Hash(), nil
}

// RPCCaller is the part of *rpc.Client the wallet transactor needs.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// WalletTransactor asks an external wallet to build, sign and broadcast
// the transaction through eth_sendTransaction.
type WalletTransactor struct {
	rpc  RPCCaller
	from common.Address
}

// NewWalletTransactor creates a transactor for the wallet account from.
func NewWalletTransactor(c RPCCaller, from common.Address) *WalletTransactor {
	return &WalletTransactor{rpc: c, from: from}
}

func (t *WalletTransactor) From() common.Address { return t.from }

func (t *WalletTransactor) Send(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	req := map[string]any{
		"from": t.from,
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var hash common.Hash
	if err := t.rpc.CallContext(ctx, &hash, "eth_sendTransaction", req); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 4001 {
			return common.Hash{}, fmt.Errorf("chain/transactor: eth_sendTransaction: %w", domain.ErrUserRejected)
		}
		return common.Hash{}, fmt.Errorf("chain/transactor: eth_sendTransaction: %w: %v", domain.ErrSignerRejected, err)
	}
	return hash, nil
}

// ReceiptSource fetches receipts; *ethclient.Client satisfies it.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitMined polls for the receipt of hash until it is mined, ctx ends or
// timeout elapses. A reverted receipt returns domain.ErrTxReverted.
func WaitMined(ctx context.Context, src ReceiptSource, hash common.Hash, poll, timeout time.Duration) (*types.Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if poll <= 0 {
		poll = 2 * time.Second
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		receipt, err := src.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("chain/transactor: %s: %w", hash.Hex(), domain.ErrTxReverted)
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			if ctx.Err() != nil {
				return nil, fmt.Errorf("chain/transactor: wait %s: %w", hash.Hex(), ctx.Err())
			}
			// Transient RPC errors are retried on the next tick.
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain/transactor: wait %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
