package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

var (
	wallet   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	contract = PolygonContracts()
)

// abiCaller answers view calls from a map keyed by method name.
type abiCaller struct {
	contract abi.ABI
	results  map[string]any
	err      error
}

func (c *abiCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	for name, m := range c.contract.Methods {
		if bytes.HasPrefix(call.Data, m.ID) {
			return m.Outputs.Pack(c.results[name])
		}
	}
	return nil, errors.New("unknown selector")
}

func TestReaderERC20(t *testing.T) {
	r := NewReader(&abiCaller{contract: ERC20ABI, results: map[string]any{
		"balanceOf": big.NewInt(5_000_000),
		"allowance": big.NewInt(1_000_000),
	}})

	bal, err := r.TokenBalance(context.Background(), contract.Collateral, wallet)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), bal.Int64())

	allow, err := r.Allowance(context.Background(), contract.Collateral, wallet, contract.Exchange)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), allow.Int64())
}

func TestReaderERC1155(t *testing.T) {
	r := NewReader(&abiCaller{contract: ERC1155ABI, results: map[string]any{
		"balanceOf":        big.NewInt(42),
		"isApprovedForAll": true,
	}})

	bal, err := r.PositionBalance(context.Background(), contract.ConditionalTokens, wallet, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())

	ok, err := r.IsApprovedForAll(context.Background(), contract.ConditionalTokens, wallet, contract.NegRiskAdapter)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReaderNetworkError(t *testing.T) {
	r := NewReader(&abiCaller{contract: ERC20ABI, err: errors.New("dial tcp: refused")})
	_, err := r.TokenBalance(context.Background(), contract.Collateral, wallet)
	assert.ErrorIs(t, err, domain.ErrNetworkDegraded)
}

func TestCalldata(t *testing.T) {
	data, err := ApproveCalldata(contract.Exchange)
	require.NoError(t, err)
	assert.Equal(t, ERC20ABI.Methods["approve"].ID, data[:4])

	args, err := ERC20ABI.Methods["approve"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, contract.Exchange, args[0])
	assert.Equal(t, 0, MaxUint256.Cmp(args[1].(*big.Int)))

	data, err = SetApprovalForAllCalldata(contract.NegRiskExchange)
	require.NoError(t, err)
	assert.Equal(t, ERC1155ABI.Methods["setApprovalForAll"].ID, data[:4])
}

func TestContracts(t *testing.T) {
	c := PolygonContracts()
	assert.Equal(t, common.HexToAddress(ExchangeAddress), c.ExchangeFor(false))
	assert.Equal(t, common.HexToAddress(NegRiskExchangeAddress), c.ExchangeFor(true))
	assert.Len(t, c.Spenders(), 3)

	_, err := ContractsFromHex("0x1", ConditionalTokensAddress, ExchangeAddress, NegRiskExchangeAddress, NegRiskAdapterAddress)
	assert.Error(t, err)
	got, err := ContractsFromHex(CollateralAddress, ConditionalTokensAddress, ExchangeAddress, NegRiskExchangeAddress, NegRiskAdapterAddress)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

type receiptSeq struct {
	calls    int
	readyAt  int
	status   uint64
	transErr error
}

func (r *receiptSeq) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	r.calls++
	if r.calls == 1 && r.transErr != nil {
		return nil, r.transErr
	}
	if r.calls < r.readyAt {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: r.status}, nil
}

func TestWaitMined(t *testing.T) {
	src := &receiptSeq{readyAt: 3, status: types.ReceiptStatusSuccessful, transErr: errors.New("timeout")}
	rcpt, err := WaitMined(context.Background(), src, common.Hash{1}, time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, rcpt.Status)
	assert.Equal(t, 3, src.calls)
}

func TestWaitMinedReverted(t *testing.T) {
	src := &receiptSeq{readyAt: 1, status: types.ReceiptStatusFailed}
	_, err := WaitMined(context.Background(), src, common.Hash{2}, time.Millisecond, time.Second)
	assert.ErrorIs(t, err, domain.ErrTxReverted)
}

func TestWaitMinedTimeout(t *testing.T) {
	src := &receiptSeq{readyAt: 1 << 30}
	_, err := WaitMined(context.Background(), src, common.Hash{3}, time.Millisecond, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeTxBackend struct {
	sent *types.Transaction
}

func (f *fakeTxBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }
func (f *fakeTxBackend) SuggestGasTipCap(context.Context) (*big.Int, error)             { return big.NewInt(30e9), nil }
func (f *fakeTxBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(100e9)}, nil
}
func (f *fakeTxBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 50_000, nil }
func (f *fakeTxBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = tx
	return nil
}

func TestLocalTransactorSignsDynamicFeeTx(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	backend := &fakeTxBackend{}
	tx := NewLocalTransactor(backend, key, 137)

	data, err := ApproveCalldata(contract.Exchange)
	require.NoError(t, err)
	hash, err := tx.Send(context.Background(), contract.Collateral, data)
	require.NoError(t, err)

	require.NotNil(t, backend.sent)
	assert.Equal(t, hash, backend.sent.Hash())
	assert.Equal(t, uint64(7), backend.sent.Nonce())
	assert.Equal(t, uint64(60_000), backend.sent.Gas())
	assert.Equal(t, big.NewInt(230e9), backend.sent.GasFeeCap())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(137)), backend.sent)
	require.NoError(t, err)
	assert.Equal(t, tx.From(), from)
}
