package testutils

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/stretchr/testify/require"
)

// Well-known test fixtures
var (
	WETH       = common.HexToAddress(dex.MainnetWETH)
	USDC       = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	RouterA    = common.HexToAddress(dex.MainnetUniswapV2Router)
	RouterB    = common.HexToAddress(dex.MainnetSushiswapRouter)
	Quoter     = common.HexToAddress(dex.MainnetUniswapV3Quoter)
	SwapRouter = common.HexToAddress(dex.MainnetUniswapV3Router)
	Executor   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

var (
	v2ABI     = mustABI(dex.UniswapV2RouterABI)
	quoterABI = mustABI(dex.UniswapV3QuoterABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Rate returns out = in * num / den
func Rate(num, den int64) func(*big.Int) *big.Int {
	return func(in *big.Int) *big.Int {
		out := new(big.Int).Mul(in, big.NewInt(num))
		return out.Div(out, big.NewInt(den))
	}
}

// Ether returns n * 10^18
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// MockChain answers router, quoter, fee and submission calls the way a node would.
// Router quotes are driven by per-router rate functions and returned ABI-packed.
type MockChain struct {
	mu sync.Mutex

	// V2Rates maps a router address to the conversion it applies on every hop
	V2Rates map[common.Address]func(*big.Int) *big.Int
	// V3Rate answers quoteExactInputSingle
	V3Rate func(tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) *big.Int

	// RevertRouters makes every call to these addresses fail
	RevertRouters map[common.Address]bool

	BaseFees      []*big.Int
	FeeHistoryErr error

	Nonce       uint64
	SendErr     error
	CallErr     error
	GasEstimate uint64
	EstimateErr error

	Head    uint64
	HeadErr error

	Sent      []*types.Transaction
	Calls     int
	FeeCalls  int
	NonceHits int
}

// NewMockChain returns a chain with an empty rate table
func NewMockChain() *MockChain {
	return &MockChain{
		V2Rates:       make(map[common.Address]func(*big.Int) *big.Int),
		RevertRouters: make(map[common.Address]bool),
		GasEstimate:   400000,
	}
}

func (m *MockChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("invalid call")
	}
	if m.RevertRouters[*msg.To] {
		return nil, errors.New("execution reverted")
	}

	selector := msg.Data[:4]
	switch {
	case bytes.Equal(selector, v2ABI.Methods["getAmountsOut"].ID):
		return m.getAmountsOut(*msg.To, msg.Data[4:])
	case bytes.Equal(selector, quoterABI.Methods["quoteExactInputSingle"].ID):
		return m.quoteExactInputSingle(msg.Data[4:])
	}

	if m.CallErr != nil {
		return nil, m.CallErr
	}
	return []byte{}, nil
}

func (m *MockChain) getAmountsOut(router common.Address, input []byte) ([]byte, error) {
	method := v2ABI.Methods["getAmountsOut"]
	args, err := method.Inputs.Unpack(input)
	if err != nil {
		return nil, err
	}
	amountIn := args[0].(*big.Int)
	path := args[1].([]common.Address)

	rate, ok := m.V2Rates[router]
	if !ok {
		return nil, fmt.Errorf("execution reverted: unknown router %s", router.Hex())
	}

	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 1; i < len(path); i++ {
		amounts[i] = rate(amounts[i-1])
	}
	return method.Outputs.Pack(amounts)
}

func (m *MockChain) quoteExactInputSingle(input []byte) ([]byte, error) {
	method := quoterABI.Methods["quoteExactInputSingle"]
	args, err := method.Inputs.Unpack(input)
	if err != nil {
		return nil, err
	}
	if m.V3Rate == nil {
		return nil, errors.New("execution reverted")
	}
	out := m.V3Rate(args[0].(common.Address), args[1].(common.Address), uint32(args[2].(*big.Int).Uint64()), args[3].(*big.Int))
	return method.Outputs.Pack(out)
}

func (m *MockChain) FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeeCalls++
	if m.FeeHistoryErr != nil {
		return nil, m.FeeHistoryErr
	}
	return &ethereum.FeeHistory{BaseFee: m.BaseFees}, nil
}

func (m *MockChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NonceHits++
	return m.Nonce, nil
}

func (m *MockChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, tx)
	return nil
}

func (m *MockChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EstimateErr != nil {
		return 0, m.EstimateErr
	}
	return m.GasEstimate, nil
}

func (m *MockChain) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HeadErr != nil {
		return 0, m.HeadErr
	}
	return m.Head, nil
}

// SentTransactions returns a copy of every broadcast transaction
func (m *MockChain) SentTransactions() []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Transaction(nil), m.Sent...)
}

// TestKey returns a deterministic private key
func TestKey(t *testing.T) *ecdsa.PrivateKey {
	key := make([]byte, 32)
	for i := 0; i < 32; i++ {
		key[i] = byte(i + 1)
	}
	privateKey, err := crypto.ToECDSA(key)
	require.NoError(t, err)
	return privateKey
}

// CreateMockTransaction creates an unsigned EIP-1559 transaction for testing
func CreateMockTransaction(t *testing.T) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		To:        &Executor,
		Value:     big.NewInt(0),
		Gas:       1_000_000,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(34_000_000_000),
		Data:      []byte{0xde, 0xad, 0xbe, 0xef},
	})
}
