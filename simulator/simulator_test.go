package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/dex/uniswap"
	"github.com/michaelpento.lv/flashplanner/flashloan/aave"
	"github.com/michaelpento.lv/flashplanner/gas"
	"github.com/michaelpento.lv/flashplanner/utils/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func newTestSimulator(t *testing.T, chain *testutils.MockChain) *Simulator {
	logger := zaptest.NewLogger(t)
	premium, err := aave.NewProvider(nil, common.Address{}, 5, logger)
	require.NoError(t, err)
	estimator, err := gas.NewEstimator(chain, gwei(2), gwei(15), logger)
	require.NoError(t, err)
	return NewSimulator(premium, estimator, chain, logger)
}

func TestSimulateV2Cycle(t *testing.T) {
	chain := testutils.NewMockChain()
	chain.V2Rates[testutils.RouterA] = testutils.Rate(2000, 1)
	chain.V2Rates[testutils.RouterB] = testutils.Rate(999, 2000*1000)
	chain.BaseFees = []*big.Int{gwei(18)}

	routerA, err := uniswap.NewUniswapV2(testutils.RouterA, chain)
	require.NoError(t, err)
	routerB, err := uniswap.NewV2Router("sushiswap", testutils.RouterB, chain)
	require.NoError(t, err)

	sim := newTestSimulator(t, chain)
	result, err := sim.SimulateV2Cycle(context.Background(), routerA, routerB, testutils.WETH, testutils.USDC, testutils.Ether(1), 1_000_000)
	require.NoError(t, err)

	// 1e18 -> 2000e18 -> 0.999e18
	expectedBack, _ := new(big.Int).SetString("999000000000000000", 10)
	require.Len(t, result.Amounts, 3)
	assert.Equal(t, testutils.Ether(2000).String(), result.Amounts[1].String())
	assert.Equal(t, expectedBack.String(), result.GrossCycleOut.String())
	assert.Equal(t, "-1000000000000000", result.ExpectedProfit.String())
	assert.Equal(t, "500000000000000", result.Premium.String())
	// 1e6 gas at 20 gwei
	assert.Equal(t, "20000000000000000", result.GasCostWei.String())
	assert.Equal(t, "-21500000000000000", result.ExpectedNetProfit.String())
	assert.False(t, result.Profitable())
}

func TestSimulateV2CycleProfitable(t *testing.T) {
	chain := testutils.NewMockChain()
	chain.V2Rates[testutils.RouterA] = testutils.Rate(2000, 1)
	chain.V2Rates[testutils.RouterB] = testutils.Rate(1, 1000)
	chain.BaseFees = []*big.Int{gwei(18)}

	routerA, _ := uniswap.NewUniswapV2(testutils.RouterA, chain)
	routerB, _ := uniswap.NewV2Router("sushiswap", testutils.RouterB, chain)

	sim := newTestSimulator(t, chain)
	result, err := sim.SimulateV2Cycle(context.Background(), routerA, routerB, testutils.WETH, testutils.USDC, testutils.Ether(1), 0)
	require.NoError(t, err)

	// 1e18 -> 2000e18 -> 2e18; default gas hint 350000 at 20 gwei
	assert.Equal(t, testutils.Ether(1).String(), result.ExpectedProfit.String())
	assert.Equal(t, "7000000000000000", result.GasCostWei.String())
	assert.Equal(t, "992500000000000000", result.ExpectedNetProfit.String())
	assert.True(t, result.Profitable())

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"expected_net_profit":"992500000000000000"`)
}

func TestSimulateV2CycleQuoteUnavailable(t *testing.T) {
	chain := testutils.NewMockChain()
	chain.V2Rates[testutils.RouterA] = testutils.Rate(2000, 1)
	chain.RevertRouters[testutils.RouterB] = true

	routerA, _ := uniswap.NewUniswapV2(testutils.RouterA, chain)
	routerB, _ := uniswap.NewV2Router("sushiswap", testutils.RouterB, chain)

	sim := newTestSimulator(t, chain)
	result, err := sim.SimulateV2Cycle(context.Background(), routerA, routerB, testutils.WETH, testutils.USDC, testutils.Ether(1), 0)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperror.HasCode(err, apperror.CodeQuoteUnavailable))
}

func TestSimulateV3Single(t *testing.T) {
	chain := testutils.NewMockChain()
	chain.BaseFees = []*big.Int{gwei(8)}
	chain.V3Rate = func(tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) *big.Int {
		if tokenIn == tokenOut {
			return new(big.Int).Add(amountIn, big.NewInt(1e16))
		}
		return new(big.Int).Mul(amountIn, big.NewInt(1800))
	}
	quoter, err := uniswap.NewV3Router(testutils.Quoter, testutils.SwapRouter, uniswap.FeeMedium, chain)
	require.NoError(t, err)

	sim := newTestSimulator(t, chain)

	t.Run("non cycle claims no profit", func(t *testing.T) {
		result, err := sim.SimulateV3Single(context.Background(), quoter, testutils.WETH, testutils.USDC, uniswap.FeeMedium, testutils.Ether(1), 0)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExpectedProfit.Sign())
		assert.Equal(t, testutils.Ether(1800).String(), result.GrossCycleOut.String())
		// 220000 gas at 10 gwei
		assert.Equal(t, "2200000000000000", result.GasCostWei.String())
		assert.True(t, result.ExpectedNetProfit.Sign() < 0)
	})

	t.Run("true cycle", func(t *testing.T) {
		result, err := sim.SimulateV3Single(context.Background(), quoter, testutils.WETH, testutils.WETH, uniswap.FeeMedium, testutils.Ether(1), 0)
		require.NoError(t, err)
		assert.Equal(t, "10000000000000000", result.ExpectedProfit.String())
		// 1e16 - 5e14 - 2.2e15
		assert.Equal(t, "7300000000000000", result.ExpectedNetProfit.String())
	})
}

func TestPreflight(t *testing.T) {
	chain := testutils.NewMockChain()
	sim := newTestSimulator(t, chain)

	result, err := sim.Preflight(context.Background(), common.Address{}, testutils.Executor, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, uint64(400000), result.GasUsed)

	chain.CallErr = errors.New("execution reverted: MIN_PROFIT")
	result, err = sim.Preflight(context.Background(), common.Address{}, testutils.Executor, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorContains(t, result.Error, "MIN_PROFIT")
}
