package uniswap

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/utils/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestV3QuoteExactInputSingle(t *testing.T) {
	chain := testutils.NewMockChain()
	var seenFee uint32
	chain.V3Rate = func(tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) *big.Int {
		seenFee = fee
		return new(big.Int).Mul(amountIn, big.NewInt(1800))
	}

	router, err := NewV3Router(testutils.Quoter, testutils.SwapRouter, FeeMedium, chain)
	require.NoError(t, err)

	out, err := router.QuoteExactInputSingle(context.Background(), testutils.WETH, testutils.USDC, FeeLow, testutils.Ether(1))
	require.NoError(t, err)
	assert.Equal(t, testutils.Ether(1800).String(), out.String())
	assert.Equal(t, FeeLow, seenFee)

	amounts, err := router.Quote(context.Background(), testutils.Ether(2), []common.Address{testutils.WETH, testutils.USDC})
	require.NoError(t, err)
	assert.Equal(t, testutils.Ether(3600).String(), amounts[1].String())
	assert.Equal(t, FeeMedium, seenFee)
}

func TestV3QuoteUnavailable(t *testing.T) {
	chain := testutils.NewMockChain()
	router, err := NewV3Router(testutils.Quoter, testutils.SwapRouter, FeeMedium, chain)
	require.NoError(t, err)

	_, err = router.QuoteExactInputSingle(context.Background(), testutils.WETH, testutils.USDC, FeeMedium, testutils.Ether(1))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeQuoteUnavailable))

	chain.V3Rate = func(common.Address, common.Address, uint32, *big.Int) *big.Int { return big.NewInt(0) }
	_, err = router.QuoteExactInputSingle(context.Background(), testutils.WETH, testutils.USDC, FeeMedium, testutils.Ether(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeQuoteUnavailable))
}

func TestV3FeeTiers(t *testing.T) {
	for _, fee := range []uint32{100, 500, 3000, 10000} {
		assert.True(t, ValidFeeTier(fee))
	}
	assert.False(t, ValidFeeTier(2500))

	_, err := NewV3Router(testutils.Quoter, testutils.SwapRouter, 2500, testutils.NewMockChain())
	assert.Error(t, err)
}

func TestV3EncodeExactInputSingle(t *testing.T) {
	router, err := NewV3Router(testutils.Quoter, testutils.SwapRouter, FeeMedium, testutils.NewMockChain())
	require.NoError(t, err)

	deadline := big.NewInt(1700000600)
	data, err := router.EncodeExactInputSingle(testutils.WETH, testutils.USDC, FeeLow, testutils.Executor,
		deadline, testutils.Ether(1), testutils.Ether(1700), nil)
	require.NoError(t, err)

	parsed, err := abi.JSON(strings.NewReader(dex.UniswapV3RouterABI))
	require.NoError(t, err)
	method := parsed.Methods["exactInputSingle"]
	assert.Equal(t, method.ID, data[:4])

	// 8 static words in the params tuple
	assert.Len(t, data, 4+8*32)

	values, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	params := new(exactInputSingleParams)
	converted := abi.ConvertType(values[0], params).(*exactInputSingleParams)
	assert.Equal(t, testutils.WETH, converted.TokenIn)
	assert.Equal(t, testutils.USDC, converted.TokenOut)
	assert.Equal(t, int64(500), converted.Fee.Int64())
	assert.Equal(t, testutils.Executor, converted.Recipient)
	assert.Equal(t, testutils.Ether(1700).String(), converted.AmountOutMinimum.String())
	assert.Equal(t, 0, converted.SqrtPriceLimitX96.Sign())

	_, err = router.EncodeExactInputSingle(testutils.WETH, testutils.USDC, 42, testutils.Executor,
		deadline, testutils.Ether(1), testutils.Ether(1700), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeEncodingError))
}
