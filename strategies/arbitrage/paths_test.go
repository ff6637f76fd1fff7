package arbitrage

import (
	"math/big"
	"testing"

	"github.com/michaelpento.lv/flashplanner/advisory"
	"github.com/michaelpento.lv/flashplanner/utils/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	wethHex = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdcHex = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func TestSelectCycle(t *testing.T) {
	chain := testutils.NewMockChain()
	registry := newTestRegistry(t, chain)
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name  string
		paths []advisory.Path
		index int
		found bool
	}{
		{
			name:  "first supported wins",
			paths: []advisory.Path{{DexSequence: []string{"Uniswap", "Sushi"}, Assets: []string{wethHex, usdcHex}}, {DexSequence: []string{"sushi", "uniswap"}, Assets: []string{usdcHex, wethHex}}},
			index: 0,
			found: true,
		},
		{
			name: "unsupported venue skipped",
			paths: []advisory.Path{
				{DexSequence: []string{"curve", "sushi"}, Assets: []string{wethHex, usdcHex}},
				{DexSequence: []string{"sushiswap", "uniswap v2"}, Assets: []string{usdcHex, wethHex}},
			},
			index: 1,
			found: true,
		},
		{
			name:  "three hops",
			paths: []advisory.Path{{DexSequence: []string{"uniswap", "sushi", "uniswap"}, Assets: []string{wethHex, usdcHex, wethHex}}},
		},
		{
			name:  "41 character asset",
			paths: []advisory.Path{{DexSequence: []string{"uniswap", "sushi"}, Assets: []string{wethHex[:41], usdcHex}}},
		},
		{
			name:  "43 character asset",
			paths: []advisory.Path{{DexSequence: []string{"uniswap", "sushi"}, Assets: []string{wethHex, usdcHex + "0"}}},
		},
		{
			name:  "single asset",
			paths: []advisory.Path{{DexSequence: []string{"uniswap", "sushi"}, Assets: []string{wethHex}}},
		},
		{
			name: "no paths",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, ok := SelectCycle(registry, tt.paths, logger)
			assert.Equal(t, tt.found, ok)
			if !tt.found {
				assert.Nil(t, sel)
				return
			}
			require.NotNil(t, sel)
			assert.Equal(t, tt.index, sel.Index)
		})
	}

	sel, ok := SelectCycle(registry, []advisory.Path{{DexSequence: []string{"Uniswap", "Sushi"}, Assets: []string{wethHex, usdcHex}}}, logger)
	require.True(t, ok)
	assert.Equal(t, testutils.WETH, sel.TokenIn)
	assert.Equal(t, testutils.USDC, sel.Mid)
	assert.Equal(t, testutils.RouterA, sel.RouterA.Address())
	assert.Equal(t, testutils.RouterB, sel.RouterB.Address())
}

func TestSelectAmount(t *testing.T) {
	fallback := testutils.Ether(1)

	tests := []struct {
		name    string
		amounts []advisory.Amount
		want    *big.Int
	}{
		{"suggested", []advisory.Amount{"5000000000000000000"}, testutils.Ether(5)},
		{"empty", nil, fallback},
		{"zero", []advisory.Amount{"0"}, fallback},
		{"negative", []advisory.Amount{"-7"}, fallback},
		{"garbage", []advisory.Amount{"lots"}, fallback},
		{"leading zero is decimal", []advisory.Amount{"010"}, big.NewInt(10)},
		{"hex prefix", []advisory.Amount{"0x10"}, fallback},
		{"binary prefix", []advisory.Amount{"0b11"}, fallback},
		{"octal prefix", []advisory.Amount{"0o17"}, fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectAmount(advisory.Path{Amounts: tt.amounts}, fallback)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}

	got := SelectAmount(advisory.Path{}, fallback)
	got.SetInt64(3)
	assert.Equal(t, testutils.Ether(1).String(), fallback.String())
}
