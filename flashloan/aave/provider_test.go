package aave

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	addressesProvider = common.HexToAddress("0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb")
	poolAddress       = common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2")
)

type mockEthClient struct {
	premium *big.Int
	fail    bool
	calls   []common.Address
}

func (m *mockEthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.calls = append(m.calls, *msg.To)
	if m.fail {
		return nil, errors.New("execution reverted")
	}
	result := make([]byte, 32)
	switch {
	case *msg.To == addressesProvider:
		copy(result[12:], poolAddress.Bytes())
	case *msg.To == poolAddress:
		m.premium.FillBytes(result)
	default:
		return nil, errors.New("unknown contract")
	}
	return result, nil
}

func TestPremium(t *testing.T) {
	provider, err := NewProvider(nil, addressesProvider, 5, zaptest.NewLogger(t))
	require.NoError(t, err)

	tests := []struct {
		amount string
		want   string
	}{
		{"1000000000000000000", "500000000000000"},
		{"0", "0"},
		{"1999", "0"},
		{"2000", "1"},
	}
	for _, tt := range tests {
		amount, _ := new(big.Int).SetString(tt.amount, 10)
		assert.Equal(t, tt.want, provider.Premium(amount).String(), "amount %s", tt.amount)
	}
	assert.Equal(t, "aave-v3(5 bps)", provider.String())
}

func TestNewProviderRejectsBadPremium(t *testing.T) {
	_, err := NewProvider(nil, addressesProvider, 10001, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewProvider(nil, addressesProvider, 5, nil)
	assert.Error(t, err)
}

func TestRefreshPremium(t *testing.T) {
	client := &mockEthClient{premium: big.NewInt(9)}
	provider, err := NewProvider(client, addressesProvider, 5, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, provider.RefreshPremium(context.Background()))
	assert.Equal(t, uint64(9), provider.PremiumBps())
	require.Len(t, client.calls, 2)
	assert.True(t, bytes.Equal(addressesProvider.Bytes(), client.calls[0].Bytes()))
	assert.Equal(t, poolAddress, client.calls[1])

	amount, _ := new(big.Int).SetString("10000000000000000000", 10)
	assert.Equal(t, "9000000000000000", provider.Premium(amount).String())
}

func TestRefreshPremiumKeepsConfiguredOnFailure(t *testing.T) {
	client := &mockEthClient{fail: true}
	provider, err := NewProvider(client, addressesProvider, 5, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Error(t, provider.RefreshPremium(context.Background()))
	assert.Equal(t, uint64(5), provider.PremiumBps())

	client.fail = false
	client.premium = big.NewInt(20000)
	assert.Error(t, provider.RefreshPremium(context.Background()))
	assert.Equal(t, uint64(5), provider.PremiumBps())
}
