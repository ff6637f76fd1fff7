package aave

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/rpc"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"go.uber.org/zap"
)

// Aave V3 PoolAddressesProvider and Pool views used to read the live premium
const aaveV3ABI = `[
	{
		"inputs": [],
		"name": "getPool",
		"outputs": [
			{
				"internalType": "address",
				"name": "",
				"type": "address"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "FLASHLOAN_PREMIUM_TOTAL",
		"outputs": [
			{
				"internalType": "uint128",
				"name": "",
				"type": "uint128"
			}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Provider prices Aave V3 flash loans
type Provider struct {
	caller            rpc.ContractCaller
	addressesProvider common.Address
	logger            *zap.Logger
	abi               abi.ABI

	mu  sync.RWMutex
	bps uint64
}

// NewProvider creates a premium source with the configured premium in basis points.
// caller may be nil when the premium is never refreshed from chain.
func NewProvider(caller rpc.ContractCaller, addressesProvider common.Address, bps uint64, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if bps > bigmath.BpsDenominator {
		return nil, fmt.Errorf("premium %d bps exceeds %d", bps, bigmath.BpsDenominator)
	}

	parsedABI, err := abi.JSON(strings.NewReader(aaveV3ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	return &Provider{
		caller:            caller,
		addressesProvider: addressesProvider,
		logger:            logger,
		abi:               parsedABI,
		bps:               bps,
	}, nil
}

// Premium returns floor(amount * bps / 10000)
func (p *Provider) Premium(amount *big.Int) *big.Int {
	return bigmath.BpsOf(amount, p.PremiumBps())
}

func (p *Provider) PremiumBps() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bps
}

func (p *Provider) String() string {
	return fmt.Sprintf("aave-v3(%d bps)", p.PremiumBps())
}

// RefreshPremium replaces the configured premium with FLASHLOAN_PREMIUM_TOTAL from the live pool
func (p *Provider) RefreshPremium(ctx context.Context) error {
	if p.caller == nil {
		return fmt.Errorf("no contract caller configured")
	}

	pool, err := p.pool(ctx)
	if err != nil {
		return err
	}

	data, err := p.abi.Pack("FLASHLOAN_PREMIUM_TOTAL")
	if err != nil {
		return fmt.Errorf("failed to pack premium call: %w", err)
	}
	out, err := p.caller.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("failed to read flash loan premium: %w", err)
	}
	values, err := p.abi.Unpack("FLASHLOAN_PREMIUM_TOTAL", out)
	if err != nil || len(values) != 1 {
		return fmt.Errorf("failed to decode flash loan premium: %v", err)
	}
	premium, ok := values[0].(*big.Int)
	if !ok || !premium.IsUint64() || premium.Uint64() > bigmath.BpsDenominator {
		return fmt.Errorf("unexpected flash loan premium %v", values[0])
	}

	p.mu.Lock()
	old := p.bps
	p.bps = premium.Uint64()
	p.mu.Unlock()

	p.logger.Info("flash loan premium refreshed",
		zap.String("pool", pool.Hex()),
		zap.Uint64("old_bps", old),
		zap.Uint64("new_bps", premium.Uint64()))
	return nil
}

func (p *Provider) pool(ctx context.Context) (common.Address, error) {
	data, err := p.abi.Pack("getPool")
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack getPool: %w", err)
	}
	out, err := p.caller.CallContract(ctx, ethereum.CallMsg{To: &p.addressesProvider, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve pool: %w", err)
	}
	values, err := p.abi.Unpack("getPool", out)
	if err != nil || len(values) != 1 {
		return common.Address{}, fmt.Errorf("failed to decode pool address: %v", err)
	}
	pool, ok := values[0].(common.Address)
	if !ok || pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("addresses provider returned no pool")
	}
	return pool, nil
}
