package bot

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/michaelpento.lv/flashplanner/advisory"
	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/dex/sushiswap"
	"github.com/michaelpento.lv/flashplanner/dex/uniswap"
	"github.com/michaelpento.lv/flashplanner/executor"
	"github.com/michaelpento.lv/flashplanner/flashbots"
	"github.com/michaelpento.lv/flashplanner/flashloan/aave"
	"github.com/michaelpento.lv/flashplanner/gas"
	"github.com/michaelpento.lv/flashplanner/rpc"
	"github.com/michaelpento.lv/flashplanner/simulator"
	"github.com/michaelpento.lv/flashplanner/strategies/arbitrage"
	"github.com/michaelpento.lv/flashplanner/utils/metrics"
	"go.uber.org/zap"
)

// Chain is the node surface the planner needs; *ethclient.Client satisfies it
type Chain interface {
	rpc.Backend
	executor.NonceSource
	executor.Broadcaster
	executor.HeadReader
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Components is the wired evaluation pipeline
type Components struct {
	Registry   *dex.Registry
	V3         *uniswap.V3Router
	Premium    *aave.Provider
	Gas        *gas.Estimator
	Simulator  *simulator.Simulator
	Planner    *arbitrage.Planner
	Builder    *executor.Builder
	Submitter  *executor.Submitter
	Advisor    *advisory.Client
	Arbitrator *arbitrage.Arbitrator
}

// NewComponents builds every pipeline stage from cfg. m may be nil.
func NewComponents(ctx context.Context, cfg *config.Config, chain Chain, m *metrics.PlannerMetrics, logger *zap.Logger) (*Components, error) {
	caller := rpc.NewGuardedCaller(chain, cfg.RPCRateLimit, cfg.CircuitBreaker, logger)

	registry, v3, err := newRegistry(cfg.Contracts, cfg.Trading.V3FeeTier, caller)
	if err != nil {
		return nil, err
	}

	premium, err := aave.NewProvider(caller, common.HexToAddress(cfg.Contracts.AaveAddressesProvider), cfg.Trading.PremiumBps, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create premium source: %w", err)
	}
	if cfg.Trading.RefreshPremium {
		if err := premium.RefreshPremium(ctx); err != nil {
			logger.Warn("keeping configured flash loan premium", zap.Error(err))
		}
	}

	estimator, err := gas.NewEstimator(caller, cfg.Gas.PriorityFeeWei(), cfg.Gas.FallbackBaseFeeWei(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gas estimator: %w", err)
	}

	sim := simulator.NewSimulator(premium, estimator, chain, logger)

	planner, err := arbitrage.NewPlanner(arbitrage.PlannerConfig{
		Beneficiary:    common.HexToAddress(cfg.Wallet.PublicAddress),
		SlippageBps:    cfg.Trading.SlippageBps,
		DeadlineWindow: cfg.Trading.DeadlineWindow,
	}, premium, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	executorAddr := common.HexToAddress(cfg.Contracts.Executor)

	builder, err := executor.NewBuilder(chainID, executorAddr, estimator, cfg.Gas.DefaultTxGasLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction builder: %w", err)
	}

	submitter, err := newSubmitter(cfg, chainID, chain, sim, m, logger)
	if err != nil {
		return nil, err
	}

	var transport advisory.Transport = advisory.StubTransport{}
	if cfg.Advisory.Endpoint != "" {
		transport = advisory.NewHTTPTransport(cfg.Advisory)
	} else {
		logger.Warn("no advisory endpoint configured, every opportunity will be declined")
	}
	advisor := advisory.NewClient(transport, logger)

	arb, err := arbitrage.NewArbitrator(arbitrage.ArbitratorConfig{
		Executor:      executorAddr,
		DefaultAmount: cfg.Trading.DefaultFlashLoanWei(),
		GasLimit:      cfg.Gas.CycleGasLimit,
	}, registry, advisor, sim, planner, builder, submitter, m, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create arbitrator: %w", err)
	}

	return &Components{
		Registry:   registry,
		V3:         v3,
		Premium:    premium,
		Gas:        estimator,
		Simulator:  sim,
		Planner:    planner,
		Builder:    builder,
		Submitter:  submitter,
		Advisor:    advisor,
		Arbitrator: arb,
	}, nil
}

func newRegistry(contracts config.ContractsConfig, feeTier uint32, caller rpc.ContractCaller) (*dex.Registry, *uniswap.V3Router, error) {
	registry := dex.NewRegistry()

	uni, err := uniswap.NewUniswapV2(common.HexToAddress(contracts.UniswapV2Router), caller)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create uniswap router: %w", err)
	}
	registry.Register(uni)

	sushi, err := sushiswap.NewSushiswapV2(common.HexToAddress(contracts.SushiswapV2Router), caller)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sushiswap router: %w", err)
	}
	registry.Register(sushi)

	if contracts.UniswapV3Quoter == "" || contracts.UniswapV3Router == "" {
		return registry, nil, nil
	}
	v3, err := uniswap.NewV3Router(common.HexToAddress(contracts.UniswapV3Quoter), common.HexToAddress(contracts.UniswapV3Router), feeTier, caller)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create uniswap v3 router: %w", err)
	}
	registry.Register(v3)
	return registry, v3, nil
}

func newSubmitter(cfg *config.Config, chainID *big.Int, chain Chain, sim *simulator.Simulator, m *metrics.PlannerMetrics, logger *zap.Logger) (*executor.Submitter, error) {
	opts := []executor.Option{executor.WithMetrics(m)}
	if cfg.Preflight {
		opts = append(opts, executor.WithPreflight(sim))
	}

	if cfg.DryRun {
		return executor.NewSubmitter(executor.SubmitterConfig{ChainID: chainID, DryRun: true}, nil, chain, logger, opts...)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Wallet.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if cfg.MEVProtect {
		opts = append(opts, executor.WithRelay(flashbots.NewClient(cfg.FlashbotsRelay, key), chain))
	}

	nonces := executor.NewNonceManager(chain, crypto.PubkeyToAddress(key.PublicKey))
	submitter, err := executor.NewSubmitter(executor.SubmitterConfig{
		ChainID:    chainID,
		PrivateKey: key,
	}, nonces, chain, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create submitter: %w", err)
	}
	return submitter, nil
}
