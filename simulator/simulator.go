package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/flashloan"
	"go.uber.org/zap"
)

// Default gas hints when the caller supplies none
const (
	DefaultCycleGas  = uint64(350000)
	DefaultSingleGas = uint64(220000)
)

// GasPricer prices a gas limit at the live gas price
type GasPricer interface {
	EstimateGasCost(ctx context.Context, gasLimit uint64) (*big.Int, error)
}

// SingleHopQuoter is a concentrated-liquidity quoter
type SingleHopQuoter interface {
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error)
}

// ChainCaller runs eth_call and eth_estimateGas for preflight checks
type ChainCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// QuoteResult is a profitability snapshot valid only for the chain state it was quoted at
type QuoteResult struct {
	Amounts           []*big.Int
	GrossCycleOut     *big.Int
	Premium           *big.Int
	GasCostWei        *big.Int
	ExpectedProfit    *big.Int
	ExpectedNetProfit *big.Int
}

// Profitable reports whether the net profit is strictly positive
func (q *QuoteResult) Profitable() bool {
	return q != nil && q.ExpectedNetProfit != nil && q.ExpectedNetProfit.Sign() > 0
}

// MarshalJSON renders every amount as a base-10 string
func (q *QuoteResult) MarshalJSON() ([]byte, error) {
	amounts := make([]string, len(q.Amounts))
	for i, a := range q.Amounts {
		amounts[i] = a.String()
	}
	return json.Marshal(struct {
		Amounts           []string `json:"amounts"`
		GrossCycleOut     string   `json:"gross_cycle_out"`
		Premium           string   `json:"premium"`
		GasCostWei        string   `json:"gas_cost_wei"`
		ExpectedProfit    string   `json:"expected_profit"`
		ExpectedNetProfit string   `json:"expected_net_profit"`
	}{
		Amounts:           amounts,
		GrossCycleOut:     q.GrossCycleOut.String(),
		Premium:           q.Premium.String(),
		GasCostWei:        q.GasCostWei.String(),
		ExpectedProfit:    q.ExpectedProfit.String(),
		ExpectedNetProfit: q.ExpectedNetProfit.String(),
	})
}

// SimulationResult represents the result of a transaction preflight
type SimulationResult struct {
	Success bool
	GasUsed uint64
	Error   error
}

// Simulator computes cycle profitability from live venue quotes
type Simulator struct {
	premium flashloan.PremiumSource
	gas     GasPricer
	chain   ChainCaller
	logger  *zap.Logger
}

// NewSimulator creates a cycle simulator. chain may be nil when preflight is not used.
func NewSimulator(premium flashloan.PremiumSource, gas GasPricer, chain ChainCaller, logger *zap.Logger) *Simulator {
	return &Simulator{
		premium: premium,
		gas:     gas,
		chain:   chain,
		logger:  logger,
	}
}

// SimulateV2Cycle quotes tokenIn -> mid on routerA and mid -> tokenIn on routerB.
// Quote failures propagate unchanged.
func (s *Simulator) SimulateV2Cycle(ctx context.Context, routerA, routerB dex.Router, tokenIn, mid common.Address, amountIn *big.Int, gasLimitHint uint64) (*QuoteResult, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("invalid input amount")
	}
	if gasLimitHint == 0 {
		gasLimitHint = DefaultCycleGas
	}

	hopA, err := routerA.Quote(ctx, amountIn, []common.Address{tokenIn, mid})
	if err != nil {
		return nil, err
	}
	outMid := hopA[len(hopA)-1]

	hopB, err := routerB.Quote(ctx, outMid, []common.Address{mid, tokenIn})
	if err != nil {
		return nil, err
	}
	outBack := hopB[len(hopB)-1]

	result, err := s.finish(ctx, amountIn, outBack, new(big.Int).Sub(outBack, amountIn), gasLimitHint)
	if err != nil {
		return nil, err
	}
	result.Amounts = []*big.Int{new(big.Int).Set(amountIn), new(big.Int).Set(outMid), new(big.Int).Set(outBack)}

	s.logger.Debug("simulated cycle",
		zap.String("router_a", routerA.Name()),
		zap.String("router_b", routerB.Name()),
		zap.String("amount_in", amountIn.String()),
		zap.String("out_mid", outMid.String()),
		zap.String("out_back", outBack.String()),
		zap.String("net_profit", result.ExpectedNetProfit.String()))

	return result, nil
}

// SimulateV3Single quotes one concentrated-liquidity hop. Profit is only claimed
// when tokenOut equals tokenIn, otherwise it is zero.
func (s *Simulator) SimulateV3Single(ctx context.Context, quoter SingleHopQuoter, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int, gasLimitHint uint64) (*QuoteResult, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("invalid input amount")
	}
	if gasLimitHint == 0 {
		gasLimitHint = DefaultSingleGas
	}

	out, err := quoter.QuoteExactInputSingle(ctx, tokenIn, tokenOut, fee, amountIn)
	if err != nil {
		return nil, err
	}

	profit := new(big.Int)
	if tokenIn == tokenOut {
		profit.Sub(out, amountIn)
	}

	result, err := s.finish(ctx, amountIn, out, profit, gasLimitHint)
	if err != nil {
		return nil, err
	}
	result.Amounts = []*big.Int{new(big.Int).Set(amountIn), new(big.Int).Set(out)}
	return result, nil
}

func (s *Simulator) finish(ctx context.Context, amountIn, grossOut, profit *big.Int, gasLimit uint64) (*QuoteResult, error) {
	premium := s.premium.Premium(amountIn)

	gasCost, err := s.gas.EstimateGasCost(ctx, gasLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas cost: %w", err)
	}

	net := new(big.Int).Sub(profit, premium)
	net.Sub(net, gasCost)

	return &QuoteResult{
		GrossCycleOut:     new(big.Int).Set(grossOut),
		Premium:           premium,
		GasCostWei:        gasCost,
		ExpectedProfit:    profit,
		ExpectedNetProfit: net,
	}, nil
}

// Preflight executes data against to with eth_call and then eth_estimateGas.
// A revert is reported in the result, not as an error.
func (s *Simulator) Preflight(ctx context.Context, from, to common.Address, data []byte) (*SimulationResult, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("no chain caller configured for preflight")
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: big.NewInt(0),
		Data:  data,
	}

	if _, err := s.chain.CallContract(ctx, msg, nil); err != nil {
		return &SimulationResult{
			Success: false,
			Error:   err,
		}, nil
	}

	gasUsed, err := s.chain.EstimateGas(ctx, msg)
	if err != nil {
		return &SimulationResult{
			Success: false,
			Error:   err,
			GasUsed: gasUsed,
		}, nil
	}

	return &SimulationResult{
		Success: true,
		GasUsed: gasUsed,
	}, nil
}
