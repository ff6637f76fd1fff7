package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/michaelpento.lv/flashplanner/rpc"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Blocks of fee history read per estimate
const feeHistoryBlocks = 5

var rewardPercentiles = []float64{10, 30, 50}

// Estimator reads the live EIP-1559 base fee and prices gas with a fixed priority fee
type Estimator struct {
	client          rpc.FeeHistoryReader
	logger          *zap.Logger
	priorityFee     *big.Int
	fallbackBaseFee *big.Int

	mu       sync.RWMutex
	lastBase *big.Int
}

// NewEstimator creates a gas estimator. fallbackBaseFee is used whenever fee history is unavailable.
func NewEstimator(client rpc.FeeHistoryReader, priorityFee, fallbackBaseFee *big.Int, logger *zap.Logger) (*Estimator, error) {
	if priorityFee == nil || priorityFee.Sign() < 0 {
		return nil, fmt.Errorf("invalid priority fee")
	}
	if fallbackBaseFee == nil || fallbackBaseFee.Sign() < 0 {
		return nil, fmt.Errorf("invalid fallback base fee")
	}
	return &Estimator{
		client:          client,
		logger:          logger,
		priorityFee:     new(big.Int).Set(priorityFee),
		fallbackBaseFee: new(big.Int).Set(fallbackBaseFee),
	}, nil
}

// BaseFee returns the latest baseFeePerGas from fee history, or the fallback
func (e *Estimator) BaseFee(ctx context.Context) *big.Int {
	if e.client == nil {
		return new(big.Int).Set(e.fallbackBaseFee)
	}

	history, err := e.client.FeeHistory(ctx, feeHistoryBlocks, nil, rewardPercentiles)
	if err != nil || history == nil || len(history.BaseFee) == 0 {
		e.logger.Debug("fee history unavailable, using fallback base fee",
			zap.String("fallback_gwei", bigmath.FormatGwei(e.fallbackBaseFee)),
			zap.Error(err))
		return new(big.Int).Set(e.fallbackBaseFee)
	}

	base := history.BaseFee[len(history.BaseFee)-1]
	if base == nil {
		return new(big.Int).Set(e.fallbackBaseFee)
	}

	e.mu.Lock()
	e.lastBase = new(big.Int).Set(base)
	e.mu.Unlock()

	return new(big.Int).Set(base)
}

// LastBaseFee returns the most recent live base fee observed, nil before the first read
func (e *Estimator) LastBaseFee() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastBase == nil {
		return nil
	}
	return new(big.Int).Set(e.lastBase)
}

// PriorityFee returns the configured tip
func (e *Estimator) PriorityFee() *big.Int {
	return new(big.Int).Set(e.priorityFee)
}

// GasPrice returns base fee plus priority fee
func (e *Estimator) GasPrice(ctx context.Context) *big.Int {
	return new(big.Int).Add(e.BaseFee(ctx), e.priorityFee)
}

// EstimateGasCost estimates the wei cost of gasLimit at the current gas price
func (e *Estimator) EstimateGasCost(ctx context.Context, gasLimit uint64) (*big.Int, error) {
	totalGasPrice := e.GasPrice(ctx)

	gasLimitBig := new(big.Int).SetUint64(gasLimit)
	totalCost := new(big.Int).Mul(totalGasPrice, gasLimitBig)

	return totalCost, nil
}

// DynamicFees returns the tip and fee cap for an EIP-1559 transaction.
// The cap is base + 2*tip, lowered to maxGasGwei when a positive cap is given.
func (e *Estimator) DynamicFees(ctx context.Context, maxGasGwei float64) (tip, feeCap *big.Int) {
	base := e.BaseFee(ctx)
	tip = new(big.Int).Set(e.priorityFee)
	feeCap = new(big.Int).Add(base, new(big.Int).Lsh(tip, 1))

	if maxGasGwei > 0 {
		limit := bigmath.GweiToWei(decimal.NewFromFloat(maxGasGwei))
		if feeCap.Cmp(limit) > 0 {
			e.logger.Debug("capping max fee per gas",
				zap.String("max_fee_gwei", bigmath.FormatGwei(feeCap)),
				zap.String("cap_gwei", bigmath.FormatGwei(limit)))
			feeCap = limit
		}
		if tip.Cmp(feeCap) > 0 {
			tip = new(big.Int).Set(feeCap)
		}
	}

	return tip, feeCap
}
