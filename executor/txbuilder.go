package executor

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/michaelpento.lv/flashplanner/apperror"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"go.uber.org/zap"
)

// FlashExecutorABI is the entry point of the on-chain executor plus its admin switches
const FlashExecutorABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "asset", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "bytes", "name": "params", "type": "bytes"}
		],
		"name": "executeFlashLoan",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{"inputs": [], "name": "pause", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "name": "unpause", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

// DefaultTxGasLimit applies when a caller passes a zero gas limit
const DefaultTxGasLimit = uint64(1_500_000)

// FeeSource prices EIP-1559 transactions
type FeeSource interface {
	DynamicFees(ctx context.Context, maxGasGwei float64) (tip, feeCap *big.Int)
}

// Builder produces unsigned executor transactions. Nonces are assigned at signing.
type Builder struct {
	chainID    *big.Int
	executor   common.Address
	fees       FeeSource
	defaultGas uint64
	abi        abi.ABI
	logger     *zap.Logger
}

func NewBuilder(chainID *big.Int, executor common.Address, fees FeeSource, defaultGas uint64, logger *zap.Logger) (*Builder, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id")
	}
	if fees == nil {
		return nil, fmt.Errorf("fee source is required")
	}
	parsed, err := abi.JSON(strings.NewReader(FlashExecutorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse executor ABI: %w", err)
	}
	if defaultGas == 0 {
		defaultGas = DefaultTxGasLimit
	}
	return &Builder{
		chainID:    new(big.Int).Set(chainID),
		executor:   executor,
		fees:       fees,
		defaultGas: defaultGas,
		abi:        parsed,
		logger:     logger,
	}, nil
}

// BuildExecuteFlashLoan packs executeFlashLoan(asset, amount, params) into a
// dynamic fee template. maxGasGwei, when positive, caps the fee per gas.
func (b *Builder) BuildExecuteFlashLoan(ctx context.Context, asset common.Address, amount *big.Int, params []byte, gas uint64, maxGasGwei *float64) (*types.Transaction, error) {
	if !bigmath.IsUint256(amount) {
		return nil, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext(fmt.Sprintf("flash loan amount %v outside uint256 range", amount)))
	}
	data, err := b.abi.Pack("executeFlashLoan", asset, amount, params)
	if err != nil {
		return nil, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext("executeFlashLoan"),
			apperror.WithCause(err))
	}
	return b.template(ctx, data, gas, maxGasGwei), nil
}

// BuildPause encodes pause() or unpause() on the executor
func (b *Builder) BuildPause(ctx context.Context, paused bool) (*types.Transaction, error) {
	method := "unpause"
	if paused {
		method = "pause"
	}
	data, err := b.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return b.template(ctx, data, 100_000, nil), nil
}

func (b *Builder) template(ctx context.Context, data []byte, gas uint64, maxGasGwei *float64) *types.Transaction {
	if gas == 0 {
		gas = b.defaultGas
	}
	var limit float64
	if maxGasGwei != nil {
		limit = *maxGasGwei
	}
	tip, feeCap := b.fees.DynamicFees(ctx, limit)

	to := b.executor
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.chainID,
		To:        &to,
		Value:     big.NewInt(0),
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
	})

	b.logger.Debug("built executor transaction",
		zap.String("to", to.Hex()),
		zap.Uint64("gas", gas),
		zap.String("tip", tip.String()),
		zap.String("fee_cap", feeCap.String()))
	return tx
}

// withNonce copies a dynamic fee template with nonce set
func withNonce(tx *types.Transaction, nonce uint64) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:    tx.ChainId(),
		Nonce:      nonce,
		GasTipCap:  tx.GasTipCap(),
		GasFeeCap:  tx.GasFeeCap(),
		Gas:        tx.Gas(),
		To:         tx.To(),
		Value:      tx.Value(),
		Data:       tx.Data(),
		AccessList: tx.AccessList(),
	})
}
