package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/apperror"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/rpc"
)

// Fee tiers in hundredths of a bip
const (
	FeeLowest uint32 = 100
	FeeLow    uint32 = 500
	FeeMedium uint32 = 3000
	FeeHigh   uint32 = 10000
)

// ValidFeeTier reports whether fee is a deployed V3 fee tier
func ValidFeeTier(fee uint32) bool {
	switch fee {
	case FeeLowest, FeeLow, FeeMedium, FeeHigh:
		return true
	}
	return false
}

// exactInputSingleParams mirrors ISwapRouter.ExactInputSingleParams
type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// V3Router quotes single-hop swaps through QuoterV1 and encodes SwapRouter.exactInputSingle
type V3Router struct {
	quoter    common.Address
	router    common.Address
	fee       uint32
	caller    rpc.ContractCaller
	quoterABI abi.ABI
	routerABI abi.ABI
}

// NewV3Router creates the concentrated-liquidity adapter. fee is used when the adapter
// serves as a generic dex.Router.
func NewV3Router(quoter, router common.Address, fee uint32, caller rpc.ContractCaller) (*V3Router, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller cannot be nil")
	}
	if !ValidFeeTier(fee) {
		return nil, fmt.Errorf("unsupported fee tier %d", fee)
	}
	quoterABI, err := abi.JSON(strings.NewReader(dex.UniswapV3QuoterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quoter ABI: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(dex.UniswapV3RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse swap router ABI: %w", err)
	}

	return &V3Router{
		quoter:    quoter,
		router:    router,
		fee:       fee,
		caller:    caller,
		quoterABI: quoterABI,
		routerABI: routerABI,
	}, nil
}

func (v *V3Router) Name() string {
	return dex.VenueUniswapV3
}

func (v *V3Router) Address() common.Address {
	return v.router
}

// Fee returns the default fee tier
func (v *V3Router) Fee() uint32 {
	return v.fee
}

// QuoteExactInputSingle returns the quoter's output for one pool hop with no price limit
func (v *V3Router) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error) {
	if !ValidFeeTier(fee) {
		return nil, fmt.Errorf("unsupported fee tier %d", fee)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("invalid input amount")
	}

	data, err := v.quoterABI.Pack("quoteExactInputSingle",
		tokenIn, tokenOut, new(big.Int).SetUint64(uint64(fee)), amountIn, new(big.Int))
	if err != nil {
		return nil, fmt.Errorf("failed to pack quoteExactInputSingle: %w", err)
	}

	out, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &v.quoter, Data: data}, nil)
	if err != nil {
		return nil, v.unavailable(tokenIn, tokenOut, fee, err)
	}
	if len(out) == 0 {
		return nil, v.unavailable(tokenIn, tokenOut, fee, fmt.Errorf("empty result"))
	}

	values, err := v.quoterABI.Unpack("quoteExactInputSingle", out)
	if err != nil {
		return nil, v.unavailable(tokenIn, tokenOut, fee, fmt.Errorf("failed to decode amount: %w", err))
	}
	amountOut, ok := values[0].(*big.Int)
	if !ok || amountOut.Sign() == 0 {
		return nil, v.unavailable(tokenIn, tokenOut, fee, fmt.Errorf("no route"))
	}
	return amountOut, nil
}

// EncodeExactInputSingle packs exactInputSingle. A nil sqrtPriceLimitX96 means no limit.
func (v *V3Router) EncodeExactInputSingle(tokenIn, tokenOut common.Address, fee uint32, recipient common.Address, deadline, amountIn, minOut, sqrtPriceLimitX96 *big.Int) ([]byte, error) {
	if !ValidFeeTier(fee) {
		return nil, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext(fmt.Sprintf("fee tier %d", fee)))
	}
	if sqrtPriceLimitX96 == nil {
		sqrtPriceLimitX96 = new(big.Int)
	}

	data, err := v.routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		Recipient:         recipient,
		Deadline:          deadline,
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: sqrtPriceLimitX96,
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext("uniswapv3 swap"),
			apperror.WithCause(err))
	}
	return data, nil
}

// Quote implements dex.Router for a two-token path at the default fee tier
func (v *V3Router) Quote(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) != 2 {
		return nil, fmt.Errorf("single-hop router needs a two-token path, got %d", len(path))
	}
	out, err := v.QuoteExactInputSingle(ctx, path[0], path[1], v.fee, amountIn)
	if err != nil {
		return nil, err
	}
	return []*big.Int{new(big.Int).Set(amountIn), out}, nil
}

// EncodeSwap implements dex.Router at the default fee tier
func (v *V3Router) EncodeSwap(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	if len(path) != 2 {
		return nil, fmt.Errorf("single-hop router needs a two-token path, got %d", len(path))
	}
	return v.EncodeExactInputSingle(path[0], path[1], v.fee, to, deadline, amountIn, minOut, nil)
}

func (v *V3Router) unavailable(tokenIn, tokenOut common.Address, fee uint32, cause error) error {
	return apperror.New(apperror.CodeQuoteUnavailable,
		apperror.WithContext(fmt.Sprintf("uniswapv3 %s->%s fee %d", tokenIn.Hex(), tokenOut.Hex(), fee)),
		apperror.WithCause(cause))
}
