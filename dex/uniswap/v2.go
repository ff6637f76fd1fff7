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

// V2Router quotes and encodes swaps against a constant-product router.
// Quotes always come from the router's getAmountsOut view so rounding matches on-chain execution.
type V2Router struct {
	name      string
	router    common.Address
	caller    rpc.ContractCaller
	routerABI abi.ABI
}

// NewV2Router creates an adapter for any router exposing the Uniswap V2 interface
func NewV2Router(name string, router common.Address, caller rpc.ContractCaller) (*V2Router, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller cannot be nil")
	}
	parsedABI, err := abi.JSON(strings.NewReader(dex.UniswapV2RouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	return &V2Router{
		name:      name,
		router:    router,
		caller:    caller,
		routerABI: parsedABI,
	}, nil
}

// NewUniswapV2 creates the Uniswap V2 adapter
func NewUniswapV2(router common.Address, caller rpc.ContractCaller) (*V2Router, error) {
	return NewV2Router(dex.VenueUniswapV2, router, caller)
}

// Name returns the venue identifier
func (u *V2Router) Name() string {
	return u.name
}

// Address returns the router contract address
func (u *V2Router) Address() common.Address {
	return u.router
}

// Quote returns getAmountsOut(amountIn, path)
func (u *V2Router) Quote(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("invalid path length %d", len(path))
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("invalid input amount")
	}

	data, err := u.routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getAmountsOut: %w", err)
	}

	out, err := u.caller.CallContract(ctx, ethereum.CallMsg{To: &u.router, Data: data}, nil)
	if err != nil {
		return nil, u.unavailable(path, err)
	}
	if len(out) == 0 {
		return nil, u.unavailable(path, fmt.Errorf("empty result"))
	}

	values, err := u.routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, u.unavailable(path, fmt.Errorf("failed to decode amounts: %w", err))
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, u.unavailable(path, fmt.Errorf("unexpected amounts %v", values[0]))
	}
	if amounts[len(amounts)-1].Sign() == 0 {
		return nil, u.unavailable(path, fmt.Errorf("no route"))
	}

	return amounts, nil
}

// EncodeSwap packs swapExactTokensForTokens
func (u *V2Router) EncodeSwap(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("invalid path length %d", len(path))
	}
	data, err := u.routerABI.Pack("swapExactTokensForTokens", amountIn, minOut, path, to, deadline)
	if err != nil {
		return nil, apperror.New(apperror.CodeEncodingError,
			apperror.WithContext(u.name+" swap"),
			apperror.WithCause(err))
	}
	return data, nil
}

func (u *V2Router) unavailable(path []common.Address, cause error) error {
	return apperror.New(apperror.CodeQuoteUnavailable,
		apperror.WithContext(fmt.Sprintf("%s %s->%s", u.name, path[0].Hex(), path[len(path)-1].Hex())),
		apperror.WithCause(cause))
}
