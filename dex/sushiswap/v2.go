package sushiswap

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/dex/uniswap"
	"github.com/michaelpento.lv/flashplanner/rpc"
)

// NewSushiswapV2 creates the Sushiswap adapter. The router is a Uniswap V2 fork with an
// identical quote and swap interface.
func NewSushiswapV2(router common.Address, caller rpc.ContractCaller) (*uniswap.V2Router, error) {
	return uniswap.NewV2Router(dex.VenueSushiswap, router, caller)
}
