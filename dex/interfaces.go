package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Router is a swap venue that quotes and encodes exact-input swaps
type Router interface {
	// Name returns the canonical venue identifier
	Name() string

	// Address returns the router contract that swap calldata targets
	Address() common.Address

	// Quote returns the venue's own per-hop output amounts, starting with amountIn.
	// A reverted or empty view call fails with QUOTE_UNAVAILABLE.
	Quote(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)

	// EncodeSwap builds exact-input swap calldata with a minimum output floor
	EncodeSwap(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error)
}
