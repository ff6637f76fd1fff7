package arbitrage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/advisory"
	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/michaelpento.lv/flashplanner/flashloan"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"go.uber.org/zap"
)

// Selection is the first advisory path this deployment can execute as a two-hop cycle
type Selection struct {
	Index   int
	Path    advisory.Path
	RouterA dex.Router
	RouterB dex.Router
	TokenIn common.Address
	Mid     common.Address
}

// SelectCycle picks the first path whose dex sequence names exactly two
// configured venues and whose first two assets are well-formed addresses.
// Paths are hints; anything unusable is skipped.
func SelectCycle(registry *dex.Registry, paths []advisory.Path, logger *zap.Logger) (*Selection, bool) {
	for i, path := range paths {
		if len(path.DexSequence) != 2 || len(path.Assets) < 2 {
			continue
		}
		routerA, ok := registry.Lookup(path.DexSequence[0])
		if !ok {
			continue
		}
		routerB, ok := registry.Lookup(path.DexSequence[1])
		if !ok {
			continue
		}
		if !flashloan.IsAddress(path.Assets[0]) || !flashloan.IsAddress(path.Assets[1]) {
			logger.Debug("skipping path with malformed asset",
				zap.Int("index", i),
				zap.Strings("assets", path.Assets))
			continue
		}
		return &Selection{
			Index:   i,
			Path:    path,
			RouterA: routerA,
			RouterB: routerB,
			TokenIn: common.HexToAddress(path.Assets[0]),
			Mid:     common.HexToAddress(path.Assets[1]),
		}, true
	}
	return nil, false
}

// SelectAmount takes the path's first suggested amount when it is a positive
// base-10 integer, otherwise a copy of fallback. Callers pass the selected
// path, not paths[0], so the amount always belongs to the cycle being quoted.
func SelectAmount(path advisory.Path, fallback *big.Int) *big.Int {
	if len(path.Amounts) > 0 {
		if amount, ok := bigmath.ParsePositive(string(path.Amounts[0])); ok {
			return amount
		}
	}
	return new(big.Int).Set(fallback)
}
