package flashloan

import (
	"math/big"
)

// PremiumSource prices the flash-loan premium charged by a lending protocol
type PremiumSource interface {
	// Premium returns floor(amount * bps / 10000)
	Premium(amount *big.Int) *big.Int
	PremiumBps() uint64
	String() string
}
