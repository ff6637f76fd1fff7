package math

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BpsDenominator is 100% expressed in basis points
const BpsDenominator = 10000

var (
	bpsDenominator = big.NewInt(BpsDenominator)

	// MaxUint256 is 2^256 - 1
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	gweiMultiplier = decimal.New(1, 9)
)

// BpsOf returns floor(amount * bps / 10000)
func BpsOf(amount *big.Int, bps uint64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, bpsDenominator)
}

// ApplySlippage returns floor(amount * (10000 - bps) / 10000).
// bps above 10000 is treated as 10000 so the result never goes negative.
func ApplySlippage(amount *big.Int, bps uint64) *big.Int {
	if bps > BpsDenominator {
		bps = BpsDenominator
	}
	return BpsOf(amount, BpsDenominator-bps)
}

// ClampZero returns max(x, 0) as a fresh value
func ClampZero(x *big.Int) *big.Int {
	if x == nil || x.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// IsUint256 reports whether x fits the unsigned 256-bit range
func IsUint256(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(MaxUint256) <= 0
}

// ParsePositive parses a strictly base-10 integer and requires it to be > 0.
// Prefixes are not interpreted: "010" is ten, "0x10" is rejected.
func ParsePositive(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, false
	}
	return v, true
}

// GweiToWei converts a decimal gwei amount (e.g. "2", "1.5") to wei, truncating below 1 wei
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return gwei.Mul(gweiMultiplier).BigInt()
}

// ParseGwei parses a gwei string into wei
func ParseGwei(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid gwei value %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("gwei value %q must not be negative", s)
	}
	return GweiToWei(d), nil
}

// FormatGwei renders a wei amount as gwei for logs
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).String()
}
