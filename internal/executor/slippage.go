package executor

import (
	"math/big"
	"time"
)

// Gas-limit ceilings attached to each submission.
const (
	SwapGasLimit      uint64 = 300_000
	FlashLoanGasLimit uint64 = 500_000
)

// PerMille is the denominator of the slippage tolerance scale. A tolerance of
// 50 allows a 5% shortfall.
const PerMille = 1000

// minWindowSeconds is the shortest execution window a deadline may grant.
const minWindowSeconds = 60

// gasPremiumPercent is the bid as a percentage of the network gas price.
const gasPremiumPercent = 120

// MinimumOutput returns floor(amountIn * (1000 - tolerance) / 1000), the
// smallest acceptable output for a swap of amountIn. Tolerance is in parts
// per thousand and is clamped to [0, 1000]. A zero or nil amountIn yields 0.
func MinimumOutput(amountIn *big.Int, tolerance int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	keep := big.NewInt(int64(PerMille - clampTolerance(tolerance)))
	out := new(big.Int).Mul(amountIn, keep)
	return out.Quo(out, big.NewInt(PerMille))
}

// SlippageAllowance returns floor(amountIn * tolerance / 1000), the shortfall
// the tolerance permits. SlippageAllowance(1000, 10) is 10.
func SlippageAllowance(amountIn *big.Int, tolerance int) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amountIn, big.NewInt(int64(clampTolerance(tolerance))))
	return out.Quo(out, big.NewInt(PerMille))
}

func clampTolerance(t int) int {
	switch {
	case t < 0:
		return 0
	case t > PerMille:
		return PerMille
	default:
		return t
	}
}

// Deadline returns now + max(60, windowMinutes*60) as unix seconds. Short,
// zero and negative windows are clamped to one minute.
func Deadline(now time.Time, windowMinutes int) int64 {
	window := int64(windowMinutes) * 60
	if window < minWindowSeconds {
		window = minWindowSeconds
	}
	return now.Unix() + window
}

// GasBid returns networkPrice * 120 / 100.
func GasBid(networkPrice *big.Int) *big.Int {
	bid := new(big.Int).Mul(networkPrice, big.NewInt(gasPremiumPercent))
	return bid.Quo(bid, big.NewInt(100))
}
