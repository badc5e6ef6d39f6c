package arbitrage

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// priceScale is the fixed-point scale applied to float prices before they
// enter integer arithmetic.
var priceScale = big.NewFloat(1e9)

// TradeEstimate is the expected outcome of a round trip at quoted prices,
// ignoring fees and price impact.
type TradeEstimate struct {
	AmountIn       *big.Int
	ExpectedOut    *big.Int
	ExpectedProfit *big.Int
}

// EstimateTradeAmount converts amountIn at buyPrice and back at sellPrice.
// Prices are truncated to nine decimal places so the arithmetic on amounts
// stays exact.
func EstimateTradeAmount(buyPrice, sellPrice float64, amountIn *big.Int) (TradeEstimate, error) {
	if !domain.ValidPrice(buyPrice) || !domain.ValidPrice(sellPrice) {
		return TradeEstimate{}, fmt.Errorf("arbitrage: estimate prices %v/%v: %w", buyPrice, sellPrice, domain.ErrInvalidInput)
	}
	if amountIn == nil || amountIn.Sign() < 0 {
		return TradeEstimate{}, fmt.Errorf("arbitrage: estimate amount must be non-negative: %w", domain.ErrInvalidInput)
	}

	buyScaled := scalePrice(buyPrice)
	if buyScaled.Sign() == 0 {
		return TradeEstimate{}, fmt.Errorf("arbitrage: buy price %v below fixed-point resolution: %w", buyPrice, domain.ErrInvalidInput)
	}
	sellScaled := scalePrice(sellPrice)

	out := new(big.Int).Mul(amountIn, sellScaled)
	out.Quo(out, buyScaled)

	return TradeEstimate{
		AmountIn:       new(big.Int).Set(amountIn),
		ExpectedOut:    out,
		ExpectedProfit: new(big.Int).Sub(out, amountIn),
	}, nil
}

func scalePrice(p float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(p), priceScale)
	i, _ := f.Int(nil)
	return i
}

// AveragePrice is the unweighted mean of the valid prices in snapshot.
func AveragePrice(snapshot domain.PriceSnapshot) (float64, error) {
	var (
		sum float64
		n   int
	)
	for _, p := range snapshot {
		if domain.ValidPrice(p) {
			sum += p
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("arbitrage: no valid prices: %w", domain.ErrInvalidInput)
	}
	return sum / float64(n), nil
}
