package risk

import (
	"math"
	"sync"
)

// VolatilityEstimator turns a stream of prices into a non-negative number
// comparable to the stop-loss threshold.
type VolatilityEstimator interface {
	Observe(price float64)
	Volatility() float64
}

// StaticVolatility always reports the same value.
type StaticVolatility float64

func (StaticVolatility) Observe(float64) {}

func (s StaticVolatility) Volatility() float64 { return float64(s) }

// RollingVolatility is the population standard deviation of simple returns
// over the last window prices. Safe for concurrent use.
type RollingVolatility struct {
	mu     sync.Mutex
	window int
	prices []float64
}

// NewRollingVolatility keeps at most window prices. Windows below 2 are
// raised to 2, the minimum that yields a return.
func NewRollingVolatility(window int) *RollingVolatility {
	if window < 2 {
		window = 2
	}
	return &RollingVolatility{
		window: window,
		prices: make([]float64, 0, window),
	}
}

// Observe appends price, dropping the oldest when the window is full.
// Non-positive and non-finite prices are ignored.
func (r *RollingVolatility) Observe(price float64) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.prices) == r.window {
		copy(r.prices, r.prices[1:])
		r.prices = r.prices[:len(r.prices)-1]
	}
	r.prices = append(r.prices, price)
}

// Volatility returns 0 until two prices have been observed.
func (r *RollingVolatility) Volatility() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.prices) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(r.prices)-1)
	var sum float64
	for i := 1; i < len(r.prices); i++ {
		ret := (r.prices[i] - r.prices[i-1]) / r.prices[i-1]
		returns = append(returns, ret)
		sum += ret
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, ret := range returns {
		d := ret - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(returns)))
}

// Len reports how many prices are in the window.
func (r *RollingVolatility) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prices)
}
