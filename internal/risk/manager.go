// Package risk sizes positions against available liquidity and decides when
// market volatility should halt trading.
package risk

import (
	"log/slog"
	"math/big"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// liquidityShare is the percentage of buy-venue liquidity a single position
// may take.
const liquidityShare = 10

// Config is fixed at construction.
type Config struct {
	// MaxPositionSize caps every position, in input-token base units.
	MaxPositionSize *big.Int
	// StopLossThreshold is the volatility above which the breaker trips.
	StopLossThreshold float64
}

// Manager applies the position-size policy and the circuit breaker. Apart from
// the volatility estimator it holds no mutable state and performs no loop
// control; callers act on its answers.
type Manager struct {
	cfg       Config
	estimator VolatilityEstimator
	logger    *slog.Logger
}

// NewManager creates a Manager. A nil estimator reports zero volatility.
func NewManager(cfg Config, estimator VolatilityEstimator, logger *slog.Logger) *Manager {
	if cfg.MaxPositionSize == nil {
		cfg.MaxPositionSize = new(big.Int)
	}
	if estimator == nil {
		estimator = StaticVolatility(0)
	}
	return &Manager{
		cfg:       cfg,
		estimator: estimator,
		logger:    logger.With(slog.String("component", "risk")),
	}
}

// SizePosition returns 10% of availableLiquidity, capped at MaxPositionSize.
// A zero result means "do not trade"; it is not an error.
func (m *Manager) SizePosition(opp domain.Opportunity, availableLiquidity *big.Int) *big.Int {
	if availableLiquidity == nil || availableLiquidity.Sign() <= 0 {
		m.logger.Debug("risk: no liquidity at buy venue",
			slog.String("venue", opp.BuyVenue),
		)
		return new(big.Int)
	}

	proposed := new(big.Int).Mul(availableLiquidity, big.NewInt(liquidityShare))
	proposed.Quo(proposed, big.NewInt(100))

	if proposed.Cmp(m.cfg.MaxPositionSize) > 0 {
		m.logger.Debug("risk: position clamped to max",
			slog.String("route", opp.Route()),
			slog.String("proposed", proposed.String()),
			slog.String("max", m.cfg.MaxPositionSize.String()),
		)
		return new(big.Int).Set(m.cfg.MaxPositionSize)
	}
	return proposed
}

// EvaluateCircuitBreaker reports whether currentVolatility strictly exceeds
// the stop-loss threshold.
func (m *Manager) EvaluateCircuitBreaker(currentVolatility float64) bool {
	return currentVolatility > m.cfg.StopLossThreshold
}

// Refresh feeds one consensus price to the volatility estimator.
func (m *Manager) Refresh(price float64) {
	m.estimator.Observe(price)
}

// Volatility returns the current estimate.
func (m *Manager) Volatility() float64 {
	return m.estimator.Volatility()
}

// Config returns a copy of the manager's configuration.
func (m *Manager) Config() Config {
	return Config{
		MaxPositionSize:   new(big.Int).Set(m.cfg.MaxPositionSize),
		StopLossThreshold: m.cfg.StopLossThreshold,
	}
}
