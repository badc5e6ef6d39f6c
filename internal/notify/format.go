package notify

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Formatter renders domain events as alert text. Amounts are shown in whole
// tokens using Decimals.
type Formatter struct {
	Pair     string
	Decimals int32
}

// Opportunity renders a detected opportunity.
func (f Formatter) Opportunity(opp domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("Arbitrage opportunity %s", f.Pair)
	message = fmt.Sprintf("buy %s @ %s\nsell %s @ %s\nprofit %s%%",
		opp.BuyVenue, trimFloat(opp.BuyPrice),
		opp.SellVenue, trimFloat(opp.SellPrice),
		decimal.NewFromFloat(opp.ProfitFraction*100).StringFixed(3),
	)
	return title, message
}

// Execution renders a finished execution attempt.
func (f Formatter) Execution(exec domain.Execution) (title, message string) {
	switch exec.Status {
	case domain.ExecutionConfirmed:
		title = fmt.Sprintf("Trade executed %s", f.Pair)
	default:
		title = fmt.Sprintf("Trade %s %s", exec.Status, f.Pair)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "route %s -> %s (%s)\n", exec.BuyVenue, exec.SellVenue, exec.Kind)
	fmt.Fprintf(&b, "amount in %s, min out %s\n", f.Amount(exec.AmountIn), f.Amount(exec.MinAmountOut))
	if exec.TxHash != "" {
		fmt.Fprintf(&b, "tx %s\n", exec.TxHash)
	}
	if exec.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", exec.Error)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// CircuitBreaker renders a breaker trip.
func (f Formatter) CircuitBreaker(volatility, threshold float64) (title, message string) {
	return "Circuit breaker tripped",
		fmt.Sprintf("volatility %s exceeds stop-loss threshold %s; trading halted",
			trimFloat(volatility), trimFloat(threshold))
}

// Amount converts a base-unit decimal string to whole tokens. Unparseable
// input is returned unchanged.
func (f Formatter) Amount(baseUnits string) string {
	n, ok := new(big.Int).SetString(baseUnits, 10)
	if !ok {
		return baseUnits
	}
	return decimal.NewFromBigInt(n, -f.Decimals).String()
}

func trimFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}
