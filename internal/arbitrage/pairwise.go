// Package arbitrage detects cross-venue price divergences in a price snapshot.
// It has two separate detectors: pairwise round-trip profit and deviation
// from the cheapest venue. Callers pick one per use case.
package arbitrage

import (
	"sort"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// DefaultMinProfitFraction is the pairwise threshold used when none is
// configured (0.5%).
const DefaultMinProfitFraction = 0.005

// ProfitFraction returns (sell - buy) / buy.
func ProfitFraction(buyPrice, sellPrice float64) float64 {
	return (sellPrice - buyPrice) / buyPrice
}

// FindOpportunities evaluates every unordered pair of valid venues in both
// directions and keeps each direction whose profit fraction strictly exceeds
// minProfitFraction. Invalid prices are dropped before pairing, so there is
// never a division by zero. Fewer than two valid venues yields an empty
// result rather than an error.
//
// The result is ordered by profit fraction, highest first, with ties broken
// by buy venue then sell venue. The snapshot is not modified.
func FindOpportunities(snapshot domain.PriceSnapshot, minProfitFraction float64) []domain.Opportunity {
	valid := snapshot.Valid()
	if len(valid) < 2 {
		return []domain.Opportunity{}
	}

	venues := make([]string, 0, len(valid))
	for v := range valid {
		venues = append(venues, v)
	}
	sort.Strings(venues)

	opps := make([]domain.Opportunity, 0)
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			a, b := venues[i], venues[j]
			pa, pb := valid[a], valid[b]

			if profit := ProfitFraction(pa, pb); profit > minProfitFraction {
				opps = append(opps, domain.Opportunity{
					BuyVenue:       a,
					SellVenue:      b,
					BuyPrice:       pa,
					SellPrice:      pb,
					ProfitFraction: profit,
				})
			}
			if profit := ProfitFraction(pb, pa); profit > minProfitFraction {
				opps = append(opps, domain.Opportunity{
					BuyVenue:       b,
					SellVenue:      a,
					BuyPrice:       pb,
					SellPrice:      pa,
					ProfitFraction: profit,
				})
			}
		}
	}

	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].ProfitFraction != opps[j].ProfitFraction {
			return opps[i].ProfitFraction > opps[j].ProfitFraction
		}
		if opps[i].BuyVenue != opps[j].BuyVenue {
			return opps[i].BuyVenue < opps[j].BuyVenue
		}
		return opps[i].SellVenue < opps[j].SellVenue
	})
	return opps
}
