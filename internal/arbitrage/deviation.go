package arbitrage

import (
	"fmt"
	"math"
	"sort"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// DetectDeviationOpportunities returns the venues whose price deviates from
// the snapshot minimum by at least threshold, computed as
// (price - min) / min. The comparison is inclusive.
//
// Unlike FindOpportunities it validates its input and fails with
// domain.ErrInvalidInput when the snapshot has fewer than two entries, when
// threshold is not a finite number in (0, 1), or when fewer than two entries
// carry a valid price. A nil slice with a nil error means no venue qualified.
func DetectDeviationOpportunities(snapshot domain.PriceSnapshot, threshold float64) ([]domain.DeviationHit, error) {
	if len(snapshot) < 2 {
		return nil, fmt.Errorf("arbitrage: need at least 2 venues, got %d: %w", len(snapshot), domain.ErrInvalidInput)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("arbitrage: threshold %v outside (0, 1): %w", threshold, domain.ErrInvalidInput)
	}

	valid := snapshot.Valid()
	if len(valid) < 2 {
		return nil, fmt.Errorf("arbitrage: need at least 2 valid prices, got %d: %w", len(valid), domain.ErrInvalidInput)
	}

	minPrice := math.Inf(1)
	for _, p := range valid {
		if p < minPrice {
			minPrice = p
		}
	}

	var hits []domain.DeviationHit
	for venue, p := range valid {
		dev := (p - minPrice) / minPrice
		if dev >= threshold {
			hits = append(hits, domain.DeviationHit{Venue: venue, Price: p, Deviation: dev})
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Deviation != hits[j].Deviation {
			return hits[i].Deviation > hits[j].Deviation
		}
		return hits[i].Venue < hits[j].Venue
	})
	return hits, nil
}

// CheapestVenue returns the valid venue with the lowest price. Ties resolve
// to the lexically smallest name.
func CheapestVenue(snapshot domain.PriceSnapshot) (string, float64, bool) {
	var (
		best  string
		price = math.Inf(1)
	)
	for venue, p := range snapshot {
		if !domain.ValidPrice(p) {
			continue
		}
		if p < price || (p == price && venue < best) {
			best, price = venue, p
		}
	}
	return best, price, best != ""
}
