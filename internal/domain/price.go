package domain

import (
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceSnapshot maps a venue name to its quoted price for the traded pair.
// Insertion order carries no meaning.
type PriceSnapshot map[string]float64

// ValidPrice reports whether p can take part in detection.
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// Valid returns a copy holding only entries with a valid price.
func (s PriceSnapshot) Valid() PriceSnapshot {
	out := make(PriceSnapshot, len(s))
	for venue, p := range s {
		if ValidPrice(p) {
			out[venue] = p
		}
	}
	return out
}

// Venue is a constant-product pool quoting the traded pair.
type Venue struct {
	Name        string
	PairAddress common.Address
}

// VenueQuote is the last reserve read for one venue.
type VenueQuote struct {
	Venue     string    `json:"venue"`
	ReserveA  *big.Int  `json:"reserve_a"`
	ReserveB  *big.Int  `json:"reserve_b"`
	Price     float64   `json:"price"`
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
