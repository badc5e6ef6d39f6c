package domain

import "time"

// Opportunity is a profitable buy/sell venue pair found in one snapshot.
// ProfitFraction is (sell - buy) / buy.
type Opportunity struct {
	ID             string    `json:"id"`
	BuyVenue       string    `json:"buy_venue"`
	SellVenue      string    `json:"sell_venue"`
	BuyPrice       float64   `json:"buy_price"`
	SellPrice      float64   `json:"sell_price"`
	ProfitFraction float64   `json:"profit_fraction"`
	Strategy       string    `json:"strategy"`
	DetectedAt     time.Time `json:"detected_at"`
}

// Route identifies the direction of an opportunity independent of its prices.
func (o Opportunity) Route() string {
	return o.BuyVenue + "->" + o.SellVenue
}

// DeviationHit is a venue whose price deviates from the snapshot minimum by at
// least the requested threshold.
type DeviationHit struct {
	Venue     string  `json:"venue"`
	Price     float64 `json:"price"`
	Deviation float64 `json:"deviation"`
}
