package arbitrage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

func TestDetectDeviationOpportunities(t *testing.T) {
	tests := []struct {
		name      string
		snapshot  domain.PriceSnapshot
		threshold float64
		want      []domain.DeviationHit
	}{
		{
			name:      "above threshold",
			snapshot:  domain.PriceSnapshot{"uniswap": 100, "sushiswap": 103},
			threshold: 0.02,
			want:      []domain.DeviationHit{{Venue: "sushiswap", Price: 103}},
		},
		{
			name:      "boundary is inclusive",
			snapshot:  domain.PriceSnapshot{"uniswap": 100, "sushiswap": 102},
			threshold: 0.02,
			want:      []domain.DeviationHit{{Venue: "sushiswap", Price: 102}},
		},
		{
			name:      "below threshold is none",
			snapshot:  domain.PriceSnapshot{"uniswap": 100, "sushiswap": 101},
			threshold: 0.02,
			want:      nil,
		},
		{
			name:      "invalid entries ignored when two remain",
			snapshot:  domain.PriceSnapshot{"uniswap": 100, "sushiswap": 105, "dead": 0},
			threshold: 0.02,
			want:      []domain.DeviationHit{{Venue: "sushiswap", Price: 105}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectDeviationOpportunities(tt.snapshot, tt.threshold)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Venue, got[i].Venue)
				assert.Equal(t, tt.want[i].Price, got[i].Price)
			}
		})
	}
}

func TestDetectDeviationOpportunitiesInvalidInput(t *testing.T) {
	valid := domain.PriceSnapshot{"uniswap": 100, "sushiswap": 103}

	tests := []struct {
		name      string
		snapshot  domain.PriceSnapshot
		threshold float64
	}{
		{"empty snapshot", domain.PriceSnapshot{}, 0.02},
		{"single entry", domain.PriceSnapshot{"uniswap": 100}, 0.02},
		{"threshold above one", valid, 1.5},
		{"threshold of one", valid, 1},
		{"zero threshold", valid, 0},
		{"negative threshold", valid, -0.1},
		{"nan threshold", valid, math.NaN()},
		{"infinite threshold", valid, math.Inf(1)},
		{"fewer than two valid prices", domain.PriceSnapshot{"uniswap": 100, "sushiswap": 0}, 0.02},
		{"nan prices", domain.PriceSnapshot{"uniswap": math.NaN(), "sushiswap": 100}, 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectDeviationOpportunities(tt.snapshot, tt.threshold)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Nil(t, got)
		})
	}
}

func TestDeviationStrategy(t *testing.T) {
	s := Deviation{Threshold: 0.02}
	opps, err := s.Detect(domain.PriceSnapshot{"uniswap": 100, "sushiswap": 103, "curve": 100.5})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "uniswap", opps[0].BuyVenue)
	assert.Equal(t, "sushiswap", opps[0].SellVenue)
	assert.Equal(t, "deviation", opps[0].Strategy)
	assert.InDelta(t, 0.03, opps[0].ProfitFraction, 1e-12)

	opps, err = s.Detect(domain.PriceSnapshot{"uniswap": 100, "sushiswap": 101})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(0.005, 0.02)
	assert.Equal(t, []string{"deviation", "pairwise"}, r.List())

	s, err := r.Get("pairwise")
	require.NoError(t, err)
	opps, err := s.Detect(domain.PriceSnapshot{"a": 100, "b": 102})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "pairwise", opps[0].Strategy)

	_, err = r.Get("triangular")
	assert.Error(t, err)
}
