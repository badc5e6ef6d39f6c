// Package pricefeed reads reserves from every configured venue and turns them
// into a price snapshot for the detectors.
package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

const defaultFetchTimeout = 5 * time.Second

// Config configures a Monitor.
type Config struct {
	// Pair names the traded pair in caches and logs, e.g. "WETH/USDC".
	Pair string
	// TokenA is the token whose reserve is the price numerator. When zero the
	// pair's token0 is assumed to be token A.
	TokenA common.Address
	// FetchTimeout bounds each venue read.
	FetchTimeout time.Duration
}

// Monitor fetches venue reserves concurrently and keeps the last quote per
// venue for liquidity lookups and the status API.
type Monitor struct {
	source domain.ReserveSource
	cache  domain.SnapshotCache
	venues []domain.Venue
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	resolved bool
	inverted map[string]bool
	quotes   map[string]domain.VenueQuote
}

// NewMonitor creates a Monitor. cache may be nil.
func NewMonitor(source domain.ReserveSource, cache domain.SnapshotCache, venues []domain.Venue, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Monitor{
		source:   source,
		cache:    cache,
		venues:   append([]domain.Venue(nil), venues...),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "pricefeed")),
		inverted: make(map[string]bool, len(venues)),
		quotes:   make(map[string]domain.VenueQuote, len(venues)),
	}
}

// Resolve binds every venue to its pair contract and records the reserve
// orientation. It fails when any venue cannot be resolved.
func (m *Monitor) Resolve(ctx context.Context) error {
	inverted := make(map[string]bool, len(m.venues))
	if m.cfg.TokenA != (common.Address{}) {
		for _, v := range m.venues {
			token0, err := m.source.Token0(ctx, v.PairAddress)
			if err != nil {
				return fmt.Errorf("pricefeed: resolve venue %q: %w", v.Name, err)
			}
			inverted[v.Name] = token0 != m.cfg.TokenA
		}
	}

	m.mu.Lock()
	m.inverted = inverted
	m.resolved = true
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "pricefeed: venues resolved",
		slog.Int("venues", len(m.venues)),
		slog.String("pair", m.cfg.Pair),
	)
	return nil
}

// Snapshot reads all venues concurrently, each under its own timeout. A venue
// that fails or returns unusable reserves is logged and left out of the
// snapshot; it is still reported in the returned quotes as unavailable.
func (m *Monitor) Snapshot(ctx context.Context) (domain.PriceSnapshot, []domain.VenueQuote, error) {
	m.mu.RLock()
	resolved := m.resolved
	m.mu.RUnlock()
	if !resolved {
		if err := m.Resolve(ctx); err != nil {
			return nil, nil, err
		}
	}

	quotes := make([]domain.VenueQuote, len(m.venues))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range m.venues {
		g.Go(func() error {
			quotes[i] = m.fetch(gctx, v)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("pricefeed: snapshot: %w", err)
	}

	snapshot := make(domain.PriceSnapshot, len(quotes))
	m.mu.Lock()
	for _, q := range quotes {
		m.quotes[q.Venue] = q
		if q.Available {
			snapshot[q.Venue] = q.Price
		}
	}
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.SetQuotes(ctx, m.cfg.Pair, quotes); err != nil {
			m.logger.WarnContext(ctx, "pricefeed: cache quotes failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return snapshot, quotes, nil
}

func (m *Monitor) fetch(ctx context.Context, v domain.Venue) domain.VenueQuote {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()

	q := domain.VenueQuote{Venue: v.Name, FetchedAt: time.Now().UTC()}
	r0, r1, err := m.source.Reserves(ctx, v.PairAddress)
	if err != nil {
		q.Error = err.Error()
		m.logger.WarnContext(ctx, "pricefeed: venue unavailable",
			slog.String("venue", v.Name),
			slog.String("pair", v.PairAddress.Hex()),
			slog.String("error", err.Error()),
		)
		return q
	}

	m.mu.RLock()
	inverted := m.inverted[v.Name]
	m.mu.RUnlock()
	if inverted {
		r0, r1 = r1, r0
	}
	q.ReserveA, q.ReserveB = r0, r1

	price, ok := PriceFromReserves(r0, r1)
	if !ok {
		q.Error = "unusable reserves"
		m.logger.WarnContext(ctx, "pricefeed: unusable reserves",
			slog.String("venue", v.Name),
			slog.Any("reserve_a", r0),
			slog.Any("reserve_b", r1),
		)
		return q
	}
	q.Price = price
	q.Available = true
	return q
}

// Quotes returns the last quote of every venue, sorted by venue name.
func (m *Monitor) Quotes() []domain.VenueQuote {
	m.mu.RLock()
	out := make([]domain.VenueQuote, 0, len(m.quotes))
	for _, q := range m.quotes {
		out = append(out, q)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// Liquidity returns the token-A reserve last read at venue.
func (m *Monitor) Liquidity(venue string) (*big.Int, error) {
	m.mu.RLock()
	q, ok := m.quotes[venue]
	m.mu.RUnlock()
	if !ok || !q.Available || q.ReserveA == nil {
		return nil, fmt.Errorf("pricefeed: no reserves for venue %q: %w", venue, domain.ErrDataUnavailable)
	}
	return new(big.Int).Set(q.ReserveA), nil
}

// PriceFromReserves returns reserveA/reserveB. It reports false when either
// reserve is missing or not positive, or the ratio does not fit a float64.
func PriceFromReserves(reserveA, reserveB *big.Int) (float64, bool) {
	if reserveA == nil || reserveB == nil || reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return 0, false
	}
	price, _ := new(big.Rat).SetFrac(reserveA, reserveB).Float64()
	if !domain.ValidPrice(price) {
		return 0, false
	}
	return price, true
}

var _ domain.LiquiditySource = (*Monitor)(nil)
