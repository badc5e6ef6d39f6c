package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// SnapshotCache stores the latest quote of every venue as a hash at
// "dexarb:quotes:{pair}", one JSON field per venue. The whole hash expires
// after ttl so a stopped bot does not leave stale prices behind.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. A zero ttl keeps entries forever.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: c.rdb, ttl: ttl}
}

func quotesKey(pair string) string {
	return keyPrefix + "quotes:" + pair
}

// SetQuotes writes quotes in one pipeline.
func (sc *SnapshotCache) SetQuotes(ctx context.Context, pair string, quotes []domain.VenueQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	fields, err := encodeQuotes(quotes)
	if err != nil {
		return fmt.Errorf("redis: encode quotes %s: %w", pair, err)
	}

	key := quotesKey(pair)
	_, err = sc.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields)
		if sc.ttl > 0 {
			p.Expire(ctx, key, sc.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set quotes %s: %w", pair, err)
	}
	return nil
}

// GetQuotes returns the cached quotes sorted by venue, or domain.ErrNotFound.
func (sc *SnapshotCache) GetQuotes(ctx context.Context, pair string) ([]domain.VenueQuote, error) {
	vals, err := sc.rdb.HGetAll(ctx, quotesKey(pair)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %s: %w", pair, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}
	quotes, err := decodeQuotes(vals)
	if err != nil {
		return nil, fmt.Errorf("redis: decode quotes %s: %w", pair, err)
	}
	return quotes, nil
}

func encodeQuotes(quotes []domain.VenueQuote) (map[string]any, error) {
	fields := make(map[string]any, len(quotes))
	for _, q := range quotes {
		raw, err := json.Marshal(q)
		if err != nil {
			return nil, err
		}
		fields[q.Venue] = string(raw)
	}
	return fields, nil
}

func decodeQuotes(vals map[string]string) ([]domain.VenueQuote, error) {
	out := make([]domain.VenueQuote, 0, len(vals))
	for venue, raw := range vals {
		var q domain.VenueQuote
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("venue %s: %w", venue, err)
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out, nil
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
