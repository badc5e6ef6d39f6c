package domain

import (
	"context"
	"time"
)

// SnapshotCache shares the latest venue quotes with other processes.
type SnapshotCache interface {
	SetQuotes(ctx context.Context, pair string, quotes []VenueQuote) error
	GetQuotes(ctx context.Context, pair string) ([]VenueQuote, error)
}

// LockManager hands out distributed mutual-exclusion locks.
type LockManager interface {
	// Acquire returns ErrLockHeld when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus fans out bot events to subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Channels published on the SignalBus.
const (
	ChannelOpportunities = "dexarb:opportunities"
	ChannelExecutions    = "dexarb:executions"
	ChannelStatus        = "dexarb:status"
)
