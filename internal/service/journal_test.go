package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/notify"
)

type recBus struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (b *recBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msgs == nil {
		b.msgs = map[string][][]byte{}
	}
	b.msgs[channel] = append(b.msgs[channel], payload)
	return nil
}

func (b *recBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type recAudit struct{ events []string }

func (a *recAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *recAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type failingExecStore struct{ domain.ExecutionStore }

func (failingExecStore) Create(context.Context, domain.Execution) error {
	return errors.New("db down")
}

func (failingExecStore) Update(context.Context, domain.Execution) error {
	return errors.New("db down")
}

type recSender struct{ titles []string }

func (s *recSender) Send(_ context.Context, title, _ string) error {
	s.titles = append(s.titles, title)
	return nil
}

func (s *recSender) Name() string { return "rec" }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJournal_RecordOpportunities(t *testing.T) {
	bus := &recBus{}
	sender := &recSender{}
	j := NewJournal(JournalDeps{
		Bus:       bus,
		Notifier:  notify.NewNotifier([]notify.Sender{sender}, nil, discard()),
		Formatter: notify.Formatter{Pair: "A/B", Decimals: 18},
	}, discard())

	opps := []domain.Opportunity{
		{BuyVenue: "uniswap", SellVenue: "sushiswap", ProfitFraction: 0.02},
		{BuyVenue: "pancake", SellVenue: "sushiswap", ProfitFraction: 0.01},
	}
	j.RecordOpportunities(context.Background(), opps)

	assert.NotEmpty(t, opps[0].ID)
	assert.NotEqual(t, opps[0].ID, opps[1].ID)
	require.Len(t, bus.msgs[domain.ChannelOpportunities], 2)

	var published domain.Opportunity
	require.NoError(t, json.Unmarshal(bus.msgs[domain.ChannelOpportunities][0], &published))
	assert.Equal(t, opps[0].ID, published.ID)
	assert.Len(t, sender.titles, 1, "only the best opportunity is notified")

	recent, err := j.RecentOpportunities(context.Background(), domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "uniswap", recent[0].BuyVenue)
}

func TestJournal_ExecutionLifecycle(t *testing.T) {
	audit := &recAudit{}
	sender := &recSender{}
	j := NewJournal(JournalDeps{
		Audit:    audit,
		Notifier: notify.NewNotifier([]notify.Sender{sender}, []string{notify.EventTradeExecuted}, discard()),
	}, discard())

	exec := domain.Execution{ID: "e1", Status: domain.ExecutionSubmitted, CreatedAt: time.Now()}
	j.ExecutionStarted(context.Background(), exec)
	exec.Status = domain.ExecutionConfirmed
	j.ExecutionFinished(context.Background(), exec)

	recent, err := j.RecentExecutions(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.ExecutionConfirmed, recent[0].Status)
	assert.Equal(t, []string{"execution.confirmed"}, audit.events)
	assert.Len(t, sender.titles, 1)

	failed := domain.Execution{ID: "e2", Status: domain.ExecutionFailed}
	j.ExecutionFinished(context.Background(), failed)
	assert.Len(t, sender.titles, 1, "trade_failed is filtered out")
}

func TestJournal_StoreFailuresAreSwallowed(t *testing.T) {
	j := NewJournal(JournalDeps{Executions: failingExecStore{}}, discard())
	assert.NotPanics(t, func() {
		j.ExecutionStarted(context.Background(), domain.Execution{ID: "x"})
		j.ExecutionFinished(context.Background(), domain.Execution{ID: "x", Status: domain.ExecutionFailed})
	})
}

func TestJournal_BreakerAndStop(t *testing.T) {
	bus := &recBus{}
	audit := &recAudit{}
	sender := &recSender{}
	j := NewJournal(JournalDeps{
		Bus:      bus,
		Audit:    audit,
		Notifier: notify.NewNotifier([]notify.Sender{sender}, nil, discard()),
	}, discard())

	j.BreakerTripped(context.Background(), 0.2, 0.1)
	j.Stopped(context.Background(), "circuit breaker")

	assert.Equal(t, []string{"bot.circuit_breaker", "bot.stopped"}, audit.events)
	assert.Len(t, bus.msgs[domain.ChannelStatus], 2)
	assert.Equal(t, []string{"Circuit breaker tripped", "Bot stopped"}, sender.titles)
}

func TestPage(t *testing.T) {
	list := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, page(list, domain.ListOpts{}))
	assert.Equal(t, []int{3, 4}, page(list, domain.ListOpts{Offset: 2, Limit: 2}))
	assert.Empty(t, page(list, domain.ListOpts{Offset: 10}))
}

func TestPrependBounded(t *testing.T) {
	var list []int
	for i := 0; i < recentLimit+10; i++ {
		list = prepend(list, []int{i})
	}
	assert.Len(t, list, recentLimit)
	assert.Equal(t, recentLimit+9, list[0])
}
