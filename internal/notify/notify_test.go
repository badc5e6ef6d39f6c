package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

type recordingSender struct {
	name string
	err  error

	mu     sync.Mutex
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventTradeExecuted, " circuit_breaker "}, discard())

	require.NoError(t, n.Notify(context.Background(), EventOpportunity, "skipped", ""))
	require.NoError(t, n.Notify(context.Background(), EventTradeExecuted, "sent", ""))
	require.NoError(t, n.Notify(context.Background(), EventCircuitBreak, "breaker", ""))
	assert.Equal(t, []string{"sent", "breaker"}, s.titles)
}

func TestNotifier_EmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discard())
	require.NoError(t, n.Notify(context.Background(), EventBotStopped, "stopped", ""))
	assert.Len(t, s.titles, 1)
}

func TestNotifier_FailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventTradeFailed, "failed", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1)
}

func TestNotifier_NilAndEmpty(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled(EventOpportunity))
	assert.NoError(t, NewNotifier(nil, nil, discard()).Notify(context.Background(), EventOpportunity, "x", "y"))
}

func TestTelegramSender_SendsToEveryChat(t *testing.T) {
	var (
		mu    sync.Mutex
		chats []string
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		chats = append(chats, body["chat_id"])
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if body["chat_id"] == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "HTML", body["parse_mode"])
		assert.Equal(t, "<b>a &lt;b&gt;</b>\nmsg", body["text"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("secret-token", []string{"100", " ", "bad", "200"}, WithTelegramBaseURL(srv.URL))
	err := s.Send(context.Background(), "a <b>", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat #2")
	assert.NotContains(t, err.Error(), "secret-token")
	assert.NotContains(t, err.Error(), "bad")
	assert.Equal(t, []string{"100", "bad", "200"}, chats)
	assert.Equal(t, "/botsecret-token/sendMessage", paths[0])
}

func TestTelegramSender_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	s := NewTelegramSender("secret-token", []string{"1"}, WithTelegramBaseURL(srv.URL))
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestDiscordSender(t *testing.T) {
	var content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content = body["content"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Title", "body"))
	assert.Equal(t, "**Title**\nbody", content)
}

func TestFormatter(t *testing.T) {
	f := Formatter{Pair: "WETH/USDC", Decimals: 18}

	assert.Equal(t, "1.5", f.Amount("1500000000000000000"))
	assert.Equal(t, "garbage", f.Amount("garbage"))

	_, msg := f.Opportunity(domain.Opportunity{
		BuyVenue: "uniswap", SellVenue: "sushiswap",
		BuyPrice: 1.0, SellPrice: 1.02, ProfitFraction: 0.02,
	})
	assert.Contains(t, msg, "buy uniswap @ 1")
	assert.Contains(t, msg, "profit 2.000%")

	title, msg := f.Execution(domain.Execution{
		Status: domain.ExecutionConfirmed, Kind: domain.ExecutionSwap,
		BuyVenue: "uniswap", SellVenue: "sushiswap",
		AmountIn: "1000000000000000000", MinAmountOut: "950000000000000000",
		TxHash: "0xabc",
	})
	assert.True(t, strings.HasPrefix(title, "Trade executed"))
	assert.Contains(t, msg, "amount in 1, min out 0.95")
	assert.Contains(t, msg, "tx 0xabc")
}
