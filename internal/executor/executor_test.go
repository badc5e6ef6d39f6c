package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

var (
	account     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	uniswapPair = common.HexToAddress("0x0000000000000000000000000000000000000001")
	sushiPair   = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

type fakeSigner struct{ addr common.Address }

func (s fakeSigner) Address() common.Address { return s.addr }
func (s fakeSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

type fakeKeyring struct{}

func (fakeKeyring) Signer(a common.Address) (domain.Signer, error) {
	if a != account {
		return nil, domain.ErrNotFound
	}
	return fakeSigner{addr: a}, nil
}

type fakeGas struct {
	price *big.Int
	err   error
}

func (g fakeGas) SuggestGasPrice(context.Context) (*big.Int, error) { return g.price, g.err }

type fakePending struct {
	hash    string
	receipt domain.Receipt
	err     error
	block   bool
}

func (p fakePending) Hash() string { return p.hash }
func (p fakePending) Wait(ctx context.Context) (domain.Receipt, error) {
	if p.block {
		<-ctx.Done()
		return domain.Receipt{}, ctx.Err()
	}
	return p.receipt, p.err
}

type fakeRouter struct {
	pending   domain.PendingTx
	err       error
	gotParams domain.SwapParams
	gotOpts   domain.TxOpts
	calls     int
}

func (r *fakeRouter) Swap(_ context.Context, _ domain.Signer, params domain.SwapParams, opts domain.TxOpts) (domain.PendingTx, error) {
	r.calls++
	r.gotParams = params
	r.gotOpts = opts
	if r.err != nil {
		return nil, r.err
	}
	return r.pending, nil
}

type fakeFlash struct {
	pending   domain.PendingTx
	err       error
	gotParams domain.FlashLoanParams
	gotOpts   domain.TxOpts
}

func (f *fakeFlash) FlashLoan(_ context.Context, _ domain.Signer, params domain.FlashLoanParams, opts domain.TxOpts) (domain.PendingTx, error) {
	f.gotParams = params
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.pending, nil
}

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestExecutor(router *fakeRouter, flash *fakeFlash, gas fakeGas) *Executor {
	var fp domain.FlashLoanProvider
	if flash != nil {
		fp = flash
	}
	return New(router, fp, gas, fakeKeyring{}, Config{
		SlippageTolerance:   50,
		WindowMinutes:       5,
		ConfirmationTimeout: 50 * time.Millisecond,
		Venues:              map[string]common.Address{"uniswap": uniswapPair, "sushiswap": sushiPair},
		Clock:               func() time.Time { return fixedNow },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMinimumOutput(t *testing.T) {
	assert.Equal(t, "0", MinimumOutput(big.NewInt(0), 10).String())
	assert.Equal(t, "0", MinimumOutput(nil, 10).String())
	assert.Equal(t, "990", MinimumOutput(big.NewInt(1000), 10).String())
	assert.Equal(t, "9", MinimumOutput(big.NewInt(10), 50).String())
	assert.Equal(t, "1000", MinimumOutput(big.NewInt(1000), 0).String())
	assert.Equal(t, "1000", MinimumOutput(big.NewInt(1000), -5).String())
	assert.Equal(t, "0", MinimumOutput(big.NewInt(1000), 5000).String())
}

func TestSlippageAllowance(t *testing.T) {
	assert.Equal(t, "10", SlippageAllowance(big.NewInt(1000), 10).String())
	assert.Equal(t, "0", SlippageAllowance(big.NewInt(0), 10).String())

	in := big.NewInt(123_456_789)
	sum := new(big.Int).Add(MinimumOutput(in, 37), SlippageAllowance(in, 37))
	assert.LessOrEqual(t, new(big.Int).Sub(in, sum).Int64(), int64(1))
}

func TestDeadline(t *testing.T) {
	now := time.Unix(1_000, 0)
	assert.Equal(t, int64(1_300), Deadline(now, 5))
	assert.Equal(t, int64(1_060), Deadline(now, -5))
	assert.Equal(t, int64(1_060), Deadline(now, 0))
	assert.Equal(t, int64(1_060), Deadline(now, 1))

	before := time.Now()
	d := Deadline(time.Now(), 5)
	assert.InDelta(t, before.Unix()+300, d, 1)
}

func TestGasBid(t *testing.T) {
	assert.Equal(t, "120", GasBid(big.NewInt(100)).String())
	assert.Equal(t, "36000000000", GasBid(big.NewInt(30_000_000_000)).String())
	assert.Equal(t, "1", GasBid(big.NewInt(1)).String())
}

func TestNewOrder(t *testing.T) {
	e := newTestExecutor(&fakeRouter{}, nil, fakeGas{price: big.NewInt(1)})
	opp := domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}

	o1 := e.NewOrder(opp, big.NewInt(10), account)
	o2 := e.NewOrder(opp, big.NewInt(10), account)

	assert.Equal(t, []string{"uniswap", "sushiswap"}, o1.VenuePath)
	assert.Equal(t, "9", o1.MinAmountOut.String())
	assert.Equal(t, fixedNow.Unix()+300, o1.Deadline)
	assert.NotEqual(t, o1.ID, o2.ID)
}

func TestExecuteSwap(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		router := &fakeRouter{pending: fakePending{hash: "0xabc", receipt: domain.Receipt{Status: 1, BlockNumber: 7}}}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		rcpt, err := e.ExecuteSwap(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, "0xabc", rcpt.TxHash)
		assert.Equal(t, SwapGasLimit, router.gotOpts.GasLimit)
		assert.Equal(t, "120", router.gotOpts.GasPrice.String())
		assert.Equal(t, []common.Address{uniswapPair, sushiPair}, router.gotParams.Path)
		assert.Equal(t, account, router.gotParams.Recipient)
		assert.Equal(t, "950", router.gotParams.AmountOutMin.String())
		assert.Equal(t, order.Deadline, router.gotParams.Deadline.Int64())
	})

	t.Run("gas price unavailable is fatal", func(t *testing.T) {
		router := &fakeRouter{}
		e := newTestExecutor(router, nil, fakeGas{err: errors.New("rpc down")})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		_, err := e.ExecuteSwap(ctx, order)
		assert.ErrorIs(t, err, domain.ErrGasPriceUnavailable)
		assert.Equal(t, 0, router.calls)
	})

	t.Run("zero gas price is unavailable", func(t *testing.T) {
		e := newTestExecutor(&fakeRouter{}, nil, fakeGas{price: big.NewInt(0)})
		_, err := e.BidGas(ctx)
		assert.ErrorIs(t, err, domain.ErrGasPriceUnavailable)
	})

	t.Run("submission rejected", func(t *testing.T) {
		cause := errors.New("insufficient funds")
		router := &fakeRouter{err: cause}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		_, err := e.ExecuteSwap(ctx, order)
		assert.ErrorIs(t, err, domain.ErrExecutionFailure)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, domain.ErrConfirmationTimeout)
		assert.Contains(t, err.Error(), "insufficient funds")

		var txErr *TxError
		require.ErrorAs(t, err, &txErr)
		assert.False(t, txErr.Broadcast())
	})

	t.Run("lost send acknowledgement awaits the receipt", func(t *testing.T) {
		router := &fakeRouter{err: &domain.BroadcastError{
			TxHash:  "0xlost",
			Pending: fakePending{hash: "0xlost", receipt: domain.Receipt{Status: 1, BlockNumber: 11}},
			Err:     context.DeadlineExceeded,
		}}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		rcpt, err := e.ExecuteSwap(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, "0xlost", rcpt.TxHash)
		assert.Equal(t, uint64(11), rcpt.BlockNumber)
	})

	t.Run("lost send acknowledgement never mined", func(t *testing.T) {
		router := &fakeRouter{err: &domain.BroadcastError{
			TxHash:  "0xlost",
			Pending: fakePending{hash: "0xlost", block: true},
			Err:     errors.New("connection reset by peer"),
		}}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		_, err := e.ExecuteSwap(ctx, order)
		assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)

		var txErr *TxError
		require.ErrorAs(t, err, &txErr)
		assert.Equal(t, "0xlost", txErr.TxHash)
		assert.True(t, txErr.Broadcast())
	})

	t.Run("node rejection is not broadcast", func(t *testing.T) {
		cause := errors.New("insufficient funds for gas")
		router := &fakeRouter{err: &domain.BroadcastError{TxHash: "0xno", Rejected: true, Err: cause}}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		_, err := e.ExecuteSwap(ctx, order)
		assert.ErrorIs(t, err, domain.ErrExecutionFailure)
		assert.ErrorIs(t, err, cause)

		var txErr *TxError
		require.ErrorAs(t, err, &txErr)
		assert.False(t, txErr.Broadcast())
	})

	t.Run("revert", func(t *testing.T) {
		router := &fakeRouter{pending: fakePending{hash: "0xdead", receipt: domain.Receipt{Status: 0, BlockNumber: 9}}}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		rcpt, err := e.ExecuteSwap(ctx, order)
		assert.ErrorIs(t, err, domain.ErrExecutionFailure)
		assert.Equal(t, "0xdead", rcpt.TxHash)
	})

	t.Run("confirmation timeout is distinct", func(t *testing.T) {
		router := &fakeRouter{pending: fakePending{hash: "0xslow", block: true}}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		order := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		_, err := e.ExecuteSwap(ctx, order)
		assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)
		assert.NotErrorIs(t, err, domain.ErrExecutionFailure)

		var txErr *TxError
		require.ErrorAs(t, err, &txErr)
		assert.Equal(t, "0xslow", txErr.TxHash)
		assert.True(t, txErr.Broadcast())
	})

	t.Run("invalid orders", func(t *testing.T) {
		router := &fakeRouter{}
		e := newTestExecutor(router, nil, fakeGas{price: big.NewInt(100)})
		good := e.NewOrder(domain.Opportunity{BuyVenue: "uniswap", SellVenue: "sushiswap"}, big.NewInt(1000), account)

		bad := []func(o *domain.TradeOrder){
			func(o *domain.TradeOrder) { o.VenuePath = []string{"uniswap"} },
			func(o *domain.TradeOrder) { o.AmountIn = big.NewInt(0) },
			func(o *domain.TradeOrder) { o.MinAmountOut = nil },
			func(o *domain.TradeOrder) { o.Deadline = fixedNow.Unix() },
			func(o *domain.TradeOrder) { o.VenuePath = []string{"uniswap", "curve"} },
		}
		for _, mutate := range bad {
			o := good
			mutate(&o)
			_, err := e.ExecuteSwap(ctx, o)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		}

		o := good
		o.Account = common.HexToAddress("0x01")
		_, err := e.ExecuteSwap(ctx, o)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, 0, router.calls)
	})
}

func TestExecuteFlashLoanSwap(t *testing.T) {
	ctx := context.Background()
	asset := common.HexToAddress("0x00000000000000000000000000000000000000c0")

	t.Run("success uses the flash loan gas ceiling", func(t *testing.T) {
		flash := &fakeFlash{pending: fakePending{hash: "0x456", receipt: domain.Receipt{Status: 1}}}
		e := newTestExecutor(&fakeRouter{}, flash, fakeGas{price: big.NewInt(10)})

		data, err := EncodeStrategy([]common.Address{uniswapPair, sushiPair}, big.NewInt(9), fixedNow.Unix()+300)
		require.NoError(t, err)

		rcpt, err := e.ExecuteFlashLoanSwap(ctx, asset, big.NewInt(10), data, account)
		require.NoError(t, err)
		assert.Equal(t, "0x456", rcpt.TxHash)
		assert.Equal(t, FlashLoanGasLimit, flash.gotOpts.GasLimit)
		assert.Equal(t, "12", flash.gotOpts.GasPrice.String())
		assert.Equal(t, asset, flash.gotParams.Asset)
		assert.Equal(t, data, flash.gotParams.CallbackData)
	})

	t.Run("revert surfaces as one failure", func(t *testing.T) {
		flash := &fakeFlash{pending: fakePending{hash: "0x789", receipt: domain.Receipt{Status: 0}}}
		e := newTestExecutor(&fakeRouter{}, flash, fakeGas{price: big.NewInt(10)})

		_, err := e.ExecuteFlashLoanSwap(ctx, asset, big.NewInt(10), nil, account)
		assert.ErrorIs(t, err, domain.ErrExecutionFailure)
	})

	t.Run("provider error", func(t *testing.T) {
		flash := &fakeFlash{err: errors.New("Flash loan failed")}
		e := newTestExecutor(&fakeRouter{}, flash, fakeGas{price: big.NewInt(10)})

		_, err := e.ExecuteFlashLoanSwap(ctx, asset, big.NewInt(10), nil, account)
		assert.ErrorIs(t, err, domain.ErrExecutionFailure)
		assert.Contains(t, err.Error(), "Flash loan failed")
	})

	t.Run("no provider configured", func(t *testing.T) {
		e := newTestExecutor(&fakeRouter{}, nil, fakeGas{price: big.NewInt(10)})
		_, err := e.ExecuteFlashLoanSwap(ctx, asset, big.NewInt(10), nil, account)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestStrategyRoundTrip(t *testing.T) {
	path := []common.Address{uniswapPair, sushiPair}
	data, err := EncodeStrategy(path, big.NewInt(950), 1_700_000_300)
	require.NoError(t, err)

	gotPath, minOut, deadline, err := DecodeStrategy(data)
	require.NoError(t, err)
	assert.Equal(t, path, gotPath)
	assert.Equal(t, "950", minOut.String())
	assert.Equal(t, int64(1_700_000_300), deadline)
}

func TestCooldown(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCooldown(time.Minute)
	c.clock = func() time.Time { return now }

	assert.False(t, c.Active("a->b"))
	c.Mark("a->b")
	assert.True(t, c.Active("a->b"))
	assert.False(t, c.Active("b->a"))

	now = now.Add(time.Minute)
	assert.False(t, c.Active("a->b"))
	c.Cleanup()
	assert.Empty(t, c.seen)

	off := NewCooldown(0)
	off.Mark("a->b")
	assert.False(t, off.Active("a->b"))
}
