// Package executor turns sized opportunities into on-chain transactions: it
// bounds slippage, stamps deadlines, bids gas and waits for confirmation.
// It never retries; retry policy belongs to the caller.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Config holds the execution parameters.
type Config struct {
	// SlippageTolerance is in parts per thousand.
	SlippageTolerance int
	// WindowMinutes is the requested execution window for deadlines.
	WindowMinutes int
	// ConfirmationTimeout bounds the wait for a receipt.
	ConfirmationTimeout time.Duration
	// Venues maps venue names to their contract addresses.
	Venues map[string]common.Address
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// Executor submits swaps and flash-loan swaps.
type Executor struct {
	router  domain.ExchangeRouter
	flash   domain.FlashLoanProvider
	gas     domain.GasOracle
	keyring domain.Keyring
	cfg     Config
	logger  *slog.Logger
}

// New creates an Executor. flash may be nil when flash loans are not used.
func New(
	router domain.ExchangeRouter,
	flash domain.FlashLoanProvider,
	gas domain.GasOracle,
	keyring domain.Keyring,
	cfg Config,
	logger *slog.Logger,
) *Executor {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 2 * time.Minute
	}
	return &Executor{
		router:  router,
		flash:   flash,
		gas:     gas,
		keyring: keyring,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// NewOrder builds a fresh order for opp with a new deadline and a minimum
// output derived from the configured tolerance.
func (e *Executor) NewOrder(opp domain.Opportunity, amountIn *big.Int, account common.Address) domain.TradeOrder {
	return domain.TradeOrder{
		ID:           uuid.New().String(),
		VenuePath:    []string{opp.BuyVenue, opp.SellVenue},
		AmountIn:     new(big.Int).Set(amountIn),
		MinAmountOut: MinimumOutput(amountIn, e.cfg.SlippageTolerance),
		Deadline:     e.Deadline(),
		Account:      account,
	}
}

// Deadline returns a deadline for the configured window measured from now.
func (e *Executor) Deadline() int64 {
	return Deadline(e.cfg.Clock(), e.cfg.WindowMinutes)
}

// BidGas fetches the network gas price and applies the premium. Failure is
// reported as domain.ErrGasPriceUnavailable with no fallback.
func (e *Executor) BidGas(ctx context.Context) (*big.Int, error) {
	price, err := e.gas.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: suggest gas price: %w: %w", domain.ErrGasPriceUnavailable, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("executor: network gas price %v: %w", price, domain.ErrGasPriceUnavailable)
	}
	return GasBid(price), nil
}

// ResolvePath maps venue names to contract addresses.
func (e *Executor) ResolvePath(venues []string) ([]common.Address, error) {
	path := make([]common.Address, 0, len(venues))
	for _, v := range venues {
		addr, ok := e.cfg.Venues[v]
		if !ok {
			return nil, fmt.Errorf("executor: unknown venue %q: %w", v, domain.ErrInvalidInput)
		}
		path = append(path, addr)
	}
	return path, nil
}

// ExecuteSwap submits order through the exchange router and waits for the
// receipt.
func (e *Executor) ExecuteSwap(ctx context.Context, order domain.TradeOrder) (domain.Receipt, error) {
	if err := validateOrder(order); err != nil {
		return domain.Receipt{}, err
	}
	if now := e.cfg.Clock().Unix(); order.Deadline <= now {
		return domain.Receipt{}, fmt.Errorf("executor: order %s deadline %d already passed: %w", order.ID, order.Deadline, domain.ErrInvalidInput)
	}
	path, err := e.ResolvePath(order.VenuePath)
	if err != nil {
		return domain.Receipt{}, err
	}
	signer, err := e.keyring.Signer(order.Account)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("executor: resolve signer %s: %w", order.Account.Hex(), err)
	}
	gasPrice, err := e.BidGas(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}

	params := domain.SwapParams{
		AmountIn:     order.AmountIn,
		AmountOutMin: order.MinAmountOut,
		Path:         path,
		Recipient:    order.Account,
		Deadline:     big.NewInt(order.Deadline),
	}
	opts := domain.TxOpts{GasLimit: SwapGasLimit, GasPrice: gasPrice}

	e.logger.InfoContext(ctx, "executor: submitting swap",
		slog.String("order_id", order.ID),
		slog.Any("path", order.VenuePath),
		slog.String("amount_in", order.AmountIn.String()),
		slog.String("min_amount_out", order.MinAmountOut.String()),
		slog.Int64("deadline", order.Deadline),
		slog.String("gas_price", gasPrice.String()),
	)

	pending, err := e.router.Swap(ctx, signer, params, opts)
	if err != nil {
		return e.submitFailed(ctx, "swap", err)
	}
	return e.await(ctx, "swap", pending)
}

// ExecuteFlashLoanSwap borrows amount of asset and runs strategyData in the
// provider callback. A reverted loan surfaces as a single failure; repayment
// atomicity is guaranteed on chain.
func (e *Executor) ExecuteFlashLoanSwap(ctx context.Context, asset common.Address, amount *big.Int, strategyData []byte, account common.Address) (domain.Receipt, error) {
	if e.flash == nil {
		return domain.Receipt{}, fmt.Errorf("executor: no flash loan provider configured: %w", domain.ErrInvalidInput)
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.Receipt{}, fmt.Errorf("executor: flash loan amount must be positive: %w", domain.ErrInvalidInput)
	}
	signer, err := e.keyring.Signer(account)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("executor: resolve signer %s: %w", account.Hex(), err)
	}
	gasPrice, err := e.BidGas(ctx)
	if err != nil {
		return domain.Receipt{}, err
	}

	params := domain.FlashLoanParams{Asset: asset, Amount: amount, CallbackData: strategyData}
	opts := domain.TxOpts{GasLimit: FlashLoanGasLimit, GasPrice: gasPrice}

	e.logger.InfoContext(ctx, "executor: submitting flash loan",
		slog.String("asset", asset.Hex()),
		slog.String("amount", amount.String()),
		slog.Int("callback_bytes", len(strategyData)),
		slog.String("gas_price", gasPrice.String()),
	)

	pending, err := e.flash.FlashLoan(ctx, signer, params, opts)
	if err != nil {
		return e.submitFailed(ctx, "flash_loan", err)
	}
	return e.await(ctx, "flash_loan", pending)
}

// submitFailed classifies a failed submission. A signed transaction the node
// may have accepted is awaited by hash like any other broadcast, so it is
// reported as confirmed, reverted or timed out and never as unsent.
func (e *Executor) submitFailed(ctx context.Context, op string, err error) (domain.Receipt, error) {
	var bErr *domain.BroadcastError
	if !errors.As(err, &bErr) || bErr.Rejected {
		return domain.Receipt{}, e.fail(ctx, &TxError{Op: op, Kind: domain.ErrExecutionFailure, Err: err})
	}
	if bErr.Pending == nil {
		return domain.Receipt{}, e.fail(ctx, &TxError{Op: op, TxHash: bErr.TxHash, Kind: domain.ErrConfirmationTimeout, Err: err})
	}
	e.logger.WarnContext(ctx, "executor: "+op+" send outcome unknown, awaiting receipt",
		slog.String("tx_hash", bErr.TxHash),
		slog.String("error", bErr.Err.Error()),
	)
	return e.await(ctx, op, bErr.Pending)
}

// await waits for pending under the confirmation timeout. A wait that ends
// without a receipt is a ConfirmationTimeout: the transaction may still land.
func (e *Executor) await(ctx context.Context, op string, pending domain.PendingTx) (domain.Receipt, error) {
	hash := pending.Hash()
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmationTimeout)
	defer cancel()

	receipt, err := pending.Wait(waitCtx)
	if err != nil {
		kind := domain.ErrExecutionFailure
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = domain.ErrConfirmationTimeout
		}
		return domain.Receipt{}, e.fail(ctx, &TxError{Op: op, TxHash: hash, Kind: kind, Err: err})
	}
	if receipt.TxHash == "" {
		receipt.TxHash = hash
	}
	if !receipt.Succeeded() {
		return receipt, e.fail(ctx, &TxError{
			Op:     op,
			TxHash: hash,
			Kind:   domain.ErrExecutionFailure,
			Err:    fmt.Errorf("reverted in block %d", receipt.BlockNumber),
		})
	}

	e.logger.InfoContext(ctx, "executor: confirmed",
		slog.String("op", op),
		slog.String("tx_hash", receipt.TxHash),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

func (e *Executor) fail(ctx context.Context, err *TxError) error {
	e.logger.ErrorContext(ctx, "executor: "+err.Op+" failed",
		slog.String("tx_hash", err.TxHash),
		slog.String("kind", err.Kind.Error()),
		slog.String("error", err.Err.Error()),
	)
	return err
}

func validateOrder(o domain.TradeOrder) error {
	switch {
	case len(o.VenuePath) < 2:
		return fmt.Errorf("executor: path needs at least 2 venues: %w", domain.ErrInvalidInput)
	case o.AmountIn == nil || o.AmountIn.Sign() <= 0:
		return fmt.Errorf("executor: amount in must be positive: %w", domain.ErrInvalidInput)
	case o.MinAmountOut == nil || o.MinAmountOut.Sign() < 0:
		return fmt.Errorf("executor: min amount out must be non-negative: %w", domain.ErrInvalidInput)
	case o.Deadline <= 0:
		return fmt.Errorf("executor: deadline must be set: %w", domain.ErrInvalidInput)
	}
	return nil
}
