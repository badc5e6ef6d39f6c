package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Router submits swapExactTokensForTokens to a router contract.
type Router struct {
	address common.Address
	tx      transactor
}

// NewRouter creates a Router for the contract at address. A zero
// pollInterval uses the default of two seconds.
func NewRouter(backend Backend, address common.Address, pollInterval time.Duration, logger *slog.Logger) *Router {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Router{
		address: address,
		tx: transactor{
			backend:      backend,
			pollInterval: pollInterval,
			logger:       logger.With(slog.String("component", "router")),
		},
	}
}

// Swap packs and broadcasts the swap.
func (r *Router) Swap(ctx context.Context, signer domain.Signer, p domain.SwapParams, opts domain.TxOpts) (domain.PendingTx, error) {
	if err := checkGas(opts); err != nil {
		return nil, err
	}
	if p.AmountIn == nil || p.AmountOutMin == nil || p.Deadline == nil {
		return nil, fmt.Errorf("chain: swap amounts and deadline must be set: %w", domain.ErrInvalidInput)
	}
	data, err := routerABI.Pack("swapExactTokensForTokens", p.AmountIn, p.AmountOutMin, p.Path, p.Recipient, p.Deadline)
	if err != nil {
		return nil, fmt.Errorf("chain: pack swap: %w", err)
	}
	return r.tx.send(ctx, signer, r.address, data, opts)
}

// FlashLoan submits flashLoan to a flash-loan provider contract.
type FlashLoan struct {
	address common.Address
	tx      transactor
}

// NewFlashLoan creates a FlashLoan for the provider at address.
func NewFlashLoan(backend Backend, address common.Address, pollInterval time.Duration, logger *slog.Logger) *FlashLoan {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &FlashLoan{
		address: address,
		tx: transactor{
			backend:      backend,
			pollInterval: pollInterval,
			logger:       logger.With(slog.String("component", "flash_loan")),
		},
	}
}

// FlashLoan packs and broadcasts the loan request.
func (f *FlashLoan) FlashLoan(ctx context.Context, signer domain.Signer, p domain.FlashLoanParams, opts domain.TxOpts) (domain.PendingTx, error) {
	if err := checkGas(opts); err != nil {
		return nil, err
	}
	if p.Amount == nil {
		return nil, fmt.Errorf("chain: flash loan amount must be set: %w", domain.ErrInvalidInput)
	}
	data, err := flashLoanABI.Pack("flashLoan", p.Asset, p.Amount, p.CallbackData)
	if err != nil {
		return nil, fmt.Errorf("chain: pack flashLoan: %w", err)
	}
	return f.tx.send(ctx, signer, f.address, data, opts)
}

func checkGas(opts domain.TxOpts) error {
	if opts.GasPrice == nil || opts.GasPrice.Sign() <= 0 {
		return fmt.Errorf("chain: gas price must be positive: %w", domain.ErrInvalidInput)
	}
	if opts.GasLimit == 0 {
		return fmt.Errorf("chain: gas limit must be set: %w", domain.ErrInvalidInput)
	}
	return nil
}

var (
	_ domain.ReserveSource     = (*PairReader)(nil)
	_ domain.ExchangeRouter    = (*Router)(nil)
	_ domain.FlashLoanProvider = (*FlashLoan)(nil)
	_ domain.GasOracle         = (*GasOracle)(nil)
)
