package domain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReserveSource reads a constant-product pair. Reserves are returned in the
// pair's own token0/token1 order.
type ReserveSource interface {
	Token0(ctx context.Context, pair common.Address) (common.Address, error)
	Reserves(ctx context.Context, pair common.Address) (reserve0, reserve1 *big.Int, err error)
}

// LiquiditySource estimates the input-token liquidity available at a venue.
type LiquiditySource interface {
	Liquidity(venue string) (*big.Int, error)
}

// GasOracle returns the current network gas price in wei.
type GasOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Signer turns an unsigned transaction into one signed for Address.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// TxOpts carries the gas parameters attached to a submission.
type TxOpts struct {
	GasLimit uint64
	GasPrice *big.Int
}

// SwapParams are the arguments of swapExactTokensForTokens.
type SwapParams struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	Recipient    common.Address
	Deadline     *big.Int
}

// FlashLoanParams are the arguments of flashLoan.
type FlashLoanParams struct {
	Asset        common.Address
	Amount       *big.Int
	CallbackData []byte
}

// PendingTx is a broadcast transaction awaiting confirmation.
type PendingTx interface {
	Hash() string
	Wait(ctx context.Context) (Receipt, error)
}

// BroadcastError reports a signed transaction whose submission failed. Unless
// Rejected is set the node may have accepted it anyway, and Pending tracks it
// by hash so its outcome can be read from the chain before anything is
// resubmitted.
type BroadcastError struct {
	TxHash   string
	Rejected bool
	Pending  PendingTx
	Err      error
}

func (e *BroadcastError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("tx %s rejected: %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("tx %s outcome unknown: %v", e.TxHash, e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// ExchangeRouter submits swaps on behalf of a signer.
type ExchangeRouter interface {
	Swap(ctx context.Context, signer Signer, params SwapParams, opts TxOpts) (PendingTx, error)
}

// FlashLoanProvider submits flash-loan funded strategies on behalf of a signer.
type FlashLoanProvider interface {
	FlashLoan(ctx context.Context, signer Signer, params FlashLoanParams, opts TxOpts) (PendingTx, error)
}

// Keyring resolves an account to its signing capability.
type Keyring interface {
	Signer(account common.Address) (Signer, error)
}
