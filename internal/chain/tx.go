package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

const defaultPollInterval = 2 * time.Second

// Node answers that mean a transaction with this nonce, possibly ours, is
// already pooled or mined.
var knownTxAnswers = []string{"already known", "known transaction", "nonce too low", "replacement transaction underpriced"}

// transactor signs and broadcasts contract calls.
type transactor struct {
	backend      Backend
	pollInterval time.Duration
	logger       *slog.Logger
}

func (t *transactor) send(ctx context.Context, signer domain.Signer, to common.Address, data []byte, opts domain.TxOpts) (domain.PendingTx, error) {
	if err := checkGas(opts); err != nil {
		return nil, err
	}
	nonce, err := t.backend.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return nil, fmt.Errorf("chain: pending nonce for %s: %w", signer.Address().Hex(), err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      opts.GasLimit,
		GasPrice: opts.GasPrice,
		Data:     data,
	})
	signed, err := signer.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("chain: sign tx: %w", err)
	}
	pending := &pendingTx{
		backend:  t.backend,
		hash:     signed.Hash(),
		interval: t.pollInterval,
		logger:   t.logger,
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		rejected := rejectedByNode(err)
		t.logger.WarnContext(ctx, "chain: tx send failed",
			slog.String("tx_hash", signed.Hash().Hex()),
			slog.Uint64("nonce", nonce),
			slog.Bool("rejected", rejected),
			slog.String("error", err.Error()),
		)
		return nil, &domain.BroadcastError{
			TxHash:   signed.Hash().Hex(),
			Rejected: rejected,
			Pending:  pending,
			Err:      err,
		}
	}

	t.logger.DebugContext(ctx, "chain: tx broadcast",
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.String("to", to.Hex()),
	)
	return pending, nil
}

// rejectedByNode reports whether err is a JSON-RPC error answer that leaves
// no doubt the transaction was refused. Transport failures, timeouts and
// answers about an already known nonce are ambiguous.
func rejectedByNode(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Error())
	for _, known := range knownTxAnswers {
		if strings.Contains(msg, known) {
			return false
		}
	}
	return true
}

// pendingTx polls for the receipt of a broadcast transaction.
type pendingTx struct {
	backend  Backend
	hash     common.Hash
	interval time.Duration
	logger   *slog.Logger
}

func (p *pendingTx) Hash() string { return p.hash.Hex() }

// Wait polls until the receipt is available or ctx ends. RPC errors other than
// "not found" are logged and polling continues.
func (p *pendingTx) Wait(ctx context.Context) (domain.Receipt, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		r, err := p.backend.TransactionReceipt(ctx, p.hash)
		switch {
		case err == nil:
			return toReceipt(r), nil
		case ctx.Err() != nil:
			return domain.Receipt{}, ctx.Err()
		case !errors.Is(err, ethereum.NotFound):
			p.logger.WarnContext(ctx, "chain: receipt query failed",
				slog.String("tx_hash", p.hash.Hex()),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func toReceipt(r *types.Receipt) domain.Receipt {
	out := domain.Receipt{
		TxHash:  r.TxHash.Hex(),
		GasUsed: r.GasUsed,
		Status:  r.Status,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}
