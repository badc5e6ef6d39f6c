package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TradeOrder is built fresh for every execution attempt; deadlines expire so
// an order is never reused.
type TradeOrder struct {
	ID           string
	VenuePath    []string
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Deadline     int64 // unix seconds
	Account      common.Address
}

// Receipt is the confirmed outcome of a submitted transaction.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	Status      uint64 `json:"status"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}
