package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of ethclient.Client the adapters use.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Dial connects to the JSON-RPC endpoint at rpcURL and checks that it serves
// the expected chain.
func Dial(ctx context.Context, rpcURL string, chainID int64) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}
	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: query chain id: %w", err)
	}
	if got.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain: rpc serves chain %s, configured %d", got, chainID)
	}
	return client, nil
}

// GasOracle exposes the node's gas price suggestion.
type GasOracle struct {
	backend Backend
}

// NewGasOracle wraps backend.
func NewGasOracle(backend Backend) *GasOracle {
	return &GasOracle{backend: backend}
}

// SuggestGasPrice returns the node's current gas price in wei.
func (g *GasOracle) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	return price, nil
}

func call(ctx context.Context, backend Backend, to common.Address, data []byte) ([]byte, error) {
	return backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}
