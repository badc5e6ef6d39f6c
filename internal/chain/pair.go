package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// PairReader reads Uniswap-V2 style pairs.
type PairReader struct {
	backend Backend
}

// NewPairReader creates a PairReader over backend.
func NewPairReader(backend Backend) *PairReader {
	return &PairReader{backend: backend}
}

// Token0 returns the pair's first token.
func (p *PairReader) Token0(ctx context.Context, pair common.Address) (common.Address, error) {
	data, err := pairABI.Pack("token0")
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: pack token0: %w", err)
	}
	out, err := call(ctx, p.backend, pair, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: call token0 on %s: %w", pair.Hex(), err)
	}
	var token common.Address
	if err := pairABI.UnpackIntoInterface(&token, "token0", out); err != nil {
		return common.Address{}, fmt.Errorf("chain: unpack token0 on %s: %w", pair.Hex(), err)
	}
	return token, nil
}

type reservesResult struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Reserves calls getReserves on pair. Zero reserves are reported as
// domain.ErrDataUnavailable.
func (p *PairReader) Reserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	data, err := pairABI.Pack("getReserves")
	if err != nil {
		return nil, nil, fmt.Errorf("chain: pack getReserves: %w", err)
	}
	out, err := call(ctx, p.backend, pair, data)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: call getReserves on %s: %w: %w", pair.Hex(), domain.ErrDataUnavailable, err)
	}

	var res reservesResult
	if err := pairABI.UnpackIntoInterface(&res, "getReserves", out); err != nil {
		return nil, nil, fmt.Errorf("chain: unpack getReserves on %s: %w: %w", pair.Hex(), domain.ErrDataUnavailable, err)
	}
	if res.Reserve0 == nil || res.Reserve1 == nil || res.Reserve0.Sign() <= 0 || res.Reserve1.Sign() <= 0 {
		return nil, nil, fmt.Errorf("chain: empty reserves on %s: %w", pair.Hex(), domain.ErrDataUnavailable)
	}
	return res.Reserve0, res.Reserve1, nil
}
