package executor

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// strategyArgs is the callback payload layout understood by the arbitrage
// contract: (address[] path, uint256 amountOutMin, uint256 deadline).
var strategyArgs = mustStrategyArgs()

func mustStrategyArgs() abi.Arguments {
	addrs, err := abi.NewType("address[]", "", nil)
	if err != nil {
		panic(err)
	}
	uint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "path", Type: addrs},
		{Name: "amountOutMin", Type: uint256},
		{Name: "deadline", Type: uint256},
	}
}

// EncodeStrategy packs the swap the flash-loan callback should perform.
func EncodeStrategy(path []common.Address, amountOutMin *big.Int, deadline int64) ([]byte, error) {
	data, err := strategyArgs.Pack(path, amountOutMin, big.NewInt(deadline))
	if err != nil {
		return nil, fmt.Errorf("executor: encode strategy: %w", err)
	}
	return data, nil
}

// DecodeStrategy is the inverse of EncodeStrategy.
func DecodeStrategy(data []byte) ([]common.Address, *big.Int, int64, error) {
	vals, err := strategyArgs.Unpack(data)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("executor: decode strategy: %w", err)
	}
	if len(vals) != 3 {
		return nil, nil, 0, fmt.Errorf("executor: decode strategy: got %d values", len(vals))
	}
	path, ok1 := vals[0].([]common.Address)
	minOut, ok2 := vals[1].(*big.Int)
	deadline, ok3 := vals[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, nil, 0, fmt.Errorf("executor: decode strategy: unexpected types")
	}
	return path, minOut, deadline.Int64(), nil
}
