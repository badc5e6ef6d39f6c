package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

type fakeBackend struct {
	mu sync.Mutex

	callOut  map[string][]byte
	callErr  error
	nonce    uint64
	sent     []*types.Transaction
	sendErr  error
	// lostAck accepts the transaction but still returns this error.
	lostAck  error
	receipt  *types.Receipt
	notFound int
	gasPrice *big.Int
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	method, err := pairABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	return f.callOut[method.Name], nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return f.lostAck
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notFound > 0 {
		f.notFound--
		return nil, ethereum.NotFound
	}
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	if f.gasPrice == nil {
		return nil, errors.New("unavailable")
	}
	return f.gasPrice, nil
}

// nodeError is a JSON-RPC error answer.
type nodeError struct {
	code int
	msg  string
}

func (e nodeError) Error() string  { return e.msg }
func (e nodeError) ErrorCode() int { return e.code }

// passSigner returns the transaction unchanged.
type passSigner struct{ addr common.Address }

func (s passSigner) Address() common.Address { return s.addr }
func (s passSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

var (
	pairAddr   = common.HexToAddress("0x0000000000000000000000000000000000000011")
	routerAddr = common.HexToAddress("0x0000000000000000000000000000000000000022")
	tokenA     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func packReserves(t *testing.T, r0, r1 int64) []byte {
	t.Helper()
	out, err := pairABI.Methods["getReserves"].Outputs.Pack(big.NewInt(r0), big.NewInt(r1), uint32(1))
	require.NoError(t, err)
	return out
}

func TestPairReader_Reserves(t *testing.T) {
	backend := &fakeBackend{callOut: map[string][]byte{"getReserves": packReserves(t, 2000, 1000)}}
	r0, r1, err := NewPairReader(backend).Reserves(context.Background(), pairAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), r0.Int64())
	assert.Equal(t, int64(1000), r1.Int64())
}

func TestPairReader_ZeroReservesUnavailable(t *testing.T) {
	backend := &fakeBackend{callOut: map[string][]byte{"getReserves": packReserves(t, 0, 1000)}}
	_, _, err := NewPairReader(backend).Reserves(context.Background(), pairAddr)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestPairReader_CallFailureUnavailable(t *testing.T) {
	backend := &fakeBackend{callErr: errors.New("connection refused")}
	_, _, err := NewPairReader(backend).Reserves(context.Background(), pairAddr)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestPairReader_Token0(t *testing.T) {
	out, err := pairABI.Methods["token0"].Outputs.Pack(tokenA)
	require.NoError(t, err)
	backend := &fakeBackend{callOut: map[string][]byte{"token0": out}}

	got, err := NewPairReader(backend).Token0(context.Background(), pairAddr)
	require.NoError(t, err)
	assert.Equal(t, tokenA, got)
}

func TestRouter_SwapPacksCalldata(t *testing.T) {
	backend := &fakeBackend{
		nonce:   7,
		receipt: &types.Receipt{Status: 1, GasUsed: 21000, BlockNumber: big.NewInt(99)},
	}
	router := NewRouter(backend, routerAddr, time.Millisecond, discard())
	signer := passSigner{addr: common.HexToAddress("0xaa")}

	params := domain.SwapParams{
		AmountIn:     big.NewInt(10),
		AmountOutMin: big.NewInt(9),
		Path:         []common.Address{pairAddr, routerAddr},
		Recipient:    signer.addr,
		Deadline:     big.NewInt(1_700_000_300),
	}
	pending, err := router.Swap(context.Background(), signer, params, domain.TxOpts{GasLimit: 300_000, GasPrice: big.NewInt(120)})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(300_000), tx.Gas())
	assert.Equal(t, int64(120), tx.GasPrice().Int64())
	assert.Equal(t, routerAddr, *tx.To())
	assert.Equal(t, tx.Hash().Hex(), pending.Hash())

	method := routerABI.Methods["swapExactTokensForTokens"]
	assert.Equal(t, method.ID, tx.Data()[:4])
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(10), args[0].(*big.Int).Int64())
	assert.Equal(t, int64(9), args[1].(*big.Int).Int64())
	assert.Equal(t, params.Path, args[2].([]common.Address))
	assert.Equal(t, signer.addr, args[3].(common.Address))
	assert.Equal(t, int64(1_700_000_300), args[4].(*big.Int).Int64())

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, uint64(99), receipt.BlockNumber)
}

func TestRouter_RejectsIncompleteSwap(t *testing.T) {
	full := domain.SwapParams{
		AmountIn:     big.NewInt(10),
		AmountOutMin: big.NewInt(9),
		Path:         []common.Address{pairAddr},
		Deadline:     big.NewInt(1_700_000_300),
	}
	gas := domain.TxOpts{GasLimit: 1, GasPrice: big.NewInt(1)}

	tests := []struct {
		name   string
		params func(p domain.SwapParams) domain.SwapParams
		opts   domain.TxOpts
	}{
		{"zero params without gas price", func(domain.SwapParams) domain.SwapParams { return domain.SwapParams{} }, domain.TxOpts{GasLimit: 1}},
		{"missing gas price", func(p domain.SwapParams) domain.SwapParams { return p }, domain.TxOpts{GasLimit: 1}},
		{"zero gas limit", func(p domain.SwapParams) domain.SwapParams { return p }, domain.TxOpts{GasPrice: big.NewInt(1)}},
		{"nil amount in", func(p domain.SwapParams) domain.SwapParams { p.AmountIn = nil; return p }, gas},
		{"nil min amount out", func(p domain.SwapParams) domain.SwapParams { p.AmountOutMin = nil; return p }, gas},
		{"nil deadline", func(p domain.SwapParams) domain.SwapParams { p.Deadline = nil; return p }, gas},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			router := NewRouter(backend, routerAddr, time.Millisecond, discard())
			_, err := router.Swap(context.Background(), passSigner{}, tt.params(full), tt.opts)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Empty(t, backend.sent)
		})
	}
}

func TestFlashLoan_RejectsIncompleteRequest(t *testing.T) {
	backend := &fakeBackend{}
	provider := NewFlashLoan(backend, routerAddr, time.Millisecond, discard())

	_, err := provider.FlashLoan(context.Background(), passSigner{}, domain.FlashLoanParams{Asset: tokenA},
		domain.TxOpts{GasLimit: 1, GasPrice: big.NewInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = provider.FlashLoan(context.Background(), passSigner{}, domain.FlashLoanParams{Asset: tokenA, Amount: big.NewInt(1)},
		domain.TxOpts{GasLimit: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, backend.sent)
}

func TestRouter_SendFailureCarriesHash(t *testing.T) {
	params := domain.SwapParams{
		AmountIn:     big.NewInt(10),
		AmountOutMin: big.NewInt(9),
		Path:         []common.Address{pairAddr},
		Deadline:     big.NewInt(1_700_000_300),
	}
	opts := domain.TxOpts{GasLimit: 300_000, GasPrice: big.NewInt(1)}

	tests := []struct {
		name     string
		backend  *fakeBackend
		rejected bool
	}{
		{"timeout after the node accepted", &fakeBackend{lostAck: context.DeadlineExceeded}, false},
		{"connection reset", &fakeBackend{sendErr: errors.New("read tcp: connection reset by peer")}, false},
		{"node rejects", &fakeBackend{sendErr: nodeError{code: -32000, msg: "insufficient funds for gas * price + value"}}, true},
		{"node already knows the tx", &fakeBackend{sendErr: nodeError{code: -32000, msg: "already known"}}, false},
		{"nonce already used", &fakeBackend{sendErr: nodeError{code: -32000, msg: "nonce too low"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(tt.backend, routerAddr, time.Millisecond, discard())
			pending, err := router.Swap(context.Background(), passSigner{}, params, opts)
			assert.Nil(t, pending)

			var bErr *domain.BroadcastError
			require.ErrorAs(t, err, &bErr)
			assert.Equal(t, tt.rejected, bErr.Rejected)
			require.NotNil(t, bErr.Pending)
			assert.Equal(t, bErr.TxHash, bErr.Pending.Hash())
			assert.Len(t, bErr.TxHash, 66)
		})
	}
}

func TestRouter_AmbiguousSendIsTrackable(t *testing.T) {
	backend := &fakeBackend{
		lostAck: context.DeadlineExceeded,
		receipt: &types.Receipt{Status: 1, BlockNumber: big.NewInt(5)},
	}
	router := NewRouter(backend, routerAddr, time.Millisecond, discard())
	_, err := router.Swap(context.Background(), passSigner{}, domain.SwapParams{
		AmountIn:     big.NewInt(10),
		AmountOutMin: big.NewInt(9),
		Deadline:     big.NewInt(1_700_000_300),
	}, domain.TxOpts{GasLimit: 300_000, GasPrice: big.NewInt(1)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var bErr *domain.BroadcastError
	require.ErrorAs(t, err, &bErr)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, backend.sent[0].Hash().Hex(), bErr.TxHash)

	receipt, err := bErr.Pending.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
}

func TestFlashLoan_PacksCalldata(t *testing.T) {
	backend := &fakeBackend{}
	provider := NewFlashLoan(backend, routerAddr, time.Millisecond, discard())

	_, err := provider.FlashLoan(context.Background(), passSigner{}, domain.FlashLoanParams{
		Asset:        tokenA,
		Amount:       big.NewInt(500),
		CallbackData: []byte{0x01, 0x02},
	}, domain.TxOpts{GasLimit: 500_000, GasPrice: big.NewInt(1)})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	method := flashLoanABI.Methods["flashLoan"]
	args, err := method.Inputs.Unpack(backend.sent[0].Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, tokenA, args[0].(common.Address))
	assert.Equal(t, int64(500), args[1].(*big.Int).Int64())
	assert.Equal(t, []byte{0x01, 0x02}, args[2].([]byte))
}

func TestPendingTx_WaitPollsUntilMined(t *testing.T) {
	backend := &fakeBackend{notFound: 3, receipt: &types.Receipt{Status: 0}}
	p := &pendingTx{backend: backend, interval: time.Millisecond, logger: discard()}

	receipt, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, receipt.Succeeded())
}

func TestPendingTx_WaitHonoursContext(t *testing.T) {
	backend := &fakeBackend{}
	p := &pendingTx{backend: backend, interval: time.Millisecond, logger: discard()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGasOracle(t *testing.T) {
	price, err := NewGasOracle(&fakeBackend{gasPrice: big.NewInt(100)}).SuggestGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), price.Int64())

	_, err = NewGasOracle(&fakeBackend{}).SuggestGasPrice(context.Background())
	assert.Error(t, err)
}
