package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// TxSigner signs transactions for one account on one chain.
type TxSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

// NewTxSigner creates a signer for chainID using the latest signer rules the
// chain supports.
func NewTxSigner(key *ecdsa.PrivateKey, chainID int64) (*TxSigner, error) {
	if key == nil {
		return nil, errors.New("crypto: key must not be nil")
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("crypto: invalid chain id %d", chainID)
	}
	return &TxSigner{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(big.NewInt(chainID)),
	}, nil
}

// Address returns the signing account.
func (s *TxSigner) Address() common.Address { return s.address }

// SignTx signs tx.
func (s *TxSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign tx: %w", err)
	}
	return signed, nil
}

// Keyring maps accounts to their signers.
type Keyring struct {
	mu      sync.RWMutex
	signers map[common.Address]domain.Signer
}

// NewKeyring creates a keyring holding signers.
func NewKeyring(signers ...domain.Signer) *Keyring {
	k := &Keyring{signers: make(map[common.Address]domain.Signer, len(signers))}
	for _, s := range signers {
		k.Add(s)
	}
	return k
}

// Add registers s under its address.
func (k *Keyring) Add(s domain.Signer) {
	k.mu.Lock()
	k.signers[s.Address()] = s
	k.mu.Unlock()
}

// Signer returns the signer for account, or domain.ErrNotFound.
func (k *Keyring) Signer(account common.Address) (domain.Signer, error) {
	k.mu.RLock()
	s, ok := k.signers[account]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("crypto: no signer for %s: %w", account.Hex(), domain.ErrNotFound)
	}
	return s, nil
}

var (
	_ domain.Signer  = (*TxSigner)(nil)
	_ domain.Keyring = (*Keyring)(nil)
)
