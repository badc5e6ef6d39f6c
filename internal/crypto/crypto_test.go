package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Well-known development key (hardhat account #0).
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var devAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestParseKey(t *testing.T) {
	key, err := ParseKey(devKey)
	require.NoError(t, err)
	assert.Equal(t, devAddress, ethcrypto.PubkeyToAddress(key.PublicKey))

	_, err = ParseKey("not-hex")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := ParseKey(devKey)
	require.NoError(t, err)

	blob, err := EncryptKey(key, "hunter2")
	require.NoError(t, err)
	assert.Contains(t, string(blob), devAddress.Hex())
	assert.NotContains(t, string(blob), devKey[2:])

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.FromECDSA(key), ethcrypto.FromECDSA(got))

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)

	_, err = DecryptKey(blob, "")
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	key, err := ParseKey(devKey)
	require.NoError(t, err)
	blob, err := EncryptKey(key, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	t.Run("raw key wins", func(t *testing.T) {
		got, err := LoadKey(KeySource{RawPrivateKey: devKey, EncryptedKeyPath: "/nonexistent"})
		require.NoError(t, err)
		assert.Equal(t, devAddress, ethcrypto.PubkeyToAddress(got.PublicKey))
	})
	t.Run("key file", func(t *testing.T) {
		got, err := LoadKey(KeySource{EncryptedKeyPath: path, KeyPassword: "pw"})
		require.NoError(t, err)
		assert.Equal(t, devAddress, ethcrypto.PubkeyToAddress(got.PublicKey))
	})
	t.Run("no source", func(t *testing.T) {
		_, err := LoadKey(KeySource{})
		assert.Error(t, err)
	})
}

func TestKeySource_DescribeHidesSecrets(t *testing.T) {
	assert.Equal(t, "raw key from config", KeySource{RawPrivateKey: devKey}.Describe())
	assert.NotContains(t, KeySource{EncryptedKeyPath: "/k.json", KeyPassword: "pw"}.Describe(), "pw")
}

func TestTxSigner_SignsForChain(t *testing.T) {
	key, err := ParseKey(devKey)
	require.NoError(t, err)
	s, err := NewTxSigner(key, 1)
	require.NoError(t, err)
	assert.Equal(t, devAddress, s.Address())

	to := common.HexToAddress("0x01")
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := s.SignTx(tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), signed)
	require.NoError(t, err)
	assert.Equal(t, devAddress, sender)
	assert.Equal(t, int64(1), signed.ChainId().Int64())

	_, err = NewTxSigner(key, 0)
	assert.Error(t, err)
}

func TestKeyring(t *testing.T) {
	key, err := ParseKey(devKey)
	require.NoError(t, err)
	s, err := NewTxSigner(key, 1)
	require.NoError(t, err)

	ring := NewKeyring(s)
	got, err := ring.Signer(devAddress)
	require.NoError(t, err)
	assert.Equal(t, devAddress, got.Address())

	_, err = ring.Signer(common.HexToAddress("0x02"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
