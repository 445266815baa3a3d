package txpool

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/openethereum-go/corechain/core/types"
)

func TestTxPool_AddRoutesByFilter(t *testing.T) {
	chain := newFakeChain(testChainConfig())
	signer := types.LatestSigner(big.NewInt(1337))

	priority := NewPriorityPool(DefaultPoolConfig(), chain, signer)
	vector := NewVectorFeePoolDummy(chain)

	pool, err := New(1, chain, []SubPool{priority, vector})
	assert.NoError(t, err)
	defer pool.Close()

	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	chain.stateOf(types.EmptyRootHash).SetBalance(addr, uint256.NewInt(1_000_000_000_000_000_000))

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	legacyTx := createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key)
	// A sender is homed in one subpool at a time, so the vector-fee
	// transaction comes from a second account.
	vectorKey, err := crypto.GenerateKey()
	assert.NoError(t, err)
	vectorTx := createSignedVectorFeeTx(t, 1, recipient, big.NewInt(1), 21000, vectorKey)

	errs := pool.Add([]*types.Transaction{legacyTx, vectorTx}, false, false)
	assert.Equal(t, []error{nil, nil}, errs)

	assert.True(t, pool.Has(legacyTx.Hash()))
	assert.True(t, pool.Has(vectorTx.Hash()))
	assert.NotNil(t, pool.Get(legacyTx.Hash()))
	assert.NotNil(t, pool.Get(vectorTx.Hash()))
}

func TestTxPool_ReservationConflict(t *testing.T) {
	chain := newFakeChain(testChainConfig())
	signer := types.LatestSigner(big.NewInt(1337))

	priority := NewPriorityPool(DefaultPoolConfig(), chain, signer)

	pool, err := New(1, chain, []SubPool{priority})
	assert.NoError(t, err)
	defer pool.Close()

	// A second subpool trying to reserve an address already owned by the
	// first is refused; exercised directly against the reserver closure
	// since only one live subpool is registered above.
	reserve := pool.reserver(0, priority)
	addr := common.HexToAddress("0xabcabcabcabcabcabcabcabcabcabcabcabcabc")
	assert.NoError(t, reserve(addr, true))
	assert.NoError(t, reserve(addr, true)) // idempotent: same owner

	otherReserve := pool.reserver(1, &VectorFeePoolDummy{})
	assert.Error(t, otherReserve(addr, true))
}

func TestTxPool_UnsupportedTypeRejected(t *testing.T) {
	chain := newFakeChain(testChainConfig())
	signer := types.LatestSigner(big.NewInt(1337))
	priority := NewPriorityPool(DefaultPoolConfig(), chain, signer)

	pool, err := New(1, chain, []SubPool{priority})
	assert.NoError(t, err)
	defer pool.Close()

	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	vectorTx := createSignedVectorFeeTx(t, 0, recipient, big.NewInt(1), 21000, key)

	errs := pool.Add([]*types.Transaction{vectorTx}, false, false)
	assert.Equal(t, []error{ErrTxTypeNotSupported}, errs)
}
