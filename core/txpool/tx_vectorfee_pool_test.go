package txpool

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/openethereum-go/corechain/core/types"
)

func setupVectorFeeTestPool(t *testing.T) (*fakeChain, *VectorFeePoolDummy, *ecdsa.PrivateKey, common.Address) {
	t.Helper()

	chain := newFakeChain(testChainConfig())
	pool := NewVectorFeePoolDummy(chain)

	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	chain.stateOf(types.EmptyRootHash).SetBalance(addr, uint256.NewInt(1_000_000_000_000_000_000))

	err = pool.Init(1, chain.CurrentBlock(), func(common.Address, bool) error { return nil })
	assert.NoError(t, err)

	return chain, pool, key, addr
}

func createSignedVectorFeeTx(t *testing.T, nonce uint64, to common.Address, amount *big.Int, gasLimit uint64, key *ecdsa.PrivateKey) *types.Transaction {
	t.Helper()

	tx := types.NewTx(&types.VectorFeeTx{
		ChainID:    uint256.NewInt(1337),
		Nonce:      nonce,
		Gas:        gasLimit,
		GasTipCaps: types.VectorFeeUint{uint256.NewInt(1), uint256.NewInt(3), uint256.NewInt(3)},
		GasFeeCaps: types.VectorFeeUint{uint256.NewInt(4), uint256.NewInt(5), uint256.NewInt(6)},
		To:         to,
		Value:      uint256.MustFromBig(amount),
		Data:       nil,
	})

	signer := types.LatestSigner(big.NewInt(1337))
	h := signer.Hash(tx)
	sig, err := crypto.Sign(h[:], key)
	assert.NoError(t, err)
	signed, err := tx.WithSignature(signer, sig)
	assert.NoError(t, err)
	return signed
}

func TestVectorFeePool_Add(t *testing.T) {
	_, pool, key, addr := setupVectorFeeTestPool(t)
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := createSignedVectorFeeTx(t, 0, recipient, big.NewInt(1), 21000, key)

	errs := pool.Add([]*types.Transaction{tx}, false, false)
	assert.Equal(t, []error{nil}, errs)
	assert.Len(t, pool.txs, 1)
	assert.Len(t, pool.txsByAddress[addr], 1)
	assert.True(t, pool.Has(tx.Hash()))

	// A second submission of the same transaction is rejected as already known.
	errs = pool.Add([]*types.Transaction{tx}, false, false)
	assert.Equal(t, []error{ErrAlreadyKnown}, errs)
	assert.Len(t, pool.txs, 1)
}

func TestVectorFeePool_Pending(t *testing.T) {
	_, pool, key, addr := setupVectorFeeTestPool(t)
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	txs := []*types.Transaction{
		createSignedVectorFeeTx(t, 0, recipient, big.NewInt(1), 21000, key),
		createSignedVectorFeeTx(t, 1, recipient, big.NewInt(1), 21000, key),
		createSignedVectorFeeTx(t, 2, recipient, big.NewInt(1), 21000, key),
	}
	errs := pool.Add(txs, false, false)
	for _, err := range errs {
		assert.NoError(t, err)
	}

	pending := pool.Pending(PendingFilter{})
	assert.Len(t, pending[addr], 3)
}

func TestVectorFeePool_Reset(t *testing.T) {
	chain, pool, key, _ := setupVectorFeeTestPool(t)
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := createSignedVectorFeeTx(t, 0, recipient, big.NewInt(1), 21000, key)

	errs := pool.Add([]*types.Transaction{tx}, false, false)
	assert.NoError(t, errs[0])
	assert.True(t, pool.Has(tx.Hash()))

	// A block that doesn't include the transaction leaves it pooled.
	emptyHead := &types.Header{
		Number:     big.NewInt(1),
		GasLimit:   8_000_000,
		ParentHash: pool.head.Hash(),
		Root:       types.EmptyRootHash,
	}
	chain.setHead(emptyHead, nil)
	pool.Reset(pool.head, emptyHead)
	assert.True(t, pool.Has(tx.Hash()))

	// A block that includes the transaction drops it from the pool.
	includingHead := &types.Header{
		Number:     big.NewInt(2),
		GasLimit:   8_000_000,
		ParentHash: emptyHead.Hash(),
		Root:       types.EmptyRootHash,
	}
	chain.setHead(includingHead, []*types.Transaction{tx})
	pool.Reset(emptyHead, includingHead)

	assert.False(t, pool.Has(tx.Hash()))
	assert.Len(t, pool.txs, 0)
	assert.Len(t, pool.txsByAddress, 0)
}

func TestVectorFeePool_Get(t *testing.T) {
	_, pool, key, _ := setupVectorFeeTestPool(t)
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := createSignedVectorFeeTx(t, 0, recipient, big.NewInt(1000), 21000, key)

	errs := pool.Add([]*types.Transaction{tx}, false, false)
	assert.NoError(t, errs[0])

	retrieved := pool.Get(tx.Hash())
	assert.NotNil(t, retrieved)
	assert.Equal(t, tx.Hash(), retrieved.Hash())

	assert.Nil(t, pool.Get(common.Hash{}))
}

func TestVectorFeePool_Nonce(t *testing.T) {
	_, pool, key, addr := setupVectorFeeTestPool(t)
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	assert.Equal(t, uint64(0), pool.Nonce(addr))

	txs := []*types.Transaction{
		createSignedVectorFeeTx(t, 0, recipient, big.NewInt(1000), 21000, key),
		createSignedVectorFeeTx(t, 1, recipient, big.NewInt(1000), 21000, key),
		createSignedVectorFeeTx(t, 2, recipient, big.NewInt(1000), 21000, key),
	}
	errs := pool.Add(txs, false, false)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, uint64(3), pool.Nonce(addr))
}

func TestVectorFeePool_Filter(t *testing.T) {
	_, pool, key, _ := setupVectorFeeTestPool(t)
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	vectorFeeTx := createSignedVectorFeeTx(t, 0, recipient, big.NewInt(1000), 21000, key)
	legacyTx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &recipient,
		Value:    big.NewInt(1000),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	assert.True(t, pool.Filter(vectorFeeTx))
	assert.False(t, pool.Filter(legacyTx))
}
