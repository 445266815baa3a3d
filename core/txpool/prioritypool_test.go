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

func setupPriorityTestPool(t *testing.T, cfg PoolConfig) (*fakeChain, *PriorityPool, *ecdsa.PrivateKey, common.Address) {
	t.Helper()

	chain := newFakeChain(testChainConfig())
	signer := types.LatestSigner(big.NewInt(1337))
	pool := NewPriorityPool(cfg, chain, signer)

	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	chain.stateOf(types.EmptyRootHash).SetBalance(addr, uint256.NewInt(1_000_000_000_000_000_000))

	err = pool.Init(1, chain.CurrentBlock(), func(common.Address, bool) error { return nil })
	assert.NoError(t, err)

	return chain, pool, key, addr
}

func createSignedLegacyTx(t *testing.T, nonce uint64, to common.Address, gasPrice int64, key *ecdsa.PrivateKey) *types.Transaction {
	t.Helper()

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(gasPrice),
	})

	signer := types.LatestSigner(big.NewInt(1337))
	h := signer.Hash(tx)
	sig, err := crypto.Sign(h[:], key)
	assert.NoError(t, err)
	signed, err := tx.WithSignature(signer, sig)
	assert.NoError(t, err)
	return signed
}

func TestPriorityPool_Filter(t *testing.T) {
	_, pool, key, _ := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	legacyTx := createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key)
	vectorFeeTx := types.NewTx(&types.VectorFeeTx{
		ChainID:    uint256.NewInt(1337),
		Nonce:      0,
		Gas:        21000,
		GasTipCaps: types.VectorFeeUint{uint256.NewInt(1), uint256.NewInt(3), uint256.NewInt(3)},
		GasFeeCaps: types.VectorFeeUint{uint256.NewInt(4), uint256.NewInt(5), uint256.NewInt(6)},
		To:         recipient,
		Value:      uint256.NewInt(1),
	})

	assert.True(t, pool.Filter(legacyTx))
	assert.False(t, pool.Filter(vectorFeeTx))
}

func TestPriorityPool_AddAndPending(t *testing.T) {
	_, pool, key, addr := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	txs := []*types.Transaction{
		createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key),
		createSignedLegacyTx(t, 1, recipient, 1_000_000_000, key),
		createSignedLegacyTx(t, 2, recipient, 1_000_000_000, key),
	}
	errs := pool.Add(txs, false, false)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	for _, tx := range txs {
		assert.True(t, pool.Has(tx.Hash()))
	}

	pending := pool.Pending(PendingFilter{})
	assert.Len(t, pending[addr], 3)

	run, queued := pool.Stats()
	assert.Equal(t, 3, run)
	assert.Equal(t, 0, queued)
}

func TestPriorityPool_AlreadyKnown(t *testing.T) {
	_, pool, key, _ := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key)

	errs := pool.Add([]*types.Transaction{tx}, false, false)
	assert.Equal(t, []error{nil}, errs)

	errs = pool.Add([]*types.Transaction{tx}, false, false)
	assert.Equal(t, []error{ErrAlreadyKnown}, errs)
}

func TestPriorityPool_NonceGapRejected(t *testing.T) {
	_, pool, key, addr := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := createSignedLegacyTx(t, 3, recipient, 1_000_000_000, key)

	errs := pool.Add([]*types.Transaction{tx}, false, false)
	assert.ErrorIs(t, errs[0], ErrNonceTooHigh)

	pending := pool.Pending(PendingFilter{})
	assert.Empty(t, pending[addr])

	run, queued := pool.Stats()
	assert.Equal(t, 0, run)
	assert.Equal(t, 0, queued)
}

func TestPriorityPool_ReplaceUnderpriced(t *testing.T) {
	_, pool, key, _ := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	first := createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key)
	errs := pool.Add([]*types.Transaction{first}, false, false)
	assert.NoError(t, errs[0])

	// A replacement below the price-bump threshold is rejected.
	cheap := createSignedLegacyTx(t, 0, recipient, 1_050_000_000, key)
	errs = pool.Add([]*types.Transaction{cheap}, false, false)
	assert.Equal(t, ErrReplaceUnderpriced, errs[0])
	assert.True(t, pool.Has(first.Hash()))

	// A replacement clearing the bump threshold succeeds and evicts the original.
	bumped := createSignedLegacyTx(t, 0, recipient, 2_000_000_000, key)
	errs = pool.Add([]*types.Transaction{bumped}, false, false)
	assert.NoError(t, errs[0])
	assert.False(t, pool.Has(first.Hash()))
	assert.True(t, pool.Has(bumped.Hash()))
}

func TestPriorityPool_Reset(t *testing.T) {
	chain, pool, key, addr := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key)

	errs := pool.Add([]*types.Transaction{tx}, false, false)
	assert.NoError(t, errs[0])

	// Including the transaction advances its sender's nonce in the new
	// head's state, which is what cull removes it by.
	chain.stateOf(types.EmptyRootHash).SetNonce(addr, 1)

	includingHead := &types.Header{
		Number:     big.NewInt(1),
		GasLimit:   8_000_000,
		ParentHash: pool.head.Hash(),
		Root:       types.EmptyRootHash,
	}
	chain.setHead(includingHead, []*types.Transaction{tx})
	pool.Reset(pool.head, includingHead)

	assert.False(t, pool.Has(tx.Hash()))
}

func TestPriorityPool_Locals(t *testing.T) {
	_, pool, key, addr := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key)

	errs := pool.Add([]*types.Transaction{tx}, true, false)
	assert.NoError(t, errs[0])

	locals := pool.Locals()
	assert.Contains(t, locals, addr)
}

func TestPriorityPool_Status(t *testing.T) {
	_, pool, key, _ := setupPriorityTestPool(t, DefaultPoolConfig())
	defer pool.Close()

	recipient := common.HexToAddress("0x1234567890123456789012345678901234567890")
	ready := createSignedLegacyTx(t, 0, recipient, 1_000_000_000, key)
	gapped := createSignedLegacyTx(t, 2, recipient, 1_000_000_000, key)

	errs := pool.Add([]*types.Transaction{ready, gapped}, false, false)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrNonceTooHigh)

	assert.Equal(t, TxStatusPending, pool.Status(ready.Hash()))
	assert.Equal(t, TxStatusUnknown, pool.Status(gapped.Hash()))
	assert.Equal(t, TxStatusUnknown, pool.Status(common.Hash{}))
}
