package miner

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/openethereum-go/corechain/core/txpool"
	"github.com/openethereum-go/corechain/core/types"
)

// fakeOpenBlock is a minimal OpenBlock that accepts every transaction up to
// a fixed gas budget, tracking gas used on its header.
type fakeOpenBlock struct {
	header *types.Header
	txs    []*types.Transaction
	lastFrom common.Address
}

func (b *fakeOpenBlock) Header() *types.Header { return b.header }

func (b *fakeOpenBlock) PushTransaction(tx *types.Transaction) error {
	const gasPerTx = 21000
	if b.header.GasUsed+gasPerTx > b.header.GasLimit {
		return &PushError{Kind: KindBlockGasLimitReached, Gas: gasPerTx, Limit: b.header.GasLimit, Used: b.header.GasUsed}
	}
	signer := types.LatestSigner(big.NewInt(1337))
	from, err := types.Sender(signer, tx)
	if err == nil {
		b.lastFrom = from
	}
	b.header.GasUsed += gasPerTx
	b.txs = append(b.txs, tx)
	return nil
}

func (b *fakeOpenBlock) Transactions() []*types.Transaction { return b.txs }

func (b *fakeOpenBlock) LastPushDuration() (common.Address, bool) {
	return b.lastFrom, b.lastFrom != (common.Address{})
}

func (b *fakeOpenBlock) Close() (*SealedBlock, error) {
	return &SealedBlock{Header: b.header, Txs: b.txs}, nil
}

type fakeChainProducer struct {
	best     *types.Header
	imported []*SealedBlock
}

func (c *fakeChainProducer) CurrentBlock() *types.Header { return c.best }

func (c *fakeChainProducer) PrepareOpenBlock(parent *types.Header, params AuthoringParams) (OpenBlock, error) {
	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, big.NewInt(1)),
		GasLimit:   params.GasCeil,
		Coinbase:   params.Author,
		Time:       parent.Time + 1,
		Extra:      params.Extra,
	}
	return &fakeOpenBlock{header: header}, nil
}

func (c *fakeChainProducer) Import(block *SealedBlock, seal types.Seal) error {
	c.imported = append(c.imported, block)
	c.best = block.Header
	return nil
}

func (c *fakeChainProducer) Broadcast(block *SealedBlock, seal types.Seal) error {
	return nil
}

type fakeEngine struct {
	state SealingState
}

func (e *fakeEngine) SealingState(header *types.Header) SealingState { return e.state }

func (e *fakeEngine) GenerateEngineTransactions(header *types.Header) ([]*types.Transaction, error) {
	return nil, nil
}

func (e *fakeEngine) GenerateSeal(header *types.Header) (types.Seal, error) {
	return types.Seal{Raw: [][]byte{{0x01}}}, nil
}

func (e *fakeEngine) VerifySeal(header *types.Header, seal types.Seal) error {
	if len(seal.Raw) == 0 {
		return ErrPowInvalid
	}
	return nil
}

type fakePool struct {
	pending map[common.Address][]*txpool.LazyTransaction
	locals  []common.Address
}

func (p *fakePool) Pending(filter txpool.PendingFilter) map[common.Address][]*txpool.LazyTransaction {
	return p.pending
}

func (p *fakePool) Locals() []common.Address { return p.locals }

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	return key
}

func signedLegacyTx(t *testing.T, nonce uint64, key *ecdsa.PrivateKey) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1_000_000_000),
	})
	signer := types.LatestSigner(big.NewInt(1337))
	h := signer.Hash(tx)
	sig, err := crypto.Sign(h[:], key)
	assert.NoError(t, err)
	signed, err := tx.WithSignature(signer, sig)
	assert.NoError(t, err)
	return signed
}

func newTestLazy(tx *types.Transaction) *txpool.LazyTransaction {
	tip := tx.GasTipCap()
	return &txpool.LazyTransaction{
		Tx:        tx,
		Hash:      tx.Hash(),
		Time:      time.Now(),
		GasFeeCap: uint256.MustFromBig(tx.GasFeeCap()),
		GasTipCap: uint256.MustFromBig(tip),
		Gas:       tx.Gas(),
	}
}

func genesisHeader() *types.Header {
	return &types.Header{
		Number:   big.NewInt(0),
		GasLimit: 8_000_000,
		Root:     types.EmptyRootHash,
	}
}

func TestMiner_PrepareBlock_FillsFromPool(t *testing.T) {
	key := newTestKey(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	tx := signedLegacyTx(t, 0, key)
	pool := &fakePool{pending: map[common.Address][]*txpool.LazyTransaction{addr: {newTestLazy(tx)}}}

	chain := &fakeChainProducer{best: genesisHeader()}
	engine := &fakeEngine{state: SealingExternal}

	m := New(DefaultConfig(), chain, engine, pool, AuthoringParams{GasCeil: 8_000_000})

	sealed, err := m.PrepareBlock()
	assert.NoError(t, err)
	assert.Len(t, sealed.Txs, 1)
	assert.Equal(t, tx.Hash(), sealed.Txs[0].Hash())
}

func TestMiner_UpdateSealing_ExternalStagesWork(t *testing.T) {
	pool := &fakePool{pending: map[common.Address][]*txpool.LazyTransaction{}}
	chain := &fakeChainProducer{best: genesisHeader()}
	engine := &fakeEngine{state: SealingExternal}

	cfg := DefaultConfig()
	cfg.ForceSealing = true
	m := New(cfg, chain, engine, pool, AuthoringParams{GasCeil: 8_000_000})
	m.SetSealingEnabled(true)

	assert.NoError(t, m.UpdateSealing(false))

	_, number, _, _, ok := m.WorkPackage()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), number)
	assert.Len(t, chain.imported, 0)
}

func TestMiner_UpdateSealing_ReadySealsAndImports(t *testing.T) {
	pool := &fakePool{pending: map[common.Address][]*txpool.LazyTransaction{}}
	chain := &fakeChainProducer{best: genesisHeader()}
	engine := &fakeEngine{state: SealingReady}

	cfg := DefaultConfig()
	cfg.ForceSealing = true
	m := New(cfg, chain, engine, pool, AuthoringParams{GasCeil: 8_000_000})
	m.SetSealingEnabled(true)

	assert.NoError(t, m.UpdateSealing(false))
	assert.Len(t, chain.imported, 1)
}

func TestMiner_SubmitSeal_UnknownHash(t *testing.T) {
	pool := &fakePool{}
	chain := &fakeChainProducer{best: genesisHeader()}
	engine := &fakeEngine{state: SealingExternal}
	m := New(DefaultConfig(), chain, engine, pool, AuthoringParams{GasCeil: 8_000_000})

	err := m.SubmitSeal(common.Hash{}, types.Seal{})
	assert.Equal(t, ErrPowHashInvalid, err)
}

func TestMiner_SubmitSeal_Success(t *testing.T) {
	pool := &fakePool{pending: map[common.Address][]*txpool.LazyTransaction{}}
	chain := &fakeChainProducer{best: genesisHeader()}
	engine := &fakeEngine{state: SealingExternal}

	cfg := DefaultConfig()
	cfg.ForceSealing = true
	m := New(cfg, chain, engine, pool, AuthoringParams{GasCeil: 8_000_000})
	m.SetSealingEnabled(true)
	assert.NoError(t, m.UpdateSealing(false))

	powHash, _, _, _, ok := m.WorkPackage()
	assert.True(t, ok)

	err := m.SubmitSeal(powHash, types.Seal{Raw: [][]byte{{0x2a}}})
	assert.NoError(t, err)
	assert.Len(t, chain.imported, 1)
}

func TestMiner_SetExtraRejectsOversized(t *testing.T) {
	pool := &fakePool{}
	chain := &fakeChainProducer{best: genesisHeader()}
	engine := &fakeEngine{state: SealingExternal}
	m := New(DefaultConfig(), chain, engine, pool, AuthoringParams{})

	err := m.SetExtra(make([]byte, 33))
	assert.Equal(t, types.ErrExtraDataTooLong, err)
}
