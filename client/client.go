// Package client is the glue that wires the verification queue, transaction
// pool, miner and chain-sync state machine behind a single facade, the way
// spec's BlockChainClient describes: one surface the RPC layer, the CLI and
// the embedding node all call into, backed by an opaque state trie and
// block database (ChainStore) none of the four subsystems ever sees
// directly.
package client

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/openethereum-go/corechain/core/queue"
	"github.com/openethereum-go/corechain/core/txpool"
	"github.com/openethereum-go/corechain/core/types"
	"github.com/openethereum-go/corechain/miner"
	"github.com/openethereum-go/corechain/sync"
)

// ConsensusMessageHandler is the opaque seam for out-of-band consensus
// engine messages (spec's queue_consensus_message) — e.g. a proposal-and-
// reseal engine's step/commit messages. The only engine this module
// implements (Ethash-style external-work PoW, miner's "External work-
// package protocol") has no such messages, so a Client built without one
// simply drops them; an embedder plugging in a different Engine supplies a
// handler that forwards to it.
type ConsensusMessageHandler interface {
	HandleConsensusMessage(msg []byte) error
}

// Config bundles everything New needs to build a Client: the collaborators
// each subsystem already requires, plus that subsystem's own config struct.
type Config struct {
	Store ChainStore

	Queue     queue.Config
	Verifier  queue.Verifier
	CheckSeal bool

	PoolGasTip   uint64
	PoolChain    txpool.BlockChain
	PoolSubPools []txpool.SubPool

	Miner           miner.Config
	ChainProducer   miner.ChainProducer
	Engine          miner.Engine
	AuthoringParams miner.AuthoringParams

	Sync     sync.Config
	PacketIO sync.PacketIO

	ConsensusMessages ConsensusMessageHandler
}

// Client is the BlockChainClient-shaped facade: queue, pool, miner and sync
// behind one surface, backed by the caller's ChainStore.
type Client struct {
	store ChainStore

	queue *queue.Queue
	pool  *txpool.TxPool
	miner *miner.Miner
	sync  *sync.ChainSync

	consensusMessages ConsensusMessageHandler

	stopDrain chan struct{}
}

// New constructs a Client and starts its background drain loop. undo, the
// returned cleanup, restores GOMAXPROCS to its pre-call value and must be
// invoked (defer it) alongside Close.
func New(cfg Config) (cl *Client, undo func(), err error) {
	undo, err = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		// Not every environment exposes a CFS quota (bare metal, most
		// desktops); GOMAXPROCS is left at its runtime default and sizing
		// below falls back to runtime.NumCPU().
		log.Debug("client: automaxprocs could not adjust GOMAXPROCS", "err", err)
		undo = func() {}
	}

	q := queue.New(cfg.Queue, cfg.Verifier, cfg.CheckSeal)

	pool, err := txpool.New(cfg.PoolGasTip, cfg.PoolChain, cfg.PoolSubPools)
	if err != nil {
		q.Close()
		undo()
		return nil, func() {}, fmt.Errorf("client: construct tx pool: %w", err)
	}

	m := miner.New(cfg.Miner, cfg.ChainProducer, cfg.Engine, pool, cfg.AuthoringParams)

	cl = &Client{
		store:             cfg.Store,
		queue:             q,
		pool:              pool,
		miner:             m,
		consensusMessages: cfg.ConsensusMessages,
		stopDrain:         make(chan struct{}),
	}

	syncCfg := cfg.Sync
	syncCfg.SupplierData.Chain = cfg.Store
	cl.sync = sync.New(syncCfg, cfg.PacketIO, cl)

	go cl.drainLoop()

	return cl, undo, nil
}

// Close stops the drain loop and releases the queue's and pool's background
// workers. The miner and sync state machine hold no goroutines of their own
// to stop — both are driven by explicit calls (UpdateSealing, Tick,
// Dispatch) from the embedding node's own event loop.
func (cl *Client) Close() {
	close(cl.stopDrain)
	cl.queue.Close()
	if err := cl.pool.Close(); err != nil {
		log.Warn("client: tx pool close", "err", err)
	}
}

// Sync and Miner expose the two subsystems' own richer surfaces (peer
// events, sealing controls) directly — Client only narrows what three of
// the four subsystems see of each other, not what the embedder sees of
// them.
func (cl *Client) Sync() *sync.ChainSync { return cl.sync }
func (cl *Client) Miner() *miner.Miner   { return cl.miner }

// ChainInfo is spec's chain_info.
func (cl *Client) ChainInfo() ChainInfo { return cl.store.ChainInfo() }

// Block assembles a full block from its separately stored header and body,
// spec's block.
func (cl *Client) Block(hash common.Hash) (*types.Block, bool) {
	header, ok := cl.store.HeaderByHash(hash)
	if !ok {
		return nil, false
	}
	body, ok := cl.store.BodyByHash(hash)
	if !ok {
		return nil, false
	}
	return types.NewBlockWithHeader(header).WithBody(body.Transactions, body.Uncles), true
}

// BlockHeader is spec's block_header.
func (cl *Client) BlockHeader(hash common.Hash) (*types.Header, bool) {
	return cl.store.HeaderByHash(hash)
}

// BlockBody is spec's block_body.
func (cl *Client) BlockBody(hash common.Hash) (*types.Body, bool) {
	return cl.store.BodyByHash(hash)
}

// BlockReceipts is spec's block_receipts.
func (cl *Client) BlockReceipts(hash common.Hash) ([]*types.Receipt, bool) {
	return cl.store.ReceiptsByHash(hash)
}

// QueueInfo is spec's queue_info.
func (cl *Client) QueueInfo() queue.Info { return cl.queue.Info() }

// TransactionBlock is spec's transaction_block.
func (cl *Client) TransactionBlock(txHash common.Hash) (common.Hash, bool) {
	return cl.store.TransactionBlock(txHash)
}

// StateAt is spec's state_at.
func (cl *Client) StateAt(root common.Hash) (StateReader, error) {
	return cl.store.StateReaderAt(root)
}

// currentState opens a reader at the chain's current head state, the
// implicit root Nonce/Balance/Code/StorageAt resolve against.
func (cl *Client) currentState() (StateReader, error) {
	return cl.StateAt(cl.store.ChainInfo().StateRoot)
}

// Nonce is spec's nonce, resolved against current state.
func (cl *Client) Nonce(addr common.Address) (uint64, error) {
	st, err := cl.currentState()
	if err != nil {
		return 0, err
	}
	return st.Nonce(addr), nil
}

// Balance is spec's balance, resolved against current state.
func (cl *Client) Balance(addr common.Address) (*big.Int, error) {
	st, err := cl.currentState()
	if err != nil {
		return nil, err
	}
	return st.Balance(addr), nil
}

// Code is spec's code, resolved against current state.
func (cl *Client) Code(addr common.Address) ([]byte, error) {
	st, err := cl.currentState()
	if err != nil {
		return nil, err
	}
	return st.Code(addr), nil
}

// StorageAt is spec's storage_at, resolved against current state.
func (cl *Client) StorageAt(addr common.Address, key common.Hash) (common.Hash, error) {
	st, err := cl.currentState()
	if err != nil {
		return common.Hash{}, err
	}
	return st.StorageAt(addr, key), nil
}
