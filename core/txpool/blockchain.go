package txpool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/types"
)

// NewTxsEvent is fired when a batch of transactions enters a subpool,
// whether freshly discovered on the wire or reorged back in from a
// retracted block.
type NewTxsEvent struct {
	Txs []*types.Transaction
}

// ChainHeadEvent is fired when the chain head changes, carrying the new
// head; a subpool diffs it against the head it last saw when walking
// retracted blocks.
type ChainHeadEvent struct {
	Head *types.Header
}

// StateReader is the minimal view of account state the pool needs to run
// stateful validation (balance/nonce checks) without linking against a full
// state trie implementation.
type StateReader interface {
	GetBalance(addr common.Address) *uint256.Int
	GetNonce(addr common.Address) uint64
}

// BlockChain defines the minimal set of methods needed to back a transaction
// pool with a live chain. It exists so tests can substitute a fake chain
// without constructing a full node.
type BlockChain interface {
	// Config returns the chain's fork-activation configuration.
	Config() *gethparams.ChainConfig

	// CurrentBlock returns the current head of the chain.
	CurrentBlock() *types.Header

	// GetBlock retrieves a specific block, used when diffing a reset across
	// a reorg to replay retracted transactions back into the pool.
	GetBlock(hash common.Hash, number uint64) *types.Block

	// StateAt returns a state reader rooted at the given state root.
	StateAt(root common.Hash) (StateReader, error)

	// SubscribeChainHeadEvent subscribes to new chain head notifications.
	SubscribeChainHeadEvent(ch chan<- ChainHeadEvent) event.Subscription
}
