package client

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openethereum-go/corechain/core/queue"
	"github.com/openethereum-go/corechain/core/types"
	"github.com/openethereum-go/corechain/sync"
)

// ChainStore is the opaque collaborator behind spec's BlockChainClient: the
// content-addressed state trie and block database. Client never inspects
// state itself — every read or write that touches storage goes through
// this interface, the same way sync.ChainReader, miner.ChainProducer and
// txpool.BlockChain each carve out their own narrow view of the same
// underlying chain rather than sharing one god-interface.
type ChainStore interface {
	queue.AncestryChecker
	sync.ChainReader

	// ChainInfo reports the chain's current head and totals, spec's
	// chain_info.
	ChainInfo() ChainInfo

	// InsertBlock commits a verified block to storage, running its
	// transactions against state. Called from the queue drain loop once a
	// block clears verification.
	InsertBlock(block *types.Block) error

	// TransactionBlock reports which block (if any) a transaction was
	// included in.
	TransactionBlock(txHash common.Hash) (common.Hash, bool)

	// StateReaderAt opens a read view of account state rooted at root.
	StateReaderAt(root common.Hash) (StateReader, error)
}

// ChainInfo is the BestHash/BestNumber/TotalDifficulty/StateRoot summary
// spec's chain_info operation returns.
type ChainInfo struct {
	GenesisHash     common.Hash
	BestHash        common.Hash
	BestNumber      uint64
	TotalDifficulty *big.Int
	StateRoot       common.Hash
}

// StateReader is the minimal account-state view spec's nonce/balance/code/
// storage_at operations need, rooted at one state trie root. Deliberately
// distinct from txpool.StateReader (GetBalance/GetNonce only, *uint256.Int-
// typed) and core/vm's own StateDB — each package gets exactly the shape it
// needs rather than forcing the embedder's concrete state-trie type to
// implement one shared interface.
type StateReader interface {
	Nonce(addr common.Address) uint64
	Balance(addr common.Address) *big.Int
	Code(addr common.Address) []byte
	StorageAt(addr common.Address, key common.Hash) common.Hash
}
