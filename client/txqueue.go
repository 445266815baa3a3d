package client

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/openethereum-go/corechain/core/types"
)

// ImportBlock hands a raw RLP-encoded block to the verification queue,
// spec's import_block. The drain loop commits it to storage once verified.
func (cl *Client) ImportBlock(raw []byte) (common.Hash, error) {
	return cl.queue.Import(raw)
}

// QueueAncientBlock is spec's queue_ancient_block: ancient (pre-head,
// backfilled) blocks go through the same verification queue as any other
// import. This module's queue does not prioritize by age beyond what
// sync's own 80%-full backpressure on old-block requests already provides
// (sync_peer.go), so there is no separate ancient-block fast path here.
func (cl *Client) QueueAncientBlock(raw []byte) (common.Hash, error) {
	return cl.queue.Import(raw)
}

// QueueTransactions is spec's queue_transactions: decodes each raw
// transaction and offers the batch to the pool, preserving each input's
// position in the returned error slice (nil where that one was accepted).
func (cl *Client) QueueTransactions(raws [][]byte) []error {
	errs := make([]error, len(raws))
	txs := make([]*types.Transaction, 0, len(raws))
	idx := make([]int, 0, len(raws))
	for i, raw := range raws {
		var tx types.Transaction
		if err := rlp.DecodeBytes(raw, &tx); err != nil {
			errs[i] = err
			continue
		}
		txs = append(txs, &tx)
		idx = append(idx, i)
	}
	if len(txs) == 0 {
		return errs
	}
	for j, err := range cl.pool.Add(txs, false, false) {
		errs[idx[j]] = err
	}
	return errs
}

// QueueConsensusMessage is spec's queue_consensus_message: forwarded to
// whatever engine-specific handler the embedder wired in, or dropped if
// none was configured (the PoW engine this module implements has none).
func (cl *Client) QueueConsensusMessage(msg []byte) error {
	if cl.consensusMessages == nil {
		log.Trace("client: consensus message dropped, no handler configured")
		return nil
	}
	return cl.consensusMessages.HandleConsensusMessage(msg)
}

// The following three methods satisfy sync.ChainClient, letting Client
// itself stand in as the ChainSync's collaborator: sync never needs to know
// this is a facade wrapping a queue and a pool rather than something
// simpler.

// BestBlockNumber implements sync.ChainClient.
func (cl *Client) BestBlockNumber() uint64 {
	return cl.store.ChainInfo().BestNumber
}

// BestBlockTotalDifficulty implements sync.ChainClient, encoding the chain's
// running total difficulty the same opaque 32-byte big-endian way sync
// compares it in, via common.BigToHash.
func (cl *Client) BestBlockTotalDifficulty() *common.Hash {
	td := common.BigToHash(cl.store.ChainInfo().TotalDifficulty)
	return &td
}

// ImportTransactions implements sync.ChainClient by delegating to
// QueueTransactions and logging (rather than surfacing) per-transaction
// failures — a peer offering one bad transaction alongside good ones
// shouldn't also lose the good ones to a propagated error the sync package
// has no way to act on anyway (see sync.ChainSync.Dispatch's
// Invalid/Useless/Ok verdict, which already covers malformed wire data).
func (cl *Client) ImportTransactions(txs [][]byte) {
	for i, err := range cl.QueueTransactions(txs) {
		if err != nil {
			log.Trace("client: rejected transaction from sync", "index", i, "err", err)
		}
	}
}
