package client

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/openethereum-go/corechain/core/queue"
	"github.com/openethereum-go/corechain/core/types"
)

// drainBatch bounds how many verified items one Drain call pulls off the
// queue. drainOnce keeps calling Drain until it comes back empty, so a single
// wakeup commits every block that is verified by then.
const drainBatch = 64

// VerifiedBlock is what this module's block queue actually produces from
// Verifier.Verify: queue.Verified plus the full decoded block the drain loop
// needs to commit to storage and propagate. queue.Verified itself only
// promises Hash/ParentHash, since a header-only queue would have no Block to
// give back; this module's queue is block-bodied, so its Verifier's output
// always satisfies this richer shape.
type VerifiedBlock interface {
	queue.Verified
	Block() *types.Block
}

// drainLoop is the background goroutine started by New: it drains newly
// verified blocks off the queue, commits each to storage, then lets the
// miner and sync subsystems react to the new head the way spec's
// chain_new_blocks notification does.
func (cl *Client) drainLoop() {
	for {
		select {
		case <-cl.stopDrain:
			return
		case <-cl.queue.Ready():
			cl.drainOnce()
		}
	}
}

func (cl *Client) drainOnce() {
	for {
		items := cl.queue.Drain(drainBatch)
		if len(items) == 0 {
			return
		}
		for _, item := range items {
			vb, ok := item.(VerifiedBlock)
			if !ok {
				log.Error("client: queue produced a Verified item with no Block()", "hash", item.Hash())
				continue
			}
			cl.commitBlock(vb.Block())
		}
	}
}

func (cl *Client) commitBlock(block *types.Block) {
	if err := cl.store.InsertBlock(block); err != nil {
		log.Warn("client: failed to insert verified block", "number", block.Number(), "hash", block.Hash(), "err", err)
		cl.queue.MarkAsBad([]common.Hash{block.Hash()})
		return
	}
	cl.queue.MarkAsGood([]common.Hash{block.Hash()})

	cl.miner.OnNewChainHead(block.Header(), nil, true)

	raw, err := rlp.EncodeToBytes(block)
	if err != nil {
		log.Warn("client: failed to re-encode block for propagation", "hash", block.Hash(), "err", err)
		return
	}
	td := cl.store.ChainInfo().TotalDifficulty
	cl.sync.PropagateBlock(raw, block.Hash(), block.Number().Uint64(), common.BigToHash(td).Bytes())
}
