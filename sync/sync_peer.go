package sync

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// SyncPeer evaluates whether peer should be given a new request right now,
// and if so dispatches it. Called after every successfully processed packet
// from peer (to keep a productive peer busy) and by the top-level tick loop
// for peers that have gone idle.
func (cs *ChainSync) SyncPeer(id uuid.UUID, force bool) {
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok || p.IsBusy() || !p.CanSync() {
		cs.peersMu.Unlock()
		return
	}
	peerDifficulty := p.Difficulty
	cs.peersMu.Unlock()

	ourDifficulty := cs.chain.BestBlockTotalDifficulty()
	higherDifficulty := peerDifficulty == nil || TotalDifficultyLess(ourDifficulty, peerDifficulty)

	if !(force || higherDifficulty || cs.oldBlocks != nil) {
		return
	}

	switch cs.State() {
	case StateWaitingPeers:
		cs.maybeStartSnapshotSync(id)
		return

	case StateIdle, StateBlocks, StateNewBlocks:
		if cs.chain.QueueInfo().IsFull() {
			cs.setState(StateWaiting)
			return
		}

		// A staged-but-bodyless header batch takes priority over asking for
		// more headers: finishing a batch already in hand frees queue room
		// faster than growing the backlog further.
		if key, hashes, ok := cs.newBlocks.NextBodyBatch(); ok {
			cs.dispatchBodyRequest(id, NewBlocks, key, hashes)
			return
		}

		if higherDifficulty || force || cs.State() == StateNewBlocks {
			if req, ok := cs.newBlocks.NextRequest(cs.chain.BestBlockNumber()); ok {
				cs.dispatchHeaderRequest(id, NewBlocks, req)
				if cs.State() == StateIdle {
					cs.setState(StateBlocks)
				}
				return
			}
		}

		if cs.oldBlocks != nil {
			if key, hashes, ok := cs.oldBlocks.NextBodyBatch(); ok {
				cs.dispatchBodyRequest(id, OldBlocks, key, hashes)
				return
			}
			if info := cs.chain.QueueInfo(); float64(info.UnverifiedLen+info.VerifyingLen+info.VerifiedLen) < 0.8*float64(info.MaxQueueSize) {
				if req, ok := cs.oldBlocks.NextRequest(cs.chain.BestBlockNumber()); ok {
					cs.dispatchHeaderRequest(id, OldBlocks, req)
					return
				}
			}
		}

		cs.requestPooledTransactions(id)

	case StateSnapshotData:
		cs.requestSnapshotChunk(id)
	}
}

func (cs *ChainSync) dispatchHeaderRequest(id uuid.UUID, set BlockSet, req HeaderRequest) {
	payload, err := req.Encode()
	if err != nil {
		return
	}
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok {
		cs.peersMu.Unlock()
		return
	}
	p.Asking = AskingBlockHeaders
	s := set
	p.BlockSet = &s
	p.AskTime = time.Now()
	cs.peersMu.Unlock()

	cs.io.SendPacket(id, GetBlockHeadersPacket, payload)
}

// dispatchBodyRequest asks peer for the bodies of a previously staged header
// batch, identified by batch (the batch's own first header hash). The
// downloader's in-flight marker is cleared again in onPeerBlockBodies (on a
// useful or invalid reply) or by Tick (on timeout), whichever comes first.
func (cs *ChainSync) dispatchBodyRequest(id uuid.UUID, set BlockSet, batch common.Hash, hashes []common.Hash) {
	payload, err := encodeHashList(hashes)
	if err != nil {
		return
	}
	dl := cs.downloaderFor(set)
	dl.MarkBodiesInFlight(batch)

	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok {
		cs.peersMu.Unlock()
		dl.ClearBodiesInFlight(batch)
		return
	}
	p.Asking = AskingBlockBodies
	s := set
	p.BlockSet = &s
	key := batch
	p.AskingBodiesFor = &key
	p.AskTime = time.Now()
	cs.peersMu.Unlock()

	cs.io.SendPacket(id, GetBlockBodiesPacket, payload)
}

func (cs *ChainSync) requestPooledTransactions(id uuid.UUID) {
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok || len(p.AskingPooledTransactions) != 0 {
		cs.peersMu.Unlock()
		return
	}
	n := p.UnfetchedPooledTransactions.Cardinality()
	if n == 0 {
		cs.peersMu.Unlock()
		return
	}
	if n > MaxTransactionsToRequest {
		n = MaxTransactionsToRequest
	}
	wanted := p.UnfetchedPooledTransactions.ToSlice()[:n]
	for _, h := range wanted {
		p.UnfetchedPooledTransactions.Remove(h)
	}
	p.AskingPooledTransactions = wanted
	p.Asking = AskingPooledTransactions
	p.AskTime = time.Now()
	cs.peersMu.Unlock()

	payload, err := encodeHashList(wanted)
	if err != nil {
		return
	}
	cs.io.SendPacket(id, GetPooledTransactionsPacket, payload)
}

// MaxTransactionsToRequest caps a single GetPooledTransactions request.
const MaxTransactionsToRequest = 256
