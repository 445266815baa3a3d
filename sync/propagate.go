package sync

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
)

// PropagateBlock announces a newly imported block to a √N-sized random
// subset of our active peers (clamped to [minPeersPropagation,
// maxPeersPropagation]), sending the full NewBlock packet to that subset
// and a cheaper NewBlockHashes packet to everyone else so they can pull it
// if they want it.
func (cs *ChainSync) PropagateBlock(raw []byte, hash common.Hash, number uint64, totalDifficulty []byte) {
	cs.peersMu.RLock()
	ids := make([]uuid.UUID, 0, len(cs.peers))
	for id, p := range cs.peers {
		if p.CanSync() {
			ids = append(ids, id)
		}
	}
	cs.peersMu.RUnlock()

	if len(ids) == 0 {
		return
	}
	fanout := sqrtFanout(len(ids))
	order := cs.rnd.Perm(len(ids))

	newBlockPayload, err := rlp.EncodeToBytes(struct {
		Block      rlp.RawValue
		Difficulty []byte
	}{raw, totalDifficulty})
	if err != nil {
		return
	}
	hashesPayload, err := rlp.EncodeToBytes([]struct {
		Hash   common.Hash
		Number uint64
	}{{hash, number}})
	if err != nil {
		return
	}

	for i, idx := range order {
		id := ids[idx]
		if i < fanout {
			cs.io.SendPacket(id, NewBlockPacket, newBlockPayload)
		} else {
			cs.io.SendPacket(id, NewBlockHashesPacket, hashesPayload)
		}
	}
}

// PropagateTransactions offers newly pooled transaction hashes to every
// active peer that hasn't already seen them, up to maxTransactionsPerTick
// hashes per peer per call. priority shortens the deadline this call is
// allowed to take from defaultPropagationDeadline down to
// priorityTaskDeadline — callers on a time-sensitive path (a transaction
// the local node just originated) should set it.
func (cs *ChainSync) PropagateTransactions(hashes []common.Hash, priority bool) {
	deadline := defaultPropagationDeadline
	if priority {
		deadline = priorityTaskDeadline
	}
	cutoff := time.Now().Add(deadline)

	cs.peersMu.RLock()
	type target struct {
		id  uuid.UUID
		new []common.Hash
	}
	var targets []target
	for id, p := range cs.peers {
		if !p.CanSync() {
			continue
		}
		var toSend []common.Hash
		for _, h := range hashes {
			if !p.LastSentTransactions.Contains(h) {
				toSend = append(toSend, h)
				if len(toSend) >= maxTransactionsPerTick {
					break
				}
			}
		}
		if len(toSend) > 0 {
			targets = append(targets, target{id, toSend})
		}
	}
	cs.peersMu.RUnlock()

	for _, t := range targets {
		if time.Now().After(cutoff) {
			return
		}
		payload, err := encodeHashList(t.new)
		if err != nil {
			continue
		}
		if len(payload) > maxTransactionPacketSize {
			// Split into smaller batches rather than drop: one split into
			// chunks of maxTransactionsPerTick/2 hashes, each sent as its
			// own packet without a further size check.
			for _, batch := range chunkHashes(t.new, maxTransactionsPerTick/2) {
				if p, err := encodeHashList(batch); err == nil {
					cs.io.SendPacket(t.id, NewPooledTransactionHashesPacket, p)
				}
			}
		} else {
			cs.io.SendPacket(t.id, NewPooledTransactionHashesPacket, payload)
		}

		cs.peersMu.Lock()
		if p, ok := cs.peers[t.id]; ok {
			for _, h := range t.new {
				p.LastSentTransactions.Add(h)
			}
		}
		cs.peersMu.Unlock()
	}
}

func chunkHashes(hashes []common.Hash, size int) [][]common.Hash {
	if size <= 0 {
		size = 1
	}
	var out [][]common.Hash
	for len(hashes) > 0 {
		n := size
		if n > len(hashes) {
			n = len(hashes)
		}
		out = append(out, hashes[:n])
		hashes = hashes[n:]
	}
	return out
}
