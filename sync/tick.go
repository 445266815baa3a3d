package sync

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

// Tick is the periodic maintenance pass a caller drives (typically once a
// second): it expires any peer whose outstanding request has overrun its
// per-kind timeout, releases any downloader bookkeeping that request held,
// and offers every still-idle, still-syncable peer another task. It never
// blocks on network I/O itself.
func (cs *ChainSync) Tick(now time.Time) {
	cs.peersMu.Lock()
	var timedOut []uuid.UUID
	for id, p := range cs.peers {
		if p.HasTimedOut(now) {
			timedOut = append(timedOut, id)
		}
	}
	cs.peersMu.Unlock()

	for _, id := range timedOut {
		cs.expirePeer(id)
	}

	cs.peersMu.RLock()
	idle := make([]uuid.UUID, 0, len(cs.peers))
	for id, p := range cs.peers {
		if !p.IsBusy() && p.CanSync() {
			idle = append(idle, id)
		}
	}
	cs.peersMu.RUnlock()

	for _, id := range idle {
		cs.SyncPeer(id, false)
	}
}

// expirePeer handles a request that blew past its deadline: the in-flight
// downloader bookkeeping is released so another peer can pick the batch back
// up, the peer is marked expired (deactivatePeer's ResetAsking already does
// this for replies that arrive; a timeout never gets a reply, so Tick does it
// directly here), and the transport is told to drop the connection.
func (cs *ChainSync) expirePeer(id uuid.UUID) {
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok {
		cs.peersMu.Unlock()
		return
	}
	asking := p.Asking
	set := NewBlocks
	if p.BlockSet != nil {
		set = *p.BlockSet
	}
	bodyBatch, haveBodyBatch := p.AskingBodiesFor, p.AskingBodiesFor != nil
	p.ResetAsking()
	cs.peersMu.Unlock()

	if asking == AskingBlockBodies && haveBodyBatch {
		if dl := cs.downloaderFor(set); dl != nil {
			dl.ClearBodiesInFlight(*bodyBatch)
		}
	}

	log.Debug("sync: peer request timed out", "peer", id, "asking", asking)
	cs.io.DropPeer(id)
}
