package sync

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"github.com/openethereum-go/corechain/core/types"
)

// statusPayload is the decoded body of a Status packet.
type statusPayload struct {
	ProtocolVersion uint32
	NetworkID       uint64
	Difficulty      []byte // opaque big-endian bytes; see TotalDifficultyLess
	LatestHash      common.Hash
	Genesis         common.Hash
	ForkID          []byte `rlp:"optional"` // absent pre ETH/64; 12 raw bytes otherwise
}

// OnPeerConnected registers a newly connected peer; it sends nothing. The
// peer starts unconfirmed (or pre-confirmed, if no fork filter is
// configured) and is not eligible for sync scheduling until Status arrives
// and the fork id it carries is checked.
func (cs *ChainSync) OnPeerConnected(id uuid.UUID) {
	p := NewPeer(id)
	if cs.forkFilter == nil {
		p.Confirmation = ForkConfirmed
	}
	cs.peersMu.Lock()
	cs.peers[id] = p
	cs.peersMu.Unlock()
}

// OnPeerDisconnected drops all bookkeeping for a departed peer.
func (cs *ChainSync) OnPeerDisconnected(id uuid.UUID) {
	cs.peersMu.Lock()
	delete(cs.peers, id)
	cs.peersMu.Unlock()
}

// Dispatch routes an inbound packet to the matching on_peer_* handler and
// applies the uniform verdict discipline: Invalid disables and deactivates
// the peer, Useless only deactivates it (it stays connected), any other
// error is logged, and a nil result immediately offers the peer another
// task.
func (cs *ChainSync) Dispatch(peer uuid.UUID, id PacketID, data []byte) {
	var err error
	switch id {
	case StatusPacket:
		err = cs.onPeerStatus(peer, data)
	case NewBlockPacket:
		err = cs.onPeerNewBlock(peer, data)
	case NewBlockHashesPacket:
		err = cs.onPeerNewHashes(peer, data)
	case BlockHeadersPacket:
		err = cs.onPeerBlockHeaders(peer, data)
	case BlockBodiesPacket:
		err = cs.onPeerBlockBodies(peer, data)
	case ReceiptsPacket:
		err = cs.onPeerBlockReceipts(peer, data)
	case NewPooledTransactionHashesPacket:
		err = cs.onPeerNewPooledTransactionHashes(peer, data)
	case PooledTransactionsPacket:
		err = cs.onPeerPooledTransactions(peer, data)
	case TransactionsPacket:
		err = cs.onPeerTransactions(peer, data)
	case SnapshotManifestPacket:
		err = cs.onSnapshotManifest(peer, data)
	case SnapshotDataPacket:
		err = cs.onSnapshotData(peer, data)
	default:
		log.Debug("sync: unknown packet", "peer", peer, "id", id)
		return
	}

	switch {
	case IsInvalid(err):
		log.Debug("sync: invalid packet, disabling peer", "peer", peer, "packet", id)
		cs.io.DisablePeer(peer)
		cs.deactivatePeer(peer)
	case IsUseless(err):
		cs.deactivatePeer(peer)
	case err != nil:
		log.Debug("sync: packet processing error", "peer", peer, "packet", id, "err", err)
	default:
		cs.SyncPeer(peer, false)
	}
}

// deactivatePeer marks a peer's request as expired without disconnecting it
// — used for responses that are merely unhelpful (stale, duplicate,
// superseded by a faster peer), as opposed to provably malicious.
func (cs *ChainSync) deactivatePeer(id uuid.UUID) {
	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		p.ResetAsking()
	}
	cs.peersMu.Unlock()
}

func (cs *ChainSync) onPeerStatus(id uuid.UUID, data []byte) error {
	var payload statusPayload
	if err := rlp.DecodeBytes(data, &payload); err != nil {
		return errInvalid
	}

	cs.peersMu.Lock()
	defer cs.peersMu.Unlock()
	p, ok := cs.peers[id]
	if !ok {
		return nil // unexpected status from an unregistered session; ignore
	}

	// EIP-2124 fork-id compatibility is itself proof the peer shares our
	// hard-fork history, replacing the explicit fork-block header echo probe
	// (AskingForkHeader) older clients needed. A peer that omits ForkID
	// entirely (pre-eth/64) is held at ForkUnconfirmed rather than probed.
	if cs.forkFilter != nil {
		if len(payload.ForkID) == 0 {
			return nil
		}
		remote, err := DecodeForkID(payload.ForkID)
		if err != nil {
			return errInvalid
		}
		if err := cs.forkFilter.IsCompatible(cs.chain.BestBlockNumber(), remote); err != nil {
			log.Trace("sync: incompatible fork id", "peer", id, "err", err)
			return errInvalid
		}
	}

	p.ProtocolVersion = uint(payload.ProtocolVersion)
	p.NetworkID = payload.NetworkID
	p.LatestHash = payload.LatestHash
	p.Genesis = payload.Genesis
	p.AskTime = time.Now()
	p.Confirmation = ForkConfirmed

	var diff common.Hash
	copy(diff[32-len(payload.Difficulty):], payload.Difficulty)
	p.Difficulty = &diff

	log.Debug("sync: peer status", "peer", id, "network", p.NetworkID, "latest", p.LatestHash)
	return nil
}

func (cs *ChainSync) onPeerNewBlock(id uuid.UUID, data []byte) error {
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok || !p.CanSync() {
		cs.peersMu.Unlock()
		return nil
	}
	cs.peersMu.Unlock()

	var payload struct {
		Block      rlp.RawValue
		Difficulty []byte
	}
	if err := rlp.DecodeBytes(data, &payload); err != nil {
		return errInvalid
	}
	var header types.Header
	if err := rlp.DecodeBytes(payload.Block, &header); err != nil {
		return errInvalid
	}
	number := header.Number.Uint64()
	if number > cs.highestBlockSeen {
		cs.highestBlockSeen = number
	}

	if _, err := cs.chain.ImportBlock(payload.Block); err != nil {
		log.Trace("sync: new block import failed", "peer", id, "err", err)
	}

	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		p.LatestHash = header.ParentHash
	}
	cs.peersMu.Unlock()
	return nil
}

func (cs *ChainSync) onPeerNewHashes(id uuid.UUID, data []byte) error {
	cs.peersMu.RLock()
	p, ok := cs.peers[id]
	canSync := ok && p.CanSync()
	cs.peersMu.RUnlock()
	if !canSync {
		return nil
	}

	var entries []struct {
		Hash   common.Hash
		Number uint64
	}
	if err := rlp.DecodeBytes(data, &entries); err != nil {
		return errInvalid
	}
	if len(entries) > maxNewHashes {
		entries = entries[:maxNewHashes]
	}

	var maxHeight uint64
	var newHashes []common.Hash
	for _, e := range entries {
		if e.Number > cs.highestBlockSeen {
			cs.highestBlockSeen = e.Number
		}
		newHashes = append(newHashes, e.Hash)
		if e.Number > maxHeight {
			maxHeight = e.Number
		}
	}

	if maxHeight != 0 && cs.State() == StateIdle {
		cs.setState(StateNewBlocks)
		cs.SyncPeer(id, true)
	}
	return nil
}

func (cs *ChainSync) onPeerBlockHeaders(id uuid.UUID, data []byte) error {
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok {
		cs.peersMu.Unlock()
		return errUseless
	}
	set := NewBlocks
	if p.BlockSet != nil {
		set = *p.BlockSet
	}
	p.ResetAsking()
	cs.peersMu.Unlock()

	var headers []*types.Header
	if err := rlp.DecodeBytes(data, &headers); err != nil {
		return errInvalid
	}

	dl := cs.downloaderFor(set)
	if dl == nil {
		return errUseless
	}
	_, err := dl.ImportHeaders(id, headers)
	return err
}

func (cs *ChainSync) onPeerBlockBodies(id uuid.UUID, data []byte) error {
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	set := NewBlocks
	var batch common.Hash
	haveBatch := false
	if ok && p.BlockSet != nil {
		set = *p.BlockSet
	}
	if ok && p.AskingBodiesFor != nil {
		batch = *p.AskingBodiesFor
		haveBatch = true
	}
	if ok {
		p.ResetAsking()
	}
	cs.peersMu.Unlock()

	// Release the batch whatever the reply turns out to be, so a malformed
	// or empty reply does not leave it marked in flight.
	if haveBatch {
		if dl := cs.downloaderFor(set); dl != nil {
			dl.ClearBodiesInFlight(batch)
		}
	}

	var bodies []*types.Body
	if err := rlp.DecodeBytes(data, &bodies); err != nil {
		return errInvalid
	}
	if len(bodies) == 0 {
		return errUseless
	}
	if !haveBatch {
		// Nothing was outstanding for this peer, or it wasn't a bodies
		// request -- an unsolicited reply, useless either way.
		return errUseless
	}
	dl := cs.downloaderFor(set)
	if dl == nil {
		return errUseless
	}

	blocks, err := dl.CompleteWithBodies(batch, bodies)
	if err != nil {
		return err
	}
	for _, raw := range blocks {
		if _, err := cs.chain.ImportBlock(raw); err != nil {
			log.Trace("sync: downloaded block import failed", "peer", id, "err", err)
		}
	}
	return nil
}

func (cs *ChainSync) onPeerBlockReceipts(id uuid.UUID, data []byte) error {
	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		p.ResetAsking()
	}
	cs.peersMu.Unlock()

	var receipts [][]*types.Receipt
	if err := rlp.DecodeBytes(data, &receipts); err != nil {
		return errInvalid
	}
	if len(receipts) == 0 {
		return errUseless
	}
	return nil
}

func (cs *ChainSync) onPeerNewPooledTransactionHashes(id uuid.UUID, data []byte) error {
	var hashes []common.Hash
	if err := rlp.DecodeBytes(data, &hashes); err != nil {
		return errInvalid
	}
	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		for _, h := range hashes {
			if !p.LastSentTransactions.Contains(h) {
				p.UnfetchedPooledTransactions.Add(h)
			}
		}
	}
	cs.peersMu.Unlock()
	return nil
}

func (cs *ChainSync) onPeerPooledTransactions(id uuid.UUID, data []byte) error {
	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		p.ResetAsking()
	}
	cs.peersMu.Unlock()

	var raws []rlp.RawValue
	if err := rlp.DecodeBytes(data, &raws); err != nil {
		return errInvalid
	}
	if len(raws) == 0 {
		return errUseless
	}
	cs.chain.ImportTransactions(raws)
	return nil
}

func (cs *ChainSync) onPeerTransactions(id uuid.UUID, data []byte) error {
	var raws []rlp.RawValue
	if err := rlp.DecodeBytes(data, &raws); err != nil {
		return errInvalid
	}
	cs.chain.ImportTransactions(raws)

	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		for _, raw := range raws {
			p.LastSentTransactions.Add(rlpHash(raw))
		}
	}
	cs.peersMu.Unlock()
	return nil
}

func rlpHash(raw []byte) common.Hash {
	return crypto.Keccak256Hash(raw)
}

func (cs *ChainSync) downloaderFor(set BlockSet) *BlockDownloader {
	if set == OldBlocks {
		return cs.oldBlocks
	}
	return cs.newBlocks
}
