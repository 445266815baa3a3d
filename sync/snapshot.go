package sync

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// SnapshotManifest is the warp-sync manifest: the set of state and block
// chunk hashes needed to restore a snapshot, plus the block it was taken
// at. Chunks themselves are fetched individually and are snappy-compressed
// on the wire (decompressed here before being handed to the restoration
// service).
type SnapshotManifest struct {
	StateHashes []common.Hash
	BlockHashes []common.Hash
	StateRoot   common.Hash
	BlockNumber uint64
	BlockHash   common.Hash
}

// RestorationProgress is how far a snapshot restoration service has gotten,
// reported back so the downloader can bound how many chunks it stays ahead
// of the restorer (maxSnapshotChunksAhead).
type RestorationProgress struct {
	ChunksDone int
	Complete   bool
}

// RestorationService is the opaque collaborator that actually applies
// decompressed snapshot chunks to local storage. ChainSync only feeds it
// chunks and reads back progress; it has no notion of tries or accounts.
type RestorationService interface {
	HasManifest() bool
	SetManifest(m *SnapshotManifest) error
	FeedChunk(hash common.Hash, data []byte) error
	Progress() RestorationProgress
	IsKnownBad(hash common.Hash) bool
}

func (cs *ChainSync) maybeStartSnapshotSync(requester uuid.UUID) {
	if !cs.warpEnabled {
		return
	}
	switch cs.State() {
	case StateWaitingPeers, StateBlocks, StateWaiting:
	default:
		return
	}

	ourBest := cs.chain.BestBlockNumber()

	cs.peersMu.RLock()
	snapshotPeers := make(map[common.Hash][]uuid.UUID)
	var bestHash common.Hash
	var bestHashSet bool
	maxPeers := 0
	for id, p := range cs.peers {
		if !p.IsAllowed() || p.SnapshotHash == nil {
			continue
		}
		sn := p.SnapshotNumber
		if !(ourBest < sn && sn-ourBest > snapshotBehindThresholdBlock) {
			continue
		}
		if sn <= cs.warpBarrier {
			continue
		}
		hash := *p.SnapshotHash
		snapshotPeers[hash] = append(snapshotPeers[hash], id)
		if len(snapshotPeers[hash]) > maxPeers {
			maxPeers = len(snapshotPeers[hash])
			bestHash = hash
			bestHashSet = true
		}
	}
	cs.peersMu.RUnlock()

	if !bestHashSet {
		return
	}
	if maxPeers >= snapshotMinPeers {
		cs.startSnapshotSync(snapshotPeers[bestHash])
	}
}

func (cs *ChainSync) startSnapshotSync(peers []uuid.UUID) {
	haveManifest := cs.snapshotTarget != nil || (cs.restoration != nil && cs.restoration.HasManifest())
	if !haveManifest {
		for _, id := range peers {
			cs.peersMu.Lock()
			p, ok := cs.peers[id]
			if ok && p.Asking == AskingNothing {
				p.Asking = AskingSnapshotManifest
			}
			cs.peersMu.Unlock()
			if ok {
				cs.io.SendPacket(id, GetSnapshotManifestPacket, nil)
			}
		}
		cs.setState(StateSnapshotManifest)
	} else {
		cs.setState(StateSnapshotData)
	}
}

func (cs *ChainSync) onSnapshotManifest(id uuid.UUID, data []byte) error {
	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		p.ResetAsking()
	}
	cs.peersMu.Unlock()

	if cs.State() != StateSnapshotManifest {
		return errUseless
	}
	if cs.restoration == nil {
		return errUseless
	}

	var m SnapshotManifest
	if err := rlp.DecodeBytes(data, &m); err != nil {
		return errInvalid
	}
	if cs.restoration.IsKnownBad(m.BlockHash) {
		return errUseless
	}
	if err := cs.restoration.SetManifest(&m); err != nil {
		return errInvalid
	}
	cs.snapshotTarget = &m
	cs.setState(StateSnapshotData)
	return nil
}

// pendingChunks returns the chunk hashes still outstanding: all of the
// target manifest's state and block hashes the restoration service hasn't
// already absorbed, bounded so the downloader never gets more than
// maxSnapshotChunksAhead chunks ahead of what's been restored.
func (cs *ChainSync) pendingChunks() []common.Hash {
	if cs.snapshotTarget == nil || cs.restoration == nil {
		return nil
	}
	progress := cs.restoration.Progress()
	all := append(append([]common.Hash(nil), cs.snapshotTarget.StateHashes...), cs.snapshotTarget.BlockHashes...)
	if progress.ChunksDone+maxSnapshotChunksAhead >= len(all) {
		return all[progress.ChunksDone:]
	}
	return all[progress.ChunksDone : progress.ChunksDone+maxSnapshotChunksAhead]
}

func (cs *ChainSync) requestSnapshotChunk(id uuid.UUID) {
	if cs.snapshotTarget == nil {
		return
	}
	cs.peersMu.Lock()
	p, ok := cs.peers[id]
	if !ok || p.SnapshotHash == nil || *p.SnapshotHash != cs.snapshotTarget.BlockHash {
		cs.peersMu.Unlock()
		return
	}
	pending := cs.pendingChunks()
	if len(pending) == 0 {
		cs.peersMu.Unlock()
		return
	}
	chunk := pending[0]
	p.Asking = AskingSnapshotData
	p.AskingSnapshotData = &chunk
	cs.peersMu.Unlock()

	payload, err := rlp.EncodeToBytes(chunk)
	if err != nil {
		return
	}
	cs.io.SendPacket(id, GetSnapshotDataPacket, payload)
}

func (cs *ChainSync) onSnapshotData(id uuid.UUID, data []byte) error {
	cs.peersMu.Lock()
	if p, ok := cs.peers[id]; ok {
		p.ResetAsking()
	}
	cs.peersMu.Unlock()

	if cs.State() != StateSnapshotData || cs.restoration == nil {
		return errUseless
	}
	var payload struct {
		Hash       common.Hash
		Compressed []byte
	}
	if err := rlp.DecodeBytes(data, &payload); err != nil {
		return errInvalid
	}
	raw, err := snappy.Decode(nil, payload.Compressed)
	if err != nil {
		return errInvalid
	}
	if err := cs.restoration.FeedChunk(payload.Hash, raw); err != nil {
		return errInvalid
	}

	if cs.restoration.Progress().Complete {
		cs.setState(StateSnapshotWaiting)
	}
	return nil
}

// compressChunk snappy-compresses a chunk's bytes and RLP-encodes them
// together with the chunk hash. Nothing in the package calls it: the
// Supplier does not answer GetSnapshotData.
func compressChunk(hash common.Hash, raw []byte) ([]byte, error) {
	compressed := snappy.Encode(nil, raw)
	payload, err := rlp.EncodeToBytes(struct {
		Hash       common.Hash
		Compressed []byte
	}{hash, compressed})
	if err != nil {
		return nil, fmt.Errorf("sync: encode snapshot chunk: %w", err)
	}
	return payload, nil
}
