// Package sync implements the chain synchronization state machine: a single
// peer-scheduling loop that drives a set of connected peers through header
// and body downloads, snapshot (warp) restoration, and block/transaction
// propagation, speaking the ETH/63-66 packet set. Block receipts are not
// requested.
//
// The package owns no transport of its own. Callers hand it peer events and
// packet bytes through the PacketIO it is constructed with, and it answers
// with requests to dispatch and decisions (Invalid/Useless/Ok) about how a
// misbehaving peer should be treated — the same three-way discipline a
// verification queue applies to malformed input.
package sync

import (
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/openethereum-go/corechain/core/queue"
)

// State is the top-level sync state. See spec.md §4.E.
type State int

const (
	StateWaitingPeers State = iota
	StateSnapshotManifest
	StateSnapshotData
	StateSnapshotWaiting
	StateBlocks
	StateIdle
	StateWaiting
	StateNewBlocks
)

func (s State) String() string {
	switch s {
	case StateWaitingPeers:
		return "WaitingPeers"
	case StateSnapshotManifest:
		return "SnapshotManifest"
	case StateSnapshotData:
		return "SnapshotData"
	case StateSnapshotWaiting:
		return "SnapshotWaiting"
	case StateBlocks:
		return "Blocks"
	case StateIdle:
		return "Idle"
	case StateWaiting:
		return "Waiting"
	case StateNewBlocks:
		return "NewBlocks"
	default:
		return "Unknown"
	}
}

// IsSnapshotSyncing reports whether s is one of the three warp-sync phases.
func (s State) IsSnapshotSyncing() bool {
	return s == StateSnapshotManifest || s == StateSnapshotData || s == StateSnapshotWaiting
}

// BlockSet distinguishes the forward (new blocks, better than our best) and
// backward (ancient block backfill) download channels; each is served by its
// own BlockDownloader.
type BlockSet int

const (
	NewBlocks BlockSet = iota
	OldBlocks
)

func (s BlockSet) String() string {
	if s == OldBlocks {
		return "old_blocks"
	}
	return "new_blocks"
}

// Per-request-type timeouts, spec.md §4.E.
const (
	waitPeersTimeout          = 5 * time.Second
	statusTimeout             = 5 * time.Second
	forkHeaderTimeout         = 3 * time.Second
	headersTimeout            = 15 * time.Second
	bodiesTimeout             = 20 * time.Second
	receiptsTimeout           = 10 * time.Second
	pooledTransactionsTimeout = 10 * time.Second
	snapshotManifestTimeout   = 5 * time.Second
	snapshotDataTimeout       = 120 * time.Second
)

// Propagation and snapshot constants, spec.md §4.E.
const (
	minPeersPropagation          = 4
	maxPeersPropagation          = 128
	maxNewHashes                 = 64
	maxTransactionPacketSize     = 5 * 1024 * 1024
	maxTransactionsPerTick       = 100
	priorityTaskDeadline         = 100 * time.Millisecond
	defaultPropagationDeadline   = 500 * time.Millisecond
	snapshotMinPeers             = 3
	maxSnapshotChunksAhead       = 3
	snapshotBehindThresholdBlock = 30000
	sealingReannounceBlocks      = 5
)

// Dispatch outcome for a fully-processed packet: governs what happens to the
// peer that sent it. Mirrors the queue package's good/bad-hash split, applied
// to peers instead of blocks.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeUseless
	outcomeInvalid
)

// PacketIO is the transport seam: everything ChainSync needs to talk back to
// the network, supplied by whatever p2p layer the embedding node uses. No
// type in this package depends on a concrete transport.
type PacketIO interface {
	// SendPacket writes a packet to a specific peer. Errors are logged and
	// otherwise ignored — a failed send is indistinguishable from a slow
	// or disconnecting peer, which the timeout/expiry machinery already
	// handles.
	SendPacket(peer uuid.UUID, packetID PacketID, data []byte) error
	// DisablePeer marks a peer as actively malicious; the transport layer
	// is expected to disconnect and not reconnect for some backoff period.
	DisablePeer(peer uuid.UUID)
	// DropPeer disconnects a peer without the "disable" stigma — used for
	// peers whose outstanding request timed out.
	DropPeer(peer uuid.UUID)
}

// ChainClient is the opaque collaborator ChainSync imports blocks, headers
// and transactions through. A concrete node wires this to its queue/pool/
// blockchain; ChainSync itself never inspects state.
type ChainClient interface {
	// BestBlockNumber and BestBlockTotalDifficulty describe our own chain
	// head, used to decide which peers are worth syncing from.
	BestBlockNumber() uint64
	BestBlockTotalDifficulty() *common.Hash // opaque 256-bit value, compared via TotalDifficultyLess
	// ImportBlock hands a raw RLP-encoded block (header+body) to the
	// verification queue.
	ImportBlock(raw []byte) (common.Hash, error)
	// QueueInfo reports the verification queue's current occupancy.
	QueueInfo() queue.Info
	// ImportTransactions hands raw pooled transactions to the pool.
	ImportTransactions(txs [][]byte)
}

// TotalDifficultyLess is a helper the fork-choice logic in sync_peer.go uses
// in place of a hard *big.Int dependency on ChainClient; ChainClient reports
// difficulty as an opaque hash-shaped blob only so this package never needs
// to import math/big for it. Concrete wiring compares the real *big.Int
// values and produces the 32-byte big-endian encoding ChainSync compares
// byte-for-byte.
func TotalDifficultyLess(a, b *common.Hash) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ChainSync is the synchronization state machine for one chain connection.
// Lock ordering, where more than one mutex must be held: peers, then state.
type ChainSync struct {
	io    PacketIO
	chain ChainClient

	mu    sync.RWMutex
	state State

	peersMu sync.RWMutex
	peers   map[uuid.UUID]*Peer

	newBlocks *BlockDownloader
	oldBlocks *BlockDownloader // nil unless ancient-block backfill is configured

	forkFilter *ForkFilter

	supplier *Supplier

	warpEnabled    bool
	warpBarrier    uint64
	snapshotTarget *SnapshotManifest
	restoration    RestorationService // nil if warp sync is disabled

	highestBlockSeen uint64

	rnd *mathRand
}

// Config configures a new ChainSync.
type Config struct {
	WarpEnabled  bool
	WarpBarrier  uint64
	NetworkID    uint64
	Genesis      common.Hash
	ForkFilter   *ForkFilter
	OldBlocks    bool
	SupplierData SupplierData
	Restoration  RestorationService
}

// New constructs a ChainSync in its initial state: WaitingPeers if warp sync
// is enabled and the barrier hasn't been reached, else Idle.
func New(cfg Config, io PacketIO, chain ChainClient) *ChainSync {
	initial := StateIdle
	if cfg.WarpEnabled && chain.BestBlockNumber() < cfg.WarpBarrier {
		initial = StateWaitingPeers
	}

	cs := &ChainSync{
		io:          io,
		chain:       chain,
		state:       initial,
		peers:       make(map[uuid.UUID]*Peer),
		newBlocks:   NewBlockDownloader(NewBlocks),
		forkFilter:  cfg.ForkFilter,
		supplier:    NewSupplier(cfg.SupplierData),
		warpEnabled: cfg.WarpEnabled,
		warpBarrier: cfg.WarpBarrier,
		restoration: cfg.Restoration,
		rnd:         newMathRand(),
	}
	if cfg.OldBlocks {
		cs.oldBlocks = NewBlockDownloader(OldBlocks)
	}
	return cs
}

// State reports the current top-level state.
func (cs *ChainSync) State() State {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.state
}

func (cs *ChainSync) setState(s State) {
	cs.mu.Lock()
	if cs.state != s {
		log.Debug("sync: state transition", "from", cs.state, "to", s)
	}
	cs.state = s
	cs.mu.Unlock()
}

// NumPeers/NumActivePeers support status reporting.
func (cs *ChainSync) NumPeers() int {
	cs.peersMu.RLock()
	defer cs.peersMu.RUnlock()
	return len(cs.peers)
}

func (cs *ChainSync) NumActivePeers() int {
	cs.peersMu.RLock()
	defer cs.peersMu.RUnlock()
	n := 0
	for _, p := range cs.peers {
		if p.CanSync() {
			n++
		}
	}
	return n
}

// sqrtFanout returns the √N peer fan-out used by block propagation, clamped
// to [minPeersPropagation, maxPeersPropagation].
func sqrtFanout(n int) int {
	f := int(math.Sqrt(float64(n)))
	if f < minPeersPropagation {
		f = minPeersPropagation
	}
	if f > maxPeersPropagation {
		f = maxPeersPropagation
	}
	return f
}
