package sync

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// PeerAsking records what, if anything, is currently outstanding for a peer.
// A peer can have at most one request in flight at a time.
type PeerAsking int

const (
	AskingNothing PeerAsking = iota
	AskingForkHeader
	AskingBlockHeaders
	AskingBlockBodies
	AskingBlockReceipts
	AskingPooledTransactions
	AskingSnapshotManifest
	AskingSnapshotData
)

func (a PeerAsking) timeout() time.Duration {
	switch a {
	case AskingForkHeader:
		return forkHeaderTimeout
	case AskingBlockHeaders:
		return headersTimeout
	case AskingBlockBodies:
		return bodiesTimeout
	case AskingBlockReceipts:
		return receiptsTimeout
	case AskingPooledTransactions:
		return pooledTransactionsTimeout
	case AskingSnapshotManifest:
		return snapshotManifestTimeout
	case AskingSnapshotData:
		return snapshotDataTimeout
	default:
		return statusTimeout
	}
}

// ForkConfirmation tracks whether a peer has proven it shares our
// hard-fork history, by the fork id it advertises in its Status packet.
type ForkConfirmation int

const (
	ForkUnconfirmed ForkConfirmation = iota
	ForkTooShort
	ForkConfirmed
)

// Peer holds everything ChainSync tracks about one connected peer. All
// mutation goes through ChainSync.peersMu; Peer itself has no internal lock.
type Peer struct {
	ID uuid.UUID

	ProtocolVersion uint
	Genesis         common.Hash
	NetworkID       uint64

	LatestHash      common.Hash
	Difficulty      *common.Hash // nil until a Status has reported one

	Asking          PeerAsking
	AskingBlocks    []common.Hash
	AskingHash      *common.Hash
	AskingBodiesFor *common.Hash // staged batch key this peer's GetBlockBodies answers
	AskTime         time.Time

	UnfetchedPooledTransactions mapset.Set[common.Hash]
	AskingPooledTransactions    []common.Hash
	LastSentTransactions        mapset.Set[common.Hash]

	AskingSnapshotData *common.Hash
	SnapshotHash       *common.Hash
	SnapshotNumber     uint64

	BlockSet *BlockSet

	Expired      bool
	Confirmation ForkConfirmation
}

// NewPeer returns a Peer ready to begin the Status handshake.
func NewPeer(id uuid.UUID) *Peer {
	return &Peer{
		ID:                          id,
		UnfetchedPooledTransactions: mapset.NewSet[common.Hash](),
		LastSentTransactions:        mapset.NewSet[common.Hash](),
	}
}

// CanSync reports whether the peer's fork is confirmed and its last request
// hasn't expired — the gate sync_peer applies before scheduling new work.
func (p *Peer) CanSync() bool {
	return p.Confirmation == ForkConfirmed && !p.Expired
}

// IsAllowed reports whether the peer may still be asked anything at all,
// including the fork-confirmation probe itself.
func (p *Peer) IsAllowed() bool {
	return p.Confirmation != ForkUnconfirmed && !p.Expired
}

// IsBusy reports whether a request is currently outstanding.
func (p *Peer) IsBusy() bool {
	return p.Asking != AskingNothing
}

// ResetAsking clears the in-flight request bookkeeping. If a request really
// was outstanding and the peer is otherwise allowed, it is marked expired so
// a late reply is recognized and dropped rather than double-processed.
func (p *Peer) ResetAsking() {
	p.AskingBlocks = nil
	p.AskingHash = nil
	p.AskingBodiesFor = nil
	if p.Asking != AskingNothing && p.IsAllowed() {
		p.Expired = true
	}
	p.Asking = AskingNothing
}

// HasTimedOut reports whether the outstanding request has exceeded its
// per-kind deadline as of now.
func (p *Peer) HasTimedOut(now time.Time) bool {
	if p.Asking == AskingNothing {
		return false
	}
	return now.Sub(p.AskTime) > p.Asking.timeout()
}
