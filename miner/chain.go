// Package miner assembles candidate pending blocks from the transaction
// pool, honors reseal policy, and mediates sealing — either by driving a
// PoW external work-package protocol or by asking the consensus engine to
// seal internally.
package miner

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openethereum-go/corechain/core/types"
)

// SealingState reports whether a consensus engine seals blocks itself or
// expects an external worker to supply a proof of work.
type SealingState uint8

const (
	// SealingNotReady means the engine cannot currently produce a seal
	// (e.g. not synced, or not its turn); the attempt is dropped.
	SealingNotReady SealingState = iota
	// SealingReady means the engine seals internally; prepare_block's
	// output is sealed and imported (or broadcast) without external help.
	SealingReady
	// SealingExternal means the engine expects a proof of work supplied
	// out of band via the work-package protocol.
	SealingExternal
)

func (s SealingState) String() string {
	switch s {
	case SealingReady:
		return "ready"
	case SealingExternal:
		return "external"
	default:
		return "not-ready"
	}
}

// Engine is the minimal consensus-facing surface the miner needs: sealing
// readiness, engine-originated transactions (e.g. AuRa randomness reveals),
// and seal generation/verification. It deliberately excludes block
// validation and state-root computation, which belong to the opaque chain
// producer collaborator below.
type Engine interface {
	// SealingState reports how this engine expects to be driven for the
	// given pending header.
	SealingState(header *types.Header) SealingState

	// GenerateEngineTransactions returns any transactions the engine
	// itself wants included before pool transactions are considered (may
	// return nil).
	GenerateEngineTransactions(header *types.Header) ([]*types.Transaction, error)

	// GenerateSeal produces a seal for header, to be used when
	// SealingState reports SealingReady. It must not be called when the
	// engine reports SealingExternal.
	GenerateSeal(header *types.Header) (types.Seal, error)

	// VerifySeal validates a seal supplied by an external worker against
	// header's bare hash. Used by the work-package protocol.
	VerifySeal(header *types.Header, seal types.Seal) error
}

// PushError is returned by OpenBlock.PushTransaction to classify why a
// candidate transaction could not be included, driving prepare_block's
// per-outcome branching.
type PushError struct {
	Kind  PushErrorKind
	Gas   uint64 // populated for KindBlockGasLimitReached
	Limit uint64 // populated for KindBlockGasLimitReached
	Used  uint64 // populated for KindBlockGasLimitReached
	Err   error  // wrapped cause, for KindOther
}

// PushErrorKind enumerates the outcomes prepare_block must distinguish.
type PushErrorKind uint8

const (
	// KindBlockGasLimitReached means the transaction's gas requirement
	// doesn't fit in the block's remaining gas.
	KindBlockGasLimitReached PushErrorKind = iota
	// KindInvalidNonce means the transaction's nonce no longer matches
	// the block's view of the sender's account (usually because an
	// earlier transaction from the same sender was skipped for gas).
	KindInvalidNonce
	// KindAlreadyImported means an identical transaction is already
	// included in the block being built.
	KindAlreadyImported
	// KindNotAllowed means policy (not validity) excludes the
	// transaction — e.g. a disallowed sender or unfamiliar local.
	KindNotAllowed
	// KindOther is any other execution error; the transaction is marked
	// invalid for pool removal.
	KindOther
)

func (e *PushError) Error() string {
	switch e.Kind {
	case KindBlockGasLimitReached:
		return fmt.Sprintf("block gas limit reached: gas=%d limit=%d used=%d", e.Gas, e.Limit, e.Used)
	case KindInvalidNonce:
		return "invalid nonce"
	case KindAlreadyImported:
		return "already imported"
	case KindNotAllowed:
		return "not allowed"
	default:
		return fmt.Sprintf("transaction rejected: %v", e.Err)
	}
}

func (e *PushError) Unwrap() error { return e.Err }

var errMissingParent = errors.New("miner: missing parent block for sealing")

// OpenBlock is a candidate block still accepting transactions. It is the
// opaque collaborator that actually executes transactions against chain
// state — the miner package never touches a state trie or EVM directly,
// matching spec.md's treatment of persisted state as an external concern.
type OpenBlock interface {
	// Header returns the in-progress header. Its GasUsed reflects every
	// transaction pushed so far.
	Header() *types.Header

	// PushTransaction attempts to execute and include tx. On success the
	// transaction is appended to the block. On failure a *PushError
	// reports why, driving prepare_block's skip/remove/exit branching.
	PushTransaction(tx *types.Transaction) error

	// Transactions returns every transaction included so far, in order.
	Transactions() []*types.Transaction

	// LastPushDuration reports the sender of the most recent
	// PushTransaction call and whether one is known. PrepareBlock times
	// that call itself and penalizes this sender when it took longer than
	// the offend threshold.
	LastPushDuration() (common.Address, bool)

	// Close finalizes the block (state root, receipts root, bloom) and
	// returns the immutable result. The OpenBlock must not be used after
	// Close.
	Close() (*SealedBlock, error)
}

// SealedBlock is a fully assembled, unsealed candidate: every field except
// the seal is final.
type SealedBlock struct {
	Header *types.Header
	Txs    []*types.Transaction
}

// ChainProducer is the opaque collaborator that knows how to open, and the
// miner's caller how to import, candidate blocks. Mirrors the BlockChain-
// shaped local interfaces already used by core/txpool for the same reason:
// keep the miner testable without a full state/consensus stack.
type ChainProducer interface {
	// CurrentBlock returns the chain's current best header.
	CurrentBlock() *types.Header

	// PrepareOpenBlock opens a fresh candidate block extending parent
	// (the chain's current best if parent is nil), configured with the
	// given authoring parameters.
	PrepareOpenBlock(parent *types.Header, params AuthoringParams) (OpenBlock, error)

	// Import finalizes import of a sealed block into the chain. Returns
	// an error if the block was rejected.
	Import(block *SealedBlock, seal types.Seal) error

	// Broadcast announces a sealed proposal block without importing it
	// locally (used by proposal-and-reseal engines like AuRa).
	Broadcast(block *SealedBlock, seal types.Seal) error
}
