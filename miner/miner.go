package miner

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/txpool"
	"github.com/openethereum-go/corechain/core/types"
)

// sealingTimeoutBlocks is SEALING_TIMEOUT_IN_BLOCKS: a sealing request made
// within this many blocks of the current best still counts toward
// requires_reseal, so a slow consumer of work_package doesn't starve.
const sealingTimeoutBlocks = 5

// maxSkippedTransactions bounds how many consecutive gas-rejected
// transactions prepare_block tolerates before giving up on the block.
const maxSkippedTransactions = 128

// TxQueueStrategy selects how pending transactions are ordered for
// inclusion.
type TxQueueStrategy uint8

const (
	// StrategyGasPrice orders by effective gas price. The merge in
	// ordering.go does not read the strategy, so this behaves exactly like
	// StrategyGasAndNonce: a sender's transactions stay in nonce order.
	StrategyGasPrice TxQueueStrategy = iota
	// StrategyGasAndNonce orders by effective gas price, but never
	// reorders two transactions from the same sender.
	StrategyGasAndNonce
)

// PendingSet names which transactions a pending query reports. Config
// carries it, but no code in this module reads it.
type PendingSet uint8

const (
	// AlwaysQueue reports the pool's own pending view, ignoring any
	// in-progress sealing block.
	AlwaysQueue PendingSet = iota
	// AlwaysSealing reports the transactions already included in the
	// current sealing block, regardless of whether sealing is enabled.
	AlwaysSealing
	// SealingOrElseQueue reports the sealing block's transactions when
	// sealing is enabled, falling back to the pool otherwise.
	SealingOrElseQueue
)

// AuthoringParams bundles the parameters prepare_block uses to open a
// candidate block: who gets the reward, the gas-limit target
// range, and the 32-byte extra-data tag.
type AuthoringParams struct {
	Author   common.Address
	GasFloor uint64
	GasCeil  uint64
	Extra    []byte
}

// Config bundles every miner policy knob spec.md's configuration surface
// names for this component.
type Config struct {
	ForceSealing            bool
	ResealOnExternalTx      bool
	ResealOnOwnTx           bool
	ResealOnUncle           bool
	ResealMinPeriod         time.Duration
	ResealMaxPeriod         time.Duration
	WorkQueueSize           int
	EnableResubmission      bool
	InfinitePendingBlock    bool
	TxQueueStrategy         TxQueueStrategy
	TxQueuePenalization     time.Duration // 0 disables penalization
	TxQueueNoUnfamiliarLocals bool
	RefuseServiceTransactions bool
	PendingSet              PendingSet

	GasTip *uint256.Int // minimum tip requested from the pool when filling
}

// DefaultConfig mirrors spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		ResealMinPeriod: 2 * time.Second,
		ResealMaxPeriod: 120 * time.Second,
		WorkQueueSize:   20,
		PendingSet:      SealingOrElseQueue,
	}
}

// pendingPool is the slice of *txpool.TxPool the miner actually calls,
// kept as a narrow interface so tests can fake it without a real pool.
type pendingPool interface {
	Pending(filter txpool.PendingFilter) map[common.Address][]*txpool.LazyTransaction
	Locals() []common.Address
}

var _ pendingPool = (*txpool.TxPool)(nil)

// sealingWork tracks the bounded queue of closed-but-unsealed candidate
// blocks awaiting an external seal, plus the reseal scheduling state.
type sealingWork struct {
	queue []*SealedBlock // bounded to Config.WorkQueueSize, newest last

	enabled             bool
	nextAllowedReseal   time.Time
	nextMandatoryReseal time.Time
	lastRequest         uint64 // block number of the most recent work_package call
}

// Miner assembles candidate pending blocks, honors reseal policy, and
// mediates sealing. Lock acquisition order, when more than one is held, is
// fixed to sealingMu → paramsMu → pool's own locks, mirroring spec.md §5's
// documented order to avoid deadlock.
type Miner struct {
	config Config
	chain  ChainProducer
	engine Engine
	pool   pendingPool

	sealingMu sync.Mutex
	sealing   sealingWork

	paramsMu sync.RWMutex
	params   AuthoringParams

	penalizedMu sync.Mutex
	penalized   map[common.Address]time.Time

	notifyMu  sync.RWMutex
	notifiers []NotifyWork
}

// New constructs a Miner bound to chain, engine and pool. The miner does
// nothing until SetSealingEnabled(true) and a chain-head notification (via
// OnNewChainHead) arrive.
func New(config Config, chain ChainProducer, engine Engine, pool pendingPool, params AuthoringParams) *Miner {
	return &Miner{
		config:    config,
		chain:     chain,
		engine:    engine,
		pool:      pool,
		params:    params,
		penalized: make(map[common.Address]time.Time),
	}
}

// SetAuthor updates the address that receives block rewards for future
// sealing attempts.
func (m *Miner) SetAuthor(author common.Address) {
	m.paramsMu.Lock()
	m.params.Author = author
	m.paramsMu.Unlock()
}

// SetExtra updates the extra-data tag, rejecting anything over 32 bytes.
func (m *Miner) SetExtra(extra []byte) error {
	if len(extra) > 32 {
		return types.ErrExtraDataTooLong
	}
	m.paramsMu.Lock()
	m.params.Extra = append([]byte(nil), extra...)
	m.paramsMu.Unlock()
	return nil
}

// SetGasRange updates the gas-limit target range for future blocks.
func (m *Miner) SetGasRange(floor, ceil uint64) {
	m.paramsMu.Lock()
	m.params.GasFloor, m.params.GasCeil = floor, ceil
	m.paramsMu.Unlock()
}

// AuthoringParams returns a snapshot of the current authoring parameters.
func (m *Miner) AuthoringParams() AuthoringParams {
	m.paramsMu.RLock()
	defer m.paramsMu.RUnlock()
	return m.params
}

// SetSealingEnabled toggles whether update_sealing performs any work at
// all.
func (m *Miner) SetSealingEnabled(enabled bool) {
	m.sealingMu.Lock()
	m.sealing.enabled = enabled
	m.sealingMu.Unlock()
}

// IsSealingEnabled reports the current enabled flag.
func (m *Miner) IsSealingEnabled() bool {
	m.sealingMu.Lock()
	defer m.sealingMu.Unlock()
	return m.sealing.enabled
}

// isPenalized reports whether addr is still serving a penalization window.
func (m *Miner) isPenalized(addr common.Address) bool {
	if m.config.TxQueuePenalization == 0 {
		return false
	}
	m.penalizedMu.Lock()
	defer m.penalizedMu.Unlock()
	until, ok := m.penalized[addr]
	return ok && time.Now().Before(until)
}

// penalize marks addr as penalized for the configured duration.
func (m *Miner) penalize(addr common.Address) {
	if m.config.TxQueuePenalization == 0 {
		return
	}
	m.penalizedMu.Lock()
	m.penalized[addr] = time.Now().Add(m.config.TxQueuePenalization)
	m.penalizedMu.Unlock()
}
