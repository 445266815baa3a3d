package miner

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/openethereum-go/corechain/core/types"
)

// ErrPowHashInvalid is returned by SubmitSeal when no staged work matches
// the given bare hash.
var ErrPowHashInvalid = fmt.Errorf("miner: unknown or stale pow hash")

// ErrPowInvalid is returned by SubmitSeal when the supplied seal fails the
// engine's verification.
var ErrPowInvalid = fmt.Errorf("miner: submitted seal rejected by engine")

// NotifyWork is implemented by listeners interested in newly staged
// external work packages (e.g. a stratum server pushing jobs to miners).
type NotifyWork interface {
	NotifyWork(powHash common.Hash, number uint64, timestamp uint64, difficulty *big.Int)
}

// requiresReseal implements update_sealing's "requires_reseal" predicate:
// sealing must be enabled, the minimum reseal period must have elapsed, and
// at least one of force-sealing / pending local txs / a work request within
// sealingTimeoutBlocks of bestNumber must hold. The engine's sealing state
// is not consulted here.
func (m *Miner) requiresReseal(bestNumber uint64) bool {
	m.sealingMu.Lock()
	defer m.sealingMu.Unlock()

	if !m.sealing.enabled {
		return false
	}
	if time.Now().Before(m.sealing.nextAllowedReseal) {
		return false
	}
	if m.config.ForceSealing {
		return true
	}
	if len(m.pool.Locals()) > 0 {
		return true
	}
	if m.sealing.lastRequest != 0 && (bestNumber <= m.sealing.lastRequest || bestNumber-m.sealing.lastRequest <= sealingTimeoutBlocks) {
		return true
	}
	return false
}

// UpdateSealing is update_sealing(chain, force): it performs work when
// force is true or requires_reseal holds, preparing a block and branching
// on the engine's sealing state.
func (m *Miner) UpdateSealing(force bool) error {
	best := m.chain.CurrentBlock()
	if best == nil {
		return errMissingParent
	}
	if !force && !m.requiresReseal(best.Number.Uint64()) {
		return nil
	}

	sealed, err := m.PrepareBlock()
	if err != nil {
		return err
	}

	switch state := m.engine.SealingState(sealed.Header); state {
	case SealingReady:
		seal, err := m.engine.GenerateSeal(sealed.Header)
		if err != nil {
			return err
		}
		sealed.Header.SetSeal(seal)
		if err := m.chain.Import(sealed, seal); err != nil {
			return err
		}
		m.sealingMu.Lock()
		m.sealing.nextMandatoryReseal = time.Now().Add(m.config.ResealMaxPeriod)
		m.sealingMu.Unlock()

	case SealingExternal:
		m.stageWork(sealed)

	default:
		log.Trace("update_sealing: engine not ready, dropping attempt")
	}
	return nil
}

// stageWork appends sealed to the bounded work queue, evicting the oldest
// entry once Config.WorkQueueSize is exceeded, then notifies any
// registered NotifyWork listeners of the newly staged package.
func (m *Miner) stageWork(sealed *SealedBlock) {
	m.sealingMu.Lock()
	limit := m.config.WorkQueueSize
	if limit <= 0 {
		limit = 20
	}
	m.sealing.queue = append(m.sealing.queue, sealed)
	if len(m.sealing.queue) > limit {
		m.sealing.queue = m.sealing.queue[len(m.sealing.queue)-limit:]
	}
	m.sealingMu.Unlock()

	m.notifyMu.RLock()
	listeners := append([]NotifyWork(nil), m.notifiers...)
	m.notifyMu.RUnlock()

	for _, listener := range listeners {
		listener.NotifyWork(sealed.Header.BareHash(), sealed.Header.Number.Uint64(), sealed.Header.Time, sealed.Header.Difficulty)
	}
}

// RegisterNotifyWork adds a listener notified whenever a new external work
// package is staged.
func (m *Miner) RegisterNotifyWork(listener NotifyWork) {
	m.notifyMu.Lock()
	m.notifiers = append(m.notifiers, listener)
	m.notifyMu.Unlock()
}

// WorkPackage returns the bare-hash work descriptor for the most recently
// staged block, marking the request so requires_reseal treats it as
// recent. Returns false if no external work is currently staged.
func (m *Miner) WorkPackage() (powHash common.Hash, number uint64, timestamp uint64, difficulty *big.Int, ok bool) {
	m.sealingMu.Lock()
	defer m.sealingMu.Unlock()

	if len(m.sealing.queue) == 0 {
		return common.Hash{}, 0, 0, nil, false
	}
	head := m.sealing.queue[len(m.sealing.queue)-1]
	m.sealing.lastRequest = head.Header.Number.Uint64()
	return head.Header.BareHash(), head.Header.Number.Uint64(), head.Header.Time, head.Header.Difficulty, true
}

// SubmitSeal is submit_seal(block_hash, seal): it looks up the staged work
// matching blockHash, verifies seal against the engine, and on success
// imports the fully sealed block. If Config.EnableResubmission is false the
// matched entry (and everything staged before it) is consumed; otherwise it
// stays available for a second submitter.
func (m *Miner) SubmitSeal(blockHash common.Hash, seal types.Seal) error {
	m.sealingMu.Lock()
	var (
		match *SealedBlock
		idx   int
	)
	for i, staged := range m.sealing.queue {
		if staged.Header.BareHash() == blockHash {
			match, idx = staged, i
			break
		}
	}
	if match == nil {
		m.sealingMu.Unlock()
		return ErrPowHashInvalid
	}
	if !m.config.EnableResubmission {
		m.sealing.queue = m.sealing.queue[idx+1:]
	}
	m.sealingMu.Unlock()

	header := types.CopyHeader(match.Header)
	header.SetSeal(seal)
	if err := m.engine.VerifySeal(header, seal); err != nil {
		return ErrPowInvalid
	}
	return m.chain.Import(&SealedBlock{Header: header, Txs: match.Txs}, seal)
}

// OnNewChainHead is the chain_new_blocks callback: called after block
// import to recompute reseal eligibility and re-run update_sealing unless
// the import itself was internal (newBest came from this miner's own
// sealing, so resealing immediately would be redundant).
func (m *Miner) OnNewChainHead(newBest *types.Header, retracted []*types.Transaction, internal bool) {
	m.sealingMu.Lock()
	m.sealing.nextAllowedReseal = time.Now()
	if m.config.ResealMinPeriod > 0 {
		m.sealing.nextAllowedReseal = time.Now().Add(m.config.ResealMinPeriod)
	}
	m.sealingMu.Unlock()

	if len(retracted) > 0 {
		log.Debug("chain_new_blocks: retracted transactions available for re-import", "count", len(retracted))
	}

	if internal {
		return
	}
	if err := m.UpdateSealing(false); err != nil {
		log.Debug("chain_new_blocks: update_sealing failed", "err", err)
	}
}
