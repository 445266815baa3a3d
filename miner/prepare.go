package miner

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/txpool"
	"github.com/openethereum-go/corechain/core/types"
)

// invalidRemover is an optional capability a pendingPool may implement to
// receive bulk removal of transactions prepare_block rejected as invalid
// or disallowed. A plain pendingPool without it just leaves the rejected
// transactions to be culled on their own schedule.
type invalidRemover interface {
	RemoveTransactions(txs []*types.Transaction)
}

// offendThreshold is the per-transaction execution duration above which,
// when penalization is enabled, the sender is flagged.
const offendThreshold = 100 * time.Millisecond

// PrepareBlock is prepare_block(chain): it opens a fresh block on the
// current best through ChainProducer.PrepareOpenBlock, asks the engine for
// any engine-originated transactions, then fills the remainder from the
// pool in priority order up to a gas-derived cap. It does not reopen a
// block already in the sealing queue; every call starts from an empty
// block.
func (m *Miner) PrepareBlock() (*SealedBlock, error) {
	params := m.AuthoringParams()
	best := m.chain.CurrentBlock()
	if best == nil {
		return nil, errMissingParent
	}

	open, err := m.chain.PrepareOpenBlock(best, params)
	if err != nil {
		return nil, err
	}

	if engineTxs, err := m.engine.GenerateEngineTransactions(open.Header()); err != nil {
		return nil, err
	} else {
		for _, tx := range engineTxs {
			if err := open.PushTransaction(tx); err != nil {
				return nil, err
			}
		}
	}

	header := open.Header()
	minTxGas := uint64(21000)
	maxTransactions := header.GasLimit/minTxGas + maxSkippedTransactions

	filter := txpool.PendingFilter{}
	if m.config.GasTip != nil {
		filter.MinTip = m.config.GasTip
	}
	if header.BaseFee != nil {
		bf, overflow := uint256.FromBig(header.BaseFee)
		if !overflow {
			filter.BaseFee = bf
		}
	}
	pending := m.pool.Pending(filter)
	queue := newTxsByPrice(m.config.TxQueueStrategy, pending, header.BaseFee)

	var (
		considered uint64
		skipped    int
		toRemove   []*types.Transaction
		notAllowed []*types.Transaction
		exhausted  bool
	)
	for !exhausted && !queue.Empty() && considered < maxTransactions {
		ltx := queue.Peek()
		tx := ltx.Resolve()
		if tx == nil {
			queue.Pop()
			continue
		}
		considered++

		start := time.Now()
		pushErr := open.PushTransaction(tx)
		elapsed := time.Since(start)

		if pushErr == nil {
			queue.Shift()
			skipped = 0
			if m.config.TxQueuePenalization != 0 && elapsed > offendThreshold {
				if from, ok := open.LastPushDuration(); ok {
					m.penalize(from)
				}
			}
			continue
		}

		pe, ok := pushErr.(*PushError)
		if !ok {
			// Unknown error shape: treat conservatively as invalid.
			toRemove = append(toRemove, tx)
			queue.Pop()
			continue
		}
		switch pe.Kind {
		case KindBlockGasLimitReached:
			if pe.Gas > pe.Limit {
				toRemove = append(toRemove, tx)
			}
			queue.Pop()
			skipped++
			if open.Header().GasLimit-open.Header().GasUsed < minTxGas || skipped > maxSkippedTransactions {
				exhausted = true
			}

		case KindInvalidNonce, KindAlreadyImported:
			queue.Pop()

		case KindNotAllowed:
			notAllowed = append(notAllowed, tx)
			queue.Pop()

		default:
			toRemove = append(toRemove, tx)
			queue.Pop()
		}
	}

	sealed, err := open.Close()
	if err != nil {
		return nil, err
	}

	if len(toRemove) > 0 || len(notAllowed) > 0 {
		log.Debug("prepare_block: dropping transactions", "invalid", len(toRemove), "notAllowed", len(notAllowed))
		if remover, ok := m.pool.(invalidRemover); ok {
			remover.RemoveTransactions(append(toRemove, notAllowed...))
		}
	}
	return sealed, nil
}
