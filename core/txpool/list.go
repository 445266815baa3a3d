package txpool

import (
	"math/big"
	"sort"

	"github.com/openethereum-go/corechain/core/types"
)

// accountTxs holds every pooled transaction for a single sender, keyed by
// nonce, plus a nonce-ascending cache rebuilt lazily after mutation. Nonce
// gaps are permitted here (the queued side of the classic pending/queued
// split); readiness against the account's chain nonce is resolved by the
// caller via Ready.
type accountTxs struct {
	txs   map[uint64]*types.Transaction
	cache []*types.Transaction // nonce-ascending; nil when stale
}

func newAccountTxs() *accountTxs {
	return &accountTxs{txs: make(map[uint64]*types.Transaction)}
}

// Get returns the transaction at nonce, or nil.
func (a *accountTxs) Get(nonce uint64) *types.Transaction {
	return a.txs[nonce]
}

// Put inserts or replaces the transaction at its nonce, returning the
// transaction it displaced (nil if this was a fresh nonce).
func (a *accountTxs) Put(tx *types.Transaction) *types.Transaction {
	old := a.txs[tx.Nonce()]
	a.txs[tx.Nonce()] = tx
	a.cache = nil
	return old
}

// Remove drops the transaction at nonce, reporting whether one was present.
func (a *accountTxs) Remove(nonce uint64) bool {
	if _, ok := a.txs[nonce]; !ok {
		return false
	}
	delete(a.txs, nonce)
	a.cache = nil
	return true
}

// Len reports how many transactions this account has pooled.
func (a *accountTxs) Len() int { return len(a.txs) }

// Empty reports whether the account has no pooled transactions left.
func (a *accountTxs) Empty() bool { return len(a.txs) == 0 }

// sorted rebuilds (if needed) and returns the nonce-ascending cache.
func (a *accountTxs) sorted() []*types.Transaction {
	if a.cache != nil {
		return a.cache
	}
	out := make([]*types.Transaction, 0, len(a.txs))
	for _, tx := range a.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce() < out[j].Nonce() })
	a.cache = out
	return out
}

// FirstNonceGap returns the lowest nonce at which the account's pooled
// sequence first has a gap, given its next executable nonce (from chain
// state). If there is no gap up to the highest pooled nonce, it returns one
// past the highest nonce (i.e. "no gap yet").
func (a *accountTxs) FirstNonceGap(fromState uint64) uint64 {
	sorted := a.sorted()
	next := fromState
	for _, tx := range sorted {
		if tx.Nonce() < next {
			continue
		}
		if tx.Nonce() != next {
			return next
		}
		next++
	}
	return next
}

// Ready returns every contiguous transaction starting at fromState, i.e. the
// executable prefix of this account's pooled transactions, capped to
// nonce <= nonceCap when nonceCap is non-nil.
func (a *accountTxs) Ready(fromState uint64, nonceCap *uint64) []*types.Transaction {
	sorted := a.sorted()
	next := fromState
	var out []*types.Transaction
	for _, tx := range sorted {
		if tx.Nonce() != next {
			break
		}
		if nonceCap != nil && tx.Nonce() > *nonceCap {
			break
		}
		out = append(out, tx)
		next++
	}
	return out
}

// ExistingCost returns the cost of the transaction pooled at nonce, or nil.
func (a *accountTxs) ExistingCost(nonce uint64) *big.Int {
	tx := a.txs[nonce]
	if tx == nil {
		return nil
	}
	return tx.Cost()
}

// ExistingExpenditure sums the cost of every transaction currently pooled
// for this account, including the slot a caller may be about to replace —
// ValidateTransactionWithState derives the net balance delta of a
// replacement from ExistingCost, not from this total.
func (a *accountTxs) ExistingExpenditure() *big.Int {
	sum := new(big.Int)
	for _, tx := range a.txs {
		sum.Add(sum, tx.Cost())
	}
	return sum
}

// Forward removes and returns every transaction whose nonce is strictly
// below threshold — used by cull to drop transactions the chain has already
// included.
func (a *accountTxs) Forward(threshold uint64) []*types.Transaction {
	var removed []*types.Transaction
	for nonce, tx := range a.txs {
		if nonce < threshold {
			removed = append(removed, tx)
			delete(a.txs, nonce)
		}
	}
	if len(removed) > 0 {
		a.cache = nil
	}
	return removed
}

// All returns every pooled transaction for this account in no particular
// order; callers that need ordering use sorted/Ready.
func (a *accountTxs) All() []*types.Transaction {
	out := make([]*types.Transaction, 0, len(a.txs))
	for _, tx := range a.txs {
		out = append(out, tx)
	}
	return out
}
