package txpool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openethereum-go/corechain/core/types"
)

// priorityClass ranks the circumstances under which a transaction entered
// the pool, independent of its gas price. Higher values are preferred ahead
// of lower ones during eviction scoring; same-nonce replacement compares
// effective price only (see replaces).
type priorityClass uint8

const (
	priorityRegular priorityClass = iota
	priorityRetracted
	priorityLocal
	priorityService
)

// pooledTx is the bookkeeping record the priority pool keeps for every
// transaction it admits, layering the scoring inputs spec.md's ordering rule
// needs (priority class, effective price, arrival order) on top of the raw
// transaction.
type pooledTx struct {
	tx   *types.Transaction
	from common.Address

	priority    priorityClass
	insertionID uint64

	// penalty demotes the transaction in betterThan's ordering, after
	// priority class and effective price. Nothing in the pool increments
	// it, so it is zero for every resident and no sender is penalized.
	penalty uint32

	heapIndex int // position in the eviction heap, maintained by container/heap
}

// effectiveGasPrice computes the EIP-1559 effective price of tx against
// baseFee: min(feeCap, baseFee+tipCap). With a nil baseFee (pre-London
// chains, or callers that don't track one) the transaction's own gas price
// is used verbatim.
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tx.GasPrice())
	}
	sum := new(big.Int).Add(baseFee, tx.GasTipCap())
	if cap := tx.GasFeeCap(); sum.Cmp(cap) > 0 {
		return new(big.Int).Set(cap)
	}
	return sum
}

// betterThan reports whether a ranks ahead of b under the pool's ordering
// rule: priority class first, then effective price at the given base fee,
// then arrival order (older wins ties), with accumulated penalties acting
// as a late tie-breaker demotion.
func betterThan(a, b *pooledTx, baseFee *big.Int) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	pa, pb := effectiveGasPrice(a.tx, baseFee), effectiveGasPrice(b.tx, baseFee)
	if cmp := pa.Cmp(pb); cmp != 0 {
		return cmp > 0
	}
	if a.penalty != b.penalty {
		return a.penalty < b.penalty
	}
	return a.insertionID < b.insertionID
}

// replaces reports whether candidate is a valid replacement for incumbent
// under the pool's minimum price-bump rule: the new effective price must
// exceed the old one by at least bumpPercent percent.
func replaces(candidate, incumbent *types.Transaction, baseFee *big.Int, bumpPercent uint64) bool {
	oldPrice := effectiveGasPrice(incumbent, baseFee)
	newPrice := effectiveGasPrice(candidate, baseFee)

	threshold := new(big.Int).Mul(oldPrice, big.NewInt(int64(100+bumpPercent)))
	threshold.Div(threshold, big.NewInt(100))
	return newPrice.Cmp(threshold) >= 0
}

// evictionHeap is a container/heap over pooledTx pointers ordered so that
// Pop always returns the worst-ranked resident transaction — the one the
// pool should discard first to make room under a capacity limit.
type evictionHeap struct {
	items   []*pooledTx
	baseFee *big.Int
}

func (h *evictionHeap) Len() int { return len(h.items) }

// Less reports i before j when i is WORSE than j, so the classic min-heap
// semantics of container/heap surface the worst transaction at the root.
func (h *evictionHeap) Less(i, j int) bool {
	return !betterThan(h.items[i], h.items[j], h.baseFee)
}

func (h *evictionHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].heapIndex = i
	h.items[j].heapIndex = j
}

func (h *evictionHeap) Push(x any) {
	pt := x.(*pooledTx)
	pt.heapIndex = len(h.items)
	h.items = append(h.items, pt)
}

func (h *evictionHeap) Pop() any {
	old := h.items
	n := len(old)
	pt := old[n-1]
	old[n-1] = nil
	pt.heapIndex = -1
	h.items = old[:n-1]
	return pt
}
