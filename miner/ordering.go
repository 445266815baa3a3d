package miner

import (
	"container/heap"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openethereum-go/corechain/core/txpool"
)

// txsByPrice merges the per-account pending lists Pending() returns into a
// single best-first stream: whichever account's head transaction currently
// has the highest effective gas price goes next. Peek/Shift/Pop follow the
// same shape as the eviction heap in core/txpool/scoring.go — a
// container/heap min/max-heap keyed by a derived score, here maximized
// instead of minimized.
type txsByPrice struct {
	heads  []*accountHead
	byAddr map[common.Address]*accountHead
	strategy TxQueueStrategy
}

type accountHead struct {
	addr    common.Address
	txs     []*txpool.LazyTransaction
	baseFee *big.Int
	index   int
}

func (h *accountHead) price() *big.Int {
	if len(h.txs) == 0 {
		return nil
	}
	tip := h.txs[0].GasTipCap.ToBig()
	if h.baseFee == nil {
		return tip
	}
	if room := new(big.Int).Sub(h.txs[0].GasFeeCap.ToBig(), h.baseFee); room.Cmp(tip) < 0 {
		return room
	}
	return tip
}

// newTxsByPrice builds the merge structure from a pool's Pending() result.
func newTxsByPrice(strategy TxQueueStrategy, pending map[common.Address][]*txpool.LazyTransaction, baseFee *big.Int) *txsByPrice {
	t := &txsByPrice{byAddr: make(map[common.Address]*accountHead, len(pending)), strategy: strategy}
	for addr, txs := range pending {
		if len(txs) == 0 {
			continue
		}
		head := &accountHead{addr: addr, txs: txs, baseFee: baseFee}
		t.byAddr[addr] = head
		t.heads = append(t.heads, head)
	}
	heap.Init((*priceHeap)(t))
	return t
}

// Empty reports whether every account's list has been exhausted.
func (t *txsByPrice) Empty() bool { return len(t.heads) == 0 }

// Peek returns the next transaction to consider, without consuming it.
func (t *txsByPrice) Peek() *txpool.LazyTransaction {
	if len(t.heads) == 0 {
		return nil
	}
	return t.heads[0].txs[0]
}

// Shift consumes the head transaction of the best account and re-sorts it
// back into the heap by its new head price (StrategyGasAndNonce never lets
// a later transaction from the same account jump ahead of an earlier one,
// since each account only ever exposes its own current head).
func (t *txsByPrice) Shift() {
	if len(t.heads) == 0 {
		return
	}
	head := t.heads[0]
	head.txs = head.txs[1:]
	if len(head.txs) == 0 {
		heap.Remove((*priceHeap)(t), 0)
		delete(t.byAddr, head.addr)
		return
	}
	heap.Fix((*priceHeap)(t), 0)
}

// Pop drops the entire remaining list for the best account — used when its
// head transaction is disqualified (e.g. nonce-too-high), per spec.md's
// "drop all consecutive transactions from the same sender" rule.
func (t *txsByPrice) Pop() {
	if len(t.heads) == 0 {
		return
	}
	addr := t.heads[0].addr
	heap.Remove((*priceHeap)(t), 0)
	delete(t.byAddr, addr)
}

// priceHeap adapts txsByPrice to container/heap, keeping the
// highest-priced head at index 0.
type priceHeap txsByPrice

func (h *priceHeap) Len() int { return len(h.heads) }

func (h *priceHeap) Less(i, j int) bool {
	pi, pj := h.heads[i].price(), h.heads[j].price()
	if pi == nil {
		return false
	}
	if pj == nil {
		return true
	}
	return pi.Cmp(pj) > 0
}

func (h *priceHeap) Swap(i, j int) {
	h.heads[i], h.heads[j] = h.heads[j], h.heads[i]
	h.heads[i].index, h.heads[j].index = i, j
}

func (h *priceHeap) Push(x interface{}) {
	head := x.(*accountHead)
	head.index = len(h.heads)
	h.heads = append(h.heads, head)
}

func (h *priceHeap) Pop() interface{} {
	old := h.heads
	n := len(old)
	item := old[n-1]
	h.heads = old[:n-1]
	return item
}
