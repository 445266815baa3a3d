// NOTE: this is a minimal vector-fee subpool; it intentionally skips the
// replacement/eviction machinery PriorityPool has, since vector-fee
// transactions are not yet subject to capacity pressure in this node.

package txpool

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/types"
)

// VectorFeePoolDummy is a lightweight SubPool for VectorFeeTxType
// transactions. It performs no price-bump replacement and no capacity
// eviction: every distinct hash is accepted and only dropped once Reset
// finds it in the new head's block.
type VectorFeePoolDummy struct {
	lock sync.RWMutex

	reserve AddressReserver

	txs          map[common.Hash]*types.Transaction
	txsByAddress map[common.Address]types.Transactions

	chain  BlockChain
	signer types.Signer

	head  *types.Header
	state StateReader

	discoverFeed event.Feed
	insertFeed   event.Feed
}

// NewVectorFeePoolDummy constructs a vector-fee subpool bound to chain.
func NewVectorFeePoolDummy(chain BlockChain) *VectorFeePoolDummy {
	return &VectorFeePoolDummy{
		chain:        chain,
		signer:       types.LatestSigner(chain.Config().ChainID),
		txs:          make(map[common.Hash]*types.Transaction),
		txsByAddress: make(map[common.Address]types.Transactions),
	}
}

// Filter reports whether tx belongs in this pool: only vector-fee
// transactions do.
func (pool *VectorFeePoolDummy) Filter(tx *types.Transaction) bool {
	return tx.Type() == types.VectorFeeTxType
}

// Init wires the pool to the chain's current head and state.
func (pool *VectorFeePoolDummy) Init(gasTip uint64, head *types.Header, reserve AddressReserver) error {
	state, err := pool.chain.StateAt(head.Root)
	if err != nil {
		return err
	}
	pool.reserve = reserve
	pool.head, pool.state = head, state
	return nil
}

// Close terminates any background processing; this pool has none.
func (pool *VectorFeePoolDummy) Close() error {
	return nil
}

// Reset drops every transaction included in the new head's block from the
// pool. It does not attempt to detect nonce-stale transactions beyond that,
// nor does it re-inject transactions retracted by a reorg.
func (pool *VectorFeePoolDummy) Reset(oldHead, newHead *types.Header) {
	state, err := pool.chain.StateAt(newHead.Root)
	if err != nil {
		log.Error("txpool: failed to reset vector-fee pool state", "err", err)
		return
	}

	pool.lock.Lock()
	defer pool.lock.Unlock()

	pool.head, pool.state = newHead, state

	block := pool.chain.GetBlock(newHead.Hash(), newHead.Number.Uint64())
	if block == nil {
		return
	}
	for _, tx := range block.Transactions() {
		from, err := types.Sender(pool.signer, tx)
		if err != nil {
			continue
		}
		if _, ok := pool.txs[tx.Hash()]; !ok {
			continue
		}
		delete(pool.txs, tx.Hash())

		list := pool.txsByAddress[from]
		for i, candidate := range list {
			if candidate.Hash() == tx.Hash() {
				list[i] = list[len(list)-1]
				pool.txsByAddress[from] = list[:len(list)-1]
				break
			}
		}
		if len(pool.txsByAddress[from]) == 0 {
			delete(pool.txsByAddress, from)
			if pool.reserve != nil {
				pool.reserve(from, false)
			}
		}
	}
}

// SetGasTip is a no-op for this pool: it has no minimum-tip gate.
func (pool *VectorFeePoolDummy) SetGasTip(tip *uint256.Int) {}

// Has reports whether hash is known to this pool.
func (pool *VectorFeePoolDummy) Has(hash common.Hash) bool {
	pool.lock.RLock()
	defer pool.lock.RUnlock()

	_, ok := pool.txs[hash]
	return ok
}

// Get returns the full transaction for hash, or nil.
func (pool *VectorFeePoolDummy) Get(hash common.Hash) *types.Transaction {
	pool.lock.RLock()
	defer pool.lock.RUnlock()

	return pool.txs[hash]
}

// Add admits every not-yet-known transaction whose sender can be recovered
// and whose address reservation succeeds; fee caps and nonces are not
// checked.
func (pool *VectorFeePoolDummy) Add(txs []*types.Transaction, local bool, sync bool) []error {
	if len(txs) == 0 {
		return nil
	}

	pool.lock.Lock()
	errs := make([]error, len(txs))
	adds := make(types.Transactions, 0, len(txs))

	for i, tx := range txs {
		if _, known := pool.txs[tx.Hash()]; known {
			errs[i] = ErrAlreadyKnown
			continue
		}
		from, err := types.Sender(pool.signer, tx)
		if err != nil {
			errs[i] = err
			continue
		}
		if _, ok := pool.txsByAddress[from]; !ok && pool.reserve != nil {
			if err := pool.reserve(from, true); err != nil {
				errs[i] = err
				continue
			}
		}

		pool.txs[tx.Hash()] = tx
		pool.txsByAddress[from] = append(pool.txsByAddress[from], tx)
		adds = append(adds, tx)

		log.Trace("txpool: pooled vector-fee transaction", "hash", tx.Hash(), "from", from, "to", tx.To())
	}
	pool.lock.Unlock()

	if len(adds) > 0 {
		pool.insertFeed.Send(NewTxsEvent{Txs: adds})
		pool.discoverFeed.Send(NewTxsEvent{Txs: adds})
	}
	return errs
}

// Pending retrieves every pooled transaction grouped by sender, using the
// execution-dimension fee cap (index 0 of GasFeeCaps/GasTipCaps) as the
// representative fee for the LazyTransaction, since this type's scalar
// GasFeeCap()/GasTipCap() are not meaningful for a multi-dimensional fee.
func (pool *VectorFeePoolDummy) Pending(filter PendingFilter) map[common.Address][]*LazyTransaction {
	if filter.OnlyBlobTxs || filter.OnlyPlainTxs {
		return nil
	}

	pool.lock.RLock()
	defer pool.lock.RUnlock()

	now := time.Now()
	result := make(map[common.Address][]*LazyTransaction, len(pool.txsByAddress))
	for addr, txs := range pool.txsByAddress {
		lazies := make([]*LazyTransaction, len(txs))
		for i, tx := range txs {
			feeCaps, tipCaps := tx.GasFeeCaps(), tx.GasTipCaps()
			lazies[i] = &LazyTransaction{
				Pool:      pool,
				Hash:      tx.Hash(),
				Time:      now,
				GasFeeCap: vectorDimensionOrZero(feeCaps, 0),
				GasTipCap: vectorDimensionOrZero(tipCaps, 0),
				Gas:       tx.Gas(),
				BlobGas:   tx.GasLimits()[1],
			}
		}
		result[addr] = lazies
	}
	return result
}

func vectorDimensionOrZero(v types.VectorFeeBigint, i int) *uint256.Int {
	if i >= len(v) || v[i] == nil {
		return uint256.NewInt(0)
	}
	out, overflow := uint256.FromBig(v[i])
	if overflow {
		return uint256.NewInt(0)
	}
	return out
}

// SubscribeTransactions subscribes to new vector-fee transaction events.
func (pool *VectorFeePoolDummy) SubscribeTransactions(ch chan<- NewTxsEvent, reorgs bool) event.Subscription {
	if reorgs {
		return pool.insertFeed.Subscribe(ch)
	}
	return pool.discoverFeed.Subscribe(ch)
}

// Nonce returns one past the highest pooled nonce for addr, or its chain
// nonce if nothing is pooled. Vector-fee transactions aren't kept sorted by
// nonce, so every pooled entry is scanned.
func (pool *VectorFeePoolDummy) Nonce(addr common.Address) uint64 {
	pool.lock.RLock()
	defer pool.lock.RUnlock()

	txs, ok := pool.txsByAddress[addr]
	if !ok || len(txs) == 0 {
		return pool.state.GetNonce(addr)
	}
	max := txs[0].Nonce()
	for _, tx := range txs {
		if tx.Nonce() > max {
			max = tx.Nonce()
		}
	}
	return max + 1
}

// Stats counts every pooled transaction as pending and none as queued: this
// pool does not distinguish pending from queued transactions.
func (pool *VectorFeePoolDummy) Stats() (int, int) {
	pool.lock.RLock()
	defer pool.lock.RUnlock()
	return len(pool.txs), 0
}

// Content returns every pooled transaction as pending, grouped by sender;
// this pool has no queued/gapped concept.
func (pool *VectorFeePoolDummy) Content() (map[common.Address][]*types.Transaction, map[common.Address][]*types.Transaction) {
	pool.lock.RLock()
	defer pool.lock.RUnlock()

	pending := make(map[common.Address][]*types.Transaction, len(pool.txsByAddress))
	for addr, txs := range pool.txsByAddress {
		pending[addr] = append([]*types.Transaction(nil), txs...)
	}
	return pending, make(map[common.Address][]*types.Transaction)
}

// ContentFrom is Content scoped to a single account.
func (pool *VectorFeePoolDummy) ContentFrom(addr common.Address) ([]*types.Transaction, []*types.Transaction) {
	pool.lock.RLock()
	defer pool.lock.RUnlock()

	return append([]*types.Transaction(nil), pool.txsByAddress[addr]...), nil
}

// Locals always returns no addresses: this pool doesn't distinguish local
// senders.
func (pool *VectorFeePoolDummy) Locals() []common.Address {
	return nil
}

// Status reports pending if hash is pooled, unknown otherwise.
func (pool *VectorFeePoolDummy) Status(hash common.Hash) TxStatus {
	if pool.Has(hash) {
		return TxStatusPending
	}
	return TxStatusUnknown
}
