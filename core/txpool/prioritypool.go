package txpool

import (
	"container/heap"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/types"
)

// rejectedCacheMinSize and the pool_max/4 divisor below size the recently-
// rejected LRU: capacity is max(2048, poolMax/4). Once full, each new entry
// evicts the least recently used one; the cache is not halved.
const rejectedCacheMinSize = 2048

// PoolConfig bundles every knob the priority pool needs, mirroring the
// policy surface spec.md's transaction pool section describes: capacity,
// price bumps, per-account limits, local-sender treatment and service
// transactions.
type PoolConfig struct {
	Locals   []common.Address
	NoLocals bool

	PriceBump uint64 // minimum percentage bump required to replace a pooled tx

	AccountSlots uint64 // executable transactions per account
	AccountQueue uint64 // non-executable (gapped) transactions per account
	GlobalSlots  uint64 // executable transactions across all accounts
	GlobalQueue  uint64 // non-executable transactions across all accounts

	MaxTxSize uint64
	Lifetime  time.Duration // max age of a non-executable transaction before cull() drops it

	RefuseServiceTransactions bool
	IsCertifiedSender         func(common.Address) bool
}

// DefaultPoolConfig returns the policy go-ethereum itself ships as its
// legacy pool defaults, adjusted for this pool's simpler single-tier
// bookkeeping.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		PriceBump:    10,
		AccountSlots: 16,
		AccountQueue: 64,
		GlobalSlots:  4096,
		GlobalQueue:  1024,
		MaxTxSize:    128 * 1024,
		Lifetime:     3 * time.Hour,
	}
}

func (c *PoolConfig) sanitize() {
	if c.PriceBump == 0 {
		c.PriceBump = 10
	}
	if c.AccountSlots == 0 {
		c.AccountSlots = 16
	}
	if c.AccountQueue == 0 {
		c.AccountQueue = 64
	}
	if c.GlobalSlots == 0 {
		c.GlobalSlots = 4096
	}
	if c.GlobalQueue == 0 {
		c.GlobalQueue = 1024
	}
	if c.MaxTxSize == 0 {
		c.MaxTxSize = 128 * 1024
	}
	if c.Lifetime == 0 {
		c.Lifetime = 3 * time.Hour
	}
}

// PriorityPool is the SubPool for legacy, access-list and dynamic-fee
// transactions: a nonce-gap-free, priority-and-price ordered pool. Vector-fee transactions live in their own
// subpool (tx_vectorfee_pool.go) and are rejected here by Filter.
type PriorityPool struct {
	config PoolConfig
	chain  BlockChain
	signer types.Signer

	mu      sync.RWMutex
	head    *types.Header
	baseFee *big.Int
	state   StateReader

	all      map[common.Hash]*pooledTx
	bySender map[common.Address]*accountTxs
	addedAt  map[common.Hash]time.Time
	locals   map[common.Address]struct{}

	evict evictionHeap
	seq   uint64

	rejected lru.BasicLRU[common.Hash, struct{}]

	gasTip  atomic.Pointer[uint256.Int]
	reserve AddressReserver

	insertFeed event.Feed
	scope      event.SubscriptionScope

	pendingMu    sync.Mutex
	pendingCache map[pendingCacheKey]map[common.Address][]*LazyTransaction

	wg   sync.WaitGroup
	quit chan struct{}
}

type pendingCacheKey struct {
	blockNumber uint64
	enforceFees bool
}

// NewPriorityPool constructs a pool bound to chain and signer; Init must be
// called before it processes any transactions.
func NewPriorityPool(config PoolConfig, chain BlockChain, signer types.Signer) *PriorityPool {
	config.sanitize()
	p := &PriorityPool{
		config:   config,
		chain:    chain,
		signer:   signer,
		all:      make(map[common.Hash]*pooledTx),
		bySender: make(map[common.Address]*accountTxs),
		addedAt:  make(map[common.Hash]time.Time),
		locals:   make(map[common.Address]struct{}),
		evict:    evictionHeap{},
	}
	for _, addr := range config.Locals {
		p.locals[addr] = struct{}{}
	}
	size := rejectedCacheMinSize
	if quarter := int(config.GlobalSlots+config.GlobalQueue) / 4; quarter > size {
		size = quarter
	}
	p.rejected = lru.NewBasicLRU[common.Hash, struct{}](size)
	return p
}

// Filter reports whether tx belongs in this pool: everything except
// vector-fee transactions, which have their own subpool.
func (p *PriorityPool) Filter(tx *types.Transaction) bool {
	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType, types.DynamicFeeTxType:
		return true
	default:
		return false
	}
}

// Init wires the pool to a live chain head and starts its background reset
// loop.
func (p *PriorityPool) Init(gasTip uint64, head *types.Header, reserve AddressReserver) error {
	p.reserve = reserve
	p.gasTip.Store(uint256.NewInt(gasTip))

	state, err := p.chain.StateAt(head.Root)
	if err != nil {
		return fmt.Errorf("txpool: failed to open state at head: %w", err)
	}
	p.head = head
	p.state = state
	p.baseFee = head.BaseFee
	p.evict.baseFee = head.BaseFee

	p.quit = make(chan struct{})
	p.wg.Add(1)
	go p.loop()
	return nil
}

// Close stops the pool's background loop and releases its subscriptions.
func (p *PriorityPool) Close() error {
	close(p.quit)
	p.wg.Wait()
	p.scope.Close()
	return nil
}

// loop reacts to chain head changes by resetting the pool and periodically
// culls stale queued transactions, mirroring the teacher's own maintenance
// goroutine shape.
func (p *PriorityPool) loop() {
	defer p.wg.Done()

	heads := make(chan ChainHeadEvent, 16)
	sub := p.chain.SubscribeChainHeadEvent(heads)
	defer sub.Unsubscribe()

	cullTicker := time.NewTicker(time.Minute)
	defer cullTicker.Stop()

	for {
		select {
		case ev := <-heads:
			old := p.head
			p.Reset(old, ev.Head)
		case <-cullTicker.C:
			p.cull()
		case <-p.quit:
			return
		}
	}
}

// SetGasTip updates the minimum tip required for new non-local transactions
// and evicts everything already pooled that no longer clears it.
func (p *PriorityPool) SetGasTip(tip *uint256.Int) {
	p.gasTip.Store(tip)

	p.mu.Lock()
	defer p.mu.Unlock()

	var drop []*pooledTx
	for hash, pt := range p.all {
		if pt.priority == priorityLocal {
			continue
		}
		if pt.tx.GasTipCap().Cmp(tip.ToBig()) < 0 {
			drop = append(drop, p.all[hash])
		}
	}
	for _, pt := range drop {
		p.removeLocked(pt)
	}
	p.invalidatePendingCache()
}

// Has reports whether hash is resident in the pool.
func (p *PriorityPool) Has(hash common.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.all[hash]
	return ok
}

// Get returns the full transaction for hash, or nil.
func (p *PriorityPool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pt, ok := p.all[hash]; ok {
		return pt.tx
	}
	return nil
}

// Add validates and admits a batch of transactions. local exempts a
// transaction from the minimum tip gate and from capacity eviction; sync
// requests the call block until the admitted transactions have been
// broadcast to subscribers (best-effort here: broadcast happens
// synchronously either way, so sync has no additional effect beyond
// matching the SubPool contract).
func (p *PriorityPool) Add(txs []*types.Transaction, local bool, sync bool) []error {
	errs := make([]error, len(txs))
	var added []*types.Transaction

	p.mu.Lock()
	for i, tx := range txs {
		hash := tx.Hash()
		if _, ok := p.all[hash]; ok {
			errs[i] = ErrAlreadyKnown
			continue
		}
		if !local && p.rejected.Contains(hash) {
			errs[i] = ErrKnownBad
			continue
		}
		from, err := types.Sender(p.signer, tx)
		if err != nil {
			errs[i] = fmt.Errorf("%w: %v", ErrInvalidSender, err)
			continue
		}
		if err := p.validateLocked(tx, from, local); err != nil {
			p.rejected.Add(hash, struct{}{})
			errs[i] = err
			continue
		}
		if err := p.admitLocked(tx, from, local, priorityRegular); err != nil {
			errs[i] = err
			continue
		}
		added = append(added, tx)
	}
	if len(added) > 0 {
		p.invalidatePendingCache()
	}
	p.mu.Unlock()

	if len(added) > 0 {
		p.insertFeed.Send(NewTxsEvent{Txs: added})
	}
	return errs
}

// validateLocked runs both the stateless and stateful validation passes for
// tx, honoring the pool's service-transaction and local-tip policies. Caller
// holds p.mu.
func (p *PriorityPool) validateLocked(tx *types.Transaction, from common.Address, local bool) error {
	minTip := p.gasTip.Load()
	if local {
		minTip = nil
	}
	if tx.GasPrice().Sign() == 0 {
		if p.config.RefuseServiceTransactions {
			return ErrRefusedServiceTransaction
		}
		if p.config.IsCertifiedSender == nil || !p.config.IsCertifiedSender(from) {
			return ErrRefusedServiceTransaction
		}
		minTip = nil
	}

	const acceptedTypes = (1 << types.LegacyTxType) | (1 << types.AccessListTxType) | (1 << types.DynamicFeeTxType)
	opts := &ValidationOptions{
		Config:  p.chain.Config(),
		Accept:  acceptedTypes,
		MaxSize: p.config.MaxTxSize,
		MinTip:  minTip,
	}
	if err := ValidateTransaction(tx, p.head, p.signer, opts); err != nil {
		return err
	}

	stateOpts := &ValidationOptionsWithState{
		State: p.state,
		FirstNonceGap: func(addr common.Address) uint64 {
			if acc, ok := p.bySender[addr]; ok {
				return acc.FirstNonceGap(p.state.GetNonce(addr))
			}
			return p.state.GetNonce(addr)
		},
		ExistingExpenditure: func(addr common.Address) *big.Int {
			if acc, ok := p.bySender[addr]; ok {
				return acc.ExistingExpenditure()
			}
			return new(big.Int)
		},
		ExistingCost: func(addr common.Address, nonce uint64) *big.Int {
			if acc, ok := p.bySender[addr]; ok {
				return acc.ExistingCost(nonce)
			}
			return nil
		},
	}
	return ValidateTransactionWithState(tx, p.signer, stateOpts)
}

// admitLocked inserts tx into the pool's bookkeeping, reserving its sender's
// address on first use, replacing any existing transaction at the same
// nonce if the price bump clears the configured threshold, and evicting the
// worst resident transaction if admitting tx would exceed global capacity.
// Caller holds p.mu.
func (p *PriorityPool) admitLocked(tx *types.Transaction, from common.Address, local bool, class priorityClass) error {
	acc, ok := p.bySender[from]
	if !ok {
		if p.reserve != nil {
			if err := p.reserve(from, true); err != nil {
				return err
			}
		}
		acc = newAccountTxs()
		p.bySender[from] = acc
	}
	if local {
		p.locals[from] = struct{}{}
		class = priorityLocal
	}

	if old := acc.Get(tx.Nonce()); old != nil {
		if !replaces(tx, old, p.baseFee, p.config.PriceBump) {
			return ErrReplaceUnderpriced
		}
		p.dropFromAll(old.Hash())
	} else if uint64(len(p.all)) >= p.config.GlobalSlots+p.config.GlobalQueue && !local {
		if p.evict.Len() == 0 || !betterThan(&pooledTx{tx: tx, priority: class, insertionID: p.seq}, p.evict.items[0], p.baseFee) {
			return ErrTxPoolOverflow
		}
		worst := heap.Pop(&p.evict).(*pooledTx)
		p.removeLocked(worst)
	}

	acc.Put(tx)
	pt := &pooledTx{tx: tx, from: from, priority: class, insertionID: p.seq}
	p.seq++
	p.all[tx.Hash()] = pt
	p.addedAt[tx.Hash()] = time.Now()
	heap.Push(&p.evict, pt)
	return nil
}

// dropFromAll removes a transaction purely from the lookup/eviction
// bookkeeping; it does not touch the per-sender list, because the caller is
// about to overwrite that slot. Caller holds p.mu.
func (p *PriorityPool) dropFromAll(hash common.Hash) {
	pt, ok := p.all[hash]
	if !ok {
		return
	}
	delete(p.all, hash)
	delete(p.addedAt, hash)
	if pt.heapIndex >= 0 {
		heap.Remove(&p.evict, pt.heapIndex)
	}
}

// removeLocked fully removes a pooled transaction: from the lookup table,
// the eviction heap, and its sender's per-nonce list, relinquishing the
// sender's address reservation if that was their last pooled transaction.
// Caller holds p.mu.
func (p *PriorityPool) removeLocked(pt *pooledTx) {
	hash := pt.tx.Hash()
	delete(p.all, hash)
	delete(p.addedAt, hash)
	if pt.heapIndex >= 0 {
		heap.Remove(&p.evict, pt.heapIndex)
	}
	if acc, ok := p.bySender[pt.from]; ok {
		acc.Remove(pt.tx.Nonce())
		if acc.Empty() {
			delete(p.bySender, pt.from)
			delete(p.locals, pt.from)
			if p.reserve != nil {
				p.reserve(pt.from, false)
			}
		}
	}
}

// Pending returns every executable transaction, grouped by sender and
// sorted by nonce, optionally filtered by the dynamic fee components in
// filter. Results for a given chain head and enforcement mode are cached
// until the next mutation invalidates them.
func (p *PriorityPool) Pending(filter PendingFilter) map[common.Address][]*LazyTransaction {
	if filter.OnlyBlobTxs {
		return nil
	}

	p.mu.RLock()
	head := p.head
	p.mu.RUnlock()

	enforce := filter.MinTip != nil || filter.BaseFee != nil
	key := pendingCacheKey{blockNumber: head.Number.Uint64(), enforceFees: enforce}

	p.pendingMu.Lock()
	if p.pendingCache != nil {
		if cached, ok := p.pendingCache[key]; ok {
			p.pendingMu.Unlock()
			return cached
		}
	}
	p.pendingMu.Unlock()

	p.mu.RLock()
	out := make(map[common.Address][]*LazyTransaction, len(p.bySender))
	stateNonce := func(addr common.Address) uint64 { return p.state.GetNonce(addr) }
	for addr, acc := range p.bySender {
		ready := acc.Ready(stateNonce(addr), nil)
		if len(ready) == 0 {
			continue
		}
		var lazies []*LazyTransaction
		for _, tx := range ready {
			if filter.MinTip != nil {
				tip := tx.EffectiveGasTipValue(baseFeeOrNil(filter.BaseFee))
				if tip.Cmp(filter.MinTip.ToBig()) < 0 {
					break
				}
			}
			lazies = append(lazies, &LazyTransaction{
				Pool:      p,
				Hash:      tx.Hash(),
				Tx:        tx,
				Time:      time.Unix(0, tx.Time()),
				GasFeeCap: uint256FromBig(tx.GasFeeCap()),
				GasTipCap: uint256FromBig(tx.GasTipCap()),
				Gas:       tx.Gas(),
			})
		}
		if len(lazies) > 0 {
			out[addr] = lazies
		}
	}
	p.mu.RUnlock()

	p.pendingMu.Lock()
	if p.pendingCache == nil {
		p.pendingCache = make(map[pendingCacheKey]map[common.Address][]*LazyTransaction)
	}
	p.pendingCache[key] = out
	p.pendingMu.Unlock()

	return out
}

func baseFeeOrNil(fee *uint256.Int) *big.Int {
	if fee == nil {
		return nil
	}
	return fee.ToBig()
}

func uint256FromBig(v *big.Int) *uint256.Int {
	out, _ := uint256.FromBig(v)
	return out
}

// invalidatePendingCache drops every cached Pending() result; called after
// any mutation to the pool's content. It takes only pendingMu, so callers
// may or may not hold p.mu.
func (p *PriorityPool) invalidatePendingCache() {
	p.pendingMu.Lock()
	p.pendingCache = nil
	p.pendingMu.Unlock()
}

// SubscribeTransactions subscribes to newly admitted transactions. reorgs is
// accepted for interface compatibility; this pool does not distinguish
// reorg-reinjected transactions in its feed.
func (p *PriorityPool) SubscribeTransactions(ch chan<- NewTxsEvent, reorgs bool) event.Subscription {
	return p.scope.Track(p.insertFeed.Subscribe(ch))
}

// Nonce returns the next usable nonce for addr: its chain nonce advanced by
// every contiguous transaction already pooled for it.
func (p *PriorityPool) Nonce(addr common.Address) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	next := p.state.GetNonce(addr)
	if acc, ok := p.bySender[addr]; ok {
		return acc.FirstNonceGap(next)
	}
	return next
}

// Stats returns the number of pending (executable) and queued (gapped)
// transactions pooled.
func (p *PriorityPool) Stats() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pending, queued int
	for addr, acc := range p.bySender {
		ready := len(acc.Ready(p.state.GetNonce(addr), nil))
		pending += ready
		queued += acc.Len() - ready
	}
	return pending, queued
}

// Content returns every pooled transaction, split into pending and queued
// buckets, grouped by sender and sorted by nonce.
func (p *PriorityPool) Content() (map[common.Address][]*types.Transaction, map[common.Address][]*types.Transaction) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pending := make(map[common.Address][]*types.Transaction)
	queued := make(map[common.Address][]*types.Transaction)
	for addr, acc := range p.bySender {
		p.splitAccount(addr, acc, pending, queued)
	}
	return pending, queued
}

// ContentFrom is Content scoped to a single account.
func (p *PriorityPool) ContentFrom(addr common.Address) ([]*types.Transaction, []*types.Transaction) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acc, ok := p.bySender[addr]
	if !ok {
		return nil, nil
	}
	pending := make(map[common.Address][]*types.Transaction)
	queued := make(map[common.Address][]*types.Transaction)
	p.splitAccount(addr, acc, pending, queued)
	return pending[addr], queued[addr]
}

func (p *PriorityPool) splitAccount(addr common.Address, acc *accountTxs, pending, queued map[common.Address][]*types.Transaction) {
	next := p.state.GetNonce(addr)
	ready := acc.Ready(next, nil)
	if len(ready) > 0 {
		pending[addr] = ready
	}
	readyTop := next + uint64(len(ready))
	for _, tx := range acc.sorted() {
		if tx.Nonce() < readyTop {
			continue
		}
		queued[addr] = append(queued[addr], tx)
	}
}

// Locals returns every address the pool currently treats as local.
func (p *PriorityPool) Locals() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]common.Address, 0, len(p.locals))
	for addr := range p.locals {
		out = append(out, addr)
	}
	return out
}

// Status reports whether hash is pending, queued, or unknown to the pool.
func (p *PriorityPool) Status(hash common.Hash) TxStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pt, ok := p.all[hash]
	if !ok {
		return TxStatusUnknown
	}
	acc := p.bySender[pt.from]
	next := p.state.GetNonce(pt.from)
	for _, tx := range acc.Ready(next, nil) {
		if tx.Hash() == hash {
			return TxStatusPending
		}
	}
	return TxStatusQueued
}

// Reset reorients the pool at newHead: it refreshes the state snapshot,
// re-injects the transactions collectRetracted returns with
// priorityRetracted, then culls everything no longer valid.
func (p *PriorityPool) Reset(oldHead, newHead *types.Header) {
	state, err := p.chain.StateAt(newHead.Root)
	if err != nil {
		log.Error("txpool: failed to reset to new head state", "err", err)
		return
	}

	retracted := p.collectRetracted(oldHead, newHead)

	p.mu.Lock()
	p.head = newHead
	p.baseFee = newHead.BaseFee
	p.evict.baseFee = newHead.BaseFee
	p.state = state
	p.mu.Unlock()

	if len(retracted) > 0 {
		p.mu.Lock()
		for _, tx := range retracted {
			hash := tx.Hash()
			if _, ok := p.all[hash]; ok {
				continue
			}
			from, err := types.Sender(p.signer, tx)
			if err != nil {
				continue
			}
			if err := p.validateLocked(tx, from, false); err != nil {
				continue
			}
			p.admitLocked(tx, from, false, priorityRetracted)
		}
		p.invalidatePendingCache()
		p.mu.Unlock()
	}

	p.cull()
}

// collectRetracted returns nil when newHead directly extends oldHead.
// Otherwise it walks back from oldHead through at most 64 blocks, stopping
// early at a block or parent the chain cannot return, and returns every
// transaction in them. It does not look for the common ancestor with
// newHead's chain, so blocks shared by both chains are included too.
func (p *PriorityPool) collectRetracted(oldHead, newHead *types.Header) []*types.Transaction {
	if oldHead == nil || oldHead.Hash() == newHead.ParentHash {
		return nil
	}
	var retracted []*types.Transaction
	cur := oldHead
	for i := 0; i < 64 && cur != nil; i++ {
		block := p.chain.GetBlock(cur.Hash(), cur.Number.Uint64())
		if block == nil {
			break
		}
		retracted = append(retracted, block.Transactions()...)
		parent := p.chain.GetBlock(cur.ParentHash, cur.Number.Uint64()-1)
		if parent == nil {
			break
		}
		cur = parent.Header()
	}
	return retracted
}

// cull walks every sender in chunks, dropping transactions the chain has
// already included (nonce below the account's current chain nonce) and
// queued transactions that have aged past the configured lifetime, clearing
// the recently-rejected cache once done so previously-rejected transactions
// get a fresh chance against the new head.
func (p *PriorityPool) cull() {
	const chunkSize = 1024

	p.mu.Lock()
	addrs := make([]common.Address, 0, len(p.bySender))
	for addr := range p.bySender {
		addrs = append(addrs, addr)
	}
	p.mu.Unlock()

	deadline := time.Now().Add(-p.config.Lifetime)
	for start := 0; start < len(addrs); start += chunkSize {
		end := start + chunkSize
		if end > len(addrs) {
			end = len(addrs)
		}

		p.mu.Lock()
		for _, addr := range addrs[start:end] {
			acc, ok := p.bySender[addr]
			if !ok {
				continue
			}
			for _, tx := range acc.Forward(p.state.GetNonce(addr)) {
				p.dropFromAll(tx.Hash())
			}
			readyTop := p.state.GetNonce(addr) + uint64(len(acc.Ready(p.state.GetNonce(addr), nil)))
			for _, tx := range acc.All() {
				if tx.Nonce() < readyTop {
					continue
				}
				added, ok := p.addedAt[tx.Hash()]
				if ok && added.Before(deadline) {
					acc.Remove(tx.Nonce())
					p.dropFromAll(tx.Hash())
				}
			}
			if acc.Empty() {
				delete(p.bySender, addr)
				delete(p.locals, addr)
				if p.reserve != nil {
					p.reserve(addr, false)
				}
			}
		}
		p.mu.Unlock()
	}

	p.rejected.Purge()
	p.invalidatePendingCache()
}

// UpdateScoring re-ranks every resident transaction's effective price
// against a new base fee, without touching their priority class or
// insertion order. The eviction heap need not be rebuilt from scratch: its
// comparison function reads baseFee live, so only its invariant (not its
// contents) requires repair via heap.Init.
func (p *PriorityPool) UpdateScoring(baseFee *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.baseFee = baseFee
	p.evict.baseFee = baseFee
	heap.Init(&p.evict)
	p.invalidatePendingCache()
}
