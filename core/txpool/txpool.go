package txpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/types"
)

// TxPool is an aggregator for various transaction subpools, each potentially
// designed for a different type of transaction. The main pool itself does not
// validate or store transactions, only route them in and out of the
// constituent pools, and hand out cross-pool address reservations so a given
// account can only be homed in a single subpool at a time.
type TxPool struct {
	subpools []SubPool

	reservations map[common.Address]SubPool
	reserveLock  sync.Mutex

	subs event.SubscriptionScope

	gasTip atomic.Pointer[uint256.Int]

	quit chan chan error
	term chan struct{}
	sync chan chan error
}

// New creates a new transaction pool to gather, sort and filter inbound
// transactions from the network, backing the given subpools in lockstep.
func New(gasTip uint64, chain BlockChain, subpools []SubPool) (*TxPool, error) {
	head := chain.CurrentBlock()
	if head == nil {
		return nil, errors.New("missing current block")
	}
	pool := &TxPool{
		subpools:     subpools,
		reservations: make(map[common.Address]SubPool),
		quit:         make(chan chan error),
		term:         make(chan struct{}),
		sync:         make(chan chan error),
	}
	pool.gasTip.Store(uint256.NewInt(gasTip))

	for i, subpool := range subpools {
		if err := subpool.Init(gasTip, head, pool.reserver(i, subpool)); err != nil {
			for _, rollback := range subpools[:i] {
				rollback.Close()
			}
			return nil, err
		}
	}
	newHeadCh := make(chan ChainHeadEvent)
	sub := chain.SubscribeChainHeadEvent(newHeadCh)

	go pool.loop(head, newHeadCh, sub)

	return pool, nil
}

// reserver is a helper used by the main transaction pool to set an address
// reservation for a subpool, meaning that the subpool will be allowed to
// manage the transactions for the account without interference from other
// subpools.
func (p *TxPool) reserver(id int, subpool SubPool) AddressReserver {
	return func(addr common.Address, reserve bool) error {
		p.reserveLock.Lock()
		defer p.reserveLock.Unlock()

		owner, exists := p.reservations[addr]
		if reserve {
			if exists {
				if owner == subpool {
					return nil
				}
				return fmt.Errorf("address %s reserved by pool %T, conflicting reservation by pool %T", addr, owner, subpool)
			}
			p.reservations[addr] = subpool
			return nil
		}
		if !exists {
			log.Error("Attempting to unreserve non-reserved address", "address", addr)
			return nil
		}
		if owner != subpool {
			log.Error("Attempting to unreserve address reserved by another pool", "address", addr, "owner", fmt.Sprintf("%T", owner), "caller", fmt.Sprintf("%T", subpool))
			return nil
		}
		delete(p.reservations, addr)
		return nil
	}
}

// Close terminates the transaction pool and all its subpools.
func (p *TxPool) Close() error {
	var errs []error

	errc := make(chan error)
	p.quit <- errc
	if err := <-errc; err != nil {
		errs = append(errs, err)
	}
	for _, subpool := range p.subpools {
		if err := subpool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.subs.Close()

	return errors.Join(errs...)
}

// loop is the transaction pool's main event loop: it resets every subpool on
// each new chain head (coalescing heads that arrive while a reset is still
// running) and serves Sync and Close requests.
func (p *TxPool) loop(head *types.Header, newHeadCh chan ChainHeadEvent, sub event.Subscription) {
	defer sub.Unsubscribe()
	defer close(p.term)

	var (
		resetBusy = make(chan struct{}, 1)
		resetDone = make(chan *types.Header)

		resetForced bool
		resetWaiter chan error
	)
	var errc chan error
	defer func() {
		if errc != nil {
			errc <- nil
		}
	}()

	for {
		select {
		case event := <-newHeadCh:
			if event.Head == nil {
				continue
			}
			select {
			case resetBusy <- struct{}{}:
				oldHead := head
				head = event.Head
				go func(oldHead, newHead *types.Header) {
					for _, subpool := range p.subpools {
						subpool.Reset(oldHead, newHead)
					}
					resetDone <- newHead
				}(oldHead, event.Head)

			default:
				resetForced = true
			}

		case head = <-resetDone:
			<-resetBusy

			if resetForced {
				resetForced = false

				select {
				case resetBusy <- struct{}{}:
					oldHead := head
					go func(oldHead, newHead *types.Header) {
						for _, subpool := range p.subpools {
							subpool.Reset(oldHead, newHead)
						}
						resetDone <- newHead
					}(oldHead, head)

				default:
					resetForced = true
				}
			}
			if resetWaiter != nil {
				resetWaiter <- nil
				resetWaiter = nil
			}

		case waiter := <-p.sync:
			select {
			case resetBusy <- struct{}{}:
				<-resetBusy
				waiter <- nil
			default:
				resetWaiter = waiter
			}

		case errc = <-p.quit:
			return
		}
	}
}

// GasTip returns the current gas tip enforced by the transaction pool.
func (p *TxPool) GasTip() *uint256.Int {
	return p.gasTip.Load()
}

// SetGasTip updates the minimum gas tip required by the transaction pool for
// a new transaction, and drops all transactions below the new threshold.
func (p *TxPool) SetGasTip(tip *uint256.Int) {
	p.gasTip.Store(tip)
	for _, subpool := range p.subpools {
		subpool.SetGasTip(tip)
	}
}

// Has returns an indicator whether the pool has a transaction cached with the
// given hash.
func (p *TxPool) Has(hash common.Hash) bool {
	for _, subpool := range p.subpools {
		if subpool.Has(hash) {
			return true
		}
	}
	return false
}

// Get returns a transaction if it is contained in the pool, or nil otherwise.
func (p *TxPool) Get(hash common.Hash) *types.Transaction {
	for _, subpool := range p.subpools {
		if tx := subpool.Get(hash); tx != nil {
			return tx
		}
	}
	return nil
}

// Add enqueues a batch of transactions into the pool, splitting the batch
// across the registered subpools and reassembling the per-transaction errors
// in the original submission order.
func (p *TxPool) Add(txs []*types.Transaction, local bool, sync bool) []error {
	txsets := make([][]*types.Transaction, len(p.subpools))
	splits := make([]int, len(txs))

	for i, tx := range txs {
		split := -1
		for j, subpool := range p.subpools {
			if subpool.Filter(tx) {
				split = j
				txsets[j] = append(txsets[j], tx)
				break
			}
		}
		splits[i] = split
	}
	errsets := make([][]error, len(p.subpools))
	for i := 0; i < len(p.subpools); i++ {
		if len(txsets[i]) > 0 {
			errsets[i] = p.subpools[i].Add(txsets[i], local, sync)
		}
	}
	errs := make([]error, len(txs))
	for i, split := range splits {
		if split == -1 {
			errs[i] = ErrTxTypeNotSupported
			continue
		}
		errs[i] = errsets[split][0]
		errsets[split] = errsets[split][1:]
	}
	return errs
}

// Pending retrieves all currently processable transactions, grouped by
// origin account and sorted by nonce, across every registered subpool.
func (p *TxPool) Pending(filter PendingFilter) map[common.Address][]*LazyTransaction {
	txs := make(map[common.Address][]*LazyTransaction)
	for _, subpool := range p.subpools {
		for addr, set := range subpool.Pending(filter) {
			txs[addr] = set
		}
	}
	return txs
}

// SubscribeTransactions registers a subscription for new transaction events
// across every subpool, optionally including resurrected transactions.
func (p *TxPool) SubscribeTransactions(ch chan<- NewTxsEvent, reorgs bool) event.Subscription {
	subs := make([]event.Subscription, 0, len(p.subpools))
	for _, subpool := range p.subpools {
		if s := subpool.SubscribeTransactions(ch, reorgs); s != nil {
			subs = append(subs, s)
		}
	}
	return p.subs.Track(event.JoinSubscriptions(subs...))
}

// Nonce returns the next nonce of an account, with all transactions
// executable by the pool already applied on top.
func (p *TxPool) Nonce(addr common.Address) uint64 {
	var nonce uint64
	for _, subpool := range p.subpools {
		if next := subpool.Nonce(addr); nonce < next {
			nonce = next
		}
	}
	return nonce
}

// Stats retrieves the current pool stats, namely the number of pending and
// the number of queued (non-executable) transactions, across every subpool.
func (p *TxPool) Stats() (int, int) {
	var runnable, blocked int
	for _, subpool := range p.subpools {
		run, block := subpool.Stats()
		runnable += run
		blocked += block
	}
	return runnable, blocked
}

// Content retrieves the full data content of the pool, split into pending
// and queued, grouped by account and sorted by nonce.
func (p *TxPool) Content() (map[common.Address][]*types.Transaction, map[common.Address][]*types.Transaction) {
	pending := make(map[common.Address][]*types.Transaction)
	queued := make(map[common.Address][]*types.Transaction)

	for _, subpool := range p.subpools {
		run, block := subpool.Content()
		for addr, txs := range run {
			pending[addr] = txs
		}
		for addr, txs := range block {
			queued[addr] = txs
		}
	}
	return pending, queued
}

// ContentFrom retrieves the data content of the pool, pending and queued,
// scoped to a single account.
func (p *TxPool) ContentFrom(addr common.Address) ([]*types.Transaction, []*types.Transaction) {
	for _, subpool := range p.subpools {
		run, block := subpool.ContentFrom(addr)
		if len(run) > 0 || len(block) > 0 {
			return run, block
		}
	}
	return []*types.Transaction{}, []*types.Transaction{}
}

// Locals retrieves the accounts currently considered local by every subpool.
func (p *TxPool) Locals() []common.Address {
	var locals []common.Address
	for _, subpool := range p.subpools {
		locals = append(locals, subpool.Locals()...)
	}
	return locals
}

// Status returns the known status of a transaction, identified by its hash,
// as reported by whichever subpool holds (or held) it.
func (p *TxPool) Status(hash common.Hash) TxStatus {
	for _, subpool := range p.subpools {
		if status := subpool.Status(hash); status != TxStatusUnknown {
			return status
		}
	}
	return TxStatusUnknown
}

// Sync waits until the internal reset operations finishes. Only used for
// testing purposes.
func (p *TxPool) Sync() error {
	errc := make(chan error)
	select {
	case p.sync <- errc:
		return <-errc
	case <-p.term:
		return errors.New("pool already terminated")
	}
}
