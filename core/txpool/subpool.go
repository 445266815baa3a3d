// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package txpool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/types"
)

// TxStatus is the known status of a transaction as seen by the pool.
type TxStatus uint

const (
	TxStatusUnknown TxStatus = iota
	TxStatusQueued
	TxStatusPending
)

// LazyResolver is the minimal interface a subpool must satisfy to resolve a
// LazyTransaction back to its full payload.
type LazyResolver interface {
	Get(hash common.Hash) *types.Transaction
}

// LazyTransaction contains a small subset of the transaction properties that
// is enough for the miner and other APIs to handle large batches of
// transactions without resolving every one of them up front.
type LazyTransaction struct {
	Pool LazyResolver
	Hash common.Hash
	Tx   *types.Transaction

	Time      time.Time
	GasFeeCap *uint256.Int
	GasTipCap *uint256.Int

	Gas     uint64
	BlobGas uint64
}

// Resolve retrieves the full transaction belonging to a lazy handle, if it is
// still maintained by the transaction pool.
func (ltx *LazyTransaction) Resolve() *types.Transaction {
	if ltx.Tx != nil {
		return ltx.Tx
	}
	return ltx.Pool.Get(ltx.Hash)
}

// AddressReserver is passed by the main transaction pool to subpools, so they
// may request (and relinquish) exclusive access to certain addresses.
type AddressReserver func(addr common.Address, reserve bool) error

// PendingFilter is a collection of filter rules allowing retrieval of a
// subset of transactions for announcement or mining. Each entry corresponds
// to a specific, cheaply-evaluated call site; it's not meant to grow into a
// general purpose query language.
type PendingFilter struct {
	MinTip  *uint256.Int
	BaseFee *uint256.Int
	BlobFee *uint256.Int

	OnlyPlainTxs bool
	OnlyBlobTxs  bool
}

// SubPool represents a specialized transaction pool that lives on its own.
// Since any number of specialized pools can coexist but need to be updated
// in lockstep and assembled into one coherent view for block production,
// this interface defines the common methods the primary TxPool uses to
// manage each subpool.
type SubPool interface {
	// Filter reports whether tx would be added to this subpool.
	Filter(tx *types.Transaction) bool

	// Init sets the base parameters of the subpool, letting it load any
	// persisted transactions and start internal maintenance routines. These
	// are deliberately not constructor arguments, nor do subpools start
	// themselves, so multiple subpools can be kept in lockstep.
	Init(gasTip uint64, head *types.Header, reserve AddressReserver) error

	// Close terminates any background processing and releases held
	// resources.
	Close() error

	// Reset retrieves the current state of the chain and ensures the pool's
	// content is still valid with regard to it.
	Reset(oldHead, newHead *types.Header)

	// SetGasTip updates the minimum tip required by the subpool for a new
	// transaction, and drops everything below the new threshold.
	SetGasTip(tip *uint256.Int)

	// Has reports whether the subpool has a transaction cached with the
	// given hash.
	Has(hash common.Hash) bool

	// Get returns a transaction if it is contained in the pool, or nil
	// otherwise.
	Get(hash common.Hash) *types.Transaction

	// Add enqueues a batch of transactions into the pool if they are valid.
	// Local transactions are exempt from the minimal-tip gate and from
	// capacity eviction.
	Add(txs []*types.Transaction, local bool, sync bool) []error

	// Pending retrieves all currently processable transactions, grouped by
	// origin account and sorted by nonce, optionally filtered by the dynamic
	// fee components to reduce work on downstream consumers.
	Pending(filter PendingFilter) map[common.Address][]*LazyTransaction

	// SubscribeTransactions subscribes to new transaction events. The
	// subscriber decides whether to also receive reorged-in transactions.
	SubscribeTransactions(ch chan<- NewTxsEvent, reorgs bool) event.Subscription

	// Nonce returns the next usable nonce of an account, with every
	// transaction executable by the pool already applied on top.
	Nonce(addr common.Address) uint64

	// Stats retrieves the current pool stats: the number of pending and the
	// number of queued (non-executable) transactions.
	Stats() (int, int)

	// Content retrieves the full data content of the pool, split into
	// pending and queued, grouped by account and sorted by nonce.
	Content() (map[common.Address][]*types.Transaction, map[common.Address][]*types.Transaction)

	// ContentFrom is Content scoped to a single account.
	ContentFrom(addr common.Address) ([]*types.Transaction, []*types.Transaction)

	// Locals retrieves the accounts currently considered local by the pool.
	Locals() []common.Address

	// Status returns the known status of a transaction, identified by hash.
	Status(hash common.Hash) TxStatus
}
