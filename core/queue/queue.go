// Copyright 2015-2020 Parity Technologies (UK) Ltd.
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

// Package queue implements the bounded, parallel verification pipeline that
// sits between the network (or any other I/O source) and chain insertion.
// Items move through three stages — unverified, verifying, verified — and
// are handed to the chain client in the order they were imported, minus any
// that turned out to be invalid.
package queue

import (
	"hash"
	"hash/fnv"
	"math/big"
	"runtime"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/bloomfilter/v2"
)

const (
	minMemLimit   = 16 * 1024
	minQueueLimit = 512

	// maxQueueWithFork bounds how large the processing set can be before
	// IsProcessingFork gives up and assumes no fork blocks are present —
	// empirically a queue longer than this essentially never holds one.
	maxQueueWithFork = 8

	// readjustmentPeriod is the number of CollectGarbage ticks between
	// verifier-count reassessments.
	readjustmentPeriod = 12

	// ancestryFilterM/K size a bloom filter for a few thousand recently
	// confirmed ancestor hashes with a low false-positive rate; a false
	// positive makes IsProcessingFork treat that (best, parent) pair as a
	// confirmed ancestor without calling AncestryChecker.IsAncestor.
	ancestryFilterM = 1 << 16
	ancestryFilterK = 4
)

// VerifierSettings configures the worker pool backing a Queue.
type VerifierSettings struct {
	// ScaleVerifiers enables CollectGarbage's load-based thread adjustment.
	// When false the queue always runs NumVerifiers workers.
	ScaleVerifiers bool
	// NumVerifiers is the initial (or, without scaling, permanent) number
	// of active workers. Clamped to [1, runtime.NumCPU()].
	NumVerifiers int
	// BadHashes seeds the bad set so known-bad chains are rejected
	// immediately rather than re-verified and re-discovered as bad.
	BadHashes []common.Hash
}

// Config bounds a Queue's resource usage.
type Config struct {
	MaxQueueSize int
	MaxMemUse    uint64
	Verifier     VerifierSettings
}

// DefaultConfig mirrors the OpenEthereum queue defaults: 30k items or 50MB,
// whichever is hit first.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize: 30000,
		MaxMemUse:    50 * 1024 * 1024,
		Verifier: VerifierSettings{
			NumVerifiers: runtime.NumCPU(),
		},
	}
}

// Info reports the queue's current occupancy, for RPC/metrics consumers.
type Info struct {
	UnverifiedLen int
	VerifyingLen  int
	VerifiedLen   int
	MemUsed       uint64
	MaxQueueSize  int
	MaxMemUse     uint64
}

// IsFull reports whether either the item-count or memory bound has been
// reached; the sync layer should pause dispatching new items while true.
func (i Info) IsFull() bool {
	return i.UnverifiedLen+i.VerifyingLen+i.VerifiedLen >= i.MaxQueueSize || i.MemUsed >= i.MaxMemUse
}

// IsEmpty reports whether the queue holds no items in any stage.
func (i Info) IsEmpty() bool {
	return i.UnverifiedLen == 0 && i.VerifyingLen == 0 && i.VerifiedLen == 0
}

// verifySlot is a placeholder occupying a slot in the verifying FIFO: its
// hash reserves the slot's position so Drain can still hand items to the
// client in import order once output is filled in by whichever worker
// finishes verifying it, even if that isn't the worker that reserved the
// slot's neighbours.
type verifySlot struct {
	hash   common.Hash
	output Verified
}

// processingEntry tracks an item from Import until MarkAsGood/MarkAsBad
// retires it, independent of which of the three FIFOs it currently sits in.
type processingEntry struct {
	difficulty *big.Int
	parentHash common.Hash
}

// workState holds the target number of active workers; worker i runs
// whenever i < target, and sleeps otherwise. exiting is set once during
// Close to release every worker regardless of its id.
type workState struct {
	target  int
	exiting bool
}

// AncestryChecker answers whether ancestor precedes descendant on the
// canonical chain, used by IsProcessingFork. The chain client supplies the
// concrete implementation; the queue has no chain-storage dependency of its
// own.
type AncestryChecker interface {
	IsAncestor(ancestor, descendant common.Hash) bool
}

// Queue is a bounded, parallel verification pipeline. Create one with New,
// keep importing with Import, and Drain verified output for insertion. Close
// stops all worker goroutines; a Queue must not be used afterward.
type Queue struct {
	verifier Verifier

	maxQueueSize int
	maxMemUse    uint64

	mu         sync.Mutex
	unverified []Unverified
	verifying  []verifySlot
	verifiedQ  []Verified
	bad        mapset.Set[common.Hash]

	unverifiedBytes uint64
	verifyingBytes  uint64
	verifiedBytes   uint64

	moreToVerify *sync.Cond // signalled on mu when unverified gains an item
	empty        *sync.Cond // signalled on mu when unverified and verifying both drain

	processingMu sync.RWMutex
	processing   map[common.Hash]processingEntry

	totalDifficultyMu sync.Mutex
	totalDifficulty   *big.Int

	ancestryFilter *bloomfilter.Filter

	ticksSinceAdjustment atomic.Int64
	scaleVerifiers       bool
	numWorkers           int

	stateMu   sync.Mutex
	stateCond *sync.Cond
	state     workState

	readySignal chan struct{}

	wg sync.WaitGroup
}

// New creates a queue and starts its worker pool. verifier supplies the
// parse/verify logic; checkSeal is passed to every Verify call, and false
// disables seal verification for contexts
// (like light-client header-only sync) that intentionally skip PoW/PoA
// checks.
func New(cfg Config, verifier Verifier, checkSeal bool) *Queue {
	maxVerifiers := runtime.NumCPU()
	initialActive := clampInt(cfg.Verifier.NumVerifiers, 1, maxVerifiers)

	// If auto-scaling is enabled, pre-spawn every goroutine up to CPU count
	// so later scale-ups just wake sleeping workers instead of starting new
	// ones; otherwise spawn exactly the configured, fixed amount.
	goroutines := initialActive
	if cfg.Verifier.ScaleVerifiers {
		goroutines = maxVerifiers
	}

	bad := mapset.NewSet[common.Hash]()
	for _, h := range cfg.Verifier.BadHashes {
		bad.Add(h)
	}

	filter, err := bloomfilter.New(ancestryFilterM, ancestryFilterK)
	if err != nil {
		// Only returns an error for non-positive parameters, which are
		// compile-time constants here.
		panic(err)
	}

	q := &Queue{
		verifier:        verifier,
		maxQueueSize:    maxInt(cfg.MaxQueueSize, minQueueLimit),
		maxMemUse:       maxUint64(cfg.MaxMemUse, minMemLimit),
		bad:             bad,
		processing:      make(map[common.Hash]processingEntry),
		totalDifficulty: new(big.Int),
		ancestryFilter:  filter,
		scaleVerifiers:  cfg.Verifier.ScaleVerifiers,
		numWorkers:      goroutines,
		readySignal:     make(chan struct{}, 1),
	}
	q.moreToVerify = sync.NewCond(&q.mu)
	q.empty = sync.NewCond(&q.mu)
	q.stateCond = sync.NewCond(&q.stateMu)
	q.state = workState{target: initialActive}

	log.Debug("Allocating verifiers", "threads", goroutines, "active", initialActive, "scaling", cfg.Verifier.ScaleVerifiers)

	q.wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go q.verifyLoop(i, checkSeal)
	}
	return q
}

// Ready returns the channel the chain client should select on: a value is
// sent whenever new items become available to Drain.
func (q *Queue) Ready() <-chan struct{} { return q.readySignal }

func (q *Queue) signalReady() {
	select {
	case q.readySignal <- struct{}{}:
	default:
	}
}

// Import stages input for verification, returning its hash. It rejects
// items already in flight (ErrAlreadyQueued) or known to be invalid, or
// descended from something known to be invalid (ErrKnownBad).
func (q *Queue) Import(input []byte) (common.Hash, error) {
	item, err := q.verifier.Parse(input)
	if err != nil {
		return common.Hash{}, err
	}
	hash, rawHash, parent := item.Hash(), item.RawHash(), item.ParentHash()

	q.processingMu.Lock()
	if _, ok := q.processing[hash]; ok {
		q.processingMu.Unlock()
		return common.Hash{}, ErrAlreadyQueued
	}
	q.processingMu.Unlock()

	if q.bad.Contains(hash) || q.bad.Contains(rawHash) {
		return common.Hash{}, ErrKnownBad
	}
	if q.bad.Contains(parent) {
		q.bad.Add(hash)
		return common.Hash{}, ErrKnownBad
	}

	q.processingMu.Lock()
	if _, ok := q.processing[hash]; ok {
		q.processingMu.Unlock()
		return common.Hash{}, ErrAlreadyQueued
	}
	q.processing[hash] = processingEntry{difficulty: item.Difficulty(), parentHash: parent}
	q.processingMu.Unlock()

	q.totalDifficultyMu.Lock()
	q.totalDifficulty.Add(q.totalDifficulty, item.Difficulty())
	q.totalDifficultyMu.Unlock()

	q.mu.Lock()
	q.unverified = append(q.unverified, item)
	q.unverifiedBytes += itemSize(item)
	q.mu.Unlock()
	q.moreToVerify.Signal()

	return hash, nil
}

// Drain removes up to max verified items, in import order.
func (q *Queue) Drain(max int) []Verified {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := max
	if n > len(q.verifiedQ) {
		n = len(q.verifiedQ)
	}
	out := make([]Verified, n)
	copy(out, q.verifiedQ[:n])

	var drained uint64
	for _, v := range out {
		drained += itemSize(v)
	}
	q.verifiedBytes -= drained
	q.verifiedQ = q.verifiedQ[n:]
	return out
}

// MarkAsBad marks hashes (and anything already verified whose parent is
// now bad) as bad, removing them from the processing set and the verified
// FIFO and subtracting their difficulty from the running total.
func (q *Queue) MarkAsBad(hashes []common.Hash) {
	if len(hashes) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.processingMu.Lock()
	for _, h := range hashes {
		q.bad.Add(h)
		if entry, ok := q.processing[h]; ok {
			delete(q.processing, h)
			q.totalDifficultyMu.Lock()
			q.totalDifficulty.Sub(q.totalDifficulty, entry.difficulty)
			q.totalDifficultyMu.Unlock()
		}
	}
	q.processingMu.Unlock()

	kept := q.verifiedQ[:0]
	var removed uint64
	for _, v := range q.verifiedQ {
		if q.bad.Contains(v.Hash()) || q.bad.Contains(v.ParentHash()) {
			q.bad.Add(v.Hash())
			removed += itemSize(v)
			q.processingMu.Lock()
			if entry, ok := q.processing[v.Hash()]; ok {
				delete(q.processing, v.Hash())
				q.totalDifficultyMu.Lock()
				q.totalDifficulty.Sub(q.totalDifficulty, entry.difficulty)
				q.totalDifficultyMu.Unlock()
			}
			q.processingMu.Unlock()
			continue
		}
		kept = append(kept, v)
	}
	q.verifiedBytes -= removed
	q.verifiedQ = kept
}

// MarkAsGood retires hashes from the processing set after successful chain
// insertion, and reports whether the queue has become entirely empty of
// in-flight work.
func (q *Queue) MarkAsGood(hashes []common.Hash) bool {
	q.processingMu.Lock()
	defer q.processingMu.Unlock()
	for _, h := range hashes {
		if entry, ok := q.processing[h]; ok {
			delete(q.processing, h)
			q.totalDifficultyMu.Lock()
			q.totalDifficulty.Sub(q.totalDifficulty, entry.difficulty)
			q.totalDifficultyMu.Unlock()
		}
	}
	return len(q.processing) == 0
}

// Flush blocks until both the unverified and verifying stages are empty.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.unverified) != 0 || len(q.verifying) != 0 {
		q.empty.Wait()
	}
}

// IsEmpty reports whether no items remain in any of the three stages.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.unverified) == 0 && len(q.verifying) == 0 && len(q.verifiedQ) == 0
}

// Info reports the queue's current occupancy and limits.
func (q *Queue) Info() Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Info{
		UnverifiedLen: len(q.unverified),
		VerifyingLen:  len(q.verifying),
		VerifiedLen:   len(q.verifiedQ),
		MemUsed:       q.unverifiedBytes + q.verifyingBytes + q.verifiedBytes,
		MaxQueueSize:  q.maxQueueSize,
		MaxMemUse:     q.maxMemUse,
	}
}

// TotalDifficulty returns the summed difficulty of every item currently
// in the processing set (imported but not yet marked good or bad).
func (q *Queue) TotalDifficulty() *big.Int {
	q.totalDifficultyMu.Lock()
	defer q.totalDifficultyMu.Unlock()
	return new(big.Int).Set(q.totalDifficulty)
}

// NumVerifiers returns the current number of active (non-sleeping) worker
// goroutines.
func (q *Queue) NumVerifiers() int {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	return q.state.target
}

// IsProcessingFork reports whether any in-processing item's parent is not
// an ancestor of bestHash — used by the request supplier to defer header
// responses whose answer would depend on not-yet-committed state.
func (q *Queue) IsProcessingFork(bestHash common.Hash, chain AncestryChecker) bool {
	q.processingMu.RLock()
	defer q.processingMu.RUnlock()

	if len(q.processing) == 0 || len(q.processing) > maxQueueWithFork {
		return false
	}
	for _, entry := range q.processing {
		key := ancestryFilterKey(bestHash, entry.parentHash)
		if q.ancestryFilter.Contains(key) {
			continue // already confirmed an ancestor on a prior call
		}
		if chain.IsAncestor(bestHash, entry.parentHash) {
			q.ancestryFilter.Add(key)
			continue
		}
		return true
	}
	return false
}

// ancestryFilterKey hashes the (best, parent) pair into the fnv64a hash the
// bloom filter expects as its key.
func ancestryFilterKey(best, parent common.Hash) hash.Hash64 {
	h := fnv.New64a()
	h.Write(best[:])
	h.Write(parent[:])
	return h
}

// CollectGarbage shrinks the internal slices back to their live length and,
// every readjustmentPeriod calls, rebalances the number of active workers
// to the observed unverified/verified ratio.
func (q *Queue) CollectGarbage() {
	q.mu.Lock()
	if cap(q.unverified) > 2*len(q.unverified)+16 {
		q.unverified = append([]Unverified(nil), q.unverified...)
	}
	if cap(q.verifiedQ) > 2*len(q.verifiedQ)+16 {
		q.verifiedQ = append([]Verified(nil), q.verifiedQ...)
	}
	uLen, vLen := len(q.unverified), len(q.verifiedQ)
	q.mu.Unlock()

	if !q.scaleVerifiers {
		return
	}
	if q.ticksSinceAdjustment.Add(1) < readjustmentPeriod {
		return
	}
	q.ticksSinceAdjustment.Store(0)

	current := q.NumVerifiers()
	diff := uLen - vLen
	if diff < 0 {
		diff = -diff
	}
	total := uLen + vLen

	var target int
	switch {
	case uLen < 20:
		target = 1
	case total > 0 && diff <= total/10:
		target = current
	case vLen > uLen:
		target = current - 1
	default:
		target = current + 1
	}
	q.scaleTo(target)
}

// scaleTo adjusts the active worker count to target, clamped to
// [1, numWorkers].
func (q *Queue) scaleTo(target int) {
	current := q.NumVerifiers()
	target = clampInt(target, 1, q.numWorkers)

	q.stateMu.Lock()
	q.state.target = target
	q.stateMu.Unlock()
	q.stateCond.Broadcast()

	log.Debug("Scaling verifier pool", "from", current, "to", target)
}

// Close stops every worker goroutine and waits for them to exit. The queue
// must not be used afterward.
func (q *Queue) Close() {
	q.mu.Lock()
	q.unverified = nil
	q.verifying = nil
	q.verifiedQ = nil
	q.unverifiedBytes, q.verifyingBytes, q.verifiedBytes = 0, 0, 0
	q.mu.Unlock()

	q.processingMu.Lock()
	q.processing = make(map[common.Hash]processingEntry)
	q.processingMu.Unlock()

	q.stateMu.Lock()
	q.state.exiting = true
	q.stateMu.Unlock()
	q.stateCond.Broadcast()

	q.mu.Lock()
	q.moreToVerify.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
