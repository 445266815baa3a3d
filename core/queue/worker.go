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

package queue

import "github.com/ethereum/go-ethereum/common"

// verifyLoop is the body of one worker goroutine. id is this worker's slot
// number among the pool's allocated goroutines — it sleeps whenever
// id >= the current active-worker target, which is how CollectGarbage's
// auto-scaling puts workers to sleep without killing their goroutines.
func (q *Queue) verifyLoop(id int, checkSeal bool) {
	defer q.wg.Done()
	for {
		if !q.awaitTurn(id) {
			return
		}
		item, ok := q.awaitWork()
		if !ok {
			return
		}

		hash := item.Hash()
		verified, err := q.verifier.Verify(item, checkSeal)

		var ready bool
		if err != nil {
			ready = q.recordFailure(hash)
		} else {
			ready = q.recordSuccess(hash, verified)
		}
		if ready {
			q.signalReady()
		}
	}
}

// awaitTurn blocks until this worker's id is below the active target, or
// the queue is exiting (in which case it returns false).
func (q *Queue) awaitTurn(id int) bool {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	for !q.state.exiting && id >= q.state.target {
		q.stateCond.Wait()
	}
	return !q.state.exiting
}

// awaitWork blocks until the unverified FIFO has an item, reserving a
// verifying-stage placeholder for it before returning. Returns false if the
// queue is closing.
func (q *Queue) awaitWork() (Unverified, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.unverified) == 0 {
		if len(q.verifying) == 0 {
			q.empty.Broadcast()
		}
		if q.isExiting() {
			return nil, false
		}
		q.moreToVerify.Wait()
		if q.isExiting() {
			return nil, false
		}
	}

	item := q.unverified[0]
	q.unverified = q.unverified[1:]
	q.unverifiedBytes -= itemSize(item)

	q.verifying = append(q.verifying, verifySlot{hash: item.Hash()})
	return item, true
}

func (q *Queue) isExiting() bool {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	return q.state.exiting
}

// recordSuccess fills in the placeholder for hash and, if it is (or has
// become) the head of the verifying FIFO, drains every contiguous filled
// entry into the verified FIFO. Returns true if anything was drained.
func (q *Queue) recordSuccess(hash common.Hash, output Verified) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	for i := range q.verifying {
		if q.verifying[i].hash == hash {
			q.verifying[i].output = output
			q.verifyingBytes += itemSize(output)
			idx = i
			break
		}
	}
	if idx != 0 {
		return false
	}
	q.drainVerifyingLocked()
	return true
}

// recordFailure marks hash as bad and drops its placeholder. If that leaves
// the (possibly already-filled) new head ready, it drains as usual.
func (q *Queue) recordFailure(hash common.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.bad.Add(hash)
	for i, v := range q.verifying {
		if v.hash == hash {
			q.verifying = append(q.verifying[:i], q.verifying[i+1:]...)
			break
		}
	}
	if len(q.verifying) == 0 || q.verifying[0].output == nil {
		return false
	}
	q.drainVerifyingLocked()
	return true
}

// drainVerifyingLocked moves every contiguous filled entry from the front
// of verifying into verifiedQ, skipping (and marking bad) any whose parent
// turned out bad in the meantime. q.mu must be held.
func (q *Queue) drainVerifyingLocked() {
	for len(q.verifying) > 0 && q.verifying[0].output != nil {
		out := q.verifying[0].output
		q.verifying = q.verifying[1:]
		size := itemSize(out)
		q.verifyingBytes -= size

		if q.bad.Contains(out.ParentHash()) {
			q.bad.Add(out.Hash())
			continue
		}
		q.verifiedBytes += size
		q.verifiedQ = append(q.verifiedQ, out)
	}
	if len(q.unverified) == 0 && len(q.verifying) == 0 {
		q.empty.Broadcast()
	}
}
