// Copyright 2017 The go-ethereum Authors
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

package vm

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
)

// bitvec is a bitset indexed by code position, one bit per byte of code:
// set means "this position is a valid destination" (JUMPDEST or BEGINSUB,
// depending on which vector it is).
type bitvec []byte

func (bits bitvec) set(pos uint64) {
	bits[pos/8] |= 0x80 >> (pos % 8)
}

// codeSegment reports whether the bit for pos is set.
func (bits bitvec) codeSegment(pos uint64) bool {
	return (bits[pos/8] & (0x80 >> (pos % 8))) != 0
}

// codeBitmap scans code once, marking every JUMPDEST (0x5b) and BEGINSUB
// position that isn't inside a PUSH's immediate data.
func codeBitmap(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1+4)
	for pc := uint64(0); pc < uint64(len(code)); {
		op := OpCode(code[pc])
		if op == JUMPDEST || op == BEGINSUB {
			bits.set(pc)
			pc++
			continue
		}
		if op >= PUSH1 && op <= PUSH32 {
			numbits := uint64(op - PUSH1 + 1)
			pc++
			for ; numbits >= 8; numbits -= 8 {
				pc += 8
			}
			pc += numbits
			continue
		}
		pc++
	}
	return bits
}

// jumpdestAnalysis holds two bitsets — valid JUMPDEST positions from
// codeBitmap and valid BEGINSUB positions from subBitmap (spec.md §4.A "Jump-destination
// analysis") — keyed by code hash in a process-wide cache so repeated calls
// into the same contract never re-scan its code.
type jumpdestAnalysis struct {
	dests   bitvec
	subs    bitvec
}

func (j *jumpdestAnalysis) validJumpdest(code []byte, dest uint64) bool {
	if dest >= uint64(len(code)) {
		return false
	}
	if OpCode(code[dest]) != JUMPDEST {
		return false
	}
	return j.dests.codeSegment(dest)
}

func (j *jumpdestAnalysis) validBeginsub(code []byte, dest uint64) bool {
	if dest >= uint64(len(code)) {
		return false
	}
	if OpCode(code[dest]) != BEGINSUB {
		return false
	}
	return j.subs.codeSegment(dest)
}

// destinationCache is the process-wide, size-evicted (code-hash → bitsets)
// cache spec.md §4.A mandates, backed by fastcache rather than a bespoke
// LRU — the same choice the EVM's state/trie layers in the pack make for
// hot, fixed-size-key caches.
type destinationCache struct {
	mu    sync.Mutex
	cache *fastcache.Cache
}

func newDestinationCache(maxBytes int) *destinationCache {
	return &destinationCache{cache: fastcache.New(maxBytes)}
}

// analysis returns the cached jump-destination analysis for codeHash,
// computing and storing it on first use. fastcache stores raw bytes, so the
// two bitvecs are concatenated with a length prefix rather than stored as a
// Go struct.
func (d *destinationCache) analysis(codeHash common.Hash, code []byte) *jumpdestAnalysis {
	key := codeHash[:]

	d.mu.Lock()
	defer d.mu.Unlock()

	if buf, ok := d.cache.HasGet(nil, key); ok {
		return decodeAnalysis(buf)
	}

	destBits := codeBitmap(code)
	subBits := subBitmap(code)
	analysis := &jumpdestAnalysis{dests: destBits, subs: subBits}
	d.cache.Set(key, encodeAnalysis(analysis))
	return analysis
}

// subBitmap is codeBitmap restricted to BEGINSUB positions — computed
// separately because most contracts never use EIP-2315 subroutines and the
// hot path (JUMP/JUMPI) only needs dests.
func subBitmap(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1+4)
	for pc := uint64(0); pc < uint64(len(code)); {
		op := OpCode(code[pc])
		if op == BEGINSUB {
			bits.set(pc)
			pc++
			continue
		}
		if op >= PUSH1 && op <= PUSH32 {
			numbits := uint64(op - PUSH1 + 1)
			pc += 1 + numbits
			continue
		}
		pc++
	}
	return bits
}

func encodeAnalysis(a *jumpdestAnalysis) []byte {
	out := make([]byte, 4+len(a.dests)+len(a.subs))
	out[0] = byte(len(a.dests) >> 24)
	out[1] = byte(len(a.dests) >> 16)
	out[2] = byte(len(a.dests) >> 8)
	out[3] = byte(len(a.dests))
	copy(out[4:], a.dests)
	copy(out[4+len(a.dests):], a.subs)
	return out
}

func decodeAnalysis(buf []byte) *jumpdestAnalysis {
	n := int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	dests := append(bitvec(nil), buf[4:4+n]...)
	subs := append(bitvec(nil), buf[4+n:]...)
	return &jumpdestAnalysis{dests: dests, subs: subs}
}
