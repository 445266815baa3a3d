// Copyright 2014 The go-ethereum Authors
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

import "github.com/holiman/uint256"

// Memory is the EVM's linearly-growing byte memory (spec.md §4.A). It grows
// in 32-byte words; the gasometer charges for growth separately (see
// memoryGasCost below).
type Memory struct {
	store       []byte
	lastGasCost uint64
}

func newMemory() *Memory {
	return &Memory{}
}

// Resize grows the memory to size bytes if it is currently smaller. Callers
// must charge gas for the growth before calling this — Resize itself never
// fails or errors, mirroring the split between cost computation and
// mutation used throughout the interpreter.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Set writes value into memory starting at offset, after first ensuring the
// region is allocated.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: invalid memory: store empty")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes a 256-bit value into memory at offset, left-padded to 32
// bytes — used by MSTORE.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: invalid memory: store empty")
	}
	b32 := val.Bytes32()
	copy(m.store[offset:offset+32], b32[:])
}

// GetCopy returns a fresh copy of size bytes starting at offset.
func (m *Memory) GetCopy(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	if len(m.store) > int(offset) {
		cpy := make([]byte, size)
		copy(cpy, m.store[offset:offset+size])
		return cpy
	}
	return nil
}

// GetPtr returns a slice view (not a copy) of size bytes starting at
// offset.
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	if len(m.store) > int(offset) {
		return m.store[offset : offset+size]
	}
	return nil
}

func (m *Memory) Len() int { return len(m.store) }

func (m *Memory) Data() []byte { return m.store }

// memoryGasCost computes the incremental gas cost of growing memory to
// cover [offset, offset+size), per the quadratic memory-expansion formula
// (spec.md §4.A "dynamic costs (memory expansion...)"). words is the
// newMemSize rounded up to the nearest 32-byte word count.
func memoryGasCost(mem *Memory, newSize uint64, sched *Schedule) (uint64, error) {
	if newSize == 0 {
		return 0, nil
	}
	if newSize > 0x1FFFFFFFE0 {
		return 0, ErrGasUintOverflow
	}
	newMemSizeWords := toWordSize(newSize)
	newMemSize := newMemSizeWords * 32

	if newMemSize > uint64(mem.Len()) {
		square := newMemSizeWords * newMemSizeWords
		linCoef := newMemSizeWords * sched.MemoryGas
		quadCoef := square / sched.QuadCoeffDiv
		newTotalFee := linCoef + quadCoef

		fee := newTotalFee - mem.lastGasCost
		mem.lastGasCost = newTotalFee
		return fee, nil
	}
	return 0, nil
}

func toWordSize(size uint64) uint64 {
	if size > 0xFFFFFFFFFFFFFFFF-31 {
		return 0xFFFFFFFFFFFFFFFF/32 + 1
	}
	return (size + 31) / 32
}
