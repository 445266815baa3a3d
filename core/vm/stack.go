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

import (
	"sync"

	"github.com/holiman/uint256"
)

const maxStackDepth = 1024

// Stack is the EVM's 256-bit-word operand stack, bounded to maxStackDepth
// entries (spec.md §4.A).
type Stack struct {
	data []uint256.Int
}

var stackPool = sync.Pool{
	New: func() interface{} {
		return &Stack{data: make([]uint256.Int, 0, 16)}
	},
}

func newStack() *Stack {
	return stackPool.Get().(*Stack)
}

func releaseStack(s *Stack) {
	s.data = s.data[:0]
	stackPool.Put(s)
}

func (s *Stack) Data() []uint256.Int { return s.data }

func (s *Stack) Len() int { return len(s.data) }

func (s *Stack) push(d *uint256.Int) {
	s.data = append(s.data, *d)
}

func (s *Stack) pop() (ret uint256.Int) {
	ret = s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return
}

func (s *Stack) peek() *uint256.Int {
	return &s.data[len(s.data)-1]
}

// Back returns the n'th item from the top of the stack (0-indexed).
func (s *Stack) Back(n int) *uint256.Int {
	return &s.data[len(s.data)-n-1]
}

func (s *Stack) swap(n int) {
	top := len(s.data) - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

func (s *Stack) dup(n int) {
	s.push(&s.data[len(s.data)-n])
}

// returnStackEntry is one frame of the EIP-2315 subroutine return-stack,
// bounded to 1023 entries (one less than the operand stack, per spec.md
// §4.A).
type returnStackEntry struct {
	parentPC int
}

const maxReturnStackDepth = 1023

type returnStack struct {
	data []returnStackEntry
}

func newReturnStack() *returnStack {
	return &returnStack{data: make([]returnStackEntry, 0, 4)}
}

func (rs *returnStack) push(pc int) error {
	if len(rs.data) >= maxReturnStackDepth {
		return ErrReturnStackExceeded
	}
	rs.data = append(rs.data, returnStackEntry{parentPC: pc})
	return nil
}

func (rs *returnStack) pop() (int, error) {
	if len(rs.data) == 0 {
		return 0, ErrInvalidRetsub
	}
	last := rs.data[len(rs.data)-1]
	rs.data = rs.data[:len(rs.data)-1]
	return last.parentPC, nil
}
