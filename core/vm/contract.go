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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Contract is the executable unit of one call frame: the running code, its
// address identity, and the gas remaining to it.
type Contract struct {
	CallerAddress common.Address
	caller        common.Address
	self          common.Address

	code     []byte
	codeHash common.Hash

	Input []byte

	Gas   uint64
	value *uint256.Int

	analysis *jumpdestAnalysis
}

// NewContract returns a new contract environment for the given call.
func NewContract(caller, self common.Address, value *uint256.Int, gas uint64, code []byte, codeHash common.Hash) *Contract {
	return &Contract{
		CallerAddress: caller,
		caller:        caller,
		self:          self,
		code:          code,
		codeHash:      codeHash,
		value:         value,
		Gas:           gas,
	}
}

func (c *Contract) Caller() common.Address  { return c.caller }
func (c *Contract) Address() common.Address { return c.self }
func (c *Contract) Value() *uint256.Int     { return c.value }
func (c *Contract) Code() []byte            { return c.code }
func (c *Contract) CodeHash() common.Hash   { return c.codeHash }

// validJumpdest reports whether dest is a JUMPDEST position not embedded in
// PUSH data, computing (and caching, via destCache) the jump-destination
// bitsets on first use — spec.md §4.A "scanned lazily on the first
// JUMP/JUMPI".
func (c *Contract) validJumpdest(destCache *destinationCache, dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow {
		return false
	}
	if c.analysis == nil {
		c.analysis = destCache.analysis(c.codeHash, c.code)
	}
	return c.analysis.validJumpdest(c.code, udest)
}

func (c *Contract) validBeginsub(destCache *destinationCache, dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow {
		return false
	}
	if c.analysis == nil {
		c.analysis = destCache.analysis(c.codeHash, c.code)
	}
	return c.analysis.validBeginsub(c.code, udest)
}

func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.code)) {
		return OpCode(c.code[n])
	}
	return STOP
}

func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	out := make([]byte, size)
	copy(out, data[start:end])
	return out
}
