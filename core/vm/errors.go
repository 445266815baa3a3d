// Copyright 2015 The go-ethereum Authors
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

import "errors"

// These are the kind-tagged EVM execution failures of spec.md §7: they
// terminate the current call frame only and never propagate above the
// executive — no partial state commits from the failed frame.
var (
	ErrOutOfGas                 = errors.New("vm: out of gas")
	ErrCodeStoreOutOfGas        = errors.New("vm: contract creation code storage out of gas")
	ErrDepth                    = errors.New("vm: max call depth exceeded")
	ErrInsufficientBalance      = errors.New("vm: insufficient balance for transfer")
	ErrContractAddressCollision = errors.New("vm: contract address collision")
	ErrExecutionReverted        = errors.New("vm: execution reverted")
	ErrMaxInitCodeSizeExceeded  = errors.New("vm: max initcode size exceeded")
	ErrMaxCodeSizeExceeded      = errors.New("vm: max code size exceeded")
	ErrInvalidJump              = errors.New("vm: invalid jump destination")
	ErrWriteProtection          = errors.New("vm: write protection") // mutable call in static context
	ErrReturnDataOutOfBounds    = errors.New("vm: return data out of bounds")
	ErrGasUintOverflow          = errors.New("vm: gas uint64 overflow")
	ErrInvalidCode              = errors.New("vm: invalid code: must not begin with 0xef")
	ErrNonceUintOverflow        = errors.New("vm: nonce uint64 overflow")
	ErrInvalidOpcode            = errors.New("vm: invalid opcode")

	ErrInvalidSubroutineEntry = errors.New("vm: invalid subroutine entry")
	ErrReturnStackExceeded    = errors.New("vm: return stack limit reached")
	ErrInvalidRetsub          = errors.New("vm: invalid retsub")

	errStopToken = errors.New("vm: stop token")
)

// stackErr reports a stack under/overflow for the given instruction, named
// the way the canonical opcode table names them so error text matches the
// instruction that failed.
type stackErr struct {
	op     OpCode
	have   int
	want   int
	isUnderflow bool
}

func (e *stackErr) Error() string {
	if e.isUnderflow {
		return "vm: stack underflow (" + e.op.String() + ")"
	}
	return "vm: stack overflow (" + e.op.String() + ")"
}
