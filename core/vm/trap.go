// Copyright 2024 The go-ethereum Authors
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

// TrapKind distinguishes the two families of instruction that suspend a
// frame instead of recursing (spec.md §4.A "Trap/resume design").
type TrapKind int

const (
	TrapCall TrapKind = iota
	TrapCreate
)

// CallKind identifies which of the four CALL-family opcodes raised the
// trap; it governs value transfer, static-context inheritance and the code
// executed (self vs. target).
type CallKind int

const (
	CallKindCall CallKind = iota
	CallKindCallCode
	CallKindDelegateCall
	CallKindStaticCall
)

// CreateKind identifies which of the two CREATE-family opcodes raised the
// trap; it governs address derivation (nonce-based vs. salted hash).
type CreateKind int

const (
	CreateKindCreate CreateKind = iota
	CreateKindCreate2
)

// CallTrap is the suspended state of a CALL/CALLCODE/DELEGATECALL/STATICCALL
// instruction: everything the driver needs to run the child frame, plus
// everything the trapping frame needs to splice the result back in when
// applyResume runs.
type CallTrap struct {
	Kind    CallKind
	Gas     uint64
	Address common.Address
	Value   *uint256.Int
	Input   []byte

	retOffset uint64
	retSize   uint64
}

// CreateTrap is the suspended state of a CREATE/CREATE2 instruction.
type CreateTrap struct {
	Kind  CreateKind
	Value *uint256.Int
	Code  []byte
	Salt  *uint256.Int
	Gas   uint64
}

// Trap is what Frame.step returns instead of a result when it hits a
// CALL-family or CREATE-family instruction. The outer driver (EVM.run)
// instantiates a child frame for it — or fails the instruction outright
// with "too deep" — without ever recursing the Go call stack for the EVM
// call itself.
type Trap struct {
	Kind   TrapKind
	Call   *CallTrap
	Create *CreateTrap
}
