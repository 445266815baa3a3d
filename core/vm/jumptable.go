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

// executionFunc runs one instruction. pc may be mutated for JUMP-family
// ops. A non-nil trap return means the instruction suspended the frame
// instead of completing (spec.md §4.A trap/resume).
type executionFunc func(f *Frame) (ret []byte, trap *Trap, err error)

// gasFunc computes the dynamic portion of an instruction's gas cost from
// the pre-execution stack and memory state (spec.md §4.A "dynamic costs").
// Returning ErrOutOfGas (or any error) aborts the instruction before it
// mutates anything.
type gasFunc func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error)

// memorySizeFunc computes the memory size (in bytes) an instruction needs,
// from the stack state, so the interpreter can charge memory-expansion gas
// before calling execute.
type memorySizeFunc func(stack *Stack) (uint64, bool)

type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  gasFunc
	minStack    int
	maxStack    int
	memorySize  memorySizeFunc

	// undefined marks opcode bytes with no instruction assigned.
	undefined bool
}

// JumpTable maps every opcode byte to its operation for one gas schedule.
type JumpTable [256]*operation

// newJumpTable builds the jump table for sched, enabling/disabling
// fork-gated instructions per spec.md §4.A ("Enabling each is driven by a
// boolean on the active schedule").
func newJumpTable(sched *Schedule) *JumpTable {
	tbl := &JumpTable{}

	set := func(op OpCode, o *operation) { tbl[op] = o }

	set(STOP, &operation{execute: opStop, constantGas: 0, minStack: 0, maxStack: 1024})
	set(ADD, &operation{execute: opAdd, constantGas: 3, minStack: 2, maxStack: 1024})
	set(MUL, &operation{execute: opMul, constantGas: 5, minStack: 2, maxStack: 1024})
	set(SUB, &operation{execute: opSub, constantGas: 3, minStack: 2, maxStack: 1024})
	set(DIV, &operation{execute: opDiv, constantGas: 5, minStack: 2, maxStack: 1024})
	set(SDIV, &operation{execute: opSdiv, constantGas: 5, minStack: 2, maxStack: 1024})
	set(MOD, &operation{execute: opMod, constantGas: 5, minStack: 2, maxStack: 1024})
	set(SMOD, &operation{execute: opSmod, constantGas: 5, minStack: 2, maxStack: 1024})
	set(ADDMOD, &operation{execute: opAddmod, constantGas: 8, minStack: 3, maxStack: 1024})
	set(MULMOD, &operation{execute: opMulmod, constantGas: 8, minStack: 3, maxStack: 1024})
	set(EXP, &operation{execute: opExp, constantGas: sched.ExpGas, dynamicGas: gasExp(sched), minStack: 2, maxStack: 1024})
	set(SIGNEXTEND, &operation{execute: opSignExtend, constantGas: 5, minStack: 2, maxStack: 1024})

	set(LT, &operation{execute: opLt, constantGas: 3, minStack: 2, maxStack: 1024})
	set(GT, &operation{execute: opGt, constantGas: 3, minStack: 2, maxStack: 1024})
	set(SLT, &operation{execute: opSlt, constantGas: 3, minStack: 2, maxStack: 1024})
	set(SGT, &operation{execute: opSgt, constantGas: 3, minStack: 2, maxStack: 1024})
	set(EQ, &operation{execute: opEq, constantGas: 3, minStack: 2, maxStack: 1024})
	set(ISZERO, &operation{execute: opIszero, constantGas: 3, minStack: 1, maxStack: 1024})
	set(AND, &operation{execute: opAnd, constantGas: 3, minStack: 2, maxStack: 1024})
	set(OR, &operation{execute: opOr, constantGas: 3, minStack: 2, maxStack: 1024})
	set(XOR, &operation{execute: opXor, constantGas: 3, minStack: 2, maxStack: 1024})
	set(NOT, &operation{execute: opNot, constantGas: 3, minStack: 1, maxStack: 1024})
	set(BYTE, &operation{execute: opByte, constantGas: 3, minStack: 2, maxStack: 1024})

	if sched.HasShift {
		set(SHL, &operation{execute: opShl, constantGas: 3, minStack: 2, maxStack: 1024})
		set(SHR, &operation{execute: opShr, constantGas: 3, minStack: 2, maxStack: 1024})
		set(SAR, &operation{execute: opSar, constantGas: 3, minStack: 2, maxStack: 1024})
	}

	set(SHA3, &operation{execute: opSha3, constantGas: sched.Sha3Gas, dynamicGas: gasSha3(sched), minStack: 2, maxStack: 1024, memorySize: memorySha3})

	set(ADDRESS, &operation{execute: opAddress, constantGas: 2, minStack: 0, maxStack: 1024})
	set(BALANCE, &operation{execute: opBalance, constantGas: accessGas(sched), dynamicGas: gasBalance(sched), minStack: 1, maxStack: 1024})
	set(ORIGIN, &operation{execute: opOrigin, constantGas: 2, minStack: 0, maxStack: 1024})
	set(CALLER, &operation{execute: opCaller, constantGas: 2, minStack: 0, maxStack: 1024})
	set(CALLVALUE, &operation{execute: opCallValue, constantGas: 2, minStack: 0, maxStack: 1024})
	set(CALLDATALOAD, &operation{execute: opCallDataLoad, constantGas: 3, minStack: 1, maxStack: 1024})
	set(CALLDATASIZE, &operation{execute: opCallDataSize, constantGas: 2, minStack: 0, maxStack: 1024})
	set(CALLDATACOPY, &operation{execute: opCallDataCopy, constantGas: sched.CopyGas, dynamicGas: gasCopy(sched), minStack: 3, maxStack: 1024, memorySize: memoryCallDataCopy})
	set(CODESIZE, &operation{execute: opCodeSize, constantGas: 2, minStack: 0, maxStack: 1024})
	set(CODECOPY, &operation{execute: opCodeCopy, constantGas: sched.CopyGas, dynamicGas: gasCopy(sched), minStack: 3, maxStack: 1024, memorySize: memoryCodeCopy})
	set(GASPRICE, &operation{execute: opGasprice, constantGas: 2, minStack: 0, maxStack: 1024})
	set(EXTCODESIZE, &operation{execute: opExtCodeSize, constantGas: accessGas(sched), dynamicGas: gasExtCodeSize(sched), minStack: 1, maxStack: 1024})
	set(EXTCODECOPY, &operation{execute: opExtCodeCopy, constantGas: accessGas(sched), dynamicGas: gasExtCodeCopy(sched), minStack: 4, maxStack: 1024, memorySize: memoryExtCodeCopy})
	set(RETURNDATASIZE, &operation{execute: opReturnDataSize, constantGas: 2, minStack: 0, maxStack: 1024})
	set(RETURNDATACOPY, &operation{execute: opReturnDataCopy, constantGas: sched.CopyGas, dynamicGas: gasReturnDataCopy(sched), minStack: 3, maxStack: 1024, memorySize: memoryReturnDataCopy})
	if sched.HasExtCodeHash {
		set(EXTCODEHASH, &operation{execute: opExtCodeHash, constantGas: accessGas(sched), dynamicGas: gasExtCodeHash(sched), minStack: 1, maxStack: 1024})
	}

	set(BLOCKHASH, &operation{execute: opBlockhash, constantGas: 20, minStack: 1, maxStack: 1024})
	set(COINBASE, &operation{execute: opCoinbase, constantGas: 2, minStack: 0, maxStack: 1024})
	set(TIMESTAMP, &operation{execute: opTimestamp, constantGas: 2, minStack: 0, maxStack: 1024})
	set(NUMBER, &operation{execute: opNumber, constantGas: 2, minStack: 0, maxStack: 1024})
	set(DIFFICULTY, &operation{execute: opDifficulty, constantGas: 2, minStack: 0, maxStack: 1024})
	set(GASLIMIT, &operation{execute: opGasLimit, constantGas: 2, minStack: 0, maxStack: 1024})
	if sched.HasChainID {
		set(CHAINID, &operation{execute: opChainID, constantGas: 2, minStack: 0, maxStack: 1024})
	}
	if sched.HasSelfBalance {
		set(SELFBALANCE, &operation{execute: opSelfBalance, constantGas: 5, minStack: 0, maxStack: 1024})
	}
	if sched.HasBaseFee {
		set(BASEFEE, &operation{execute: opBaseFee, constantGas: 2, minStack: 0, maxStack: 1024})
	}

	set(POP, &operation{execute: opPop, constantGas: 2, minStack: 1, maxStack: 1024})
	set(MLOAD, &operation{execute: opMload, constantGas: 3, dynamicGas: gasMLoad(sched), minStack: 1, maxStack: 1024, memorySize: memoryMLoad})
	set(MSTORE, &operation{execute: opMstore, constantGas: 3, dynamicGas: gasMStore(sched), minStack: 2, maxStack: 1024, memorySize: memoryMStore})
	set(MSTORE8, &operation{execute: opMstore8, constantGas: 3, dynamicGas: gasMStore8(sched), minStack: 2, maxStack: 1024, memorySize: memoryMStore8})
	set(SLOAD, &operation{execute: opSload, constantGas: accessGas(sched), dynamicGas: gasSLoad(sched), minStack: 1, maxStack: 1024})
	set(SSTORE, &operation{execute: opSstore, dynamicGas: gasSStore(sched), minStack: 2, maxStack: 1024})
	set(JUMP, &operation{execute: opJump, constantGas: 8, minStack: 1, maxStack: 1024})
	set(JUMPI, &operation{execute: opJumpi, constantGas: 10, minStack: 2, maxStack: 1024})
	set(PC, &operation{execute: opPc, constantGas: 2, minStack: 0, maxStack: 1024})
	set(MSIZE, &operation{execute: opMsize, constantGas: 2, minStack: 0, maxStack: 1024})
	set(GAS, &operation{execute: opGas, constantGas: 2, minStack: 0, maxStack: 1024})
	set(JUMPDEST, &operation{execute: opJumpdest, constantGas: sched.JumpdestGas, minStack: 0, maxStack: 1024})

	if sched.HasSubroutines {
		set(BEGINSUB, &operation{execute: opBeginSub, constantGas: 2, minStack: 0, maxStack: 1024})
		set(RETURNSUB, &operation{execute: opReturnSub, constantGas: 5, minStack: 0, maxStack: 1024})
		set(JUMPSUB, &operation{execute: opJumpSub, constantGas: 10, minStack: 1, maxStack: 1024})
	}

	for i := 1; i <= 32; i++ {
		set(PUSH1+OpCode(i-1), &operation{execute: opPush, constantGas: 3, minStack: 0, maxStack: 1024})
	}
	for i := 1; i <= 16; i++ {
		set(DUP1+OpCode(i-1), &operation{execute: opDup(i), constantGas: 3, minStack: i, maxStack: 1024})
	}
	for i := 1; i <= 16; i++ {
		set(SWAP1+OpCode(i-1), &operation{execute: opSwap(i), constantGas: 3, minStack: i + 1, maxStack: 1024})
	}

	for i := 0; i <= 4; i++ {
		set(LOG0+OpCode(i), &operation{
			execute:     opLog(i),
			dynamicGas:  gasLog(sched, i),
			minStack:    2 + i,
			maxStack:    1024,
			memorySize:  memoryLog,
		})
	}

	set(CREATE, &operation{execute: opCreate, constantGas: sched.CreateGas, dynamicGas: gasCreate(sched), minStack: 3, maxStack: 1024, memorySize: memoryCreate})
	set(CALL, &operation{execute: opCall, constantGas: accessGas(sched), dynamicGas: gasCall(sched), minStack: 7, maxStack: 1024, memorySize: memoryCall})
	set(CALLCODE, &operation{execute: opCallCode, constantGas: accessGas(sched), dynamicGas: gasCallCode(sched), minStack: 7, maxStack: 1024, memorySize: memoryCall})
	set(RETURN, &operation{execute: opReturn, minStack: 2, maxStack: 1024, memorySize: memoryReturn})
	set(DELEGATECALL, &operation{execute: opDelegateCall, constantGas: accessGas(sched), dynamicGas: gasDelegateCall(sched), minStack: 6, maxStack: 1024, memorySize: memoryCallNoValue})
	if sched.HasCreate2 {
		set(CREATE2, &operation{execute: opCreate2, constantGas: sched.Create2Gas, dynamicGas: gasCreate2(sched), minStack: 4, maxStack: 1024, memorySize: memoryCreate})
	}
	if sched.HasStaticCall {
		set(STATICCALL, &operation{execute: opStaticCall, constantGas: accessGas(sched), dynamicGas: gasStaticCall(sched), minStack: 6, maxStack: 1024, memorySize: memoryCallNoValue})
	}
	if sched.HasRevert {
		set(REVERT, &operation{execute: opRevert, minStack: 2, maxStack: 1024, memorySize: memoryReturn})
	}
	set(INVALID, &operation{execute: opInvalid, minStack: 0, maxStack: 1024})
	set(SELFDESTRUCT, &operation{execute: opSelfdestruct, constantGas: sched.SelfdestructGas, dynamicGas: gasSelfdestruct(sched), minStack: 1, maxStack: 1024})

	return tbl
}

// accessGas returns the constant (pre-EIP-2929) component of an
// access-gated opcode's cost: zero once EIP-2929 is active (the dynamic
// gas function then charges the full warm/cold-dependent amount), the
// legacy flat constant otherwise.
func accessGas(sched *Schedule) uint64 {
	if sched.HasAccessList {
		return 0
	}
	return 700
}
