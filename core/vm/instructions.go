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
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Arithmetic, bitwise and comparison instructions operate entirely on the
// stack and never touch memory, storage or the trap/resume path.

func opAdd(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Add(&x, y)
	return nil, nil, nil
}

func opMul(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Mul(&x, y)
	return nil, nil, nil
}

func opSub(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Sub(&x, y)
	return nil, nil, nil
}

func opDiv(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Div(&x, y)
	return nil, nil, nil
}

func opSdiv(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.SDiv(&x, y)
	return nil, nil, nil
}

func opMod(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Mod(&x, y)
	return nil, nil, nil
}

func opSmod(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.SMod(&x, y)
	return nil, nil, nil
}

func opAddmod(f *Frame) ([]byte, *Trap, error) {
	x, y, z := f.stack.pop(), f.stack.pop(), f.stack.peek()
	z.AddMod(&x, &y, z)
	return nil, nil, nil
}

func opMulmod(f *Frame) ([]byte, *Trap, error) {
	x, y, z := f.stack.pop(), f.stack.pop(), f.stack.peek()
	z.MulMod(&x, &y, z)
	return nil, nil, nil
}

func opExp(f *Frame) ([]byte, *Trap, error) {
	base, exponent := f.stack.pop(), f.stack.peek()
	exponent.Exp(&base, exponent)
	return nil, nil, nil
}

func opSignExtend(f *Frame) ([]byte, *Trap, error) {
	back, num := f.stack.pop(), f.stack.peek()
	num.ExtendSign(num, &back)
	return nil, nil, nil
}

func opLt(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil, nil
}

func opGt(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil, nil
}

func opSlt(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil, nil
}

func opSgt(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil, nil
}

func opEq(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil, nil
}

func opIszero(f *Frame) ([]byte, *Trap, error) {
	x := f.stack.peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil, nil
}

func opAnd(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.And(&x, y)
	return nil, nil, nil
}

func opOr(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Or(&x, y)
	return nil, nil, nil
}

func opXor(f *Frame) ([]byte, *Trap, error) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Xor(&x, y)
	return nil, nil, nil
}

func opNot(f *Frame) ([]byte, *Trap, error) {
	x := f.stack.peek()
	x.Not(x)
	return nil, nil, nil
}

func opByte(f *Frame) ([]byte, *Trap, error) {
	th, val := f.stack.pop(), f.stack.peek()
	val.Byte(&th)
	return nil, nil, nil
}

func opShl(f *Frame) ([]byte, *Trap, error) {
	shift, value := f.stack.pop(), f.stack.peek()
	if shift.GtUint64(255) {
		value.Clear()
	} else {
		value.Lsh(value, uint(shift.Uint64()))
	}
	return nil, nil, nil
}

func opShr(f *Frame) ([]byte, *Trap, error) {
	shift, value := f.stack.pop(), f.stack.peek()
	if shift.GtUint64(255) {
		value.Clear()
	} else {
		value.Rsh(value, uint(shift.Uint64()))
	}
	return nil, nil, nil
}

func opSar(f *Frame) ([]byte, *Trap, error) {
	shift, value := f.stack.pop(), f.stack.peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil, nil, nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil, nil, nil
}

func opSha3(f *Frame) ([]byte, *Trap, error) {
	offset, size := f.stack.pop(), f.stack.peek()
	data := f.mem.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))
	hash := crypto.Keccak256(data)
	size.SetBytes(hash)
	return nil, nil, nil
}

// Environment and context instructions read the call, transaction and
// block context without mutating state.

func opAddress(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(addressToInt(f.contract.Address()))
	return nil, nil, nil
}

func opBalance(f *Frame) ([]byte, *Trap, error) {
	slot := f.stack.peek()
	addr := common.Address(slot.Bytes20())
	slot.Set(f.interp.evm.StateDB.GetBalance(addr))
	return nil, nil, nil
}

func opOrigin(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(addressToInt(f.interp.evm.Origin))
	return nil, nil, nil
}

func opCaller(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(addressToInt(f.contract.Caller()))
	return nil, nil, nil
}

func opCallValue(f *Frame) ([]byte, *Trap, error) {
	v := new(uint256.Int).Set(f.contract.Value())
	f.stack.push(v)
	return nil, nil, nil
}

func opCallDataLoad(f *Frame) ([]byte, *Trap, error) {
	x := f.stack.peek()
	offset, overflow := x.Uint64WithOverflow()
	if overflow {
		offset = math.MaxUint64
	}
	x.SetBytes(getData(f.input, offset, 32))
	return nil, nil, nil
}

func opCallDataSize(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(uint64(len(f.input))))
	return nil, nil, nil
}

func opCallDataCopy(f *Frame) ([]byte, *Trap, error) {
	memOffset, dataOffset, length := f.stack.pop(), f.stack.pop(), f.stack.pop()
	dataOffset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOffset64 = math.MaxUint64
	}
	data := getData(f.input, dataOffset64, length.Uint64())
	f.mem.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil, nil
}

func opCodeSize(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(uint64(len(f.contract.Code()))))
	return nil, nil, nil
}

func opCodeCopy(f *Frame) ([]byte, *Trap, error) {
	memOffset, codeOffset, length := f.stack.pop(), f.stack.pop(), f.stack.pop()
	codeOffset64, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOffset64 = math.MaxUint64
	}
	data := getData(f.contract.Code(), codeOffset64, length.Uint64())
	f.mem.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil, nil
}

func opGasprice(f *Frame) ([]byte, *Trap, error) {
	v, _ := uint256.FromBig(f.interp.evm.GasPrice)
	f.stack.push(v)
	return nil, nil, nil
}

func opExtCodeSize(f *Frame) ([]byte, *Trap, error) {
	slot := f.stack.peek()
	addr := common.Address(slot.Bytes20())
	slot.SetUint64(uint64(f.interp.evm.StateDB.GetCodeSize(addr)))
	return nil, nil, nil
}

func opExtCodeCopy(f *Frame) ([]byte, *Trap, error) {
	addr := common.Address(f.stack.pop().Bytes20())
	memOffset, codeOffset, length := f.stack.pop(), f.stack.pop(), f.stack.pop()
	codeOffset64, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOffset64 = math.MaxUint64
	}
	code := f.interp.evm.StateDB.GetCode(addr)
	data := getData(code, codeOffset64, length.Uint64())
	f.mem.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil, nil
}

func opReturnDataSize(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(uint64(len(f.returnData))))
	return nil, nil, nil
}

func opReturnDataCopy(f *Frame) ([]byte, *Trap, error) {
	memOffset, dataOffset, length := f.stack.pop(), f.stack.pop(), f.stack.pop()
	offset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		return nil, nil, ErrReturnDataOutOfBounds
	}
	length64, overflow := length.Uint64WithOverflow()
	if overflow {
		return nil, nil, ErrReturnDataOutOfBounds
	}
	if offset64+length64 > uint64(len(f.returnData)) {
		return nil, nil, ErrReturnDataOutOfBounds
	}
	f.mem.Set(memOffset.Uint64(), length64, f.returnData[offset64:offset64+length64])
	return nil, nil, nil
}

func opExtCodeHash(f *Frame) ([]byte, *Trap, error) {
	slot := f.stack.peek()
	addr := common.Address(slot.Bytes20())
	if f.interp.evm.StateDB.Empty(addr) {
		slot.Clear()
		return nil, nil, nil
	}
	slot.SetBytes(f.interp.evm.StateDB.GetCodeHash(addr).Bytes())
	return nil, nil, nil
}

func opBlockhash(f *Frame) ([]byte, *Trap, error) {
	num := f.stack.peek()
	num64, overflow := num.Uint64WithOverflow()
	if overflow {
		num.Clear()
		return nil, nil, nil
	}
	num.SetBytes(f.interp.evm.GetHash(num64).Bytes())
	return nil, nil, nil
}

func opCoinbase(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(addressToInt(f.interp.evm.Coinbase))
	return nil, nil, nil
}

func opTimestamp(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(f.interp.evm.Time))
	return nil, nil, nil
}

func opNumber(f *Frame) ([]byte, *Trap, error) {
	v, _ := uint256.FromBig(f.interp.evm.BlockNumber)
	f.stack.push(v)
	return nil, nil, nil
}

func opDifficulty(f *Frame) ([]byte, *Trap, error) {
	if f.interp.evm.Random != nil {
		f.stack.push(new(uint256.Int).SetBytes(f.interp.evm.Random.Bytes()))
		return nil, nil, nil
	}
	v, _ := uint256.FromBig(f.interp.evm.Difficulty)
	f.stack.push(v)
	return nil, nil, nil
}

func opGasLimit(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(f.interp.evm.GasLimit))
	return nil, nil, nil
}

func opChainID(f *Frame) ([]byte, *Trap, error) {
	v, _ := uint256.FromBig(f.interp.evm.chainID)
	f.stack.push(v)
	return nil, nil, nil
}

func opSelfBalance(f *Frame) ([]byte, *Trap, error) {
	bal := f.interp.evm.StateDB.GetBalance(f.contract.Address())
	f.stack.push(new(uint256.Int).Set(bal))
	return nil, nil, nil
}

func opBaseFee(f *Frame) ([]byte, *Trap, error) {
	v, _ := uint256.FromBig(f.interp.evm.BaseFee)
	f.stack.push(v)
	return nil, nil, nil
}

// Stack, memory, storage and flow-control instructions.

func opPop(f *Frame) ([]byte, *Trap, error) {
	f.stack.pop()
	return nil, nil, nil
}

func opMload(f *Frame) ([]byte, *Trap, error) {
	v := f.stack.peek()
	offset := v.Uint64()
	v.SetBytes(f.mem.GetPtr(int64(offset), 32))
	return nil, nil, nil
}

func opMstore(f *Frame) ([]byte, *Trap, error) {
	offset, val := f.stack.pop(), f.stack.pop()
	f.mem.Set32(offset.Uint64(), &val)
	return nil, nil, nil
}

func opMstore8(f *Frame) ([]byte, *Trap, error) {
	offset, val := f.stack.pop(), f.stack.pop()
	f.mem.store[offset.Uint64()] = byte(val.Uint64())
	return nil, nil, nil
}

func opSload(f *Frame) ([]byte, *Trap, error) {
	slot := f.stack.peek()
	hash := common.Hash(slot.Bytes32())
	val := f.interp.evm.StateDB.GetState(f.contract.Address(), hash)
	slot.SetBytes(val.Bytes())
	return nil, nil, nil
}

func opSstore(f *Frame) ([]byte, *Trap, error) {
	if f.readOnly {
		return nil, nil, ErrWriteProtection
	}
	slot, val := f.stack.pop(), f.stack.pop()
	key := common.Hash(slot.Bytes32())
	f.interp.evm.StateDB.SetState(f.contract.Address(), key, common.Hash(val.Bytes32()))
	return nil, nil, nil
}

func opJump(f *Frame) ([]byte, *Trap, error) {
	dest := f.stack.pop()
	if !f.contract.validJumpdest(f.interp.destCache, &dest) {
		return nil, nil, ErrInvalidJump
	}
	d, _ := dest.Uint64WithOverflow()
	f.pc = d
	f.jumped = true
	return nil, nil, nil
}

func opJumpi(f *Frame) ([]byte, *Trap, error) {
	dest, cond := f.stack.pop(), f.stack.pop()
	if cond.IsZero() {
		return nil, nil, nil
	}
	if !f.contract.validJumpdest(f.interp.destCache, &dest) {
		return nil, nil, ErrInvalidJump
	}
	d, _ := dest.Uint64WithOverflow()
	f.pc = d
	f.jumped = true
	return nil, nil, nil
}

func opPc(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(f.pc))
	return nil, nil, nil
}

func opMsize(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(toWordSize(uint64(f.mem.Len())) * 32))
	return nil, nil, nil
}

func opGas(f *Frame) ([]byte, *Trap, error) {
	f.stack.push(new(uint256.Int).SetUint64(f.contract.Gas))
	return nil, nil, nil
}

func opJumpdest(f *Frame) ([]byte, *Trap, error) {
	return nil, nil, nil
}

// opBeginSub is reachable only via opJumpSub, which already validates the
// destination; as a no-op it marks subroutine entry without otherwise
// affecting frame state (EIP-2315).
func opBeginSub(f *Frame) ([]byte, *Trap, error) {
	return nil, nil, nil
}

func opReturnSub(f *Frame) ([]byte, *Trap, error) {
	pc, err := f.rstack.pop()
	if err != nil {
		return nil, nil, err
	}
	f.pc = uint64(pc)
	f.jumped = true
	return nil, nil, nil
}

func opJumpSub(f *Frame) ([]byte, *Trap, error) {
	dest := f.stack.pop()
	if !f.contract.validBeginsub(f.interp.destCache, &dest) {
		return nil, nil, ErrInvalidSubroutineEntry
	}
	if err := f.rstack.push(int(f.pc + 1)); err != nil {
		return nil, nil, err
	}
	d, _ := dest.Uint64WithOverflow()
	f.pc = d
	f.jumped = true
	return nil, nil, nil
}

func opStop(f *Frame) ([]byte, *Trap, error) {
	return nil, nil, errStopToken
}

func opReturn(f *Frame) ([]byte, *Trap, error) {
	offset, size := f.stack.pop(), f.stack.pop()
	ret := f.mem.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))
	return ret, nil, nil
}

func opRevert(f *Frame) ([]byte, *Trap, error) {
	offset, size := f.stack.pop(), f.stack.pop()
	ret := f.mem.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))
	return ret, nil, ErrExecutionReverted
}

func opInvalid(f *Frame) ([]byte, *Trap, error) {
	return nil, nil, ErrInvalidOpcode
}

func opSelfdestruct(f *Frame) ([]byte, *Trap, error) {
	if f.readOnly {
		return nil, nil, ErrWriteProtection
	}
	beneficiary := common.Address(f.stack.pop().Bytes20())
	balance := f.interp.evm.StateDB.GetBalance(f.contract.Address())
	f.interp.evm.StateDB.AddBalance(beneficiary, balance)
	f.interp.evm.StateDB.SubBalance(f.contract.Address(), balance)
	f.interp.evm.StateDB.SelfDestruct(f.contract.Address())
	return nil, nil, errStopToken
}

// opPush reads its immediate data straight out of code — the single
// instruction whose pc advance isn't a flat +1 (spec.md §4.A instruction
// surface), so it sets f.jumped itself.
func opPush(f *Frame) ([]byte, *Trap, error) {
	size := uint64(f.contract.GetOp(f.pc) - PUSH1 + 1)
	data := getData(f.contract.Code(), f.pc+1, size)
	v := new(uint256.Int)
	v.SetBytes(data)
	f.stack.push(v)
	f.pc += 1 + size
	f.jumped = true
	return nil, nil, nil
}

func opDup(n int) executionFunc {
	return func(f *Frame) ([]byte, *Trap, error) {
		f.stack.dup(n)
		return nil, nil, nil
	}
}

func opSwap(n int) executionFunc {
	return func(f *Frame) ([]byte, *Trap, error) {
		f.stack.swap(n)
		return nil, nil, nil
	}
}

func opLog(n int) executionFunc {
	return func(f *Frame) ([]byte, *Trap, error) {
		if f.readOnly {
			return nil, nil, ErrWriteProtection
		}
		mStart, mSize := f.stack.pop(), f.stack.pop()
		topics := make([]common.Hash, n)
		for i := 0; i < n; i++ {
			t := f.stack.pop()
			topics[i] = common.Hash(t.Bytes32())
		}
		data := f.mem.GetCopy(int64(mStart.Uint64()), int64(mSize.Uint64()))
		f.interp.evm.StateDB.AddLog(f.contract.Address(), topics, data, f.interp.evm.BlockNumber.Uint64())
		return nil, nil, nil
	}
}

func opCreate(f *Frame) ([]byte, *Trap, error) {
	return createTrap(f, CreateKindCreate)
}

func opCreate2(f *Frame) ([]byte, *Trap, error) {
	return createTrap(f, CreateKindCreate2)
}

func createTrap(f *Frame, kind CreateKind) ([]byte, *Trap, error) {
	if f.readOnly {
		return nil, nil, ErrWriteProtection
	}
	value := f.stack.pop()
	offset, size := f.stack.pop(), f.stack.pop()
	var salt uint256.Int
	if kind == CreateKindCreate2 {
		salt = f.stack.pop()
	}
	code := f.mem.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))

	available := f.contract.Gas - f.contract.Gas/64
	f.contract.Gas -= available

	trap := &Trap{
		Kind: TrapCreate,
		Create: &CreateTrap{
			Kind:  kind,
			Value: new(uint256.Int).Set(&value),
			Code:  code,
			Salt:  new(uint256.Int).Set(&salt),
			Gas:   available,
		},
	}
	return nil, trap, nil
}

func opCall(f *Frame) ([]byte, *Trap, error) {
	return callTrap(f, CallKindCall)
}

func opCallCode(f *Frame) ([]byte, *Trap, error) {
	return callTrap(f, CallKindCallCode)
}

func opDelegateCall(f *Frame) ([]byte, *Trap, error) {
	return callTrap(f, CallKindDelegateCall)
}

func opStaticCall(f *Frame) ([]byte, *Trap, error) {
	return callTrap(f, CallKindStaticCall)
}

// callTrap pops the CALL-family operands (which vary by kind — DELEGATECALL
// and STATICCALL carry no value operand), forwards gas under the 63/64
// rule plus the classic 2300 stipend on a value transfer, and suspends the
// frame instead of recursing (spec.md §4.A trap/resume).
func callTrap(f *Frame, kind CallKind) ([]byte, *Trap, error) {
	gasReq := f.stack.pop()
	addr := common.Address(f.stack.pop().Bytes20())

	var value uint256.Int
	if kind == CallKindCall || kind == CallKindCallCode {
		value = f.stack.pop()
	}
	if f.readOnly && kind == CallKindCall && !value.IsZero() {
		return nil, nil, ErrWriteProtection
	}

	inOffset, inSize := f.stack.pop(), f.stack.pop()
	retOffset, retSize := f.stack.pop(), f.stack.pop()

	input := f.mem.GetCopy(int64(inOffset.Uint64()), int64(inSize.Uint64()))

	available := f.contract.Gas - f.contract.Gas/64
	if req, overflow := gasReq.Uint64WithOverflow(); !overflow && req < available {
		available = req
	}
	f.contract.Gas -= available
	if kind == CallKindCall && !value.IsZero() {
		available += f.interp.evm.schedule.CallStipend
	}

	trap := &Trap{
		Kind: TrapCall,
		Call: &CallTrap{
			Kind:      kind,
			Gas:       available,
			Address:   addr,
			Value:     new(uint256.Int).Set(&value),
			Input:     input,
			retOffset: retOffset.Uint64(),
			retSize:   retSize.Uint64(),
		},
	}
	return nil, trap, nil
}

func addressToInt(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}
