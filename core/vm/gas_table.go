// Copyright 2016 The go-ethereum Authors
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

// Dynamic gas functions compute the portion of an instruction's cost that
// depends on the pre-execution stack/memory state (spec.md §4.A). Memory
// expansion itself is costed centrally by the step loop via memorySize +
// memoryGasCost; these functions add whatever is left (word-count fees,
// warm/cold access, SSTORE refund accounting, CALL stipend rules).

func gasExp(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		expBytes := len(stack.Back(1).Bytes())
		return uint64(expBytes) * sched.ExpByteGas, nil
	}
}

func gasSha3(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size := stack.Back(1)
		words, overflow := size.Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return toWordSize(words) * sched.Sha3WordGas, nil
	}
}

func memorySha3(stack *Stack) (uint64, bool) {
	return calcMemSize(stack.Back(0), stack.Back(1))
}

// warmColdGas charges the EIP-2929 warm/cold access cost for the given
// address, marking it warm afterward. Pre-Berlin schedules never reach
// this (accessGas supplies the flat constant instead).
func warmColdGas(f *Frame, sched *Schedule, addr common.Address) uint64 {
	if !sched.HasAccessList {
		return 0
	}
	if f.interp.evm.StateDB.AddressInAccessList(addr) {
		return sched.WarmStorageReadCost
	}
	f.interp.evm.StateDB.AddAddressToAccessList(addr)
	return sched.ColdAccountAccessCost
}

func gasBalance(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := common.Address(stack.Back(0).Bytes20())
		return warmColdGas(f, sched, addr), nil
	}
}

func gasExtCodeSize(sched *Schedule) gasFunc {
	return gasBalance(sched)
}

func gasExtCodeHash(sched *Schedule) gasFunc {
	return gasBalance(sched)
}

func gasExtCodeCopy(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := common.Address(stack.Back(0).Bytes20())
		words, overflow := stack.Back(3).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return warmColdGas(f, sched, addr) + toWordSize(words)*sched.CopyGas, nil
	}
}

func gasCopy(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		words, overflow := stack.Back(2).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return toWordSize(words) * sched.CopyGas, nil
	}
}

func gasReturnDataCopy(sched *Schedule) gasFunc {
	return gasCopy(sched)
}

func memoryCallDataCopy(stack *Stack) (uint64, bool) { return calcMemSize(stack.Back(0), stack.Back(2)) }
func memoryCodeCopy(stack *Stack) (uint64, bool)     { return calcMemSize(stack.Back(0), stack.Back(2)) }
func memoryExtCodeCopy(stack *Stack) (uint64, bool)  { return calcMemSize(stack.Back(1), stack.Back(3)) }
func memoryReturnDataCopy(stack *Stack) (uint64, bool) {
	return calcMemSize(stack.Back(0), stack.Back(2))
}

func gasMLoad(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) { return 0, nil }
}
func gasMStore(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) { return 0, nil }
}
func gasMStore8(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) { return 0, nil }
}

func memoryMLoad(stack *Stack) (uint64, bool) {
	top := stack.Back(0)
	v, overflow := top.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	return v + 32, false
}
func memoryMStore(stack *Stack) (uint64, bool) { return memoryMLoad(stack) }
func memoryMStore8(stack *Stack) (uint64, bool) {
	top := stack.Back(0)
	v, overflow := top.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	return v + 1, false
}

// gasSLoad implements EIP-2929/2200 SLOAD metering: cold access pays the
// full cold-SLOAD cost and is marked warm; warm access pays the cheap
// repeat-read cost.
func gasSLoad(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		if !sched.HasAccessList {
			return 0, nil
		}
		addr := f.contract.Address()
		slot := common.Hash(stack.Back(0).Bytes32())
		_, slotWarm := f.interp.evm.StateDB.SlotInAccessList(addr, slot)
		if slotWarm {
			return sched.WarmStorageReadCost, nil
		}
		f.interp.evm.StateDB.AddSlotToAccessList(addr, slot)
		return sched.ColdSloadCost, nil
	}
}

// gasSStore implements the EIP-2200 net-metered SSTORE rule: the cost
// (and refund) depends on the slot's original, current and new values, not
// just whether the new value is zero (spec.md §4.A "dynamic costs ...
// SSTORE refund logic under EIP-1283/2200").
func gasSStore(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := f.contract.Address()
		slot := common.Hash(stack.Back(0).Bytes32())
		newVal := common.Hash(stack.Back(1).Bytes32())

		var coldCost uint64
		if sched.HasAccessList {
			addrOK, slotOK := f.interp.evm.StateDB.SlotInAccessList(addr, slot)
			_ = addrOK
			if !slotOK {
				f.interp.evm.StateDB.AddSlotToAccessList(addr, slot)
				coldCost = sched.ColdSloadCost
			}
		}

		if !sched.UseEIP2200Sstore {
			current := f.interp.evm.StateDB.GetState(addr, slot)
			if current == (common.Hash{}) && newVal != (common.Hash{}) {
				return sched.SstoreSetGas + coldCost, nil
			} else if current != (common.Hash{}) && newVal == (common.Hash{}) {
				f.interp.evm.StateDB.AddRefund(sched.SstoreRefund)
				return sched.SstoreResetGas + coldCost, nil
			}
			return sched.SstoreResetGas + coldCost, nil
		}

		current := f.interp.evm.StateDB.GetState(addr, slot)
		if current == newVal {
			return sched.WarmStorageReadCost + coldCost, nil
		}
		original := f.interp.evm.StateDB.GetCommittedState(addr, slot)
		if original == current {
			if original == (common.Hash{}) {
				return sched.SstoreSetGas + coldCost, nil
			}
			if newVal == (common.Hash{}) {
				f.interp.evm.StateDB.AddRefund(sched.SstoreClearRefund)
			}
			return sched.SstoreResetGas + coldCost, nil
		}
		// Dirty slot: original != current. Reverting to the original value
		// (possibly via a detour through a different dirty value) earns a
		// partial refund of what was already charged, per EIP-2200's table.
		if original != (common.Hash{}) {
			if current == (common.Hash{}) {
				f.interp.evm.StateDB.SubRefund(sched.SstoreClearRefund)
			}
			if newVal == (common.Hash{}) {
				f.interp.evm.StateDB.AddRefund(sched.SstoreClearRefund)
			}
		}
		if original == newVal {
			if original == (common.Hash{}) {
				f.interp.evm.StateDB.AddRefund(sched.SstoreSetGas - sched.WarmStorageReadCost)
			} else {
				f.interp.evm.StateDB.AddRefund(sched.SstoreResetGas - sched.WarmStorageReadCost)
			}
		}
		return sched.WarmStorageReadCost + coldCost, nil
	}
}

func gasLog(sched *Schedule, topics int) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size, overflow := stack.Back(1).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return sched.LogGas + uint64(topics)*sched.LogTopicGas + size*sched.LogDataGas, nil
	}
}

func memoryLog(stack *Stack) (uint64, bool) { return calcMemSize(stack.Back(0), stack.Back(1)) }

func gasCreate(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		if !sched.EIP3860 {
			return 0, nil
		}
		size, overflow := stack.Back(2).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		return toWordSize(size) * 2, nil
	}
}

func gasCreate2(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size, overflow := stack.Back(2).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		words := toWordSize(size)
		cost := words * sched.Sha3WordGas
		if sched.EIP3860 {
			cost += words * 2
		}
		return cost, nil
	}
}

func memoryCreate(stack *Stack) (uint64, bool) { return calcMemSize(stack.Back(1), stack.Back(2)) }

// memoryCall computes the CALL/CALLCODE memory region: both stacks carry a
// value operand, so the in/out regions sit at indices 3..6.
func memoryCall(stack *Stack) (uint64, bool) {
	a, aOverflow := calcMemSize(stack.Back(3), stack.Back(4))
	b, bOverflow := calcMemSize(stack.Back(5), stack.Back(6))
	if aOverflow || bOverflow {
		return 0, true
	}
	if a > b {
		return a, false
	}
	return b, false
}

// memoryCallNoValue is memoryCall for DELEGATECALL/STATICCALL, whose stack
// carries no value operand so every index shifts down by one.
func memoryCallNoValue(stack *Stack) (uint64, bool) {
	a, aOverflow := calcMemSize(stack.Back(2), stack.Back(3))
	b, bOverflow := calcMemSize(stack.Back(4), stack.Back(5))
	if aOverflow || bOverflow {
		return 0, true
	}
	if a > b {
		return a, false
	}
	return b, false
}

// gasCall implements the fixed part of the CALL gas rule: warm/cold access
// cost, the value-transfer surcharge and the new-account surcharge. The
// one-64th rule capping the forwarded gas and the 2300 stipend credited on
// a value transfer are applied by callTrap, not here.
func gasCall(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := common.Address(stack.Back(1).Bytes20())
		value := stack.Back(2)

		cost := warmColdGas(f, sched, addr)
		if !value.IsZero() {
			cost += sched.CallValueTransferGas
			if f.interp.evm.StateDB.Empty(addr) {
				cost += sched.CallNewAccountGas
			}
		}
		return cost, nil
	}
}

func gasCallCode(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := common.Address(stack.Back(1).Bytes20())
		value := stack.Back(2)
		cost := warmColdGas(f, sched, addr)
		if !value.IsZero() {
			cost += sched.CallValueTransferGas
		}
		return cost, nil
	}
}

func gasDelegateCall(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := common.Address(stack.Back(1).Bytes20())
		return warmColdGas(f, sched, addr), nil
	}
}

func gasStaticCall(sched *Schedule) gasFunc {
	return gasDelegateCall(sched)
}

func memoryReturn(stack *Stack) (uint64, bool) { return calcMemSize(stack.Back(0), stack.Back(1)) }

func gasSelfdestruct(sched *Schedule) gasFunc {
	return func(f *Frame, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		var cost uint64
		addr := common.Address(stack.Back(0).Bytes20())
		if sched.HasAccessList && !f.interp.evm.StateDB.AddressInAccessList(addr) {
			f.interp.evm.StateDB.AddAddressToAccessList(addr)
			cost += sched.ColdAccountAccessCost
		}
		if f.interp.evm.StateDB.Empty(addr) && !f.interp.evm.StateDB.GetBalance(f.contract.Address()).IsZero() {
			cost += sched.CallNewAccountGas
		}
		if !f.interp.evm.StateDB.HasSelfDestructed(f.contract.Address()) {
			f.interp.evm.StateDB.AddRefund(sched.SelfdestructRefund)
		}
		return cost, nil
	}
}

// calcMemSize returns the byte offset one past the end of the
// [offset, offset+size) region a memory-touching instruction needs,
// reporting overflow so the caller can abort with ErrGasUintOverflow
// instead of wrapping silently.
func calcMemSize(offset, size *uint256.Int) (uint64, bool) {
	if size.IsZero() {
		return 0, false
	}
	o, overflow := offset.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	s, overflow := size.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	total := o + s
	if total < o {
		return 0, true
	}
	return total, false
}
