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

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// maxCallDepth bounds EVM call nesting (spec.md §4.A: the native call stack
// stays bounded "regardless of EVM call depth" — this is the EVM-depth
// bound the trap/resume driver enforces instead of a recursion limit).
const maxCallDepth = 1024

// Interpreter holds the pieces shared by every Frame belonging to one
// top-level call: the owning EVM, the active schedule's jump table, and the
// process-wide jump-destination cache.
type Interpreter struct {
	evm       *EVM
	table     *JumpTable
	destCache *destinationCache
}

// resumeData is fed into Frame.step when continuing a frame that
// previously suspended on a trap; it carries the child call/create's
// outcome back into the parent frame.
type resumeData struct {
	output  []byte
	gasLeft uint64
	err     error
	// addr is set on a CreateTrap resume: the deployed contract's address,
	// needed to push onto the stack on success.
	addr common.Address
}

// Frame is one call-frame's interpreter state: its own stack, memory,
// return-stack and program counter. Frame.step either runs the frame to
// completion (STOP/RETURN/REVERT/error) or suspends it at a CALL/CREATE
// instruction, recording the suspension in trap and returning control to
// the driver without recursing (spec.md §4.A "Trap/resume design").
type Frame struct {
	interp *Interpreter

	contract *Contract
	input    []byte
	readOnly bool

	stack  *Stack
	mem    *Memory
	rstack *returnStack

	pc     uint64
	jumped bool

	returnData []byte

	trap *Trap

	// pendingRetOffset/pendingRetSize remember where a CALL-family trap's
	// result should be copied into memory once it resumes.
	pendingRetOffset uint64
	pendingRetSize   uint64
}

func newFrame(interp *Interpreter, contract *Contract, input []byte, readOnly bool) *Frame {
	return &Frame{
		interp:   interp,
		contract: contract,
		input:    input,
		readOnly: readOnly,
		stack:    newStack(),
		mem:      newMemory(),
		rstack:   newReturnStack(),
	}
}

// step runs f until it halts or suspends. resume is nil for a never-started
// frame; non-nil when continuing after a child call/create completed.
func (f *Frame) step(resume *resumeData) (ret []byte, err error) {
	if resume != nil {
		f.applyResume(resume)
	}

	sched := f.interp.evm.schedule
	for {
		op := f.contract.GetOp(f.pc)
		operation := f.interp.table[op]
		if operation == nil {
			return nil, &stackErr{op: op}
		}
		if f.stack.Len() < operation.minStack {
			return nil, &stackErr{op: op, isUnderflow: true}
		}
		if f.stack.Len() > operation.maxStack {
			return nil, &stackErr{op: op}
		}
		if f.readOnly && isStateMutating(op) {
			return nil, ErrWriteProtection
		}

		var memSize uint64
		if operation.memorySize != nil {
			var overflow bool
			memSize, overflow = operation.memorySize(f.stack)
			if overflow {
				return nil, ErrGasUintOverflow
			}
			cost, err := memoryGasCost(f.mem, memSize, sched)
			if err != nil {
				return nil, err
			}
			if f.contract.Gas < cost {
				return nil, ErrOutOfGas
			}
			f.contract.Gas -= cost
		}

		if f.contract.Gas < operation.constantGas {
			return nil, ErrOutOfGas
		}
		f.contract.Gas -= operation.constantGas

		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(f, f.stack, f.mem, memSize)
			if err != nil {
				return nil, err
			}
			if f.contract.Gas < cost {
				return nil, ErrOutOfGas
			}
			f.contract.Gas -= cost
		}

		if operation.memorySize != nil {
			f.mem.Resize(memSize)
		}

		f.jumped = false
		res, trap, err := operation.execute(f)
		if err != nil {
			if err == errStopToken {
				return res, nil
			}
			return res, err
		}
		if trap != nil {
			f.trap = trap
			return nil, nil
		}
		if res != nil {
			// RETURN/REVERT produced final output.
			return res, nil
		}
		if !f.jumped {
			f.pc++
		}
	}
}

// applyResume splices a completed child call/create's outcome back into
// the parent's stack/memory and credits unused gas, per spec.md §4.A
// "crediting unused child gas".
func (f *Frame) applyResume(r *resumeData) {
	f.contract.Gas += r.gasLeft
	f.returnData = r.output

	trap := f.trap
	f.trap = nil

	switch trap.Kind {
	case TrapCall:
		ct := trap.Call
		if ct.retSize > 0 {
			f.mem.Resize(ct.retOffset + ct.retSize)
			n := uint64(len(r.output))
			if n > ct.retSize {
				n = ct.retSize
			}
			f.mem.Set(ct.retOffset, n, r.output[:n])
		}
		success := r.err == nil
		if success {
			f.stack.push(new(uint256.Int).SetOne())
		} else {
			f.stack.push(new(uint256.Int))
		}
	case TrapCreate:
		if r.err != nil {
			f.stack.push(new(uint256.Int))
		} else {
			addrInt := new(uint256.Int).SetBytes(r.addr.Bytes())
			f.stack.push(addrInt)
		}
	}
	f.pc++
}

func isStateMutating(op OpCode) bool {
	switch op {
	case SSTORE, LOG0, LOG1, LOG2, LOG3, LOG4, CREATE, CREATE2, SELFDESTRUCT, CALL:
		return true
	}
	return false
}

const (
	LOG1 = LOG0 + 1
	LOG2 = LOG0 + 2
	LOG3 = LOG0 + 3
)

// EVM is the trap/resume driver: it owns the frame stack for one top-level
// call and never recurses the Go call stack for EVM call depth — every
// nested CALL/CREATE pushes a Frame onto an explicit slice instead
// (spec.md §4.A).
type EVM struct {
	BlockContext
	TxContext
	StateDB StateDB

	schedule *Schedule
	depth    int

	interpreter *Interpreter

	chainID *big.Int
}

// NewEVM returns an EVM ready to execute transactions against statedb
// under the given schedule.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, chainID *big.Int, schedule *Schedule) *EVM {
	evm := &EVM{
		BlockContext: blockCtx,
		TxContext:    txCtx,
		StateDB:      statedb,
		schedule:     schedule,
		chainID:      chainID,
	}
	evm.interpreter = &Interpreter{evm: evm, table: newJumpTable(schedule), destCache: newDestinationCache(8 * 1024 * 1024)}
	return evm
}

// Call executes the code at addr with the given input, as CALL would.
func (evm *EVM) Call(caller common.Address, addr common.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	return evm.call(CallKindCall, caller, addr, input, gas, value, false)
}

// StaticCall executes the code at addr with the given input under a
// read-only context, as STATICCALL would.
func (evm *EVM) StaticCall(caller common.Address, addr common.Address, input []byte, gas uint64) (ret []byte, leftOverGas uint64, err error) {
	return evm.call(CallKindStaticCall, caller, addr, input, gas, new(uint256.Int), true)
}

func (evm *EVM) call(kind CallKind, caller, addr common.Address, input []byte, gas uint64, value *uint256.Int, readOnly bool) ([]byte, uint64, error) {
	if evm.depth > maxCallDepth {
		return nil, gas, ErrDepth
	}
	if !value.IsZero() && !evm.CanTransfer(evm.StateDB, caller, value) {
		return nil, gas, ErrInsufficientBalance
	}

	snapshot := evm.StateDB.Snapshot()
	if !evm.StateDB.Exist(addr) {
		evm.StateDB.CreateAccount(addr)
	}
	if kind == CallKindCall && !value.IsZero() {
		evm.Transfer(evm.StateDB, caller, addr, value)
	}

	code := evm.StateDB.GetCode(addr)
	contract := NewContract(caller, addr, value, gas, code, evm.StateDB.GetCodeHash(addr))
	frame := newFrame(evm.interpreter, contract, input, readOnly)

	ret, err := evm.run(frame)
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, contract.Gas, err
}

// Create executes a CREATE-style contract deployment.
func (evm *EVM) Create(caller common.Address, code []byte, gas uint64, value *uint256.Int) (ret []byte, contractAddr common.Address, leftOverGas uint64, err error) {
	contractAddr = evm.newContractAddress(caller)
	return evm.create(code, caller, contractAddr, gas, value)
}

// Create2 executes a CREATE2-style contract deployment at a salted,
// collision-resistant address.
func (evm *EVM) Create2(caller common.Address, code []byte, gas uint64, value *uint256.Int, salt *uint256.Int) (ret []byte, contractAddr common.Address, leftOverGas uint64, err error) {
	codeHash := crypto256(code)
	contractAddr = evm.create2Address(caller, salt, codeHash)
	return evm.create(code, caller, contractAddr, gas, value)
}

func (evm *EVM) create(code []byte, caller, addr common.Address, gas uint64, value *uint256.Int) ([]byte, common.Address, uint64, error) {
	if evm.depth > maxCallDepth {
		return nil, common.Address{}, gas, ErrDepth
	}
	if !value.IsZero() && !evm.CanTransfer(evm.StateDB, caller, value) {
		return nil, common.Address{}, gas, ErrInsufficientBalance
	}
	if evm.schedule.EIP3860 && uint64(len(code)) > 49152 {
		return nil, common.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}
	nonce := evm.StateDB.GetNonce(caller)
	if nonce+1 < nonce {
		return nil, common.Address{}, gas, ErrNonceUintOverflow
	}
	evm.StateDB.SetNonce(caller, nonce+1)

	if evm.StateDB.GetNonce(addr) != 0 || evm.StateDB.GetCodeHash(addr) != (common.Hash{}) {
		return nil, common.Address{}, 0, ErrContractAddressCollision
	}

	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(addr)
	evm.StateDB.SetNonce(addr, 1)
	evm.Transfer(evm.StateDB, caller, addr, value)

	contract := NewContract(caller, addr, value, gas, code, common.Hash{})
	frame := newFrame(evm.interpreter, contract, nil, false)

	ret, err := evm.run(frame)

	if err == nil && evm.schedule.EIP3541 && len(ret) > 0 && ret[0] == 0xef {
		err = ErrInvalidCode
	}
	if err == nil {
		maxCodeSize := 24576
		if len(ret) > maxCodeSize {
			err = ErrMaxCodeSizeExceeded
		}
	}
	if err == nil {
		createDataGas := uint64(len(ret)) * evm.schedule.CreateDataGas
		if contract.Gas < createDataGas {
			err = ErrCodeStoreOutOfGas
		} else {
			contract.Gas -= createDataGas
			evm.StateDB.SetCode(addr, ret)
		}
	}
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	return ret, addr, contract.Gas, err
}

// run is the trap/resume trampoline: it drives an explicit stack of
// frames, never recursing the Go call stack for nested CALL/CREATE
// (spec.md §4.A). maxCallDepth bounds its length.
func (evm *EVM) run(initial *Frame) ([]byte, error) {
	frames := []*Frame{initial}
	var pending *resumeData

	for {
		top := frames[len(frames)-1]
		evm.depth = len(frames) - 1

		ret, err := top.step(pending)
		pending = nil

		if top.trap != nil {
			child, prepErr := evm.prepareChild(top, top.trap)
			if prepErr != nil {
				pending = &resumeData{gasLeft: 0, err: prepErr}
				continue
			}
			frames = append(frames, child)
			continue
		}

		frames = frames[:len(frames)-1]
		if len(frames) == 0 {
			return ret, err
		}
		parent := frames[len(frames)-1]
		rd := &resumeData{output: ret, gasLeft: top.contract.Gas, err: err}
		if parent.trap != nil && parent.trap.Kind == TrapCreate && err == nil {
			rd.addr = top.contract.Address()
		}
		pending = rd
	}
}

// prepareChild instantiates the child frame a trap requests (the forwarded
// gas was already deducted from the parent by callTrap/createTrap) and
// performs the value transfer/account creation CALL-family semantics
// require up front. Depth is enforced here
// (not recursively) because the frame stack itself is the only "stack"
// involved.
func (evm *EVM) prepareChild(parent *Frame, trap *Trap) (*Frame, error) {
	switch trap.Kind {
	case TrapCall:
		return evm.prepareCallChild(parent, trap.Call)
	default:
		return evm.prepareCreateChild(parent, trap.Create)
	}
}

func (evm *EVM) prepareCallChild(parent *Frame, ct *CallTrap) (*Frame, error) {
	if evm.depth+1 > maxCallDepth {
		return nil, ErrDepth
	}
	var (
		code       []byte
		codeHash   common.Hash
		execAddr   = ct.Address
		storageAddr = ct.Address
		callerAddr = parent.contract.Address()
		readOnly   = parent.readOnly || ct.Kind == CallKindStaticCall
	)
	switch ct.Kind {
	case CallKindDelegateCall:
		storageAddr = parent.contract.Address()
		callerAddr = parent.contract.Caller()
	case CallKindCallCode:
		storageAddr = parent.contract.Address()
		callerAddr = parent.contract.Address()
	}

	snapshot := evm.StateDB.Snapshot()
	if ct.Kind == CallKindCall {
		if !ct.Value.IsZero() && !evm.CanTransfer(evm.StateDB, parent.contract.Address(), ct.Value) {
			evm.StateDB.RevertToSnapshot(snapshot)
			return nil, ErrInsufficientBalance
		}
		if !evm.StateDB.Exist(ct.Address) {
			evm.StateDB.CreateAccount(ct.Address)
		}
		evm.Transfer(evm.StateDB, parent.contract.Address(), ct.Address, ct.Value)
	}

	code = evm.StateDB.GetCode(execAddr)
	codeHash = evm.StateDB.GetCodeHash(execAddr)

	contractValue := ct.Value
	if ct.Kind == CallKindDelegateCall {
		contractValue = parent.contract.Value()
	}
	contract := NewContract(callerAddr, storageAddr, contractValue, ct.Gas, code, codeHash)
	return newFrame(parent.interp, contract, ct.Input, readOnly), nil
}

func (evm *EVM) prepareCreateChild(parent *Frame, crt *CreateTrap) (*Frame, error) {
	if evm.depth+1 > maxCallDepth {
		return nil, ErrDepth
	}
	caller := parent.contract.Address()
	var addr common.Address
	if crt.Kind == CreateKindCreate2 {
		addr = evm.create2Address(caller, crt.Salt, crypto256(crt.Code))
	} else {
		addr = evm.newContractAddress(caller)
	}

	if evm.schedule.EIP3860 && uint64(len(crt.Code)) > 49152 {
		return nil, ErrMaxInitCodeSizeExceeded
	}
	nonce := evm.StateDB.GetNonce(caller)
	evm.StateDB.SetNonce(caller, nonce+1)

	if evm.StateDB.GetNonce(addr) != 0 || evm.StateDB.GetCodeHash(addr) != (common.Hash{}) {
		return nil, ErrContractAddressCollision
	}
	if !crt.Value.IsZero() && !evm.CanTransfer(evm.StateDB, caller, crt.Value) {
		return nil, ErrInsufficientBalance
	}

	evm.StateDB.CreateAccount(addr)
	evm.StateDB.SetNonce(addr, 1)
	evm.Transfer(evm.StateDB, caller, addr, crt.Value)

	contract := NewContract(caller, addr, crt.Value, crt.Gas, crt.Code, common.Hash{})
	return newFrame(parent.interp, contract, nil, false), nil
}
