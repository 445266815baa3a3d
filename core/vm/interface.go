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

// Package vm implements a stack-machine interpreter for EVM bytecode with
// precise gas accounting and a trap/resume design for CALL/CREATE, so the
// native call stack stays bounded regardless of EVM call depth.
package vm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateDB is the persisted-state collaborator the interpreter reads and
// mutates through (spec.md §6 "Persisted state (treated as opaque
// collaborator)" — the trie and block database live entirely outside this
// package; this is the seam).
type StateDB interface {
	CreateAccount(common.Address)

	SubBalance(common.Address, *uint256.Int)
	AddBalance(common.Address, *uint256.Int)
	GetBalance(common.Address) *uint256.Int

	GetNonce(common.Address) uint64
	SetNonce(common.Address, uint64)

	GetCodeHash(common.Address) common.Hash
	GetCode(common.Address) []byte
	SetCode(common.Address, []byte)
	GetCodeSize(common.Address) int

	AddRefund(uint64)
	SubRefund(uint64)
	GetRefund() uint64

	GetCommittedState(common.Address, common.Hash) common.Hash
	GetState(common.Address, common.Hash) common.Hash
	SetState(common.Address, common.Hash, common.Hash)

	GetTransientState(common.Address, common.Hash) common.Hash
	SetTransientState(common.Address, common.Hash, common.Hash)

	SelfDestruct(common.Address)
	HasSelfDestructed(common.Address) bool

	Exist(common.Address) bool
	Empty(common.Address) bool

	AddressInAccessList(common.Address) bool
	SlotInAccessList(common.Address, common.Hash) (addressOk bool, slotOk bool)
	AddAddressToAccessList(common.Address)
	AddSlotToAccessList(common.Address, common.Hash)

	RevertToSnapshot(int)
	Snapshot() int

	AddLog(addr common.Address, topics []common.Hash, data []byte, blockNumber uint64)

	AddPreimage(common.Hash, []byte)
}

// BlockContext groups the per-block values an EVM execution needs that are
// invariant across every call frame within the block.
type BlockContext struct {
	CanTransfer func(StateDB, common.Address, *uint256.Int) bool
	Transfer    func(StateDB, common.Address, common.Address, *uint256.Int)
	GetHash     func(uint64) common.Hash

	Coinbase    common.Address
	GasLimit    uint64
	BlockNumber *big.Int
	Time        uint64
	Difficulty  *big.Int
	BaseFee     *big.Int
	Random      *common.Hash
}

// TxContext groups the per-transaction values.
type TxContext struct {
	Origin     common.Address
	GasPrice   *big.Int
	BlobHashes []common.Hash
	BlobFeeCap *big.Int
}
