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
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// crypto256 hashes code the way CREATE2's salted address derivation and the
// EIP-3541/code-hash bookkeeping need it hashed.
func crypto256(code []byte) common.Hash {
	return crypto.Keccak256Hash(code)
}

// newContractAddress derives a CREATE address from the creator's address
// and its current nonce, the same rlp([addr, nonce]) hash go-ethereum uses.
func (evm *EVM) newContractAddress(caller common.Address) common.Address {
	nonce := evm.StateDB.GetNonce(caller)
	data, _ := rlp.EncodeToBytes([]interface{}{caller, nonce})
	return common.BytesToAddress(crypto.Keccak256(data)[12:])
}

// create2Address derives a CREATE2 address from 0xff ++ caller ++ salt ++
// keccak256(initcode), per EIP-1014.
func (evm *EVM) create2Address(caller common.Address, salt *uint256.Int, codeHash common.Hash) common.Address {
	saltBytes := salt.Bytes32()
	data := make([]byte, 0, 1+common.AddressLength+32+common.HashLength)
	data = append(data, 0xff)
	data = append(data, caller.Bytes()...)
	data = append(data, saltBytes[:]...)
	data = append(data, codeHash.Bytes()...)
	return common.BytesToAddress(crypto.Keccak256(data)[12:])
}
