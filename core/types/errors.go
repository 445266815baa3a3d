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

package types

import "errors"

var (
	// ErrExtraDataTooLong is returned when a header's extra-data field
	// exceeds the 32-byte cap (spec.md §3).
	ErrExtraDataTooLong = errors.New("types: header extra-data exceeds 32 bytes")

	// ErrInvalidSig is returned when a transaction's signature values (v,
	// r, s) are malformed or fail curve validation.
	ErrInvalidSig = errors.New("types: invalid transaction signature")

	// ErrInvalidChainId is returned when a typed transaction's chain id
	// doesn't match the signer's.
	ErrInvalidChainId = errors.New("types: invalid chain id for signer")

	// ErrTxTypeNotSupported is returned when a transaction type is
	// unrecognized by the envelope decoder.
	ErrTxTypeNotSupported = errors.New("types: transaction type not supported")

	// ErrUnsignedTx is returned when an operation that requires a sender
	// is attempted on a transaction that carries no signature.
	ErrUnsignedTx = errors.New("types: transaction is unsigned")
)
