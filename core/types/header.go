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

// Package types implements the block, header, transaction and receipt
// envelopes consumed by the verification queue, the pool, the miner and
// the sync state machine.
package types

import (
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BloomByteLength is the number of bytes in the log bloom bitmap.
const BloomByteLength = 256

// Bloom is the 256-byte bitmap carried in every header.
type Bloom [BloomByteLength]byte

// BytesToBloom converts the given bytes into a Bloom, panicking if the
// source is longer than BloomByteLength.
func BytesToBloom(b []byte) Bloom {
	var bloom Bloom
	bloom.SetBytes(b)
	return bloom
}

// SetBytes copies b into bloom, right-aligned.
func (b *Bloom) SetBytes(d []byte) {
	if len(b) < len(d) {
		panic("bloom bytes too big")
	}
	copy(b[BloomByteLength-len(d):], d)
}

// Seal carries the engine-specific fields appended after the thirteen fixed
// header fields. PoW engines populate MixDigest+Nonce; PoA/AuRa engines
// populate Extra-embedded signatures and leave Raw populated with whatever
// the engine needs verbatim — the queue and sync layers never interpret it.
type Seal struct {
	// Raw holds the already-RLP-encoded seal fields, in order, exactly as
	// the engine produced them. Kept opaque because the seal shape differs
	// per consensus engine (PoW nonce+mixdigest vs. AuRa step+signature).
	Raw [][]byte
}

// Copy returns a deep copy of the seal.
func (s Seal) Copy() Seal {
	out := make([][]byte, len(s.Raw))
	for i, f := range s.Raw {
		out[i] = common.CopyBytes(f)
	}
	return Seal{Raw: out}
}

// Header represents a block header, pre- or post-EIP-1559.
//
// Hash is a pure function of all fields (invariant P1/P2): any setter that
// mutates a field must invalidate the memoized hashes via resetHash.
type Header struct {
	ParentHash  common.Hash    `json:"parentHash"`
	UncleHash   common.Hash    `json:"sha3Uncles"`
	Coinbase    common.Address `json:"miner"`
	Root        common.Hash    `json:"stateRoot"`
	TxHash      common.Hash    `json:"transactionsRoot"`
	ReceiptHash common.Hash    `json:"receiptsRoot"`
	Bloom       Bloom          `json:"logsBloom"`
	Difficulty  *big.Int       `json:"difficulty"`
	Number      *big.Int       `json:"number"`
	GasLimit    uint64         `json:"gasLimit"`
	GasUsed     uint64         `json:"gasUsed"`
	Time        uint64         `json:"timestamp"`
	Extra       []byte         `json:"extraData"`

	// Seal carries the engine-specific trailing fields.
	Seal Seal `json:"-"`

	// BaseFee is non-nil only for blocks at or after the EIP-1559
	// transition.
	BaseFee *big.Int `json:"baseFeePerGas" rlp:"optional"`

	// hash/bareHash are memoized on first access and invalidated by any
	// mutating setter. hash includes the seal; bareHash excludes it and is
	// the PoW input per spec.md §3.
	hash     atomic.Pointer[common.Hash]
	bareHash atomic.Pointer[common.Hash]
}

// CopyHeader produces a deep copy of the given header, with fresh (unset)
// hash memoization.
func CopyHeader(h *Header) *Header {
	cpy := *h
	cpy.hash = atomic.Pointer[common.Hash]{}
	cpy.bareHash = atomic.Pointer[common.Hash]{}
	if h.Difficulty != nil {
		cpy.Difficulty = new(big.Int).Set(h.Difficulty)
	}
	if h.Number != nil {
		cpy.Number = new(big.Int).Set(h.Number)
	}
	if h.BaseFee != nil {
		cpy.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	if len(h.Extra) > 0 {
		cpy.Extra = common.CopyBytes(h.Extra)
	}
	cpy.Seal = h.Seal.Copy()
	return &cpy
}

// resetHash invalidates the memoized hashes. Call from every setter that
// mutates a hashed field.
func (h *Header) resetHash() {
	h.hash.Store(nil)
	h.bareHash.Store(nil)
}

// SetExtra replaces the extra-data field (capped at 32 bytes per spec.md
// §3) and invalidates the memoized hash.
func (h *Header) SetExtra(extra []byte) error {
	if len(extra) > 32 {
		return ErrExtraDataTooLong
	}
	h.Extra = common.CopyBytes(extra)
	h.resetHash()
	return nil
}

// SetSeal replaces the engine-specific seal fields and invalidates both
// memoized hashes (the full hash always; the bare hash is seal-independent
// and in practice doesn't need to change, but we invalidate defensively
// since callers may also be mutating fixed fields in the same batch).
func (h *Header) SetSeal(seal Seal) {
	h.Seal = seal
	h.resetHash()
}

// Hash returns the full header hash (including the seal), memoized until
// the next mutation.
func (h *Header) Hash() common.Hash {
	if v := h.hash.Load(); v != nil {
		return *v
	}
	v := rlpHash(h)
	h.hash.Store(&v)
	return v
}

// BareHash returns the hash of the header excluding its seal — the PoW
// input per spec.md §3. Memoized separately from Hash because the seal is
// typically set after the bare hash has already been used to mine.
func (h *Header) BareHash() common.Hash {
	if v := h.bareHash.Load(); v != nil {
		return *v
	}
	bare := CopyHeader(h)
	bare.Seal = Seal{}
	v := rlpHash(bare)
	h.bareHash.Store(&v)
	return v
}

func rlpHash(x interface{}) (h common.Hash) {
	data, err := rlpEncodeToBytes(x)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(data)
}

// EmptyRootHash / EmptyUncleHash are the well-known hashes of an empty
// Merkle Patricia trie and an empty uncle list, respectively — used as
// sentinel values when validating header invariants.
var (
	EmptyRootHash  = common.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")
	EmptyUncleHash = rlpHash([]*Header(nil))
)
