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

package types

import (
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// Body is a block's non-header content: its transactions and uncle
// headers. Decoded independently of the header on the wire (`GetBlockBodies`
// / spec.md §6 "Wire protocol").
type Body struct {
	Transactions []*Transaction
	Uncles       []*Header
}

// Block ties a header to its body. Immutable once constructed; callers
// that need to mutate start from a fresh Header/Body pair. Mirrors the
// header's own memoization discipline for its own derived hash (which is
// just the header hash, but cached here too so repeated Block.Hash calls
// don't re-walk the header's atomic.Pointer indirection).
type Block struct {
	header       *Header
	transactions Transactions
	uncles       []*Header

	hash atomic.Pointer[common.Hash]
	size atomic.Uint64
}

// NewBlockWithHeader creates a block with the given header and no body.
// WithBody attaches transactions/uncles afterward.
func NewBlockWithHeader(header *Header) *Block {
	return &Block{header: CopyHeader(header)}
}

// WithBody returns a new block with the given transactions and uncles,
// sharing this block's header.
func (b *Block) WithBody(transactions []*Transaction, uncles []*Header) *Block {
	block := &Block{
		header:       b.header,
		transactions: make(Transactions, len(transactions)),
		uncles:       make([]*Header, len(uncles)),
	}
	copy(block.transactions, transactions)
	for i := range uncles {
		block.uncles[i] = CopyHeader(uncles[i])
	}
	return block
}

func (b *Block) Header() *Header             { return CopyHeader(b.header) }
func (b *Block) Transactions() Transactions   { return b.transactions }
func (b *Block) Uncles() []*Header            { return b.uncles }
func (b *Block) Body() *Body                  { return &Body{Transactions: b.transactions, Uncles: b.uncles} }
func (b *Block) Number() *big.Int             { return new(big.Int).Set(b.header.Number) }
func (b *Block) GasLimit() uint64             { return b.header.GasLimit }
func (b *Block) GasUsed() uint64              { return b.header.GasUsed }
func (b *Block) Difficulty() *big.Int         { return new(big.Int).Set(b.header.Difficulty) }
func (b *Block) Time() uint64                 { return b.header.Time }
func (b *Block) ParentHash() common.Hash      { return b.header.ParentHash }
func (b *Block) Coinbase() common.Address     { return b.header.Coinbase }
func (b *Block) Root() common.Hash            { return b.header.Root }
func (b *Block) ReceiptHash() common.Hash     { return b.header.ReceiptHash }
func (b *Block) TxHash() common.Hash          { return b.header.TxHash }
func (b *Block) Bloom() Bloom                 { return b.header.Bloom }
func (b *Block) BaseFee() *big.Int {
	if b.header.BaseFee == nil {
		return nil
	}
	return new(big.Int).Set(b.header.BaseFee)
}

// Size returns the true RLP-encoded size of the block, memoized on first
// computation (either by DecodeRLP, which already knows the list length
// the stream reported, or lazily here by self-encoding).
func (b *Block) Size() uint64 {
	if v := b.size.Load(); v != 0 {
		return v
	}
	var buf countingWriter
	if err := b.EncodeRLP(&buf); err == nil {
		b.size.Store(uint64(buf))
	}
	return b.size.Load()
}

// countingWriter discards bytes but counts them, avoiding a full-size
// buffer allocation just to measure an encoding.
type countingWriter uint64

func (c *countingWriter) Write(p []byte) (int, error) {
	*c += countingWriter(len(p))
	return len(p), nil
}

// Hash returns the block's canonical hash — the hash of its header.
// Memoized separately from the header's own memoization so repeated calls
// on the same Block value avoid the atomic.Pointer load in CopyHeader.
func (b *Block) Hash() common.Hash {
	if v := b.hash.Load(); v != nil {
		return *v
	}
	v := b.header.Hash()
	b.hash.Store(&v)
	return v
}
