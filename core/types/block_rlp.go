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
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// extblock is the on-the-wire shape of a Block: a 3-tuple of header,
// transactions and uncle headers, matching the `block_rlp` payload carried
// inside a `NewBlock` packet (spec.md §6 "Wire protocol").
type extblock struct {
	Header *Header
	Txs    []*Transaction
	Uncles []*Header
}

// EncodeRLP implements rlp.Encoder.
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, extblock{Header: b.header, Txs: b.transactions, Uncles: b.uncles})
}

// DecodeRLP implements rlp.Decoder.
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	var eb extblock
	_, size, _ := s.Kind()
	if err := s.Decode(&eb); err != nil {
		return err
	}
	b.header, b.transactions, b.uncles = eb.Header, eb.Txs, eb.Uncles
	b.size.Store(rlp.ListSize(size))
	return nil
}
