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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Log is one entry of a transaction's execution log, fed into the block's
// log bloom filter and surfaced by the receipts RPC surface.
type Log struct {
	// Consensus fields, part of the RLP-encoded form that goes into the
	// receipt trie.
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    []byte         `json:"data"`

	// Derived fields, filled in by the executive after execution and not
	// part of consensus encoding.
	BlockNumber uint64      `json:"blockNumber"`
	TxHash      common.Hash `json:"transactionHash"`
	TxIndex     uint        `json:"transactionIndex"`
	BlockHash   common.Hash `json:"blockHash"`
	Index       uint        `json:"logIndex"`
	Removed     bool        `json:"removed"`
}

// rlpLog is the consensus-encoded subset of Log, used by EncodeRLP/DecodeRLP
// so the derived fields never leak into the receipt trie or the wire form.
type rlpLog struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// EncodeRLP implements rlp.Encoder, restricting the wire form to the
// consensus fields — the derived fields are reconstructed by the caller
// from the enclosing receipt/block context on decode.
func (l *Log) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, rlpLog{Address: l.Address, Topics: l.Topics, Data: l.Data})
}

// DecodeRLP implements rlp.Decoder.
func (l *Log) DecodeRLP(s *rlp.Stream) error {
	var dec rlpLog
	if err := s.Decode(&dec); err != nil {
		return err
	}
	l.Address, l.Topics, l.Data = dec.Address, dec.Topics, dec.Data
	return nil
}
