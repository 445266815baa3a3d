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
	"bytes"
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	// ReceiptStatusFailed is the status code of a transaction whose
	// execution the EVM aborted.
	ReceiptStatusFailed = uint64(0)
	// ReceiptStatusSuccessful is the status code of a transaction whose
	// execution the EVM completed without reverting.
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is the outcome of running one transaction against the state at
// its point in the block (spec.md §6 `block_receipts`). Pre-Byzantium
// receipts carry an intermediate state root instead of a status code; both
// forms are supported, distinguished by len(PostState).
type Receipt struct {
	// Consensus fields, encoded to the receipt trie.
	Type              TxType `json:"type,omitempty"`
	PostState         []byte `json:"root"`
	Status            uint64 `json:"status"`
	CumulativeGasUsed uint64 `json:"cumulativeGasUsed"`
	Bloom             Bloom  `json:"logsBloom"`
	Logs              []*Log `json:"logs"`

	// Derived fields, not part of consensus, filled in by the caller after
	// construction.
	TxHash          common.Hash    `json:"transactionHash"`
	ContractAddress common.Address `json:"contractAddress"`
	GasUsed         uint64         `json:"gasUsed"`
	BlockHash       common.Hash    `json:"blockHash"`
	BlockNumber     uint64         `json:"blockNumber"`
	TransactionIndex uint          `json:"transactionIndex"`
}

// NewReceipt creates a pre-Byzantium receipt carrying an intermediate state
// root. Post-Byzantium callers should build the status form directly and
// set Status instead.
func NewReceipt(root []byte, failed bool, cumulativeGasUsed uint64) *Receipt {
	r := &Receipt{PostState: common.CopyBytes(root), CumulativeGasUsed: cumulativeGasUsed}
	if failed {
		r.Status = ReceiptStatusFailed
	} else {
		r.Status = ReceiptStatusSuccessful
	}
	return r
}

// statusEncoding reports whether this receipt uses the post-Byzantium
// status-code encoding rather than the legacy intermediate-root encoding.
func (r *Receipt) statusEncoding() bool { return len(r.PostState) == 0 }

// rlpReceipt mirrors the consensus-encoded subset of Receipt. PostStateOrStatus
// holds either the 32-byte intermediate root or the single-byte status code,
// matching go-ethereum's on-the-wire receipt shape.
type rlpReceipt struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log
}

func (r *Receipt) toRLP() rlpReceipt {
	var psos []byte
	if r.statusEncoding() {
		if r.Status == ReceiptStatusFailed {
			psos = []byte{}
		} else {
			psos = []byte{1}
		}
	} else {
		psos = r.PostState
	}
	return rlpReceipt{PostStateOrStatus: psos, CumulativeGasUsed: r.CumulativeGasUsed, Bloom: r.Bloom, Logs: r.Logs}
}

func (r *Receipt) fromRLP(dec rlpReceipt) error {
	switch len(dec.PostStateOrStatus) {
	case 0:
		r.Status = ReceiptStatusFailed
	case 1:
		r.Status = ReceiptStatusSuccessful
	case 32:
		r.PostState = dec.PostStateOrStatus
	default:
		return errors.New("types: invalid receipt status/root encoding")
	}
	r.CumulativeGasUsed = dec.CumulativeGasUsed
	r.Bloom = dec.Bloom
	r.Logs = dec.Logs
	return nil
}

// EncodeRLP implements rlp.Encoder. Legacy receipts are bare RLP lists;
// typed receipts are type-byte-prefixed, mirroring Transaction's envelope
// (spec.md §6 "Block/transaction format" applies equally to receipts).
func (r *Receipt) EncodeRLP(w io.Writer) error {
	data := r.toRLP()
	if r.Type == LegacyTxType {
		return rlp.Encode(w, data)
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(r.Type))
	if err := rlp.Encode(buf, data); err != nil {
		return err
	}
	return rlp.Encode(w, buf.Bytes())
}

// DecodeRLP implements rlp.Decoder.
func (r *Receipt) DecodeRLP(s *rlp.Stream) error {
	kind, _, err := s.Kind()
	if err != nil {
		return err
	}
	if kind == rlp.List {
		var dec rlpReceipt
		if err := s.Decode(&dec); err != nil {
			return err
		}
		r.Type = LegacyTxType
		return r.fromRLP(dec)
	}
	var raw []byte
	if err := s.Decode(&raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return errors.New("types: empty typed receipt")
	}
	typ := TxType(raw[0])
	if typ != AccessListTxType && typ != DynamicFeeTxType {
		return ErrTxTypeNotSupported
	}
	var dec rlpReceipt
	if err := rlp.DecodeBytes(raw[1:], &dec); err != nil {
		return err
	}
	r.Type = typ
	return r.fromRLP(dec)
}

// Receipts is a list of receipts, RLP-encodable as a unit and usable to
// derive the receipts-root via a Merkle-Patricia trie built by the
// persisted-state collaborator (spec.md §6, "treated as opaque
// collaborator").
type Receipts []*Receipt

func (rs Receipts) Len() int { return len(rs) }

// EncodeIndex encodes the i'th receipt for insertion into the receipts
// trie: the trie key is the RLP of the index, the value this encoding.
func (rs Receipts) EncodeIndex(i int, w *bytes.Buffer) {
	r := rs[i]
	if err := r.EncodeRLP(w); err != nil {
		panic(err)
	}
}

// SetBloom derives the receipt's Bloom from its logs, assuming Logs is
// already populated by the executive. Kept separate from construction
// because the bloom depends on all logs being finalized first.
func (r *Receipt) SetBloom() {
	r.Bloom = CreateBloom(Receipts{r})
}

// CreateBloom computes the logs bloom for a set of receipts the way the
// block header's Bloom field is populated (spec.md §3 "log-bloom").
func CreateBloom(receipts Receipts) Bloom {
	var bin Bloom
	for _, receipt := range receipts {
		for _, log := range receipt.Logs {
			bloomAdd(&bin, log.Address.Bytes())
			for _, topic := range log.Topics {
				bloomAdd(&bin, topic.Bytes())
			}
		}
	}
	return bin
}

// bloomAdd sets the three bits the Ethereum bloom filter scheme derives
// from the Keccak256 hash of data, per the addition rule in the Yellow
// Paper (lowest 11 bits of three non-overlapping 2-byte windows of the
// hash select bit positions in the 2048-bit filter).
func bloomAdd(b *Bloom, data []byte) {
	hash := crypto.Keccak256(data)
	for i := 0; i < 3; i++ {
		bitIndex := (uint(hash[i*2])<<8 | uint(hash[i*2+1])) & 2047
		b[BloomByteLength-1-bitIndex/8] |= 1 << (bitIndex % 8)
	}
}
