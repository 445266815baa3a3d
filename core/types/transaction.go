// Copyright 2020 The go-ethereum Authors
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
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType identifies a transaction's envelope kind (spec.md §3).
type TxType byte

const (
	LegacyTxType TxType = iota
	AccessListTxType
	DynamicFeeTxType
	VectorFeeTxType
)

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storageKeys"`
}

// AccessList is an EIP-2930 access list.
type AccessList []AccessTuple

// TxData is the type-specific payload of a Transaction. Each of Legacy,
// AccessList, DynamicFee and VectorFee implements it.
type TxData interface {
	txType() TxType
	copy() TxData

	chainID() *big.Int
	accessList() AccessList
	data() []byte
	gas() uint64
	gasPrice() *big.Int
	gasTipCap() *big.Int
	gasFeeCap() *big.Int
	// effectiveGasPrice is gasFeeCap capped to baseFee+gasTipCap (or, pre
	// EIP-1559, just gasPrice): the price the transaction actually pays per
	// unit of gas once included in a block with that base fee. dst is
	// reused as scratch space so callers computing this in a hot loop
	// (block building, pool pricing) don't allocate a fresh big.Int per
	// transaction.
	effectiveGasPrice(dst *big.Int, baseFee *big.Int) *big.Int
	value() *big.Int
	nonce() uint64
	to() *common.Address

	rawSignatureValues() (v, r, s *big.Int)
	setSignatureValues(chainID, v, r, s *big.Int)

	// gasLimits, gasTipCaps and gasFeeCaps project the type's scalar (or,
	// for VectorFeeTx, genuinely vector) fee fields into the EIP-7706
	// vector shape the pool's fee-market logic is expressed against.
	gasLimits() VectorGasLimit
	gasTipCaps() VectorFeeBigint
	gasFeeCaps() VectorFeeBigint
}

// LegacyTx is the original Ethereum transaction envelope.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *LegacyTx) txType() TxType   { return LegacyTxType }
func (tx *LegacyTx) chainID() *big.Int {
	return deriveChainID(tx.V)
}
func (tx *LegacyTx) accessList() AccessList { return nil }
func (tx *LegacyTx) data() []byte           { return tx.Data }
func (tx *LegacyTx) gas() uint64            { return tx.Gas }
func (tx *LegacyTx) gasPrice() *big.Int     { return tx.GasPrice }
func (tx *LegacyTx) gasTipCap() *big.Int    { return tx.GasPrice }
func (tx *LegacyTx) gasFeeCap() *big.Int    { return tx.GasPrice }
func (tx *LegacyTx) effectiveGasPrice(dst *big.Int, baseFee *big.Int) *big.Int {
	return dst.Set(tx.GasPrice)
}
func (tx *LegacyTx) value() *big.Int        { return tx.Value }
func (tx *LegacyTx) nonce() uint64          { return tx.Nonce }
func (tx *LegacyTx) to() *common.Address    { return tx.To }
func (tx *LegacyTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *LegacyTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.V, tx.R, tx.S = v, r, s
}
func (tx *LegacyTx) copy() TxData {
	cpy := &LegacyTx{
		Nonce: tx.Nonce,
		To:    copyAddr(tx.To),
		Data:  common.CopyBytes(tx.Data),
		Gas:   tx.Gas,
	}
	cpy.GasPrice = copyBig(tx.GasPrice)
	cpy.Value = copyBig(tx.Value)
	cpy.V = copyBig(tx.V)
	cpy.R = copyBig(tx.R)
	cpy.S = copyBig(tx.S)
	return cpy
}

// AccessListTx is the EIP-2930 envelope.
type AccessListTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         *common.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *AccessListTx) txType() TxType          { return AccessListTxType }
func (tx *AccessListTx) chainID() *big.Int       { return tx.ChainID }
func (tx *AccessListTx) accessList() AccessList  { return tx.AccessList }
func (tx *AccessListTx) data() []byte            { return tx.Data }
func (tx *AccessListTx) gas() uint64             { return tx.Gas }
func (tx *AccessListTx) gasPrice() *big.Int      { return tx.GasPrice }
func (tx *AccessListTx) gasTipCap() *big.Int     { return tx.GasPrice }
func (tx *AccessListTx) gasFeeCap() *big.Int     { return tx.GasPrice }
func (tx *AccessListTx) effectiveGasPrice(dst *big.Int, baseFee *big.Int) *big.Int {
	return dst.Set(tx.GasPrice)
}
func (tx *AccessListTx) value() *big.Int         { return tx.Value }
func (tx *AccessListTx) nonce() uint64           { return tx.Nonce }
func (tx *AccessListTx) to() *common.Address     { return tx.To }
func (tx *AccessListTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *AccessListTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
func (tx *AccessListTx) copy() TxData {
	cpy := &AccessListTx{
		Nonce:      tx.Nonce,
		To:         copyAddr(tx.To),
		Data:       common.CopyBytes(tx.Data),
		Gas:        tx.Gas,
		AccessList: append(AccessList(nil), tx.AccessList...),
	}
	cpy.ChainID = copyBig(tx.ChainID)
	cpy.GasPrice = copyBig(tx.GasPrice)
	cpy.Value = copyBig(tx.Value)
	cpy.V = copyBig(tx.V)
	cpy.R = copyBig(tx.R)
	cpy.S = copyBig(tx.S)
	return cpy
}

// DynamicFeeTx is the EIP-1559 envelope.
type DynamicFeeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *common.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *DynamicFeeTx) txType() TxType         { return DynamicFeeTxType }
func (tx *DynamicFeeTx) chainID() *big.Int      { return tx.ChainID }
func (tx *DynamicFeeTx) accessList() AccessList { return tx.AccessList }
func (tx *DynamicFeeTx) data() []byte           { return tx.Data }
func (tx *DynamicFeeTx) gas() uint64            { return tx.Gas }
func (tx *DynamicFeeTx) gasPrice() *big.Int     { return tx.GasFeeCap }
func (tx *DynamicFeeTx) gasTipCap() *big.Int    { return tx.GasTipCap }
func (tx *DynamicFeeTx) gasFeeCap() *big.Int    { return tx.GasFeeCap }
func (tx *DynamicFeeTx) effectiveGasPrice(dst *big.Int, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return dst.Set(tx.GasFeeCap)
	}
	tip := dst.Sub(tx.GasFeeCap, baseFee)
	if tip.Cmp(tx.GasTipCap) > 0 {
		tip.Set(tx.GasTipCap)
	}
	return tip.Add(tip, baseFee)
}
func (tx *DynamicFeeTx) value() *big.Int        { return tx.Value }
func (tx *DynamicFeeTx) nonce() uint64          { return tx.Nonce }
func (tx *DynamicFeeTx) to() *common.Address    { return tx.To }
func (tx *DynamicFeeTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *DynamicFeeTx) setSignatureValues(chainID, v, r, s *big.Int) {
	tx.ChainID, tx.V, tx.R, tx.S = chainID, v, r, s
}
func (tx *DynamicFeeTx) copy() TxData {
	cpy := &DynamicFeeTx{
		Nonce:      tx.Nonce,
		To:         copyAddr(tx.To),
		Data:       common.CopyBytes(tx.Data),
		Gas:        tx.Gas,
		AccessList: append(AccessList(nil), tx.AccessList...),
	}
	cpy.ChainID = copyBig(tx.ChainID)
	cpy.GasTipCap = copyBig(tx.GasTipCap)
	cpy.GasFeeCap = copyBig(tx.GasFeeCap)
	cpy.Value = copyBig(tx.Value)
	cpy.V = copyBig(tx.V)
	cpy.R = copyBig(tx.R)
	cpy.S = copyBig(tx.S)
	return cpy
}

func copyAddr(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}

func copyBig(b *big.Int) *big.Int {
	if b == nil {
		return nil
	}
	return new(big.Int).Set(b)
}

// deriveChainID extracts the EIP-155 chain id embedded in a legacy
// transaction's V value, or nil for pre-EIP-155/unprotected transactions.
func deriveChainID(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	if v.BitLen() <= 8 {
		vv := v.Uint64()
		if vv == 27 || vv == 28 {
			return nil
		}
		return new(big.Int).SetUint64((vv - 35) / 2)
	}
	vv := new(big.Int).Sub(v, big.NewInt(35))
	return vv.Rsh(vv, 1)
}

// Transaction is the externally-visible, immutable typed envelope. Hash is
// memoized the same way Header's is.
type Transaction struct {
	inner TxData
	time  int64 // unix nanos at construction, used for pool FIFO/age bookkeeping

	hash atomic.Pointer[common.Hash]
	size atomic.Uint64
}

// NewTx wraps a TxData implementation in a Transaction envelope.
func NewTx(inner TxData) *Transaction {
	return &Transaction{inner: inner.copy(), time: time.Now().UnixNano()}
}

func (tx *Transaction) Type() TxType              { return tx.inner.txType() }
func (tx *Transaction) ChainId() *big.Int         { return tx.inner.chainID() }
func (tx *Transaction) Data() []byte              { return tx.inner.data() }
func (tx *Transaction) AccessList() AccessList    { return tx.inner.accessList() }
func (tx *Transaction) Gas() uint64               { return tx.inner.gas() }
func (tx *Transaction) GasPrice() *big.Int        { return new(big.Int).Set(tx.inner.gasPrice()) }
func (tx *Transaction) GasTipCap() *big.Int       { return new(big.Int).Set(tx.inner.gasTipCap()) }
func (tx *Transaction) GasFeeCap() *big.Int       { return new(big.Int).Set(tx.inner.gasFeeCap()) }
func (tx *Transaction) Value() *big.Int           { return new(big.Int).Set(tx.inner.value()) }
func (tx *Transaction) Nonce() uint64             { return tx.inner.nonce() }
func (tx *Transaction) To() *common.Address       { return copyAddr(tx.inner.to()) }
func (tx *Transaction) Time() int64               { return tx.time }

// IsCreate reports whether this transaction is a contract creation (To ==
// nil) rather than a call to an existing address, per spec.md §3.
func (tx *Transaction) IsCreate() bool { return tx.inner.to() == nil }

// Cost returns value + gas*gasFeeCap, the upper bound on what a sender
// must be able to cover (used by pool balance checks).
func (tx *Transaction) Cost() *big.Int {
	total := new(big.Int).Mul(tx.inner.gasFeeCap(), new(big.Int).SetUint64(tx.inner.gas()))
	total.Add(total, tx.inner.value())
	return total
}

// EffectiveGasTip returns min(gasTipCap, gasFeeCap-baseFee) — the
// "effective priority fee" of spec.md's glossary. If baseFee is nil the
// transaction's nominal gas price/tip is returned unclamped (pre-1559
// context).
func (tx *Transaction) EffectiveGasTip(baseFee *big.Int) (*big.Int, error) {
	if baseFee == nil {
		return tx.GasTipCap(), nil
	}
	gasFeeCap := tx.GasFeeCap()
	if gasFeeCap.Cmp(baseFee) < 0 {
		return nil, errors.New("types: gas fee cap exceeded by base fee")
	}
	gasTipCap := tx.GasTipCap()
	possibleTip := new(big.Int).Sub(gasFeeCap, baseFee)
	if possibleTip.Cmp(gasTipCap) > 0 {
		return gasTipCap, nil
	}
	return possibleTip, nil
}

// EffectiveGasTipValue is EffectiveGasTip but clamps negative results to
// zero instead of erroring — convenient for ordering code that already
// filtered out inclusion-ineligible transactions.
func (tx *Transaction) EffectiveGasTipValue(baseFee *big.Int) *big.Int {
	tip, err := tx.EffectiveGasTip(baseFee)
	if err != nil {
		return new(big.Int)
	}
	return tip
}

// RawSignatureValues returns the transaction's v, r, s signature fields.
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	return tx.inner.rawSignatureValues()
}

// Protected reports whether the transaction is replay-protected (EIP-155
// or a typed transaction, which is always protected).
func (tx *Transaction) Protected() bool {
	if lt, ok := tx.inner.(*LegacyTx); ok {
		return lt.V != nil && isProtectedV(lt.V)
	}
	return true
}

func isProtectedV(v *big.Int) bool {
	if v.BitLen() <= 8 {
		vv := v.Uint64()
		return vv != 27 && vv != 28
	}
	return true
}

// WithSignature returns a new transaction with the given signature
// applied, recovered against signer's chain rules.
func (tx *Transaction) WithSignature(signer Signer, sig []byte) (*Transaction, error) {
	r, s, v, err := signer.SignatureValues(tx, sig)
	if err != nil {
		return nil, err
	}
	cpy := tx.inner.copy()
	cpy.setSignatureValues(signer.ChainID(), v, r, s)
	return &Transaction{inner: cpy, time: tx.time}, nil
}

// Hash returns the transaction's envelope hash, memoized.
func (tx *Transaction) Hash() common.Hash {
	if v := tx.hash.Load(); v != nil {
		return *v
	}
	var h common.Hash
	if tx.Type() == LegacyTxType {
		h = rlpHash(tx.inner)
	} else {
		h = prefixedRLPHash(byte(tx.Type()), tx.inner)
	}
	tx.hash.Store(&h)
	return h
}

// Size returns the true RLP-encoded storage size of the transaction,
// memoized the same way Hash is.
func (tx *Transaction) Size() uint64 {
	if v := tx.size.Load(); v != 0 {
		return v
	}
	var buf bytes.Buffer
	if err := tx.EncodeRLP(&buf); err == nil {
		tx.size.Store(uint64(buf.Len()))
	}
	return tx.size.Load()
}

// EncodeRLP implements rlp.Encoder: legacy transactions are bare RLP
// lists; typed transactions are a single type-byte prefix followed by the
// RLP-encoded payload (spec.md §6).
func (tx *Transaction) EncodeRLP(w io.Writer) error {
	if tx.Type() == LegacyTxType {
		return rlp.Encode(w, tx.inner)
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(tx.Type()))
	if err := rlp.Encode(buf, tx.inner); err != nil {
		return err
	}
	return rlp.Encode(w, buf.Bytes())
}

// DecodeRLP implements rlp.Decoder.
func (tx *Transaction) DecodeRLP(s *rlp.Stream) error {
	kind, _, err := s.Kind()
	if err != nil {
		return err
	}
	if kind == rlp.List {
		var inner LegacyTx
		if err := s.Decode(&inner); err != nil {
			return err
		}
		tx.inner = &inner
		tx.time = time.Now().UnixNano()
		return nil
	}
	// Typed transaction: RLP string whose first byte is the type.
	var raw []byte
	if err := s.Decode(&raw); err != nil {
		return err
	}
	return tx.decodeTyped(raw)
}

func (tx *Transaction) decodeTyped(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("types: empty typed transaction")
	}
	typ := TxType(raw[0])
	var inner TxData
	switch typ {
	case AccessListTxType:
		inner = new(AccessListTx)
	case DynamicFeeTxType:
		inner = new(DynamicFeeTx)
	case VectorFeeTxType:
		inner = new(VectorFeeTx)
	default:
		return ErrTxTypeNotSupported
	}
	if err := rlp.DecodeBytes(raw[1:], inner); err != nil {
		return err
	}
	tx.inner = inner
	tx.time = time.Now().UnixNano()
	return nil
}

// UnmarshalBinary parses a transaction from its canonical wire form
// (type-byte prefix + RLP payload for typed transactions, bare RLP list
// for legacy).
func (tx *Transaction) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return errors.New("types: empty transaction")
	}
	if data[0] > 0x7f {
		var inner LegacyTx
		if err := rlp.DecodeBytes(data, &inner); err != nil {
			return err
		}
		tx.inner = &inner
		tx.time = time.Now().UnixNano()
		return nil
	}
	return tx.decodeTyped(data)
}

// MarshalBinary returns the canonical wire form of the transaction.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	if tx.Type() == LegacyTxType {
		return rlp.EncodeToBytes(tx.inner)
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(tx.Type()))
	if err := rlp.Encode(&buf, tx.inner); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func prefixedRLPHash(prefix byte, x interface{}) common.Hash {
	data, err := rlp.EncodeToBytes(x)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(append([]byte{prefix}, data...))
}

// Transactions is a list of transactions, RLP-encodable as a unit.
type Transactions []*Transaction

// Len, Swap and Less support sort.Interface; Less orders by construction
// time (priority/nonce ordering is handled by the pool instead).
func (s Transactions) Len() int      { return len(s) }
func (s Transactions) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s Transactions) Less(i, j int) bool {
	return s[i].Time() < s[j].Time()
}
