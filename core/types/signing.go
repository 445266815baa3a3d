// Copyright 2016 The go-ethereum Authors
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
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer encapsulates the chain-rule-dependent parts of transaction signing:
// which hash gets signed, how to turn a 65-byte signature into (v, r, s),
// and how to recover the sender from them. Each typed envelope picks the
// narrowest signer that accepts it; layering (each signer embeds the one
// below and falls through for older types) mirrors the teacher's
// transaction_signing_rollup.go signer chain.
type Signer interface {
	// Sender returns the sender address of the transaction.
	Sender(tx *Transaction) (common.Address, error)

	// SignatureValues returns the raw R, S, V values corresponding to the
	// given signature.
	SignatureValues(tx *Transaction, sig []byte) (r, s, v *big.Int, err error)

	// ChainID returns the chain id this signer is bound to.
	ChainID() *big.Int

	// Hash returns the signing hash — the hash actually signed by the
	// sender's private key, which for protected/typed transactions differs
	// from Transaction.Hash (the envelope hash).
	Hash(tx *Transaction) common.Hash

	// Equal reports whether the given signer applies the same rules.
	Equal(Signer) bool
}

// homesteadSigner accepts unprotected (pre-EIP-155) legacy transactions.
type homesteadSigner struct{}

// NewHomesteadSigner returns a signer that only accepts unprotected legacy
// transactions — no chain id, no EIP-2930/1559 envelopes.
func NewHomesteadSigner() Signer { return homesteadSigner{} }

func (s homesteadSigner) ChainID() *big.Int { return nil }

func (s homesteadSigner) Equal(s2 Signer) bool {
	_, ok := s2.(homesteadSigner)
	return ok
}

func (s homesteadSigner) Hash(tx *Transaction) common.Hash {
	lt, ok := tx.inner.(*LegacyTx)
	if !ok {
		panic("homesteadSigner: not a legacy transaction")
	}
	return rlpHash([]interface{}{
		lt.Nonce,
		lt.GasPrice,
		lt.Gas,
		lt.To,
		lt.Value,
		lt.Data,
	})
}

func (s homesteadSigner) Sender(tx *Transaction) (common.Address, error) {
	if tx.Type() != LegacyTxType {
		return common.Address{}, ErrTxTypeNotSupported
	}
	v, r, sVal := tx.RawSignatureValues()
	if v == nil {
		return common.Address{}, ErrInvalidSig
	}
	return recoverPlain(s.Hash(tx), r, sVal, new(big.Int).Sub(v, big.NewInt(27)), true)
}

func (s homesteadSigner) SignatureValues(tx *Transaction, sig []byte) (r, sVal, v *big.Int, err error) {
	if tx.Type() != LegacyTxType {
		return nil, nil, nil, ErrTxTypeNotSupported
	}
	r, sVal, vv := decodeSignature(sig)
	v = new(big.Int).Add(vv, big.NewInt(27))
	return r, sVal, v, nil
}

// eip155Signer accepts legacy transactions, protected or not, binding
// protected ones to a chain id per EIP-155.
type eip155Signer struct {
	chainId, chainIdMul *big.Int
}

// NewEIP155Signer returns a signer that accepts both protected and
// unprotected legacy transactions, validating the embedded chain id of
// protected ones against chainId.
func NewEIP155Signer(chainId *big.Int) Signer {
	if chainId == nil {
		chainId = new(big.Int)
	}
	return eip155Signer{chainId: chainId, chainIdMul: new(big.Int).Mul(chainId, big.NewInt(2))}
}

func (s eip155Signer) ChainID() *big.Int { return s.chainId }

func (s eip155Signer) Equal(s2 Signer) bool {
	x, ok := s2.(eip155Signer)
	return ok && x.chainId.Cmp(s.chainId) == 0
}

func (s eip155Signer) Hash(tx *Transaction) common.Hash {
	lt, ok := tx.inner.(*LegacyTx)
	if !ok {
		panic("eip155Signer: not a legacy transaction")
	}
	return rlpHash([]interface{}{
		lt.Nonce,
		lt.GasPrice,
		lt.Gas,
		lt.To,
		lt.Value,
		lt.Data,
		s.chainId, uint(0), uint(0),
	})
}

func (s eip155Signer) Sender(tx *Transaction) (common.Address, error) {
	if tx.Type() != LegacyTxType {
		return common.Address{}, ErrTxTypeNotSupported
	}
	if !tx.Protected() {
		return homesteadSigner{}.Sender(tx)
	}
	v, r, sVal := tx.RawSignatureValues()
	if tx.ChainId() == nil || tx.ChainId().Cmp(s.chainId) != 0 {
		return common.Address{}, fmt.Errorf("%w: have %d want %d", ErrInvalidChainId, tx.ChainId(), s.chainId)
	}
	vv := new(big.Int).Sub(v, s.chainIdMul)
	vv.Sub(vv, big.NewInt(35))
	return recoverPlain(s.Hash(tx), r, sVal, vv, true)
}

func (s eip155Signer) SignatureValues(tx *Transaction, sig []byte) (r, sVal, v *big.Int, err error) {
	if tx.Type() != LegacyTxType {
		return nil, nil, nil, ErrTxTypeNotSupported
	}
	r, sVal, vv := decodeSignature(sig)
	if s.chainId.Sign() != 0 {
		v = big.NewInt(int64(vv.Uint64() + 35))
		v.Add(v, s.chainIdMul)
	} else {
		v = new(big.Int).Add(vv, big.NewInt(27))
	}
	return r, sVal, v, nil
}

// eip2930Signer accepts legacy (EIP-155-protected) and EIP-2930 access-list
// transactions, falling through to eip155Signer for the former.
type eip2930Signer struct{ eip155Signer }

// NewEIP2930Signer returns a signer that additionally accepts EIP-2930
// access-list transactions.
func NewEIP2930Signer(chainId *big.Int) Signer {
	return eip2930Signer{NewEIP155Signer(chainId).(eip155Signer)}
}

func (s eip2930Signer) ChainID() *big.Int { return s.chainId }

func (s eip2930Signer) Equal(s2 Signer) bool {
	x, ok := s2.(eip2930Signer)
	return ok && x.chainId.Cmp(s.chainId) == 0
}

func (s eip2930Signer) Sender(tx *Transaction) (common.Address, error) {
	if tx.Type() != AccessListTxType {
		return s.eip155Signer.Sender(tx)
	}
	v, r, sVal := tx.RawSignatureValues()
	if tx.ChainId().Cmp(s.chainId) != 0 {
		return common.Address{}, fmt.Errorf("%w: have %d want %d", ErrInvalidChainId, tx.ChainId(), s.chainId)
	}
	return recoverPlain(s.Hash(tx), r, sVal, v, true)
}

func (s eip2930Signer) SignatureValues(tx *Transaction, sig []byte) (r, sVal, v *big.Int, err error) {
	alt, ok := tx.inner.(*AccessListTx)
	if !ok {
		return s.eip155Signer.SignatureValues(tx, sig)
	}
	if alt.ChainID.Sign() != 0 && alt.ChainID.Cmp(s.chainId) != 0 {
		return nil, nil, nil, fmt.Errorf("%w: have %d want %d", ErrInvalidChainId, alt.ChainID, s.chainId)
	}
	r, sVal, v = decodeSignature(sig)
	return r, sVal, v, nil
}

func (s eip2930Signer) Hash(tx *Transaction) common.Hash {
	if tx.Type() != AccessListTxType {
		return s.eip155Signer.Hash(tx)
	}
	return prefixedRLPHash(byte(AccessListTxType), []interface{}{
		s.chainId,
		tx.Nonce(),
		tx.GasPrice(),
		tx.Gas(),
		tx.inner.(*AccessListTx).To,
		tx.Value(),
		tx.Data(),
		tx.AccessList(),
	})
}

// londonSigner accepts legacy, EIP-2930 and EIP-1559 dynamic-fee
// transactions, falling through to eip2930Signer for the former two.
type londonSigner struct{ eip2930Signer }

// NewLondonSigner returns a signer that additionally accepts EIP-1559
// dynamic-fee transactions.
func NewLondonSigner(chainId *big.Int) Signer {
	return londonSigner{NewEIP2930Signer(chainId).(eip2930Signer)}
}

func (s londonSigner) ChainID() *big.Int { return s.chainId }

func (s londonSigner) Equal(s2 Signer) bool {
	x, ok := s2.(londonSigner)
	return ok && x.chainId.Cmp(s.chainId) == 0
}

func (s londonSigner) Sender(tx *Transaction) (common.Address, error) {
	if tx.Type() != DynamicFeeTxType {
		return s.eip2930Signer.Sender(tx)
	}
	v, r, sVal := tx.RawSignatureValues()
	if tx.ChainId().Cmp(s.chainId) != 0 {
		return common.Address{}, fmt.Errorf("%w: have %d want %d", ErrInvalidChainId, tx.ChainId(), s.chainId)
	}
	return recoverPlain(s.Hash(tx), r, sVal, v, true)
}

func (s londonSigner) SignatureValues(tx *Transaction, sig []byte) (r, sVal, v *big.Int, err error) {
	dft, ok := tx.inner.(*DynamicFeeTx)
	if !ok {
		return s.eip2930Signer.SignatureValues(tx, sig)
	}
	if dft.ChainID.Sign() != 0 && dft.ChainID.Cmp(s.chainId) != 0 {
		return nil, nil, nil, fmt.Errorf("%w: have %d want %d", ErrInvalidChainId, dft.ChainID, s.chainId)
	}
	r, sVal, v = decodeSignature(sig)
	return r, sVal, v, nil
}

func (s londonSigner) Hash(tx *Transaction) common.Hash {
	if tx.Type() != DynamicFeeTxType {
		return s.eip2930Signer.Hash(tx)
	}
	dft := tx.inner.(*DynamicFeeTx)
	return prefixedRLPHash(byte(DynamicFeeTxType), []interface{}{
		s.chainId,
		dft.Nonce,
		dft.GasTipCap,
		dft.GasFeeCap,
		dft.Gas,
		dft.To,
		dft.Value,
		dft.Data,
		dft.AccessList,
	})
}

// LatestSigner returns the most permissive signer — the one accepting
// every envelope kind this package knows — bound to chainId. Callers that
// don't track the active fork use this.
func LatestSigner(chainId *big.Int) Signer {
	return NewVectorFeeSigner(chainId)
}

// decodeSignature splits a 65-byte [R || S || V] signature into its three
// big.Int components. V is the raw recovery id (0 or 1), not yet adjusted
// for any chain-id offset — callers apply the offset appropriate to their
// envelope.
func decodeSignature(sig []byte) (r, s, v *big.Int) {
	if len(sig) != 65 {
		panic(fmt.Sprintf("wrong size for signature: got %d, want 65", len(sig)))
	}
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64]})
	return r, s, v
}

// recoverPlain recovers the sender address from a signing hash and its
// (r, s, v) components. homestead controls whether S values above
// secp256k1's half order are rejected (EIP-2, active from Homestead on).
func recoverPlain(sighash common.Hash, r, s, v *big.Int, homestead bool) (common.Address, error) {
	if r == nil || s == nil || v == nil {
		return common.Address{}, ErrInvalidSig
	}
	if !crypto.ValidateSignatureValues(byte(v.Uint64()), r, s, homestead) {
		return common.Address{}, ErrInvalidSig
	}
	sig := make([]byte, 65)
	rBytes, sBytes := r.Bytes(), s.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(v.Uint64())

	pub, err := crypto.Ecrecover(sighash[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	if len(pub) == 0 || pub[0] != 4 {
		return common.Address{}, errors.New("types: invalid public key")
	}
	var addr common.Address
	copy(addr[:], crypto.Keccak256(pub[1:])[12:])
	return addr, nil
}

// Sender returns the address derived from the transaction's signature
// under the given signer. Unlike Signer.Sender it has no receiver-typed
// fast path and is the entry point callers outside this package use.
func Sender(signer Signer, tx *Transaction) (common.Address, error) {
	return signer.Sender(tx)
}
