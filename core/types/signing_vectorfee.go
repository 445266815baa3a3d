package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// vectorFeeSigner extends londonSigner with support for VectorFeeTxType
// envelopes, following the same chain-of-responsibility shape as the other
// typed signers in this file: a type it doesn't recognize falls through to
// the signer embedded beneath it.
type vectorFeeSigner struct{ londonSigner }

// NewVectorFeeSigner returns a signer that additionally accepts vector-fee
// transactions, alongside everything londonSigner accepts.
func NewVectorFeeSigner(chainId *big.Int) Signer {
	return vectorFeeSigner{NewLondonSigner(chainId).(londonSigner)}
}

func (s vectorFeeSigner) ChainID() *big.Int { return s.chainId }

func (s vectorFeeSigner) Equal(s2 Signer) bool {
	x, ok := s2.(vectorFeeSigner)
	return ok && x.chainId.Cmp(s.chainId) == 0
}

func (s vectorFeeSigner) Sender(tx *Transaction) (common.Address, error) {
	if tx.Type() != VectorFeeTxType {
		return s.londonSigner.Sender(tx)
	}
	v, r, sVal := tx.RawSignatureValues()
	if tx.ChainId().Cmp(s.chainId) != 0 {
		return common.Address{}, fmt.Errorf("%w: have %d want %d", ErrInvalidChainId, tx.ChainId(), s.chainId)
	}
	return recoverPlain(s.Hash(tx), r, sVal, v, true)
}

func (s vectorFeeSigner) SignatureValues(tx *Transaction, sig []byte) (r, sVal, v *big.Int, err error) {
	vft, ok := tx.inner.(*VectorFeeTx)
	if !ok {
		return s.londonSigner.SignatureValues(tx, sig)
	}
	if vft.ChainID != nil && vft.ChainID.Sign() != 0 && vft.ChainID.ToBig().Cmp(s.chainId) != 0 {
		return nil, nil, nil, fmt.Errorf("%w: have %d want %d", ErrInvalidChainId, vft.ChainID, s.chainId)
	}
	r, sVal, v = decodeSignature(sig)
	return r, sVal, v, nil
}

func (s vectorFeeSigner) Hash(tx *Transaction) common.Hash {
	if tx.Type() != VectorFeeTxType {
		return s.londonSigner.Hash(tx)
	}
	vft := tx.inner.(*VectorFeeTx)
	return prefixedRLPHash(byte(VectorFeeTxType), []interface{}{
		s.chainId,
		vft.Nonce,
		vft.GasTipCaps,
		vft.GasFeeCaps,
		vft.Gas,
		vft.To,
		vft.Value,
		vft.Data,
		vft.AccessList,
	})
}
