// Package types provides the multi-dimensional fee vector shape the
// EIP-7706 vector-fee transaction type (VectorFeeTx) and its pool/ordering
// collaborators are expressed against: one value per gas "kind"
// (execution, blob, calldata) rather than transaction.go's single scalar.
package types

import (
	"math/big"

	"github.com/holiman/uint256"
)

type (
	VectorFeeUint   []*uint256.Int
	VectorFeeBigint []*big.Int
	VectorGasLimit  []uint64
)

const (
	// ExecutionGasIndex represents the index for execution gas in fee vectors
	ExecutionGasIndex = iota

	// BlobGasIndex represents the index for blob gas in fee vectors
	BlobGasIndex

	// CalldataGasIndex represents the index for calldata gas in fee vectors
	CalldataGasIndex

	// VectorFeeTypesCount defines the total number of fee types supported
	VectorFeeTypesCount = 3
)

// NewVectorFeeBigInt returns a VectorFeeTypesCount-length vector of
// zero-valued, non-nil big.Ints, ready for EffectiveGasTips/
// EffectiveGasPrices to Set/Sub/Add into per dimension.
func NewVectorFeeBigInt() VectorFeeBigint {
	vec := make(VectorFeeBigint, VectorFeeTypesCount)
	for i := range vec {
		vec[i] = new(big.Int)
	}
	return vec
}
