// Contains vector-fee shaped implementations for the legacy, access-list and
// dynamic-fee transaction kinds: each projects its scalar gas/price fields
// into the three-slot (execution, blob, calldata) VectorGasLimit/
// VectorFeeBigint shape, with zero in the blob slot, so
// callers working against the EIP-7706 vector view don't need a type switch.
package types

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

func (tx *LegacyTx) calldataGas() uint64 {
	zeroBytes := bytes.Count(tx.Data, []byte{0x00})
	nonZeroBytes := len(tx.Data) - zeroBytes
	tokens := uint64(zeroBytes) + uint64(nonZeroBytes)*params.CalldataTokensPerNonZeroByte

	return tokens * params.CalldataGasPerToken
}

func (tx *LegacyTx) gasLimits() VectorGasLimit {
	return VectorGasLimit{tx.Gas, 0, tx.calldataGas()}
}

func (tx *LegacyTx) gasTipCaps() VectorFeeBigint {
	return VectorFeeBigint{tx.GasPrice, big.NewInt(0), tx.GasPrice}
}

func (tx *LegacyTx) gasFeeCaps() VectorFeeBigint {
	return VectorFeeBigint{tx.GasPrice, big.NewInt(0), tx.GasPrice}
}

func (tx *AccessListTx) calldataGas() uint64 {
	zeroBytes := bytes.Count(tx.Data, []byte{0x00})
	nonZeroBytes := len(tx.Data) - zeroBytes
	tokens := uint64(zeroBytes) + uint64(nonZeroBytes)*params.CalldataTokensPerNonZeroByte

	return tokens * params.CalldataGasPerToken
}

func (tx *AccessListTx) gasLimits() VectorGasLimit {
	return VectorGasLimit{tx.Gas, 0, tx.calldataGas()}
}

func (tx *AccessListTx) gasTipCaps() VectorFeeBigint {
	return VectorFeeBigint{tx.GasPrice, big.NewInt(0), tx.GasPrice}
}

func (tx *AccessListTx) gasFeeCaps() VectorFeeBigint {
	return VectorFeeBigint{tx.GasPrice, big.NewInt(0), tx.GasPrice}
}

func (tx *DynamicFeeTx) calldataGas() uint64 {
	zeroBytes := bytes.Count(tx.Data, []byte{0x00})
	nonZeroBytes := len(tx.Data) - zeroBytes
	tokens := uint64(zeroBytes) + uint64(nonZeroBytes)*params.CalldataTokensPerNonZeroByte

	return tokens * params.CalldataGasPerToken
}

func (tx *DynamicFeeTx) gasLimits() VectorGasLimit {
	return VectorGasLimit{tx.Gas, 0, tx.calldataGas()}
}

func (tx *DynamicFeeTx) gasTipCaps() VectorFeeBigint {
	return VectorFeeBigint{tx.GasTipCap, big.NewInt(0), tx.GasTipCap}
}

func (tx *DynamicFeeTx) gasFeeCaps() VectorFeeBigint {
	return VectorFeeBigint{tx.GasFeeCap, big.NewInt(0), tx.GasFeeCap}
}
