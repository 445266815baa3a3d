// Copyright 2023 The go-ethereum Authors
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

package txpool

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/openethereum-go/corechain/core/types"
)

// Gas accounting constants for intrinsicGas: the standard per-transaction,
// per-calldata-byte and per-access-list-entry charges. The module has no
// params package of its own, so they are declared here.
const (
	txGas                    uint64 = 21000
	txGasContractCreation    uint64 = 53000
	txDataZeroGas            uint64 = 4
	txDataNonZeroGasFrontier uint64 = 68
	txDataNonZeroGasEIP2028  uint64 = 16
	txAccessListAddressGas   uint64 = 2400
	txAccessListStorageGas   uint64 = 1900
)

// intrinsicGas computes the gas a transaction must reserve before any EVM
// execution begins: a flat per-transaction charge, a per-byte charge for its
// calldata, and a per-entry charge for its access list.
func intrinsicGas(data []byte, accessList types.AccessList, isContractCreation, isIstanbul bool) (uint64, error) {
	gas := txGas
	if isContractCreation {
		gas = txGasContractCreation
	}
	if length := len(data); length > 0 {
		var nz uint64
		for _, b := range data {
			if b != 0 {
				nz++
			}
		}
		nonZeroGas := txDataNonZeroGasFrontier
		if isIstanbul {
			nonZeroGas = txDataNonZeroGasEIP2028
		}
		if (math.MaxUint64-gas)/nonZeroGas < nz {
			return 0, ErrGasLimit
		}
		gas += nz * nonZeroGas

		z := uint64(length) - nz
		if (math.MaxUint64-gas)/txDataZeroGas < z {
			return 0, ErrGasLimit
		}
		gas += z * txDataZeroGas
	}
	if accessList != nil {
		gas += uint64(len(accessList)) * txAccessListAddressGas
		for _, tuple := range accessList {
			gas += uint64(len(tuple.StorageKeys)) * txAccessListStorageGas
		}
	}
	return gas, nil
}

// ValidationOptions capture the differences in stateless validation between
// subpools, so the check itself need not be duplicated across them.
type ValidationOptions struct {
	Config *gethparams.ChainConfig

	Accept  uint8        // bitmap of tx types the calling pool accepts, indexed by types.TxType
	MaxSize uint64       // maximum size of a transaction the caller can meaningfully handle
	MinTip  *uint256.Int // minimum tip required to enter the calling pool
}

// ValidateTransaction checks whether tx is valid per consensus rules, without
// checking any state-dependent validation (balance, nonce, overdraft). It's
// exported so every subpool can share one implementation instead of risking
// drift between near-identical copies.
func ValidateTransaction(tx *types.Transaction, head *types.Header, signer types.Signer, opts *ValidationOptions) error {
	if opts.Accept&(1<<uint(tx.Type())) == 0 {
		return fmt.Errorf("%w: tx type %v not supported by this pool", ErrTxTypeNotSupported, tx.Type())
	}
	if tx.Size() > opts.MaxSize {
		return fmt.Errorf("%w: transaction size %v, limit %v", ErrOversizedData, tx.Size(), opts.MaxSize)
	}
	if tx.Value().Sign() < 0 {
		return ErrNegativeValue
	}
	if head.GasLimit < tx.Gas() {
		return ErrGasLimit
	}
	if tx.GasFeeCap().BitLen() > 256 {
		return ErrFeeCapVeryHigh
	}
	if tx.GasTipCap().BitLen() > 256 {
		return ErrTipVeryHigh
	}
	if tx.GasFeeCap().Cmp(tx.GasTipCap()) < 0 {
		return ErrTipAboveFeeCap
	}
	if tx.IsCreate() && len(tx.Data()) > gethparams.MaxInitCodeSize {
		return fmt.Errorf("%w: code size %v, limit %v", ErrMaxInitCodeSizeExceeded, len(tx.Data()), gethparams.MaxInitCodeSize)
	}
	if _, err := types.Sender(signer, tx); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	isIstanbul := opts.Config == nil || opts.Config.IsIstanbul(head.Number)
	needed, err := intrinsicGas(tx.Data(), tx.AccessList(), tx.IsCreate(), isIstanbul)
	if err != nil {
		return err
	}
	if tx.Gas() < needed {
		return fmt.Errorf("%w: needed %v, allowed %v", ErrOversizedData, needed, tx.Gas())
	}
	if opts.MinTip != nil && tx.GasTipCap().Cmp(opts.MinTip.ToBig()) < 0 {
		return fmt.Errorf("%w: tip needed %v, tip permitted %v", ErrUnderpriced, opts.MinTip, tx.GasTipCap())
	}
	return nil
}

// ValidationOptionsWithState captures the differences in stateful validation
// (nonce, balance, overdraft) between subpools.
type ValidationOptionsWithState struct {
	State StateReader

	// FirstNonceGap, when set, forbids a transaction that would leave a gap
	// below the first already-queued nonce for its sender. Nil permits gaps.
	FirstNonceGap func(addr common.Address) uint64

	// ExistingExpenditure returns the cumulative cost of the sender's
	// already-pooled transactions, excluding the one at the nonce below.
	ExistingExpenditure func(addr common.Address) *big.Int

	// ExistingCost returns the cost of an already-pooled transaction at the
	// given nonce, or nil if there isn't one — used to detect a replacement
	// rather than a pure addition.
	ExistingCost func(addr common.Address, nonce uint64) *big.Int
}

// ValidateTransactionWithState checks nonce ordering, sender balance and
// overdraft protection against the given state snapshot.
func ValidateTransactionWithState(tx *types.Transaction, signer types.Signer, opts *ValidationOptionsWithState) error {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	next := opts.State.GetNonce(from)
	if next > tx.Nonce() {
		return fmt.Errorf("%w: next nonce %v, tx nonce %v", ErrNonceTooLow, next, tx.Nonce())
	}
	if opts.FirstNonceGap != nil {
		if gap := opts.FirstNonceGap(from); gap < tx.Nonce() {
			return fmt.Errorf("%w: tx nonce %v, gapped nonce %v", ErrNonceTooHigh, tx.Nonce(), gap)
		}
	}
	balance := opts.State.GetBalance(from).ToBig()
	cost := tx.Cost()
	if balance.Cmp(cost) < 0 {
		return fmt.Errorf("%w: balance %v, tx cost %v", ErrInsufficientFunds, balance, cost)
	}
	spent := opts.ExistingExpenditure(from)
	if prev := opts.ExistingCost(from, tx.Nonce()); prev != nil {
		bump := new(big.Int).Sub(cost, prev)
		need := new(big.Int).Add(spent, bump)
		if balance.Cmp(need) < 0 {
			return fmt.Errorf("%w: balance %v, queued cost %v, bump %v", ErrInsufficientFunds, balance, spent, bump)
		}
	} else {
		need := new(big.Int).Add(spent, cost)
		if balance.Cmp(need) < 0 {
			return fmt.Errorf("%w: balance %v, queued cost %v, tx cost %v", ErrInsufficientFunds, balance, spent, cost)
		}
	}
	return nil
}
