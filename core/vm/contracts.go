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

package vm

import (
	"crypto/sha256"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	bn256 "github.com/ethereum/go-ethereum/crypto/bn256/cloudflare"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160"

	"github.com/openethereum-go/corechain/crypto/secp256r1"
)

// PrecompiledContract is a stateless builtin: it costs RequiredGas(input)
// gas and returns Run(input)'s output, never touching StateDB or the call
// stack (spec.md §4.A "Precompiled contracts").
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// PrecompiledContracts maps a fixed address to the builtin living there.
type PrecompiledContracts map[common.Address]PrecompiledContract

var (
	ecrecoverAddr    = common.BytesToAddress([]byte{1})
	sha256hashAddr   = common.BytesToAddress([]byte{2})
	ripemd160hashAddr = common.BytesToAddress([]byte{3})
	dataCopyAddr     = common.BytesToAddress([]byte{4})
	bigModExpAddr    = common.BytesToAddress([]byte{5})
	bn256AddAddr     = common.BytesToAddress([]byte{6})
	bn256ScalarMulAddr = common.BytesToAddress([]byte{7})
	bn256PairingAddr = common.BytesToAddress([]byte{8})
	blake2FAddr      = common.BytesToAddress([]byte{9})
	p256VerifyAddr   = common.BytesToAddress([]byte{0x01, 0x00})
)

// precompiledContractsHomestead is the original four: signature recovery
// and three fixed-function hashes/copies.
var precompiledContractsHomestead = PrecompiledContracts{
	ecrecoverAddr:     &ecrecover{},
	sha256hashAddr:    &sha256hash{},
	ripemd160hashAddr: &ripemd160hash{},
	dataCopyAddr:      &dataCopy{},
}

// precompiledContractsByzantium adds MODEXP and the BN256 (alt_bn128) curve
// operations needed for zkSNARK verification (EIP-196/197/198).
var precompiledContractsByzantium = func() PrecompiledContracts {
	pc := PrecompiledContracts{}
	for k, v := range precompiledContractsHomestead {
		pc[k] = v
	}
	pc[bigModExpAddr] = &bigModExp{}
	pc[bn256AddAddr] = &bn256Add{}
	pc[bn256ScalarMulAddr] = &bn256ScalarMul{}
	pc[bn256PairingAddr] = &bn256Pairing{}
	return pc
}()

// precompiledContractsIstanbul adds the BLAKE2b compression function
// precompile (EIP-152).
var precompiledContractsIstanbul = func() PrecompiledContracts {
	pc := PrecompiledContracts{}
	for k, v := range precompiledContractsByzantium {
		pc[k] = v
	}
	pc[blake2FAddr] = &blake2F{}
	return pc
}()

// precompiledContractsShanghai adds the secp256r1 (P-256) signature
// verification precompile, the spec's domain-stack extension beyond the
// canonical Ethereum precompile set.
var precompiledContractsShanghai = func() PrecompiledContracts {
	pc := PrecompiledContracts{}
	for k, v := range precompiledContractsIstanbul {
		pc[k] = v
	}
	pc[p256VerifyAddr] = &p256Verify{}
	return pc
}()

// ActivePrecompiles returns the precompile set activated by sched, mirroring
// the hard-fork-named map lookups the jump table (newJumpTable) uses for
// instructions.
func ActivePrecompiles(sched *Schedule) PrecompiledContracts {
	switch {
	case sched.EIP3860:
		return precompiledContractsShanghai
	case sched.HasChainID:
		return precompiledContractsIstanbul
	case sched.HasStaticCall:
		return precompiledContractsByzantium
	default:
		return precompiledContractsHomestead
	}
}

// RunPrecompiledContract runs p with the given input and gas budget,
// charging the fixed required gas up front — the same split the interpreter
// uses for every other instruction.
func RunPrecompiledContract(p PrecompiledContract, input []byte, gas uint64) (ret []byte, remainingGas uint64, err error) {
	requiredGas := p.RequiredGas(input)
	if requiredGas > gas {
		return nil, 0, ErrOutOfGas
	}
	output, err := p.Run(input)
	return output, gas - requiredGas, err
}

func bytesWordCount(n int) uint64 {
	return (uint64(n) + 31) / 32
}

// ecrecover implements the ECRECOVER precompile: recover the signer address
// from a (hash, v, r, s) tuple.
type ecrecover struct{}

func (c *ecrecover) RequiredGas(input []byte) uint64 { return 3000 }

func (c *ecrecover) Run(input []byte) ([]byte, error) {
	const ecrecoverInputLength = 128
	input = common.RightPadBytes(input, ecrecoverInputLength)

	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])
	v := input[63] - 27

	if !allZero(input[32:63]) || !crypto.ValidateSignatureValues(v, r, s, false) {
		return nil, nil
	}
	sig := make([]byte, 65)
	copy(sig[0:32], input[64:96])
	copy(sig[32:64], input[96:128])
	sig[64] = v

	pubKey, err := crypto.Ecrecover(input[:32], sig)
	if err != nil {
		return nil, nil
	}
	addrHash := crypto.Keccak256(pubKey[1:])
	return common.LeftPadBytes(addrHash[12:], 32), nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// sha256hash implements the SHA256 precompile.
type sha256hash struct{}

func (c *sha256hash) RequiredGas(input []byte) uint64 { return 60 + 12*bytesWordCount(len(input)) }
func (c *sha256hash) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// ripemd160hash implements the RIPEMD160 precompile.
type ripemd160hash struct{}

func (c *ripemd160hash) RequiredGas(input []byte) uint64 {
	return 600 + 120*bytesWordCount(len(input))
}
func (c *ripemd160hash) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	return common.LeftPadBytes(h.Sum(nil), 32), nil
}

// dataCopy implements the IDENTITY precompile: it returns its input
// unchanged.
type dataCopy struct{}

func (c *dataCopy) RequiredGas(input []byte) uint64 { return 15 + 3*bytesWordCount(len(input)) }
func (c *dataCopy) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// bigModExp implements the MODEXP precompile (EIP-198/2565): arbitrary
// precision modular exponentiation, base**exp % mod, parsed from a header
// of three 32-byte lengths followed by the three values themselves.
type bigModExp struct{}

func (c *bigModExp) RequiredGas(input []byte) uint64 {
	var (
		baseLen = new(big.Int).SetBytes(getModExpField(input, 0, 32))
		expLen  = new(big.Int).SetBytes(getModExpField(input, 32, 32))
		modLen  = new(big.Int).SetBytes(getModExpField(input, 64, 32))
	)
	maxLen := baseLen
	if modLen.Cmp(maxLen) > 0 {
		maxLen = modLen
	}
	words := bytesWordCount(int(maxLen.Uint64()))
	gas := new(big.Int).Mul(new(big.Int).SetUint64(words*words), big.NewInt(1))

	adjExpLen := adjustedExpLen(input, baseLen, expLen)
	if adjExpLen.Cmp(big.NewInt(1)) < 0 {
		adjExpLen = big.NewInt(1)
	}
	gas.Mul(gas, adjExpLen)
	gas.Div(gas, big.NewInt(3))
	if !gas.IsUint64() || gas.Uint64() < 200 {
		return 200
	}
	return gas.Uint64()
}

// adjustedExpLen implements the EIP-2565 "effective exponent length": for
// short exponents it's the bit-length of the exponent's leading word, not
// its full byte length, so e.g. exponent 2 costs as little as exponent 0.
func adjustedExpLen(input []byte, baseLen, expLen *big.Int) *big.Int {
	if expLen.Cmp(big.NewInt(32)) <= 0 {
		start := 96 + baseLen.Uint64()
		exp := new(big.Int).SetBytes(getModExpField(input, start, expLen.Uint64()))
		bitLen := exp.BitLen()
		if bitLen == 0 {
			return big.NewInt(0)
		}
		return big.NewInt(int64(bitLen - 1))
	}
	return new(big.Int).Set(expLen)
}

func getModExpField(input []byte, start, size uint64) []byte {
	length := uint64(len(input))
	if start > length {
		start = length
	}
	end := start + size
	if end > length {
		end = length
	}
	out := make([]byte, size)
	copy(out, input[start:end])
	return out
}

func (c *bigModExp) Run(input []byte) ([]byte, error) {
	var (
		baseLen = new(big.Int).SetBytes(getModExpField(input, 0, 32)).Uint64()
		expLen  = new(big.Int).SetBytes(getModExpField(input, 32, 32)).Uint64()
		modLen  = new(big.Int).SetBytes(getModExpField(input, 64, 32)).Uint64()
	)
	if baseLen == 0 && modLen == 0 {
		return []byte{}, nil
	}
	base := new(big.Int).SetBytes(getModExpField(input, 96, baseLen))
	exp := new(big.Int).SetBytes(getModExpField(input, 96+baseLen, expLen))
	mod := new(big.Int).SetBytes(getModExpField(input, 96+baseLen+expLen, modLen))

	out := make([]byte, modLen)
	if mod.BitLen() == 0 {
		return out, nil
	}
	return new(big.Int).Exp(base, exp, mod).FillBytes(out), nil
}

// bn256Add implements the alt_bn128 point addition precompile (EIP-196).
type bn256Add struct{}

func (c *bn256Add) RequiredGas(input []byte) uint64 { return 150 }
func (c *bn256Add) Run(input []byte) ([]byte, error) {
	x, err := newCurvePoint(getModExpField(input, 0, 64))
	if err != nil {
		return nil, err
	}
	y, err := newCurvePoint(getModExpField(input, 64, 64))
	if err != nil {
		return nil, err
	}
	res := new(bn256.G1)
	res.Add(x, y)
	return res.Marshal(), nil
}

// bn256ScalarMul implements the alt_bn128 scalar multiplication precompile
// (EIP-196).
type bn256ScalarMul struct{}

func (c *bn256ScalarMul) RequiredGas(input []byte) uint64 { return 6000 }
func (c *bn256ScalarMul) Run(input []byte) ([]byte, error) {
	p, err := newCurvePoint(getModExpField(input, 0, 64))
	if err != nil {
		return nil, err
	}
	scalar := new(big.Int).SetBytes(getModExpField(input, 64, 32))
	res := new(bn256.G1)
	res.ScalarMult(p, scalar)
	return res.Marshal(), nil
}

func newCurvePoint(blob []byte) (*bn256.G1, error) {
	p := new(bn256.G1)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, err
	}
	return p, nil
}

// bn256Pairing implements the alt_bn128 pairing check precompile used by
// zkSNARK verifiers (EIP-197).
type bn256Pairing struct{}

func (c *bn256Pairing) RequiredGas(input []byte) uint64 {
	return 45000 + 34000*(uint64(len(input))/192)
}
func (c *bn256Pairing) Run(input []byte) ([]byte, error) {
	if len(input)%192 != 0 {
		return nil, errBadPairingInput
	}
	var (
		g1s []*bn256.G1
		g2s []*bn256.G2
	)
	for i := 0; i < len(input); i += 192 {
		g1, err := newCurvePoint(input[i : i+64])
		if err != nil {
			return nil, err
		}
		g2 := new(bn256.G2)
		if _, err := g2.Unmarshal(input[i+64 : i+192]); err != nil {
			return nil, err
		}
		g1s = append(g1s, g1)
		g2s = append(g2s, g2)
	}
	success := bn256.PairingCheck(g1s, g2s)
	out := make([]byte, 32)
	if success {
		out[31] = 1
	}
	return out, nil
}

var errBadPairingInput = &pairingInputError{}

type pairingInputError struct{}

func (*pairingInputError) Error() string { return "vm: bad pairing input length" }

// blake2F implements the BLAKE2b F compression function precompile
// (EIP-152), used by protocols (Zcash-style shielded transfers) that need a
// cheap BLAKE2b primitive inside the EVM.
type blake2F struct{}

const blake2FInputLength = 213

func (c *blake2F) RequiredGas(input []byte) uint64 {
	if len(input) != blake2FInputLength {
		return 0
	}
	return uint64(common.BytesToHash(input[0:4]).Big().Uint64())
}

func (c *blake2F) Run(input []byte) ([]byte, error) {
	if len(input) != blake2FInputLength {
		return nil, errBadBlake2FInput
	}
	rounds := uint32(input[3]) | uint32(input[2])<<8 | uint32(input[1])<<16 | uint32(input[0])<<24
	final := input[212] == 1

	var h [8]uint64
	var m [16]uint64
	for i := 0; i < 8; i++ {
		h[i] = leUint64(input[4+i*8:])
	}
	for i := 0; i < 16; i++ {
		m[i] = leUint64(input[68+i*8:])
	}
	t0 := leUint64(input[196:])
	t1 := leUint64(input[204:])

	blake2b.F(rounds, &h, &m, [2]uint64{t0, t1}, final)

	out := make([]byte, 64)
	for i, v := range h {
		putLeUint64(out[i*8:], v)
	}
	return out, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func putLeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

var errBadBlake2FInput = &blake2FInputError{}

type blake2FInputError struct{}

func (*blake2FInputError) Error() string { return "vm: invalid blake2f input length" }

// p256Verify implements the EIP-7212-style P256VERIFY precompile: NIST
// P-256 ECDSA signature verification, delegated to crypto/secp256r1 so the
// EVM never re-implements curve arithmetic.
type p256Verify struct{}

const p256VerifyInputLength = 160

func (c *p256Verify) RequiredGas(input []byte) uint64 { return 3450 }

func (c *p256Verify) Run(input []byte) ([]byte, error) {
	if len(input) != p256VerifyInputLength {
		return nil, nil
	}
	hash := input[0:32]
	r := new(big.Int).SetBytes(input[32:64])
	s := new(big.Int).SetBytes(input[64:96])
	x := new(big.Int).SetBytes(input[96:128])
	y := new(big.Int).SetBytes(input[128:160])

	if !secp256r1.Verify(hash, r, s, x, y) {
		return nil, nil
	}
	out := make([]byte, 32)
	out[31] = 1
	return out, nil
}
