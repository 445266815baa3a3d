// Copyright 2015 The go-ethereum Authors
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

// Schedule is the active gas schedule and feature set, parameterized by the
// currently active hard-fork (spec.md §4.A "Gas": "every instruction
// consumes a base cost from a schedule parameterized by the currently
// active hard-fork"). Rather than branch on a fork enum at every
// instruction, the interpreter consults Schedule's precomputed booleans and
// constants — the same approach the canonical opcode table takes of
// picking a jump table once per execution.
type Schedule struct {
	Name string

	// Feature gates.
	HasShift            bool // SHL/SHR/SAR (Constantinople)
	HasSubroutines      bool // BEGINSUB/JUMPSUB/RETURNSUB (EIP-2315)
	HasSelfBalance       bool // SELFBALANCE (Istanbul)
	HasChainID           bool // CHAINID (Istanbul)
	HasBaseFee           bool // BASEFEE (London)
	HasExtCodeHash       bool // EXTCODEHASH (Constantinople)
	HasRevert            bool // REVERT (Byzantium)
	HasStaticCall        bool // STATICCALL (Byzantium)
	HasCreate2           bool // CREATE2 (Constantinople)
	HasAccessList        bool // EIP-2929/2930 warm/cold access costs
	EIP3541              bool // reject code starting with 0xEF at RETURN from CREATE (London)
	EIP3860              bool // init code size limit + gas (Shanghai)

	// Gas costs.
	SstoreSetGas       uint64
	SstoreResetGas     uint64
	SstoreClearRefund  uint64
	SstoreRefund       uint64 // pre-EIP-2200 flat refund; EIP-2200 uses the slot-history rule instead
	UseEIP2200Sstore   bool

	ColdSloadCost       uint64
	WarmStorageReadCost uint64
	ColdAccountAccessCost uint64

	CallGas        uint64
	CallStipend    uint64
	CallValueTransferGas uint64
	CallNewAccountGas    uint64

	CreateGas   uint64
	Create2Gas  uint64
	CreateDataGas uint64

	ExpGas     uint64
	ExpByteGas uint64

	MemoryGas      uint64
	QuadCoeffDiv   uint64

	LogGas         uint64
	LogDataGas     uint64
	LogTopicGas    uint64

	Sha3Gas     uint64
	Sha3WordGas uint64

	CopyGas uint64

	JumpdestGas uint64

	SelfdestructRefund uint64
	SelfdestructGas    uint64
}

// FrontierSchedule is the genesis gas schedule.
var FrontierSchedule = Schedule{
	Name:                  "Frontier",
	SstoreSetGas:          20000,
	SstoreResetGas:        5000,
	SstoreRefund:          15000,
	CallGas:               40,
	CallStipend:           2300,
	CallValueTransferGas:  9000,
	CallNewAccountGas:     25000,
	CreateGas:             32000,
	CreateDataGas:         200,
	ExpGas:                10,
	ExpByteGas:            10,
	MemoryGas:             3,
	QuadCoeffDiv:          512,
	LogGas:                375,
	LogDataGas:            8,
	LogTopicGas:           375,
	Sha3Gas:               30,
	Sha3WordGas:           6,
	CopyGas:               3,
	JumpdestGas:           1,
	SelfdestructRefund:    24000,
}

// SpuriousDragonSchedule raises ExpByteGas per EIP-150/160.
var SpuriousDragonSchedule = func() Schedule {
	s := FrontierSchedule
	s.Name = "SpuriousDragon"
	s.ExpByteGas = 50
	return s
}()

// ByzantiumSchedule adds REVERT/STATICCALL and EIP-649/658.
var ByzantiumSchedule = func() Schedule {
	s := SpuriousDragonSchedule
	s.Name = "Byzantium"
	s.HasRevert = true
	s.HasStaticCall = true
	return s
}()

// ConstantinopleSchedule adds SHL/SHR/SAR, CREATE2 and EXTCODEHASH. SSTORE
// keeps the flat set/reset pricing; net metering starts with Istanbul.
var ConstantinopleSchedule = func() Schedule {
	s := ByzantiumSchedule
	s.Name = "Constantinople"
	s.HasShift = true
	s.HasCreate2 = true
	s.HasExtCodeHash = true
	s.SstoreResetGas = 5000
	s.SstoreSetGas = 20000
	return s
}()

// IstanbulSchedule adds CHAINID/SELFBALANCE and the EIP-2200 net-metered
// SSTORE gas rule. gasSStore does not check the remaining gas against the
// 2300 stipend, and no read costs are repriced here.
var IstanbulSchedule = func() Schedule {
	s := ConstantinopleSchedule
	s.Name = "Istanbul"
	s.HasChainID = true
	s.HasSelfBalance = true
	s.UseEIP2200Sstore = true
	s.SstoreSetGas = 20000
	s.SstoreResetGas = 5000
	s.SstoreClearRefund = 15000
	return s
}()

// BerlinSchedule introduces EIP-2929/2930 warm/cold access-list costs;
// cold SLOAD/CALL/BALANCE/EXT* are pricier, warm ones are cheap.
var BerlinSchedule = func() Schedule {
	s := IstanbulSchedule
	s.Name = "Berlin"
	s.HasAccessList = true
	s.ColdSloadCost = 2100
	s.WarmStorageReadCost = 100
	s.ColdAccountAccessCost = 2600
	s.SstoreResetGas = 5000 - s.ColdSloadCost
	return s
}()

// LondonSchedule adds BASEFEE and EIP-3541 (reject 0xEF-prefixed deployed
// code).
var LondonSchedule = func() Schedule {
	s := BerlinSchedule
	s.Name = "London"
	s.HasBaseFee = true
	s.EIP3541 = true
	return s
}()

// ShanghaiSchedule adds BEGINSUB/JUMPSUB/RETURNSUB (EIP-2315, as
// spec.md §4.A requires) and the EIP-3860 init-code size/gas limit.
var ShanghaiSchedule = func() Schedule {
	s := LondonSchedule
	s.Name = "Shanghai"
	s.HasSubroutines = true
	s.EIP3860 = true
	return s
}()

// LatestSchedule is the most feature-complete schedule; used when no
// explicit fork selection is supplied.
var LatestSchedule = ShanghaiSchedule
