package vm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCallRoundTrip exercises the trap/resume trampoline for a simple CALL:
// the caller pushes args, calls the callee, and the callee's 32-byte return
// value lands back in the caller's memory.
func TestCallRoundTrip(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)

	callee := common.HexToAddress("0xca11ee")
	statedb.CreateAccount(callee)
	// callee: return 42
	statedb.SetCode(callee, storeAndReturn([]byte{byte(PUSH1), 42}))

	calleeInt := addressToInt(callee)
	calleeBytes := calleeInt.Bytes32()

	caller := common.HexToAddress("0xca11er")
	statedb.CreateAccount(caller)
	// caller: CALL(gas=all, callee, value=0, argsOffset=0, argsSize=0, retOffset=0, retSize=32), then return mem[0:32]
	code := []byte{
		byte(PUSH1), 32, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 0, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
		byte(PUSH32),
	}
	code = append(code, calleeBytes[:]...)
	code = append(code,
		byte(PUSH1 + 1), 0xff, 0xff, // gas
		byte(CALL),
		byte(POP), // discard success flag
		byte(PUSH1), 32, byte(PUSH1), 0, byte(RETURN),
	)
	statedb.SetCode(caller, code)

	outer := common.HexToAddress("0xouter")
	statedb.CreateAccount(outer)

	ret, _, err := evm.Call(outer, caller, nil, 1_000_000, new(uint256.Int))
	require.NoError(t, err)
	require.Len(t, ret, 32)
	assert.Equal(t, uint64(42), new(uint256.Int).SetBytes(ret).Uint64())
}

// TestCreateRoundTrip deploys a contract via CREATE and confirms the
// returned address has the deployed code installed.
func TestCreateRoundTrip(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)

	caller := common.HexToAddress("0xdeployer")
	statedb.CreateAccount(caller)
	statedb.AddBalance(caller, uint256.NewInt(1_000_000))

	// init code: returns a single STOP byte as the deployed runtime code.
	initCode := []byte{
		byte(PUSH1), byte(STOP), // value to store
		byte(PUSH1), 0, byte(MSTORE8),
		byte(PUSH1), 1, byte(PUSH1), 0, byte(RETURN),
	}

	_, addr, _, err := evm.Create(caller, initCode, 1_000_000, new(uint256.Int))
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(STOP)}, statedb.GetCode(addr))
	assert.Equal(t, uint64(1), statedb.GetNonce(caller))
}

// TestCreateCollisionFails confirms CREATE refuses to deploy over an
// address that already has code.
func TestCreateCollisionFails(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)

	caller := common.HexToAddress("0xdeployer")
	statedb.CreateAccount(caller)

	addr := evm.newContractAddress(caller)
	statedb.CreateAccount(addr)
	statedb.SetCode(addr, []byte{byte(STOP)})

	initCode := []byte{byte(PUSH1), 0, byte(PUSH1), 0, byte(RETURN)}
	_, _, _, err := evm.Create(caller, initCode, 100000, new(uint256.Int))
	require.Error(t, err)
	assert.Equal(t, ErrContractAddressCollision, err)
}

// TestDeeplyRecursiveCallNeverOverflowsGoStack drives the trampoline through
// many nested self-calls (bottoming out on either the depth limit or gas
// exhaustion) without ever recursing the Go call stack — the explicit
// []*Frame slice in EVM.run is what makes arbitrarily deep EVM call nesting
// safe to drive from a single goroutine.
func TestDeeplyRecursiveCallNeverOverflowsGoStack(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)

	self := common.HexToAddress("0xself")
	statedb.CreateAccount(self)
	selfInt := addressToInt(self)
	selfBytes := selfInt.Bytes32()

	// CALL(gas, self, 0, 0, 0, 0, 0); if it failed (success==0), STOP;
	// otherwise STOP too — the point is just to recurse until an inner CALL
	// fails.
	code := []byte{
		byte(PUSH1), 0, // retSize
		byte(PUSH1), 0, // retOffset
		byte(PUSH1), 0, // argsSize
		byte(PUSH1), 0, // argsOffset
		byte(PUSH1), 0, // value
		byte(PUSH32),
	}
	code = append(code, selfBytes[:]...)
	code = append(code, byte(PUSH1 + 1), 0xff, 0xff, byte(CALL), byte(POP), byte(STOP))
	statedb.SetCode(self, code)

	outer := common.HexToAddress("0xouter")
	statedb.CreateAccount(outer)

	// Each level forwards at most 0xffff gas, cut by the 63/64 rule, so the
	// recursion runs a few hundred levels deep and ends on gas exhaustion
	// before the depth limit.
	_, _, err := evm.Call(outer, self, nil, 50_000_000, new(uint256.Int))
	// The top-level call itself succeeds (STOP); the innermost CALL runs
	// out of gas, which just reports failure (pushes 0) rather than
	// propagating an error to the top level.
	require.NoError(t, err)
}

func TestCreate2AddressIsDeterministic(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)

	caller := common.HexToAddress("0xdeployer")
	code := []byte{0x60, 0x00}
	salt := uint256.NewInt(7)

	addr1 := evm.create2Address(caller, salt, crypto256(code))
	addr2 := evm.create2Address(caller, salt, crypto256(code))
	assert.Equal(t, addr1, addr2)

	otherSalt := uint256.NewInt(8)
	addr3 := evm.create2Address(caller, otherSalt, crypto256(code))
	assert.NotEqual(t, addr1, addr3)
}
