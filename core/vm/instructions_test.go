package vm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runReturn32 deploys code at addr, calls it with no input, and returns the
// 32-byte word the call returned.
func runReturn32(t *testing.T, code []byte) *uint256.Int {
	t.Helper()
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)

	addr := common.HexToAddress("0xc0de")
	statedb.CreateAccount(addr)
	statedb.SetCode(addr, code)

	caller := common.HexToAddress("0xcaller")
	statedb.CreateAccount(caller)
	statedb.AddBalance(caller, uint256.NewInt(1_000_000_000))

	ret, _, err := evm.Call(caller, addr, nil, 1_000_000, new(uint256.Int))
	require.NoError(t, err)
	require.Len(t, ret, 32)
	return new(uint256.Int).SetBytes(ret)
}

// storeAndReturn appends the standard "store the top of stack to memory word
// 0, return it" trailer used by nearly every test in this file.
func storeAndReturn(body []byte) []byte {
	trailer := []byte{
		byte(PUSH1), 0, byte(MSTORE),
		byte(PUSH1), 32, byte(PUSH1), 0, byte(RETURN),
	}
	return append(append([]byte{}, body...), trailer...)
}

func TestAddWraps(t *testing.T) {
	// PUSH1 2 PUSH1 3 ADD -> stack [2,3]; x=pop()=3 (top), y=peek()=2 (now top); y.Add(x,y) = 2+3 = 5.
	code := storeAndReturn([]byte{byte(PUSH1), 2, byte(PUSH1), 3, byte(ADD)})
	got := runReturn32(t, code)
	assert.Equal(t, uint64(5), got.Uint64())
}

func TestMul(t *testing.T) {
	code := storeAndReturn([]byte{byte(PUSH1), 4, byte(PUSH1), 5, byte(MUL)})
	got := runReturn32(t, code)
	assert.Equal(t, uint64(20), got.Uint64())
}

func TestSub(t *testing.T) {
	// PUSH1 3 PUSH1 10 SUB: stack [3,10]; x=pop()=10, y=peek()=3; y.Sub(x,y) = x-y = 10-3 = 7.
	code := storeAndReturn([]byte{byte(PUSH1), 3, byte(PUSH1), 10, byte(SUB)})
	got := runReturn32(t, code)
	assert.Equal(t, uint64(7), got.Uint64())
}

func TestDiv(t *testing.T) {
	// PUSH1 3 PUSH1 9 DIV: x=pop()=9, y=peek()=3; y.Div(x,y) = x/y = 9/3 = 3.
	code := storeAndReturn([]byte{byte(PUSH1), 3, byte(PUSH1), 9, byte(DIV)})
	got := runReturn32(t, code)
	assert.Equal(t, uint64(3), got.Uint64())
}

func TestMod(t *testing.T) {
	// PUSH1 3 PUSH1 10 MOD: x=pop()=10, y=peek()=3; y.Mod(x,y) = x%y = 10%3 = 1.
	code := storeAndReturn([]byte{byte(PUSH1), 3, byte(PUSH1), 10, byte(MOD)})
	got := runReturn32(t, code)
	assert.Equal(t, uint64(1), got.Uint64())
}

func TestLt(t *testing.T) {
	// PUSH1 10 PUSH1 3 LT: stack [10,3]; x=pop()=3, y=peek()=10; x.Lt(y) = 3<10 = true -> 1.
	code := storeAndReturn([]byte{byte(PUSH1), 10, byte(PUSH1), 3, byte(LT)})
	got := runReturn32(t, code)
	assert.Equal(t, uint64(1), got.Uint64())
}

func TestSha3Opcode(t *testing.T) {
	code := storeAndReturn([]byte{
		byte(PUSH1), 0, byte(PUSH1), 0, byte(MSTORE),
		byte(PUSH1), 32, byte(PUSH1), 0, byte(SHA3),
	})
	got := runReturn32(t, code)
	assert.False(t, got.IsZero())
}

func TestJumpAndJumpdest(t *testing.T) {
	// PUSH1 5; JUMP; (skipped) PUSH1 99; JUMPDEST; PUSH1 7; store+return.
	raw := []byte{
		byte(PUSH1), 5, // pc0,1 -> jump target 5
		byte(JUMP),      // pc2
		byte(PUSH1), 99, // pc3,4 (dead code, skipped)
		byte(JUMPDEST), // pc5
		byte(PUSH1), 7,  // pc6,7
	}
	got := runReturn32(t, storeAndReturn(raw))
	assert.Equal(t, uint64(7), got.Uint64())
}

func TestInvalidJumpDestination(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)
	addr := common.HexToAddress("0xc0de")
	statedb.CreateAccount(addr)
	// JUMP to pc 3, which lands inside the PUSH1 1 immediate, not a JUMPDEST.
	code := []byte{byte(PUSH1), 3, byte(JUMP), byte(PUSH1), 1}
	statedb.SetCode(addr, code)
	caller := common.HexToAddress("0xcaller")
	statedb.CreateAccount(caller)

	_, _, err := evm.Call(caller, addr, nil, 100000, new(uint256.Int))
	require.Error(t, err)
	assert.Equal(t, ErrInvalidJump, err)
}

func TestStaticCallRejectsSstore(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)
	addr := common.HexToAddress("0xc0de")
	statedb.CreateAccount(addr)
	code := []byte{byte(PUSH1), 1, byte(PUSH1), 0, byte(SSTORE)}
	statedb.SetCode(addr, code)
	caller := common.HexToAddress("0xcaller")
	statedb.CreateAccount(caller)

	_, _, err := evm.StaticCall(caller, addr, nil, 100000)
	require.Error(t, err)
	assert.Equal(t, ErrWriteProtection, err)
}

func TestRevertPreservesOutputButUndoesState(t *testing.T) {
	statedb := newMemStateDB()
	evm := newTestEVM(statedb, &LatestSchedule)
	addr := common.HexToAddress("0xc0de")
	statedb.CreateAccount(addr)
	// SSTORE slot 0 = 1, then REVERT with 1 byte of output.
	code := []byte{
		byte(PUSH1), 1, byte(PUSH1), 0, byte(SSTORE),
		byte(PUSH1), 0xde, byte(PUSH1), 0, byte(MSTORE8),
		byte(PUSH1), 1, byte(PUSH1), 0, byte(REVERT),
	}
	statedb.SetCode(addr, code)
	caller := common.HexToAddress("0xcaller")
	statedb.CreateAccount(caller)

	ret, _, err := evm.Call(caller, addr, nil, 100000, new(uint256.Int))
	require.Equal(t, ErrExecutionReverted, err)
	assert.Equal(t, []byte{0xde}, ret)
	assert.Equal(t, common.Hash{}, statedb.GetState(addr, common.Hash{}))
}

func TestAddOverflowWraps(t *testing.T) {
	// PUSH32 (all 0xff) PUSH1 1 ADD -> wraps to zero.
	prog := []byte{byte(PUSH32)}
	for i := 0; i < 32; i++ {
		prog = append(prog, 0xff)
	}
	prog = append(prog, byte(PUSH1), 1, byte(ADD))
	got := runReturn32(t, storeAndReturn(prog))
	assert.True(t, got.IsZero())
}
