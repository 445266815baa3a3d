package vm

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestIdentityPrecompile(t *testing.T) {
	p := &dataCopy{}
	input := []byte("the quick brown fox")
	out, err := p.Run(input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Equal(t, uint64(15+3*1), p.RequiredGas(input[:20]))
}

func TestSha256Precompile(t *testing.T) {
	p := &sha256hash{}
	out, err := p.Run([]byte("hello"))
	require.NoError(t, err)
	assert.Len(t, out, 32)
	// sha256("hello")
	want := mustDecodeHex(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	assert.Equal(t, want, out)
}

func TestRipemd160Precompile(t *testing.T) {
	p := &ripemd160hash{}
	out, err := p.Run([]byte("hello"))
	require.NoError(t, err)
	assert.Len(t, out, 32)
	// left-padded to 32 bytes; the hash itself is 20 bytes.
	assert.True(t, allZero(out[:12]))
}

func TestModExpPrecompile(t *testing.T) {
	// base=2 (1 byte), exp=5 (1 byte), mod=13 (1 byte): 2^5 mod 13 = 32 mod 13 = 6.
	// Header is 32-byte baseLen, 32-byte expLen, 32-byte modLen, then the values.
	header := make([]byte, 96)
	header[31] = 1 // baseLen = 1
	header[63] = 1 // expLen = 1
	header[95] = 1 // modLen = 1
	body := []byte{2, 5, 13}
	in := append(header, body...)

	p := &bigModExp{}
	out, err := p.Run(in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, byte(6), out[0])
}

func TestModExpZeroModulus(t *testing.T) {
	header := make([]byte, 96)
	header[31] = 1
	header[63] = 1
	header[95] = 1
	body := []byte{2, 5, 0}
	in := append(header, body...)

	p := &bigModExp{}
	out, err := p.Run(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, out)
}

func TestBlake2FRejectsWrongLength(t *testing.T) {
	p := &blake2F{}
	_, err := p.Run(make([]byte, 10))
	assert.Equal(t, errBadBlake2FInput, err)
}

func TestBlake2FRequiredGasReadsRoundsField(t *testing.T) {
	p := &blake2F{}
	input := make([]byte, blake2FInputLength)
	input[3] = 12 // rounds = 12 (big-endian uint32 in first 4 bytes)
	assert.Equal(t, uint64(12), p.RequiredGas(input))
}

func TestBn256PairingRejectsMisalignedInput(t *testing.T) {
	p := &bn256Pairing{}
	_, err := p.Run(make([]byte, 100))
	assert.Equal(t, errBadPairingInput, err)
}

func TestBn256PairingEmptyInputSucceeds(t *testing.T) {
	// The vacuous pairing check over zero pairs is defined to succeed.
	p := &bn256Pairing{}
	out, err := p.Run(nil)
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(1), out[31])
}

func TestActivePrecompilesGatesByFork(t *testing.T) {
	homestead := ActivePrecompiles(&FrontierSchedule)
	_, hasModExp := homestead[bigModExpAddr]
	assert.False(t, hasModExp)

	byzantium := ActivePrecompiles(&ByzantiumSchedule)
	_, hasModExpByz := byzantium[bigModExpAddr]
	assert.True(t, hasModExpByz)
	_, hasBlake2 := byzantium[blake2FAddr]
	assert.False(t, hasBlake2)

	istanbul := ActivePrecompiles(&IstanbulSchedule)
	_, hasBlake2Ist := istanbul[blake2FAddr]
	assert.True(t, hasBlake2Ist)
	_, hasP256 := istanbul[p256VerifyAddr]
	assert.False(t, hasP256)

	latest := ActivePrecompiles(&LatestSchedule)
	_, hasP256Latest := latest[p256VerifyAddr]
	assert.True(t, hasP256Latest)
}

func TestRunPrecompiledContractChargesRequiredGas(t *testing.T) {
	p := &dataCopy{}
	input := make([]byte, 32)
	gas := p.RequiredGas(input)

	_, remaining, err := RunPrecompiledContract(p, input, gas)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), remaining)

	_, _, err = RunPrecompiledContract(p, input, gas-1)
	assert.Equal(t, ErrOutOfGas, err)
}

func TestP256VerifyRejectsWrongInputLength(t *testing.T) {
	p := &p256Verify{}
	out, err := p.Run(make([]byte, 10))
	require.NoError(t, err)
	assert.Nil(t, out)
}
