package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForkFilter_IDAtProgression(t *testing.T) {
	var genesis [32]byte
	genesis[0] = 0xaa
	f := NewForkFilter(genesis, []uint64{10, 20})

	before := f.IDAt(0)
	assert.Equal(t, uint64(10), before.Next)

	mid := f.IDAt(10)
	assert.Equal(t, uint64(20), mid.Next)
	assert.NotEqual(t, before.Hash, mid.Hash)

	after := f.IDAt(20)
	assert.Equal(t, uint64(0), after.Next)
	assert.NotEqual(t, mid.Hash, after.Hash)
}

func TestForkFilter_IsCompatible_ExactMatch(t *testing.T) {
	var genesis [32]byte
	f := NewForkFilter(genesis, []uint64{10})
	id := f.IDAt(15)
	require.NoError(t, f.IsCompatible(15, id))
}

func TestForkFilter_IsCompatible_RemoteBehindButConsistent(t *testing.T) {
	var genesis [32]byte
	f := NewForkFilter(genesis, []uint64{10, 20})
	remote := f.IDAt(5) // remote hasn't applied fork 10 yet, correctly names it next
	require.NoError(t, f.IsCompatible(25, remote))
}

func TestForkFilter_IsCompatible_Incompatible(t *testing.T) {
	var genesis [32]byte
	f := NewForkFilter(genesis, []uint64{10, 20})
	bogus := ForkID{Hash: [4]byte{1, 2, 3, 4}, Next: 999}
	assert.Error(t, f.IsCompatible(25, bogus))
}

func TestForkID_EncodeDecodeRoundTrip(t *testing.T) {
	id := ForkID{Hash: [4]byte{1, 2, 3, 4}, Next: 1234567}
	decoded, err := DecodeForkID(id.Encode())
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}
