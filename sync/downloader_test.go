package sync

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openethereum-go/corechain/core/types"
)

func testHeader(number int64, parent common.Hash) *types.Header {
	return &types.Header{
		ParentHash: parent,
		Difficulty: big.NewInt(1),
		Number:     big.NewInt(number),
		Extra:      []byte{byte(number)},
	}
}

func TestBlockDownloader_NextRequest_NewBlocks(t *testing.T) {
	d := NewBlockDownloader(NewBlocks)
	d.SetTarget(100)
	req, ok := d.NextRequest(10)
	require.True(t, ok)
	assert.Equal(t, uint64(11), req.Number)
	assert.False(t, req.Reverse)

	_, ok = d.NextRequest(100)
	assert.False(t, ok, "caught up to target, nothing to request")
}

func TestBlockDownloader_NextRequest_OldBlocks(t *testing.T) {
	d := NewBlockDownloader(OldBlocks)
	d.SetTarget(5)
	req, ok := d.NextRequest(50)
	require.True(t, ok)
	assert.True(t, req.Reverse)
	assert.Equal(t, uint64(49), req.Number)

	_, ok = d.NextRequest(5)
	assert.False(t, ok)
}

func TestBlockDownloader_ImportHeaders_RejectsBrokenChain(t *testing.T) {
	d := NewBlockDownloader(NewBlocks)
	h1 := testHeader(1, common.Hash{})
	h2 := testHeader(2, common.Hash{0xff}) // wrong parent
	_, err := d.ImportHeaders(testPeerID(), []*types.Header{h1, h2})
	assert.ErrorIs(t, err, errInvalid)
}

func TestBlockDownloader_ImportThenCompleteWithBodies(t *testing.T) {
	d := NewBlockDownloader(NewBlocks)
	h1 := testHeader(1, common.Hash{})
	h2 := testHeader(2, h1.Hash())
	_, err := d.ImportHeaders(testPeerID(), []*types.Header{h1, h2})
	require.NoError(t, err)

	blocks, err := d.CompleteWithBodies(h1.Hash(), []*types.Body{{}, {}})
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	_, err = d.CompleteWithBodies(h1.Hash(), []*types.Body{{}})
	assert.ErrorIs(t, err, errUseless, "batch already consumed")
}

func TestBlockDownloader_CompleteWithBodies_CountMismatch(t *testing.T) {
	d := NewBlockDownloader(NewBlocks)
	h1 := testHeader(1, common.Hash{})
	_, err := d.ImportHeaders(testPeerID(), []*types.Header{h1})
	require.NoError(t, err)

	_, err = d.CompleteWithBodies(h1.Hash(), []*types.Body{{}, {}})
	assert.ErrorIs(t, err, errInvalid)
}
