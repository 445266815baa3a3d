package sync

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openethereum-go/corechain/core/types"
)

type fakeReader struct {
	best     uint64
	byNumber map[uint64]*types.Header
	byHash   map[common.Hash]*types.Header
	bodies   map[common.Hash]*types.Body
	fork     bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		byNumber: make(map[uint64]*types.Header),
		byHash:   make(map[common.Hash]*types.Header),
		bodies:   make(map[common.Hash]*types.Body),
	}
}

func (r *fakeReader) BestBlockNumber() uint64 { return r.best }
func (r *fakeReader) HeaderByNumber(n uint64) (*types.Header, bool) {
	h, ok := r.byNumber[n]
	return h, ok
}
func (r *fakeReader) HeaderByHash(h common.Hash) (*types.Header, bool) {
	hd, ok := r.byHash[h]
	return hd, ok
}
func (r *fakeReader) NumberForHash(h common.Hash) (uint64, bool) {
	hd, ok := r.byHash[h]
	if !ok {
		return 0, false
	}
	return hd.Number.Uint64(), true
}
func (r *fakeReader) BodyByHash(h common.Hash) (*types.Body, bool) {
	b, ok := r.bodies[h]
	return b, ok
}
func (r *fakeReader) ReceiptsByHash(common.Hash) ([]*types.Receipt, bool) { return nil, false }
func (r *fakeReader) IsProcessingFork() bool                             { return r.fork }
func (r *fakeReader) ForkBlockOverlay(uint64) ([]byte, bool)             { return nil, false }

func addHeader(r *fakeReader, number int64) *types.Header {
	h := &types.Header{Difficulty: big.NewInt(1), Number: big.NewInt(number)}
	r.byNumber[uint64(number)] = h
	r.byHash[h.Hash()] = h
	return h
}

func TestSupplier_GetBlockHeaders_ByNumberForward(t *testing.T) {
	reader := newFakeReader()
	for i := int64(1); i <= 5; i++ {
		addHeader(reader, i)
	}
	reader.best = 5
	s := NewSupplier(SupplierData{Chain: reader})

	req, err := rlp.EncodeToBytes(struct {
		Number  uint64
		Max     uint64
		Skip    uint64
		Reverse uint64
	}{1, 3, 0, 0})
	require.NoError(t, err)

	resp, err := s.GetBlockHeaders(req)
	require.NoError(t, err)

	var raws []rlp.RawValue
	require.NoError(t, rlp.DecodeBytes(resp, &raws))
	assert.Len(t, raws, 3)
}

func TestSupplier_GetBlockHeaders_DeferredWhileProcessingFork(t *testing.T) {
	reader := newFakeReader()
	reader.fork = true
	s := NewSupplier(SupplierData{Chain: reader})

	req, _ := rlp.EncodeToBytes(struct {
		Number  uint64
		Max     uint64
		Skip    uint64
		Reverse uint64
	}{1, 1, 0, 0})
	_, err := s.GetBlockHeaders(req)
	assert.ErrorIs(t, err, ErrClientBusy)
	assert.Len(t, s.ReplayDelayed(), 1)
}

func TestSupplier_GetBlockBodies_CapsAtMaxBodiesToSend(t *testing.T) {
	reader := newFakeReader()
	hashes := make([]common.Hash, MaxBodiesToSend+10)
	for i := range hashes {
		hashes[i] = common.Hash{byte(i), byte(i >> 8)}
		reader.bodies[hashes[i]] = &types.Body{}
	}
	s := NewSupplier(SupplierData{Chain: reader})

	req, err := rlp.EncodeToBytes(hashes)
	require.NoError(t, err)
	resp, err := s.GetBlockBodies(req)
	require.NoError(t, err)

	var raws []rlp.RawValue
	require.NoError(t, rlp.DecodeBytes(resp, &raws))
	assert.LessOrEqual(t, len(raws), MaxBodiesToSend)
}
