package sync

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openethereum-go/corechain/core/queue"
	"github.com/openethereum-go/corechain/core/types"
)

func testPeerID() uuid.UUID { return uuid.New() }

// fakeIO records every packet ChainSync tries to send, and every
// disable/drop call, without any real transport underneath.
type fakeIO struct {
	mu       sync.Mutex
	sent     []sentPacket
	disabled []uuid.UUID
	dropped  []uuid.UUID
}

type sentPacket struct {
	peer uuid.UUID
	id   PacketID
	data []byte
}

func (f *fakeIO) SendPacket(peer uuid.UUID, id PacketID, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentPacket{peer, id, data})
	return nil
}
func (f *fakeIO) DisablePeer(peer uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = append(f.disabled, peer)
}
func (f *fakeIO) DropPeer(peer uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, peer)
}

// fakeChain is a minimal ChainClient backing a ChainSync under test.
type fakeChain struct {
	mu       sync.Mutex
	best     uint64
	td       common.Hash
	imported [][]byte
	txs      [][]byte
	info     queue.Info
}

func (c *fakeChain) BestBlockNumber() uint64 { return c.best }
func (c *fakeChain) BestBlockTotalDifficulty() *common.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	td := c.td
	return &td
}
func (c *fakeChain) ImportBlock(raw []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imported = append(c.imported, raw)
	return common.Hash{}, nil
}
func (c *fakeChain) QueueInfo() queue.Info { return c.info }
func (c *fakeChain) ImportTransactions(txs [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs = append(c.txs, txs...)
}

func newTestSync(t *testing.T) (*ChainSync, *fakeIO, *fakeChain) {
	t.Helper()
	chain := &fakeChain{}
	io := &fakeIO{}
	cs := New(Config{NetworkID: 1}, io, chain)
	return cs, io, chain
}

func TestChainSync_InitialState_IdleWithoutWarp(t *testing.T) {
	cs, _, _ := newTestSync(t)
	assert.Equal(t, StateIdle, cs.State())
}

func TestChainSync_InitialState_WaitingPeersWithWarp(t *testing.T) {
	chain := &fakeChain{best: 0}
	io := &fakeIO{}
	cs := New(Config{WarpEnabled: true, WarpBarrier: 1000}, io, chain)
	assert.Equal(t, StateWaitingPeers, cs.State())
}

func statusPacket(t *testing.T, genesis common.Hash, networkID uint64, diff []byte, latest common.Hash) []byte {
	t.Helper()
	payload := statusPayload{
		ProtocolVersion: 66,
		NetworkID:       networkID,
		Difficulty:      diff,
		LatestHash:      latest,
		Genesis:         genesis,
	}
	data, err := rlp.EncodeToBytes(payload)
	require.NoError(t, err)
	return data
}

func TestChainSync_OnPeerStatus_RegistersPeer(t *testing.T) {
	cs, _, _ := newTestSync(t)
	id := testPeerID()
	cs.OnPeerConnected(id)

	data := statusPacket(t, common.Hash{}, 1, []byte{0x10}, common.Hash{0x1})
	cs.Dispatch(id, StatusPacket, data)

	cs.peersMu.RLock()
	p, ok := cs.peers[id]
	cs.peersMu.RUnlock()
	require.True(t, ok)
	assert.Equal(t, ForkConfirmed, p.Confirmation, "no fork filter configured: peer is pre-confirmed")
	assert.Equal(t, uint64(1), p.NetworkID)
}

func TestChainSync_OnPeerStatus_MalformedPacketInvalidates(t *testing.T) {
	cs, io, _ := newTestSync(t)
	id := testPeerID()
	cs.OnPeerConnected(id)

	// Bytes that do not decode as a Status packet get the peer disabled.
	cs.Dispatch(id, StatusPacket, []byte{0xff, 0xff})
	assert.Contains(t, io.disabled, id)
}

func TestChainSync_Dispatch_UnknownPacketIgnored(t *testing.T) {
	cs, io, _ := newTestSync(t)
	id := testPeerID()
	cs.OnPeerConnected(id)
	cs.Dispatch(id, PacketID(0x7f), []byte{})
	assert.Empty(t, io.disabled)
	assert.Empty(t, io.dropped)
}

func TestChainSync_OnPeerNewBlock_ImportsAndTracksHighest(t *testing.T) {
	cs, _, chain := newTestSync(t)
	id := testPeerID()
	cs.OnPeerConnected(id)
	cs.peersMu.Lock()
	cs.peers[id].Confirmation = ForkConfirmed
	cs.peersMu.Unlock()

	sealField, err := rlp.EncodeToBytes([]byte{})
	require.NoError(t, err)
	h := &types.Header{
		Difficulty: big.NewInt(1),
		Number:     big.NewInt(5),
		Seal:       types.Seal{Raw: [][]byte{sealField, sealField}},
	}
	headerRaw, err := rlp.EncodeToBytes(h)
	require.NoError(t, err)

	payload, err := rlp.EncodeToBytes(struct {
		Block      rlp.RawValue
		Difficulty []byte
	}{rlp.RawValue(headerRaw), []byte{0x2}})
	require.NoError(t, err)

	cs.Dispatch(id, NewBlockPacket, payload)
	assert.Len(t, chain.imported, 1)
	assert.Equal(t, uint64(5), cs.highestBlockSeen)
}

func TestChainSync_BodiesCompleteStagedHeaders_ImportsBlocks(t *testing.T) {
	cs, io, chain := newTestSync(t)
	id := testPeerID()
	cs.OnPeerConnected(id)
	cs.peersMu.Lock()
	cs.peers[id].Confirmation = ForkConfirmed
	cs.peersMu.Unlock()
	chain.info = queue.Info{MaxQueueSize: 1000, MaxMemUse: 1000}

	h1 := testHeader(1, common.Hash{})
	headers := []*types.Header{h1}
	headersRaw, err := rlp.EncodeToBytes(headers)
	require.NoError(t, err)
	cs.Dispatch(id, BlockHeadersPacket, headersRaw)

	require.Len(t, io.sent, 1, "a staged header batch should trigger a GetBlockBodies request")
	assert.Equal(t, GetBlockBodiesPacket, io.sent[0].id)

	cs.peersMu.RLock()
	require.NotNil(t, cs.peers[id].AskingBodiesFor)
	cs.peersMu.RUnlock()

	bodiesRaw, err := rlp.EncodeToBytes([]*types.Body{{}})
	require.NoError(t, err)
	cs.Dispatch(id, BlockBodiesPacket, bodiesRaw)

	assert.Len(t, chain.imported, 1)
	cs.peersMu.RLock()
	assert.Nil(t, cs.peers[id].AskingBodiesFor)
	cs.peersMu.RUnlock()
}

func TestSqrtFanout_ClampedToBounds(t *testing.T) {
	assert.Equal(t, minPeersPropagation, sqrtFanout(1))
	assert.Equal(t, maxPeersPropagation, sqrtFanout(100000))
	assert.Equal(t, 4, sqrtFanout(16))
}
