package sync

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/openethereum-go/corechain/core/types"
)

// ErrClientBusy is returned by a supply-side handler when the chain client
// is mid-fork-processing and the request must be requeued for later rather
// than answered (or dropped) now.
var ErrClientBusy = errors.New("sync: client busy processing fork")

// ChainReader is the read-only chain access the Supplier answers requests
// against — deliberately narrower than ChainClient, since the supplier never
// imports anything, only reads what's already canonical.
type ChainReader interface {
	BestBlockNumber() uint64
	HeaderByNumber(number uint64) (*types.Header, bool)
	HeaderByHash(hash common.Hash) (*types.Header, bool)
	NumberForHash(hash common.Hash) (uint64, bool)
	BodyByHash(hash common.Hash) (*types.Body, bool)
	ReceiptsByHash(hash common.Hash) ([]*types.Receipt, bool)
	IsProcessingFork() bool
	// ForkBlockOverlay returns a cached raw-encoded header for a block
	// number that may not be canonical yet (the configured fork block),
	// so peers can confirm they're on our fork before we've fully synced
	// past it.
	ForkBlockOverlay(number uint64) ([]byte, bool)
}

// SupplierData bundles a Supplier's configuration: the backing reader and a
// node-data store, kept distinct from ChainReader since most chain clients
// don't otherwise need to expose raw trie/bytecode blobs by hash.
type SupplierData struct {
	Chain    ChainReader
	NodeData func(hash common.Hash) ([]byte, bool)
}

// Supplier answers Get* requests from peers: GetBlockHeaders, GetBlockBodies,
// GetReceipts and GetNodeData. It has no handler for GetPooledTransactions,
// GetSnapshotManifest or GetSnapshotData. Every response is capped both by a per-kind item count
// and a soft total-payload-size limit — items already added when the soft
// limit is crossed are kept; no further items are appended.
type Supplier struct {
	data SupplierData

	// delayed holds requests (packet id and payload) postponed because the chain
	// was mid-fork when they arrived, replayed once IsProcessingFork
	// clears.
	delayed []delayedRequest
}

type delayedRequest struct {
	packetID PacketID
	payload  []byte
}

// NewSupplier constructs a Supplier.
func NewSupplier(data SupplierData) *Supplier {
	return &Supplier{data: data}
}

// headerRange decodes a GetBlockHeaders request body: [id, max, skip, reverse].
type headerRange struct {
	hash    *common.Hash
	number  uint64
	max     uint64
	skip    uint64
	reverse bool
}

func decodeHeaderRange(data []byte) (headerRange, error) {
	var raw struct {
		ID      rlp.RawValue
		Max     uint64
		Skip    uint64
		Reverse uint64
	}
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return headerRange{}, err
	}
	hr := headerRange{max: raw.Max, skip: raw.Skip, reverse: raw.Reverse != 0}
	var asHash common.Hash
	if err := rlp.DecodeBytes(raw.ID, &asHash); err == nil {
		hr.hash = &asHash
		return hr, nil
	}
	var asNumber uint64
	if err := rlp.DecodeBytes(raw.ID, &asNumber); err != nil {
		return headerRange{}, err
	}
	hr.number = asNumber
	return hr, nil
}

// GetBlockHeaders answers a GetBlockHeaders request, returning the raw
// BlockHeaders packet body to send back. If the chain is mid-fork the
// request is queued in delayed and (nil, ErrClientBusy) is returned.
func (s *Supplier) GetBlockHeaders(data []byte) ([]byte, error) {
	if s.data.Chain.IsProcessingFork() {
		s.delayed = append(s.delayed, delayedRequest{GetBlockHeadersPacket, data})
		return nil, ErrClientBusy
	}
	req, err := decodeHeaderRange(data)
	if err != nil {
		return nil, err
	}

	last := s.data.Chain.BestBlockNumber()
	var start uint64
	if req.hash != nil {
		h, ok := s.data.Chain.HeaderByHash(*req.hash)
		if !ok {
			return encodeRawList(nil)
		}
		n := h.Number.Uint64()
		canonical, ok := s.data.Chain.NumberForHash(*req.hash)
		if req.max == 1 || !ok || canonical != n {
			raw, err := rlp.EncodeToBytes(h)
			if err != nil {
				return nil, err
			}
			return encodeRawList([][]byte{raw})
		}
		start = n
	} else {
		start = req.number
	}

	number := start
	if req.reverse && number > last {
		number = last
	}
	maxCount := req.max
	if maxCount > MaxHeadersToSend {
		maxCount = MaxHeadersToSend
	}
	inc := req.skip + 1

	var out [][]byte
	size := 0
	for uint64(len(out)) < maxCount {
		var raw []byte
		if cached, ok := s.data.Chain.ForkBlockOverlay(number); ok {
			raw = cached
		} else if number <= last {
			h, ok := s.data.Chain.HeaderByNumber(number)
			if !ok {
				break
			}
			encoded, err := rlp.EncodeToBytes(h)
			if err != nil {
				return nil, err
			}
			raw = encoded
		} else {
			break
		}
		out = append(out, raw)
		size += len(raw)
		if size > PayloadSoftLimit {
			break
		}
		if req.reverse {
			if number < inc {
				break
			}
			number -= inc
		} else {
			number += inc
		}
	}
	return encodeRawList(out)
}

// GetBlockBodies answers a GetBlockBodies request: an RLP list of block
// hashes in, the corresponding [transactions, uncles] bodies out.
func (s *Supplier) GetBlockBodies(data []byte) ([]byte, error) {
	hashes, err := decodeHashList(data)
	if err != nil {
		return nil, err
	}
	count := len(hashes)
	if count > MaxBodiesToSend {
		count = MaxBodiesToSend
	}
	var out [][]byte
	size := 0
	for _, h := range hashes[:count] {
		body, ok := s.data.Chain.BodyByHash(h)
		if !ok {
			continue
		}
		raw, err := rlp.EncodeToBytes(body)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
		size += len(raw)
		if size > PayloadSoftLimit {
			break
		}
	}
	return encodeRawList(out)
}

// GetReceipts answers a GetReceipts request with the receipt list for each
// requested block hash.
func (s *Supplier) GetReceipts(data []byte) ([]byte, error) {
	hashes, err := decodeHashList(data)
	if err != nil {
		return nil, err
	}
	count := len(hashes)
	if count > MaxReceiptsToSend {
		count = MaxReceiptsToSend
	}
	var out [][]byte
	size := 0
	for _, h := range hashes[:count] {
		receipts, ok := s.data.Chain.ReceiptsByHash(h)
		if !ok {
			continue
		}
		raw, err := rlp.EncodeToBytes(types.Receipts(receipts))
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
		size += len(raw)
		if size > PayloadSoftLimit {
			break
		}
	}
	return encodeRawList(out)
}

// GetNodeData answers a GetNodeData request (state/bytecode fetch by hash).
func (s *Supplier) GetNodeData(data []byte) ([]byte, error) {
	if s.data.NodeData == nil {
		return encodeRawList(nil)
	}
	hashes, err := decodeHashList(data)
	if err != nil {
		return nil, err
	}
	count := len(hashes)
	if count > MaxNodeDataToSend {
		count = MaxNodeDataToSend
	}
	var out [][]byte
	size := 0
	for _, h := range hashes[:count] {
		blob, ok := s.data.NodeData(h)
		if !ok {
			continue
		}
		out = append(out, blob)
		size += len(blob)
		if size > PayloadSoftLimit {
			break
		}
	}
	return encodeRawList(out)
}

// ReplayDelayed drains and returns requests that arrived while the chain
// was mid-fork, for the caller to re-dispatch now that it has cleared.
func (s *Supplier) ReplayDelayed() []delayedRequest {
	out := s.delayed
	s.delayed = nil
	return out
}

func decodeHashList(data []byte) ([]common.Hash, error) {
	var hashes []common.Hash
	if err := rlp.DecodeBytes(data, &hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

func encodeRawList(items [][]byte) ([]byte, error) {
	raws := make([]rlp.RawValue, len(items))
	for i, it := range items {
		raws[i] = it
	}
	return rlp.EncodeToBytes(raws)
}
