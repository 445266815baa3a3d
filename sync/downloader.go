package sync

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"github.com/openethereum-go/corechain/core/types"
)

// DownloadAction reports the effect a batch of downloaded headers had on a
// BlockDownloader's internal state, letting the caller decide whether the
// in-flight request set for this block set needs to be abandoned.
type DownloadAction int

const (
	ActionNone DownloadAction = iota
	ActionReset
)

// ImportError is the three-way verdict a downloaded batch produces: Invalid
// batches get their sender disabled and dropped, Useless batches (stale,
// duplicate, or simply unhelpful) get the sender deactivated without the
// "malicious" stigma, and a nil error means keep going.
type ImportError struct {
	useless bool
}

func (e *ImportError) Error() string {
	if e.useless {
		return "downloader: useless response"
	}
	return "downloader: invalid response"
}

// IsUseless reports whether err is an ImportError carrying the "useless"
// (not "invalid") verdict.
func IsUseless(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie) && ie.useless
}

// IsInvalid reports whether err is an ImportError carrying the "invalid"
// verdict.
func IsInvalid(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie) && !ie.useless
}

var errUseless = &ImportError{useless: true}
var errInvalid = &ImportError{useless: false}

// headerChain is a contiguous run of downloaded headers awaiting their
// bodies, staged under the first header's hash. Batches are not linked to
// one another.
type headerChain struct {
	headers []*types.Header
}

func (h *headerChain) first() *types.Header  { return h.headers[0] }
func (h *headerChain) last() *types.Header   { return h.headers[len(h.headers)-1] }

// BlockDownloader tracks one of the two download channels (new blocks or
// old/ancient blocks) for a ChainSync: which headers have been requested,
// which are staged waiting for bodies, and what request to make next.
//
// It holds no peer-assignment state of its own — ChainSync decides which
// peer a request goes to — only the shape of the request and the staged
// results.
type BlockDownloader struct {
	set BlockSet

	// targetNumber is the highest known block number on this channel, used
	// to size header-request batches without overshooting.
	targetNumber uint64

	// staged holds header batches that have arrived but not yet been
	// completed with bodies, keyed by the batch's first header hash.
	staged map[common.Hash]*headerChain

	// inFlightBodies marks staged batches that already have a GetBlockBodies
	// request outstanding, so NextBodyBatch doesn't hand the same batch to a
	// second peer while the first is still waiting on a reply.
	inFlightBodies map[common.Hash]bool

	importedHeaders map[common.Hash]*types.Header
}

// NewBlockDownloader returns a BlockDownloader for the given channel.
func NewBlockDownloader(set BlockSet) *BlockDownloader {
	return &BlockDownloader{
		set:             set,
		staged:          make(map[common.Hash]*headerChain),
		inFlightBodies:  make(map[common.Hash]bool),
		importedHeaders: make(map[common.Hash]*types.Header),
	}
}

// NextBodyBatch returns a staged header batch with no GetBlockBodies request
// outstanding, keyed by its own first header's hash, along with the ordered
// header hashes to ask bodies for. Returns false if every staged batch
// already has a request in flight.
func (d *BlockDownloader) NextBodyBatch() (common.Hash, []common.Hash, bool) {
	for key, chain := range d.staged {
		if d.inFlightBodies[key] {
			continue
		}
		hashes := make([]common.Hash, len(chain.headers))
		for i, h := range chain.headers {
			hashes[i] = h.Hash()
		}
		return key, hashes, true
	}
	return common.Hash{}, nil, false
}

// MarkBodiesInFlight records that batch is now out for bodies.
func (d *BlockDownloader) MarkBodiesInFlight(batch common.Hash) {
	d.inFlightBodies[batch] = true
}

// ClearBodiesInFlight releases batch for re-request, whether the reply
// completed it, came back invalid, or simply timed out.
func (d *BlockDownloader) ClearBodiesInFlight(batch common.Hash) {
	delete(d.inFlightBodies, batch)
}

// SetTarget records the highest block number this downloader should pursue
// (our own best-known peer's advertised height, for NewBlocks; the
// configured ancient-block floor, for OldBlocks).
func (d *BlockDownloader) SetTarget(n uint64) {
	if n > d.targetNumber {
		d.targetNumber = n
	}
}

// HeaderRequest describes a GetBlockHeaders packet: either by hash or by
// number, with the usual max/skip/reverse parameters.
type HeaderRequest struct {
	Hash    *common.Hash
	Number  uint64
	Max     uint64
	Skip    uint64
	Reverse bool
}

// Encode serializes the request into the devp2p wire shape:
// [ { hash | number }, max, skip, reverse ].
func (r HeaderRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := rlp.NewEncoderBuffer(&buf)
	l := w.List()
	if r.Hash != nil {
		w.WriteBytes(r.Hash[:])
	} else {
		w.WriteUint64(r.Number)
	}
	w.WriteUint64(r.Max)
	w.WriteUint64(r.Skip)
	if r.Reverse {
		w.WriteUint64(1)
	} else {
		w.WriteUint64(0)
	}
	w.ListEnd(l)
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NextRequest builds the next header request for this downloader: 192
// headers forward from ourBest+1 for NewBlocks, or backward from ourBest-1
// for OldBlocks. Returns false when ourBest+1 is past a non-zero
// targetNumber (NewBlocks) or ourBest is at or below targetNumber
// (OldBlocks). Staged batches and requests in flight are not considered.
func (d *BlockDownloader) NextRequest(ourBest uint64) (HeaderRequest, bool) {
	from := ourBest + 1
	if d.set == OldBlocks {
		// Ancient backfill walks backward from our own genesis-ward edge;
		// targetNumber here is the floor we still need to reach.
		if ourBest <= d.targetNumber {
			return HeaderRequest{}, false
		}
		return HeaderRequest{Number: ourBest - 1, Max: 192, Skip: 0, Reverse: true}, true
	}
	if d.targetNumber != 0 && from > d.targetNumber {
		return HeaderRequest{}, false
	}
	return HeaderRequest{Number: from, Max: 192, Skip: 0, Reverse: false}, true
}

// ImportHeaders validates and stages a batch of headers received in reply
// to a HeaderRequest. It returns ActionNone on every path; it never returns
// ActionReset and does not discard previously staged batches.
func (d *BlockDownloader) ImportHeaders(peer uuid.UUID, headers []*types.Header) (DownloadAction, error) {
	if len(headers) == 0 {
		return ActionNone, errUseless
	}
	for i := 1; i < len(headers); i++ {
		if headers[i].ParentHash != headers[i-1].Hash() {
			return ActionNone, errInvalid
		}
	}
	chain := &headerChain{headers: headers}
	d.staged[headers[0].Hash()] = chain
	for _, h := range headers {
		d.importedHeaders[h.Hash()] = h
	}
	if last := chain.last().Number.Uint64(); last > d.targetNumber && d.set == NewBlocks {
		d.targetNumber = last
	}
	return ActionNone, nil
}

// CompleteWithBodies pairs a previously staged header batch with its bodies,
// producing raw RLP-encoded blocks ready for ChainClient.ImportBlock. The
// staged entry is consumed on success.
func (d *BlockDownloader) CompleteWithBodies(headFirstHash common.Hash, bodies []*types.Body) ([][]byte, error) {
	chain, ok := d.staged[headFirstHash]
	if !ok {
		return nil, errUseless
	}
	if len(bodies) != len(chain.headers) {
		return nil, errInvalid
	}
	// Tx-root/uncle-hash consistency is the verification queue's job (its
	// Verifier.Verify runs against state-independent consensus rules); the
	// downloader only pairs what it staged with what arrived.
	out := make([][]byte, 0, len(bodies))
	for i, body := range bodies {
		h := chain.headers[i]
		block := types.NewBlockWithHeader(h).WithBody(body.Transactions, body.Uncles)
		raw, err := rlp.EncodeToBytes(block)
		if err != nil {
			return nil, fmt.Errorf("sync: encode downloaded block: %w", err)
		}
		out = append(out, raw)
	}
	delete(d.staged, headFirstHash)
	return out, nil
}
