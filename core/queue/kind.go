// Copyright 2014 The go-ethereum Authors
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

package queue

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Unverified is a parsed-but-unchecked queue item sitting in the unverified
// FIFO. Its difficulty is accumulated into the queue's running total as soon
// as it is staged, so TotalDifficulty covers it without a second pass once
// verification completes.
type Unverified interface {
	Hash() common.Hash
	// RawHash identifies the wire payload the item was built from, which can
	// differ from Hash when the header parses fine but the body (tx root,
	// uncle hash) doesn't match it. Import rejects an item whose RawHash is
	// in the bad set; the queue itself only ever adds Hash to the bad set
	// (on a failed Verify), so RawHash entries come from BadHashes or
	// MarkAsBad.
	RawHash() common.Hash
	ParentHash() common.Hash
	Difficulty() *big.Int
}

// Verified is the output of a successful Verifier.Verify call, ready for
// Drain to hand to the chain client for insertion.
type Verified interface {
	Hash() common.Hash
	ParentHash() common.Hash
}

// Sizer is implemented by items that can report their own heap footprint;
// the queue uses it to enforce Config.MaxMemUse. Items that don't implement
// it fall back to a fixed per-item estimate.
type Sizer interface {
	Size() uint64
}

// Verifier supplies the kind-specific parse/verify steps the queue drives.
// A block queue's Verifier decodes raw RLP into a *types.Block and checks it
// against a consensus engine; a header-only queue would do the same against
// bare headers. The queue itself knows nothing about RLP or consensus rules.
type Verifier interface {
	// Parse turns a raw wire payload into an Unverified item. It runs
	// synchronously inside Import, under no lock but the processing-map
	// check, so it should be cheap (decode only, no state access).
	Parse(raw []byte) (Unverified, error)
	// Verify runs the expensive checks (seal, state-independent consensus
	// rules) outside all queue locks, in a worker goroutine.
	Verify(item Unverified, checkSeal bool) (Verified, error)
}

const defaultItemSize = 1024

func itemSize(v any) uint64 {
	if s, ok := v.(Sizer); ok {
		return s.Size()
	}
	return defaultItemSize
}
