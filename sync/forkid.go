package sync

import (
	"encoding/binary"
	"errors"
	"hash"
	"hash/crc32"
)

// ForkID is the CRC32-of-applied-forks / next-fork-block pair exchanged in
// the Status handshake (EIP-2124), letting two peers agree they're on the
// same fork history without walking the whole chain.
type ForkID struct {
	Hash [4]byte
	Next uint64
}

// Encode serializes a ForkID as the 12 raw bytes the wire expects: 4-byte
// checksum followed by the 8-byte big-endian next-fork block number.
func (f ForkID) Encode() []byte {
	out := make([]byte, 12)
	copy(out[:4], f.Hash[:])
	binary.BigEndian.PutUint64(out[4:], f.Next)
	return out
}

// DecodeForkID reverses Encode.
func DecodeForkID(b []byte) (ForkID, error) {
	if len(b) != 12 {
		return ForkID{}, errors.New("sync: malformed fork id")
	}
	var f ForkID
	copy(f.Hash[:], b[:4])
	f.Next = binary.BigEndian.Uint64(b[4:])
	return f, nil
}

// ErrForkIncompatible is returned by ForkFilter.IsCompatible when a remote's
// advertised fork id cannot be reconciled with our own fork schedule.
var ErrForkIncompatible = errors.New("sync: incompatible fork id")

// ErrForkLocalIncompatible is returned when the remote's checksum matches
// none of our own fork-history prefixes — we're on an incompatible chain,
// or hopelessly behind a fork the remote already applied.
var ErrForkLocalIncompatible = errors.New("sync: local node outdated relative to remote fork")

// ForkFilter computes and validates EIP-2124 fork ids from an ordered list
// of block numbers at which a consensus-breaking change activates, seeded
// by the chain's genesis hash.
type ForkFilter struct {
	genesisHash [32]byte
	forks       []uint64 // ascending, deduplicated block numbers
}

// NewForkFilter builds a ForkFilter from an unordered, possibly-duplicated
// fork block list.
func NewForkFilter(genesisHash [32]byte, forks []uint64) *ForkFilter {
	sorted := append([]uint64(nil), forks...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	deduped := sorted[:0]
	for i, f := range sorted {
		if i == 0 || f != sorted[i-1] {
			deduped = append(deduped, f)
		}
	}
	return &ForkFilter{genesisHash: genesisHash, forks: deduped}
}

// checksums returns the running CRC32 after each of our forks, in order —
// perForkSum[i] is the value a node would advertise if its own head were
// exactly f.forks[i]. The zero-index "genesis only" checksum is returned
// separately as base.
func (f *ForkFilter) checksums() (base uint32, perForkSum []uint32) {
	h := newCRC(f.genesisHash)
	base = h.Sum32()
	perForkSum = make([]uint32, len(f.forks))
	for i, fork := range f.forks {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], fork)
		h.Write(b[:])
		perForkSum[i] = h.Sum32()
	}
	return base, perForkSum
}

func newCRC(genesisHash [32]byte) hash.Hash32 {
	h := crc32.NewIEEE()
	h.Write(genesisHash[:])
	return h
}

// IDAt computes the ForkID a node at head block `head` would advertise.
func (f *ForkFilter) IDAt(head uint64) ForkID {
	base, sums := f.checksums()

	sum, next := base, uint64(0)
	for i, fork := range f.forks {
		if fork > head {
			next = fork
			break
		}
		sum = sums[i]
	}
	var out ForkID
	binary.BigEndian.PutUint32(out.Hash[:], sum)
	out.Next = next
	return out
}

// IsCompatible validates a remote's advertised ForkID against our own fork
// schedule at our current head, per EIP-2124: the remote's checksum must
// equal either our own current checksum (any "next" claim is then checked
// against what we'd compute), or the checksum of any other prefix of our
// fork list, before or past our head, as long as it names the fork that
// follows that prefix as its next one (any next is accepted after our last
// fork).
func (f *ForkFilter) IsCompatible(head uint64, remote ForkID) error {
	ours := f.IDAt(head)
	remoteHash := binary.BigEndian.Uint32(remote.Hash[:])
	oursHash := binary.BigEndian.Uint32(ours.Hash[:])

	if remoteHash == oursHash {
		if remote.Next != 0 && remote.Next != ours.Next {
			return ErrForkIncompatible
		}
		return nil
	}

	base, sums := f.checksums()
	if remoteHash == base && len(f.forks) > 0 {
		if remote.Next != f.forks[0] {
			return ErrForkIncompatible
		}
		return nil
	}
	for i, sum := range sums {
		if sum != remoteHash {
			continue
		}
		if i+1 < len(f.forks) && remote.Next != f.forks[i+1] {
			return ErrForkIncompatible
		}
		return nil
	}
	return ErrForkLocalIncompatible
}
