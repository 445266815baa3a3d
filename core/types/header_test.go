package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

func sampleHeader() *Header {
	return &Header{
		ParentHash:  common.HexToHash("0x01"),
		UncleHash:   EmptyUncleHash,
		Coinbase:    common.HexToAddress("0x02"),
		Root:        EmptyRootHash,
		TxHash:      EmptyRootHash,
		ReceiptHash: EmptyRootHash,
		Bloom:       Bloom{},
		Difficulty:  big.NewInt(131072),
		Number:      big.NewInt(1),
		GasLimit:    8000000,
		GasUsed:     21000,
		Time:        1700000000,
		Extra:       []byte("hello"),
		Seal:        Seal{Raw: [][]byte{{0x82, 0xaa, 0xbb}, {0x82, 0xcc, 0xdd}}},
	}
}

// TestHeaderRLPRoundTrip is property P1: re-encoding a decoded header is
// byte-identical to the input.
func TestHeaderRLPRoundTrip(t *testing.T) {
	h := sampleHeader()
	encoded, err := rlp.EncodeToBytes(h)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded Header
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	reencoded, err := rlp.EncodeToBytes(&decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytesEqual(encoded, reencoded) {
		t.Fatalf("round trip mismatch:\n  got  %x\n  want %x", reencoded, encoded)
	}
}

// TestHeaderRLPRoundTripWithBaseFee covers the post-London optional tail
// field.
func TestHeaderRLPRoundTripWithBaseFee(t *testing.T) {
	h := sampleHeader()
	h.BaseFee = big.NewInt(1_000_000_000)

	encoded, err := rlp.EncodeToBytes(h)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded Header
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.BaseFee == nil || decoded.BaseFee.Cmp(h.BaseFee) != 0 {
		t.Fatalf("base fee not preserved: got %v want %v", decoded.BaseFee, h.BaseFee)
	}
}

// TestHeaderHashChangesOnMutation is property P2.
func TestHeaderHashChangesOnMutation(t *testing.T) {
	h := sampleHeader()
	h1 := h.Hash()
	if got := h.Hash(); got != h1 {
		t.Fatalf("hash not stable across repeated calls without mutation")
	}

	h.GasUsed++
	h.resetHash()
	h2 := h.Hash()
	if h1 == h2 {
		t.Fatalf("hash did not change after mutating GasUsed")
	}
}

// TestHeaderBareHashExcludesSeal checks that BareHash is independent of the
// seal, as required for it to serve as a PoW input fixed before sealing.
func TestHeaderBareHashExcludesSeal(t *testing.T) {
	h := sampleHeader()
	bare1 := h.BareHash()

	h.Seal = Seal{Raw: [][]byte{{0x01}, {0x02}}}
	h.hash.Store(nil)
	h.bareHash.Store(nil)
	bare2 := h.BareHash()

	if bare1 != bare2 {
		t.Fatalf("bare hash changed after only the seal changed")
	}
}

func TestSetExtraRejectsOversized(t *testing.T) {
	h := sampleHeader()
	oversized := make([]byte, 33)
	if err := h.SetExtra(oversized); err != ErrExtraDataTooLong {
		t.Fatalf("expected ErrExtraDataTooLong, got %v", err)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
