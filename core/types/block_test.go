package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

func TestBlockRLPRoundTrip(t *testing.T) {
	h := sampleHeader()
	to := common.HexToAddress("0x42")
	tx := NewTx(&LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21000, To: &to, Value: big.NewInt(1)})

	block := NewBlockWithHeader(h).WithBody([]*Transaction{tx}, nil)

	encoded, err := rlp.EncodeToBytes(block)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded Block
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Hash() != block.Hash() {
		t.Fatalf("hash mismatch after round trip: got %s want %s", decoded.Hash(), block.Hash())
	}
	if len(decoded.Transactions()) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(decoded.Transactions()))
	}
	if decoded.Size() == 0 {
		t.Fatalf("expected non-zero size after decode")
	}
}

func TestBlockAccessorsMatchHeader(t *testing.T) {
	h := sampleHeader()
	block := NewBlockWithHeader(h)

	if block.Number().Cmp(h.Number) != 0 {
		t.Fatalf("number mismatch")
	}
	if block.GasLimit() != h.GasLimit {
		t.Fatalf("gas limit mismatch")
	}
	if block.ParentHash() != h.ParentHash {
		t.Fatalf("parent hash mismatch")
	}
	if block.Hash() != h.Hash() {
		t.Fatalf("block hash should equal header hash")
	}
}
