package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

func TestLegacyReceiptRLPRoundTrip(t *testing.T) {
	r := &Receipt{
		Type:              LegacyTxType,
		Status:            ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		Logs: []*Log{
			{Address: common.HexToAddress("0x01"), Topics: []common.Hash{common.HexToHash("0xaa")}, Data: []byte("x")},
		},
	}
	r.SetBloom()

	encoded, err := rlp.EncodeToBytes(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded Receipt
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Status != ReceiptStatusSuccessful {
		t.Fatalf("status not preserved")
	}
	if decoded.Bloom != r.Bloom {
		t.Fatalf("bloom not preserved")
	}
	if len(decoded.Logs) != 1 || decoded.Logs[0].Address != r.Logs[0].Address {
		t.Fatalf("logs not preserved")
	}
}

func TestTypedReceiptEnvelope(t *testing.T) {
	r := &Receipt{Type: DynamicFeeTxType, Status: ReceiptStatusFailed, CumulativeGasUsed: 50000}

	encoded, err := rlp.EncodeToBytes(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded[0] >= 0xc0 {
		t.Fatalf("expected typed receipt to be RLP-string-wrapped (not a bare list), got %x", encoded[0])
	}

	var decoded Receipt
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != DynamicFeeTxType {
		t.Fatalf("type not preserved: got %v", decoded.Type)
	}
	if decoded.Status != ReceiptStatusFailed {
		t.Fatalf("status not preserved")
	}
}

func TestCreateBloomMatchesPerReceiptBloom(t *testing.T) {
	r1 := &Receipt{Logs: []*Log{{Address: common.HexToAddress("0x01")}}}
	r2 := &Receipt{Logs: []*Log{{Address: common.HexToAddress("0x02")}}}
	r1.SetBloom()
	r2.SetBloom()

	combined := CreateBloom(Receipts{r1, r2})
	for i := range combined {
		if (r1.Bloom[i] | r2.Bloom[i]) != combined[i] {
			t.Fatalf("combined bloom is not the union of individual blooms at byte %d", i)
		}
	}
}
