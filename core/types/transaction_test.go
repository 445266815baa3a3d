package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

func TestLegacyTransactionRLPRoundTrip(t *testing.T) {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tx := NewTx(&LegacyTx{
		Nonce:    7,
		GasPrice: big.NewInt(20_000_000_000),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1_000_000),
		Data:     nil,
	})

	encoded, err := rlp.EncodeToBytes(tx)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded Transaction
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type() != LegacyTxType {
		t.Fatalf("expected legacy type, got %v", decoded.Type())
	}
	if decoded.Nonce() != 7 || decoded.Gas() != 21000 {
		t.Fatalf("fields not preserved: nonce=%d gas=%d", decoded.Nonce(), decoded.Gas())
	}
}

func TestDynamicFeeTransactionEnvelope(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := NewTx(&DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     3,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(50_000_000_000),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	data, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if data[0] != byte(DynamicFeeTxType) {
		t.Fatalf("expected type-byte prefix %d, got %d", DynamicFeeTxType, data[0])
	}

	var decoded Transaction
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type() != DynamicFeeTxType {
		t.Fatalf("expected dynamic fee type, got %v", decoded.Type())
	}
	if decoded.GasTipCap().Cmp(big.NewInt(2_000_000_000)) != 0 {
		t.Fatalf("gas tip cap not preserved")
	}
}

func TestEffectiveGasTip(t *testing.T) {
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	tx := NewTx(&DynamicFeeTx{
		ChainID:   big.NewInt(1),
		GasTipCap: big.NewInt(3_000_000_000),
		GasFeeCap: big.NewInt(10_000_000_000),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	// baseFee low enough that the tip cap binds.
	tip, err := tx.EffectiveGasTip(big.NewInt(1_000_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tip.Cmp(big.NewInt(3_000_000_000)) != 0 {
		t.Fatalf("expected tip cap to bind, got %v", tip)
	}

	// baseFee high enough that feeCap-baseFee binds instead.
	tip, err = tx.EffectiveGasTip(big.NewInt(8_000_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tip.Cmp(big.NewInt(2_000_000_000)) != 0 {
		t.Fatalf("expected feeCap-baseFee to bind, got %v", tip)
	}

	// baseFee above feeCap is an error (not eligible for inclusion).
	if _, err := tx.EffectiveGasTip(big.NewInt(20_000_000_000)); err == nil {
		t.Fatalf("expected error when base fee exceeds fee cap")
	}
}

func TestSignAndRecoverLegacyEIP155(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	to := common.HexToAddress("0x4444444444444444444444444444444444444444")
	tx := NewTx(&LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(42),
	})

	signer := NewEIP155Signer(big.NewInt(1))
	h := signer.Hash(tx)
	sig, err := crypto.Sign(h[:], key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		t.Fatalf("with signature: %v", err)
	}

	got, err := Sender(signer, signed)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if got != want {
		t.Fatalf("recovered sender mismatch: got %s want %s", got, want)
	}
	if !signed.Protected() {
		t.Fatalf("expected EIP-155 signed legacy tx to be protected")
	}
}

func TestSignAndRecoverDynamicFee(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	to := common.HexToAddress("0x5555555555555555555555555555555555555555")
	tx := NewTx(&DynamicFeeTx{
		ChainID:   big.NewInt(5),
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signer := NewLondonSigner(big.NewInt(5))
	h := signer.Hash(tx)
	sig, err := crypto.Sign(h[:], key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		t.Fatalf("with signature: %v", err)
	}

	got, err := Sender(signer, signed)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if got != want {
		t.Fatalf("recovered sender mismatch: got %s want %s", got, want)
	}
}

func TestSenderRejectsWrongChainID(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	to := common.HexToAddress("0x6666666666666666666666666666666666666666")
	tx := NewTx(&DynamicFeeTx{
		ChainID:   big.NewInt(1),
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})
	signer := NewLondonSigner(big.NewInt(1))
	h := signer.Hash(tx)
	sig, _ := crypto.Sign(h[:], key)
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		t.Fatalf("with signature: %v", err)
	}

	wrongSigner := NewLondonSigner(big.NewInt(2))
	if _, err := Sender(wrongSigner, signed); err == nil {
		t.Fatalf("expected chain id mismatch error")
	}
}
