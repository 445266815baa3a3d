// Copyright 2015 The go-ethereum Authors
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

package types

// Hand-written (rather than reflection/struct-tag generated) RLP codec for
// Header, because the seal is a variable number of engine-specific fields
// spliced in after the 13 fixed fields and before the optional base-fee
// tail. gencodec-style struct tags can express one optional trailing
// field, not "N opaque fields whose count the engine alone decides", so
// this follows the teacher's header_rlp_rollup.go approach of writing the
// codec by hand instead of generating it.

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// EncodeRLP implements rlp.Encoder.
func (h *Header) EncodeRLP(w io.Writer) error {
	buf := rlp.NewEncoderBuffer(w)
	outer := buf.List()

	buf.WriteBytes(h.ParentHash[:])
	buf.WriteBytes(h.UncleHash[:])
	buf.WriteBytes(h.Coinbase[:])
	buf.WriteBytes(h.Root[:])
	buf.WriteBytes(h.TxHash[:])
	buf.WriteBytes(h.ReceiptHash[:])
	buf.WriteBytes(h.Bloom[:])
	if err := encodeBigIntOrEmpty(&buf, h.Difficulty); err != nil {
		return err
	}
	if err := encodeBigIntOrEmpty(&buf, h.Number); err != nil {
		return err
	}
	buf.WriteUint64(h.GasLimit)
	buf.WriteUint64(h.GasUsed)
	buf.WriteUint64(h.Time)
	buf.WriteBytes(h.Extra)

	// Engine-specific seal: an opaque, engine-decided number of fields.
	for _, field := range h.Seal.Raw {
		buf.Write(field)
	}

	// Optional post-London field.
	if h.BaseFee != nil {
		if err := encodeBigIntOrEmpty(&buf, h.BaseFee); err != nil {
			return err
		}
	}

	buf.ListEnd(outer)
	return buf.Flush()
}

func encodeBigIntOrEmpty(w *rlp.EncoderBuffer, value *big.Int) error {
	if value == nil {
		w.Write(rlp.EmptyString)
		return nil
	}
	if value.Sign() == -1 {
		return rlp.ErrNegativeBigInt
	}
	w.WriteBigInt(value)
	return nil
}

// DecodeRLP implements rlp.Decoder. It assumes a PoW-shaped two-field seal
// (mix digest, nonce) — the common case for the bundled engines. Callers
// that know they're decoding a header from an engine with a different seal
// width should use DecodeRLPWithSealWidth directly.
func (h *Header) DecodeRLP(s *rlp.Stream) error {
	return h.DecodeRLPWithSealWidth(s, 2)
}

// DecodeRLPWithSealWidth decodes a header whose seal carries exactly
// sealWidth opaque RLP fields, then an optional trailing base-fee.
func (h *Header) DecodeRLPWithSealWidth(s *rlp.Stream, sealWidth int) error {
	if _, err := s.List(); err != nil {
		return err
	}
	if err := s.Decode(&h.ParentHash); err != nil {
		return err
	}
	if err := s.Decode(&h.UncleHash); err != nil {
		return err
	}
	if err := s.Decode(&h.Coinbase); err != nil {
		return err
	}
	if err := s.Decode(&h.Root); err != nil {
		return err
	}
	if err := s.Decode(&h.TxHash); err != nil {
		return err
	}
	if err := s.Decode(&h.ReceiptHash); err != nil {
		return err
	}
	if err := s.Decode(&h.Bloom); err != nil {
		return err
	}

	h.Difficulty = new(big.Int)
	if err := s.Decode(h.Difficulty); err != nil {
		return err
	}
	h.Number = new(big.Int)
	if err := s.Decode(h.Number); err != nil {
		return err
	}

	if err := s.Decode(&h.GasLimit); err != nil {
		return err
	}
	if err := s.Decode(&h.GasUsed); err != nil {
		return err
	}
	if err := s.Decode(&h.Time); err != nil {
		return err
	}
	if err := s.Decode(&h.Extra); err != nil {
		return err
	}

	seal := make([][]byte, sealWidth)
	for i := 0; i < sealWidth; i++ {
		field, err := s.Raw()
		if err != nil {
			return err
		}
		seal[i] = field
	}
	h.Seal = Seal{Raw: seal}

	// Optional trailing base-fee: rlp.EOL means the list ended, i.e. the
	// field is absent — the same sentinel gencodec's own "optional" struct
	// tag relies on.
	var baseFee *big.Int
	if err := s.Decode(&baseFee); err == nil {
		h.BaseFee = baseFee
	} else if err != rlp.EOL {
		return err
	}

	h.resetHash()
	return s.ListEnd()
}

func rlpEncodeToBytes(x interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(x)
}
