package sync

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

func encodeHashList(hashes []common.Hash) ([]byte, error) {
	return rlp.EncodeToBytes(hashes)
}
