// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
)

// computeTransferHash identifies a transfer independently of chain reorgs:
// keccak256(transaction_hash || minimal_big_endian(log_index)), where a
// zero log index serializes to the empty byte string.
func computeTransferHash(txHash common.Hash, logIndex uint) common.Hash {
	return crypto.Keccak256Hash(txHash.Bytes(), minimalBigEndian(logIndex))
}

// minimalBigEndian returns the shortest big-endian encoding of n, matching
// the source chain's standard unsigned integer encoding: zero encodes to an
// empty slice, not a zero byte.
func minimalBigEndian(n uint) []byte {
	return new(big.Int).SetUint64(uint64(n)).Bytes()
}
