package duel

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SaltSize is the byte length of the commitment salt.
const SaltSize = 32

// Commit computes the commitment hash for a move and salt. The preimage is
// the fixed-width concatenation of the one-byte move integer and the 32-byte
// salt, so no two (move, salt) pairs share an encoding.
func Commit(move Move, salt [SaltSize]byte) [32]byte {
	var out [32]byte
	digest := ethcrypto.Keccak256([]byte{byte(move)}, salt[:])
	copy(out[:], digest)
	return out
}

// Verify recomputes the commitment for (move, salt) and compares it for exact
// equality against the stored hash.
func Verify(commit [32]byte, move Move, salt [SaltSize]byte) bool {
	return Commit(move, salt) == commit
}
