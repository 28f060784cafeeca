package generator

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// RNG wraps math/rand.Rand for seeded random generation
type RNG struct {
	*rand.Rand
}

// NewRNG creates a new seeded random number generator
func NewRNG(seed int64) *RNG {
	return &RNG{
		Rand: rand.New(rand.NewSource(seed)),
	}
}

// ComputeChecksum computes a SHA256 checksum for the given data
func ComputeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// DeriveSeed mixes a base seed with a key so every parent gets its own stable sequence,
// independent of the order in which parents are requested.
func DeriveSeed(base int64, key string) int64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(base))
	hash := sha256.Sum256(append(buf[:], key...))
	return int64(binary.BigEndian.Uint64(hash[:8]))
}
