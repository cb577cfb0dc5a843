package bloom

import "encoding/binary"

const (
	fnvOffsetBasis = 0xcbf29ce484222325
	fnvPrime       = 0x100000001b3
)

// fnv1a64 is the 64-bit FNV-1a hash: XOR each byte into the state, then
// multiply by the FNV prime. The filter's on-disk compatibility depends on
// these exact constants, so the function is written out here rather than
// going through hash/fnv's streaming interface.
func fnv1a64(data []byte) uint64 {
	h := uint64(fnvOffsetBasis)
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime
	}
	return h
}

// hashPair derives the two bases for double hashing: h1 over the item
// itself, h2 over the little-endian bytes of h1. Bit i of k is then
// (h1 + i*h2) mod m, giving k positions from a single scan of the item.
func hashPair(item string) (h1, h2 uint64) {
	h := uint64(fnvOffsetBasis)
	for i := 0; i < len(item); i++ {
		h ^= uint64(item[i])
		h *= fnvPrime
	}
	h1 = h
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h1)
	h2 = fnv1a64(buf[:])
	return h1, h2
}
