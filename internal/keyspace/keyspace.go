// Package keyspace implements the deterministic bijections between integer
// indices and candidate strings over a declared alphabet.
//
// Candidates of a given length are ordered lexicographically under the
// alphabet's declared order, with the leftmost position changing slowest:
// index 0 of length L is charset[0] repeated L times, index 1 differs only in
// the last position, and so on. Plain global indices cover lengths 1..maxLen
// in ascending order of length.
package keyspace

import (
	kserrors "github.com/mtarnawa/keysweep/errors"
)

// CountForLength returns charsetSize^length, the number of plain candidates
// of exactly the given length. Returns ErrCountOverflow if the product does
// not fit in 64 bits.
func CountForLength(charsetSize uint64, length int) (uint64, error) {
	if charsetSize == 0 || length <= 0 {
		return 0, nil
	}
	count := uint64(1)
	for i := 0; i < length; i++ {
		if count > maxUint64/charsetSize {
			return 0, kserrors.ErrCountOverflow
		}
		count *= charsetSize
	}
	return count, nil
}

// TotalCount returns the sum of CountForLength over lengths minLen..maxLen
// inclusive. Returns ErrCountOverflow if the accumulator overflows.
func TotalCount(charsetSize uint64, minLen, maxLen int) (uint64, error) {
	var total uint64
	for length := minLen; length <= maxLen; length++ {
		count, err := CountForLength(charsetSize, length)
		if err != nil {
			return 0, err
		}
		if total > maxUint64-count {
			return 0, kserrors.ErrCountOverflow
		}
		total += count
	}
	return total, nil
}

// PrefixCount returns the number of plain candidates strictly shorter than
// length, i.e. the global-index offset of the first length-L candidate.
func PrefixCount(charsetSize uint64, length int) (uint64, error) {
	return TotalCount(charsetSize, 1, length-1)
}

const maxUint64 = ^uint64(0)

// FillAtLength writes the candidate at local index idx within one length
// block into dst: the base-len(charset) representation of idx, most
// significant digit first, zero-extended to len(dst) digits.
//
// This is the sequential worker's hot path; dst is caller-owned so repeated
// calls do not allocate. idx must be below len(charset)^len(dst).
func FillAtLength(dst []byte, idx uint64, charset []byte) {
	charsetSize := uint64(len(charset))
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = charset[idx%charsetSize]
		idx /= charsetSize
	}
}

// ByIndex materializes the candidate at plain global index idx, considering
// lengths 1..maxLen. The global index space is partitioned by length: indices
// [0, s) map to length 1 where s = len(charset), the next s^2 indices map to
// length 2, and so on.
//
// Returns ErrCountOverflow if a per-length count overflows before idx is
// located, and ErrIndexOutOfRange if idx is beyond the final length block.
func ByIndex(idx uint64, charset []byte, maxLen int) (string, error) {
	charsetSize := uint64(len(charset))
	if charsetSize == 0 {
		return "", kserrors.ErrIndexOutOfRange
	}
	remaining := idx
	power := uint64(1)
	for length := 1; length <= maxLen; length++ {
		if power > maxUint64/charsetSize {
			return "", kserrors.ErrCountOverflow
		}
		power *= charsetSize
		if remaining < power {
			buf := make([]byte, length)
			FillAtLength(buf, remaining, charset)
			return string(buf), nil
		}
		remaining -= power
	}
	return "", kserrors.ErrIndexOutOfRange
}
