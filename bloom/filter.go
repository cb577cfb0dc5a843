// Package bloom implements the probabilistic skip filter used to avoid
// re-verifying candidates that earlier runs already tried and rejected.
//
// A filter is either valid or invalid. Every public entry point checks the
// state bit: on an invalid filter Contains reports false and Insert is a
// no-op, so a failed load degrades the caller to a filter-less run without
// corruption risk. False positives only skip a verification, which is safe
// because a candidate is inserted strictly after it has been verified as
// wrong.
package bloom

import (
	"math"
)

const (
	// minBits is the smallest permitted bit vector.
	minBits = 8
	// maxHashes caps the number of hash functions.
	maxHashes = 20
	// MaxBits caps the bit vector at 4 GiB of packed bits.
	MaxBits = uint64(4) << 33
)

// Filter is a fixed-size Bloom filter keyed by 64-bit FNV-1a double hashing.
//
// Concurrency: Insert must be externally serialized (the engine holds a
// mutex). Contains may run concurrently with Insert without a lock: set bits
// are monotone, and a racy miss only causes a spurious verification, never a
// missed match.
type Filter struct {
	mBits  uint64
	hashes uint32
	nEst   uint64
	pRate  float64
	bits   []byte // packed LSB-first within each byte
	valid  bool
}

// Sizing returns the bit count and hash count a filter would use for the
// given estimate and target false-positive rate, before any allocation:
// m = ceil(-n*ln(p) / ln(2)^2) clamped to at least minBits, and
// k = ceil((m/n)*ln(2)) clamped to [1, maxHashes].
func Sizing(estimatedItems uint64, falsePositiveRate float64) (mBits uint64, hashes uint32) {
	if estimatedItems == 0 || falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		return minBits, 1
	}
	n := float64(estimatedItems)
	ln2 := math.Ln2
	mExact := -(n * math.Log(falsePositiveRate)) / (ln2 * ln2)
	mBits = uint64(math.Ceil(mExact))
	if mBits < minBits {
		mBits = minBits
	}
	kExact := (mExact / n) * ln2
	k := int64(math.Ceil(kExact))
	if k < 1 {
		k = 1
	}
	if k > maxHashes {
		k = maxHashes
	}
	return mBits, uint32(k)
}

// New creates a filter sized for estimatedItems at the target false-positive
// rate. Invalid parameters produce a degenerate but safe minimal filter
// rather than an error, matching the legacy behavior.
func New(estimatedItems uint64, falsePositiveRate float64) *Filter {
	mBits, hashes := Sizing(estimatedItems, falsePositiveRate)
	return &Filter{
		mBits:  mBits,
		hashes: hashes,
		nEst:   estimatedItems,
		pRate:  falsePositiveRate,
		bits:   make([]byte, (mBits+7)/8),
		valid:  true,
	}
}

// Valid reports whether the filter holds a usable bit vector. An invalid
// filter (for example after a failed load) accepts no inserts and reports
// nothing as contained.
func (f *Filter) Valid() bool { return f != nil && f.valid }

// Bits returns the bit vector size m.
func (f *Filter) Bits() uint64 { return f.mBits }

// Hashes returns the hash count k.
func (f *Filter) Hashes() uint32 { return f.hashes }

// EstimatedItems returns the item estimate the filter was sized for.
func (f *Filter) EstimatedItems() uint64 { return f.nEst }

// TargetRate returns the false-positive rate the filter was sized for.
func (f *Filter) TargetRate() float64 { return f.pRate }

// Insert sets all k bit positions for item. No-op on an invalid filter.
func (f *Filter) Insert(item string) {
	if !f.Valid() {
		return
	}
	h1, h2 := hashPair(item)
	for i := uint64(0); i < uint64(f.hashes); i++ {
		bit := (h1 + i*h2) % f.mBits
		f.bits[bit/8] |= 1 << (bit % 8)
	}
}

// Contains reports whether all k bit positions for item are set. An invalid
// filter contains nothing.
func (f *Filter) Contains(item string) bool {
	if !f.Valid() {
		return false
	}
	h1, h2 := hashPair(item)
	for i := uint64(0); i < uint64(f.hashes); i++ {
		bit := (h1 + i*h2) % f.mBits
		if f.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}
