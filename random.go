package keysweep

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"

	"github.com/zeebo/xxh3"

	kserrors "github.com/mtarnawa/keysweep/errors"
	"github.com/mtarnawa/keysweep/internal/keyspace"
)

// maxRandomIndices caps the shuffled index vector at 4 GiB of 64-bit
// entries. Random ordering materializes the whole permutation in memory;
// beyond the cap the permutation cannot be held.
const maxRandomIndices = (uint64(4) << 30) / 8

// newShuffleRNG seeds the shuffle PRNG. When host entropy is available, two
// 32-bit draws assemble the primary seed word and an xxh3 fold of the raw
// bytes fills the second PCG word; the monotonic clock is the fallback. The
// permutation is not required to be reproducible across runs.
func newShuffleRNG() *rand.Rand {
	var buf [16]byte
	if _, err := crand.Read(buf[:]); err == nil {
		hi := uint64(binary.LittleEndian.Uint32(buf[0:4]))
		lo := uint64(binary.LittleEndian.Uint32(buf[4:8]))
		return rand.New(rand.NewPCG(hi<<32|lo, xxh3.Hash(buf[:])))
	}
	now := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(now, now))
}

// shuffledIndices returns a uniformly shuffled permutation of [0, n).
func shuffledIndices(n uint64) []uint64 {
	indices := make([]uint64, n)
	for i := range indices {
		indices[i] = uint64(i)
	}
	rng := newShuffleRNG()
	rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	return indices
}

// sweepPlainRandom shuffles the plain global index space for lengths
// MinLength..MaxLength and sweeps it in one stage. Count overflow or an
// index space beyond the memory cap refuses random mode outright rather
// than degrading silently.
func (e *Engine) sweepPlainRandom(ctx context.Context) error {
	charset := []byte(e.cfg.Charset)
	charsetSize := uint64(len(charset))

	total, err := keyspace.TotalCount(charsetSize, e.cfg.MinLength, e.cfg.MaxLength)
	if err != nil {
		e.errorf("Total password count for the target range overflows. Refusing random mode.")
		return kserrors.ErrCountOverflow
	}
	prefix, err := keyspace.PrefixCount(charsetSize, e.cfg.MinLength)
	if err != nil {
		e.errorf("Prefix password count overflows. Refusing random mode.")
		return kserrors.ErrCountOverflow
	}
	if total == 0 {
		e.warnf("Target range holds no candidates.")
		return nil
	}
	e.infof("Total passwords to test (lengths %d to %d): %d.", e.cfg.MinLength, e.cfg.MaxLength, total)
	if total > maxRandomIndices {
		e.errorf("Index space too large for random mode (%d MiB of indices needed, cap %d MiB). Refusing random mode.",
			total*8/(1<<20), maxRandomIndices*8/(1<<20))
		return kserrors.ErrSpaceTooLarge
	}
	if e.shouldStop(ctx) {
		return nil
	}

	e.infof("Generating and shuffling %d target indices...", total)
	indices := shuffledIndices(total)
	e.infof("Index vector generated and shuffled.")
	if e.shouldStop(ctx) {
		return nil
	}

	maxLen := e.cfg.MaxLength
	e.runStage(ctx, total, func() candidateFunc {
		return func(i uint64) (string, bool) {
			pwd, err := keyspace.ByIndex(indices[i]+prefix, charset, maxLen)
			return pwd, err == nil
		}
	})
	e.infof("Shuffled index worker threads joined.")
	e.maybeCheckpoint()
	return nil
}

// sweepTemplatedRandom shuffles the templated global index space. Counting
// failures and an over-cap index space fall back to ascending order (the
// caller runs the ordered plan when fellBack is true).
func (e *Engine) sweepTemplatedRandom(ctx context.Context, tpl keyspace.Template, minLen, maxLen int) (fellBack bool, err error) {
	charset := []byte(e.cfg.Charset)
	charsetSize := uint64(len(charset))

	counts, total, err := templatedCounts(tpl, charsetSize, minLen, maxLen)
	if err != nil {
		e.errorf("Template combination counting failed (%v). Falling back to ascending order.", err)
		return true, nil
	}
	if total == 0 {
		e.infof("Template generates 0 combinations in the configured length range.")
		return false, nil
	}
	e.infof("Total template combinations in range: %d.", total)
	if total > maxRandomIndices {
		e.errorf("Template space too large for random mode (%d MiB of indices needed). Falling back to ascending order.",
			total*8/(1<<20))
		return true, nil
	}
	if e.shouldStop(ctx) {
		return false, nil
	}

	e.infof("Generating and shuffling %d template indices...", total)
	indices := shuffledIndices(total)
	e.infof("Template indices shuffled.")
	if e.shouldStop(ctx) {
		return false, nil
	}

	e.runStage(ctx, total, func() candidateFunc {
		return func(i uint64) (string, bool) {
			pwd, err := tpl.ByGlobalIndex(indices[i], charset, counts)
			return pwd, err == nil
		}
	})
	e.infof("Shuffled template worker threads joined.")
	e.maybeCheckpoint()
	return false, nil
}
