package keysweep

import (
	"context"

	kserrors "github.com/mtarnawa/keysweep/errors"
	"github.com/mtarnawa/keysweep/internal/keyspace"
)

// lengthOrder yields the stage lengths for an ordered sweep.
func lengthOrder(minLen, maxLen int, mode Mode) []int {
	lengths := make([]int, 0, maxLen-minLen+1)
	if mode == ModeDescending {
		for l := maxLen; l >= minLen; l-- {
			lengths = append(lengths, l)
		}
	} else {
		for l := minLen; l <= maxLen; l++ {
			lengths = append(lengths, l)
		}
	}
	return lengths
}

// sweepPlainOrdered runs one stage per length, ascending or descending.
// A per-length count overflow skips that length with a warning. Stages are
// joined before the next length begins; a checkpoint may run at each join.
func (e *Engine) sweepPlainOrdered(ctx context.Context) {
	charset := []byte(e.cfg.Charset)
	charsetSize := uint64(len(charset))
	for _, length := range lengthOrder(e.cfg.MinLength, e.cfg.MaxLength, e.cfg.Mode) {
		if e.found.Load() || e.shouldStop(ctx) {
			return
		}
		count, err := keyspace.CountForLength(charsetSize, length)
		if err != nil {
			e.warnf("Combination count overflow for length %d. Skipping.", length)
			continue
		}
		if count == 0 {
			continue
		}
		e.infof("Testing passwords of length %d (combinations: %d)...", length, count)
		e.runStage(ctx, count, func() candidateFunc {
			buf := make([]byte, length)
			return func(i uint64) (string, bool) {
				keyspace.FillAtLength(buf, i, charset)
				return string(buf), true
			}
		})
		e.infof("Worker threads joined for length %d.", length)
		e.maybeCheckpoint()
	}
}

// sweepTemplatedOrdered runs one stage per length over the templated index
// space. Lengths the template cannot produce are skipped quietly; count
// failures (overflow, multi-star) are skipped with a warning.
func (e *Engine) sweepTemplatedOrdered(ctx context.Context, tpl keyspace.Template, minLen, maxLen int, mode Mode) {
	charset := []byte(e.cfg.Charset)
	charsetSize := uint64(len(charset))
	for _, length := range lengthOrder(minLen, maxLen, mode) {
		if e.found.Load() || e.shouldStop(ctx) {
			return
		}
		count, err := tpl.CountForLength(charsetSize, length)
		if err != nil {
			e.warnf("Cannot count template combinations for length %d (%v). Skipping.", length, err)
			continue
		}
		if count == 0 {
			continue
		}
		e.infof("Testing template passwords of length %d (combinations: %d)...", length, count)
		e.runStage(ctx, count, func() candidateFunc {
			return func(i uint64) (string, bool) {
				pwd, err := tpl.AtLength(i, charset, length)
				return pwd, err == nil
			}
		})
		e.infof("Template worker threads joined for length %d.", length)
		e.maybeCheckpoint()
	}
}

// templatedCounts collects the per-length combination counts for the range,
// ascending, along with their total. Only non-zero lengths are recorded.
func templatedCounts(tpl keyspace.Template, charsetSize uint64, minLen, maxLen int) ([]keyspace.LengthCount, uint64, error) {
	var counts []keyspace.LengthCount
	var total uint64
	for length := minLen; length <= maxLen; length++ {
		count, err := tpl.CountForLength(charsetSize, length)
		if err != nil {
			return nil, 0, err
		}
		if count == 0 {
			continue
		}
		if total > ^uint64(0)-count {
			return nil, 0, kserrors.ErrCountOverflow
		}
		total += count
		counts = append(counts, keyspace.LengthCount{Length: length, Count: count})
	}
	return counts, total, nil
}
